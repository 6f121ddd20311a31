package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/quhie/Coding-Challenge-Skipli/internal/apierr"
	"github.com/quhie/Coding-Challenge-Skipli/internal/logger"
	"github.com/quhie/Coding-Challenge-Skipli/internal/passcode"
	"github.com/quhie/Coding-Challenge-Skipli/internal/secrets"
)

// Passcodes is the access-code flow used by the handlers.
type Passcodes interface {
	CreateAccessCode(ctx context.Context, phone string) (string, error)
	ValidateAccessCode(ctx context.Context, phone, code string) (bool, error)
}

type AccessCodeHandlers struct{ svc Passcodes }

func NewAccessCodeHandlers(svc Passcodes) *AccessCodeHandlers { return &AccessCodeHandlers{svc: svc} }

type createAccessCodeReq struct {
	PhoneNumber string `json:"phoneNumber"`
}

// Create handles POST /CreateNewAccessCode. The body of a 200 is the code
// itself as a JSON string.
func (h *AccessCodeHandlers) Create(w http.ResponseWriter, r *http.Request) {
	var req createAccessCodeReq
	if !decodeBody(w, r, &req) {
		return
	}
	code, err := h.svc.CreateAccessCode(r.Context(), req.PhoneNumber)
	if err != nil {
		apierr.WriteErrorWithContext(w, r, passcodeError(r, err, req.PhoneNumber))
		return
	}
	writeJSON(w, r, http.StatusOK, code)
}

type validateAccessCodeReq struct {
	PhoneNumber string `json:"phoneNumber"`
	AccessCode  string `json:"accessCode"`
}

// Validate handles POST /ValidateAccessCode.
func (h *AccessCodeHandlers) Validate(w http.ResponseWriter, r *http.Request) {
	var req validateAccessCodeReq
	if !decodeBody(w, r, &req) {
		return
	}
	ok, err := h.svc.ValidateAccessCode(r.Context(), req.PhoneNumber, req.AccessCode)
	if err != nil {
		apierr.WriteErrorWithContext(w, r, passcodeError(r, err, req.PhoneNumber))
		return
	}
	if !ok {
		writeJSON(w, r, http.StatusBadRequest, map[string]interface{}{
			"success": false,
			"error":   "Invalid access code",
		})
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]bool{"success": true})
}

func passcodeError(r *http.Request, err error, phone string) *apierr.Error {
	var smsErr *passcode.SMSError
	switch {
	case errors.Is(err, passcode.ErrMissingPhone):
		return apierr.ValidationMissingField("phoneNumber")
	case errors.Is(err, passcode.ErrMissingCode):
		return apierr.ValidationMissingField("accessCode")
	case errors.As(err, &smsErr):
		return apierr.PasscodeSMSFailed()
	default:
		logger.ErrorContext(r.Context(), "Access code store failure", "phone", secrets.MaskPhone(phone), "error", err)
		return apierr.SystemStore("")
	}
}
