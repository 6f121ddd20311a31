// Package passcode implements the phone access-code flow: generate, store and
// text a six-digit code, then validate it once.
package passcode

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/quhie/Coding-Challenge-Skipli/internal/logger"
	"github.com/quhie/Coding-Challenge-Skipli/internal/metrics"
	"github.com/quhie/Coding-Challenge-Skipli/internal/secrets"
	"github.com/quhie/Coding-Challenge-Skipli/internal/sms"
	"github.com/quhie/Coding-Challenge-Skipli/internal/store"
)

var (
	ErrMissingPhone = errors.New("phone number is required")
	ErrMissingCode  = errors.New("access code is required")
)

// SMSError wraps a failed delivery; the code was stored but never reached
// the user.
type SMSError struct{ Err error }

func (e *SMSError) Error() string { return "send access code: " + e.Err.Error() }
func (e *SMSError) Unwrap() error { return e.Err }

const (
	codeMin = 100000
	codeMax = 999999
)

// MessageFor is the SMS text carrying code.
func MessageFor(code string) string { return "Your access code is: " + code }

// Service wires the store and SMS sender together.
type Service struct {
	store  store.Store
	sender sms.Sender
	gen    func() (string, error)
}

// Option configures a Service.
type Option func(*Service)

// WithGenerator replaces the random code generator.
func WithGenerator(gen func() (string, error)) Option {
	return func(s *Service) { s.gen = gen }
}

func New(st store.Store, sender sms.Sender, opts ...Option) *Service {
	s := &Service{store: st, sender: sender, gen: GenerateCode}
	for _, o := range opts {
		o(s)
	}
	return s
}

// GenerateCode returns a uniformly random code in [100000, 999999].
func GenerateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(codeMax-codeMin+1))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d", n.Int64()+codeMin), nil
}

// CreateAccessCode stores a fresh code for phone, replacing any previous one,
// and texts it. A delivery failure is returned as *SMSError.
func (s *Service) CreateAccessCode(ctx context.Context, phone string) (string, error) {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return "", ErrMissingPhone
	}
	code, err := s.gen()
	if err != nil {
		return "", fmt.Errorf("generate access code: %w", err)
	}
	if err := s.store.SaveAccessCode(ctx, phone, code); err != nil {
		return "", fmt.Errorf("save access code: %w", err)
	}
	if _, err := s.sender.Send(ctx, phone, MessageFor(code)); err != nil {
		return "", &SMSError{Err: err}
	}
	logger.WithRequestID(ctx).With("component", "passcode").Info("access code created", "phone", secrets.MaskPhone(phone))
	return code, nil
}

// ValidateAccessCode reports whether code matches the stored one. A match
// clears the stored code so it cannot be reused.
func (s *Service) ValidateAccessCode(ctx context.Context, phone, code string) (bool, error) {
	phone, code = strings.TrimSpace(phone), strings.TrimSpace(code)
	if phone == "" {
		return false, ErrMissingPhone
	}
	if code == "" {
		return false, ErrMissingCode
	}

	ok, err := s.store.ValidateAccessCode(ctx, phone, code)
	if err != nil {
		metrics.PasscodeValidations.WithLabelValues("error").Inc()
		return false, fmt.Errorf("validate access code: %w", err)
	}
	if !ok {
		metrics.PasscodeValidations.WithLabelValues("mismatch").Inc()
		return false, nil
	}
	if err := s.store.ClearAccessCode(ctx, phone); err != nil {
		metrics.PasscodeValidations.WithLabelValues("error").Inc()
		return false, fmt.Errorf("clear access code: %w", err)
	}
	metrics.PasscodeValidations.WithLabelValues("match").Inc()
	return true, nil
}
