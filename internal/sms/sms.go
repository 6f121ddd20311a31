// Package sms delivers access codes by text message, through Twilio's REST
// API when credentials are configured and through a logging mock otherwise.
package sms

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/quhie/Coding-Challenge-Skipli/internal/config"
	"github.com/quhie/Coding-Challenge-Skipli/internal/httpx"
	"github.com/quhie/Coding-Challenge-Skipli/internal/logger"
	"github.com/quhie/Coding-Challenge-Skipli/internal/metrics"
	"github.com/quhie/Coding-Challenge-Skipli/internal/secrets"
)

// Receipt identifies a sent message.
type Receipt struct {
	SID    string `json:"sid"`
	Status string `json:"status"`
	Mock   bool   `json:"mock,omitempty"`
}

// Sender sends one text message.
type Sender interface {
	Send(ctx context.Context, to, body string) (Receipt, error)
}

// New returns a Twilio sender when the account SID looks real ("AC...") and
// the auth token and sender number are set, otherwise a mock sender.
func New(cfg *config.Config) Sender {
	if !strings.HasPrefix(cfg.TwilioAccountSID, "AC") || cfg.TwilioAuthToken == "" || cfg.TwilioPhoneNumber == "" {
		logger.Warn("twilio credentials not configured, SMS will be logged only")
		return NewMock()
	}
	return NewTwilio(TwilioOptions{
		BaseURL:    cfg.TwilioAPIBaseURL,
		AccountSID: cfg.TwilioAccountSID,
		AuthToken:  cfg.TwilioAuthToken,
		From:       cfg.TwilioPhoneNumber,
		Doer:       httpx.New(cfg.HTTPTimeout, nil, nil, cfg.LogHTTPAttempts),
	})
}

// Mock logs messages instead of sending them.
type Mock struct{}

func NewMock() *Mock { return &Mock{} }

func (*Mock) Send(ctx context.Context, to, body string) (Receipt, error) {
	r := Receipt{SID: "mock-" + uuid.NewString(), Status: "queued", Mock: true}
	logger.WithComponent("sms").InfoContext(ctx, "mock SMS",
		"to", secrets.MaskPhone(to), "sid", r.SID, "length", len(body))
	metrics.SMSSent.WithLabelValues("mock", "sent").Inc()
	return r, nil
}
