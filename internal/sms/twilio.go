package sms

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/quhie/Coding-Challenge-Skipli/internal/logger"
	"github.com/quhie/Coding-Challenge-Skipli/internal/metrics"
	"github.com/quhie/Coding-Challenge-Skipli/internal/secrets"
)

// Doer executes HTTP requests.
type Doer interface {
	Do(*http.Request) (*http.Response, error)
}

// TwilioOptions configures a Twilio sender.
type TwilioOptions struct {
	BaseURL    string // default https://api.twilio.com
	AccountSID string
	AuthToken  string
	From       string
	Doer       Doer
}

// Twilio posts to the Messages resource of the 2010-04-01 REST API.
type Twilio struct {
	opts TwilioOptions
}

func NewTwilio(opts TwilioOptions) *Twilio {
	if opts.BaseURL == "" {
		opts.BaseURL = "https://api.twilio.com"
	}
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	if opts.Doer == nil {
		opts.Doer = http.DefaultClient
	}
	return &Twilio{opts: opts}
}

// SendError is a non-2xx answer from Twilio.
type SendError struct {
	StatusCode int
	Code       int
	Message    string
}

func (e *SendError) Error() string {
	return fmt.Sprintf("twilio: status %d code %d: %s", e.StatusCode, e.Code, e.Message)
}

func (t *Twilio) Send(ctx context.Context, to, body string) (Receipt, error) {
	r, err := t.send(ctx, to, body)
	log := logger.WithComponent("sms")
	if err != nil {
		metrics.SMSSent.WithLabelValues("twilio", "failed").Inc()
		log.ErrorContext(ctx, "SMS send failed", "to", secrets.MaskPhone(to), "error", err)
		return Receipt{}, err
	}
	metrics.SMSSent.WithLabelValues("twilio", "sent").Inc()
	log.InfoContext(ctx, "SMS sent", "to", secrets.MaskPhone(to), "sid", r.SID, "status", r.Status)
	return r, nil
}

func (t *Twilio) send(ctx context.Context, to, body string) (Receipt, error) {
	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", t.opts.BaseURL, url.PathEscape(t.opts.AccountSID))
	form := url.Values{"To": {to}, "From": {t.opts.From}, "Body": {body}}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return Receipt{}, err
	}
	req.SetBasicAuth(t.opts.AccountSID, t.opts.AuthToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := t.opts.Doer.Do(req)
	if err != nil {
		return Receipt{}, fmt.Errorf("twilio: %w", err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Receipt{}, fmt.Errorf("twilio: read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		serr := &SendError{StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		var body struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		}
		if json.Unmarshal(data, &body) == nil && body.Message != "" {
			serr.Code, serr.Message = body.Code, body.Message
		}
		return Receipt{}, serr
	}

	var r Receipt
	if err := json.Unmarshal(data, &r); err != nil {
		return Receipt{}, fmt.Errorf("twilio: decode response: %w", err)
	}
	return r, nil
}
