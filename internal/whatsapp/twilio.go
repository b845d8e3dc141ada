// Package whatsapp implements the outbound provider and webhook
// authentication on top of the Twilio API.
package whatsapp

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/twilio/twilio-go"
	twilioclient "github.com/twilio/twilio-go/client"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"
	"go.uber.org/zap"

	"github.com/capitalize-ai/support-inbox/internal/apperr"
	"github.com/capitalize-ai/support-inbox/pkg/logger"
)

// Config holds Twilio credentials.
type Config struct {
	AccountSID string
	AuthToken  string
	Timeout    time.Duration
}

// messageAPI is the subset of the Twilio REST API the provider calls.
type messageAPI interface {
	CreateMessage(params *openapi.CreateMessageParams) (*openapi.ApiV2010Message, error)
	FetchMessage(sid string, params *openapi.FetchMessageParams) (*openapi.ApiV2010Message, error)
}

// TwilioProvider sends WhatsApp messages through Twilio. It implements
// service.Provider.
type TwilioProvider struct {
	api     messageAPI
	timeout time.Duration
	logger  *logger.Logger
}

// NewTwilioProvider creates a provider authenticated with cfg.
func NewTwilioProvider(cfg Config, log *logger.Logger) *TwilioProvider {
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.AccountSID,
		Password: cfg.AuthToken,
	})
	if cfg.Timeout > 0 {
		client.SetTimeout(cfg.Timeout)
	}
	return newProvider(client.Api, cfg.Timeout, log)
}

func newProvider(api messageAPI, timeout time.Duration, log *logger.Logger) *TwilioProvider {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &TwilioProvider{api: api, timeout: timeout, logger: log}
}

// Send creates an outbound message and returns its SID.
func (p *TwilioProvider) Send(ctx context.Context, from, to, body string) (string, error) {
	params := &openapi.CreateMessageParams{}
	params.SetFrom(from)
	params.SetTo(to)
	params.SetBody(body)

	resp, err := call(ctx, p.timeout, func() (*openapi.ApiV2010Message, error) {
		return p.api.CreateMessage(params)
	})
	if err != nil {
		return "", mapError(err)
	}
	if resp == nil || resp.Sid == nil {
		return "", apperr.Dispatch(errors.New("empty response"), "provider returned no message id")
	}

	p.logger.Debug("twilio message created", zap.String("sid", *resp.Sid))
	return *resp.Sid, nil
}

// FetchStatus returns the raw Twilio status of a message.
func (p *TwilioProvider) FetchStatus(ctx context.Context, id string) (string, error) {
	resp, err := call(ctx, p.timeout, func() (*openapi.ApiV2010Message, error) {
		return p.api.FetchMessage(id, &openapi.FetchMessageParams{})
	})
	if err != nil {
		return "", mapError(err)
	}
	if resp == nil || resp.Status == nil {
		return "", apperr.NotFound("message %s has no status", id)
	}
	return *resp.Status, nil
}

// call runs fn, giving up when ctx ends or timeout elapses. The SDK call
// itself is bounded by the client's HTTP timeout.
func call(ctx context.Context, timeout time.Duration, fn func() (*openapi.ApiV2010Message, error)) (*openapi.ApiV2010Message, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		msg *openapi.ApiV2010Message
		err error
	}
	done := make(chan result, 1)
	go func() {
		msg, err := fn()
		done <- result{msg: msg, err: err}
	}()

	select {
	case r := <-done:
		return r.msg, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// mapError converts an SDK error to a dispatch error carrying Twilio's
// message.
func mapError(err error) error {
	var restErr *twilioclient.TwilioRestError
	if errors.As(err, &restErr) {
		return apperr.Dispatch(err, fmt.Sprintf("%s (code %d)", restErr.Message, restErr.Code))
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return apperr.Dispatch(err, "provider call timed out")
	}
	return apperr.Dispatch(err, err.Error())
}

// SignatureValidator checks the X-Twilio-Signature header of webhook
// requests.
type SignatureValidator struct {
	validator twilioclient.RequestValidator
}

// NewSignatureValidator creates a validator for the account's auth token.
func NewSignatureValidator(authToken string) *SignatureValidator {
	return &SignatureValidator{validator: twilioclient.NewRequestValidator(authToken)}
}

// ValidForm reports whether signature matches a form-encoded request to
// fullURL.
func (v *SignatureValidator) ValidForm(fullURL string, form url.Values, signature string) bool {
	params := make(map[string]string, len(form))
	for k := range form {
		params[k] = form.Get(k)
	}
	return v.validator.Validate(fullURL, params, signature)
}

// ValidBody reports whether signature matches a JSON request to fullURL.
// The URL must carry the bodySHA256 query parameter.
func (v *SignatureValidator) ValidBody(fullURL string, body []byte, signature string) bool {
	return v.validator.ValidateBody(fullURL, body, signature)
}
