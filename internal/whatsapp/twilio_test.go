package whatsapp

import (
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"errors"
	"net/url"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	twilioclient "github.com/twilio/twilio-go/client"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/capitalize-ai/support-inbox/internal/apperr"
	"github.com/capitalize-ai/support-inbox/pkg/logger"
)

type fakeAPI struct {
	created *openapi.CreateMessageParams
	sid     string
	status  string
	err     error
	delay   time.Duration
}

func (f *fakeAPI) CreateMessage(params *openapi.CreateMessageParams) (*openapi.ApiV2010Message, error) {
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.err != nil {
		return nil, f.err
	}
	f.created = params
	sid := f.sid
	return &openapi.ApiV2010Message{Sid: &sid}, nil
}

func (f *fakeAPI) FetchMessage(sid string, params *openapi.FetchMessageParams) (*openapi.ApiV2010Message, error) {
	if f.err != nil {
		return nil, f.err
	}
	status := f.status
	return &openapi.ApiV2010Message{Sid: &sid, Status: &status}, nil
}

func TestSend(t *testing.T) {
	api := &fakeAPI{sid: "SM123"}
	p := newProvider(api, time.Second, logger.Nop())

	id, err := p.Send(context.Background(), "whatsapp:+14155238886", "whatsapp:+34600111222", "Hola")
	require.NoError(t, err)
	assert.Equal(t, "SM123", id)

	require.NotNil(t, api.created)
	assert.Equal(t, "whatsapp:+14155238886", *api.created.From)
	assert.Equal(t, "whatsapp:+34600111222", *api.created.To)
	assert.Equal(t, "Hola", *api.created.Body)
}

func TestSendMapsTwilioError(t *testing.T) {
	api := &fakeAPI{err: &twilioclient.TwilioRestError{
		Code:    21211,
		Message: "The 'To' number is not a valid phone number.",
		Status:  400,
	}}
	p := newProvider(api, time.Second, logger.Nop())

	_, err := p.Send(context.Background(), "whatsapp:+1", "whatsapp:+2", "x")
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindDispatch))
	assert.Equal(t, "The 'To' number is not a valid phone number. (code 21211)", apperr.MessageOf(err))

	var restErr *twilioclient.TwilioRestError
	assert.True(t, errors.As(err, &restErr))
}

func TestSendTimesOut(t *testing.T) {
	api := &fakeAPI{sid: "SM1", delay: 200 * time.Millisecond}
	p := newProvider(api, 20*time.Millisecond, logger.Nop())

	_, err := p.Send(context.Background(), "whatsapp:+1", "whatsapp:+2", "x")
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindDispatch))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestFetchStatus(t *testing.T) {
	p := newProvider(&fakeAPI{status: "delivered"}, time.Second, logger.Nop())

	status, err := p.FetchStatus(context.Background(), "SM123")
	require.NoError(t, err)
	assert.Equal(t, "delivered", status)

	p = newProvider(&fakeAPI{err: &twilioclient.TwilioRestError{Code: 20404, Message: "not found", Status: 404}}, time.Second, logger.Nop())
	_, err = p.FetchStatus(context.Background(), "SM404")
	assert.True(t, apperr.Is(err, apperr.KindDispatch))
}

// sign computes X-Twilio-Signature for a form request.
func sign(token, fullURL string, form url.Values) string {
	keys := make([]string, 0, len(form))
	for k := range form {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	payload := fullURL
	for _, k := range keys {
		payload += k + form.Get(k)
	}
	mac := hmac.New(sha1.New, []byte(token))
	mac.Write([]byte(payload))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func TestSignatureValidator(t *testing.T) {
	const token = "auth-token"
	const hook = "https://inbox.example.com/webhooks/whatsapp"
	form := url.Values{
		"MessageSid": {"SM1"},
		"From":       {"whatsapp:+34600111222"},
		"Body":       {"Hola"},
	}

	v := NewSignatureValidator(token)
	assert.True(t, v.ValidForm(hook, form, sign(token, hook, form)))
	assert.False(t, v.ValidForm(hook, form, sign("other-token", hook, form)))

	tampered := url.Values{"MessageSid": {"SM1"}, "From": {"whatsapp:+34600111222"}, "Body": {"Adiós"}}
	assert.False(t, v.ValidForm(hook, tampered, sign(token, hook, form)))
}
