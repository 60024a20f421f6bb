package handler

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/course-enrollment-api/internal/dto"
	appErrors "github.com/noah-isme/course-enrollment-api/pkg/errors"
)

type webhookServiceMock struct {
	token   string
	event   dto.AsaasWebhookEvent
	applied bool
	authErr error
	err     error
}

func (m *webhookServiceMock) Authenticate(ctx context.Context, token string) error {
	m.token = token
	return m.authErr
}

func (m *webhookServiceMock) Apply(ctx context.Context, event dto.AsaasWebhookEvent, payload []byte) error {
	m.applied = true
	m.event = event
	return m.err
}

func postWebhook(handler *WebhookHandler, body, token string) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/webhooks/asaas", bytes.NewReader([]byte(body)))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set(webhookTokenHeader, token)
	}
	c.Request = req
	handler.Asaas(c)
	return w
}

func TestWebhookHandlerAcknowledgesWithPlainOK(t *testing.T) {
	svc := &webhookServiceMock{}
	w := postWebhook(NewWebhookHandler(svc), `{"event":"PAYMENT_CONFIRMED","payment":{"id":"pay_1","checkoutSession":"chk_1"}}`, "s3cret")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "OK", w.Body.String())
	assert.Equal(t, "s3cret", svc.token)
	assert.Equal(t, "chk_1", svc.event.Payment.CheckoutSession)
	assert.True(t, svc.event.Payment.Value.IsZero())
}

func TestWebhookHandlerDecodesDecimalValue(t *testing.T) {
	svc := &webhookServiceMock{}
	w := postWebhook(NewWebhookHandler(svc), `{"event":"PAYMENT_RECEIVED","payment":{"id":"pay_1","value":612.5,"netValue":null}}`, "s3cret")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "612.5", svc.event.Payment.Value.String())
	assert.True(t, svc.event.Payment.NetValue.IsZero())
}

func TestWebhookHandlerAuthenticatesBeforeDecoding(t *testing.T) {
	svc := &webhookServiceMock{authErr: appErrors.Clone(appErrors.ErrUnauthorized, "invalid webhook token")}
	w := postWebhook(NewWebhookHandler(svc), `{not json`, "guess")

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "guess", svc.token)
	assert.False(t, svc.applied)
}

func TestWebhookHandlerMalformedBody(t *testing.T) {
	w := postWebhook(NewWebhookHandler(&webhookServiceMock{}), `{not json`, "s3cret")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestWebhookHandlerMapsServiceErrors(t *testing.T) {
	w := postWebhook(NewWebhookHandler(&webhookServiceMock{authErr: appErrors.Clone(appErrors.ErrUnauthorized, "invalid webhook token")}), `{"event":"PAYMENT_CONFIRMED","payment":{"id":"p"}}`, "bad")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = postWebhook(NewWebhookHandler(&webhookServiceMock{err: appErrors.Clone(appErrors.ErrValidation, "webhook payment is required")}), `{"event":"PAYMENT_CONFIRMED"}`, "s3cret")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = postWebhook(NewWebhookHandler(&webhookServiceMock{err: appErrors.Clone(appErrors.ErrPaymentNotMatched, "")}), `{"event":"PAYMENT_CONFIRMED","payment":{"id":"p"}}`, "s3cret")
	assert.Equal(t, http.StatusNotFound, w.Code)
}
