package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/course-enrollment-api/internal/dto"
	appErrors "github.com/noah-isme/course-enrollment-api/pkg/errors"
	"github.com/noah-isme/course-enrollment-api/pkg/response"
)

const (
	webhookTokenHeader = "asaas-access-token"
	maxWebhookBody     = 1 << 20
)

type webhookService interface {
	Authenticate(ctx context.Context, token string) error
	Apply(ctx context.Context, event dto.AsaasWebhookEvent, payload []byte) error
}

// WebhookHandler receives gateway notifications.
type WebhookHandler struct {
	webhooks webhookService
}

// NewWebhookHandler constructs WebhookHandler.
func NewWebhookHandler(webhooks webhookService) *WebhookHandler {
	return &WebhookHandler{webhooks: webhooks}
}

// Asaas godoc
// @Summary Receive an Asaas payment webhook
// @Tags Webhooks
// @Accept json
// @Produce plain
// @Param asaas-access-token header string false "Shared webhook secret"
// @Param payload body dto.AsaasWebhookEvent true "Webhook event"
// @Success 200 {string} string "OK"
// @Failure 401 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /webhooks/asaas [post]
func (h *WebhookHandler) Asaas(c *gin.Context) {
	if err := h.webhooks.Authenticate(c.Request.Context(), c.GetHeader(webhookTokenHeader)); err != nil {
		_ = c.Error(err)
		response.Error(c, err)
		return
	}

	payload, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBody))
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "unreadable webhook body"))
		return
	}

	var event dto.AsaasWebhookEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "malformed webhook body"))
		return
	}

	if err := h.webhooks.Apply(c.Request.Context(), event, payload); err != nil {
		_ = c.Error(err)
		response.Error(c, err)
		return
	}
	response.Text(c, http.StatusOK, "OK")
}
