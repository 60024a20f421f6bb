package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/course-enrollment-api/internal/dto"
	"github.com/noah-isme/course-enrollment-api/internal/middleware"
	"github.com/noah-isme/course-enrollment-api/internal/models"
	appErrors "github.com/noah-isme/course-enrollment-api/pkg/errors"
	"github.com/noah-isme/course-enrollment-api/pkg/response"
)

type checkoutService interface {
	CreateOrReuse(ctx context.Context, actor *models.JWTClaims, kind models.PaymentKind, req dto.CheckoutRequest) (*dto.CheckoutResponse, error)
	Return(ctx context.Context, token string) (*dto.CheckoutReturnResponse, error)
	PreviewDiscount(ctx context.Context, preEnrollmentID string) (*dto.DiscountPreviewResponse, error)
}

// CheckoutHandler exposes the checkout entry points.
type CheckoutHandler struct {
	checkouts checkoutService
}

// NewCheckoutHandler constructs CheckoutHandler.
func NewCheckoutHandler(checkouts checkoutService) *CheckoutHandler {
	return &CheckoutHandler{checkouts: checkouts}
}

// PreEnrollment godoc
// @Summary Create or reuse the pre-enrollment fee checkout
// @Tags Checkout
// @Accept json
// @Produce json
// @Param payload body dto.CheckoutRequest true "Checkout payload"
// @Success 200 {object} response.Envelope
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /checkout/pre-enrollment [post]
func (h *CheckoutHandler) PreEnrollment(c *gin.Context) {
	h.checkout(c, models.PaymentKindPreEnrollment)
}

// Enrollment godoc
// @Summary Create or reuse the enrollment fee checkout
// @Tags Checkout
// @Accept json
// @Produce json
// @Param payload body dto.CheckoutRequest true "Checkout payload"
// @Success 200 {object} response.Envelope
// @Success 201 {object} response.Envelope
// @Failure 502 {object} response.Envelope
// @Router /checkout/enrollment [post]
func (h *CheckoutHandler) Enrollment(c *gin.Context) {
	h.checkout(c, models.PaymentKindEnrollment)
}

func (h *CheckoutHandler) checkout(c *gin.Context, kind models.PaymentKind) {
	claims := middleware.Actor(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req dto.CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	req.PreEnrollmentID = strings.TrimSpace(req.PreEnrollmentID)
	req.EnrollmentID = strings.TrimSpace(req.EnrollmentID)

	result, err := h.checkouts.CreateOrReuse(c.Request.Context(), claims, kind, req)
	if err != nil {
		_ = c.Error(err)
		response.Error(c, err)
		return
	}
	if result.Reused {
		response.JSON(c, http.StatusOK, result)
		return
	}
	response.Created(c, result)
}

// Return godoc
// @Summary Resolve a gateway redirect into the payment status
// @Tags Checkout
// @Produce json
// @Param token query string true "Signed callback token"
// @Success 200 {object} response.Envelope
// @Router /checkout/return [get]
func (h *CheckoutHandler) Return(c *gin.Context) {
	token := strings.TrimSpace(c.Query("token"))
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token is required"))
		return
	}
	status, err := h.checkouts.Return(c.Request.Context(), token)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, status)
}

// DiscountPreview godoc
// @Summary Dry-run the enrollment amount decision
// @Tags Checkout
// @Produce json
// @Param id path string true "Pre-enrollment ID"
// @Success 200 {object} response.Envelope
// @Router /admin/pre-enrollments/{id}/discount [get]
func (h *CheckoutHandler) DiscountPreview(c *gin.Context) {
	preview, err := h.checkouts.PreviewDiscount(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, preview)
}
