package service

import (
	"context"
	"crypto/subtle"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/course-enrollment-api/internal/dto"
	"github.com/noah-isme/course-enrollment-api/internal/models"
	appErrors "github.com/noah-isme/course-enrollment-api/pkg/errors"
	"github.com/noah-isme/course-enrollment-api/pkg/money"
)

const (
	gatewayProvider     = "asaas"
	unknownWebhookEvent = "unknown"
)

// Webhook outcomes recorded in metrics and the event journal.
const (
	WebhookOutcomeApplied      = "applied"
	WebhookOutcomeDuplicate    = "duplicate"
	WebhookOutcomeSkipped      = "skipped"
	WebhookOutcomeIgnored      = "ignored"
	WebhookOutcomeUnmatched    = "unmatched"
	WebhookOutcomeUnauthorized = "unauthorized"
)

var webhookEventStatus = map[string]models.PaymentStatus{
	"PAYMENT_RECEIVED":  models.PaymentStatusReceived,
	"PAYMENT_CONFIRMED": models.PaymentStatusConfirmed,
	"PAYMENT_OVERDUE":   models.PaymentStatusOverdue,
	"PAYMENT_REFUNDED":  models.PaymentStatusRefunded,
}

type webhookSettings interface {
	Load(ctx context.Context) (models.PaymentSettings, error)
	WebhookSecret(settings models.PaymentSettings) string
}

type webhookPaymentRepository interface {
	FindByID(ctx context.Context, id string) (*models.Payment, error)
	FindByGatewayID(ctx context.Context, gatewayID string) (*models.Payment, error)
	FindLatest(ctx context.Context, kind models.PaymentKind, subjectID string) (*models.Payment, error)
	TransitionStatus(ctx context.Context, id string, from, to models.PaymentStatus, paidAt *time.Time) (bool, error)
}

type webhookPreEnrollmentRepository interface {
	MarkPaymentConfirmed(ctx context.Context, id string) (bool, error)
}

type webhookEnrollmentRepository interface {
	MarkPaid(ctx context.Context, id string, paidAt time.Time) (bool, error)
}

// WebhookService reconciles gateway payment notifications into local state.
type WebhookService struct {
	settings       webhookSettings
	payments       webhookPaymentRepository
	preEnrollments webhookPreEnrollmentRepository
	enrollments    webhookEnrollmentRepository
	audit          auditRecorder
	validator      *validator.Validate
	metrics        *MetricsService
	logger         *zap.Logger
	now            func() time.Time
}

// NewWebhookService constructs the reconciler.
func NewWebhookService(settings webhookSettings, payments webhookPaymentRepository, preEnrollments webhookPreEnrollmentRepository, enrollments webhookEnrollmentRepository, audit auditRecorder, validate *validator.Validate, metrics *MetricsService, logger *zap.Logger) *WebhookService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if audit == nil {
		audit = noopAuditRecorder{}
	}
	return &WebhookService{
		settings:       settings,
		payments:       payments,
		preEnrollments: preEnrollments,
		enrollments:    enrollments,
		audit:          audit,
		validator:      validate,
		metrics:        metrics,
		logger:         logger,
		now:            time.Now,
	}
}

// Authenticate checks the shared webhook secret. It runs before the body is decoded so an
// unauthenticated delivery never reaches the parser.
func (s *WebhookService) Authenticate(ctx context.Context, token string) error {
	if err := s.authenticate(ctx, token); err != nil {
		s.metrics.RecordWebhook(unknownWebhookEvent, WebhookOutcomeUnauthorized)
		return err
	}
	return nil
}

// Apply reconciles one authenticated webhook delivery. payload is the raw body kept for the journal.
// Only payment status events need a payment object; every other event is journaled as ignored.
func (s *WebhookService) Apply(ctx context.Context, event dto.AsaasWebhookEvent, payload []byte) error {
	if err := s.validator.Struct(event); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid webhook payload")
	}

	journal := models.GatewayEvent{
		Provider:  gatewayProvider,
		EventType: event.Event,
		GatewayID: gatewayReference(event.Payment),
		Payload:   payload,
	}

	target, known := webhookEventStatus[event.Event]
	if !known {
		s.logger.Debug("ignoring webhook event", zap.String("event", event.Event))
		s.finish(journal, WebhookOutcomeIgnored)
		return nil
	}
	if event.Payment == nil {
		return appErrors.Clone(appErrors.ErrValidation, "webhook payment is required")
	}
	if err := s.validator.Struct(event.Payment); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid webhook payment")
	}

	payment, err := s.match(ctx, event.Payment)
	if err != nil {
		if appErrors.FromError(err).Code == appErrors.ErrPaymentNotMatched.Code {
			s.logger.Warn("webhook did not match any payment",
				zap.String("event", event.Event),
				zap.String("payment_id", event.Payment.ID),
				zap.String("checkout_session", event.Payment.CheckoutSession),
				zap.String("external_reference", event.Payment.ExternalReference),
			)
			s.finish(journal, WebhookOutcomeUnmatched)
		}
		return err
	}
	journal.PaymentID = &payment.ID

	paidAt := s.paidAt(event.Payment)
	outcome, err := s.transition(ctx, payment, target, paidAt)
	if err != nil {
		return err
	}

	if target.Settled() && payment.Status.Settled() {
		if err := s.settleSubject(ctx, payment, paidAt); err != nil {
			return err
		}
	}

	if outcome == WebhookOutcomeApplied {
		paymentID := payment.ID
		s.audit.Record(models.AuditLog{
			Action:     models.AuditActionPaymentReconciled,
			Resource:   "payment",
			ResourceID: &paymentID,
			NewValues: auditJSON(map[string]interface{}{
				"event":  event.Event,
				"status": payment.Status,
				"value":  money.Float(event.Payment.Value),
			}),
		})
	}
	s.logger.Info("webhook reconciled",
		zap.String("event", event.Event),
		zap.String("payment_id", payment.ID),
		zap.String("status", string(payment.Status)),
		zap.String("outcome", outcome),
	)
	s.finish(journal, outcome)
	return nil
}

func (s *WebhookService) authenticate(ctx context.Context, token string) error {
	settings, err := s.settings.Load(ctx)
	if err != nil && !errors.Is(err, appErrors.ErrPaymentConfiguration) {
		return err
	}
	secret := s.settings.WebhookSecret(settings)
	if secret == "" {
		s.logger.Warn("webhook secret not configured, accepting unauthenticated delivery")
		return nil
	}
	if subtle.ConstantTimeCompare([]byte(token), []byte(secret)) != 1 {
		return appErrors.Clone(appErrors.ErrUnauthorized, "invalid webhook token")
	}
	return nil
}

// match finds the local payment by gateway id first, then by external reference.
func (s *WebhookService) match(ctx context.Context, p *dto.AsaasWebhookPayment) (*models.Payment, error) {
	for _, id := range []string{p.CheckoutSession, p.ID} {
		if id == "" {
			continue
		}
		payment, err := s.payments.FindByGatewayID(ctx, id)
		if err == nil {
			return payment, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to match payment")
		}
	}

	if ref := p.ExternalReference; ref != "" {
		for _, kind := range []models.PaymentKind{models.PaymentKindEnrollment, models.PaymentKindPreEnrollment} {
			payment, err := s.payments.FindLatest(ctx, kind, ref)
			if err == nil {
				return payment, nil
			}
			if !errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to match payment")
			}
		}
	}
	return nil, appErrors.Clone(appErrors.ErrPaymentNotMatched, "")
}

// transition applies target to payment, retrying when a concurrent writer moved the row.
// payment is updated in place with the resulting status.
func (s *WebhookService) transition(ctx context.Context, payment *models.Payment, target models.PaymentStatus, paidAt time.Time) (string, error) {
	for attempt := 0; attempt < 3; attempt++ {
		if payment.Status == target {
			return WebhookOutcomeDuplicate, nil
		}
		if !CanTransition(payment.Status, target) {
			s.logger.Info("webhook transition not allowed",
				zap.String("payment_id", payment.ID),
				zap.String("from", string(payment.Status)),
				zap.String("to", string(target)),
			)
			return WebhookOutcomeSkipped, nil
		}

		var stamp *time.Time
		if target.Settled() {
			stamp = &paidAt
		}
		changed, err := s.payments.TransitionStatus(ctx, payment.ID, payment.Status, target, stamp)
		if err != nil {
			return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update payment status")
		}
		if changed {
			payment.Status = target
			return WebhookOutcomeApplied, nil
		}

		current, err := s.payments.FindByID(ctx, payment.ID)
		if err != nil {
			return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reload payment")
		}
		*payment = *current
	}
	return WebhookOutcomeSkipped, nil
}

func (s *WebhookService) settleSubject(ctx context.Context, payment *models.Payment, paidAt time.Time) error {
	if payment.Kind == models.PaymentKindEnrollment {
		if payment.EnrollmentID == nil {
			s.logger.Error("settled enrollment payment has no enrollment, leaving subject untouched",
				zap.String("payment_id", payment.ID),
				zap.String("pre_enrollment_id", payment.PreEnrollmentID),
			)
			return nil
		}
		if _, err := s.enrollments.MarkPaid(ctx, *payment.EnrollmentID, paidAt); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to activate enrollment")
		}
		return nil
	}
	if _, err := s.preEnrollments.MarkPaymentConfirmed(ctx, payment.PreEnrollmentID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to confirm pre-enrollment")
	}
	return nil
}

func (s *WebhookService) paidAt(p *dto.AsaasWebhookPayment) time.Time {
	if p.PaymentDate != "" {
		if parsed, err := time.Parse("2006-01-02", p.PaymentDate); err == nil {
			return parsed.UTC()
		}
	}
	return s.now().UTC()
}

func (s *WebhookService) finish(journal models.GatewayEvent, outcome string) {
	journal.Outcome = outcome
	s.audit.RecordGatewayEvent(journal)
	s.metrics.RecordWebhook(journal.EventType, outcome)
}

func gatewayReference(p *dto.AsaasWebhookPayment) string {
	if p == nil {
		return ""
	}
	if p.CheckoutSession != "" {
		return p.CheckoutSession
	}
	return p.ID
}

func statusRank(status models.PaymentStatus) int {
	switch status {
	case models.PaymentStatusReceived:
		return 3
	case models.PaymentStatusConfirmed:
		return 2
	default:
		return 1
	}
}

// CanTransition reports whether a webhook may move a payment from one status to another.
// Statuses never move backward; refunds apply only to settled payments; a cancelled
// checkout may still settle because the money did arrive.
func CanTransition(from, to models.PaymentStatus) bool {
	if from == to || from == models.PaymentStatusRefunded {
		return false
	}
	switch to {
	case models.PaymentStatusRefunded:
		return from.Settled()
	case models.PaymentStatusConfirmed, models.PaymentStatusReceived:
		return statusRank(to) > statusRank(from)
	case models.PaymentStatusOverdue:
		return from.Active()
	}
	return false
}
