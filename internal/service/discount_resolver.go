package service

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/noah-isme/course-enrollment-api/internal/models"
	"github.com/noah-isme/course-enrollment-api/pkg/money"
)

// Reasons explaining which rule produced a checkout amount.
const (
	ReasonDBDiscountedFee  = "db_discounted_fee"
	ReasonPaymentsTotal    = "payments_total"
	ReasonNoCredit         = "no_credit_full_price"
	ReasonOverrideAmount   = "override_amount"
	ReasonPreEnrollmentFee = "pre_enrollment_fee"
)

type discountPaymentRepository interface {
	SumSettledPreEnrollment(ctx context.Context, preEnrollmentID string) (decimal.Decimal, error)
	HasSettledPreEnrollment(ctx context.Context, preEnrollmentID string) (bool, error)
	CreateIfNoSettledPreEnrollment(ctx context.Context, payment *models.Payment) (bool, error)
}

// DiscountResult is the amount decided for an enrollment checkout and the evidence behind it.
type DiscountResult struct {
	Amount            decimal.Decimal
	OriginalFee       decimal.Decimal
	Reason            string
	PaidTotal         decimal.Decimal
	DBCandidate       *decimal.Decimal
	PaymentsCandidate *decimal.Decimal
	HealedPayment     *models.Payment
	HealPending       bool
}

// HasCredit reports whether any credit reduced the full fee.
func (r *DiscountResult) HasCredit() bool {
	return r.DBCandidate != nil || r.PaymentsCandidate != nil
}

// DiscountResolver decides the enrollment fee after pre-enrollment credit and discounts.
type DiscountResolver struct {
	payments      discountPaymentRepository
	audit         auditRecorder
	metrics       *MetricsService
	logger        *zap.Logger
	minimumCharge decimal.Decimal
	now           func() time.Time
}

// NewDiscountResolver constructs a resolver. minimumCharge is the floor of every amount.
func NewDiscountResolver(payments discountPaymentRepository, audit auditRecorder, metrics *MetricsService, logger *zap.Logger, minimumCharge decimal.Decimal) *DiscountResolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	if audit == nil {
		audit = noopAuditRecorder{}
	}
	return &DiscountResolver{
		payments:      payments,
		audit:         audit,
		metrics:       metrics,
		logger:        logger,
		minimumCharge: money.Round(minimumCharge),
		now:           time.Now,
	}
}

// Resolve computes the enrollment amount. A positive override short-circuits both candidates.
// When a manually approved pre-enrollment has no settled payment, one confirmed payment for the
// pre-enrollment fee is recorded first.
func (r *DiscountResolver) Resolve(ctx context.Context, course *models.Course, pre *models.PreEnrollment, override *decimal.Decimal) (*DiscountResult, error) {
	return r.resolve(ctx, course, pre, override, true)
}

// Preview runs the same decision without writing the healed payment.
func (r *DiscountResolver) Preview(ctx context.Context, course *models.Course, pre *models.PreEnrollment) (*DiscountResult, error) {
	return r.resolve(ctx, course, pre, nil, false)
}

func (r *DiscountResolver) resolve(ctx context.Context, course *models.Course, pre *models.PreEnrollment, override *decimal.Decimal, heal bool) (*DiscountResult, error) {
	original := money.Round(course.EnrollmentFee)
	result := &DiscountResult{OriginalFee: original}

	if course.DiscountedEnrollmentFee != nil && pre.Status.FeePaid() {
		candidate := r.bound(*course.DiscountedEnrollmentFee, original)
		result.DBCandidate = &candidate
	}

	paid, err := r.payments.SumSettledPreEnrollment(ctx, pre.ID)
	if err != nil {
		return nil, fmt.Errorf("sum pre-enrollment payments: %w", err)
	}
	if !paid.IsPositive() && pre.ManualApproval && course.PreEnrollmentFee.IsPositive() {
		if heal {
			paid, err = r.heal(ctx, course, pre, result)
			if err != nil {
				return nil, err
			}
		} else {
			result.HealPending = true
			paid = money.Round(course.PreEnrollmentFee)
		}
	}
	result.PaidTotal = money.Round(paid)
	if result.PaidTotal.IsPositive() {
		candidate := r.bound(original.Sub(result.PaidTotal), original)
		result.PaymentsCandidate = &candidate
	}

	switch {
	case override != nil && override.IsPositive():
		result.Amount = money.Floor(money.Round(*override), r.minimumCharge)
		result.Reason = ReasonOverrideAmount
	case result.DBCandidate != nil && result.PaymentsCandidate != nil:
		if result.PaymentsCandidate.LessThan(*result.DBCandidate) {
			result.Amount, result.Reason = *result.PaymentsCandidate, ReasonPaymentsTotal
		} else {
			result.Amount, result.Reason = *result.DBCandidate, ReasonDBDiscountedFee
		}
	case result.DBCandidate != nil:
		result.Amount, result.Reason = *result.DBCandidate, ReasonDBDiscountedFee
	case result.PaymentsCandidate != nil:
		result.Amount, result.Reason = *result.PaymentsCandidate, ReasonPaymentsTotal
	default:
		result.Amount, result.Reason = money.Floor(original, r.minimumCharge), ReasonNoCredit
	}

	r.logger.Info("enrollment discount resolved",
		zap.String("pre_enrollment_id", pre.ID),
		zap.String("course_id", course.ID),
		zap.String("reason", result.Reason),
		zap.Stringer("amount", result.Amount),
		zap.Stringer("original_fee", original),
		zap.Stringer("paid_total", result.PaidTotal),
		zap.Any("db_candidate", money.FloatPtr(result.DBCandidate)),
		zap.Any("payments_candidate", money.FloatPtr(result.PaymentsCandidate)),
		zap.Bool("preview", !heal),
	)
	r.metrics.RecordDiscountReason(result.Reason)
	return result, nil
}

// bound caps a candidate at the original fee and floors it at the minimum charge.
// The floor wins when the original fee itself is below the minimum.
func (r *DiscountResolver) bound(candidate, original decimal.Decimal) decimal.Decimal {
	candidate = decimal.Min(candidate, original)
	return money.Floor(money.Round(candidate), r.minimumCharge)
}

func (r *DiscountResolver) heal(ctx context.Context, course *models.Course, pre *models.PreEnrollment, result *DiscountResult) (decimal.Decimal, error) {
	exists, err := r.payments.HasSettledPreEnrollment(ctx, pre.ID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("check settled pre-enrollment payment: %w", err)
	}
	if !exists {
		paidAt := r.now().UTC()
		payment := &models.Payment{
			Kind:            models.PaymentKindPreEnrollment,
			Amount:          money.Round(course.PreEnrollmentFee),
			Status:          models.PaymentStatusConfirmed,
			PreEnrollmentID: pre.ID,
			PaidAt:          &paidAt,
		}
		inserted, err := r.payments.CreateIfNoSettledPreEnrollment(ctx, payment)
		if err != nil {
			return decimal.Zero, fmt.Errorf("record healed pre-enrollment payment: %w", err)
		}
		if inserted {
			result.HealedPayment = payment
			r.metrics.RecordAutoHeal()
			r.logger.Warn("synthesized pre-enrollment payment for manual approval",
				zap.String("pre_enrollment_id", pre.ID),
				zap.String("payment_id", payment.ID),
				zap.Stringer("amount", payment.Amount),
			)
			r.audit.Record(models.AuditLog{
				Action:     models.AuditActionPaymentAutoHealed,
				Resource:   "payment",
				ResourceID: &payment.ID,
				NewValues:  auditJSON(map[string]interface{}{"pre_enrollment_id": pre.ID, "amount": money.Float(payment.Amount)}),
			})
			return payment.Amount, nil
		}
	}

	paid, err := r.payments.SumSettledPreEnrollment(ctx, pre.ID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("sum pre-enrollment payments: %w", err)
	}
	return paid, nil
}
