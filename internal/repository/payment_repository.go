package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/course-enrollment-api/internal/models"
)

const paymentColumns = `id, kind, amount, status, asaas_payment_id, checkout_url, pre_enrollment_id, enrollment_id,
        paid_at, created_at, updated_at`

// PaymentRepository handles persistence of checkout attempts.
type PaymentRepository struct {
	db *sqlx.DB
}

// NewPaymentRepository constructs the repository.
func NewPaymentRepository(db *sqlx.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

// subjectColumn selects the column identifying the subject of a payment kind.
func subjectColumn(kind models.PaymentKind) string {
	if kind == models.PaymentKindEnrollment {
		return "enrollment_id"
	}
	return "pre_enrollment_id"
}

func statusArray(statuses []models.PaymentStatus) interface{} {
	values := make([]string, len(statuses))
	for i, s := range statuses {
		values[i] = string(s)
	}
	return pq.Array(values)
}

// FindByID returns a payment by its ID.
func (r *PaymentRepository) FindByID(ctx context.Context, id string) (*models.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE id = $1`
	var payment models.Payment
	if err := r.db.GetContext(ctx, &payment, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find payment: %w", err)
	}
	return &payment, nil
}

// FindByGatewayID returns the payment created for a gateway checkout or payment id.
func (r *PaymentRepository) FindByGatewayID(ctx context.Context, gatewayID string) (*models.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE asaas_payment_id = $1 ORDER BY created_at DESC LIMIT 1`
	var payment models.Payment
	if err := r.db.GetContext(ctx, &payment, query, gatewayID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find payment by gateway id: %w", err)
	}
	return &payment, nil
}

// FindActive returns the newest pending or waiting payment for the subject.
func (r *PaymentRepository) FindActive(ctx context.Context, kind models.PaymentKind, subjectID string) (*models.Payment, error) {
	query := fmt.Sprintf(`SELECT %s FROM payments WHERE %s = $1 AND kind = $2 AND status = ANY($3)
        ORDER BY created_at DESC LIMIT 1`, paymentColumns, subjectColumn(kind))
	var payment models.Payment
	if err := r.db.GetContext(ctx, &payment, query, subjectID, kind, statusArray(models.ActivePaymentStatuses)); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find active payment: %w", err)
	}
	return &payment, nil
}

// FindLatest returns the newest payment of any status for the subject.
func (r *PaymentRepository) FindLatest(ctx context.Context, kind models.PaymentKind, subjectID string) (*models.Payment, error) {
	query := fmt.Sprintf(`SELECT %s FROM payments WHERE %s = $1 AND kind = $2 ORDER BY created_at DESC LIMIT 1`,
		paymentColumns, subjectColumn(kind))
	var payment models.Payment
	if err := r.db.GetContext(ctx, &payment, query, subjectID, kind); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find latest payment: %w", err)
	}
	return &payment, nil
}

// SumSettledPreEnrollment totals confirmed and received pre-enrollment payments.
func (r *PaymentRepository) SumSettledPreEnrollment(ctx context.Context, preEnrollmentID string) (decimal.Decimal, error) {
	const query = `SELECT COALESCE(SUM(amount), 0) FROM payments
        WHERE pre_enrollment_id = $1 AND kind = $2 AND status = ANY($3)`
	var total decimal.Decimal
	if err := r.db.GetContext(ctx, &total, query, preEnrollmentID, models.PaymentKindPreEnrollment, statusArray(models.SettledPaymentStatuses)); err != nil {
		return decimal.Zero, fmt.Errorf("sum settled payments: %w", err)
	}
	return total, nil
}

// HasSettledPreEnrollment checks whether any settled pre-enrollment payment exists.
func (r *PaymentRepository) HasSettledPreEnrollment(ctx context.Context, preEnrollmentID string) (bool, error) {
	const query = `SELECT 1 FROM payments WHERE pre_enrollment_id = $1 AND kind = $2 AND status = ANY($3) LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, preEnrollmentID, models.PaymentKindPreEnrollment, statusArray(models.SettledPaymentStatuses)); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check settled payment: %w", err)
	}
	return true, nil
}

// Create persists a new payment record.
func (r *PaymentRepository) Create(ctx context.Context, payment *models.Payment) error {
	preparePayment(payment)
	const query = `INSERT INTO payments (id, kind, amount, status, asaas_payment_id, checkout_url, pre_enrollment_id,
        enrollment_id, paid_at, created_at, updated_at)
        VALUES (:id, :kind, :amount, :status, :asaas_payment_id, :checkout_url, :pre_enrollment_id,
        :enrollment_id, :paid_at, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, payment); err != nil {
		return fmt.Errorf("create payment: %w", err)
	}
	return nil
}

// CreateIfNoSettledPreEnrollment inserts a settled pre-enrollment payment only when no
// settled one exists, in a single statement. It reports whether the row was inserted.
func (r *PaymentRepository) CreateIfNoSettledPreEnrollment(ctx context.Context, payment *models.Payment) (bool, error) {
	preparePayment(payment)
	const query = `INSERT INTO payments (id, kind, amount, status, asaas_payment_id, checkout_url, pre_enrollment_id,
        enrollment_id, paid_at, created_at, updated_at)
        SELECT $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11
        WHERE NOT EXISTS (
            SELECT 1 FROM payments WHERE pre_enrollment_id = $7 AND kind = $2 AND status = ANY($12)
        )`
	res, err := r.db.ExecContext(ctx, query,
		payment.ID, payment.Kind, payment.Amount, payment.Status, payment.AsaasPaymentID, payment.CheckoutURL,
		payment.PreEnrollmentID, payment.EnrollmentID, payment.PaidAt, payment.CreatedAt, payment.UpdatedAt,
		statusArray(models.SettledPaymentStatuses))
	if err != nil {
		return false, fmt.Errorf("create healed payment: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("create healed payment rows: %w", err)
	}
	return affected > 0, nil
}

// TransitionStatus moves a payment from one status to another. The update only applies
// when the row still holds the expected status, so concurrent writers cannot clobber
// each other. It reports whether the row changed.
func (r *PaymentRepository) TransitionStatus(ctx context.Context, id string, from, to models.PaymentStatus, paidAt *time.Time) (bool, error) {
	const query = `UPDATE payments SET status = $3, paid_at = COALESCE(paid_at, $4), updated_at = NOW()
        WHERE id = $1 AND status = $2`
	res, err := r.db.ExecContext(ctx, query, id, from, to, paidAt)
	if err != nil {
		return false, fmt.Errorf("transition payment status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("transition payment status rows: %w", err)
	}
	return affected > 0, nil
}

func preparePayment(payment *models.Payment) {
	if payment.ID == "" {
		payment.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if payment.CreatedAt.IsZero() {
		payment.CreatedAt = now
	}
	if payment.UpdatedAt.IsZero() {
		payment.UpdatedAt = now
	}
	if payment.Status == "" {
		payment.Status = models.PaymentStatusPending
	}
}
