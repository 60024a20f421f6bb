package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/course-enrollment-api/internal/models"
)

const enrollmentColumns = `id, pre_enrollment_id, user_id, course_id, status, payment_status, enrollment_amount,
        enrollment_payment_id, enrollment_date, created_at, updated_at`

// EnrollmentRepository handles persistence of enrollments.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// FindByID returns an enrollment by its ID.
func (r *EnrollmentRepository) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	query := `SELECT ` + enrollmentColumns + ` FROM enrollments WHERE id = $1`
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find enrollment: %w", err)
	}
	return &enrollment, nil
}

// FindByPreEnrollmentID returns the enrollment derived from a pre-enrollment.
func (r *EnrollmentRepository) FindByPreEnrollmentID(ctx context.Context, preEnrollmentID string) (*models.Enrollment, error) {
	query := `SELECT ` + enrollmentColumns + ` FROM enrollments WHERE pre_enrollment_id = $1 ORDER BY created_at DESC LIMIT 1`
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, preEnrollmentID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find enrollment by pre-enrollment: %w", err)
	}
	return &enrollment, nil
}

// UpdateCheckoutAmount records the amount charged for the enrollment fee and the gateway reference.
func (r *EnrollmentRepository) UpdateCheckoutAmount(ctx context.Context, id string, amount decimal.Decimal, gatewayID string) error {
	const query = `UPDATE enrollments SET enrollment_amount = $2, enrollment_payment_id = $3, updated_at = NOW() WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, amount, gatewayID); err != nil {
		return fmt.Errorf("update enrollment amount: %w", err)
	}
	return nil
}

// MarkPaid activates the enrollment. The enrollment date is stamped only once and a
// second call on an already-active enrollment changes nothing.
func (r *EnrollmentRepository) MarkPaid(ctx context.Context, id string, paidAt time.Time) (bool, error) {
	const query = `UPDATE enrollments
        SET payment_status = $2, status = $3, enrollment_date = COALESCE(enrollment_date, $4), updated_at = NOW()
        WHERE id = $1 AND (payment_status <> $2 OR status <> $3 OR enrollment_date IS NULL)`
	res, err := r.db.ExecContext(ctx, query, id, models.EnrollmentPaymentPaid, models.EnrollmentStatusActive, paidAt)
	if err != nil {
		return false, fmt.Errorf("mark enrollment paid: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark enrollment paid rows: %w", err)
	}
	return affected > 0, nil
}
