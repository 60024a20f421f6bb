package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/course-enrollment-api/internal/models"
)

const preEnrollmentColumns = `id, user_id, course_id, full_name, cpf, email, phone, address, address_number,
        postal_code, neighborhood, city, status, manual_approval, created_at, updated_at`

// PreEnrollmentRepository handles persistence of pre-enrollments.
type PreEnrollmentRepository struct {
	db *sqlx.DB
}

// NewPreEnrollmentRepository constructs the repository.
func NewPreEnrollmentRepository(db *sqlx.DB) *PreEnrollmentRepository {
	return &PreEnrollmentRepository{db: db}
}

// FindByID returns a pre-enrollment by its ID.
func (r *PreEnrollmentRepository) FindByID(ctx context.Context, id string) (*models.PreEnrollment, error) {
	query := `SELECT ` + preEnrollmentColumns + ` FROM pre_enrollments WHERE id = $1`
	var pre models.PreEnrollment
	if err := r.db.GetContext(ctx, &pre, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find pre-enrollment: %w", err)
	}
	return &pre, nil
}

// MarkPaymentConfirmed moves the pre-enrollment to payment_confirmed unless it already
// reached that status or a later one. It reports whether a row changed.
func (r *PreEnrollmentRepository) MarkPaymentConfirmed(ctx context.Context, id string) (bool, error) {
	const query = `UPDATE pre_enrollments SET status = $2, updated_at = NOW()
        WHERE id = $1 AND NOT (status = ANY($3))`
	settled := pq.Array([]string{
		string(models.PreEnrollmentStatusPaymentConfirmed),
		string(models.PreEnrollmentStatusEnrolled),
		string(models.PreEnrollmentStatusWaitingOrganApproval),
	})
	res, err := r.db.ExecContext(ctx, query, id, models.PreEnrollmentStatusPaymentConfirmed, settled)
	if err != nil {
		return false, fmt.Errorf("confirm pre-enrollment payment: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("confirm pre-enrollment payment rows: %w", err)
	}
	return affected > 0, nil
}
