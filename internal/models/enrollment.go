package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// EnrollmentStatus represents the lifecycle of an enrollment.
type EnrollmentStatus string

// Possible enrollment statuses.
const (
	EnrollmentStatusPendingPayment EnrollmentStatus = "pending_payment"
	EnrollmentStatusActive         EnrollmentStatus = "active"
)

// EnrollmentPaymentStatus tracks whether the enrollment fee was settled.
type EnrollmentPaymentStatus string

// Possible enrollment payment statuses.
const (
	EnrollmentPaymentPending EnrollmentPaymentStatus = "pending"
	EnrollmentPaymentPaid    EnrollmentPaymentStatus = "paid"
)

// Enrollment is the binding course seat derived from an approved pre-enrollment.
// EnrollmentAmount is the authoritative record of what was actually charged.
type Enrollment struct {
	ID                  string                  `db:"id" json:"id"`
	PreEnrollmentID     string                  `db:"pre_enrollment_id" json:"pre_enrollment_id"`
	UserID              string                  `db:"user_id" json:"user_id"`
	CourseID            string                  `db:"course_id" json:"course_id"`
	Status              EnrollmentStatus        `db:"status" json:"status"`
	PaymentStatus       EnrollmentPaymentStatus `db:"payment_status" json:"payment_status"`
	EnrollmentAmount    *decimal.Decimal        `db:"enrollment_amount" json:"enrollment_amount,omitempty"`
	EnrollmentPaymentID *string                 `db:"enrollment_payment_id" json:"enrollment_payment_id,omitempty"`
	EnrollmentDate      *time.Time              `db:"enrollment_date" json:"enrollment_date,omitempty"`
	CreatedAt           time.Time               `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time               `db:"updated_at" json:"updated_at"`
}
