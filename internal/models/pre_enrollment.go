package models

import "time"

// PreEnrollmentStatus represents the lifecycle of a course application.
type PreEnrollmentStatus string

// Possible pre-enrollment statuses.
const (
	PreEnrollmentStatusPending              PreEnrollmentStatus = "pending"
	PreEnrollmentStatusApproved             PreEnrollmentStatus = "approved"
	PreEnrollmentStatusRejected             PreEnrollmentStatus = "rejected"
	PreEnrollmentStatusPendingPayment       PreEnrollmentStatus = "pending_payment"
	PreEnrollmentStatusPaymentConfirmed     PreEnrollmentStatus = "payment_confirmed"
	PreEnrollmentStatusEnrolled             PreEnrollmentStatus = "enrolled"
	PreEnrollmentStatusWaitingOrganApproval PreEnrollmentStatus = "waiting_organ_approval"
)

// FeePaid reports whether the status implies the pre-enrollment fee was already settled.
func (s PreEnrollmentStatus) FeePaid() bool {
	switch s {
	case PreEnrollmentStatusPaymentConfirmed, PreEnrollmentStatusEnrolled, PreEnrollmentStatusWaitingOrganApproval:
		return true
	}
	return false
}

// PreEnrollment is a prospective student's application to a course.
type PreEnrollment struct {
	ID             string              `db:"id" json:"id"`
	UserID         string              `db:"user_id" json:"user_id"`
	CourseID       string              `db:"course_id" json:"course_id"`
	FullName       string              `db:"full_name" json:"full_name"`
	CPF            string              `db:"cpf" json:"cpf"`
	Email          string              `db:"email" json:"email"`
	Phone          string              `db:"phone" json:"phone"`
	Address        string              `db:"address" json:"address"`
	AddressNumber  string              `db:"address_number" json:"address_number"`
	PostalCode     string              `db:"postal_code" json:"postal_code"`
	Neighborhood   string              `db:"neighborhood" json:"neighborhood"`
	City           string              `db:"city" json:"city"`
	Status         PreEnrollmentStatus `db:"status" json:"status"`
	ManualApproval bool                `db:"manual_approval" json:"manual_approval"`
	CreatedAt      time.Time           `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time           `db:"updated_at" json:"updated_at"`
}
