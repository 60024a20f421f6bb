package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentKind identifies which fee a payment settles.
type PaymentKind string

// Supported payment kinds.
const (
	PaymentKindPreEnrollment PaymentKind = "pre_enrollment"
	PaymentKindEnrollment    PaymentKind = "enrollment"
)

// Valid reports whether k is a known kind.
func (k PaymentKind) Valid() bool {
	return k == PaymentKindPreEnrollment || k == PaymentKindEnrollment
}

// PaymentStatus mirrors the gateway payment lifecycle.
type PaymentStatus string

// Possible payment statuses.
const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusWaiting   PaymentStatus = "waiting"
	PaymentStatusConfirmed PaymentStatus = "confirmed"
	PaymentStatusReceived  PaymentStatus = "received"
	PaymentStatusOverdue   PaymentStatus = "overdue"
	PaymentStatusRefunded  PaymentStatus = "refunded"
	PaymentStatusCancelled PaymentStatus = "cancelled"
)

// ActivePaymentStatuses are the statuses of a checkout still awaiting the student.
var ActivePaymentStatuses = []PaymentStatus{PaymentStatusPending, PaymentStatusWaiting}

// SettledPaymentStatuses are the statuses that count as money received.
var SettledPaymentStatuses = []PaymentStatus{PaymentStatusConfirmed, PaymentStatusReceived}

// Active reports whether the payment is an open checkout.
func (s PaymentStatus) Active() bool {
	return s == PaymentStatusPending || s == PaymentStatusWaiting
}

// Settled reports whether the payment represents received funds.
func (s PaymentStatus) Settled() bool {
	return s == PaymentStatusConfirmed || s == PaymentStatusReceived
}

// Payment is one checkout attempt against the gateway.
type Payment struct {
	ID              string          `db:"id" json:"id"`
	Kind            PaymentKind     `db:"kind" json:"kind"`
	Amount          decimal.Decimal `db:"amount" json:"amount"`
	Status          PaymentStatus   `db:"status" json:"status"`
	AsaasPaymentID  *string         `db:"asaas_payment_id" json:"asaas_payment_id,omitempty"`
	CheckoutURL     *string         `db:"checkout_url" json:"checkout_url,omitempty"`
	PreEnrollmentID string          `db:"pre_enrollment_id" json:"pre_enrollment_id"`
	EnrollmentID    *string         `db:"enrollment_id" json:"enrollment_id,omitempty"`
	PaidAt          *time.Time      `db:"paid_at" json:"paid_at,omitempty"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time       `db:"updated_at" json:"updated_at"`
}

// SubjectID returns the id of the record this payment settles.
func (p *Payment) SubjectID() string {
	if p.Kind == PaymentKindEnrollment && p.EnrollmentID != nil {
		return *p.EnrollmentID
	}
	return p.PreEnrollmentID
}
