package dto

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/course-enrollment-api/pkg/money"
)

// OptionalAmount accepts a JSON number, a numeric string (dot or comma decimal) or null.
// Zero, null and the empty string all mean "not supplied".
type OptionalAmount struct {
	Value decimal.Decimal
	Set   bool
}

// UnmarshalJSON implements json.Unmarshaler.
func (a *OptionalAmount) UnmarshalJSON(data []byte) error {
	*a = OptionalAmount{}
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}

	raw := string(trimmed)
	if trimmed[0] == '"' {
		if err := json.Unmarshal(trimmed, &raw); err != nil {
			return fmt.Errorf("override_amount: %w", err)
		}
		if strings.TrimSpace(raw) == "" {
			return nil
		}
	}

	value, err := money.Parse(raw)
	if err != nil {
		return fmt.Errorf("override_amount must be numeric, got %s", string(trimmed))
	}
	if value.IsZero() {
		return nil
	}
	a.Value = value
	a.Set = true
	return nil
}

// MarshalJSON implements json.Marshaler.
func (a OptionalAmount) MarshalJSON() ([]byte, error) {
	if !a.Set {
		return []byte("null"), nil
	}
	return json.Marshal(money.Float(a.Value))
}

// CheckoutRequest is the body accepted by both checkout entry points.
type CheckoutRequest struct {
	PreEnrollmentID  string         `json:"pre_enrollment_id" validate:"required,max=64"`
	EnrollmentID     string         `json:"enrollment_id" validate:"omitempty,max=64"`
	ForceRecalculate bool           `json:"force_recalculate"`
	OverrideAmount   OptionalAmount `json:"override_amount"`
}

// CheckoutResponse describes the checkout handed back to the student, plus the audit
// fields needed to explain which amount was charged and why.
type CheckoutResponse struct {
	CheckoutURL        string   `json:"checkout_url"`
	CheckoutID         string   `json:"checkout_id"`
	PaymentID          string   `json:"payment_id"`
	Kind               string   `json:"kind"`
	AppliedAmount      float64  `json:"applied_amount"`
	OriginalAmount     float64  `json:"original_amount"`
	Reason             string   `json:"reason"`
	Reused             bool     `json:"reused"`
	PaidTotal          float64  `json:"paid_total"`
	DBCandidate        *float64 `json:"db_candidate,omitempty"`
	PaymentsCandidate  *float64 `json:"payments_candidate,omitempty"`
	CancelledPaymentID string   `json:"cancelled_payment_id,omitempty"`
	Environment        string   `json:"environment"`
}

// CheckoutReturnResponse tells the front-end what happened after a gateway redirect.
type CheckoutReturnResponse struct {
	PaymentID string  `json:"payment_id"`
	Kind      string  `json:"kind"`
	Status    string  `json:"status"`
	Amount    float64 `json:"amount"`
	Paid      bool    `json:"paid"`
}

// DiscountPreviewResponse is the administrative dry-run of the enrollment amount decision.
type DiscountPreviewResponse struct {
	PreEnrollmentID   string   `json:"pre_enrollment_id"`
	CourseID          string   `json:"course_id"`
	OriginalAmount    float64  `json:"original_amount"`
	AppliedAmount     float64  `json:"applied_amount"`
	Reason            string   `json:"reason"`
	PaidTotal         float64  `json:"paid_total"`
	DBCandidate       *float64 `json:"db_candidate,omitempty"`
	PaymentsCandidate *float64 `json:"payments_candidate,omitempty"`
	HealPending       bool     `json:"heal_pending"`
	MinimumCharge     float64  `json:"minimum_charge"`
}
