package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPreEnrollmentStatusFeePaid(t *testing.T) {
	assert.True(t, PreEnrollmentStatusPaymentConfirmed.FeePaid())
	assert.True(t, PreEnrollmentStatusEnrolled.FeePaid())
	assert.True(t, PreEnrollmentStatusWaitingOrganApproval.FeePaid())
	assert.False(t, PreEnrollmentStatusApproved.FeePaid())
	assert.False(t, PreEnrollmentStatusPendingPayment.FeePaid())
}

func TestPaymentStatusClassification(t *testing.T) {
	assert.True(t, PaymentStatusPending.Active())
	assert.True(t, PaymentStatusWaiting.Active())
	assert.False(t, PaymentStatusCancelled.Active())
	assert.True(t, PaymentStatusReceived.Settled())
	assert.False(t, PaymentStatusRefunded.Settled())
}

func TestPaymentSubjectID(t *testing.T) {
	enrollmentID := "enr-1"
	p := Payment{Kind: PaymentKindEnrollment, PreEnrollmentID: "pre-1", EnrollmentID: &enrollmentID}
	assert.Equal(t, "enr-1", p.SubjectID())

	p = Payment{Kind: PaymentKindPreEnrollment, PreEnrollmentID: "pre-1"}
	assert.Equal(t, "pre-1", p.SubjectID())
}

func TestPaymentSettingsAPIKey(t *testing.T) {
	sandbox, production := "sbx", "prd"
	s := PaymentSettings{Environment: PaymentEnvironmentSandbox, APIKeySandbox: &sandbox, APIKeyProduction: &production}
	assert.Equal(t, "sbx", s.APIKey())

	s.Environment = PaymentEnvironmentProduction
	assert.Equal(t, "prd", s.APIKey())

	s.APIKeyProduction = nil
	assert.Empty(t, s.APIKey())
}
