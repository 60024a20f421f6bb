package models

import "time"

// PaymentEnvironment selects the gateway environment.
type PaymentEnvironment string

// Supported gateway environments.
const (
	PaymentEnvironmentSandbox    PaymentEnvironment = "sandbox"
	PaymentEnvironmentProduction PaymentEnvironment = "production"
)

// PaymentSettings is the operator-managed gateway configuration row. It is read once per
// request and passed by value so a request never observes a half-updated configuration.
type PaymentSettings struct {
	ID               string             `db:"id" json:"id"`
	Environment      PaymentEnvironment `db:"environment" json:"environment"`
	APIKeySandbox    *string            `db:"api_key_sandbox" json:"-"`
	APIKeyProduction *string            `db:"api_key_production" json:"-"`
	WebhookToken     *string            `db:"webhook_token" json:"-"`
	UpdatedAt        time.Time          `db:"updated_at" json:"updated_at"`
}

// Production reports whether the live gateway is selected.
func (s PaymentSettings) Production() bool {
	return s.Environment == PaymentEnvironmentProduction
}

// APIKey returns the key for the active environment.
func (s PaymentSettings) APIKey() string {
	key := s.APIKeySandbox
	if s.Production() {
		key = s.APIKeyProduction
	}
	if key == nil {
		return ""
	}
	return *key
}
