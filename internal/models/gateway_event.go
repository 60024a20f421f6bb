package models

import "time"

// GatewayEvent journals one webhook delivery as received from the gateway.
type GatewayEvent struct {
	ID         string    `db:"id" json:"id"`
	Provider   string    `db:"provider" json:"provider"`
	EventType  string    `db:"event_type" json:"event_type"`
	GatewayID  string    `db:"gateway_id" json:"gateway_id"`
	PaymentID  *string   `db:"payment_id" json:"payment_id,omitempty"`
	Outcome    string    `db:"outcome" json:"outcome"`
	Payload    []byte    `db:"payload" json:"-"`
	ReceivedAt time.Time `db:"received_at" json:"received_at"`
}
