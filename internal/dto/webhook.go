package dto

import "github.com/shopspring/decimal"

// AsaasWebhookEvent is the notification posted by the gateway. Payment is present on
// payment events and validated only for the events that move a payment.
type AsaasWebhookEvent struct {
	ID      string               `json:"id"`
	Event   string               `json:"event" validate:"required"`
	Payment *AsaasWebhookPayment `json:"payment" validate:"-"`
}

// AsaasWebhookPayment is the subset of the gateway payment object used for reconciliation.
type AsaasWebhookPayment struct {
	ID                string          `json:"id" validate:"required"`
	CheckoutSession   string          `json:"checkoutSession"`
	ExternalReference string          `json:"externalReference"`
	Status            string          `json:"status"`
	Value             decimal.Decimal `json:"value" swaggertype:"number"`
	NetValue          decimal.Decimal `json:"netValue" swaggertype:"number"`
	BillingType       string          `json:"billingType"`
	PaymentDate       string          `json:"paymentDate"`
}
