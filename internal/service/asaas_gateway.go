package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/noah-isme/course-enrollment-api/internal/models"
	appErrors "github.com/noah-isme/course-enrollment-api/pkg/errors"
	"github.com/noah-isme/course-enrollment-api/pkg/money"
)

const (
	billingTypePix        = "PIX"
	billingTypeCreditCard = "CREDIT_CARD"
	chargeTypeDetached    = "DETACHED"

	hostedCheckoutSandbox    = "https://sandbox.asaas.com/checkoutSession/show?id="
	hostedCheckoutProduction = "https://www.asaas.com/checkoutSession/show?id="

	gatewayUserAgent    = "course-enrollment-api"
	maxUpstreamBodySize = 64 << 10
)

// Field limits accepted by the hosted checkout.
const (
	limitCustomerName    = 30
	limitAddress         = 60
	limitProvince        = 30
	limitCity            = 40
	limitItemName        = 30
	limitItemDescription = 150
)

// CheckoutCustomer is the payer identity taken from the pre-enrollment.
type CheckoutCustomer struct {
	Name          string
	Document      string
	Email         string
	Phone         string
	Address       string
	AddressNumber string
	PostalCode    string
	Province      string
	City          string
}

// CheckoutSpec describes one hosted checkout to create.
type CheckoutSpec struct {
	Kind              models.PaymentKind
	Amount            decimal.Decimal
	ItemName          string
	ItemDescription   string
	ExternalReference string
	Customer          CheckoutCustomer
	SuccessURL        string
	CancelURL         string
	ExpiredURL        string
}

// GatewaySession is the checkout created upstream.
type GatewaySession struct {
	ID  string
	URL string
}

// AsaasGatewayConfig holds the static gateway endpoints.
type AsaasGatewayConfig struct {
	SandboxURL      string
	ProductionURL   string
	Timeout         time.Duration
	MinutesToExpire int
}

type asaasCheckoutRequest struct {
	BillingTypes      []string          `json:"billingTypes" validate:"required,min=1,dive,oneof=PIX CREDIT_CARD"`
	ChargeTypes       []string          `json:"chargeTypes" validate:"required,min=1"`
	MinutesToExpire   int               `json:"minutesToExpire" validate:"gt=0"`
	ExternalReference string            `json:"externalReference,omitempty" validate:"max=100"`
	Callback          asaasCallback     `json:"callback"`
	Items             []asaasItem       `json:"items" validate:"required,min=1,dive"`
	CustomerData      asaasCustomerData `json:"customerData"`
}

type asaasCallback struct {
	SuccessURL string `json:"successUrl" validate:"required,url"`
	CancelURL  string `json:"cancelUrl" validate:"required,url"`
	ExpiredURL string `json:"expiredUrl" validate:"required,url"`
}

type asaasItem struct {
	Name        string  `json:"name" validate:"required,max=30"`
	Description string  `json:"description,omitempty" validate:"max=150"`
	Quantity    int     `json:"quantity" validate:"gte=1"`
	Value       float64 `json:"value" validate:"gt=0"`
}

type asaasCustomerData struct {
	Name          string `json:"name" validate:"required,max=30"`
	CpfCnpj       string `json:"cpfCnpj" validate:"required,numeric,len=11|len=14"`
	Email         string `json:"email,omitempty" validate:"omitempty,email"`
	Phone         string `json:"phone,omitempty" validate:"omitempty,numeric,min=10,max=11"`
	Address       string `json:"address,omitempty" validate:"max=60"`
	AddressNumber string `json:"addressNumber,omitempty" validate:"max=10"`
	PostalCode    string `json:"postalCode,omitempty" validate:"omitempty,numeric,len=8"`
	Province      string `json:"province,omitempty" validate:"max=30"`
	City          string `json:"city,omitempty" validate:"max=40"`
}

type asaasCheckoutResponse struct {
	ID   string `json:"id"`
	Link string `json:"link"`
}

// AsaasGateway creates hosted checkouts on the Asaas API.
type AsaasGateway struct {
	client    *http.Client
	config    AsaasGatewayConfig
	validator *validator.Validate
	metrics   *MetricsService
	logger    *zap.Logger
}

// NewAsaasGateway constructs the adapter. A nil client gets one with the configured timeout.
func NewAsaasGateway(cfg AsaasGatewayConfig, client *http.Client, validate *validator.Validate, metrics *MetricsService, logger *zap.Logger) *AsaasGateway {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.MinutesToExpire <= 0 {
		cfg.MinutesToExpire = 60
	}
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AsaasGateway{client: client, config: cfg, validator: validate, metrics: metrics, logger: logger}
}

// BillingTypes returns the payment methods offered for a checkout kind.
func BillingTypes(kind models.PaymentKind, production bool) []string {
	if kind == models.PaymentKindEnrollment && production {
		return []string{billingTypePix, billingTypeCreditCard}
	}
	return []string{billingTypePix}
}

// CreateCheckout repairs the payer fields, validates them and submits the checkout.
func (g *AsaasGateway) CreateCheckout(ctx context.Context, settings models.PaymentSettings, spec CheckoutSpec) (*GatewaySession, error) {
	apiKey := strings.TrimSpace(settings.APIKey())
	if apiKey == "" {
		return nil, appErrors.Clone(appErrors.ErrPaymentConfiguration, "gateway api key is not configured")
	}

	payload := g.buildRequest(settings, spec)
	if err := g.validator.Struct(payload); err != nil {
		return nil, gatewayValidationError(err)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode checkout request")
	}

	endpoint := g.baseURL(settings) + "/v3/checkouts"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to build checkout request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", gatewayUserAgent)
	req.Header.Set("access_token", apiKey)

	start := time.Now()
	resp, err := g.client.Do(req)
	if err != nil {
		g.metrics.ObserveGatewayCall("create_checkout", 0, time.Since(start))
		g.logger.Error("gateway request failed", zap.String("environment", string(settings.Environment)), zap.Error(err))
		return nil, appErrors.WithDetails(
			appErrors.Wrap(err, appErrors.ErrUpstreamGateway.Code, appErrors.ErrUpstreamGateway.Status, "payment gateway unreachable"),
			map[string]interface{}{"error": err.Error()},
		)
	}
	defer resp.Body.Close()
	g.metrics.ObserveGatewayCall("create_checkout", resp.StatusCode, time.Since(start))

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxUpstreamBodySize))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUpstreamGateway.Code, appErrors.ErrUpstreamGateway.Status, "failed to read gateway response")
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		g.logger.Warn("gateway rejected checkout",
			zap.Int("upstream_status", resp.StatusCode),
			zap.ByteString("upstream_body", raw),
			zap.String("external_reference", spec.ExternalReference),
		)
		return nil, appErrors.WithDetails(appErrors.ErrUpstreamGateway, map[string]interface{}{
			"upstream_status": resp.StatusCode,
			"upstream_body":   string(raw),
		})
	}

	var parsed asaasCheckoutResponse
	if err := json.Unmarshal(raw, &parsed); err != nil || parsed.ID == "" {
		return nil, appErrors.WithDetails(
			appErrors.Clone(appErrors.ErrUpstreamGateway, "payment gateway returned an unexpected body"),
			map[string]interface{}{"upstream_status": resp.StatusCode, "upstream_body": string(raw)},
		)
	}

	link := parsed.Link
	if link == "" {
		link = hostedCheckoutURL(settings.Production(), parsed.ID)
	}
	return &GatewaySession{ID: parsed.ID, URL: link}, nil
}

func (g *AsaasGateway) baseURL(settings models.PaymentSettings) string {
	if settings.Production() {
		return strings.TrimRight(g.config.ProductionURL, "/")
	}
	return strings.TrimRight(g.config.SandboxURL, "/")
}

func (g *AsaasGateway) buildRequest(settings models.PaymentSettings, spec CheckoutSpec) asaasCheckoutRequest {
	c := spec.Customer
	return asaasCheckoutRequest{
		BillingTypes:      BillingTypes(spec.Kind, settings.Production()),
		ChargeTypes:       []string{chargeTypeDetached},
		MinutesToExpire:   g.config.MinutesToExpire,
		ExternalReference: strings.TrimSpace(spec.ExternalReference),
		Callback: asaasCallback{
			SuccessURL: spec.SuccessURL,
			CancelURL:  spec.CancelURL,
			ExpiredURL: spec.ExpiredURL,
		},
		Items: []asaasItem{{
			Name:        truncate(collapseSpaces(spec.ItemName), limitItemName),
			Description: truncate(collapseSpaces(spec.ItemDescription), limitItemDescription),
			Quantity:    1,
			Value:       money.Float(spec.Amount),
		}},
		CustomerData: asaasCustomerData{
			Name:          truncate(collapseSpaces(c.Name), limitCustomerName),
			CpfCnpj:       digitsOnly(c.Document),
			Email:         strings.ToLower(strings.TrimSpace(c.Email)),
			Phone:         normalizePhone(c.Phone),
			Address:       truncate(collapseSpaces(c.Address), limitAddress),
			AddressNumber: truncate(collapseSpaces(c.AddressNumber), 10),
			PostalCode:    digitsOnly(c.PostalCode),
			Province:      truncate(collapseSpaces(c.Province), limitProvince),
			City:          truncate(collapseSpaces(c.City), limitCity),
		},
	}
}

func hostedCheckoutURL(production bool, id string) string {
	if production {
		return hostedCheckoutProduction + id
	}
	return hostedCheckoutSandbox + id
}

func gatewayValidationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid checkout payload")
	}
	fields := make(map[string]interface{}, len(verrs))
	for _, fe := range verrs {
		fields[fe.Namespace()] = fe.Tag()
	}
	return appErrors.WithDetails(
		appErrors.Clone(appErrors.ErrValidation, "payer data cannot be sent to the payment gateway"),
		map[string]interface{}{"fields": fields},
	)
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// truncate cuts s to at most limit runes without leaving trailing whitespace.
func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return strings.TrimRightFunc(string(runes[:limit]), unicode.IsSpace)
}

func digitsOnly(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// normalizePhone keeps digits and drops the Brazilian country prefix.
func normalizePhone(s string) string {
	digits := digitsOnly(s)
	if (len(digits) == 12 || len(digits) == 13) && strings.HasPrefix(digits, "55") {
		digits = digits[2:]
	}
	return digits
}
