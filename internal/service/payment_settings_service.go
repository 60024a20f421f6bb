package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/course-enrollment-api/internal/models"
	appErrors "github.com/noah-isme/course-enrollment-api/pkg/errors"
)

type paymentSettingsRepository interface {
	Get(ctx context.Context) (*models.PaymentSettings, error)
}

// PaymentSettingsService reads the gateway configuration once per request.
type PaymentSettingsService struct {
	repo                 paymentSettingsRepository
	logger               *zap.Logger
	fallbackWebhookToken string
}

// NewPaymentSettingsService constructs the service. fallbackWebhookToken is used when the
// settings row carries no webhook token of its own.
func NewPaymentSettingsService(repo paymentSettingsRepository, logger *zap.Logger, fallbackWebhookToken string) *PaymentSettingsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PaymentSettingsService{repo: repo, logger: logger, fallbackWebhookToken: fallbackWebhookToken}
}

// Load returns a snapshot of the settings. A missing row is a configuration error.
func (s *PaymentSettingsService) Load(ctx context.Context) (models.PaymentSettings, error) {
	settings, err := s.repo.Get(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.PaymentSettings{}, appErrors.Clone(appErrors.ErrPaymentConfiguration, "payment settings row is missing")
		}
		return models.PaymentSettings{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load payment settings")
	}
	return *settings, nil
}

// LoadForCheckout loads the settings and requires an API key for the active environment.
func (s *PaymentSettingsService) LoadForCheckout(ctx context.Context) (models.PaymentSettings, error) {
	settings, err := s.Load(ctx)
	if err != nil {
		return settings, err
	}
	if settings.Environment != models.PaymentEnvironmentSandbox && settings.Environment != models.PaymentEnvironmentProduction {
		return settings, appErrors.Clone(appErrors.ErrPaymentConfiguration, "payment environment must be sandbox or production")
	}
	if strings.TrimSpace(settings.APIKey()) == "" {
		return settings, appErrors.Clone(appErrors.ErrPaymentConfiguration, "gateway api key is not configured for "+string(settings.Environment))
	}
	return settings, nil
}

// WebhookSecret resolves the shared webhook secret, preferring the settings row.
func (s *PaymentSettingsService) WebhookSecret(settings models.PaymentSettings) string {
	if settings.WebhookToken != nil && strings.TrimSpace(*settings.WebhookToken) != "" {
		return strings.TrimSpace(*settings.WebhookToken)
	}
	return s.fallbackWebhookToken
}
