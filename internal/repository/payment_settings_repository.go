package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/course-enrollment-api/internal/models"
)

// PaymentSettingsRepository reads the operator-managed gateway configuration.
type PaymentSettingsRepository struct {
	db *sqlx.DB
}

// NewPaymentSettingsRepository constructs the repository.
func NewPaymentSettingsRepository(db *sqlx.DB) *PaymentSettingsRepository {
	return &PaymentSettingsRepository{db: db}
}

// Get returns the most recently updated settings row.
func (r *PaymentSettingsRepository) Get(ctx context.Context) (*models.PaymentSettings, error) {
	const query = `SELECT id, environment, api_key_sandbox, api_key_production, webhook_token, updated_at
        FROM payment_settings ORDER BY updated_at DESC LIMIT 1`
	var settings models.PaymentSettings
	if err := r.db.GetContext(ctx, &settings, query); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("get payment settings: %w", err)
	}
	return &settings, nil
}
