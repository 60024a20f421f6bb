package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/course-enrollment-api/internal/models"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "postgres"), mock, func() { db.Close() }
}

var paymentRowColumns = []string{"id", "kind", "amount", "status", "asaas_payment_id", "checkout_url", "pre_enrollment_id",
	"enrollment_id", "paid_at", "created_at", "updated_at"}

func TestPaymentRepositoryFindActiveUsesSubjectColumn(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewPaymentRepository(db)

	rows := sqlmock.NewRows(paymentRowColumns).
		AddRow("pay-1", "enrollment", 612.0, "pending", "chk-1", "https://pay/1", "pre-1", "enr-1", nil, time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("FROM payments WHERE enrollment_id = $1 AND kind = $2 AND status = ANY($3)")).
		WithArgs("enr-1", models.PaymentKindEnrollment, sqlmock.AnyArg()).
		WillReturnRows(rows)

	payment, err := repo.FindActive(context.Background(), models.PaymentKindEnrollment, "enr-1")
	require.NoError(t, err)
	assert.Equal(t, "pay-1", payment.ID)
	assert.Equal(t, models.PaymentStatusPending, payment.Status)
	require.NotNil(t, payment.AsaasPaymentID)
	assert.Equal(t, "chk-1", *payment.AsaasPaymentID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepositoryFindActiveNoRows(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewPaymentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM payments WHERE pre_enrollment_id = $1 AND kind = $2")).
		WithArgs("pre-1", models.PaymentKindPreEnrollment, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows(paymentRowColumns))

	_, err := repo.FindActive(context.Background(), models.PaymentKindPreEnrollment, "pre-1")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestPaymentRepositorySumSettledPreEnrollment(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewPaymentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COALESCE(SUM(amount), 0) FROM payments")).
		WithArgs("pre-1", models.PaymentKindPreEnrollment, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"sum"}).AddRow([]byte("67.30")))

	total, err := repo.SumSettledPreEnrollment(context.Background(), "pre-1")
	require.NoError(t, err)
	assert.Equal(t, "67.30", total.StringFixed(2))
}

func TestPaymentRepositoryCreateIfNoSettledSkipsExisting(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewPaymentRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("WHERE NOT EXISTS")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	inserted, err := repo.CreateIfNoSettledPreEnrollment(context.Background(), &models.Payment{
		Kind:            models.PaymentKindPreEnrollment,
		Amount:          decimal.NewFromInt(67),
		Status:          models.PaymentStatusConfirmed,
		PreEnrollmentID: "pre-1",
	})
	require.NoError(t, err)
	assert.False(t, inserted)
}

func TestPaymentRepositoryCreateAssignsDefaults(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewPaymentRepository(db)

	mock.ExpectExec("INSERT INTO payments").
		WillReturnResult(sqlmock.NewResult(1, 1))

	payment := &models.Payment{Kind: models.PaymentKindEnrollment, Amount: decimal.NewFromInt(612), PreEnrollmentID: "pre-1"}
	require.NoError(t, repo.Create(context.Background(), payment))
	assert.NotEmpty(t, payment.ID)
	assert.Equal(t, models.PaymentStatusPending, payment.Status)
	assert.False(t, payment.CreatedAt.IsZero())
}

func TestPaymentRepositoryTransitionStatusIsConditional(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewPaymentRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE payments SET status = $3")).
		WithArgs("pay-1", models.PaymentStatusPending, models.PaymentStatusCancelled, nil).
		WillReturnResult(sqlmock.NewResult(0, 0))

	changed, err := repo.TransitionStatus(context.Background(), "pay-1", models.PaymentStatusPending, models.PaymentStatusCancelled, nil)
	require.NoError(t, err)
	assert.False(t, changed)
	require.NoError(t, mock.ExpectationsWereMet())
}
