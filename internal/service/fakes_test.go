package service

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/course-enrollment-api/internal/models"
)

func brl(value float64) decimal.Decimal { return decimal.NewFromFloat(value) }

func brlPtr(value float64) *decimal.Decimal {
	amount := brl(value)
	return &amount
}

func assertAmount(t *testing.T, want float64, got decimal.Decimal) {
	t.Helper()
	assert.Truef(t, brl(want).Equal(got), "expected %v, got %s", want, got)
}

type fakePaymentStore struct {
	mu       sync.Mutex
	payments map[string]*models.Payment
	seq      map[string]int
	next     int
	created  int
}

func newFakePaymentStore(initial ...*models.Payment) *fakePaymentStore {
	store := &fakePaymentStore{payments: map[string]*models.Payment{}, seq: map[string]int{}}
	for _, p := range initial {
		store.put(p)
	}
	return store
}

func (f *fakePaymentStore) put(p *models.Payment) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Status == "" {
		p.Status = models.PaymentStatusPending
	}
	f.next++
	clone := *p
	f.payments[p.ID] = &clone
	f.seq[p.ID] = f.next
}

func (f *fakePaymentStore) get(id string) *models.Payment {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.payments[id]
	if !ok {
		return nil
	}
	clone := *p
	return &clone
}

func (f *fakePaymentStore) newest(match func(*models.Payment) bool) (*models.Payment, error) {
	var best *models.Payment
	for id, p := range f.payments {
		if match(p) && (best == nil || f.seq[id] > f.seq[best.ID]) {
			best = p
		}
	}
	if best == nil {
		return nil, sql.ErrNoRows
	}
	clone := *best
	return &clone, nil
}

func (f *fakePaymentStore) FindByID(ctx context.Context, id string) (*models.Payment, error) {
	if p := f.get(id); p != nil {
		return p, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakePaymentStore) FindByGatewayID(ctx context.Context, gatewayID string) (*models.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.newest(func(p *models.Payment) bool {
		return p.AsaasPaymentID != nil && *p.AsaasPaymentID == gatewayID
	})
}

func (f *fakePaymentStore) FindActive(ctx context.Context, kind models.PaymentKind, subjectID string) (*models.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.newest(func(p *models.Payment) bool {
		return p.Kind == kind && p.SubjectID() == subjectID && p.Status.Active()
	})
}

func (f *fakePaymentStore) FindLatest(ctx context.Context, kind models.PaymentKind, subjectID string) (*models.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.newest(func(p *models.Payment) bool {
		return p.Kind == kind && p.SubjectID() == subjectID
	})
}

func (f *fakePaymentStore) SumSettledPreEnrollment(ctx context.Context, preEnrollmentID string) (decimal.Decimal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := decimal.Zero
	for _, p := range f.payments {
		if p.Kind == models.PaymentKindPreEnrollment && p.PreEnrollmentID == preEnrollmentID && p.Status.Settled() {
			total = total.Add(p.Amount)
		}
	}
	return total, nil
}

func (f *fakePaymentStore) HasSettledPreEnrollment(ctx context.Context, preEnrollmentID string) (bool, error) {
	total, _ := f.SumSettledPreEnrollment(ctx, preEnrollmentID)
	return total.IsPositive(), nil
}

func (f *fakePaymentStore) CreateIfNoSettledPreEnrollment(ctx context.Context, payment *models.Payment) (bool, error) {
	if has, _ := f.HasSettledPreEnrollment(ctx, payment.PreEnrollmentID); has {
		return false, nil
	}
	return true, f.Create(ctx, payment)
}

func (f *fakePaymentStore) Create(ctx context.Context, payment *models.Payment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if payment.ID == "" {
		payment.ID = uuid.NewString()
	}
	if _, exists := f.payments[payment.ID]; exists {
		return fmt.Errorf("duplicate payment id %s", payment.ID)
	}
	f.created++
	f.put(payment)
	return nil
}

func (f *fakePaymentStore) TransitionStatus(ctx context.Context, id string, from, to models.PaymentStatus, paidAt *time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.payments[id]
	if !ok || p.Status != from {
		return false, nil
	}
	p.Status = to
	if p.PaidAt == nil && paidAt != nil {
		stamp := *paidAt
		p.PaidAt = &stamp
	}
	return true, nil
}

func (f *fakePaymentStore) count(match func(*models.Payment) bool) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, p := range f.payments {
		if match(p) {
			n++
		}
	}
	return n
}

type fakePreEnrollmentRepo struct {
	mu        sync.Mutex
	items     map[string]*models.PreEnrollment
	confirmed []string
}

func (f *fakePreEnrollmentRepo) FindByID(ctx context.Context, id string) (*models.PreEnrollment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.items[id]; ok {
		clone := *p
		return &clone, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakePreEnrollmentRepo) MarkPaymentConfirmed(ctx context.Context, id string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.items[id]
	if !ok || p.Status.FeePaid() {
		return false, nil
	}
	p.Status = models.PreEnrollmentStatusPaymentConfirmed
	f.confirmed = append(f.confirmed, id)
	return true, nil
}

type fakeEnrollmentRepo struct {
	mu      sync.Mutex
	items   map[string]*models.Enrollment
	updates int
	paid    []string
}

func (f *fakeEnrollmentRepo) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if e, ok := f.items[id]; ok {
		clone := *e
		return &clone, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeEnrollmentRepo) FindByPreEnrollmentID(ctx context.Context, preEnrollmentID string) (*models.Enrollment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.items {
		if e.PreEnrollmentID == preEnrollmentID {
			clone := *e
			return &clone, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakeEnrollmentRepo) UpdateCheckoutAmount(ctx context.Context, id string, amount decimal.Decimal, gatewayID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.items[id]
	if !ok {
		return sql.ErrNoRows
	}
	e.EnrollmentAmount = &amount
	e.EnrollmentPaymentID = &gatewayID
	f.updates++
	return nil
}

func (f *fakeEnrollmentRepo) MarkPaid(ctx context.Context, id string, paidAt time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.items[id]
	if !ok || e.PaymentStatus == models.EnrollmentPaymentPaid {
		return false, nil
	}
	e.PaymentStatus = models.EnrollmentPaymentPaid
	e.Status = models.EnrollmentStatusActive
	if e.EnrollmentDate == nil {
		e.EnrollmentDate = &paidAt
	}
	f.paid = append(f.paid, id)
	return true, nil
}

type fakeCourseRepo struct {
	items map[string]*models.Course
}

func (f *fakeCourseRepo) FindByID(ctx context.Context, id string) (*models.Course, error) {
	if c, ok := f.items[id]; ok {
		clone := *c
		return &clone, nil
	}
	return nil, sql.ErrNoRows
}

type fakeGateway struct {
	mu       sync.Mutex
	calls    int
	lastSpec CheckoutSpec
	err      error
}

func (f *fakeGateway) CreateCheckout(ctx context.Context, settings models.PaymentSettings, spec CheckoutSpec) (*GatewaySession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.lastSpec = spec
	if f.err != nil {
		return nil, f.err
	}
	id := fmt.Sprintf("chk_%d", f.calls)
	return &GatewaySession{ID: id, URL: "https://sandbox.example/" + id}, nil
}

type fakeLocker struct {
	mu   sync.Mutex
	held map[string]bool
	err  error
}

func (f *fakeLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), bool, error) {
	if f.err != nil {
		return nil, false, f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.held == nil {
		f.held = map[string]bool{}
	}
	if f.held[key] {
		return nil, false, nil
	}
	f.held[key] = true
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.held, key)
	}, true, nil
}

type fakeRecorder struct {
	mu     sync.Mutex
	logs   []models.AuditLog
	events []models.GatewayEvent
}

func (f *fakeRecorder) Record(entry models.AuditLog) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logs = append(f.logs, entry)
}

func (f *fakeRecorder) RecordGatewayEvent(event models.GatewayEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
}

func (f *fakeRecorder) actions() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.logs))
	for i, l := range f.logs {
		out[i] = l.Action
	}
	return out
}
