package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/course-enrollment-api/internal/models"
	"github.com/noah-isme/course-enrollment-api/pkg/jobs"
)

type mockAuditRepo struct {
	mu     sync.Mutex
	logs   []*models.AuditLog
	events []*models.GatewayEvent
}

func (m *mockAuditRepo) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logs = append(m.logs, log)
	return nil
}

func (m *mockAuditRepo) CreateGatewayEvent(ctx context.Context, event *models.GatewayEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return nil
}

func (m *mockAuditRepo) counts() (int, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.logs), len(m.events)
}

func TestAuditServiceWritesInBackground(t *testing.T) {
	repo := &mockAuditRepo{}
	svc := NewAuditService(repo, nil, jobs.QueueConfig{Workers: 1})
	svc.Start(context.Background())

	svc.Record(models.AuditLog{Action: models.AuditActionCheckoutCreated, Resource: "payment"})
	svc.RecordGatewayEvent(models.GatewayEvent{Provider: "asaas", EventType: "PAYMENT_CONFIRMED"})
	svc.Stop()

	logs, events := repo.counts()
	assert.Equal(t, 1, logs)
	assert.Equal(t, 1, events)
}

func TestAuditServiceDropsWhenStopped(t *testing.T) {
	repo := &mockAuditRepo{}
	svc := NewAuditService(repo, nil, jobs.QueueConfig{Workers: 1, RetryDelay: time.Millisecond})

	require.NotPanics(t, func() {
		svc.Record(models.AuditLog{Action: models.AuditActionCheckoutReused})
	})
	logs, _ := repo.counts()
	assert.Zero(t, logs)
}
