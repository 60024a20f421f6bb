package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/course-enrollment-api/internal/models"
	"github.com/noah-isme/course-enrollment-api/pkg/jobs"
)

const (
	jobTypeAuditLog     = "audit_log"
	jobTypeGatewayEvent = "gateway_event"
)

type auditRecorder interface {
	Record(entry models.AuditLog)
	RecordGatewayEvent(event models.GatewayEvent)
}

type auditRepository interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
	CreateGatewayEvent(ctx context.Context, event *models.GatewayEvent) error
}

type noopAuditRecorder struct{}

func (noopAuditRecorder) Record(models.AuditLog)                 {}
func (noopAuditRecorder) RecordGatewayEvent(models.GatewayEvent) {}

// AuditService writes audit rows and the gateway event journal in the background.
// Failures are logged and never surface to the request that produced the entry.
type AuditService struct {
	repo   auditRepository
	queue  *jobs.Queue
	logger *zap.Logger
}

// NewAuditService constructs the service and its worker queue.
func NewAuditService(repo auditRepository, logger *zap.Logger, cfg jobs.QueueConfig) *AuditService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Logger == nil {
		cfg.Logger = logger
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 500 * time.Millisecond
	}
	svc := &AuditService{repo: repo, logger: logger}
	svc.queue = jobs.NewQueue("audit", svc.handle, cfg)
	return svc
}

// Start launches the workers.
func (s *AuditService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop flushes buffered entries and stops the workers.
func (s *AuditService) Stop() {
	s.queue.Stop()
}

// Record queues an audit log row.
func (s *AuditService) Record(entry models.AuditLog) {
	s.enqueue(jobTypeAuditLog, entry.Action, &entry)
}

// RecordGatewayEvent queues a webhook journal row.
func (s *AuditService) RecordGatewayEvent(event models.GatewayEvent) {
	s.enqueue(jobTypeGatewayEvent, event.EventType, &event)
}

func (s *AuditService) enqueue(jobType, label string, payload interface{}) {
	if err := s.queue.Enqueue(jobs.Job{Type: jobType, Payload: payload}); err != nil {
		s.logger.Warn("audit entry dropped", zap.String("type", jobType), zap.String("label", label), zap.Error(err))
	}
}

func (s *AuditService) handle(ctx context.Context, job jobs.Job) error {
	switch payload := job.Payload.(type) {
	case *models.AuditLog:
		return s.repo.CreateAuditLog(ctx, payload)
	case *models.GatewayEvent:
		return s.repo.CreateGatewayEvent(ctx, payload)
	default:
		s.logger.Error("unknown audit job payload", zap.String("type", job.Type))
		return nil
	}
}

func auditJSON(values map[string]interface{}) []byte {
	data, err := json.Marshal(values)
	if err != nil {
		return []byte(fmt.Sprintf(`{"marshal_error":%q}`, err.Error()))
	}
	return data
}
