// Package audit delivers progress audit events through an asynq queue
package audit

import (
	"context"
	"encoding/json"

	"github.com/coursehub/progress-service/internal/models"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

const (
	// Queue is the asynq queue audit tasks are enqueued to
	Queue = "audit"

	TaskSectionCompleted  = "audit:section_completed"
	TaskCertificateIssued = "audit:certificate_issued"
)

// TaskEnqueuer is the subset of *asynq.Client the publisher uses
type TaskEnqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Publisher enqueues audit events for the worker
type Publisher struct {
	client TaskEnqueuer
	logger *zap.Logger
}

// NewPublisher creates a new asynq backed audit publisher
func NewPublisher(client TaskEnqueuer, logger *zap.Logger) *Publisher {
	return &Publisher{
		client: client,
		logger: logger,
	}
}

// Publish enqueues an event. Failures are logged and never reach the caller.
func (p *Publisher) Publish(ctx context.Context, event *models.AuditEvent) {
	if event == nil {
		return
	}

	payload, err := json.Marshal(event)
	if err != nil {
		p.logger.Error("failed to marshal audit event", zap.String("type", string(event.Type)), zap.Error(err))
		return
	}

	task := asynq.NewTask(TaskType(event.Type), payload)
	if _, err := p.client.EnqueueContext(ctx, task, asynq.Queue(Queue), asynq.MaxRetry(5)); err != nil {
		p.logger.Error("failed to enqueue audit event",
			zap.String("type", string(event.Type)),
			zap.Int("student_id", event.StudentID),
			zap.Int("course_id", event.CourseID),
			zap.Error(err),
		)
	}
}

// TaskType maps an event type to its asynq task type
func TaskType(eventType models.AuditEventType) string {
	switch eventType {
	case models.AuditEventCertificateIssued:
		return TaskCertificateIssued
	default:
		return TaskSectionCompleted
	}
}

// LogPublisher writes audit events to the log only.
// Used when no queue is configured.
type LogPublisher struct {
	Logger *zap.Logger
}

func (p LogPublisher) Publish(ctx context.Context, event *models.AuditEvent) {
	if event == nil || p.Logger == nil {
		return
	}
	p.Logger.Info("audit event",
		zap.String("type", string(event.Type)),
		zap.Int("student_id", event.StudentID),
		zap.Int("course_id", event.CourseID),
		zap.Int("section_id", event.SectionID),
		zap.Int("percentage", event.Percentage),
	)
}
