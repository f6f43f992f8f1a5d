package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/hugh/go-assess/internal/database/models"
	"gorm.io/gorm"
)

var ErrQueueUnavailable = errors.New("report queue unavailable")

// Enqueuer is satisfied by *asynq.Client.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// JobSpec is the scope of one requested report.
type JobSpec struct {
	OrganizationID uuid.UUID
	UserID         uuid.UUID
	DocumentIDs    []uuid.UUID
	Format         models.ReportFormat
	Persona        string
	Trigger        models.JobTrigger
}

// EnqueueReportJob records a pending job and queues it for a worker. When
// the queue rejects the task the job is marked failed and returned with
// ErrQueueUnavailable.
func EnqueueReportJob(ctx context.Context, db *gorm.DB, q Enqueuer, js JobSpec, timeout time.Duration) (*models.ReportJob, error) {
	if js.Trigger == "" {
		js.Trigger = models.JobTriggerManual
	}

	job := &models.ReportJob{
		OrganizationID: js.OrganizationID,
		UserID:         js.UserID,
		Status:         models.JobStatusPending,
		Trigger:        js.Trigger,
		DocumentIDs:    js.DocumentIDs,
		Format:         js.Format,
		Persona:        js.Persona,
	}
	if err := db.WithContext(ctx).Create(job).Error; err != nil {
		return nil, fmt.Errorf("creating report job: %w", err)
	}

	task, err := NewGenerateReportTask(GenerateReportPayload{
		JobID:          job.ID,
		OrganizationID: job.OrganizationID,
	}, timeout)
	if err != nil {
		return nil, fmt.Errorf("creating task: %w", err)
	}

	info, err := q.EnqueueContext(ctx, task)
	if err != nil {
		job.Status = models.JobStatusFailed
		job.Reason = "The report could not be queued. Please try again later."
		job.CompletedAt = time.Now().Unix()
		if updErr := db.WithContext(ctx).Model(job).Updates(map[string]interface{}{
			"status":       job.Status,
			"reason":       job.Reason,
			"completed_at": job.CompletedAt,
		}).Error; updErr != nil {
			slog.Default().ErrorContext(ctx, "failed to mark unqueued report job as failed",
				"job_id", job.ID,
				"error", updErr,
			)
			err = errors.Join(err, fmt.Errorf("recording queue failure: %w", updErr))
		}
		return job, fmt.Errorf("%w: %w", ErrQueueUnavailable, err)
	}

	job.TaskID = info.ID
	if err := db.WithContext(ctx).Model(job).Update("task_id", info.ID).Error; err != nil {
		return nil, fmt.Errorf("recording task id: %w", err)
	}
	return job, nil
}
