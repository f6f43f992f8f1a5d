package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/hugh/go-assess/internal/compiler"
	"github.com/hugh/go-assess/internal/database/models"
	"github.com/hugh/go-assess/internal/pipeline"
	"github.com/hugh/go-assess/pkg/util"
	"gorm.io/gorm"
)

// Runner executes one pipeline invocation. *pipeline.Pipeline satisfies it.
type Runner interface {
	Run(ctx context.Context, req pipeline.Request) pipeline.Result
}

type Handler struct {
	db         *gorm.DB
	logger     *slog.Logger
	runner     Runner
	queue      Enqueuer
	jobTimeout time.Duration
	now        func() time.Time
}

func NewHandler(db *gorm.DB, logger *slog.Logger, runner Runner, queue Enqueuer, jobTimeout time.Duration) *Handler {
	return &Handler{
		db:         db,
		logger:     logger,
		runner:     runner,
		queue:      queue,
		jobTimeout: jobTimeout,
		now:        time.Now,
	}
}

func (h *Handler) RegisterHandlers(mux *asynq.ServeMux) {
	mux.HandleFunc(TypeGenerateReport, h.HandleGenerateReport)
	mux.HandleFunc(TypeSchedulerTick, h.HandleSchedulerTick)
}

func (h *Handler) HandleGenerateReport(ctx context.Context, t *asynq.Task) error {
	var payload GenerateReportPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %v: %w", err, asynq.SkipRetry)
	}

	var job models.ReportJob
	if err := h.db.WithContext(ctx).Where("id = ?", payload.JobID).First(&job).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("report job %s not found: %w", payload.JobID, asynq.SkipRetry)
		}
		return fmt.Errorf("loading report job: %w", err)
	}

	if job.Status != models.JobStatusPending {
		h.logger.Warn("skipping report job that already ran", "job_id", job.ID, "status", job.Status)
		return nil
	}

	h.logger.Info("starting report generation",
		"job_id", job.ID,
		"org_id", job.OrganizationID,
		"trigger", job.Trigger,
		"documents", len(job.DocumentIDs),
	)

	if err := h.updateJobStatus(job.ID, models.JobStatusRunning); err != nil {
		return err
	}

	sources, err := h.documentSources(ctx, job.OrganizationID, job.DocumentIDs)
	if err != nil {
		h.logger.Error("failed to load documents", "job_id", job.ID, "error", err)
		if updateErr := h.updateJobFailed(job.ID, "documents_unavailable", "The source documents could not be loaded."); updateErr != nil {
			h.logger.Error("failed to update job status", "error", updateErr)
		}
		return err
	}

	res := h.runner.Run(ctx, pipeline.Request{
		OrganizationID: job.OrganizationID,
		UserID:         job.UserID,
		Sources:        sources,
		Persona:        job.Persona,
		Format:         job.Format,
	})

	if !res.OK {
		if err := h.updateJobFailed(job.ID, string(res.Kind), res.Reason); err != nil {
			h.logger.Error("failed to update job status", "error", err)
		}
		return fmt.Errorf("report job %s: %s: %w", job.ID, res.Kind, asynq.SkipRetry)
	}

	if err := h.updateJobWithResults(job.ID, res.ReportID, res.RisksAdded); err != nil {
		return err
	}

	h.logger.Info("completed report generation",
		"job_id", job.ID,
		"report_id", res.ReportID,
		"risks_added", res.RisksAdded,
		"duration", res.Duration,
	)
	return nil
}

// documentSources loads the requested documents, or every document the
// organization has when ids is empty, oldest first.
func (h *Handler) documentSources(ctx context.Context, orgID uuid.UUID, ids []uuid.UUID) ([]compiler.Source, error) {
	query := h.db.WithContext(ctx).Where("organization_id = ?", orgID)
	if len(ids) > 0 {
		query = query.Where("id IN ?", ids)
	}

	var docs []models.SourceDocument
	if err := query.Order("created_at ASC").Find(&docs).Error; err != nil {
		return nil, fmt.Errorf("loading documents: %w", err)
	}

	sources := make([]compiler.Source, len(docs))
	for i, d := range docs {
		sources[i] = compiler.Source{Label: d.Name, Location: d.StorageKey}
	}
	return sources, nil
}

var automatedFrequencies = []string{
	string(models.FrequencyMonthly),
	string(models.FrequencyQuarterly),
	string(models.FrequencyYearly),
}

// HandleSchedulerTick queues a report for every user whose automated run
// is due and moves their next run forward.
func (h *Handler) HandleSchedulerTick(ctx context.Context, t *asynq.Task) error {
	now := h.now()

	var users []models.User
	err := h.db.WithContext(ctx).
		Where("auto_frequency IN ? AND is_active = ? AND organization_id IS NOT NULL",
			automatedFrequencies, true).
		Where("next_auto_run_at <= ?", now.Unix()).
		Find(&users).Error
	if err != nil {
		return fmt.Errorf("loading scheduled users: %w", err)
	}

	queued := 0
	for _, user := range users {
		next, err := util.NextRunUnix(user.AutoFrequency.CronExpr(), now)
		if err != nil {
			h.logger.Error("invalid automation schedule", "user_id", user.ID, "frequency", user.AutoFrequency, "error", err)
			continue
		}

		// First sighting only sets the schedule.
		if user.NextAutoRunAt == 0 {
			if err := h.setNextRun(ctx, user.ID, next); err != nil {
				h.logger.Error("failed to schedule automated report", "user_id", user.ID, "error", err)
			}
			continue
		}

		if !user.Has(models.CapGenerateReport) {
			h.logger.Warn("skipping automated report for user without generate_report", "user_id", user.ID)
		} else {
			_, err := EnqueueReportJob(ctx, h.db, h.queue, JobSpec{
				OrganizationID: user.OrgID(),
				UserID:         user.ID,
				Trigger:        models.JobTriggerScheduled,
			}, h.jobTimeout)
			if err != nil {
				h.logger.Error("failed to queue automated report", "user_id", user.ID, "error", err)
				continue
			}
			queued++
		}

		if err := h.setNextRun(ctx, user.ID, next); err != nil {
			h.logger.Error("failed to advance automated report", "user_id", user.ID, "error", err)
		}
	}

	if queued > 0 {
		h.logger.Info("queued automated reports", "count", queued)
	}
	return nil
}

func (h *Handler) setNextRun(ctx context.Context, userID uuid.UUID, next int64) error {
	return h.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", userID).
		Update("next_auto_run_at", next).Error
}

func (h *Handler) updateJobStatus(jobID uuid.UUID, status models.JobStatus) error {
	updates := map[string]interface{}{
		"status":     status,
		"updated_at": time.Now(),
	}

	if status == models.JobStatusRunning {
		updates["started_at"] = time.Now().Unix()
	} else if status == models.JobStatusCompleted || status == models.JobStatusFailed {
		updates["completed_at"] = time.Now().Unix()
	}

	return h.db.Model(&models.ReportJob{}).Where("id = ?", jobID).Updates(updates).Error
}

func (h *Handler) updateJobFailed(jobID uuid.UUID, kind, reason string) error {
	updates := map[string]interface{}{
		"status":       models.JobStatusFailed,
		"failure_kind": kind,
		"reason":       reason,
		"updated_at":   time.Now(),
		"completed_at": time.Now().Unix(),
	}

	return h.db.Model(&models.ReportJob{}).Where("id = ?", jobID).Updates(updates).Error
}

func (h *Handler) updateJobWithResults(jobID uuid.UUID, reportID uuid.UUID, risksAdded int) error {
	updates := map[string]interface{}{
		"status":       models.JobStatusCompleted,
		"report_id":    reportID,
		"risks_added":  risksAdded,
		"updated_at":   time.Now(),
		"completed_at": time.Now().Unix(),
	}

	return h.db.Model(&models.ReportJob{}).Where("id = ?", jobID).Updates(updates).Error
}
