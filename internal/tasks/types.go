package tasks

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// Task type names
const (
	TypeGenerateReport = "report:generate"
	TypeSchedulerTick  = "scheduler:tick"
)

// Queue names, matching the weights in pkg/queue.
const (
	QueueCritical = "critical"
	QueueDefault  = "default"
	QueueLow      = "low"
)

// GenerateReportPayload points at the ReportJob row that holds the scope
// of the run.
type GenerateReportPayload struct {
	JobID          uuid.UUID `json:"job_id"`
	OrganizationID uuid.UUID `json:"organization_id"`
}

// NewGenerateReportTask builds a report task. The generation client retries
// internally, so asynq never retries a failed run.
func NewGenerateReportTask(payload GenerateReportPayload, timeout time.Duration) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	opts := []asynq.Option{asynq.Queue(QueueDefault), asynq.MaxRetry(0)}
	if timeout > 0 {
		opts = append(opts, asynq.Timeout(timeout))
	}
	return asynq.NewTask(TypeGenerateReport, data, opts...), nil
}

// SchedulerTickPayload is empty - the scheduler checks every user with
// automated reports turned on
type SchedulerTickPayload struct{}

func NewSchedulerTickTask() *asynq.Task {
	return asynq.NewTask(TypeSchedulerTick, nil, asynq.Queue(QueueLow), asynq.MaxRetry(0))
}
