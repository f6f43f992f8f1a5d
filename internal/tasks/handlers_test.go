package tasks

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/hugh/go-assess/internal/database/models"
	"github.com/hugh/go-assess/internal/pipeline"
	"github.com/hugh/go-assess/internal/testutil"
	"github.com/hugh/go-assess/pkg/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// fakeQueue records enqueued tasks instead of talking to Redis.
type fakeQueue struct {
	mu    sync.Mutex
	tasks []*asynq.Task
	err   error
}

func (q *fakeQueue) EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	if q.err != nil {
		return nil, q.err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.tasks = append(q.tasks, task)
	return &asynq.TaskInfo{ID: uuid.NewString(), Type: task.Type(), Payload: task.Payload()}, nil
}

// fakeRunner returns a fixed result and remembers what it was asked.
type fakeRunner struct {
	result   pipeline.Result
	requests []pipeline.Request
}

func (r *fakeRunner) Run(ctx context.Context, req pipeline.Request) pipeline.Result {
	r.requests = append(r.requests, req)
	return r.result
}

func newTestHandler(db *gorm.DB, runner Runner, queue Enqueuer) *Handler {
	return NewHandler(db, util.NopLogger(), runner, queue, time.Minute)
}

func generateTask(t *testing.T, job *models.ReportJob) *asynq.Task {
	t.Helper()
	task, err := NewGenerateReportTask(GenerateReportPayload{JobID: job.ID, OrganizationID: job.OrganizationID}, time.Minute)
	require.NoError(t, err)
	return task
}

func loadJob(t *testing.T, db *gorm.DB, id uuid.UUID) models.ReportJob {
	t.Helper()
	var job models.ReportJob
	require.NoError(t, db.Where("id = ?", id).First(&job).Error)
	return job
}

// TestRegisterHandlers tests handler registration
func TestRegisterHandlers(t *testing.T) {
	setup := testutil.NewTestContext(t)
	handler := newTestHandler(setup.DB, &fakeRunner{}, &fakeQueue{})

	mux := asynq.NewServeMux()
	assert.NotPanics(t, func() {
		handler.RegisterHandlers(mux)
	})
}

func TestEnqueueReportJob(t *testing.T) {
	setup := testutil.NewTestContext(t)
	queue := &fakeQueue{}
	docID := uuid.New()

	job, err := EnqueueReportJob(context.Background(), setup.DB, queue, JobSpec{
		OrganizationID: setup.Org.ID,
		UserID:         setup.User.ID,
		DocumentIDs:    []uuid.UUID{docID},
		Format:         models.ReportFormatLaTeX,
	}, time.Minute)
	require.NoError(t, err)

	stored := loadJob(t, setup.DB, job.ID)
	assert.Equal(t, models.JobStatusPending, stored.Status)
	assert.Equal(t, models.JobTriggerManual, stored.Trigger)
	assert.Equal(t, []uuid.UUID{docID}, stored.DocumentIDs)
	assert.NotEmpty(t, stored.TaskID)

	require.Len(t, queue.tasks, 1)
	assert.Equal(t, TypeGenerateReport, queue.tasks[0].Type())
	var payload GenerateReportPayload
	require.NoError(t, json.Unmarshal(queue.tasks[0].Payload(), &payload))
	assert.Equal(t, job.ID, payload.JobID)
}

func TestEnqueueReportJob_QueueDown(t *testing.T) {
	setup := testutil.NewTestContext(t)
	queue := &fakeQueue{err: errors.New("dial tcp: connection refused")}

	job, err := EnqueueReportJob(context.Background(), setup.DB, queue, JobSpec{
		OrganizationID: setup.Org.ID,
		UserID:         setup.User.ID,
	}, time.Minute)
	require.ErrorIs(t, err, ErrQueueUnavailable)
	require.NotNil(t, job)

	stored := loadJob(t, setup.DB, job.ID)
	assert.Equal(t, models.JobStatusFailed, stored.Status)
	assert.NotContains(t, stored.Reason, "connection refused")
}

func TestEnqueueReportJob_QueueDownAndStatusWriteFails(t *testing.T) {
	setup := testutil.NewTestContext(t)
	queue := &fakeQueue{err: errors.New("dial tcp: connection refused")}

	var logs bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&logs, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })

	require.NoError(t, setup.DB.Callback().Update().Before("gorm:update").Register("test:fail_update", func(tx *gorm.DB) {
		_ = tx.AddError(errors.New("database is locked"))
	}))

	job, err := EnqueueReportJob(context.Background(), setup.DB, queue, JobSpec{
		OrganizationID: setup.Org.ID,
		UserID:         setup.User.ID,
	}, time.Minute)
	require.ErrorIs(t, err, ErrQueueUnavailable)
	assert.Contains(t, err.Error(), "recording queue failure: database is locked")
	require.NotNil(t, job)

	assert.Contains(t, logs.String(), "failed to mark unqueued report job as failed")
	assert.Contains(t, logs.String(), job.ID.String())
}

func TestHandleGenerateReport_InvalidPayload(t *testing.T) {
	setup := testutil.NewTestContext(t)
	handler := newTestHandler(setup.DB, &fakeRunner{}, &fakeQueue{})

	task := asynq.NewTask(TypeGenerateReport, []byte("invalid json"))

	err := handler.HandleGenerateReport(context.Background(), task)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unmarshal payload")
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

func TestHandleGenerateReport_UnknownJob(t *testing.T) {
	setup := testutil.NewTestContext(t)
	runner := &fakeRunner{}
	handler := newTestHandler(setup.DB, runner, &fakeQueue{})

	err := handler.HandleGenerateReport(context.Background(), generateTask(t, &models.ReportJob{Base: models.Base{ID: uuid.New()}}))
	assert.ErrorIs(t, err, asynq.SkipRetry)
	assert.Empty(t, runner.requests)
}

func TestHandleGenerateReport_Success(t *testing.T) {
	setup := testutil.NewTestContext(t)
	reportID := uuid.New()
	runner := &fakeRunner{result: pipeline.Result{OK: true, ReportID: reportID, RisksAdded: 3}}
	queue := &fakeQueue{}
	handler := newTestHandler(setup.DB, runner, queue)

	older := &models.SourceDocument{OrganizationID: setup.Org.ID, Name: "questionnaire.json", Kind: models.DocumentQuestionnaire, StorageKey: "k1"}
	require.NoError(t, setup.DB.Create(older).Error)
	newer := &models.SourceDocument{OrganizationID: setup.Org.ID, Name: "dig.json", Kind: models.DocumentDNS, StorageKey: "k2"}
	newer.CreatedAt = time.Now().Add(time.Second)
	require.NoError(t, setup.DB.Create(newer).Error)

	job, err := EnqueueReportJob(context.Background(), setup.DB, queue, JobSpec{
		OrganizationID: setup.Org.ID,
		UserID:         setup.User.ID,
		Persona:        "auditor",
	}, time.Minute)
	require.NoError(t, err)

	require.NoError(t, handler.HandleGenerateReport(context.Background(), queue.tasks[0]))

	require.Len(t, runner.requests, 1)
	req := runner.requests[0]
	assert.Equal(t, setup.Org.ID, req.OrganizationID)
	assert.Equal(t, setup.User.ID, req.UserID)
	assert.Equal(t, "auditor", req.Persona)
	require.Len(t, req.Sources, 2)
	assert.Equal(t, "questionnaire.json", req.Sources[0].Label)
	assert.Equal(t, "k1", req.Sources[0].Location)
	assert.Equal(t, "dig.json", req.Sources[1].Label)

	stored := loadJob(t, setup.DB, job.ID)
	assert.Equal(t, models.JobStatusCompleted, stored.Status)
	require.NotNil(t, stored.ReportID)
	assert.Equal(t, reportID, *stored.ReportID)
	assert.Equal(t, 3, stored.RisksAdded)
	assert.NotZero(t, stored.StartedAt)
	assert.NotZero(t, stored.CompletedAt)

	// A redelivered task does not run the pipeline twice.
	require.NoError(t, handler.HandleGenerateReport(context.Background(), queue.tasks[0]))
	assert.Len(t, runner.requests, 1)
}

func TestHandleGenerateReport_SelectedDocumentsOnly(t *testing.T) {
	setup := testutil.NewTestContext(t)
	runner := &fakeRunner{result: pipeline.Result{OK: true, ReportID: uuid.New()}}
	queue := &fakeQueue{}
	handler := newTestHandler(setup.DB, runner, queue)

	keep := &models.SourceDocument{OrganizationID: setup.Org.ID, Name: "scan.json", StorageKey: "keep"}
	skip := &models.SourceDocument{OrganizationID: setup.Org.ID, Name: "old.json", StorageKey: "skip"}
	require.NoError(t, setup.DB.Create(keep).Error)
	require.NoError(t, setup.DB.Create(skip).Error)

	_, err := EnqueueReportJob(context.Background(), setup.DB, queue, JobSpec{
		OrganizationID: setup.Org.ID,
		UserID:         setup.User.ID,
		DocumentIDs:    []uuid.UUID{keep.ID},
	}, time.Minute)
	require.NoError(t, err)

	require.NoError(t, handler.HandleGenerateReport(context.Background(), queue.tasks[0]))
	require.Len(t, runner.requests, 1)
	require.Len(t, runner.requests[0].Sources, 1)
	assert.Equal(t, "keep", runner.requests[0].Sources[0].Location)
}

func TestHandleGenerateReport_PipelineFailure(t *testing.T) {
	setup := testutil.NewTestContext(t)
	runner := &fakeRunner{result: pipeline.Result{
		Kind:   pipeline.KindReportGeneration,
		Reason: pipeline.KindReportGeneration.Reason(),
	}}
	queue := &fakeQueue{}
	handler := newTestHandler(setup.DB, runner, queue)

	job, err := EnqueueReportJob(context.Background(), setup.DB, queue, JobSpec{
		OrganizationID: setup.Org.ID,
		UserID:         setup.User.ID,
	}, time.Minute)
	require.NoError(t, err)

	err = handler.HandleGenerateReport(context.Background(), queue.tasks[0])
	assert.ErrorIs(t, err, asynq.SkipRetry)

	stored := loadJob(t, setup.DB, job.ID)
	assert.Equal(t, models.JobStatusFailed, stored.Status)
	assert.Equal(t, string(pipeline.KindReportGeneration), stored.FailureKind)
	assert.Equal(t, pipeline.KindReportGeneration.Reason(), stored.Reason)
	assert.Nil(t, stored.ReportID)
}

// TestHandleSchedulerTick tests scheduler tick with no due users
func TestHandleSchedulerTick(t *testing.T) {
	setup := testutil.NewTestContext(t)
	queue := &fakeQueue{}
	handler := newTestHandler(setup.DB, &fakeRunner{}, queue)

	task := asynq.NewTask(TypeSchedulerTick, []byte{})

	err := handler.HandleSchedulerTick(context.Background(), task)
	assert.NoError(t, err)
	assert.Empty(t, queue.tasks)
}

func TestHandleSchedulerTick_QueuesDueUsers(t *testing.T) {
	setup := testutil.NewTestContext(t)
	queue := &fakeQueue{}
	handler := newTestHandler(setup.DB, &fakeRunner{}, queue)
	now := time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC)
	handler.now = func() time.Time { return now }

	setAuto := func(u *models.User, freq models.AutoFrequency, next int64) {
		t.Helper()
		require.NoError(t, setup.DB.Model(u).Updates(map[string]interface{}{
			"auto_frequency":   freq,
			"next_auto_run_at": next,
		}).Error)
	}

	due := setup.User
	setAuto(due, models.FrequencyMonthly, now.Add(-time.Hour).Unix())

	notYet := testutil.CreateTestUser(t, setup.DB, setup.Org)
	setAuto(notYet, models.FrequencyYearly, now.Add(time.Hour).Unix())

	fresh := testutil.CreateTestUser(t, setup.DB, setup.Org)
	setAuto(fresh, models.FrequencyQuarterly, 0)

	noCap := testutil.CreateTestMember(t, setup.DB, setup.Org, models.CapViewRisk)
	setAuto(noCap, models.FrequencyMonthly, now.Add(-time.Hour).Unix())

	require.NoError(t, handler.HandleSchedulerTick(context.Background(), NewSchedulerTickTask()))

	require.Len(t, queue.tasks, 1)
	var payload GenerateReportPayload
	require.NoError(t, json.Unmarshal(queue.tasks[0].Payload(), &payload))
	job := loadJob(t, setup.DB, payload.JobID)
	assert.Equal(t, due.ID, job.UserID)
	assert.Equal(t, models.JobTriggerScheduled, job.Trigger)

	nextOf := func(u *models.User) int64 {
		var stored models.User
		require.NoError(t, setup.DB.Where("id = ?", u.ID).First(&stored).Error)
		return stored.NextAutoRunAt
	}
	assert.Equal(t, time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC).Unix(), nextOf(due))
	assert.Equal(t, now.Add(time.Hour).Unix(), nextOf(notYet))
	assert.Equal(t, time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC).Unix(), nextOf(fresh))
	assert.Equal(t, time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC).Unix(), nextOf(noCap))
}
