package handlers_test

import (
	"bytes"
	"context"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/hugh/go-assess/internal/api"
	"github.com/hugh/go-assess/internal/artifacts"
	"github.com/hugh/go-assess/internal/auth"
	"github.com/hugh/go-assess/internal/database/models"
	"github.com/hugh/go-assess/internal/testutil"
	"github.com/hugh/go-assess/pkg/util"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

var errQueueDown = errors.New("redis: connection refused")

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

type testAPI struct {
	*testutil.TestSetup
	Router http.Handler
	Queue  *fakeQueue
	Store  artifacts.Store
}

func setupTestAPI(t *testing.T) *testAPI {
	t.Helper()

	tc := testutil.NewTestContext(t)
	queue := &fakeQueue{}
	store := artifacts.NewFSStore(afero.NewMemMapFs())

	router := api.NewRouter(api.RouterConfig{
		DB:           tc.DB,
		Logger:       util.NopLogger(),
		JWTService:   tc.JWTService,
		AuthService:  auth.NewService(tc.DB, tc.JWTService),
		Queue:        queue,
		Store:        store,
		ReportFormat: models.ReportFormatJSON,
		JobTimeout:   time.Minute,
	})

	return &testAPI{TestSetup: tc, Router: router, Queue: queue, Store: store}
}

func (a *testAPI) do(req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	a.Router.ServeHTTP(rr, req)
	return rr
}

// member creates a user in the test organization with caps and returns a
// token for them.
func (a *testAPI) member(t *testing.T, caps ...models.Capability) (*models.User, string) {
	t.Helper()
	user := testutil.CreateTestMember(t, a.DB, a.Org, caps...)
	return user, testutil.GenerateTestToken(t, a.JWTService, user)
}

func multipartRequest(t *testing.T, path, filename, kind string, content []byte, token string) *http.Request {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if kind != "" {
		require.NoError(t, mw.WriteField("kind", kind))
	}
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = fw.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}
