// internal/server/server_test.go
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/divrinavyas/google-form-submitter/internal/config"
	"github.com/divrinavyas/google-form-submitter/internal/jobs"
	"github.com/divrinavyas/google-form-submitter/internal/submitter"
)

const testFormURL = "https://docs.google.com/forms/d/e/abc123/viewform"

// fakeRunner satisfies Runner without a browser.
type fakeRunner struct {
	mu     sync.Mutex
	calls  int
	result *submitter.RunResult
	err    error
	// done is closed after the first Run returns, letting tests wait for the
	// background goroutine.
	done chan struct{}
	once sync.Once
}

func (f *fakeRunner) Run(ctx context.Context, formURL, datasetPath string, progress submitter.Progress) (*submitter.RunResult, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()

	if progress != nil && f.result != nil {
		progress(f.result.TotalRows, f.result.TotalRows, f.result.SuccessCount, f.result.FailCount, "done")
	}
	defer f.once.Do(func() {
		if f.done != nil {
			close(f.done)
		}
	})
	return f.result, f.err
}

func newTestServer(t *testing.T, runner Runner) (*Server, *jobs.Store) {
	t.Helper()
	cfg := config.NewDefaultConfig()
	cfg.Server.UploadDir = t.TempDir()
	store := jobs.NewStore()
	return New(cfg, zap.NewNop(), runner, store), store
}

func uploadRequest(t *testing.T, target, formURL string, filename string) *http.Request {
	t.Helper()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	require.NoError(t, writer.WriteField("form_url", formURL))
	if filename != "" {
		part, err := writer.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = part.Write([]byte("not a real workbook, never parsed by fakes"))
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, target, &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func TestHealthEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, &fakeRunner{})
	rec := httptest.NewRecorder()

	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ok"`)
}

func TestSubmitFormRejectsNonFormsURL(t *testing.T) {
	srv, _ := newTestServer(t, &fakeRunner{})
	rec := httptest.NewRecorder()

	srv.Router().ServeHTTP(rec, uploadRequest(t, "/submit-form", "https://example.com/form", "rows.xlsx"))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Google Forms")
}

func TestSubmitFormRejectsWrongExtension(t *testing.T) {
	srv, _ := newTestServer(t, &fakeRunner{})
	rec := httptest.NewRecorder()

	srv.Router().ServeHTTP(rec, uploadRequest(t, "/submit-form", testFormURL, "rows.csv"))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), ".xlsx")
}

func TestSubmitFormRejectsMissingFile(t *testing.T) {
	srv, _ := newTestServer(t, &fakeRunner{})
	rec := httptest.NewRecorder()

	srv.Router().ServeHTTP(rec, uploadRequest(t, "/submit-form", testFormURL, ""))

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSubmitFormRunsJobInBackground(t *testing.T) {
	runner := &fakeRunner{
		result: &submitter.RunResult{TotalRows: 2, SuccessCount: 2},
		done:   make(chan struct{}),
	}
	srv, store := newTestServer(t, runner)
	rec := httptest.NewRecorder()

	srv.Router().ServeHTTP(rec, uploadRequest(t, "/submit-form", testFormURL, "rows.xlsx"))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		JobID  string `json:"job_id"`
		Status string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.JobID)
	assert.Equal(t, string(jobs.StatusPending), resp.Status)

	select {
	case <-runner.done:
	case <-time.After(5 * time.Second):
		t.Fatal("background job never ran")
	}

	// The store update follows Run returning; poll briefly.
	require.Eventually(t, func() bool {
		job, ok := store.Get(resp.JobID)
		return ok && job.Status == jobs.StatusCompleted
	}, 5*time.Second, 10*time.Millisecond)

	job, _ := store.Get(resp.JobID)
	require.NotNil(t, job.Result)
	assert.Equal(t, 2, job.Result.SuccessCount)
	require.NotNil(t, job.Progress)
	assert.Equal(t, 2, job.Progress.TotalRows)
}

func TestSubmitFormBackgroundFailureMarksJobFailed(t *testing.T) {
	runner := &fakeRunner{err: assert.AnError, done: make(chan struct{})}
	srv, store := newTestServer(t, runner)
	rec := httptest.NewRecorder()

	srv.Router().ServeHTTP(rec, uploadRequest(t, "/submit-form", testFormURL, "rows.xlsx"))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		JobID string `json:"job_id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	<-runner.done
	require.Eventually(t, func() bool {
		job, ok := store.Get(resp.JobID)
		return ok && job.Status == jobs.StatusFailed
	}, 5*time.Second, 10*time.Millisecond)
}

func TestJobStatusUnknownJob(t *testing.T) {
	srv, _ := newTestServer(t, &fakeRunner{})
	rec := httptest.NewRecorder()

	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status/does-not-exist", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSubmitFormSyncReturnsResult(t *testing.T) {
	runner := &fakeRunner{
		result: &submitter.RunResult{TotalRows: 3, SuccessCount: 2, FailCount: 1, Errors: []string{"row 2: confirmation not received after submit"}},
	}
	srv, _ := newTestServer(t, runner)
	rec := httptest.NewRecorder()

	srv.Router().ServeHTTP(rec, uploadRequest(t, "/submit-form-sync", testFormURL, "rows.xlsx"))

	require.Equal(t, http.StatusOK, rec.Code)
	var result submitter.RunResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, 3, result.TotalRows)
	assert.Equal(t, 1, result.FailCount)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, 1, runner.calls)
}

func TestSubmitFormSyncPropagatesRunError(t *testing.T) {
	runner := &fakeRunner{err: submitter.ErrNoFieldsMapped}
	srv, _ := newTestServer(t, runner)
	rec := httptest.NewRecorder()

	srv.Router().ServeHTTP(rec, uploadRequest(t, "/submit-form-sync", testFormURL, "rows.xlsx"))

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "no form fields mapped")
}
