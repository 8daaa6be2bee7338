// internal/server/handlers.go
package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/divrinavyas/google-form-submitter/internal/jobs"
	"github.com/divrinavyas/google-form-submitter/internal/submitter"
)

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "google-form-submitter",
	})
}

// handleSubmitForm accepts a form URL plus a spreadsheet upload and launches
// the run as a background job. The response carries the job id to poll.
func (s *Server) handleSubmitForm(c *gin.Context) {
	formURL, datasetPath, ok := s.acceptUpload(c)
	if !ok {
		return
	}

	jobID := s.store.Create()
	go s.runJob(jobID, formURL, datasetPath)

	c.JSON(http.StatusOK, gin.H{
		"job_id":  jobID,
		"status":  jobs.StatusPending,
		"message": "form submission started in background",
	})
}

func (s *Server) handleJobStatus(c *gin.Context) {
	rec, ok := s.store.Get(c.Param("job_id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		return
	}
	c.JSON(http.StatusOK, rec)
}

// handleSubmitFormSync runs the submission inline and returns the full
// result. Intended for small datasets; the request blocks for the whole run.
func (s *Server) handleSubmitFormSync(c *gin.Context) {
	formURL, datasetPath, ok := s.acceptUpload(c)
	if !ok {
		return
	}
	defer s.removeUpload(datasetPath)

	result, err := s.runner.Run(c.Request.Context(), formURL, datasetPath, nil)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, result)
}

// acceptUpload validates the request and stores the uploaded spreadsheet.
// On failure it writes the error response and returns ok=false.
func (s *Server) acceptUpload(c *gin.Context) (formURL, datasetPath string, ok bool) {
	formURL = c.PostForm("form_url")
	if !strings.Contains(formURL, "docs.google.com/forms") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "form_url must be a Google Forms URL"})
		return "", "", false
	}

	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing spreadsheet upload 'file'"})
		return "", "", false
	}
	ext := strings.ToLower(filepath.Ext(file.Filename))
	if ext != ".xlsx" && ext != ".xls" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file must be .xlsx or .xls"})
		return "", "", false
	}

	dir := s.cfg.Server.UploadDir
	if dir == "" {
		dir = os.TempDir()
	}
	datasetPath = filepath.Join(dir, fmt.Sprintf("%s_%s", uuid.NewString(), filepath.Base(file.Filename)))
	if err := c.SaveUploadedFile(file, datasetPath); err != nil {
		s.logger.Error("Failed to store uploaded spreadsheet.", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store upload"})
		return "", "", false
	}
	return formURL, datasetPath, true
}

// runJob executes one background run, keeping the job record current and
// cleaning up the uploaded file when done.
func (s *Server) runJob(jobID, formURL, datasetPath string) {
	defer s.removeUpload(datasetPath)

	// Serialize background runs; every run owns a full browser.
	if err := s.jobSlots.Acquire(context.Background(), 1); err != nil {
		s.store.Fail(jobID, fmt.Sprintf("could not schedule job: %v", err))
		return
	}
	defer s.jobSlots.Release(1)

	s.store.SetRunning(jobID)
	log := s.logger.With(zap.String("job_id", jobID))
	log.Info("Background run started.", zap.String("form_url", formURL))

	progress := func(current, total, success, fail int, message string) {
		s.store.SetProgress(jobID, jobs.ProgressSnapshot{
			CurrentRow:   current,
			TotalRows:    total,
			SuccessCount: success,
			FailCount:    fail,
			Message:      message,
		})
	}

	result, err := s.runner.Run(context.Background(), formURL, datasetPath, progress)
	if err != nil {
		log.Error("Background run failed.", zap.Error(err))
		s.store.Fail(jobID, err.Error())
		return
	}

	log.Info("Background run finished.",
		zap.Int("succeeded", result.SuccessCount),
		zap.Int("failed", result.FailCount))
	s.store.Complete(jobID, result)
}

func (s *Server) removeUpload(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		s.logger.Warn("Could not remove uploaded spreadsheet.", zap.String("path", path), zap.Error(err))
	}
}

var _ Runner = (*submitter.Submitter)(nil)
