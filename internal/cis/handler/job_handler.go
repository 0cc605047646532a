package handler

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/luis314159/cis-demo/internal/cis/repository"
	"github.com/luis314159/cis-demo/internal/cis/service"
)

type JobHandler struct {
	progress *service.ProgressService
	jobRepo  *repository.JobRepository
}

func NewJobHandler(progress *service.ProgressService, jobRepo *repository.JobRepository) *JobHandler {
	return &JobHandler{progress: progress, jobRepo: jobRepo}
}

// List GET /jobs/list
func (h *JobHandler) List(c *gin.Context) {
	jobs, err := h.jobRepo.List(c.Request.Context())
	if err != nil {
		InternalError(c, "list jobs: "+err.Error())
		return
	}
	codes := make([]gin.H, 0, len(jobs))
	for _, job := range jobs {
		codes = append(codes, gin.H{"job_code": job.JobCode})
	}
	Success(c, gin.H{"items": codes})
}

// Available GET /jobs/job_available/:job_code
// True when the code is still free to use.
func (h *JobHandler) Available(c *gin.Context) {
	jobCode := c.Param("job_code")
	exists, err := h.jobRepo.ExistsByCode(c.Request.Context(), jobCode)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		InternalError(c, "check job code: "+err.Error())
		return
	}
	Success(c, gin.H{"job_code": jobCode, "available": !exists})
}

// Status GET /jobs/:job_code/status
func (h *JobHandler) Status(c *gin.Context) {
	jobCode := c.Param("job_code")
	status, err := h.progress.ComputeJobStatus(c.Request.Context(), jobCode)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	Success(c, status)
}

// ExportStatus GET /jobs/:job_code/status/export
// Streams the status view as an XLSX attachment.
func (h *JobHandler) ExportStatus(c *gin.Context) {
	jobCode := c.Param("job_code")
	f, filename, err := h.progress.ExportJobStatus(c.Request.Context(), jobCode)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	defer f.Close()

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Status(http.StatusOK)
	// Headers are already sent; a failed body write cannot be reported.
	f.Write(c.Writer)
}
