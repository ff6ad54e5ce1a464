package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/curricula-backend/internal/domain"
	"github.com/yungbote/curricula-backend/internal/importer"
	"github.com/yungbote/curricula-backend/internal/pkg/dbctx"
	"github.com/yungbote/curricula-backend/internal/platform/logger"
	"github.com/yungbote/curricula-backend/internal/repos"
	"github.com/yungbote/curricula-backend/internal/sse"
)

type ImportHandler struct {
	log  *logger.Logger
	orch *importer.Orchestrator
	jobs repos.ImportJobRepo
	hub  *sse.Hub
}

func NewImportHandler(log *logger.Logger, orch *importer.Orchestrator, jobs repos.ImportJobRepo, hub *sse.Hub) *ImportHandler {
	return &ImportHandler{
		log:  log.With("handler", "ImportHandler"),
		orch: orch,
		jobs: jobs,
		hub:  hub,
	}
}

// GET /api/import/sources
func (h *ImportHandler) GetSources(c *gin.Context) {
	RespondOK(c, gin.H{"sources": h.orch.Sources()})
}

// GET /api/import/sources/:source_id
func (h *ImportHandler) GetSource(c *gin.Context) {
	handler, ok := h.orch.Handler(c.Param("source_id"))
	if !ok {
		RespondError(c, http.StatusNotFound, "source_not_found", nil)
		return
	}
	RespondOK(c, gin.H{"source": handler.Source()})
}

// GET /api/import/sources/:source_id/courses?page=1&page_size=20
func (h *ImportHandler) GetCourses(c *gin.Context) {
	handler, ok := h.orch.Handler(c.Param("source_id"))
	if !ok {
		RespondError(c, http.StatusNotFound, "source_not_found", nil)
		return
	}
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	entries, total, err := handler.ListCourses(c.Request.Context(), page, pageSize)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	RespondOK(c, gin.H{"courses": entries, "total": total, "page": page, "page_size": pageSize})
}

// GET /api/import/sources/:source_id/search?q=...
func (h *ImportHandler) SearchCourses(c *gin.Context) {
	handler, ok := h.orch.Handler(c.Param("source_id"))
	if !ok {
		RespondError(c, http.StatusNotFound, "source_not_found", nil)
		return
	}
	hits, err := handler.SearchCourses(c.Request.Context(), c.Query("q"))
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	RespondOK(c, gin.H{"courses": hits})
}

// GET /api/import/sources/:source_id/courses/:course_id
func (h *ImportHandler) GetCourseDetail(c *gin.Context) {
	handler, ok := h.orch.Handler(c.Param("source_id"))
	if !ok {
		RespondError(c, http.StatusNotFound, "source_not_found", nil)
		return
	}
	detail, err := handler.GetCourse(c.Request.Context(), c.Param("course_id"))
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	// Surface the license verdict alongside the detail so clients can warn
	// before the user queues a doomed import.
	lic, licErr := handler.ValidateLicense(c.Request.Context(), c.Param("course_id"))
	if licErr != nil {
		h.log.Warn("license preview failed", "course_id", c.Param("course_id"), "error", licErr)
	}
	RespondOK(c, gin.H{"course": detail, "license_check": lic})
}

// POST /api/import/jobs
func (h *ImportHandler) StartImport(c *gin.Context) {
	var cfg domain.ImportConfig
	if err := c.ShouldBindJSON(&cfg); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	job, err := h.orch.CreateJob(c.Request.Context(), cfg)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"job": job})
}

// GET /api/import/jobs?status=&limit=&offset=
func (h *ImportHandler) ListImports(c *gin.Context) {
	status := domain.ImportStatus(c.Query("status"))
	if status != "" && !domain.ValidImportStatus(status) {
		RespondError(c, http.StatusBadRequest, "invalid_status", nil)
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	jobs, err := h.jobs.List(dbctx.Context{Ctx: c.Request.Context()}, status, limit, offset)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	RespondOK(c, gin.H{"jobs": jobs})
}

// GET /api/import/jobs/:id
func (h *ImportHandler) GetImport(c *gin.Context) {
	jobID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_job_id", err)
		return
	}
	job, err := h.jobs.GetByID(dbctx.Context{Ctx: c.Request.Context()}, jobID)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	RespondOK(c, gin.H{"job": job})
}

// DELETE /api/import/jobs/:id
func (h *ImportHandler) CancelImport(c *gin.Context) {
	jobID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_job_id", err)
		return
	}
	ok, err := h.orch.Cancel(c.Request.Context(), jobID)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	if !ok {
		RespondError(c, http.StatusConflict, "job_already_finished", nil)
		return
	}
	RespondOK(c, gin.H{"cancelled": true})
}

// GET /api/import/jobs/:id/events streams job progress over SSE.
func (h *ImportHandler) StreamImportEvents(c *gin.Context) {
	jobID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_job_id", err)
		return
	}
	if _, err := h.jobs.GetByID(dbctx.Context{Ctx: c.Request.Context()}, jobID); err != nil {
		RespondDomainError(c, err)
		return
	}
	client := h.hub.NewClient()
	h.hub.Subscribe(client, sse.JobChannel(jobID))
	defer h.hub.RemoveClient(client)
	h.hub.ServeHTTP(c.Writer, c.Request, client)
}
