package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/curricula-backend/internal/domain"
	"github.com/yungbote/curricula-backend/internal/pkg/dbctx"
	"github.com/yungbote/curricula-backend/internal/platform/logger"
	"github.com/yungbote/curricula-backend/internal/repos"
)

type DocumentHandler struct {
	log  *logger.Logger
	docs repos.CurriculumDocRepo
}

func NewDocumentHandler(log *logger.Logger, docs repos.CurriculumDocRepo) *DocumentHandler {
	return &DocumentHandler{log: log.With("handler", "DocumentHandler"), docs: docs}
}

// GET /api/documents?source_id=&limit=&offset=
func (h *DocumentHandler) ListDocuments(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	rows, err := h.docs.List(dbctx.Context{Ctx: c.Request.Context()}, c.Query("source_id"), limit, offset)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	// The list view omits the document body; it can run to megabytes.
	type docSummary struct {
		ID       uuid.UUID `json:"id"`
		SourceID string    `json:"source_id"`
		CourseID string    `json:"course_id"`
		Title    string    `json:"title"`
		JobID    uuid.UUID `json:"job_id"`
	}
	out := make([]docSummary, 0, len(rows))
	for _, row := range rows {
		out = append(out, docSummary{
			ID: row.ID, SourceID: row.SourceID, CourseID: row.CourseID,
			Title: row.Title, JobID: row.JobID,
		})
	}
	RespondOK(c, gin.H{"documents": out})
}

// GET /api/documents/:id
func (h *DocumentHandler) GetDocument(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_document_id", err)
		return
	}
	row, err := h.docs.GetByID(dbctx.Context{Ctx: c.Request.Context()}, id)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	var doc domain.CurriculumDocument
	if err := json.Unmarshal(row.Document, &doc); err != nil {
		RespondError(c, http.StatusInternalServerError, "corrupt_document", err)
		return
	}
	RespondOK(c, gin.H{"document": doc})
}

// DELETE /api/documents/:id
func (h *DocumentHandler) DeleteDocument(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_document_id", err)
		return
	}
	if err := h.docs.Delete(dbctx.Context{Ctx: c.Request.Context()}, id); err != nil {
		RespondDomainError(c, err)
		return
	}
	RespondOK(c, gin.H{"deleted": true})
}
