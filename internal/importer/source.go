package importer

import (
	"context"

	"github.com/yungbote/curricula-backend/internal/domain"
)

// ExtractedCourse is the normalized output of a source handler's extract
// step: plain text plus whatever structure the source format already knew.
type ExtractedCourse struct {
	Title string
	Text  string
	// Hints carries structure the format parser recovered (e.g. OCW section
	// pages); the inferencer treats them as explicit-tier candidates.
	Hints []*domain.StructureNode
	// License and Attribution come from the source handler and pass through
	// to the final document unmodified.
	License     *domain.LicenseInfo
	Attribution string
	Warnings    []string
}

// SourceHandler adapts one upstream content provider. Handlers are injected
// at wiring time; the orchestrator looks them up by source id and never
// constructs them itself.
type SourceHandler interface {
	Source() domain.CurriculumSource

	ListCourses(ctx context.Context, page, pageSize int) (entries []domain.CourseCatalogEntry, total int, err error)
	SearchCourses(ctx context.Context, query string) ([]domain.CourseCatalogEntry, error)
	GetCourse(ctx context.Context, courseID string) (*domain.CourseDetail, error)

	// ValidateLicense is the import gate: CanImport=false blocks the job
	// before any download happens.
	ValidateLicense(ctx context.Context, courseID string) (*domain.LicenseValidationResult, error)

	// Download fetches the course archive and returns an opaque reference
	// the handler's Extract understands (bucket key, temp path). report is
	// optional byte-level progress.
	Download(ctx context.Context, cfg domain.ImportConfig, report func(done, total int64)) (string, error)

	// Extract turns the downloaded archive into normalized course text,
	// honoring the config's content selection flags.
	Extract(ctx context.Context, archiveRef string, cfg domain.ImportConfig) (*ExtractedCourse, error)
}
