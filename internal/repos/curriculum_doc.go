package repos

import (
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/curricula-backend/internal/domain"
	"github.com/yungbote/curricula-backend/internal/pkg/dbctx"
	pkgerr "github.com/yungbote/curricula-backend/internal/pkg/errors"
	"github.com/yungbote/curricula-backend/internal/platform/logger"
)

type CurriculumDocRepo interface {
	Create(dbc dbctx.Context, doc *domain.CurriculumDoc) error
	GetByID(dbc dbctx.Context, id uuid.UUID) (*domain.CurriculumDoc, error)
	GetByJobID(dbc dbctx.Context, jobID uuid.UUID) (*domain.CurriculumDoc, error)
	List(dbc dbctx.Context, sourceID string, limit, offset int) ([]*domain.CurriculumDoc, error)
	Delete(dbc dbctx.Context, id uuid.UUID) error
}

type curriculumDocRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewCurriculumDocRepo(db *gorm.DB, baseLog *logger.Logger) CurriculumDocRepo {
	return &curriculumDocRepo{
		db:  db,
		log: baseLog.With("repo", "CurriculumDocRepo"),
	}
}

func (r *curriculumDocRepo) conn(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx.WithContext(dbc.Ctx)
	}
	return r.db.WithContext(dbc.Ctx)
}

func (r *curriculumDocRepo) Create(dbc dbctx.Context, doc *domain.CurriculumDoc) error {
	if doc.ID == uuid.Nil {
		doc.ID = uuid.New()
	}
	return r.conn(dbc).Create(doc).Error
}

func (r *curriculumDocRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*domain.CurriculumDoc, error) {
	var doc domain.CurriculumDoc
	err := r.conn(dbc).Where("id = ?", id).First(&doc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerr.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

func (r *curriculumDocRepo) GetByJobID(dbc dbctx.Context, jobID uuid.UUID) (*domain.CurriculumDoc, error) {
	var doc domain.CurriculumDoc
	err := r.conn(dbc).Where("job_id = ?", jobID).First(&doc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerr.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

func (r *curriculumDocRepo) List(dbc dbctx.Context, sourceID string, limit, offset int) ([]*domain.CurriculumDoc, error) {
	q := r.conn(dbc).Model(&domain.CurriculumDoc{}).Order("created_at DESC")
	if sourceID != "" {
		q = q.Where("source_id = ?", sourceID)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	if offset > 0 {
		q = q.Offset(offset)
	}
	var out []*domain.CurriculumDoc
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *curriculumDocRepo) Delete(dbc dbctx.Context, id uuid.UUID) error {
	return r.conn(dbc).Where("id = ?", id).Delete(&domain.CurriculumDoc{}).Error
}
