package repos

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/curricula-backend/internal/domain"
	"github.com/yungbote/curricula-backend/internal/pkg/dbctx"
	pkgerr "github.com/yungbote/curricula-backend/internal/pkg/errors"
	"github.com/yungbote/curricula-backend/internal/platform/logger"
)

type ImportJobRepo interface {
	Create(dbc dbctx.Context, job *domain.ImportJob) error
	GetByID(dbc dbctx.Context, id uuid.UUID) (*domain.ImportJob, error)
	List(dbc dbctx.Context, status domain.ImportStatus, limit, offset int) ([]*domain.ImportJob, error)
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
	// UpdateFieldsUnlessStatus applies updates only while the job is not in
	// any of the disallowed statuses. Returns false when the guard blocked
	// the write. This is how terminal states stay terminal under races.
	UpdateFieldsUnlessStatus(dbc dbctx.Context, id uuid.UUID, disallowed []domain.ImportStatus, updates map[string]interface{}) (bool, error)
	RequestCancel(dbc dbctx.Context, id uuid.UUID) (bool, error)
	Heartbeat(dbc dbctx.Context, id uuid.UUID) error
	DeleteFinishedBefore(dbc dbctx.Context, cutoff time.Time) (int64, error)
}

type importJobRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewImportJobRepo(db *gorm.DB, baseLog *logger.Logger) ImportJobRepo {
	return &importJobRepo{
		db:  db,
		log: baseLog.With("repo", "ImportJobRepo"),
	}
}

func (r *importJobRepo) conn(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx.WithContext(dbc.Ctx)
	}
	return r.db.WithContext(dbc.Ctx)
}

func (r *importJobRepo) Create(dbc dbctx.Context, job *domain.ImportJob) error {
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	return r.conn(dbc).Create(job).Error
}

func (r *importJobRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*domain.ImportJob, error) {
	var job domain.ImportJob
	err := r.conn(dbc).Where("id = ?", id).First(&job).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerr.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &job, nil
}

func (r *importJobRepo) List(dbc dbctx.Context, status domain.ImportStatus, limit, offset int) ([]*domain.ImportJob, error) {
	q := r.conn(dbc).Model(&domain.ImportJob{}).Order("created_at DESC")
	if status != "" {
		q = q.Where("status = ?", status)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	if offset > 0 {
		q = q.Offset(offset)
	}
	var out []*domain.ImportJob
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *importJobRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	return r.conn(dbc).Model(&domain.ImportJob{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *importJobRepo) UpdateFieldsUnlessStatus(dbc dbctx.Context, id uuid.UUID, disallowed []domain.ImportStatus, updates map[string]interface{}) (bool, error) {
	q := r.conn(dbc).Model(&domain.ImportJob{}).Where("id = ?", id)
	if len(disallowed) > 0 {
		q = q.Where("status NOT IN ?", disallowed)
	}
	res := q.Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// RequestCancel flips the cooperative cancellation flag. It succeeds only on
// non-terminal jobs; cancelling a finished job is a no-op reported as false.
func (r *importJobRepo) RequestCancel(dbc dbctx.Context, id uuid.UUID) (bool, error) {
	return r.UpdateFieldsUnlessStatus(dbc, id,
		[]domain.ImportStatus{domain.StatusComplete, domain.StatusFailed, domain.StatusCancelled},
		map[string]interface{}{"cancel_requested": true})
}

func (r *importJobRepo) Heartbeat(dbc dbctx.Context, id uuid.UUID) error {
	now := time.Now().UTC()
	return r.conn(dbc).Model(&domain.ImportJob{}).
		Where("id = ?", id).
		Update("heartbeat_at", &now).Error
}

// DeleteFinishedBefore prunes terminal jobs older than the retention window.
func (r *importJobRepo) DeleteFinishedBefore(dbc dbctx.Context, cutoff time.Time) (int64, error) {
	res := r.conn(dbc).
		Where("status IN ?", []domain.ImportStatus{domain.StatusComplete, domain.StatusFailed, domain.StatusCancelled}).
		Where("finished_at IS NOT NULL AND finished_at < ?", cutoff).
		Delete(&domain.ImportJob{})
	return res.RowsAffected, res.Error
}
