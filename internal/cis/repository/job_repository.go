package repository

import (
	"context"
	"errors"

	"github.com/luis314159/cis-demo/internal/cis/entity"
	"gorm.io/gorm"
)

type JobRepository struct {
	db *gorm.DB
}

func NewJobRepository(db *gorm.DB) *JobRepository {
	return &JobRepository{db: db}
}

func (r *JobRepository) Create(ctx context.Context, job *entity.Job) error {
	return r.db.WithContext(ctx).Create(job).Error
}

func (r *JobRepository) FindByID(ctx context.Context, id uint) (*entity.Job, error) {
	var job entity.Job
	if err := r.db.WithContext(ctx).First(&job, "job_id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &job, nil
}

func (r *JobRepository) FindByCode(ctx context.Context, code string) (*entity.Job, error) {
	var job entity.Job
	if err := r.db.WithContext(ctx).First(&job, "job_code = ?", code).Error; err != nil {
		return nil, translate(err)
	}
	return &job, nil
}

func (r *JobRepository) ExistsByCode(ctx context.Context, code string) (bool, error) {
	_, err := r.FindByCode(ctx, code)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	return false, err
}

func (r *JobRepository) List(ctx context.Context) ([]entity.Job, error) {
	var jobs []entity.Job
	err := r.db.WithContext(ctx).Order("job_id ASC").Find(&jobs).Error
	return jobs, err
}
