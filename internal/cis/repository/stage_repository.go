package repository

import (
	"context"

	"github.com/luis314159/cis-demo/internal/cis/entity"
	"gorm.io/gorm"
)

type StageRepository struct {
	db *gorm.DB
}

func NewStageRepository(db *gorm.DB) *StageRepository {
	return &StageRepository{db: db}
}

func (r *StageRepository) Create(ctx context.Context, stage *entity.Stage) error {
	return r.db.WithContext(ctx).Create(stage).Error
}

func (r *StageRepository) FindByID(ctx context.Context, id uint) (*entity.Stage, error) {
	var stage entity.Stage
	if err := r.db.WithContext(ctx).First(&stage, "stage_id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &stage, nil
}

func (r *StageRepository) FindByName(ctx context.Context, name string) (*entity.Stage, error) {
	var stage entity.Stage
	if err := r.db.WithContext(ctx).First(&stage, "stage_name = ?", name).Error; err != nil {
		return nil, translate(err)
	}
	return &stage, nil
}

// FindByNames resolves a batch of stage names in one query. Missing names are
// simply absent from the returned map; the caller decides how to report them.
func (r *StageRepository) FindByNames(ctx context.Context, names []string) (map[string]*entity.Stage, error) {
	var stages []entity.Stage
	if err := r.db.WithContext(ctx).Where("stage_name IN ?", names).Find(&stages).Error; err != nil {
		return nil, err
	}
	byName := make(map[string]*entity.Stage, len(stages))
	for i := range stages {
		byName[stages[i].StageName] = &stages[i]
	}
	return byName, nil
}

func (r *StageRepository) List(ctx context.Context) ([]entity.Stage, error) {
	var stages []entity.Stage
	err := r.db.WithContext(ctx).Order("stage_id ASC").Find(&stages).Error
	return stages, err
}

// CountReferences reports how many pipeline edges and units still point at
// the stage. Deletion is only allowed when both are zero.
func (r *StageRepository) CountReferences(ctx context.Context, stageID uint) (int64, error) {
	var edges int64
	if err := r.db.WithContext(ctx).Model(&entity.ProcessStage{}).
		Where("stage_id = ?", stageID).Count(&edges).Error; err != nil {
		return 0, err
	}
	var units int64
	if err := r.db.WithContext(ctx).Model(&entity.Object{}).
		Where("current_stage = ?", stageID).Count(&units).Error; err != nil {
		return 0, err
	}
	return edges + units, nil
}

func (r *StageRepository) Delete(ctx context.Context, stageID uint) error {
	return r.db.WithContext(ctx).Delete(&entity.Stage{}, "stage_id = ?", stageID).Error
}
