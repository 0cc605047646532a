package repository

import (
	"context"

	"github.com/luis314159/cis-demo/internal/cis/entity"
	"gorm.io/gorm"
)

type ProcessRepository struct {
	db *gorm.DB
}

func NewProcessRepository(db *gorm.DB) *ProcessRepository {
	return &ProcessRepository{db: db}
}

func (r *ProcessRepository) Create(ctx context.Context, process *entity.Process) error {
	return r.db.WithContext(ctx).Create(process).Error
}

func (r *ProcessRepository) FindByID(ctx context.Context, id uint) (*entity.Process, error) {
	var process entity.Process
	if err := r.db.WithContext(ctx).First(&process, "process_id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &process, nil
}

func (r *ProcessRepository) FindByName(ctx context.Context, name string) (*entity.Process, error) {
	var process entity.Process
	if err := r.db.WithContext(ctx).First(&process, "process_name = ?", name).Error; err != nil {
		return nil, translate(err)
	}
	return &process, nil
}

func (r *ProcessRepository) List(ctx context.Context) ([]entity.Process, error) {
	var processes []entity.Process
	err := r.db.WithContext(ctx).Order("process_id ASC").Find(&processes).Error
	return processes, err
}

// CountItems reports how many items are bound to the process. A process with
// items cannot be deleted.
func (r *ProcessRepository) CountItems(ctx context.Context, processID uint) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&entity.Item{}).
		Where("process_id = ?", processID).Count(&n).Error
	return n, err
}

func (r *ProcessRepository) Delete(ctx context.Context, processID uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("process_id = ?", processID).Delete(&entity.ProcessStage{}).Error; err != nil {
			return err
		}
		return tx.Delete(&entity.Process{}, "process_id = ?", processID).Error
	})
}

// ReplacePipeline swaps the full edge set of a process in one transaction.
// The unique index on (process_id, stage_order) makes two interleaved
// replacements impossible to commit together, so callers observe either the
// old pipeline or the new one, never a mix.
func (r *ProcessRepository) ReplacePipeline(ctx context.Context, processID uint, edges []entity.ProcessStage) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("process_id = ?", processID).Delete(&entity.ProcessStage{}).Error; err != nil {
			return err
		}
		if len(edges) == 0 {
			return nil
		}
		return tx.Create(&edges).Error
	})
}

// ListPipeline returns the ordered edge rows of a process with their stages
// preloaded. An empty pipeline yields an empty slice, not an error.
func (r *ProcessRepository) ListPipeline(ctx context.Context, processID uint) ([]entity.ProcessStage, error) {
	var edges []entity.ProcessStage
	err := r.db.WithContext(ctx).
		Preload("Stage").
		Where("process_id = ?", processID).
		Order("stage_order ASC").
		Find(&edges).Error
	return edges, err
}
