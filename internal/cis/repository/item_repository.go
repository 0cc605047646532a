package repository

import (
	"context"

	"github.com/luis314159/cis-demo/internal/cis/entity"
	"gorm.io/gorm"
)

type ItemRepository struct {
	db *gorm.DB
}

func NewItemRepository(db *gorm.DB) *ItemRepository {
	return &ItemRepository{db: db}
}

func (r *ItemRepository) Create(ctx context.Context, item *entity.Item) error {
	return r.db.WithContext(ctx).Create(item).Error
}

func (r *ItemRepository) FindByID(ctx context.Context, id uint) (*entity.Item, error) {
	var item entity.Item
	if err := r.db.WithContext(ctx).First(&item, "item_id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &item, nil
}

func (r *ItemRepository) FindByOCR(ctx context.Context, ocr string) (*entity.Item, error) {
	var item entity.Item
	if err := r.db.WithContext(ctx).First(&item, "ocr = ?", ocr).Error; err != nil {
		return nil, translate(err)
	}
	return &item, nil
}

// ListByJob returns the items of a job in item_id order, which is also the
// enumeration order the status payload uses.
func (r *ItemRepository) ListByJob(ctx context.Context, jobID uint) ([]entity.Item, error) {
	var items []entity.Item
	err := r.db.WithContext(ctx).
		Where("job_id = ?", jobID).
		Order("item_id ASC").
		Find(&items).Error
	return items, err
}

// DeleteWithObjects removes an item and every unit it owns in one transaction.
func (r *ItemRepository) DeleteWithObjects(ctx context.Context, itemID uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("item_id = ?", itemID).Delete(&entity.Object{}).Error; err != nil {
			return err
		}
		return tx.Delete(&entity.Item{}, "item_id = ?", itemID).Error
	})
}
