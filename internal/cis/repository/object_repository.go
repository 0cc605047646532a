package repository

import (
	"context"

	"github.com/luis314159/cis-demo/internal/cis/entity"
	"gorm.io/gorm"
)

type ObjectRepository struct {
	db *gorm.DB
}

func NewObjectRepository(db *gorm.DB) *ObjectRepository {
	return &ObjectRepository{db: db}
}

func (r *ObjectRepository) CreateBatch(ctx context.Context, objects []entity.Object) error {
	if len(objects) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&objects).Error
}

// ListByItem returns an item's units in object_id order. Ordinal addressing
// relies on this ordering being stable across storage engines.
func (r *ObjectRepository) ListByItem(ctx context.Context, itemID uint) ([]entity.Object, error) {
	var objects []entity.Object
	err := r.db.WithContext(ctx).
		Where("item_id = ?", itemID).
		Order("object_id ASC").
		Find(&objects).Error
	return objects, err
}

func (r *ObjectRepository) CountByItem(ctx context.Context, itemID uint) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&entity.Object{}).
		Where("item_id = ?", itemID).Count(&n).Error
	return n, err
}

// FindByItemOrdinal resolves the unit at zero-based offset within an item,
// always ordered by object_id ascending. Offsets past the unit count come
// back as ErrNotFound.
func (r *ObjectRepository) FindByItemOrdinal(ctx context.Context, itemID uint, offset int) (*entity.Object, error) {
	var object entity.Object
	err := r.db.WithContext(ctx).
		Where("item_id = ?", itemID).
		Order("object_id ASC").
		Offset(offset).
		First(&object).Error
	if err != nil {
		return nil, translate(err)
	}
	return &object, nil
}

// CASStage moves a unit to newStage only if its version still matches
// fromVersion. Returns true when the row was updated; false means a
// concurrent writer got there first and the caller should re-read.
func (r *ObjectRepository) CASStage(ctx context.Context, objectID uint, fromVersion int, newStage uint) (bool, error) {
	res := r.db.WithContext(ctx).Model(&entity.Object{}).
		Where("object_id = ? AND version = ?", objectID, fromVersion).
		Updates(map[string]interface{}{
			"current_stage": newStage,
			"version":       fromVersion + 1,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *ObjectRepository) FindByID(ctx context.Context, objectID uint) (*entity.Object, error) {
	var object entity.Object
	if err := r.db.WithContext(ctx).First(&object, "object_id = ?", objectID).Error; err != nil {
		return nil, translate(err)
	}
	return &object, nil
}
