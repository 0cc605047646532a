package repository

import (
	"errors"

	"gorm.io/gorm"
)

var ErrNotFound = errors.New("record not found")

// Repositories groups all repositories around one gorm handle.
type Repositories struct {
	Stage   *StageRepository
	Process *ProcessRepository
	Job     *JobRepository
	Item    *ItemRepository
	Object  *ObjectRepository
}

// NewRepositories creates the repository set.
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		Stage:   NewStageRepository(db),
		Process: NewProcessRepository(db),
		Job:     NewJobRepository(db),
		Item:    NewItemRepository(db),
		Object:  NewObjectRepository(db),
	}
}

// translate maps gorm's not-found to the package sentinel.
func translate(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
