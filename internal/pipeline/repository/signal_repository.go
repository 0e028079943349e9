package repository

import (
	"context"

	"rivalwatch/internal/entity"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SignalRepository defines the interface for interacting with ingested
// signals.
type SignalRepository interface {
	// CreateIgnoreConflict inserts the signal unless a row with the same
	// normalized URL or content hash already exists. It reports whether a
	// new row was written.
	CreateIgnoreConflict(ctx context.Context, signal *entity.Signal) (bool, error)
	FindByID(ctx context.Context, id uint) (*entity.Signal, error)
	FindByContentHashes(ctx context.Context, hashes []string) ([]entity.Signal, error)
}

// NewSignalRepository creates a new instance of SignalRepository.
func NewSignalRepository(db *gorm.DB) SignalRepository {
	return &signalRepository{
		db: db,
	}
}

type signalRepository struct {
	db *gorm.DB
}

func (r *signalRepository) CreateIgnoreConflict(ctx context.Context, signal *entity.Signal) (bool, error) {
	// No conflict target: either unique index (normalized_url or
	// content_hash) makes the row a duplicate.
	tx := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		DoNothing: true,
	}).Create(signal)

	if tx.Error != nil {
		return false, tx.Error
	}

	return tx.RowsAffected > 0, nil
}

func (r *signalRepository) FindByID(ctx context.Context, id uint) (*entity.Signal, error) {
	var signal entity.Signal
	if err := r.db.WithContext(ctx).First(&signal, id).Error; err != nil {
		return nil, err
	}
	return &signal, nil
}

func (r *signalRepository) FindByContentHashes(ctx context.Context, hashes []string) ([]entity.Signal, error) {
	if len(hashes) == 0 {
		return nil, nil
	}
	var signals []entity.Signal
	err := r.db.WithContext(ctx).Where("content_hash IN ?", hashes).Find(&signals).Error
	return signals, err
}
