package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"solvency/internal/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ArtifactRepository struct {
	db *gorm.DB
}

func NewArtifactRepository(db *gorm.DB) *ArtifactRepository {
	return &ArtifactRepository{db: db}
}

func (r *ArtifactRepository) Put(ctx context.Context, epochID, name string, data []byte) error {
	if r.db == nil {
		return errDBUnavailable
	}
	if err := domain.ValidateEpochID(epochID); err != nil {
		return err
	}
	if data == nil {
		data = []byte{}
	}
	model := ArtifactModel{EpochID: epochID, Name: name, Data: copyBytes(data), UpdatedAt: time.Now().UTC()}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "epoch_id"}, {Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"data", "updated_at"}),
	}).Create(&model).Error
}

func (r *ArtifactRepository) Get(ctx context.Context, epochID, name string) ([]byte, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	var model ArtifactModel
	err := r.db.WithContext(ctx).Where("epoch_id = ? AND name = ?", epochID, name).Take(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%s/%s: %w", epochID, name, domain.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return model.Data, nil
}

func (r *ArtifactRepository) Exists(ctx context.Context, epochID, name string) (bool, error) {
	if r.db == nil {
		return false, errDBUnavailable
	}
	var count int64
	if err := r.db.WithContext(ctx).Model(&ArtifactModel{}).
		Where("epoch_id = ? AND name = ?", epochID, name).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *ArtifactRepository) List(ctx context.Context, epochID string) ([]string, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	var names []string
	if err := r.db.WithContext(ctx).Model(&ArtifactModel{}).
		Where("epoch_id = ?", epochID).
		Order("name").
		Pluck("name", &names).Error; err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("epoch %s: %w", epochID, domain.ErrNotFound)
	}
	return names, nil
}

func (r *ArtifactRepository) Epochs(ctx context.Context) ([]string, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	var ids []string
	if err := r.db.WithContext(ctx).Model(&ArtifactModel{}).
		Distinct("epoch_id").
		Order("epoch_id").
		Pluck("epoch_id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}
