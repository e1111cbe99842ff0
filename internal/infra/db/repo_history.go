package db

import (
	"context"

	"solvency/internal/domain"

	"github.com/ethereum/go-ethereum/common"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type HistoryRepository struct {
	db *gorm.DB
}

func NewHistoryRepository(db *gorm.DB) *HistoryRepository {
	return &HistoryRepository{db: db}
}

// Save keeps one row per epoch; a newer entry replaces the older one.
func (r *HistoryRepository) Save(ctx context.Context, entry domain.HistoryEntry) error {
	if r.db == nil {
		return errDBUnavailable
	}
	model := historyModelFromDomain(entry)
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "epoch_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"id", "epoch_key", "status", "merkle_root", "is_solvent", "tx_hash",
			"block_number", "publisher", "error", "recorded_at",
		}),
	}).Create(&model).Error
}

func (r *HistoryRepository) List(ctx context.Context, limit int) ([]domain.HistoryEntry, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	var models []HistoryEntryModel
	q := r.db.WithContext(ctx).Order("recorded_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]domain.HistoryEntry, 0, len(models))
	for _, m := range models {
		out = append(out, historyModelToDomain(m))
	}
	return out, nil
}

func (r *HistoryRepository) Prune(ctx context.Context, keep int) error {
	if r.db == nil {
		return errDBUnavailable
	}
	if keep <= 0 {
		return nil
	}
	return r.db.WithContext(ctx).Exec(
		`DELETE FROM publication_history
		 WHERE id NOT IN (SELECT id FROM publication_history ORDER BY recorded_at DESC LIMIT ?)`,
		keep,
	).Error
}

func historyModelFromDomain(e domain.HistoryEntry) HistoryEntryModel {
	m := HistoryEntryModel{
		ID:          e.ID,
		EpochID:     e.EpochID,
		EpochKey:    copyBytes(e.EpochKey.Bytes()),
		Status:      string(e.Status),
		MerkleRoot:  copyBytes(e.MerkleRoot.Bytes()),
		IsSolvent:   e.IsSolvent,
		BlockNumber: int64(e.BlockNumber),
		Error:       stringPtrIfNotEmpty(e.Error),
		RecordedAt:  e.RecordedAt.UTC(),
	}
	if e.TxHash != (common.Hash{}) {
		m.TxHash = copyBytes(e.TxHash.Bytes())
	}
	if e.Publisher != (common.Address{}) {
		m.Publisher = copyBytes(e.Publisher.Bytes())
	}
	return m
}

func historyModelToDomain(m HistoryEntryModel) domain.HistoryEntry {
	e := domain.HistoryEntry{
		ID:          m.ID,
		EpochID:     m.EpochID,
		EpochKey:    common.BytesToHash(m.EpochKey),
		Status:      domain.HistoryStatus(m.Status),
		MerkleRoot:  common.BytesToHash(m.MerkleRoot),
		IsSolvent:   m.IsSolvent,
		TxHash:      common.BytesToHash(m.TxHash),
		BlockNumber: uint64(m.BlockNumber),
		Publisher:   common.BytesToAddress(m.Publisher),
		RecordedAt:  m.RecordedAt.UTC(),
	}
	if m.Error != nil {
		e.Error = *m.Error
	}
	return e
}

