package db

import "time"

type ArtifactModel struct {
	EpochID   string    `gorm:"primaryKey;size:128"`
	Name      string    `gorm:"primaryKey;size:255"`
	Data      []byte    `gorm:"type:bytea;not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

func (ArtifactModel) TableName() string { return "epoch_artifacts" }

type HistoryEntryModel struct {
	ID          string    `gorm:"type:uuid;primaryKey"`
	EpochID     string    `gorm:"uniqueIndex;size:128;not null"`
	EpochKey    []byte    `gorm:"type:bytea;not null"`
	Status      string    `gorm:"not null"`
	MerkleRoot  []byte    `gorm:"type:bytea;not null"`
	IsSolvent   bool      `gorm:"not null"`
	TxHash      []byte    `gorm:"type:bytea"`
	BlockNumber int64     `gorm:"not null;default:0"`
	Publisher   []byte    `gorm:"type:bytea"`
	Error       *string
	RecordedAt  time.Time `gorm:"index;not null"`
}

func (HistoryEntryModel) TableName() string { return "publication_history" }
