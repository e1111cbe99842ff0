package domain

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

type HistoryStatus string

const (
	HistoryPublished        HistoryStatus = "published"
	HistoryAlreadyPublished HistoryStatus = "already_published"
	HistoryFailed           HistoryStatus = "failed"
	HistoryVerified         HistoryStatus = "verified"
	HistoryMismatched       HistoryStatus = "mismatched"
	HistoryNotFound         HistoryStatus = "not_found"
)

type HistoryEntry struct {
	ID          string         `json:"id"`
	EpochID     string         `json:"epochId"`
	EpochKey    common.Hash    `json:"epochKey"`
	Status      HistoryStatus  `json:"status"`
	MerkleRoot  common.Hash    `json:"merkleRoot"`
	IsSolvent   bool           `json:"isSolvent"`
	TxHash      common.Hash    `json:"txHash,omitempty"`
	BlockNumber uint64         `json:"blockNumber,omitempty"`
	Publisher   common.Address `json:"publisher,omitempty"`
	Error       string         `json:"error,omitempty"`
	RecordedAt  time.Time      `json:"recordedAt"`
}
