package domain

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

type PublishStatus string

const (
	PublishStatusPublished        PublishStatus = "published"
	PublishStatusAlreadyPublished PublishStatus = "already_published"
)

type OnChainStatus string

const (
	OnChainVerified   OnChainStatus = "verified"
	OnChainMismatched OnChainStatus = "mismatched"
	OnChainNotFound   OnChainStatus = "not_found"
)

// RegistryPayload is the nine field record written atomically per epoch key.
type RegistryPayload struct {
	EpochKey      common.Hash     `json:"epochKey"`
	PublicSignals PublicSignals   `json:"publicSignals"`
	Commitments   CommitmentChain `json:"commitments"`
}

type PublishedRecord struct {
	EpochKey              common.Hash    `json:"epochKey"`
	MerkleRoot            common.Hash    `json:"merkleRoot"`
	Timestamp             uint64         `json:"timestamp"`
	IsSolvent             bool           `json:"isSolvent"`
	MasterCommitment      common.Hash    `json:"commitment"`
	WitnessHash           common.Hash    `json:"witnessHash"`
	ReservesCommitment    common.Hash    `json:"reservesCommitment"`
	LiabilitiesCommitment common.Hash    `json:"liabilitiesCommitment"`
	SolvencyAssertion     common.Hash    `json:"solvencyAssertion"`
	Publisher             common.Address `json:"publisher"`
	BlockNumber           uint64         `json:"blockNumber"`
	Verified              bool           `json:"verified"`
}

type WriteReceipt struct {
	TxHash      common.Hash    `json:"txHash"`
	BlockNumber uint64         `json:"blockNumber"`
	Publisher   common.Address `json:"publisher"`
}

type PublishOutcome struct {
	EpochID     string           `json:"epochId"`
	EpochKey    common.Hash      `json:"epochKey"`
	Status      PublishStatus    `json:"status"`
	Receipt     *WriteReceipt    `json:"receipt,omitempty"`
	Record      *PublishedRecord `json:"record,omitempty"`
	PublishedAt time.Time        `json:"publishedAt"`
}

func (o PublishOutcome) AlreadyPublished() bool {
	return o.Status == PublishStatusAlreadyPublished
}

type OnChainVerification struct {
	EpochID      string           `json:"epochId"`
	EpochKey     common.Hash      `json:"epochKey"`
	Status       OnChainStatus    `json:"status"`
	ExpectedRoot common.Hash      `json:"expectedRoot"`
	Record       *PublishedRecord `json:"record,omitempty"`
	CheckedAt    time.Time        `json:"checkedAt"`
}

type PublishedEvent struct {
	EpochKey    common.Hash    `json:"epochKey"`
	MerkleRoot  common.Hash    `json:"merkleRoot"`
	IsSolvent   bool           `json:"isSolvent"`
	Publisher   common.Address `json:"publisher"`
	Timestamp   uint64         `json:"timestamp"`
	TxHash      common.Hash    `json:"txHash"`
	BlockNumber uint64         `json:"blockNumber"`
}
