package domain

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

const (
	ProofVersion = "1.0.0"
	ProofType    = "solvency-proof-commitment-scheme"
)

type Witness struct {
	ReservesTotal  *uint256.Int `json:"reservesTotal"`
	LiabilitiesSum *uint256.Int `json:"liabilitiesSum"`
	MerkleRoot     common.Hash  `json:"merkleRoot"`
	Timestamp      uint64       `json:"timestamp"`
	IsSolvent      bool         `json:"isSolvent"`
}

type CommitmentChain struct {
	ReservesCommitment    common.Hash `json:"reservesCommitment"`
	LiabilitiesCommitment common.Hash `json:"liabilitiesCommitment"`
	WitnessHash           common.Hash `json:"witnessHash"`
	SolvencyAssertion     common.Hash `json:"solvencyAssertion"`
	MasterCommitment      common.Hash `json:"masterCommitment"`
}

type PublicSignals struct {
	MerkleRoot common.Hash `json:"merkleRoot"`
	Timestamp  uint64      `json:"timestamp"`
	IsSolvent  bool        `json:"isSolvent"`
}

// ProofMetadata is advisory; public signals and commitments are authoritative.
type ProofMetadata struct {
	Reserves         string    `json:"reserves"`
	Liabilities      string    `json:"liabilities"`
	Ratio            string    `json:"ratio"`
	Excess           string    `json:"excess"`
	ParticipantCount int       `json:"participantCount,omitempty"`
	GeneratedAt      time.Time `json:"generatedAt"`
}

type Proof struct {
	Version       string          `json:"version"`
	Type          string          `json:"type"`
	EpochID       string          `json:"epochId"`
	PublicSignals PublicSignals   `json:"publicSignals"`
	Commitments   CommitmentChain `json:"commitments"`
	Metadata      ProofMetadata   `json:"metadata"`
}
