package domain

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

type InclusionProof struct {
	Address  common.Address `json:"address"`
	Balance  *uint256.Int   `json:"balance"`
	Leaf     common.Hash    `json:"leaf"`
	Siblings []common.Hash  `json:"proof"`
	Root     common.Hash    `json:"root"`
	Index    int            `json:"index"`
}

type Participant struct {
	Address common.Address `json:"address"`
	Balance *uint256.Int   `json:"balance"`
	Leaf    common.Hash    `json:"leaf"`
}

type MerkleMetadata struct {
	Root               common.Hash      `json:"root"`
	LeafCount          int              `json:"leafCount"`
	TreeDepth          int              `json:"treeDepth"`
	TotalLiabilities   *uint256.Int     `json:"totalLiabilities"`
	SortedLeaves       bool             `json:"sortedLeaves"`
	Participants       []Participant    `json:"participants"`
	DuplicateAddresses []common.Address `json:"duplicateAddresses,omitempty"`
	GeneratedAt        time.Time        `json:"generatedAt"`
}
