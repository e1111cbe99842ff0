package usecase

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"solvency/internal/domain"
	"solvency/internal/infra/crypto"
	"solvency/internal/infra/merkle"
)

type MerkleCommitter struct {
	SortLeaves bool
	Now        func() time.Time
}

func NewMerkleCommitter(sortLeaves bool) *MerkleCommitter {
	return &MerkleCommitter{SortLeaves: sortLeaves, Now: time.Now}
}

// CommittedTree is a built tree together with the liabilities it commits to.
// It is read-only after Build, so proofs may be generated concurrently.
type CommittedTree struct {
	tree    *merkle.Tree
	Entries domain.LiabilitySet
	Total   *uint256.Int
}

func (t *CommittedTree) Root() common.Hash {
	return t.tree.Root()
}

func (t *CommittedTree) LeafCount() int {
	return t.tree.Len()
}

func (t *CommittedTree) Depth() int {
	return t.tree.Depth()
}

func (c *MerkleCommitter) Build(entries domain.LiabilitySet) (*CommittedTree, error) {
	if err := entries.Validate(); err != nil {
		return nil, err
	}
	total, err := entries.Total()
	if err != nil {
		return nil, err
	}
	leaves := make([]common.Hash, len(entries))
	for i, entry := range entries {
		leaves[i] = crypto.LeafHash(entry.Address, entry.Balance)
	}
	tree, err := merkle.New(leaves, c.SortLeaves)
	if err != nil {
		return nil, err
	}
	copied := make(domain.LiabilitySet, len(entries))
	copy(copied, entries)
	return &CommittedTree{tree: tree, Entries: copied, Total: total}, nil
}

// ProveInclusion builds the sibling path of entry and checks it folds back to
// the root before handing it out.
func (c *MerkleCommitter) ProveInclusion(t *CommittedTree, entry domain.LiabilityEntry) (domain.InclusionProof, error) {
	if entry.Balance == nil {
		return domain.InclusionProof{}, domain.NewInputError("balance", "entry has no balance")
	}
	leaf := crypto.LeafHash(entry.Address, entry.Balance)
	index, err := t.tree.IndexOf(leaf)
	if err != nil {
		return domain.InclusionProof{}, domain.NewInputError("entry", "%s with balance %s is not committed", entry.Address.Hex(), entry.Balance.Dec())
	}
	path, err := t.tree.Proof(index)
	if err != nil {
		return domain.InclusionProof{}, err
	}
	root := t.tree.Root()
	if folded := merkle.Fold(leaf, path); folded != root {
		return domain.InclusionProof{}, domain.NewProofConstructionError(root, folded)
	}
	return domain.InclusionProof{
		Address:  entry.Address,
		Balance:  new(uint256.Int).Set(entry.Balance),
		Leaf:     leaf,
		Siblings: path,
		Root:     root,
		Index:    index,
	}, nil
}

func (c *MerkleCommitter) ProveAll(t *CommittedTree) ([]domain.InclusionProof, error) {
	proofs := make([]domain.InclusionProof, 0, len(t.Entries))
	for _, entry := range t.Entries {
		proof, err := c.ProveInclusion(t, entry)
		if err != nil {
			return nil, err
		}
		proofs = append(proofs, proof)
	}
	return proofs, nil
}

func (c *MerkleCommitter) Metadata(t *CommittedTree) domain.MerkleMetadata {
	now := time.Now
	if c.Now != nil {
		now = c.Now
	}
	participants := make([]domain.Participant, len(t.Entries))
	for i, entry := range t.Entries {
		participants[i] = domain.Participant{
			Address: entry.Address,
			Balance: entry.Balance,
			Leaf:    crypto.LeafHash(entry.Address, entry.Balance),
		}
	}
	return domain.MerkleMetadata{
		Root:               t.Root(),
		LeafCount:          t.LeafCount(),
		TreeDepth:          t.Depth(),
		TotalLiabilities:   new(uint256.Int).Set(t.Total),
		SortedLeaves:       t.tree.SortedLeaves(),
		Participants:       participants,
		DuplicateAddresses: t.Entries.DuplicateAddresses(),
		GeneratedAt:        now().UTC(),
	}
}

// VerifyInclusion recomputes the leaf from the claimed account and balance and
// folds the siblings onto it.
func VerifyInclusion(proof domain.InclusionProof, root common.Hash) bool {
	if proof.Balance == nil || proof.Root != root {
		return false
	}
	if crypto.LeafHash(proof.Address, proof.Balance) != proof.Leaf {
		return false
	}
	return merkle.VerifyProof(proof.Leaf, proof.Siblings, root)
}
