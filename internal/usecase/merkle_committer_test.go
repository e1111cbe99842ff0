package usecase

import (
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"solvency/internal/domain"
)

func TestCommitterProofsVerify(t *testing.T) {
	c := NewMerkleCommitter(true)
	set := append(testSet(), domain.LiabilityEntry{
		Address: common.HexToAddress("0xcccccccccccccccccccccccccccccccccccccccc"),
		Balance: uint256.NewInt(7),
	})
	tree, err := c.Build(set)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	proofs, err := c.ProveAll(tree)
	if err != nil {
		t.Fatalf("prove all: %v", err)
	}
	if len(proofs) != 3 {
		t.Fatalf("expected 3 proofs, got %d", len(proofs))
	}
	for _, p := range proofs {
		if !VerifyInclusion(p, tree.Root()) {
			t.Fatalf("proof for %s does not verify", p.Address.Hex())
		}
	}

	tampered := proofs[0]
	tampered.Balance = new(uint256.Int).AddUint64(tampered.Balance, 1)
	if VerifyInclusion(tampered, tree.Root()) {
		t.Fatalf("tampered balance should not verify")
	}
	if VerifyInclusion(proofs[0], common.HexToHash("0x01")) {
		t.Fatalf("proof should not verify against another root")
	}

	meta := c.Metadata(tree)
	if meta.LeafCount != 3 || meta.TotalLiabilities.Uint64() != 157 || !meta.SortedLeaves {
		t.Fatalf("unexpected metadata %+v", meta)
	}
}

func TestCommitterSortedRootIgnoresOrder(t *testing.T) {
	c := NewMerkleCommitter(true)
	set := testSet()
	reversed := domain.LiabilitySet{set[1], set[0]}
	a, err := c.Build(set)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	b, err := c.Build(reversed)
	if err != nil {
		t.Fatalf("build reversed: %v", err)
	}
	if a.Root() != b.Root() {
		t.Fatalf("sorted roots differ: %s vs %s", a.Root().Hex(), b.Root().Hex())
	}
}

func TestCommitterRejectsBadInput(t *testing.T) {
	c := NewMerkleCommitter(true)
	if _, err := c.Build(nil); !errors.Is(err, domain.ErrInput) {
		t.Fatalf("expected input error for empty set, got %v", err)
	}
	if _, err := c.Build(domain.LiabilitySet{{Address: testAlice}}); !errors.Is(err, domain.ErrInput) {
		t.Fatalf("expected input error for missing balance, got %v", err)
	}

	tree, err := c.Build(testSet())
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	_, err = c.ProveInclusion(tree, domain.LiabilityEntry{Address: testAlice, Balance: uint256.NewInt(99)})
	if !errors.Is(err, domain.ErrInput) {
		t.Fatalf("expected input error for uncommitted entry, got %v", err)
	}
}

func TestCommitterKeepsDuplicates(t *testing.T) {
	c := NewMerkleCommitter(false)
	set := domain.LiabilitySet{
		{Address: testAlice, Balance: uint256.NewInt(1)},
		{Address: testAlice, Balance: uint256.NewInt(2)},
	}
	tree, err := c.Build(set)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	meta := c.Metadata(tree)
	if meta.LeafCount != 2 || len(meta.DuplicateAddresses) != 1 || meta.DuplicateAddresses[0] != testAlice {
		t.Fatalf("unexpected metadata %+v", meta)
	}
}
