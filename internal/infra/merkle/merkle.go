package merkle

import (
	"bytes"
	"errors"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

const HashSize = common.HashLength

var (
	ErrEmptyTree    = errors.New("empty merkle tree")
	ErrInvalidIndex = errors.New("invalid leaf index")
	ErrLeafNotFound = errors.New("leaf not in tree")
)

// NodeHash combines two children in ascending byte order, so a proof does not
// need to record which side each sibling sits on.
func NodeHash(a, b common.Hash) common.Hash {
	if bytes.Compare(a[:], b[:]) > 0 {
		a, b = b, a
	}
	return ethcrypto.Keccak256Hash(a[:], b[:])
}

// Tree is an immutable sorted-pair keccak tree. An odd node at the end of a
// level is promoted to the next level unchanged.
type Tree struct {
	levels [][]common.Hash
	sorted bool
}

// New builds a tree over leaves. With sortLeaves the leaves are ordered by
// raw value first, which makes the root independent of input order.
func New(leaves []common.Hash, sortLeaves bool) (*Tree, error) {
	if len(leaves) == 0 {
		return nil, ErrEmptyTree
	}
	level := make([]common.Hash, len(leaves))
	copy(level, leaves)
	if sortLeaves {
		sort.Slice(level, func(i, j int) bool {
			return bytes.Compare(level[i][:], level[j][:]) < 0
		})
	}
	levels := [][]common.Hash{level}
	for len(level) > 1 {
		next := make([]common.Hash, 0, (len(level)+1)/2)
		for i := 0; i < len(level); i += 2 {
			if i+1 == len(level) {
				next = append(next, level[i])
				continue
			}
			next = append(next, NodeHash(level[i], level[i+1]))
		}
		levels = append(levels, next)
		level = next
	}
	return &Tree{levels: levels, sorted: sortLeaves}, nil
}

func Root(leaves []common.Hash, sortLeaves bool) (common.Hash, error) {
	tree, err := New(leaves, sortLeaves)
	if err != nil {
		return common.Hash{}, err
	}
	return tree.Root(), nil
}

func (t *Tree) Root() common.Hash {
	top := t.levels[len(t.levels)-1]
	return top[0]
}

func (t *Tree) Len() int {
	return len(t.levels[0])
}

// Depth is the number of hashing levels, ceil(log2(n)).
func (t *Tree) Depth() int {
	return len(t.levels) - 1
}

func (t *Tree) SortedLeaves() bool {
	return t.sorted
}

func (t *Tree) Leaves() []common.Hash {
	out := make([]common.Hash, len(t.levels[0]))
	copy(out, t.levels[0])
	return out
}

// IndexOf returns the position of the first leaf equal to leaf.
func (t *Tree) IndexOf(leaf common.Hash) (int, error) {
	for i, l := range t.levels[0] {
		if l == leaf {
			return i, nil
		}
	}
	return -1, ErrLeafNotFound
}

func (t *Tree) Proof(index int) ([]common.Hash, error) {
	if index < 0 || index >= t.Len() {
		return nil, ErrInvalidIndex
	}
	path := make([]common.Hash, 0, t.Depth())
	for _, level := range t.levels[:len(t.levels)-1] {
		switch {
		case index%2 == 1:
			path = append(path, level[index-1])
		case index+1 < len(level):
			path = append(path, level[index+1])
		}
		index /= 2
	}
	return path, nil
}

// Fold hashes the path onto leaf and returns the resulting root candidate.
func Fold(leaf common.Hash, path []common.Hash) common.Hash {
	h := leaf
	for _, sibling := range path {
		h = NodeHash(h, sibling)
	}
	return h
}

func VerifyProof(leaf common.Hash, path []common.Hash, root common.Hash) bool {
	return Fold(leaf, path) == root
}
