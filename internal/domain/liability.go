package domain

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

type LiabilityEntry struct {
	Address common.Address `json:"address"`
	Balance *uint256.Int   `json:"balance"`
}

// LiabilitySet is the ordered list of per-account balances of one epoch.
// Duplicate addresses are allowed and yield duplicate leaves.
type LiabilitySet []LiabilityEntry

func (s LiabilitySet) Validate() error {
	if len(s) == 0 {
		return ErrEmptyLiabilities
	}
	for i, entry := range s {
		if entry.Balance == nil {
			return NewInputError("balance", "entry %d has no balance", i)
		}
	}
	return nil
}

// Total sums all balances, failing if the sum leaves the uint256 range.
func (s LiabilitySet) Total() (*uint256.Int, error) {
	total := new(uint256.Int)
	for i, entry := range s {
		if entry.Balance == nil {
			return nil, NewInputError("balance", "entry %d has no balance", i)
		}
		if _, overflow := total.AddOverflow(total, entry.Balance); overflow {
			return nil, NewInputError("balance", "total liabilities overflow at entry %d", i)
		}
	}
	return total, nil
}

func (s LiabilitySet) DuplicateAddresses() []common.Address {
	seen := make(map[common.Address]int, len(s))
	var dups []common.Address
	for _, entry := range s {
		seen[entry.Address]++
		if seen[entry.Address] == 2 {
			dups = append(dups, entry.Address)
		}
	}
	return dups
}

func (s LiabilitySet) Find(address common.Address) (LiabilityEntry, bool) {
	for _, entry := range s {
		if entry.Address == address {
			return entry, true
		}
	}
	return LiabilityEntry{}, false
}

// AddressKey is the lowercase hex form used in artifact names.
func AddressKey(address common.Address) string {
	return strings.ToLower(address.Hex())
}
