package evm

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

type BalanceBackend interface {
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
}

// LedgerReader reads native balances at the latest block.
type LedgerReader struct {
	backend BalanceBackend
}

func NewLedgerReader(backend BalanceBackend) *LedgerReader {
	return &LedgerReader{backend: backend}
}

func (r *LedgerReader) BalanceAt(ctx context.Context, account common.Address) (*uint256.Int, error) {
	if r == nil || r.backend == nil {
		return nil, errors.New("ledger backend is not configured")
	}
	raw, err := r.backend.BalanceAt(ctx, account, nil)
	if err != nil {
		return nil, err
	}
	balance, overflow := uint256.FromBig(raw)
	if overflow || raw.Sign() < 0 {
		return nil, fmt.Errorf("balance of %s out of range: %s", account.Hex(), raw.String())
	}
	return balance, nil
}

// StaticReader serves fixed balances; unknown accounts read as zero.
type StaticReader struct {
	mu       sync.RWMutex
	balances map[common.Address]*uint256.Int
	Err      error
}

func NewStaticReader(balances map[common.Address]*uint256.Int) *StaticReader {
	r := &StaticReader{balances: make(map[common.Address]*uint256.Int, len(balances))}
	for addr, bal := range balances {
		r.balances[addr] = new(uint256.Int).Set(bal)
	}
	return r
}

func (r *StaticReader) Set(account common.Address, balance *uint256.Int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.balances[account] = new(uint256.Int).Set(balance)
}

func (r *StaticReader) BalanceAt(ctx context.Context, account common.Address) (*uint256.Int, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if r.Err != nil {
		return nil, r.Err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if bal, ok := r.balances[account]; ok {
		return new(uint256.Int).Set(bal), nil
	}
	return new(uint256.Int), nil
}
