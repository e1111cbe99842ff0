package registry

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"solvency/internal/domain"
)

// Memory is an in-process registry with the same write-once semantics as the
// on-chain verifier contract. Every publish mines a new block.
type Memory struct {
	Now func() time.Time

	mu      sync.RWMutex
	records map[common.Hash]domain.PublishedRecord
	events  []domain.PublishedEvent
	order   []common.Hash
	block   uint64
}

func NewMemory() *Memory {
	return &Memory{
		Now:     time.Now,
		records: make(map[common.Hash]domain.PublishedRecord),
	}
}

func (m *Memory) Exists(_ context.Context, key common.Hash) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.records[key]
	return ok, nil
}

func (m *Memory) Get(_ context.Context, key common.Hash) (*domain.PublishedRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	record, ok := m.records[key]
	if !ok {
		return nil, fmt.Errorf("epoch key %s: %w", key.Hex(), domain.ErrNotFound)
	}
	return &record, nil
}

func (m *Memory) Publish(ctx context.Context, payload domain.RegistryPayload, signer domain.Signer) (domain.WriteReceipt, error) {
	if err := ctx.Err(); err != nil {
		return domain.WriteReceipt{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[payload.EpochKey]; ok {
		return domain.WriteReceipt{}, fmt.Errorf("epoch key %s: %w", payload.EpochKey.Hex(), domain.ErrConflict)
	}
	m.block++
	publisher := signer.Address()
	record := recordFromPayload(payload)
	record.Publisher = publisher
	record.BlockNumber = m.block
	m.records[payload.EpochKey] = record
	m.order = append(m.order, payload.EpochKey)

	txHash := crypto.Keccak256Hash(payload.EpochKey.Bytes(), publisher.Bytes(), common.BigToHash(new(big.Int).SetUint64(m.block)).Bytes())
	m.events = append(m.events, domain.PublishedEvent{
		EpochKey:    payload.EpochKey,
		MerkleRoot:  payload.PublicSignals.MerkleRoot,
		IsSolvent:   payload.PublicSignals.IsSolvent,
		Publisher:   publisher,
		Timestamp:   uint64(m.now().Unix()),
		TxHash:      txHash,
		BlockNumber: m.block,
	})
	return domain.WriteReceipt{TxHash: txHash, BlockNumber: m.block, Publisher: publisher}, nil
}

func (m *Memory) Latest(_ context.Context) (*domain.PublishedRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.order) == 0 {
		return nil, fmt.Errorf("registry is empty: %w", domain.ErrNotFound)
	}
	record := m.records[m.order[len(m.order)-1]]
	return &record, nil
}

func (m *Memory) PublishedEvents(_ context.Context, fromBlock uint64) ([]domain.PublishedEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.PublishedEvent, 0, len(m.events))
	for _, ev := range m.events {
		if ev.BlockNumber >= fromBlock {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (m *Memory) now() time.Time {
	if m.Now != nil {
		return m.Now()
	}
	return time.Now()
}

func recordFromPayload(payload domain.RegistryPayload) domain.PublishedRecord {
	return domain.PublishedRecord{
		EpochKey:              payload.EpochKey,
		MerkleRoot:            payload.PublicSignals.MerkleRoot,
		Timestamp:             payload.PublicSignals.Timestamp,
		IsSolvent:             payload.PublicSignals.IsSolvent,
		MasterCommitment:      payload.Commitments.MasterCommitment,
		WitnessHash:           payload.Commitments.WitnessHash,
		ReservesCommitment:    payload.Commitments.ReservesCommitment,
		LiabilitiesCommitment: payload.Commitments.LiabilitiesCommitment,
		SolvencyAssertion:     payload.Commitments.SolvencyAssertion,
	}
}
