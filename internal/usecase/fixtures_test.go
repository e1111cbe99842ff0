package usecase

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/holiman/uint256"
	"github.com/sirupsen/logrus"

	"solvency/internal/domain"
	"solvency/internal/infra/artifacts"
	"solvency/internal/infra/evm"
	"solvency/internal/infra/historymem"
	"solvency/internal/infra/registry"
)

var (
	testCustody = common.HexToAddress("0x00000000000000000000000000000000000000c0")
	testAlice   = common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	testBob     = common.HexToAddress("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")
	testNow     = time.Date(2026, 1, 2, 15, 4, 5, 0, time.UTC)
)

type stubSigner struct {
	addr common.Address
}

func (s stubSigner) Address() common.Address { return s.addr }

func (s stubSigner) SignTx(_ context.Context, tx *types.Transaction) (*types.Transaction, error) {
	return tx, nil
}

func quietLogger() logrus.FieldLogger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func fixedNow() time.Time { return testNow }

func testSet() domain.LiabilitySet {
	return domain.LiabilitySet{
		{Address: testAlice, Balance: uint256.NewInt(100)},
		{Address: testBob, Balance: uint256.NewInt(50)},
	}
}

type pipelineFixture struct {
	pipeline *Pipeline
	store    *artifacts.MemoryStore
	reader   *evm.StaticReader
	registry *registry.Memory
	history  *PublicationHistory
}

// newPipelineFixture exports testSet (150 total) as epochID against the given
// custody balance.
func newPipelineFixture(t *testing.T, epochID string, reserves uint64) *pipelineFixture {
	t.Helper()
	ctx := context.Background()
	store := artifacts.NewMemoryStore()
	reader := evm.NewStaticReader(map[common.Address]*uint256.Int{testCustody: uint256.NewInt(reserves)})
	reg := registry.NewMemory()
	reg.Now = fixedNow
	history := NewPublicationHistory(historymem.New(), 10)
	history.Now = fixedNow

	publisher := NewLedgerPublisher(reg, time.Second)
	publisher.History = history
	publisher.Now = fixedNow
	publisher.Log = quietLogger()

	oracle := NewReservesOracle(reader)
	oracle.Now = fixedNow
	composer := NewProofComposer(0)
	composer.Now = fixedNow
	verifier := NewProofVerifier(DefaultProofMaxAge)
	verifier.Now = fixedNow

	p := &Pipeline{
		Store:     store,
		Committer: NewMerkleCommitter(true),
		Oracle:    oracle,
		Composer:  composer,
		Verifier:  verifier,
		Publisher: publisher,
		Signer:    stubSigner{addr: common.HexToAddress("0x00000000000000000000000000000000000000f1")},
		Custody:   testCustody,
		Log:       quietLogger(),
		Now:       fixedNow,
	}
	exporter := NewEpochExporter(store)
	exporter.Now = fixedNow
	exporter.Log = quietLogger()
	if _, err := exporter.Export(ctx, epochID, testSet(), "test"); err != nil {
		t.Fatalf("export: %v", err)
	}
	return &pipelineFixture{pipeline: p, store: store, reader: reader, registry: reg, history: history}
}
