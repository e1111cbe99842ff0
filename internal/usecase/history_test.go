package usecase

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"solvency/internal/domain"
	"solvency/internal/infra/crypto"
	"solvency/internal/infra/historymem"
	"solvency/internal/infra/registry"
)

func TestHistoryKeepsOneEntryPerEpoch(t *testing.T) {
	ctx := context.Background()
	h := NewPublicationHistory(historymem.New(), 10)
	h.Now = fixedNow

	if err := h.Record(ctx, domain.HistoryEntry{EpochID: "e1", Status: domain.HistoryFailed}); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := h.Record(ctx, domain.HistoryEntry{EpochID: "e1", Status: domain.HistoryPublished}); err != nil {
		t.Fatalf("record: %v", err)
	}
	entries, err := h.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 1 || entries[0].Status != domain.HistoryPublished {
		t.Fatalf("unexpected entries %+v", entries)
	}
	if entries[0].ID == "" || !entries[0].RecordedAt.Equal(testNow) {
		t.Fatalf("record should fill id and time, got %+v", entries[0])
	}
}

func TestHistoryLimitAndOrder(t *testing.T) {
	ctx := context.Background()
	h := NewPublicationHistory(historymem.New(), 3)
	for i := 0; i < 5; i++ {
		entry := domain.HistoryEntry{
			EpochID:    fmt.Sprintf("e%d", i),
			Status:     domain.HistoryPublished,
			RecordedAt: testNow.Add(time.Duration(i) * time.Minute),
		}
		if err := h.Record(ctx, entry); err != nil {
			t.Fatalf("record %d: %v", i, err)
		}
	}
	entries, err := h.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	if entries[0].EpochID != "e4" || entries[2].EpochID != "e2" {
		t.Fatalf("expected newest first, got %s..%s", entries[0].EpochID, entries[2].EpochID)
	}
}

func TestHistoryListeners(t *testing.T) {
	ctx := context.Background()
	h := NewPublicationHistory(historymem.New(), 10)
	var seen []string
	unsubscribe := h.Subscribe(func(e domain.HistoryEntry) { seen = append(seen, e.EpochID) })

	if err := h.Record(ctx, domain.HistoryEntry{EpochID: "a"}); err != nil {
		t.Fatalf("record: %v", err)
	}
	unsubscribe()
	if err := h.Record(ctx, domain.HistoryEntry{EpochID: "b"}); err != nil {
		t.Fatalf("record: %v", err)
	}
	if len(seen) != 1 || seen[0] != "a" {
		t.Fatalf("unexpected notifications %v", seen)
	}
}

func TestSyncFromRegistry(t *testing.T) {
	ctx := context.Background()
	reg := registry.NewMemory()
	reg.Now = fixedNow
	signer := stubSigner{addr: common.HexToAddress("0x00000000000000000000000000000000000000f1")}
	for _, id := range []string{"known", "unknown"} {
		payload := domain.RegistryPayload{
			EpochKey:      crypto.EpochKey(id),
			PublicSignals: domain.PublicSignals{MerkleRoot: common.HexToHash("0x0a"), Timestamp: uint64(testNow.Unix()), IsSolvent: true},
		}
		if _, err := reg.Publish(ctx, payload, signer); err != nil {
			t.Fatalf("publish %s: %v", id, err)
		}
	}

	h := NewPublicationHistory(historymem.New(), 10)
	n, err := h.SyncFromRegistry(ctx, reg, 0, EpochKeyResolver([]string{"known"}))
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 events, got %d", n)
	}
	entries, _ := h.List(ctx)
	ids := map[string]domain.HistoryEntry{}
	for _, e := range entries {
		ids[e.EpochID] = e
	}
	known, ok := ids["known"]
	if !ok || known.Publisher != signer.addr || known.BlockNumber != 1 || known.Status != domain.HistoryPublished {
		t.Fatalf("resolved entry missing or wrong: %+v", entries)
	}
	if _, ok := ids[crypto.EpochKey("unknown").Hex()]; !ok {
		t.Fatalf("unresolved events should be keyed by epoch key: %+v", entries)
	}

	n, err = h.SyncFromRegistry(ctx, reg, 2, nil)
	if err != nil || n != 1 {
		t.Fatalf("expected one event from block 2, got %d %v", n, err)
	}
}
