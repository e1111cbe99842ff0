package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"solvency/internal/domain"
	"solvency/internal/infra/artifacts"
)

type fakeSessionSource struct {
	set domain.LiabilitySet
	err error
}

func (s fakeSessionSource) Name() string    { return "coordinator:s1" }
func (s fakeSessionSource) Session() string { return "s1" }

func (s fakeSessionSource) Liabilities(context.Context) (domain.LiabilitySet, error) {
	return s.set, s.err
}

func newTestExporter() (*EpochExporter, *artifacts.MemoryStore) {
	store := artifacts.NewMemoryStore()
	e := NewEpochExporter(store)
	e.Now = fixedNow
	e.Log = quietLogger()
	return e, store
}

func TestExportWritesEpoch(t *testing.T) {
	ctx := context.Background()
	e, store := newTestExporter()

	info, err := e.Export(ctx, "", testSet(), "api")
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if info.ID != "epoch_20260102-150405" {
		t.Fatalf("unexpected generated id %s", info.ID)
	}
	if info.ParticipantCount != 2 || info.TotalLiabilities.Uint64() != 150 {
		t.Fatalf("unexpected info %+v", info)
	}
	raw, err := store.Get(ctx, info.ID, domain.ArtifactLiabilities)
	if err != nil {
		t.Fatalf("liabilities: %v", err)
	}
	set, err := ParseLiabilitiesCSV(strings.NewReader(string(raw)))
	if err != nil || len(set) != 2 || !set[0].Balance.Eq(testSet()[0].Balance) {
		t.Fatalf("csv round trip failed: %v %+v", err, set)
	}

	got, err := e.Info(ctx, info.ID)
	if err != nil || got.Source != "api" || !got.CreatedAt.Equal(testNow) {
		t.Fatalf("unexpected stored info %+v %v", got, err)
	}
}

func TestExportNeverOverwrites(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestExporter()
	if _, err := e.Export(ctx, "e1", testSet(), "api"); err != nil {
		t.Fatalf("export: %v", err)
	}
	if _, err := e.Export(ctx, "e1", testSet(), "api"); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if _, err := e.Export(ctx, "e2", nil, "api"); !errors.Is(err, domain.ErrInput) {
		t.Fatalf("expected input error for empty set, got %v", err)
	}
	if _, err := e.Export(ctx, "bad/id", testSet(), "api"); !errors.Is(err, domain.ErrInput) {
		t.Fatalf("expected input error for bad id, got %v", err)
	}
}

func TestExportListAndLatest(t *testing.T) {
	ctx := context.Background()
	e, store := newTestExporter()
	if _, err := e.Latest(ctx); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found without epochs, got %v", err)
	}
	for i, id := range []string{"epoch_20260101-000000", "epoch_20260103-000000", "epoch_20260102-000000"} {
		e.Now = func() time.Time { return testNow.Add(time.Duration(i) * time.Hour) }
		if _, err := e.Export(ctx, id, testSet(), "api"); err != nil {
			t.Fatalf("export %s: %v", id, err)
		}
	}
	// Artifacts of an epoch without liabilities are not an epoch.
	if err := store.Put(ctx, "epoch_20260104-000000", domain.ArtifactProof, []byte("{}")); err != nil {
		t.Fatalf("put: %v", err)
	}
	epochs, err := e.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(epochs) != 3 || epochs[0] != "epoch_20260103-000000" {
		t.Fatalf("unexpected epochs %v", epochs)
	}
	latest, err := e.Latest(ctx)
	if err != nil || latest != "epoch_20260103-000000" {
		t.Fatalf("unexpected latest %s %v", latest, err)
	}
}

func TestExportFromSession(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestExporter()
	info, err := e.ExportFrom(ctx, "s-epoch", fakeSessionSource{set: testSet()})
	if err != nil {
		t.Fatalf("export from: %v", err)
	}
	if info.Source != "coordinator:s1" || info.SessionID != "s1" {
		t.Fatalf("unexpected info %+v", info)
	}

	_, err = e.ExportFrom(ctx, "s-epoch-2", fakeSessionSource{err: domain.ErrProtocol})
	if !errors.Is(err, domain.ErrProtocol) {
		t.Fatalf("expected source error, got %v", err)
	}
}

func TestInfoFallsBackToCSV(t *testing.T) {
	ctx := context.Background()
	e, store := newTestExporter()
	csv := "address,balance\n0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa,5\n"
	if err := store.Put(ctx, "manual", domain.ArtifactLiabilities, []byte(csv)); err != nil {
		t.Fatalf("put: %v", err)
	}
	info, err := e.Info(ctx, "manual")
	if err != nil {
		t.Fatalf("info: %v", err)
	}
	if info.Source != "csv" || info.ParticipantCount != 1 || info.TotalLiabilities.Uint64() != 5 {
		t.Fatalf("unexpected info %+v", info)
	}
	if _, err := e.Info(ctx, "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
