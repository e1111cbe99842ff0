package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/holiman/uint256"

	"solvency/internal/domain"
	"solvency/internal/infra/evm"
)

func TestAssessSolvency(t *testing.T) {
	cases := []struct {
		name        string
		reserves    uint64
		liabilities uint64
		solvent     bool
		ratio       string
		excess      int64
	}{
		{name: "solvent", reserves: 200, liabilities: 150, solvent: true, ratio: "133.33%", excess: 50},
		{name: "insolvent", reserves: 100, liabilities: 150, solvent: false, ratio: "66.66%", excess: -50},
		{name: "exact", reserves: 150, liabilities: 150, solvent: true, ratio: "100.00%", excess: 0},
		{name: "both zero", reserves: 0, liabilities: 0, solvent: true, ratio: "100.00%", excess: 0},
		{name: "no liabilities", reserves: 5, liabilities: 0, solvent: true, ratio: domain.InfiniteRatio, excess: 5},
		{name: "no reserves", reserves: 0, liabilities: 7, solvent: false, ratio: "0.00%", excess: -7},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			v := AssessSolvency(uint256.NewInt(tc.reserves), uint256.NewInt(tc.liabilities))
			if v.IsSolvent != tc.solvent {
				t.Fatalf("solvent: expected %v, got %v", tc.solvent, v.IsSolvent)
			}
			if v.Ratio != tc.ratio {
				t.Fatalf("ratio: expected %s, got %s", tc.ratio, v.Ratio)
			}
			if v.Excess.Int64() != tc.excess {
				t.Fatalf("excess: expected %d, got %s", tc.excess, v.Excess)
			}
			if tc.ratio == domain.InfiniteRatio && v.RatioBasisPoints != nil {
				t.Fatalf("infinite ratio should have no basis points")
			}
		})
	}
}

func TestReservesOracleScan(t *testing.T) {
	reader := evm.NewStaticReader(nil)
	reader.Set(testCustody, uint256.NewInt(42))
	oracle := NewReservesOracle(reader)
	oracle.Now = fixedNow

	snap, err := oracle.Scan(context.Background(), testCustody)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if snap.Balance.Uint64() != 42 || !snap.MeasuredAt.Equal(testNow) || snap.Custody != testCustody {
		t.Fatalf("unexpected snapshot %+v", snap)
	}

	reader.Err = errors.New("connection refused")
	_, err = oracle.Scan(context.Background(), testCustody)
	var readErr *domain.ReserveReadError
	if !errors.As(err, &readErr) || readErr.Account != testCustody {
		t.Fatalf("expected ReserveReadError, got %v", err)
	}
	if !errors.Is(err, domain.ErrTransientIO) {
		t.Fatalf("reserve read failures should be transient")
	}
}
