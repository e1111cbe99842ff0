package usecase

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"solvency/internal/domain"
)

var basisPointScale = big.NewInt(10000)

type ReservesOracle struct {
	Reader LedgerReader
	Now    func() time.Time
}

func NewReservesOracle(reader LedgerReader) *ReservesOracle {
	return &ReservesOracle{Reader: reader, Now: time.Now}
}

// Scan performs a single balance read. Failures are not retried.
func (o *ReservesOracle) Scan(ctx context.Context, custody common.Address) (domain.ReservesSnapshot, error) {
	if o == nil || o.Reader == nil {
		return domain.ReservesSnapshot{}, errors.New("ledger reader is required")
	}
	balance, err := o.Reader.BalanceAt(ctx, custody)
	if err != nil {
		return domain.ReservesSnapshot{}, &domain.ReserveReadError{Account: custody, Err: err}
	}
	if balance == nil {
		return domain.ReservesSnapshot{}, &domain.ReserveReadError{Account: custody, Err: errors.New("empty balance")}
	}
	now := time.Now
	if o.Now != nil {
		now = o.Now
	}
	return domain.ReservesSnapshot{
		Custody:    custody,
		Balance:    balance,
		MeasuredAt: now().UTC(),
	}, nil
}

func AssessSolvency(reserves, liabilities *uint256.Int) domain.SolvencyVerdict {
	r, l := reserves.ToBig(), liabilities.ToBig()
	verdict := domain.SolvencyVerdict{
		IsSolvent: r.Cmp(l) >= 0,
		Excess:    new(big.Int).Sub(r, l),
	}
	switch {
	case l.Sign() == 0 && r.Sign() > 0:
		verdict.Ratio = domain.InfiniteRatio
	case l.Sign() == 0:
		verdict.RatioBasisPoints = big.NewInt(10000)
		verdict.Ratio = formatBasisPoints(verdict.RatioBasisPoints)
	default:
		bps := new(big.Int).Mul(r, basisPointScale)
		bps.Quo(bps, l)
		verdict.RatioBasisPoints = bps
		verdict.Ratio = formatBasisPoints(bps)
	}
	return verdict
}

func formatBasisPoints(bps *big.Int) string {
	whole, frac := new(big.Int).QuoRem(bps, big.NewInt(100), new(big.Int))
	return fmt.Sprintf("%s.%02d%%", whole.String(), frac.Int64())
}
