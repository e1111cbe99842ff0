package usecase

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"solvency/internal/domain"
	"solvency/internal/infra/crypto"
)

type ProofComposer struct {
	Decimals int
	Now      func() time.Time
}

func NewProofComposer(decimals int) *ProofComposer {
	return &ProofComposer{Decimals: decimals, Now: time.Now}
}

// NewWitness pairs the measured totals with the tree root they refer to.
func NewWitness(reserves, liabilities *uint256.Int, root common.Hash, timestamp uint64) domain.Witness {
	return domain.Witness{
		ReservesTotal:  new(uint256.Int).Set(reserves),
		LiabilitiesSum: new(uint256.Int).Set(liabilities),
		MerkleRoot:     root,
		Timestamp:      timestamp,
		IsSolvent:      !reserves.Lt(liabilities),
	}
}

// Compose commits to the witness as given. The solvency flag is copied, not
// recomputed, so an insolvent witness yields a valid insolvency proof.
func (c *ProofComposer) Compose(epochID string, w domain.Witness) domain.Proof {
	now := time.Now
	if c.Now != nil {
		now = c.Now
	}
	verdict := AssessSolvency(w.ReservesTotal, w.LiabilitiesSum)
	return domain.Proof{
		Version: domain.ProofVersion,
		Type:    domain.ProofType,
		EpochID: epochID,
		PublicSignals: domain.PublicSignals{
			MerkleRoot: w.MerkleRoot,
			Timestamp:  w.Timestamp,
			IsSolvent:  w.IsSolvent,
		},
		Commitments: crypto.ComputeChain(w),
		Metadata: domain.ProofMetadata{
			Reserves:    domain.FormatUnits(w.ReservesTotal.ToBig(), c.Decimals),
			Liabilities: domain.FormatUnits(w.LiabilitiesSum.ToBig(), c.Decimals),
			Ratio:       verdict.Ratio,
			Excess:      domain.FormatUnits(verdict.Excess, c.Decimals),
			GeneratedAt: now().UTC(),
		},
	}
}
