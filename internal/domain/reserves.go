package domain

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

const InfiniteRatio = "∞"

type ReservesSnapshot struct {
	Custody    common.Address `json:"custody"`
	Balance    *uint256.Int   `json:"balance"`
	MeasuredAt time.Time      `json:"measuredAt"`
}

type SolvencyVerdict struct {
	IsSolvent bool   `json:"isSolvent"`
	Ratio     string `json:"ratio"`
	// RatioBasisPoints is nil when the ratio is infinite.
	RatioBasisPoints *big.Int `json:"ratioBasisPoints,omitempty"`
	Excess           *big.Int `json:"excess"`
}

// ReservesReport is the artifact written by the reserves scan.
type ReservesReport struct {
	Custody              common.Address  `json:"custody"`
	Reserves             *uint256.Int    `json:"reserves"`
	ReservesFormatted    string          `json:"reservesFormatted"`
	Liabilities          *uint256.Int    `json:"liabilities"`
	LiabilitiesFormatted string          `json:"liabilitiesFormatted"`
	Verdict              SolvencyVerdict `json:"verdict"`
	MerkleRoot           common.Hash     `json:"merkleRoot"`
	Timestamp            uint64          `json:"timestamp"`
	ScannedAt            time.Time       `json:"scannedAt"`
}
