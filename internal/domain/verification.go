package domain

import (
	"errors"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

const (
	CheckProofStructure        = "Proof Structure"
	CheckMerkleRoot            = "Merkle Root"
	CheckTimestamp             = "Timestamp"
	CheckWitnessHash           = "Witness Hash"
	CheckReservesCommitment    = "Reserves Commitment"
	CheckLiabilitiesCommitment = "Liabilities Commitment"
	CheckSolvency              = "Solvency Check"
	CheckSolvencyAssertion     = "Solvency Assertion"
	CheckMasterCommitment      = "Master Commitment"
)

type VerificationCheck struct {
	Name     string       `json:"name"`
	Passed   bool         `json:"passed"`
	Message  string       `json:"message,omitempty"`
	Expected *common.Hash `json:"expected,omitempty"`
	Actual   *common.Hash `json:"actual,omitempty"`
}

type VerificationReport struct {
	EpochID    string              `json:"epochId"`
	Valid      bool                `json:"valid"`
	Checks     []VerificationCheck `json:"checks"`
	VerifiedAt time.Time           `json:"verifiedAt"`
}

func (r VerificationReport) Check(name string) (VerificationCheck, bool) {
	for _, c := range r.Checks {
		if c.Name == name {
			return c, true
		}
	}
	return VerificationCheck{}, false
}

func (r VerificationReport) Failed() []string {
	var names []string
	for _, c := range r.Checks {
		if !c.Passed {
			names = append(names, c.Name)
		}
	}
	return names
}

// Err joins an IntegrityError for every failed hash check. Checks without
// hashes (timestamp, solvency) are not integrity failures.
func (r VerificationReport) Err() error {
	var errs []error
	for _, c := range r.Checks {
		if c.Passed || c.Expected == nil || c.Actual == nil {
			continue
		}
		errs = append(errs, &IntegrityError{Check: c.Name, Expected: *c.Expected, Actual: *c.Actual})
	}
	return errors.Join(errs...)
}
