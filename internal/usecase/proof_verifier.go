package usecase

import (
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"solvency/internal/domain"
	"solvency/internal/infra/crypto"
)

const DefaultProofMaxAge = 365 * 24 * time.Hour

type ProofVerifier struct {
	MaxAge time.Duration
	Now    func() time.Time
}

func NewProofVerifier(maxAge time.Duration) *ProofVerifier {
	if maxAge <= 0 {
		maxAge = DefaultProofMaxAge
	}
	return &ProofVerifier{MaxAge: maxAge, Now: time.Now}
}

// Verify recomputes every commitment from the witness and always runs all
// checks, so a report names each broken link rather than the first one.
func (v *ProofVerifier) Verify(proof domain.Proof, w domain.Witness, meta domain.MerkleMetadata) domain.VerificationReport {
	now := time.Now
	if v.Now != nil {
		now = v.Now
	}
	maxAge := v.MaxAge
	if maxAge <= 0 {
		maxAge = DefaultProofMaxAge
	}
	at := now()

	checks := make([]domain.VerificationCheck, 0, 9)
	checks = append(checks, v.checkStructure(proof))
	checks = append(checks, hashCheck(domain.CheckMerkleRoot, meta.Root, proof.PublicSignals.MerkleRoot))
	checks = append(checks, checkTimestamp(proof.PublicSignals.Timestamp, at, maxAge))

	complete := w.ReservesTotal != nil && w.LiabilitiesSum != nil
	if !complete {
		for _, name := range []string{
			domain.CheckWitnessHash,
			domain.CheckReservesCommitment,
			domain.CheckLiabilitiesCommitment,
			domain.CheckSolvency,
			domain.CheckSolvencyAssertion,
			domain.CheckMasterCommitment,
		} {
			checks = append(checks, domain.VerificationCheck{Name: name, Message: "witness is missing totals"})
		}
		return report(proof.EpochID, checks, at)
	}

	witnessHash := crypto.WitnessHash(w)
	reservesCommitment := crypto.ReservesCommitment(w.ReservesTotal, w.MerkleRoot, w.Timestamp)
	liabilitiesCommitment := crypto.LiabilitiesCommitment(w.LiabilitiesSum, w.MerkleRoot, w.Timestamp)
	assertion := crypto.SolvencyAssertion(reservesCommitment, liabilitiesCommitment, w.IsSolvent)
	master := crypto.MasterCommitment(witnessHash, assertion, w.MerkleRoot)

	checks = append(checks, hashCheck(domain.CheckWitnessHash, witnessHash, proof.Commitments.WitnessHash))
	checks = append(checks, hashCheck(domain.CheckReservesCommitment, reservesCommitment, proof.Commitments.ReservesCommitment))
	checks = append(checks, hashCheck(domain.CheckLiabilitiesCommitment, liabilitiesCommitment, proof.Commitments.LiabilitiesCommitment))
	checks = append(checks, checkSolvency(w))
	checks = append(checks, hashCheck(domain.CheckSolvencyAssertion, assertion, proof.Commitments.SolvencyAssertion))
	checks = append(checks, hashCheck(domain.CheckMasterCommitment, master, proof.Commitments.MasterCommitment))
	return report(proof.EpochID, checks, at)
}

func (v *ProofVerifier) checkStructure(proof domain.Proof) domain.VerificationCheck {
	c := domain.VerificationCheck{Name: domain.CheckProofStructure}
	switch {
	case proof.Version != domain.ProofVersion:
		c.Message = fmt.Sprintf("unsupported version %q", proof.Version)
	case proof.Type != domain.ProofType:
		c.Message = fmt.Sprintf("unsupported proof type %q", proof.Type)
	default:
		c.Passed = true
		c.Message = fmt.Sprintf("%s v%s", proof.Type, proof.Version)
	}
	return c
}

func checkTimestamp(ts uint64, now time.Time, maxAge time.Duration) domain.VerificationCheck {
	c := domain.VerificationCheck{Name: domain.CheckTimestamp}
	nowUnix := now.Unix()
	oldest := now.Add(-maxAge).Unix()
	switch {
	case ts == 0:
		c.Message = "timestamp is zero"
	case ts > uint64(nowUnix):
		c.Message = fmt.Sprintf("timestamp %d is in the future", ts)
	case int64(ts) < oldest:
		c.Message = fmt.Sprintf("timestamp %d is older than %s", ts, maxAge)
	default:
		c.Passed = true
		c.Message = time.Unix(int64(ts), 0).UTC().Format(time.RFC3339)
	}
	return c
}

// checkSolvency requires the recomputed verdict to match the witness flag and
// to be solvent.
func checkSolvency(w domain.Witness) domain.VerificationCheck {
	c := domain.VerificationCheck{Name: domain.CheckSolvency}
	solvent := !w.ReservesTotal.Lt(w.LiabilitiesSum)
	switch {
	case solvent != w.IsSolvent:
		c.Message = fmt.Sprintf("witness claims solvent=%v but reserves %s vs liabilities %s", w.IsSolvent, w.ReservesTotal.Dec(), w.LiabilitiesSum.Dec())
	case !solvent:
		c.Message = fmt.Sprintf("insolvent: reserves %s < liabilities %s", w.ReservesTotal.Dec(), w.LiabilitiesSum.Dec())
	default:
		c.Passed = true
		c.Message = fmt.Sprintf("reserves %s >= liabilities %s", w.ReservesTotal.Dec(), w.LiabilitiesSum.Dec())
	}
	return c
}

func hashCheck(name string, expected, actual common.Hash) domain.VerificationCheck {
	c := domain.VerificationCheck{Name: name, Passed: expected == actual}
	if !c.Passed {
		e, a := expected, actual
		c.Expected, c.Actual = &e, &a
		c.Message = "hash mismatch"
	}
	return c
}

func report(epochID string, checks []domain.VerificationCheck, at time.Time) domain.VerificationReport {
	valid := true
	for _, c := range checks {
		valid = valid && c.Passed
	}
	return domain.VerificationReport{
		EpochID:    epochID,
		Valid:      valid,
		Checks:     checks,
		VerifiedAt: at.UTC(),
	}
}
