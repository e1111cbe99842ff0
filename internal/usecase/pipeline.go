package usecase

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"

	"solvency/internal/domain"
)

// Pipeline runs the proof stages of an epoch. Every stage reads only the
// artifacts persisted by earlier stages and writes its own.
type Pipeline struct {
	Store     domain.ArtifactStore
	Committer *MerkleCommitter
	Oracle    *ReservesOracle
	Composer  *ProofComposer
	Verifier  *ProofVerifier
	Publisher *LedgerPublisher
	Policy    PublishPolicy
	Signer    Signer
	Custody   common.Address
	Decimals  int
	// AllowInsolvent lets the built-in gate publish proofs whose only failed
	// check is solvency. Ignored when Policy is set.
	AllowInsolvent bool
	Observer       StageObserver
	Log            logrus.FieldLogger
	Now            func() time.Time
}

func (p *Pipeline) BuildTree(ctx context.Context, epochID string) (domain.MerkleMetadata, error) {
	if err := p.ready(epochID); err != nil {
		return domain.MerkleMetadata{}, err
	}
	raw, err := p.Store.Get(ctx, epochID, domain.ArtifactLiabilities)
	if err != nil {
		return domain.MerkleMetadata{}, fmt.Errorf("read liabilities of epoch %s: %w", epochID, err)
	}
	set, err := ParseLiabilitiesCSV(bytes.NewReader(raw))
	if err != nil {
		return domain.MerkleMetadata{}, err
	}
	tree, err := p.committer().Build(set)
	if err != nil {
		return domain.MerkleMetadata{}, err
	}
	proofs, err := p.committer().ProveAll(tree)
	if err != nil {
		return domain.MerkleMetadata{}, err
	}
	meta := p.committer().Metadata(tree)
	log := p.logger().WithFields(logrus.Fields{"epoch": epochID, "stage": domain.StageBuild})
	if len(meta.DuplicateAddresses) > 0 {
		log.WithField("duplicates", len(meta.DuplicateAddresses)).Warn("duplicate addresses committed as separate leaves")
	}

	for _, proof := range proofs {
		if err := putJSON(ctx, p.Store, epochID, domain.InclusionArtifact(domain.AddressKey(proof.Address)), proof); err != nil {
			return domain.MerkleMetadata{}, err
		}
	}
	if err := putJSON(ctx, p.Store, epochID, domain.ArtifactMerkleMetadata, meta); err != nil {
		return domain.MerkleMetadata{}, err
	}
	if err := p.Store.Put(ctx, epochID, domain.ArtifactMerkleRoot, []byte(meta.Root.Hex())); err != nil {
		return domain.MerkleMetadata{}, err
	}
	log.WithFields(logrus.Fields{"root": meta.Root.Hex(), "leaves": meta.LeafCount}).Info("merkle tree built")
	return meta, nil
}

func (p *Pipeline) ScanReserves(ctx context.Context, epochID string) (domain.ReservesReport, error) {
	if err := p.ready(epochID); err != nil {
		return domain.ReservesReport{}, err
	}
	if p.Oracle == nil {
		return domain.ReservesReport{}, errors.New("reserves oracle is required")
	}
	meta, err := p.loadMetadata(ctx, epochID)
	if err != nil {
		return domain.ReservesReport{}, err
	}
	snapshot, err := p.Oracle.Scan(ctx, p.Custody)
	if err != nil {
		return domain.ReservesReport{}, err
	}
	verdict := AssessSolvency(snapshot.Balance, meta.TotalLiabilities)
	report := domain.ReservesReport{
		Custody:              snapshot.Custody,
		Reserves:             snapshot.Balance,
		ReservesFormatted:    domain.FormatUnits(snapshot.Balance.ToBig(), p.Decimals),
		Liabilities:          meta.TotalLiabilities,
		LiabilitiesFormatted: domain.FormatUnits(meta.TotalLiabilities.ToBig(), p.Decimals),
		Verdict:              verdict,
		MerkleRoot:           meta.Root,
		Timestamp:            uint64(snapshot.MeasuredAt.Unix()),
		ScannedAt:            snapshot.MeasuredAt,
	}
	if err := putJSON(ctx, p.Store, epochID, domain.ArtifactReserves, report); err != nil {
		return domain.ReservesReport{}, err
	}
	p.logger().WithFields(logrus.Fields{
		"epoch":    epochID,
		"stage":    domain.StageScan,
		"solvent":  verdict.IsSolvent,
		"ratio":    verdict.Ratio,
		"reserves": report.ReservesFormatted,
	}).Info("reserves scanned")
	return report, nil
}

func (p *Pipeline) GenerateProof(ctx context.Context, epochID string) (domain.Proof, error) {
	if err := p.ready(epochID); err != nil {
		return domain.Proof{}, err
	}
	meta, err := p.loadMetadata(ctx, epochID)
	if err != nil {
		return domain.Proof{}, err
	}
	var reserves domain.ReservesReport
	if err := getJSON(ctx, p.Store, epochID, domain.ArtifactReserves, &reserves); err != nil {
		return domain.Proof{}, err
	}
	if reserves.MerkleRoot != meta.Root {
		return domain.Proof{}, &domain.IntegrityError{Check: "reserves snapshot root", Expected: meta.Root, Actual: reserves.MerkleRoot}
	}
	if reserves.Reserves == nil || reserves.Liabilities == nil || !reserves.Liabilities.Eq(meta.TotalLiabilities) {
		return domain.Proof{}, domain.NewInputError(domain.ArtifactReserves, "liabilities do not match the committed tree total")
	}

	witness := NewWitness(reserves.Reserves, meta.TotalLiabilities, meta.Root, reserves.Timestamp)
	proof := p.composer().Compose(epochID, witness)
	proof.Metadata.ParticipantCount = meta.LeafCount

	if err := putJSON(ctx, p.Store, epochID, domain.ArtifactWitness, witness); err != nil {
		return domain.Proof{}, err
	}
	if err := putJSON(ctx, p.Store, epochID, domain.ArtifactProof, proof); err != nil {
		return domain.Proof{}, err
	}
	if err := putJSON(ctx, p.Store, epochID, domain.ArtifactPublicSignals, proof.PublicSignals); err != nil {
		return domain.Proof{}, err
	}
	p.logger().WithFields(logrus.Fields{
		"epoch":      epochID,
		"stage":      domain.StageProve,
		"commitment": proof.Commitments.MasterCommitment.Hex(),
	}).Info("proof generated")
	return proof, nil
}

// VerifyProof returns the report even when checks fail; only missing or
// unreadable artifacts are errors.
func (p *Pipeline) VerifyProof(ctx context.Context, epochID string) (domain.VerificationReport, error) {
	if err := p.ready(epochID); err != nil {
		return domain.VerificationReport{}, err
	}
	var (
		proof   domain.Proof
		witness domain.Witness
	)
	if err := getJSON(ctx, p.Store, epochID, domain.ArtifactProof, &proof); err != nil {
		return domain.VerificationReport{}, err
	}
	if err := getJSON(ctx, p.Store, epochID, domain.ArtifactWitness, &witness); err != nil {
		return domain.VerificationReport{}, err
	}
	meta, err := p.loadMetadata(ctx, epochID)
	if err != nil {
		return domain.VerificationReport{}, err
	}
	report := p.verifier().Verify(proof, witness, meta)
	if report.EpochID == "" {
		report.EpochID = epochID
	}
	if err := putJSON(ctx, p.Store, epochID, domain.ArtifactVerification, report); err != nil {
		return domain.VerificationReport{}, err
	}
	log := p.logger().WithFields(logrus.Fields{"epoch": epochID, "stage": domain.StageVerify, "valid": report.Valid})
	if report.Valid {
		log.Info("proof verified")
	} else {
		log.WithField("failed", strings.Join(report.Failed(), ", ")).Warn("proof verification failed")
	}
	return report, nil
}

func (p *Pipeline) PublishProof(ctx context.Context, epochID string) (domain.PublishOutcome, error) {
	if err := p.ready(epochID); err != nil {
		return domain.PublishOutcome{}, err
	}
	if p.Publisher == nil {
		return domain.PublishOutcome{}, errors.New("ledger publisher is required")
	}
	var (
		proof  domain.Proof
		report domain.VerificationReport
	)
	if err := getJSON(ctx, p.Store, epochID, domain.ArtifactProof, &proof); err != nil {
		return domain.PublishOutcome{}, err
	}
	if err := getJSON(ctx, p.Store, epochID, domain.ArtifactVerification, &report); err != nil {
		return domain.PublishOutcome{}, err
	}
	if err := p.gate(ctx, epochID, proof, report); err != nil {
		return domain.PublishOutcome{}, err
	}
	outcome, err := p.Publisher.Publish(ctx, epochID, proof, p.Signer)
	if p.Observer != nil {
		status := string(outcome.Status)
		if err != nil {
			status = "failed"
		}
		p.Observer.ObservePublish(status)
	}
	if err != nil {
		return domain.PublishOutcome{}, err
	}
	if err := putJSON(ctx, p.Store, epochID, domain.ArtifactPublication, outcome); err != nil {
		return domain.PublishOutcome{}, err
	}
	return outcome, nil
}

func (p *Pipeline) VerifyOnChain(ctx context.Context, epochID string) (domain.OnChainVerification, error) {
	if err := p.ready(epochID); err != nil {
		return domain.OnChainVerification{}, err
	}
	if p.Publisher == nil {
		return domain.OnChainVerification{}, errors.New("ledger publisher is required")
	}
	meta, err := p.loadMetadata(ctx, epochID)
	if err != nil {
		return domain.OnChainVerification{}, err
	}
	result, err := p.Publisher.VerifyPublished(ctx, epochID, meta.Root)
	if err != nil {
		return domain.OnChainVerification{}, err
	}
	if err := putJSON(ctx, p.Store, epochID, domain.ArtifactOnChainVerification, result); err != nil {
		return domain.OnChainVerification{}, err
	}
	p.logger().WithFields(logrus.Fields{"epoch": epochID, "stage": domain.StageVerifyOnChain, "status": result.Status}).Info("on-chain verification finished")
	return result, nil
}

// RunStage runs a single stage and returns its artifact value.
func (p *Pipeline) RunStage(ctx context.Context, epochID string, stage domain.Stage) (any, error) {
	started := p.now()
	var (
		out any
		err error
	)
	switch stage {
	case domain.StageBuild:
		out, err = p.BuildTree(ctx, epochID)
	case domain.StageScan:
		out, err = p.ScanReserves(ctx, epochID)
	case domain.StageProve:
		out, err = p.GenerateProof(ctx, epochID)
	case domain.StageVerify:
		out, err = p.VerifyProof(ctx, epochID)
	case domain.StagePublish:
		out, err = p.PublishProof(ctx, epochID)
	case domain.StageVerifyOnChain:
		out, err = p.VerifyOnChain(ctx, epochID)
	default:
		return nil, domain.NewInputError("stage", "unknown stage %q", stage)
	}
	status := domain.StepSuccess
	if err != nil {
		status = domain.StepFailed
	}
	p.observe(stage, status, p.now().Sub(started))
	return out, err
}

func (p *Pipeline) Inclusion(ctx context.Context, epochID string, address common.Address) (domain.InclusionProof, error) {
	if err := p.ready(epochID); err != nil {
		return domain.InclusionProof{}, err
	}
	var proof domain.InclusionProof
	if err := getJSON(ctx, p.Store, epochID, domain.InclusionArtifact(domain.AddressKey(address)), &proof); err != nil {
		return domain.InclusionProof{}, err
	}
	return proof, nil
}

// CheckInclusion verifies a client supplied proof against the epoch's root.
func (p *Pipeline) CheckInclusion(ctx context.Context, epochID string, proof domain.InclusionProof) (bool, error) {
	if err := p.ready(epochID); err != nil {
		return false, err
	}
	meta, err := p.loadMetadata(ctx, epochID)
	if err != nil {
		return false, err
	}
	return VerifyInclusion(proof, meta.Root), nil
}

func (p *Pipeline) gate(ctx context.Context, epochID string, proof domain.Proof, report domain.VerificationReport) error {
	input := domain.PublishPolicyInput{
		EpochID:        epochID,
		IsSolvent:      proof.PublicSignals.IsSolvent,
		Verification:   report,
		FailedChecks:   report.Failed(),
		AllowInsolvent: p.AllowInsolvent,
	}
	if input.FailedChecks == nil {
		input.FailedChecks = []string{}
	}
	if p.Policy != nil {
		eval, err := p.Policy.Evaluate(ctx, input)
		if err != nil {
			return fmt.Errorf("evaluate publish policy: %w", err)
		}
		if !eval.Result.Allow {
			return &policyDenied{deny: eval.Result.Deny}
		}
		return nil
	}
	if report.Valid {
		return nil
	}
	if p.AllowInsolvent && len(input.FailedChecks) == 1 && input.FailedChecks[0] == domain.CheckSolvency {
		return nil
	}
	return &policyDenied{deny: []domain.PolicyDeny{{Code: "VERIFICATION_FAILED", Message: strings.Join(input.FailedChecks, ", ")}}}
}

type policyDenied struct {
	deny []domain.PolicyDeny
}

func (e *policyDenied) Error() string {
	parts := make([]string, 0, len(e.deny))
	for _, d := range e.deny {
		if d.Message != "" {
			parts = append(parts, d.Code+": "+d.Message)
		} else {
			parts = append(parts, d.Code)
		}
	}
	return "publish denied: " + strings.Join(parts, "; ")
}

func (e *policyDenied) Is(target error) bool {
	return target == domain.ErrPolicyDenied
}

func (p *Pipeline) loadMetadata(ctx context.Context, epochID string) (domain.MerkleMetadata, error) {
	var meta domain.MerkleMetadata
	if err := getJSON(ctx, p.Store, epochID, domain.ArtifactMerkleMetadata, &meta); err != nil {
		return domain.MerkleMetadata{}, err
	}
	if meta.TotalLiabilities == nil {
		return domain.MerkleMetadata{}, domain.NewInputError(domain.ArtifactMerkleMetadata, "missing total liabilities")
	}
	rootText, err := p.Store.Get(ctx, epochID, domain.ArtifactMerkleRoot)
	if err != nil {
		return domain.MerkleMetadata{}, fmt.Errorf("read %s of epoch %s: %w", domain.ArtifactMerkleRoot, epochID, err)
	}
	root := common.HexToHash(strings.TrimSpace(string(rootText)))
	if root != meta.Root {
		return domain.MerkleMetadata{}, &domain.IntegrityError{Check: "merkle root artifact", Expected: meta.Root, Actual: root}
	}
	return meta, nil
}

func (p *Pipeline) ready(epochID string) error {
	if p == nil || p.Store == nil {
		return errors.New("pipeline artifact store is required")
	}
	return domain.ValidateEpochID(epochID)
}

func (p *Pipeline) committer() *MerkleCommitter {
	if p.Committer != nil {
		return p.Committer
	}
	return NewMerkleCommitter(true)
}

func (p *Pipeline) composer() *ProofComposer {
	if p.Composer != nil {
		return p.Composer
	}
	return NewProofComposer(p.Decimals)
}

func (p *Pipeline) verifier() *ProofVerifier {
	if p.Verifier != nil {
		return p.Verifier
	}
	return NewProofVerifier(DefaultProofMaxAge)
}

func (p *Pipeline) observe(stage domain.Stage, status domain.StepStatus, elapsed time.Duration) {
	if p.Observer != nil {
		p.Observer.ObserveStage(stage, status, elapsed)
	}
}

func (p *Pipeline) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}

func (p *Pipeline) logger() logrus.FieldLogger {
	if p.Log != nil {
		return p.Log
	}
	return logrus.StandardLogger()
}
