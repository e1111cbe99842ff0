package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"solvency/internal/domain"
	"solvency/internal/infra/policyopa"
)

const pipelineEpoch = "epoch_20260102-150405"

type recordingObserver struct {
	stages  map[domain.Stage]domain.StepStatus
	publish []string
}

func (o *recordingObserver) ObserveStage(stage domain.Stage, status domain.StepStatus, _ time.Duration) {
	if o.stages == nil {
		o.stages = make(map[domain.Stage]domain.StepStatus)
	}
	o.stages[stage] = status
}

func (o *recordingObserver) ObservePublish(status string) {
	o.publish = append(o.publish, status)
}

type staticPolicy struct {
	result domain.PolicyResult
	input  domain.PublishPolicyInput
}

func (p *staticPolicy) Evaluate(_ context.Context, input domain.PublishPolicyInput) (domain.PolicyEvaluation, error) {
	p.input = input
	return domain.PolicyEvaluation{Result: p.result}, nil
}

func stepStatuses(run domain.PipelineRun) map[domain.Stage]domain.StepStatus {
	out := make(map[domain.Stage]domain.StepStatus, len(run.Steps))
	for _, s := range run.Steps {
		out[s.Stage] = s.Status
	}
	return out
}

func TestPipelineRunSolvent(t *testing.T) {
	ctx := context.Background()
	f := newPipelineFixture(t, pipelineEpoch, 200)
	observer := &recordingObserver{}
	f.pipeline.Observer = observer

	run, err := f.pipeline.Run(ctx, pipelineEpoch, RunOptions{AutoPublish: true})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if run.Status != domain.StepSuccess {
		t.Fatalf("expected success, got %+v", run.Steps)
	}
	for _, stage := range domain.PipelineStages {
		if observer.stages[stage] != domain.StepSuccess {
			t.Fatalf("stage %s observed as %q", stage, observer.stages[stage])
		}
	}
	if len(observer.publish) != 1 || observer.publish[0] != string(domain.PublishStatusPublished) {
		t.Fatalf("unexpected publish observations %v", observer.publish)
	}

	for _, name := range []string{
		domain.ArtifactMerkleRoot, domain.ArtifactMerkleMetadata, domain.ArtifactReserves,
		domain.ArtifactWitness, domain.ArtifactProof, domain.ArtifactPublicSignals,
		domain.ArtifactVerification, domain.ArtifactPublication, domain.ArtifactOnChainVerification,
		domain.ArtifactPipelineRun,
	} {
		if ok, _ := f.store.Exists(ctx, pipelineEpoch, name); !ok {
			t.Fatalf("missing artifact %s", name)
		}
	}

	var reserves domain.ReservesReport
	if err := getJSON(ctx, f.store, pipelineEpoch, domain.ArtifactReserves, &reserves); err != nil {
		t.Fatalf("read reserves: %v", err)
	}
	if reserves.Verdict.Ratio != "133.33%" || !reserves.Verdict.IsSolvent || reserves.Timestamp != uint64(testNow.Unix()) {
		t.Fatalf("unexpected reserves report %+v", reserves)
	}

	latest, err := f.registry.Latest(ctx)
	if err != nil {
		t.Fatalf("registry latest: %v", err)
	}
	var meta domain.MerkleMetadata
	if err := getJSON(ctx, f.store, pipelineEpoch, domain.ArtifactMerkleMetadata, &meta); err != nil {
		t.Fatalf("read metadata: %v", err)
	}
	if latest.MerkleRoot != meta.Root {
		t.Fatalf("published root %s, committed %s", latest.MerkleRoot.Hex(), meta.Root.Hex())
	}

	// A second run republishes nothing.
	again, err := f.pipeline.Run(ctx, pipelineEpoch, RunOptions{AutoPublish: true})
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	var outcome domain.PublishOutcome
	if err := getJSON(ctx, f.store, pipelineEpoch, domain.ArtifactPublication, &outcome); err != nil {
		t.Fatalf("read publication: %v", err)
	}
	if again.Status != domain.StepSuccess || !outcome.AlreadyPublished() {
		t.Fatalf("expected already published on rerun, got %s / %s", again.Status, outcome.Status)
	}
}

func TestPipelineRunInsolventIsGated(t *testing.T) {
	ctx := context.Background()
	f := newPipelineFixture(t, pipelineEpoch, 100)

	run, err := f.pipeline.Run(ctx, pipelineEpoch, RunOptions{AutoPublish: true})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	statuses := stepStatuses(run)
	if statuses[domain.StageProve] != domain.StepSuccess {
		t.Fatalf("an insolvent epoch still gets a proof")
	}
	if statuses[domain.StageVerify] != domain.StepFailed || statuses[domain.StagePublish] != domain.StepFailed {
		t.Fatalf("expected verify and publish to fail, got %v", statuses)
	}
	if statuses[domain.StageVerifyOnChain] != domain.StepFailed {
		t.Fatalf("on-chain check should still run and report not_found, got %v", statuses)
	}
	step, _ := run.Step(domain.StagePublish)
	if !strings.Contains(step.Error, "VERIFICATION_FAILED") {
		t.Fatalf("unexpected publish error %q", step.Error)
	}
	if _, err := f.registry.Latest(ctx); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("nothing should be published, got %v", err)
	}

	f.pipeline.AllowInsolvent = true
	if _, err := f.pipeline.PublishProof(ctx, pipelineEpoch); err != nil {
		t.Fatalf("publish with allow insolvent: %v", err)
	}
	latest, err := f.registry.Latest(ctx)
	if err != nil || latest.IsSolvent {
		t.Fatalf("expected an insolvency record, got %+v %v", latest, err)
	}
}

func TestPipelineBuildFailureStopsRun(t *testing.T) {
	ctx := context.Background()
	f := newPipelineFixture(t, pipelineEpoch, 200)
	if err := f.store.Put(ctx, pipelineEpoch, domain.ArtifactLiabilities, []byte("address,balance\nnot-an-address,1\n")); err != nil {
		t.Fatalf("put: %v", err)
	}

	run, err := f.pipeline.Run(ctx, pipelineEpoch, RunOptions{AutoPublish: true})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if run.Status != domain.StepFailed {
		t.Fatalf("expected failed run")
	}
	statuses := stepStatuses(run)
	if statuses[domain.StageBuild] != domain.StepFailed {
		t.Fatalf("build should fail, got %v", statuses)
	}
	for _, stage := range domain.PipelineStages[1:] {
		if statuses[stage] != domain.StepSkipped {
			t.Fatalf("stage %s should be skipped, got %s", stage, statuses[stage])
		}
	}
	step, _ := run.Step(domain.StageScan)
	if step.SkipReason != "build failed" {
		t.Fatalf("unexpected skip reason %q", step.SkipReason)
	}
}

func TestPipelineScanFailure(t *testing.T) {
	ctx := context.Background()
	f := newPipelineFixture(t, pipelineEpoch, 200)
	f.reader.Err = errors.New("rpc down")

	run, err := f.pipeline.Run(ctx, pipelineEpoch, RunOptions{})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	statuses := stepStatuses(run)
	if statuses[domain.StageBuild] != domain.StepSuccess || statuses[domain.StageScan] != domain.StepFailed || statuses[domain.StageProve] != domain.StepSkipped {
		t.Fatalf("unexpected statuses %v", statuses)
	}
}

func TestPipelineSkipsPublishByDefault(t *testing.T) {
	ctx := context.Background()
	f := newPipelineFixture(t, pipelineEpoch, 200)
	run, err := f.pipeline.Run(ctx, pipelineEpoch, RunOptions{})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	step, _ := run.Step(domain.StagePublish)
	if step.Status != domain.StepSkipped {
		t.Fatalf("publish should be skipped, got %s", step.Status)
	}
	onchain, _ := run.Step(domain.StageVerifyOnChain)
	if onchain.Status != domain.StepFailed || !strings.Contains(onchain.Error, string(domain.OnChainNotFound)) {
		t.Fatalf("unexpected on-chain step %+v", onchain)
	}
}

func TestPipelineStageOrderEnforced(t *testing.T) {
	ctx := context.Background()
	f := newPipelineFixture(t, pipelineEpoch, 200)
	if _, err := f.pipeline.GenerateProof(ctx, pipelineEpoch); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("proving before build should report missing artifacts, got %v", err)
	}
	if _, err := f.pipeline.RunStage(ctx, "../etc", domain.StageBuild); !errors.Is(err, domain.ErrInput) {
		t.Fatalf("expected invalid epoch id, got %v", err)
	}
}

func TestPipelineDetectsRootTampering(t *testing.T) {
	ctx := context.Background()
	f := newPipelineFixture(t, pipelineEpoch, 200)
	if _, err := f.pipeline.BuildTree(ctx, pipelineEpoch); err != nil {
		t.Fatalf("build: %v", err)
	}
	if err := f.store.Put(ctx, pipelineEpoch, domain.ArtifactMerkleRoot, []byte(common.HexToHash("0x05").Hex())); err != nil {
		t.Fatalf("put: %v", err)
	}
	if _, err := f.pipeline.ScanReserves(ctx, pipelineEpoch); !errors.Is(err, domain.ErrIntegrity) {
		t.Fatalf("expected integrity error, got %v", err)
	}
}

func TestPipelinePolicyGate(t *testing.T) {
	ctx := context.Background()
	f := newPipelineFixture(t, pipelineEpoch, 200)
	policy := &staticPolicy{result: domain.PolicyResult{Allow: false, Deny: []domain.PolicyDeny{{Code: "FROZEN"}}}}
	f.pipeline.Policy = policy
	for _, stage := range []domain.Stage{domain.StageBuild, domain.StageScan, domain.StageProve, domain.StageVerify} {
		if _, err := f.pipeline.RunStage(ctx, pipelineEpoch, stage); err != nil {
			t.Fatalf("%s: %v", stage, err)
		}
	}
	_, err := f.pipeline.PublishProof(ctx, pipelineEpoch)
	if !errors.Is(err, domain.ErrPolicyDenied) || !strings.Contains(err.Error(), "FROZEN") {
		t.Fatalf("expected policy denial, got %v", err)
	}
	if policy.input.EpochID != pipelineEpoch || !policy.input.IsSolvent || policy.input.FailedChecks == nil {
		t.Fatalf("unexpected policy input %+v", policy.input)
	}

	engine, err := policyopa.NewEngine(ctx, "")
	if err != nil {
		t.Fatalf("engine: %v", err)
	}
	f.pipeline.Policy = engine
	outcome, err := f.pipeline.PublishProof(ctx, pipelineEpoch)
	if err != nil || outcome.Status != domain.PublishStatusPublished {
		t.Fatalf("default policy should allow a valid proof: %+v %v", outcome, err)
	}
}

func TestPipelineInclusion(t *testing.T) {
	ctx := context.Background()
	f := newPipelineFixture(t, pipelineEpoch, 200)
	if _, err := f.pipeline.BuildTree(ctx, pipelineEpoch); err != nil {
		t.Fatalf("build: %v", err)
	}
	proof, err := f.pipeline.Inclusion(ctx, pipelineEpoch, testBob)
	if err != nil {
		t.Fatalf("inclusion: %v", err)
	}
	ok, err := f.pipeline.CheckInclusion(ctx, pipelineEpoch, proof)
	if err != nil || !ok {
		t.Fatalf("expected proof to verify: %v", err)
	}
	if _, err := f.pipeline.Inclusion(ctx, pipelineEpoch, common.HexToAddress("0x01")); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found for unknown account, got %v", err)
	}
}
