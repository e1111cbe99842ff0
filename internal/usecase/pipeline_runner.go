package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"solvency/internal/domain"
)

type RunOptions struct {
	AutoPublish bool
}

// Run drives all stages of an epoch and reports every step. A failure while
// building, scanning or proving stops the run since later stages would read
// missing artifacts. Verification and publish failures are recorded and the
// run continues with the on-chain check.
func (p *Pipeline) Run(ctx context.Context, epochID string, opts RunOptions) (domain.PipelineRun, error) {
	if err := p.ready(epochID); err != nil {
		return domain.PipelineRun{}, err
	}
	run := domain.PipelineRun{
		ID:        uuid.NewString(),
		EpochID:   epochID,
		StartedAt: p.now().UTC(),
	}
	log := p.logger().WithFields(logrus.Fields{"epoch": epochID, "run": run.ID})
	log.Info("pipeline started")

	stopReason := ""
	for _, stage := range domain.PipelineStages {
		step := domain.PipelineStep{Stage: stage}
		switch {
		case stopReason != "":
			step.Status, step.SkipReason = domain.StepSkipped, stopReason
		case stage == domain.StagePublish && !opts.AutoPublish:
			step.Status, step.SkipReason = domain.StepSkipped, "auto publish disabled"
		default:
			step = p.runStep(ctx, epochID, stage)
		}
		if step.Status == domain.StepFailed && stopsRun(stage) {
			stopReason = fmt.Sprintf("%s failed", stage)
		}
		if step.Status == domain.StepSkipped {
			p.observe(stage, step.Status, 0)
		}
		run.Steps = append(run.Steps, step)
	}

	run.Status = domain.StepSuccess
	for _, s := range run.Steps {
		if s.Status == domain.StepFailed {
			run.Status = domain.StepFailed
			break
		}
	}
	run.FinishedAt = p.now().UTC()
	if err := putJSON(ctx, p.Store, epochID, domain.ArtifactPipelineRun, run); err != nil {
		log.WithError(err).Warn("persist pipeline run")
	}
	log.WithField("status", run.Status).Info("pipeline finished")
	return run, nil
}

func (p *Pipeline) runStep(ctx context.Context, epochID string, stage domain.Stage) domain.PipelineStep {
	step := domain.PipelineStep{Stage: stage, StartedAt: p.now().UTC()}
	out, err := p.RunStage(ctx, epochID, stage)
	step.Duration = p.now().Sub(step.StartedAt)
	switch {
	case err != nil:
		step.Status = domain.StepFailed
		step.Error = err.Error()
	case stage == domain.StageVerify:
		report := out.(domain.VerificationReport)
		if report.Valid {
			step.Status = domain.StepSuccess
		} else {
			step.Status = domain.StepFailed
			step.Error = "failed checks: " + strings.Join(report.Failed(), ", ")
		}
	case stage == domain.StageVerifyOnChain:
		result := out.(domain.OnChainVerification)
		if result.Status == domain.OnChainVerified {
			step.Status = domain.StepSuccess
		} else {
			step.Status = domain.StepFailed
			step.Error = "on-chain status: " + string(result.Status)
		}
	default:
		step.Status = domain.StepSuccess
	}
	return step
}

func stopsRun(stage domain.Stage) bool {
	switch stage {
	case domain.StageBuild, domain.StageScan, domain.StageProve:
		return true
	}
	return false
}
