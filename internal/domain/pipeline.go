package domain

import "time"

type Stage string

const (
	StageBuild         Stage = "build"
	StageScan          Stage = "scan"
	StageProve         Stage = "prove"
	StageVerify        Stage = "verify"
	StagePublish       Stage = "publish"
	StageVerifyOnChain Stage = "verify-onchain"
)

var PipelineStages = []Stage{StageBuild, StageScan, StageProve, StageVerify, StagePublish, StageVerifyOnChain}

func ParseStage(s string) (Stage, error) {
	for _, st := range PipelineStages {
		if string(st) == s {
			return st, nil
		}
	}
	return "", NewInputError("stage", "unknown stage %q", s)
}

type StepStatus string

const (
	StepSuccess StepStatus = "success"
	StepFailed  StepStatus = "failed"
	StepSkipped StepStatus = "skipped"
)

type PipelineStep struct {
	Stage      Stage         `json:"stage"`
	Status     StepStatus    `json:"status"`
	StartedAt  time.Time     `json:"startedAt,omitempty"`
	Duration   time.Duration `json:"duration"`
	Error      string        `json:"error,omitempty"`
	SkipReason string        `json:"skipReason,omitempty"`
}

type PipelineRun struct {
	ID         string         `json:"id"`
	EpochID    string         `json:"epochId"`
	Status     StepStatus     `json:"status"`
	Steps      []PipelineStep `json:"steps"`
	StartedAt  time.Time      `json:"startedAt"`
	FinishedAt time.Time      `json:"finishedAt"`
}

func (r PipelineRun) Step(stage Stage) (PipelineStep, bool) {
	for _, s := range r.Steps {
		if s.Stage == stage {
			return s, true
		}
	}
	return PipelineStep{}, false
}
