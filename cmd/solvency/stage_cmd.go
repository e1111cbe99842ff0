package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"solvency/internal/bootstrap"
	"solvency/internal/domain"
	"solvency/internal/usecase"
)

func runStage(stage domain.Stage, args []string) int {
	fs := flag.NewFlagSet(string(stage), flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var epochID string
	var outPath string
	fs.StringVar(&epochID, "epoch", "", "epoch id")
	fs.StringVar(&outPath, "out", "", "output path (default stdout)")

	if err := fs.Parse(args); err != nil {
		return 1
	}
	if epochID == "" {
		fmt.Fprintf(os.Stderr, "%s requires --epoch\n", stage)
		return 1
	}

	return withApp(func(ctx context.Context, app *bootstrap.App) int {
		out, err := app.Pipeline.RunStage(ctx, epochID, stage)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", stage, err)
			return 1
		}
		if code := writeJSON(outPath, out); code != 0 {
			return code
		}
		return stageExitCode(out)
	})
}

// stageExitCode fails verification stages whose result is negative so shell
// pipelines can gate on them.
func stageExitCode(out any) int {
	switch v := out.(type) {
	case domain.VerificationReport:
		if !v.Valid {
			return 1
		}
	case domain.OnChainVerification:
		if v.Status != domain.OnChainVerified {
			return 1
		}
	}
	return 0
}

func runPipeline(args []string) int {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var epochID string
	var publish bool
	var outPath string
	fs.StringVar(&epochID, "epoch", "", "epoch id (default: latest exported epoch)")
	fs.BoolVar(&publish, "publish", false, "publish the proof when the gate allows it")
	fs.StringVar(&outPath, "out", "", "output path for the run summary (default stdout)")

	if err := fs.Parse(args); err != nil {
		return 1
	}

	return withApp(func(ctx context.Context, app *bootstrap.App) int {
		if epochID == "" {
			latest, err := app.Exporter.Latest(ctx)
			if err != nil {
				fmt.Fprintf(os.Stderr, "latest epoch: %v\n", err)
				return 1
			}
			epochID = latest
		}
		result, err := app.Pipeline.Run(ctx, epochID, usecase.RunOptions{AutoPublish: publish})
		if err != nil {
			fmt.Fprintf(os.Stderr, "run pipeline: %v\n", err)
			return 1
		}
		if code := writeJSON(outPath, result); code != 0 {
			return code
		}
		if result.Status != domain.StepSuccess {
			return 1
		}
		return 0
	})
}
