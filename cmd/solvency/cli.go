package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"solvency/internal/bootstrap"
	"solvency/internal/config"
	"solvency/internal/domain"
	"solvency/internal/infra/logging"
)

func run(args []string) int {
	if len(args) < 2 {
		usage(args)
		return 1
	}

	switch args[1] {
	case "export":
		return runExport(args[2:])
	case "epochs":
		return runEpochs(args[2:])
	case "run":
		return runPipeline(args[2:])
	case "inclusion":
		if len(args) >= 3 && args[2] == "verify" {
			return runInclusionVerify(args[3:])
		}
		return runInclusion(args[2:])
	case "history":
		if len(args) >= 3 && args[2] == "sync" {
			return runHistorySync(args[3:])
		}
		return runHistory(args[2:])
	default:
		if stage, err := domain.ParseStage(args[1]); err == nil {
			return runStage(stage, args[2:])
		}
	}

	usage(args)
	return 1
}

func usage(args []string) {
	name := "solvency"
	if len(args) > 0 && args[0] != "" {
		name = filepath.Base(args[0])
	}
	fmt.Fprintf(os.Stderr, "usage:\n")
	fmt.Fprintf(os.Stderr, "  %s export [--epoch <id>] (--csv <file>|--session <id>) [--out <file>]\n", name)
	fmt.Fprintf(os.Stderr, "  %s epochs [--latest]\n", name)
	fmt.Fprintf(os.Stderr, "  %s build|scan|prove|verify|publish|verify-onchain --epoch <id> [--out <file>]\n", name)
	fmt.Fprintf(os.Stderr, "  %s run --epoch <id> [--publish] [--out <file>]\n", name)
	fmt.Fprintf(os.Stderr, "  %s inclusion --epoch <id> --address <hex> [--out <file>]\n", name)
	fmt.Fprintf(os.Stderr, "  %s inclusion verify --epoch <id> --in <proof.json>\n", name)
	fmt.Fprintf(os.Stderr, "  %s history [--limit <n>]\n", name)
	fmt.Fprintf(os.Stderr, "  %s history sync [--from-block <n>]\n", name)
	fmt.Fprintf(os.Stderr, "configuration is read from the environment (ARTIFACT_BACKEND, RPC_URL, REGISTRY_ADDRESS, ...)\n")
}

// withApp wires the pipeline from the environment and runs fn with a context
// cancelled on SIGINT or SIGTERM.
func withApp(fn func(ctx context.Context, app *bootstrap.App) int) int {
	cfg := config.FromEnv()
	log := logging.New(cfg.LogLevel, cfg.LogFormat, os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init: %v\n", err)
		return 1
	}
	defer func() {
		if err := app.Close(); err != nil {
			log.WithError(err).Warn("close")
		}
	}()
	return fn(ctx, app)
}
