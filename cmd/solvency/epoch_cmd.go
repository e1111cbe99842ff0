package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"solvency/internal/bootstrap"
	"solvency/internal/domain"
)

func runExport(args []string) int {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var epochID string
	var csvPath string
	var sessionID string
	var outPath string

	fs.StringVar(&epochID, "epoch", "", "epoch id (default epoch_<utc timestamp>)")
	fs.StringVar(&csvPath, "csv", "", "liabilities csv file (address,balance)")
	fs.StringVar(&sessionID, "session", "", "coordinator app session id")
	fs.StringVar(&outPath, "out", "", "output path for the epoch info (default stdout)")

	if err := fs.Parse(args); err != nil {
		return 1
	}
	if (csvPath == "") == (sessionID == "") {
		fmt.Fprintln(os.Stderr, "export requires exactly one of --csv or --session")
		return 1
	}

	return withApp(func(ctx context.Context, app *bootstrap.App) int {
		var (
			info domain.EpochInfo
			err  error
		)
		if csvPath != "" {
			f, ferr := os.Open(csvPath)
			if ferr != nil {
				fmt.Fprintf(os.Stderr, "open csv: %v\n", ferr)
				return 1
			}
			defer f.Close()
			info, err = app.Exporter.ExportCSV(ctx, epochID, f)
		} else {
			src := app.SessionSource(sessionID)
			if src == nil {
				fmt.Fprintln(os.Stderr, "--session requires COORDINATOR_URL")
				return 1
			}
			info, err = app.Exporter.ExportFrom(ctx, epochID, src)
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "export epoch: %v\n", err)
			return 1
		}
		return writeJSON(outPath, info)
	})
}

func runEpochs(args []string) int {
	fs := flag.NewFlagSet("epochs", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var latest bool
	fs.BoolVar(&latest, "latest", false, "print only the newest epoch")

	if err := fs.Parse(args); err != nil {
		return 1
	}

	return withApp(func(ctx context.Context, app *bootstrap.App) int {
		if latest {
			id, err := app.Exporter.Latest(ctx)
			if err != nil {
				fmt.Fprintf(os.Stderr, "latest epoch: %v\n", err)
				return 1
			}
			fmt.Println(id)
			return 0
		}
		epochs, err := app.Exporter.List(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "list epochs: %v\n", err)
			return 1
		}
		for _, id := range epochs {
			fmt.Println(id)
		}
		return 0
	})
}
