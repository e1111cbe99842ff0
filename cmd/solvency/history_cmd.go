package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"solvency/internal/bootstrap"
)

func runHistory(args []string) int {
	fs := flag.NewFlagSet("history", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var limit int
	fs.IntVar(&limit, "limit", 0, "maximum entries to print (default all retained)")

	if err := fs.Parse(args); err != nil {
		return 1
	}

	return withApp(func(ctx context.Context, app *bootstrap.App) int {
		entries, err := app.History.List(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "list history: %v\n", err)
			return 1
		}
		if limit > 0 && limit < len(entries) {
			entries = entries[:limit]
		}
		return writeJSON("", entries)
	})
}

func runHistorySync(args []string) int {
	fs := flag.NewFlagSet("history sync", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var fromBlock uint64
	fs.Uint64Var(&fromBlock, "from-block", 0, "first block to scan for ProofPublished events")

	if err := fs.Parse(args); err != nil {
		return 1
	}

	return withApp(func(ctx context.Context, app *bootstrap.App) int {
		resolve, err := app.ResolveEpochKey(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "list epochs: %v\n", err)
			return 1
		}
		n, err := app.History.SyncFromRegistry(ctx, app.Registry, fromBlock, resolve)
		if err != nil {
			fmt.Fprintf(os.Stderr, "sync history: %v\n", err)
			return 1
		}
		fmt.Printf("synced=%d\n", n)
		return 0
	})
}
