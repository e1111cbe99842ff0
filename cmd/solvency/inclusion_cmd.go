package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/common"

	"solvency/internal/bootstrap"
	"solvency/internal/domain"
)

func runInclusion(args []string) int {
	fs := flag.NewFlagSet("inclusion", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var epochID string
	var address string
	var outPath string
	fs.StringVar(&epochID, "epoch", "", "epoch id")
	fs.StringVar(&address, "address", "", "account address (hex)")
	fs.StringVar(&outPath, "out", "", "output proof path (default stdout)")

	if err := fs.Parse(args); err != nil {
		return 1
	}
	if epochID == "" || !common.IsHexAddress(address) {
		fmt.Fprintln(os.Stderr, "inclusion requires --epoch and a hex --address")
		return 1
	}

	return withApp(func(ctx context.Context, app *bootstrap.App) int {
		proof, err := app.Pipeline.Inclusion(ctx, epochID, common.HexToAddress(address))
		if err != nil {
			fmt.Fprintf(os.Stderr, "inclusion proof: %v\n", err)
			return 1
		}
		return writeJSON(outPath, proof)
	})
}

func runInclusionVerify(args []string) int {
	fs := flag.NewFlagSet("inclusion verify", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var epochID string
	var inPath string
	fs.StringVar(&epochID, "epoch", "", "epoch id")
	fs.StringVar(&inPath, "in", "", "inclusion proof json")

	if err := fs.Parse(args); err != nil {
		return 1
	}
	if epochID == "" || inPath == "" {
		fmt.Fprintln(os.Stderr, "inclusion verify requires --epoch and --in")
		return 1
	}
	payload, err := os.ReadFile(inPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read proof: %v\n", err)
		return 1
	}
	var proof domain.InclusionProof
	if err := json.Unmarshal(payload, &proof); err != nil {
		fmt.Fprintf(os.Stderr, "decode proof: %v\n", err)
		return 1
	}

	return withApp(func(ctx context.Context, app *bootstrap.App) int {
		valid, err := app.Pipeline.CheckInclusion(ctx, epochID, proof)
		if err != nil {
			fmt.Fprintf(os.Stderr, "verify inclusion: %v\n", err)
			return 1
		}
		if !valid {
			fmt.Println("status=fail")
			return 1
		}
		fmt.Printf("status=pass root=%s\n", proof.Root.Hex())
		return 0
	})
}
