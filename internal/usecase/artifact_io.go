package usecase

import (
	"context"
	"encoding/json"
	"fmt"

	"solvency/internal/domain"
)

func putJSON(ctx context.Context, store domain.ArtifactStore, epochID, name string, v any) error {
	payload, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}
	if err := store.Put(ctx, epochID, name, payload); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}

// getJSON reads an artifact written by an earlier stage. A missing artifact
// means that stage has not completed.
func getJSON(ctx context.Context, store domain.ArtifactStore, epochID, name string, v any) error {
	payload, err := store.Get(ctx, epochID, name)
	if err != nil {
		return fmt.Errorf("read %s of epoch %s: %w", name, epochID, err)
	}
	if err := json.Unmarshal(payload, v); err != nil {
		return domain.NewInputError(name, "decode: %v", err)
	}
	return nil
}
