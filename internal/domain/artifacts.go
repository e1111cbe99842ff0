package domain

import "context"

const (
	ArtifactLiabilities         = "liabilities.csv"
	ArtifactEpoch               = "epoch.json"
	ArtifactMerkleRoot          = "merkle_root.txt"
	ArtifactMerkleMetadata      = "merkle_metadata.json"
	ArtifactReserves            = "reserves.json"
	ArtifactWitness             = "witness.json"
	ArtifactProof               = "proof.json"
	ArtifactPublicSignals       = "public_signals.json"
	ArtifactVerification        = "verification.json"
	ArtifactPublication         = "publication.json"
	ArtifactOnChainVerification = "onchain_verification.json"
	ArtifactPipelineRun         = "pipeline_run.json"

	inclusionPrefix = "inclusion_"
)

func InclusionArtifact(addressKey string) string {
	return inclusionPrefix + addressKey + ".json"
}

// ArtifactStore persists the per-epoch blobs each stage reads and writes.
// Get returns ErrNotFound when the artifact is absent.
type ArtifactStore interface {
	Put(ctx context.Context, epochID, name string, data []byte) error
	Get(ctx context.Context, epochID, name string) ([]byte, error)
	Exists(ctx context.Context, epochID, name string) (bool, error)
	List(ctx context.Context, epochID string) ([]string, error)
	Epochs(ctx context.Context) ([]string, error)
}

// Lock serializes work on a key across processes.
type Lock interface {
	Acquire(ctx context.Context, key string) (release func(context.Context) error, err error)
}
