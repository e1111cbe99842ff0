package usecase

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"solvency/internal/domain"
)

// LedgerReader returns the current raw balance of an account.
type LedgerReader interface {
	BalanceAt(ctx context.Context, account common.Address) (*uint256.Int, error)
}

type Signer = domain.Signer

// Registry is the append-only ledger proofs are published to. Get returns
// domain.ErrNotFound for unknown keys.
type Registry interface {
	Exists(ctx context.Context, key common.Hash) (bool, error)
	Get(ctx context.Context, key common.Hash) (*domain.PublishedRecord, error)
	Publish(ctx context.Context, payload domain.RegistryPayload, signer Signer) (domain.WriteReceipt, error)
}

type RegistryEvents interface {
	Latest(ctx context.Context) (*domain.PublishedRecord, error)
	PublishedEvents(ctx context.Context, fromBlock uint64) ([]domain.PublishedEvent, error)
}

// LiabilitySource produces the liabilities of a new epoch.
type LiabilitySource interface {
	Name() string
	Liabilities(ctx context.Context) (domain.LiabilitySet, error)
}

// SessionScoped is implemented by sources that read one coordinator session.
type SessionScoped interface {
	Session() string
}

type PublishPolicy interface {
	Evaluate(ctx context.Context, input domain.PublishPolicyInput) (domain.PolicyEvaluation, error)
}

type HistoryRepository interface {
	// Save replaces any entry with the same epoch id.
	Save(ctx context.Context, entry domain.HistoryEntry) error
	List(ctx context.Context, limit int) ([]domain.HistoryEntry, error)
	Prune(ctx context.Context, keep int) error
}

type StageObserver interface {
	ObserveStage(stage domain.Stage, status domain.StepStatus, elapsed time.Duration)
	ObservePublish(status string)
}
