package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"

	"solvency/internal/domain"
	"solvency/internal/infra/crypto"
)

const DefaultPublishTimeout = 2 * time.Minute

type LedgerPublisher struct {
	Registry Registry
	// Lock is optional; when set, publishers of the same epoch are serialized.
	Lock    domain.Lock
	History *PublicationHistory
	Timeout time.Duration
	Now     func() time.Time
	Log     logrus.FieldLogger
}

func NewLedgerPublisher(registry Registry, timeout time.Duration) *LedgerPublisher {
	return &LedgerPublisher{
		Registry: registry,
		Timeout:  timeout,
		Now:      time.Now,
		Log:      logrus.StandardLogger(),
	}
}

// Publish writes proof under the epoch key at most once. An existing record
// is returned as AlreadyPublished without a second write. When the deadline
// expires mid-submission the error reports an unknown outcome; retrying is
// safe because of the existence check.
func (p *LedgerPublisher) Publish(ctx context.Context, epochID string, proof domain.Proof, signer Signer) (domain.PublishOutcome, error) {
	if p == nil || p.Registry == nil {
		return domain.PublishOutcome{}, errors.New("ledger publisher is not configured")
	}
	if signer == nil {
		return domain.PublishOutcome{}, &domain.PublishFailedError{EpochID: epochID, Err: errors.New("signer is required")}
	}
	if _, ok := ctx.Deadline(); !ok && p.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.Timeout)
		defer cancel()
	}
	key := crypto.EpochKey(epochID)
	log := p.logger().WithFields(logrus.Fields{"epoch": epochID, "epoch_key": key.Hex()})

	if p.Lock != nil {
		release, err := p.Lock.Acquire(ctx, key.Hex())
		if err != nil {
			return p.failed(ctx, epochID, proof, &domain.PublishFailedError{EpochID: epochID, Err: err})
		}
		defer func() {
			if err := release(context.WithoutCancel(ctx)); err != nil {
				log.WithError(err).Warn("release publish lease")
			}
		}()
	}

	exists, err := p.Registry.Exists(ctx, key)
	if err != nil {
		return p.failed(ctx, epochID, proof, &domain.PublishFailedError{
			EpochID:        epochID,
			Err:            &domain.TransientError{Op: "check registry", Err: err},
		})
	}
	if exists {
		record, err := p.Registry.Get(ctx, key)
		if err != nil {
			return domain.PublishOutcome{}, &domain.TransientError{Op: "read published record", Err: err}
		}
		log.Info("proof already published")
		outcome := domain.PublishOutcome{
			EpochID:     epochID,
			EpochKey:    key,
			Status:      domain.PublishStatusAlreadyPublished,
			Record:      record,
			PublishedAt: p.now(),
		}
		p.record(ctx, historyFromOutcome(outcome, proof))
		return outcome, nil
	}

	payload := domain.RegistryPayload{
		EpochKey:      key,
		PublicSignals: proof.PublicSignals,
		Commitments:   proof.Commitments,
	}
	receipt, err := p.Registry.Publish(ctx, payload, signer)
	if err != nil {
		unknown := errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded)
		return p.failed(ctx, epochID, proof, &domain.PublishFailedError{EpochID: epochID, OutcomeUnknown: unknown, Err: err})
	}
	if receipt.Publisher == (common.Address{}) {
		receipt.Publisher = signer.Address()
	}
	log.WithFields(logrus.Fields{"tx": receipt.TxHash.Hex(), "block": receipt.BlockNumber}).Info("proof published")
	outcome := domain.PublishOutcome{
		EpochID:     epochID,
		EpochKey:    key,
		Status:      domain.PublishStatusPublished,
		Receipt:     &receipt,
		PublishedAt: p.now(),
	}
	p.record(ctx, historyFromOutcome(outcome, proof))
	return outcome, nil
}

// VerifyPublished reads the record back and compares only the merkle root.
func (p *LedgerPublisher) VerifyPublished(ctx context.Context, epochID string, expectedRoot common.Hash) (domain.OnChainVerification, error) {
	if p == nil || p.Registry == nil {
		return domain.OnChainVerification{}, errors.New("ledger publisher is not configured")
	}
	key := crypto.EpochKey(epochID)
	result := domain.OnChainVerification{
		EpochID:      epochID,
		EpochKey:     key,
		ExpectedRoot: expectedRoot,
		CheckedAt:    p.now(),
	}
	record, err := p.Registry.Get(ctx, key)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		result.Status = domain.OnChainNotFound
	case err != nil:
		return domain.OnChainVerification{}, &domain.TransientError{Op: "read published record", Err: err}
	case record.MerkleRoot == expectedRoot:
		result.Status = domain.OnChainVerified
		result.Record = record
	default:
		result.Status = domain.OnChainMismatched
		result.Record = record
	}
	p.record(ctx, historyFromVerification(result))
	return result, nil
}

func (p *LedgerPublisher) failed(ctx context.Context, epochID string, proof domain.Proof, err *domain.PublishFailedError) (domain.PublishOutcome, error) {
	p.logger().WithError(err).WithField("epoch", epochID).Error("publish failed")
	entry := domain.HistoryEntry{
		EpochID:    epochID,
		EpochKey:   crypto.EpochKey(epochID),
		Status:     domain.HistoryFailed,
		MerkleRoot: proof.PublicSignals.MerkleRoot,
		IsSolvent:  proof.PublicSignals.IsSolvent,
		Error:      err.Error(),
	}
	p.record(ctx, entry)
	return domain.PublishOutcome{}, err
}

func (p *LedgerPublisher) record(ctx context.Context, entry domain.HistoryEntry) {
	if p.History == nil {
		return
	}
	if err := p.History.Record(context.WithoutCancel(ctx), entry); err != nil {
		p.logger().WithError(err).Warn("record publication history")
	}
}

func (p *LedgerPublisher) now() time.Time {
	if p.Now != nil {
		return p.Now().UTC()
	}
	return time.Now().UTC()
}

func (p *LedgerPublisher) logger() logrus.FieldLogger {
	if p.Log != nil {
		return p.Log
	}
	return logrus.StandardLogger()
}

func historyFromOutcome(o domain.PublishOutcome, proof domain.Proof) domain.HistoryEntry {
	entry := domain.HistoryEntry{
		EpochID:    o.EpochID,
		EpochKey:   o.EpochKey,
		MerkleRoot: proof.PublicSignals.MerkleRoot,
		IsSolvent:  proof.PublicSignals.IsSolvent,
	}
	switch o.Status {
	case domain.PublishStatusAlreadyPublished:
		entry.Status = domain.HistoryAlreadyPublished
		if o.Record != nil {
			entry.MerkleRoot = o.Record.MerkleRoot
			entry.IsSolvent = o.Record.IsSolvent
			entry.Publisher = o.Record.Publisher
			entry.BlockNumber = o.Record.BlockNumber
		}
	default:
		entry.Status = domain.HistoryPublished
		if o.Receipt != nil {
			entry.TxHash = o.Receipt.TxHash
			entry.BlockNumber = o.Receipt.BlockNumber
			entry.Publisher = o.Receipt.Publisher
		}
	}
	return entry
}

func historyFromVerification(v domain.OnChainVerification) domain.HistoryEntry {
	entry := domain.HistoryEntry{
		EpochID:    v.EpochID,
		EpochKey:   v.EpochKey,
		MerkleRoot: v.ExpectedRoot,
	}
	switch v.Status {
	case domain.OnChainVerified:
		entry.Status = domain.HistoryVerified
	case domain.OnChainMismatched:
		entry.Status = domain.HistoryMismatched
	default:
		entry.Status = domain.HistoryNotFound
	}
	if v.Record != nil {
		entry.IsSolvent = v.Record.IsSolvent
		entry.Publisher = v.Record.Publisher
		entry.BlockNumber = v.Record.BlockNumber
	}
	return entry
}
