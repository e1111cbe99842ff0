package usecase

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"solvency/internal/domain"
)

type EpochExporter struct {
	Store domain.ArtifactStore
	Now   func() time.Time
	Log   logrus.FieldLogger
}

func NewEpochExporter(store domain.ArtifactStore) *EpochExporter {
	return &EpochExporter{Store: store, Now: time.Now, Log: logrus.StandardLogger()}
}

// Export freezes set as the liabilities of a new epoch. An empty epochID
// gets a time based one. Existing epochs are never overwritten.
func (e *EpochExporter) Export(ctx context.Context, epochID string, set domain.LiabilitySet, source string) (domain.EpochInfo, error) {
	return e.export(ctx, epochID, set, source, "")
}

func (e *EpochExporter) export(ctx context.Context, epochID string, set domain.LiabilitySet, source, sessionID string) (domain.EpochInfo, error) {
	if e == nil || e.Store == nil {
		return domain.EpochInfo{}, errors.New("artifact store is required")
	}
	now := e.now()
	if epochID == "" {
		epochID = domain.NewEpochID(now)
	}
	if err := domain.ValidateEpochID(epochID); err != nil {
		return domain.EpochInfo{}, err
	}
	if err := set.Validate(); err != nil {
		return domain.EpochInfo{}, err
	}
	total, err := set.Total()
	if err != nil {
		return domain.EpochInfo{}, err
	}
	exists, err := e.Store.Exists(ctx, epochID, domain.ArtifactLiabilities)
	if err != nil {
		return domain.EpochInfo{}, err
	}
	if exists {
		return domain.EpochInfo{}, fmt.Errorf("epoch %s: %w", epochID, domain.ErrConflict)
	}
	if dups := set.DuplicateAddresses(); len(dups) > 0 {
		e.logger().WithFields(logrus.Fields{"epoch": epochID, "duplicates": len(dups)}).Warn("liabilities contain duplicate addresses")
	}

	csvBytes, err := EncodeLiabilitiesCSV(set)
	if err != nil {
		return domain.EpochInfo{}, err
	}
	info := domain.EpochInfo{
		ID:               epochID,
		Source:           source,
		SessionID:        sessionID,
		ParticipantCount: len(set),
		TotalLiabilities: total,
		CreatedAt:        now,
	}
	if err := e.Store.Put(ctx, epochID, domain.ArtifactLiabilities, csvBytes); err != nil {
		return domain.EpochInfo{}, err
	}
	if err := putJSON(ctx, e.Store, epochID, domain.ArtifactEpoch, info); err != nil {
		return domain.EpochInfo{}, err
	}
	e.logger().WithFields(logrus.Fields{"epoch": epochID, "participants": len(set), "source": source}).Info("epoch exported")
	return info, nil
}

func (e *EpochExporter) ExportFrom(ctx context.Context, epochID string, src LiabilitySource) (domain.EpochInfo, error) {
	set, err := src.Liabilities(ctx)
	if err != nil {
		return domain.EpochInfo{}, err
	}
	sessionID := ""
	if scoped, ok := src.(SessionScoped); ok {
		sessionID = scoped.Session()
	}
	return e.export(ctx, epochID, set, src.Name(), sessionID)
}

func (e *EpochExporter) ExportCSV(ctx context.Context, epochID string, r io.Reader) (domain.EpochInfo, error) {
	set, err := ParseLiabilitiesCSV(r)
	if err != nil {
		return domain.EpochInfo{}, err
	}
	return e.Export(ctx, epochID, set, "csv")
}

// List returns every exported epoch, newest first.
func (e *EpochExporter) List(ctx context.Context) ([]string, error) {
	epochs, err := e.Store.Epochs(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(epochs))
	for _, id := range epochs {
		ok, err := e.Store.Exists(ctx, id, domain.ArtifactLiabilities)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, id)
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(out)))
	return out, nil
}

func (e *EpochExporter) Latest(ctx context.Context) (string, error) {
	epochs, err := e.List(ctx)
	if err != nil {
		return "", err
	}
	if len(epochs) == 0 {
		return "", fmt.Errorf("no exported epochs: %w", domain.ErrNotFound)
	}
	return epochs[0], nil
}

func (e *EpochExporter) Info(ctx context.Context, epochID string) (domain.EpochInfo, error) {
	var info domain.EpochInfo
	err := getJSON(ctx, e.Store, epochID, domain.ArtifactEpoch, &info)
	if errors.Is(err, domain.ErrNotFound) {
		// Epochs dropped in by hand carry only the csv.
		raw, rerr := e.Store.Get(ctx, epochID, domain.ArtifactLiabilities)
		if rerr != nil {
			return domain.EpochInfo{}, rerr
		}
		set, perr := ParseLiabilitiesCSV(bytes.NewReader(raw))
		if perr != nil {
			return domain.EpochInfo{}, perr
		}
		total, terr := set.Total()
		if terr != nil {
			return domain.EpochInfo{}, terr
		}
		return domain.EpochInfo{ID: epochID, Source: "csv", ParticipantCount: len(set), TotalLiabilities: total}, nil
	}
	return info, err
}

func (e *EpochExporter) now() time.Time {
	if e.Now != nil {
		return e.Now().UTC()
	}
	return time.Now().UTC()
}

func (e *EpochExporter) logger() logrus.FieldLogger {
	if e.Log != nil {
		return e.Log
	}
	return logrus.StandardLogger()
}
