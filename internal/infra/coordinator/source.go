package coordinator

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/sirupsen/logrus"

	"solvency/internal/domain"
)

type sessionReader interface {
	GetAppSession(ctx context.Context, sessionID string) (AppSession, error)
}

// SessionSource turns the allocations of one app session into liabilities.
// Allocations are decimal token amounts scaled by Decimals. Without a Client
// it dials URL for each read.
type SessionSource struct {
	Client    sessionReader
	URL       string
	Timeout   time.Duration
	SessionID string
	Decimals  int
	Log       logrus.FieldLogger
}

func NewSessionSource(client sessionReader, sessionID string, decimals int) *SessionSource {
	return &SessionSource{Client: client, SessionID: sessionID, Decimals: decimals}
}

func (s *SessionSource) Name() string {
	return "coordinator:" + s.SessionID
}

func (s *SessionSource) Liabilities(ctx context.Context) (domain.LiabilitySet, error) {
	if s.SessionID == "" {
		return nil, domain.NewInputError("session_id", "is required")
	}
	client := s.Client
	if client == nil {
		dialed, err := Dial(ctx, s.URL, s.Timeout, s.Log)
		if err != nil {
			return nil, err
		}
		defer dialed.Close()
		client = dialed
	}
	session, err := client.GetAppSession(ctx, s.SessionID)
	if err != nil {
		return nil, err
	}
	return LiabilitiesFromSession(session, s.Decimals)
}

// LiabilitiesFromSession lists participants first, in session order, then any
// allocation holders that are not participants in address order.
func LiabilitiesFromSession(session AppSession, decimals int) (domain.LiabilitySet, error) {
	allocations := make(map[string]string, len(session.Allocations))
	for addr, amount := range session.Allocations {
		allocations[strings.ToLower(addr)] = amount
	}
	seen := make(map[string]struct{}, len(allocations))
	order := make([]string, 0, len(allocations))
	for _, p := range session.Participants {
		key := strings.ToLower(p)
		if _, ok := seen[key]; ok {
			continue
		}
		if _, ok := allocations[key]; !ok {
			continue
		}
		seen[key] = struct{}{}
		order = append(order, key)
	}
	var extra []string
	for key := range allocations {
		if _, ok := seen[key]; !ok {
			extra = append(extra, key)
		}
	}
	sort.Strings(extra)
	order = append(order, extra...)

	set := make(domain.LiabilitySet, 0, len(order))
	for _, key := range order {
		if !common.IsHexAddress(key) {
			return nil, domain.NewInputError("allocations", "invalid address %q", key)
		}
		amount, err := domain.ParseUnits(allocations[key], decimals)
		if err != nil {
			return nil, fmt.Errorf("allocation of %s: %w", key, err)
		}
		balance, overflow := uint256.FromBig(amount)
		if overflow {
			return nil, domain.NewInputError("allocations", "allocation of %s exceeds 256 bits", key)
		}
		set = append(set, domain.LiabilityEntry{Address: common.HexToAddress(key), Balance: balance})
	}
	if len(set) == 0 {
		return nil, domain.ErrEmptyLiabilities
	}
	return set, nil
}

func (s *SessionSource) Session() string {
	return s.SessionID
}
