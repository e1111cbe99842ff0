package domain

import (
	"regexp"
	"time"

	"github.com/holiman/uint256"
)

const epochTimeLayout = "20060102-150405"

var epochIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]{0,127}$`)

type EpochInfo struct {
	ID               string       `json:"epochId"`
	Source           string       `json:"source"`
	SessionID        string       `json:"sessionId,omitempty"`
	ParticipantCount int          `json:"participantCount"`
	TotalLiabilities *uint256.Int `json:"totalLiabilities"`
	CreatedAt        time.Time    `json:"createdAt"`
}

func NewEpochID(now time.Time) string {
	return "epoch_" + now.UTC().Format(epochTimeLayout)
}

// ValidateEpochID rejects ids that cannot be used as artifact path segments.
func ValidateEpochID(id string) error {
	if !epochIDPattern.MatchString(id) {
		return NewInputError("epoch id", "%q is not a valid epoch id", id)
	}
	return nil
}
