package domain

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

var (
	ErrInput         = errors.New("invalid input")
	ErrTransientIO   = errors.New("transient io failure")
	ErrIntegrity     = errors.New("integrity violation")
	ErrPublishFailed = errors.New("publish failed")
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict")
	ErrPolicyDenied  = errors.New("policy denied")
	ErrProtocol      = errors.New("protocol violation")

	ErrEmptyLiabilities = &InputError{Field: "liabilities", Reason: "liability set is empty"}
)

// InputError reports a structural problem with caller supplied data. It is
// never retried.
type InputError struct {
	Field  string
	Reason string
}

func (e *InputError) Error() string {
	if e.Field == "" {
		return "invalid input: " + e.Reason
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *InputError) Is(target error) bool {
	return target == ErrInput
}

func NewInputError(field, format string, args ...any) *InputError {
	return &InputError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

type ReserveReadError struct {
	Account common.Address
	Err     error
}

func (e *ReserveReadError) Error() string {
	return fmt.Sprintf("read reserves of %s: %v", e.Account.Hex(), e.Err)
}

func (e *ReserveReadError) Unwrap() error { return e.Err }

func (e *ReserveReadError) Is(target error) bool {
	return target == ErrTransientIO
}

// IntegrityError is raised whenever a recomputed hash differs from the one it
// is checked against.
type IntegrityError struct {
	Check    string
	Expected common.Hash
	Actual   common.Hash
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("%s mismatch: expected %s, got %s", e.Check, e.Expected.Hex(), e.Actual.Hex())
}

func (e *IntegrityError) Is(target error) bool {
	return target == ErrIntegrity
}

// NewProofConstructionError wraps a failed self-check of a freshly built
// inclusion proof.
func NewProofConstructionError(expected, actual common.Hash) *IntegrityError {
	return &IntegrityError{Check: "inclusion proof construction", Expected: expected, Actual: actual}
}

type PublishFailedError struct {
	EpochID string
	// OutcomeUnknown is set when the deadline expired after submission; the
	// transaction may still land.
	OutcomeUnknown bool
	Err            error
}

func (e *PublishFailedError) Error() string {
	msg := fmt.Sprintf("publish epoch %q: %v", e.EpochID, e.Err)
	if e.OutcomeUnknown {
		msg += " (outcome unknown)"
	}
	return msg
}

func (e *PublishFailedError) Unwrap() error { return e.Err }

func (e *PublishFailedError) Is(target error) bool {
	return target == ErrPublishFailed
}

type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string { return e.Op + ": " + e.Err.Error() }

func (e *TransientError) Unwrap() error { return e.Err }

func (e *TransientError) Is(target error) bool {
	return target == ErrTransientIO
}
