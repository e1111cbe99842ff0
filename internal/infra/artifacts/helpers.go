package artifacts

import (
	"strings"

	"solvency/internal/domain"
)

func validateKey(epochID, name string) error {
	if err := domain.ValidateEpochID(epochID); err != nil {
		return err
	}
	if name == "" || strings.ContainsAny(name, `/\`) || strings.HasPrefix(name, ".") {
		return domain.NewInputError("artifact name", "%q is not a valid artifact name", name)
	}
	return nil
}

func copyBytes(in []byte) []byte {
	if in == nil {
		return nil
	}
	out := make([]byte, len(in))
	copy(out, in)
	return out
}
