package usecase

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"solvency/internal/domain"
)

var liabilitiesHeader = []string{"address", "balance"}

// ParseLiabilitiesCSV reads "address,balance" rows. Balances are integers in
// the smallest unit; any malformed row fails the whole file.
func ParseLiabilitiesCSV(r io.Reader) (domain.LiabilitySet, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	var set domain.LiabilitySet
	line := 0
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, domain.NewInputError("liabilities", "%v", err)
		}
		line++
		if line == 1 && isHeader(record) {
			continue
		}
		if len(record) == 1 && strings.TrimSpace(record[0]) == "" {
			continue
		}
		if len(record) != 2 {
			return nil, domain.NewInputError("liabilities", "line %d: expected 2 fields, got %d", line, len(record))
		}
		addr := strings.TrimSpace(record[0])
		if !common.IsHexAddress(addr) {
			return nil, domain.NewInputError("address", "line %d: %q is not an address", line, addr)
		}
		balance, err := uint256.FromDecimal(strings.TrimSpace(record[1]))
		if err != nil {
			return nil, domain.NewInputError("balance", "line %d: %q: %v", line, record[1], err)
		}
		set = append(set, domain.LiabilityEntry{Address: common.HexToAddress(addr), Balance: balance})
	}
	if len(set) == 0 {
		return nil, domain.ErrEmptyLiabilities
	}
	return set, nil
}

func EncodeLiabilitiesCSV(set domain.LiabilitySet) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(liabilitiesHeader); err != nil {
		return nil, err
	}
	for i, entry := range set {
		if entry.Balance == nil {
			return nil, fmt.Errorf("entry %d: %w", i, domain.NewInputError("balance", "missing"))
		}
		if err := w.Write([]string{entry.Address.Hex(), entry.Balance.Dec()}); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func isHeader(record []string) bool {
	return len(record) >= 1 && strings.EqualFold(strings.TrimSpace(record[0]), "address")
}
