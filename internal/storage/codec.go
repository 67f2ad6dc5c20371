package storage

import (
	"encoding/json"
	"fmt"

	"github.com/scrypster/lifecache/pkg/types"
)

// EncodeReport serializes a report for a text/JSON column.
// A nil report encodes to nil.
func EncodeReport(r *types.AnalysisReport) ([]byte, error) {
	if r == nil {
		return nil, nil
	}
	b, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal report: %w", err)
	}
	return b, nil
}

// DecodeReport parses a stored report. Empty input decodes to nil.
func DecodeReport(b []byte) (*types.AnalysisReport, error) {
	if len(b) == 0 {
		return nil, nil
	}
	var r types.AnalysisReport
	if err := json.Unmarshal(b, &r); err != nil {
		return nil, fmt.Errorf("failed to unmarshal report: %w", err)
	}
	return &r, nil
}

// CheckTransition validates a compare-and-set request before it reaches the
// database. Writing the same non-terminal state is allowed so that a pending
// record can be rescheduled.
func CheckTransition(expected, next types.DeliveryState) error {
	if expected == next {
		if next.IsTerminal() {
			return fmt.Errorf("%w: %s is terminal", ErrInvalidInput, next)
		}
		return nil
	}
	if !types.IsValidDeliveryTransition(expected, next) {
		return fmt.Errorf("%w: invalid delivery transition %s -> %s", ErrInvalidInput, expected, next)
	}
	return nil
}
