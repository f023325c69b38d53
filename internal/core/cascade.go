package core

import "strings"

// CascadeMessage is appended to rows failed only because a sibling row failed.
const CascadeMessage = "failed due to other row(s) for this identity failing validation"

// CascadePropagator fails every remaining row of an identity that already
// has a failing row.
type CascadePropagator struct {
	identityField string
}

// NewCascadePropagator creates a propagator keyed on identityField.
func NewCascadePropagator(identityField string) CascadePropagator {
	return CascadePropagator{identityField: identityField}
}

// Propagate returns a new slice with the cascade reason appended to passing
// rows of failing identities. Applying it twice changes nothing: after the
// first pass no such passing rows remain.
func (p CascadePropagator) Propagate(rows []Row) []Row {
	out := make([]Row, len(rows))
	copy(out, rows)
	if p.identityField == "" {
		return out
	}

	failing := make(map[string]bool)
	for _, row := range out {
		if key := strings.TrimSpace(row.Get(p.identityField)); key != "" && row.Failed() {
			failing[key] = true
		}
	}
	if len(failing) == 0 {
		return out
	}

	reason := Reason{Kind: CascadeFailure, Message: CascadeMessage}
	for i, row := range out {
		if row.Failed() {
			continue
		}
		if failing[strings.TrimSpace(row.Get(p.identityField))] {
			out[i] = row.WithReason(reason)
		}
	}
	return out
}
