package ledger

import "postline/internal/types"

// KeyState is the reduced view of one correlation key after replaying its
// rows in ledger order.
type KeyState struct {
	// Latest is the last row written for the key, whatever its status.
	Latest types.PostingAttempt
	// Effective is the last non-informational status seen for the key. A
	// trailing status_check_failed row does not change it: the key is still
	// in its last known real state.
	Effective types.AttemptStatus
}

// Pending reports whether the key still awaits a terminal outcome and is a
// candidate for status reconciliation.
func (s KeyState) Pending() bool {
	return !s.Effective.Terminal()
}

// Reduce replays rows (which must be in ledger order, oldest first) down to
// one KeyState per correlation key. Rows with no derivable key are dropped.
// It is a pure function over the row sequence, independent of file I/O.
func Reduce(rows []types.PostingAttempt) map[string]KeyState {
	out := make(map[string]KeyState)
	for _, row := range rows {
		key := row.CorrelationKey()
		if key == "" {
			continue
		}
		state := out[key]
		state.Latest = row
		if !row.Status.Informational() {
			state.Effective = row.Status
		}
		out[key] = state
	}
	return out
}

// ReduceOrdered is Reduce plus the order keys first appeared in the file,
// so batch consumers behave deterministically.
func ReduceOrdered(rows []types.PostingAttempt) (map[string]KeyState, []string) {
	states := make(map[string]KeyState)
	var order []string
	for _, row := range rows {
		key := row.CorrelationKey()
		if key == "" {
			continue
		}
		state, seen := states[key]
		if !seen {
			order = append(order, key)
		}
		state.Latest = row
		if !row.Status.Informational() {
			state.Effective = row.Status
		}
		states[key] = state
	}
	return states, order
}
