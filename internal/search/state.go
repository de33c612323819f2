package search

import "fmt"

// State is the aggregator's position in Idle -> Debouncing -> Fetching ->
// Settled. Every keystroke re-enters Debouncing.
type State int

const (
	StateIdle State = iota
	StateDebouncing
	StateFetching
	StateSettled
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateDebouncing:
		return "debouncing"
	case StateFetching:
		return "fetching"
	case StateSettled:
		return "settled"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }
