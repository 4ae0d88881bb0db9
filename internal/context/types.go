// Package context assembles the prompt for a chat turn: it trims the
// conversation history to a token budget, gathers background material from
// the retrieval backend, and injects it as a single system message.
package context

import "github.com/applymytech/openElara-sub000/internal/types"

// Role is an alias to types.Role for package compatibility.
type Role = types.Role

const (
	RoleSystem    = types.RoleSystem
	RoleUser      = types.RoleUser
	RoleAssistant = types.RoleAssistant
)

// Turn is an alias to types.Turn for package compatibility.
type Turn = types.Turn

// Budget holds the token allocations for one request. All values are token
// counts. The target is systemReserve + knowledge + history + output <=
// contextWindow; a violation is logged as a configuration error but the
// request still proceeds.
type Budget struct {
	ContextWindow     int
	SystemReserve     int
	KnowledgeTokens   int
	HistoryTokens     int
	OutputReservation int
}

// TrimResult reports what the trimmer did, for diagnostics.
type TrimResult struct {
	Turns         []Turn
	KeptMessages  int
	DroppedOldest int
	UsedTokens    int
	SystemReserve int // system prompt tokens + safety margin, informational
	Trimmed       bool
}

// AugmentedRequest is the budget-constrained turn sequence with at most one
// injected background-context system turn, ready for dispatch.
type AugmentedRequest struct {
	Turns []Turn
	// InjectedAt is the index of the background system turn, or -1 when
	// nothing was injected.
	InjectedAt int
}
