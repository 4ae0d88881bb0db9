package context

import (
	"github.com/applymytech/openElara-sub000/internal/logging"
)

const (
	// safetyMargin pads the system prompt reserve to absorb tokenizer
	// drift between this counter and the provider's.
	safetyMargin = 128

	// defaultVerbatimShare is the fraction of the history allocation spent
	// on verbatim recent turns. The remainder is left for semantically
	// retrieved history so the two sources don't starve each other. The
	// value is empirical, not derived; keep it configurable.
	defaultVerbatimShare = 0.7
)

// HistoryTrimmer selects the largest contiguous suffix of turns that fits
// the history budget, always preserving a leading system turn.
type HistoryTrimmer struct {
	counter       *TokenCounter
	verbatimShare float64
}

// NewHistoryTrimmer creates a trimmer with the default verbatim share.
func NewHistoryTrimmer(counter *TokenCounter) *HistoryTrimmer {
	return NewHistoryTrimmerWithShare(counter, defaultVerbatimShare)
}

// NewHistoryTrimmerWithShare creates a trimmer with a custom verbatim
// share. Values outside (0, 1] fall back to the default.
func NewHistoryTrimmerWithShare(counter *TokenCounter, share float64) *HistoryTrimmer {
	if counter == nil {
		counter = NewTokenCounter()
	}
	if share <= 0 || share > 1 {
		share = defaultVerbatimShare
	}
	return &HistoryTrimmer{counter: counter, verbatimShare: share}
}

// splitSystem partitions turns into an optional single leading system turn
// and the remaining ordered turns.
func splitSystem(turns []Turn) (*Turn, []Turn) {
	for i := range turns {
		if turns[i].Role == RoleSystem {
			rest := make([]Turn, 0, len(turns)-1)
			rest = append(rest, turns[:i]...)
			rest = append(rest, turns[i+1:]...)
			return &turns[i], rest
		}
	}
	return nil, turns
}

// Trim applies the history budget to the turn sequence. The returned slice
// is freshly allocated unless the input already fits, in which case the
// input is returned unchanged.
func (ht *HistoryTrimmer) Trim(turns []Turn, budget Budget) TrimResult {
	log := logging.Get(logging.CategoryContext)

	systemTurn, history := splitSystem(turns)

	systemTokens := 0
	if systemTurn != nil {
		systemTokens = ht.counter.Count(systemTurn.Content)
	}
	// Informational only; it does not reduce the history budget.
	systemReserve := systemTokens + safetyMargin

	historyBudget := int(float64(budget.HistoryTokens) * ht.verbatimShare)

	totalAllocated := systemReserve + budget.KnowledgeTokens + budget.HistoryTokens + budget.OutputReservation
	if budget.ContextWindow > 0 && totalAllocated > budget.ContextWindow {
		log.Errorf("total allocated (%d) exceeds context window (%d): system %d (%d + %d safety), knowledge %d, history %d, output %d",
			totalAllocated, budget.ContextWindow, systemReserve, systemTokens, safetyMargin,
			budget.KnowledgeTokens, budget.HistoryTokens, budget.OutputReservation)
	}

	tokenCounts := make([]int, len(history))
	totalTokens := 0
	for i, t := range history {
		tokenCounts[i] = ht.counter.CountTurn(t)
		totalTokens += tokenCounts[i]
	}

	if totalTokens <= historyBudget {
		log.Debugf("conversation within budget: %d / %d tokens (%d total history budget)",
			totalTokens, historyBudget, budget.HistoryTokens)
		return TrimResult{
			Turns:         turns,
			KeptMessages:  len(history),
			UsedTokens:    totalTokens,
			SystemReserve: systemReserve,
		}
	}

	log.Warnf("conversation exceeds budget: %d > %d available, trimming", totalTokens, historyBudget)

	// Walk newest to oldest, keeping the largest contiguous suffix that
	// fits. A single turn that alone exceeds the budget is still kept:
	// better to slightly exceed budget than produce an empty exchange.
	start := len(history)
	usedTokens := 0
	for i := len(history) - 1; i >= 0; i-- {
		if usedTokens+tokenCounts[i] > historyBudget {
			break
		}
		usedTokens += tokenCounts[i]
		start = i
	}
	if start == len(history) && len(history) > 0 {
		start = len(history) - 1
		usedTokens = tokenCounts[start]
	}

	kept := history[start:]
	trimmed := make([]Turn, 0, len(kept)+1)
	if systemTurn != nil {
		trimmed = append(trimmed, *systemTurn)
	}
	trimmed = append(trimmed, kept...)

	log.Infof("kept %d recent messages (%d tokens), dropped %d oldest; retrieval may use remaining %d tokens",
		len(kept), usedTokens, start, budget.HistoryTokens-historyBudget)

	return TrimResult{
		Turns:         trimmed,
		KeptMessages:  len(kept),
		DroppedOldest: start,
		UsedTokens:    usedTokens,
		SystemReserve: systemReserve,
		Trimmed:       true,
	}
}
