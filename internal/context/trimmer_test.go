package context

import (
	"fmt"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// fixedCounter makes budgets predictable: every turn counts as its content
// length in characters.
func fixedBudget(history int) Budget {
	return Budget{
		ContextWindow:     32768,
		KnowledgeTokens:   2048,
		HistoryTokens:     history,
		OutputReservation: 2048,
	}
}

func turnOfTokens(role Role, counter *TokenCounter, tokens int) Turn {
	// Build content until the counter reports at least the requested size.
	var b strings.Builder
	for counter.Count(b.String()) < tokens {
		b.WriteString("lorem ipsum dolor sit amet ")
	}
	return Turn{Role: role, Content: b.String()}
}

func TestTrim_FastPathReturnsInputUnchanged(t *testing.T) {
	counter := NewTokenCounter()
	trimmer := NewHistoryTrimmer(counter)

	turns := []Turn{
		{Role: RoleSystem, Content: "You are Elara."},
		{Role: RoleUser, Content: "hello"},
		{Role: RoleAssistant, Content: "hi there"},
	}

	res := trimmer.Trim(turns, fixedBudget(4096))

	if res.Trimmed {
		t.Fatal("Trimmed = true, want false for history within budget")
	}
	if diff := cmp.Diff(turns, res.Turns); diff != "" {
		t.Fatalf("Turns mismatch (-want +got):\n%s", diff)
	}
	// Fast path must preserve turn identity, not just equality.
	if &turns[0] != &res.Turns[0] {
		t.Fatal("fast path reallocated the input slice")
	}
}

func TestTrim_KeepsSystemTurnFirst(t *testing.T) {
	counter := NewTokenCounter()
	trimmer := NewHistoryTrimmer(counter)

	system := Turn{Role: RoleSystem, Content: "You are Elara, a helpful companion."}
	turns := []Turn{system}
	for i := 0; i < 20; i++ {
		turns = append(turns, turnOfTokens(RoleUser, counter, 100))
		turns = append(turns, turnOfTokens(RoleAssistant, counter, 100))
	}

	res := trimmer.Trim(turns, fixedBudget(1000))

	if !res.Trimmed {
		t.Fatal("Trimmed = false, want true")
	}
	if len(res.Turns) == 0 || res.Turns[0] != system {
		t.Fatalf("first turn = %+v, want the original system turn", res.Turns[0])
	}
	if res.DroppedOldest == 0 {
		t.Fatal("DroppedOldest = 0, want > 0")
	}
}

func TestTrim_ContiguousSuffix(t *testing.T) {
	counter := NewTokenCounter()
	trimmer := NewHistoryTrimmer(counter)

	var turns []Turn
	for i := 0; i < 30; i++ {
		turns = append(turns, Turn{Role: RoleUser, Content: fmt.Sprintf("message number %d with some padding text to occupy tokens", i)})
	}

	res := trimmer.Trim(turns, fixedBudget(200))

	if !res.Trimmed {
		t.Fatal("Trimmed = false, want true")
	}
	// The kept turns must be exactly the tail of the input.
	want := turns[len(turns)-len(res.Turns):]
	if diff := cmp.Diff(want, res.Turns); diff != "" {
		t.Fatalf("kept turns are not a contiguous suffix (-want +got):\n%s", diff)
	}
}

func TestTrim_SingleOversizedTurnIsKept(t *testing.T) {
	counter := NewTokenCounter()
	trimmer := NewHistoryTrimmer(counter)

	huge := turnOfTokens(RoleUser, counter, 5000)
	res := trimmer.Trim([]Turn{huge}, fixedBudget(100))

	if len(res.Turns) != 1 {
		t.Fatalf("len(Turns) = %d, want 1 (never trim to zero content)", len(res.Turns))
	}
	if res.Turns[0] != huge {
		t.Fatal("kept turn differs from the oversized input turn")
	}
}

func TestTrim_EmptyHistory(t *testing.T) {
	trimmer := NewHistoryTrimmer(NewTokenCounter())

	res := trimmer.Trim(nil, fixedBudget(1000))
	if len(res.Turns) != 0 {
		t.Fatalf("len(Turns) = %d, want 0", len(res.Turns))
	}

	system := Turn{Role: RoleSystem, Content: "You are Elara."}
	res = trimmer.Trim([]Turn{system}, fixedBudget(1000))
	if len(res.Turns) != 1 || res.Turns[0] != system {
		t.Fatalf("Turns = %+v, want only the system turn", res.Turns)
	}
}

func TestTrim_SystemReserveIsInformational(t *testing.T) {
	counter := NewTokenCounter()
	trimmer := NewHistoryTrimmer(counter)

	system := Turn{Role: RoleSystem, Content: "You are Elara, a helpful desktop companion with a warm personality."}
	turns := []Turn{system, {Role: RoleUser, Content: "hi"}}

	res := trimmer.Trim(turns, fixedBudget(4096))

	wantReserve := counter.Count(system.Content) + safetyMargin
	if res.SystemReserve != wantReserve {
		t.Fatalf("SystemReserve = %d, want %d", res.SystemReserve, wantReserve)
	}
}

func TestNewHistoryTrimmerWithShare_RejectsInvalidShare(t *testing.T) {
	counter := NewTokenCounter()
	for _, share := range []float64{0, -0.5, 1.5} {
		ht := NewHistoryTrimmerWithShare(counter, share)
		if ht.verbatimShare != defaultVerbatimShare {
			t.Fatalf("share %v: verbatimShare = %v, want default %v", share, ht.verbatimShare, defaultVerbatimShare)
		}
	}
}
