package context

import (
	"context"
	"strings"
	"sync"
	"testing"

	"go.uber.org/goleak"

	"github.com/applymytech/openElara-sub000/internal/retrieval"
)

// fakeRetrieval returns canned results and records calls.
type fakeRetrieval struct {
	mu            sync.Mutex
	recent        retrieval.RecentTurnsResult
	history       retrieval.SemanticResult
	knowledge     retrieval.SemanticResult
	recentCalls   int
	semanticCalls []string // collection names in call order
	queries       []string
}

func (f *fakeRetrieval) RecentTurns(_ context.Context, collection string, nTurns, tokenLimit int, persona string) retrieval.RecentTurnsResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recentCalls++
	return f.recent
}

func (f *fakeRetrieval) SemanticSearch(_ context.Context, collection, query string, tokenLimit int, persona string) retrieval.SemanticResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.semanticCalls = append(f.semanticCalls, collection)
	f.queries = append(f.queries, query)
	if collection == retrieval.CollectionKnowledgeBase {
		return f.knowledge
	}
	return f.history
}

func TestAssemble_FiresAllThreeSources(t *testing.T) {
	defer goleak.VerifyNone(t)

	fake := &fakeRetrieval{}
	asm := NewAssembler(fake)

	asm.Assemble(context.Background(), AssembleParams{
		History: []Turn{{Role: RoleUser, Content: "hello"}},
		Budget:  Budget{HistoryTokens: 2048, KnowledgeTokens: 2048},
	})

	if fake.recentCalls != 1 {
		t.Fatalf("recentCalls = %d, want 1", fake.recentCalls)
	}
	if len(fake.semanticCalls) != 2 {
		t.Fatalf("semanticCalls = %v, want chat_history and knowledge_base", fake.semanticCalls)
	}
}

func TestAssemble_AllBlocksPresentWhenEmpty(t *testing.T) {
	fake := &fakeRetrieval{}
	asm := NewAssembler(fake)

	res := asm.Assemble(context.Background(), AssembleParams{
		History: []Turn{{Role: RoleUser, Content: "hello"}},
		Budget:  Budget{HistoryTokens: 2048, KnowledgeTokens: 2048},
	})

	injected := res.Turns[res.InjectedAt].Content
	for _, want := range []string{
		"[BACKGROUND-ONLY]",
		"---RECENT CONVERSATION CONTEXT---",
		noRecentPlaceholder,
		"---RELEVANT PAST MEMORIES---",
		noMemoriesPlaceholder,
		"---RELEVANT KNOWLEDGE---",
		noKnowledgePlaceholder,
	} {
		if !strings.Contains(injected, want) {
			t.Fatalf("injected block missing %q:\n%s", want, injected)
		}
	}
}

func TestAssemble_InjectsAfterLeadingSystemTurn(t *testing.T) {
	fake := &fakeRetrieval{
		knowledge: retrieval.SemanticResult{Chunks: []string{"shimejis are desktop pets"}},
	}
	asm := NewAssembler(fake)

	system := Turn{Role: RoleSystem, Content: "You are Elara."}
	res := asm.Assemble(context.Background(), AssembleParams{
		History: []Turn{system, {Role: RoleUser, Content: "what is a shimeji?"}},
		Budget:  Budget{HistoryTokens: 2048, KnowledgeTokens: 2048},
	})

	if res.InjectedAt != 1 {
		t.Fatalf("InjectedAt = %d, want 1", res.InjectedAt)
	}
	if res.Turns[0] != system {
		t.Fatal("original system turn is no longer first")
	}
	if res.Turns[1].Role != RoleSystem || !strings.Contains(res.Turns[1].Content, "shimejis are desktop pets") {
		t.Fatalf("turn 1 = %+v, want injected background system turn", res.Turns[1])
	}
	if res.Turns[2].Role != RoleUser {
		t.Fatalf("turn 2 role = %s, want user", res.Turns[2].Role)
	}
}

func TestAssemble_EmptyHistorySynthesizesUserTurn(t *testing.T) {
	fake := &fakeRetrieval{
		knowledge: retrieval.SemanticResult{Chunks: []string{"a fact"}},
	}
	asm := NewAssembler(fake)

	res := asm.Assemble(context.Background(), AssembleParams{
		History: nil,
		Budget:  Budget{HistoryTokens: 2048, KnowledgeTokens: 2048},
	})

	if len(res.Turns) != 2 {
		t.Fatalf("len(Turns) = %d, want 2 (background system + synthetic user)", len(res.Turns))
	}
	if res.Turns[0].Role != RoleSystem {
		t.Fatalf("turn 0 role = %s, want injected system", res.Turns[0].Role)
	}
	if res.Turns[1].Role != RoleUser || res.Turns[1].Content != "" {
		t.Fatalf("turn 1 = %+v, want synthetic empty user turn", res.Turns[1])
	}
}

func TestAssemble_DedupsSemanticHistoryAgainstRecent(t *testing.T) {
	duplicated := strings.Repeat("the user asked about sprite sheets and Elara explained the pipeline ", 3)
	fake := &fakeRetrieval{
		recent:  retrieval.RecentTurnsResult{Turns: []string{duplicated}},
		history: retrieval.SemanticResult{Chunks: []string{duplicated, "a genuinely different memory"}},
	}
	asm := NewAssembler(fake)

	res := asm.Assemble(context.Background(), AssembleParams{
		History: []Turn{{Role: RoleUser, Content: "hi"}},
		Budget:  Budget{HistoryTokens: 2048, KnowledgeTokens: 2048},
	})

	block := res.Turns[res.InjectedAt].Content
	memories := block[strings.Index(block, "---RELEVANT PAST MEMORIES---"):]
	memories = memories[:strings.Index(memories, "---END PAST MEMORIES---")]

	if strings.Contains(memories, "sprite sheets") {
		t.Fatal("duplicated chunk surfaced under both labels")
	}
	if !strings.Contains(memories, "a genuinely different memory") {
		t.Fatal("non-duplicate memory was dropped")
	}
}

func TestQueryFromHistory_UnwrapsEnvelope(t *testing.T) {
	tests := []struct {
		name    string
		history []Turn
		want    string
	}{
		{
			"plain",
			[]Turn{{Role: RoleUser, Content: "what is a shimeji?"}},
			"what is a shimeji?",
		},
		{
			"envelope",
			[]Turn{{Role: RoleUser, Content: "<userMessage>  tell me about sprites  </userMessage>"}},
			"tell me about sprites",
		},
		{
			"envelope_with_markup",
			[]Turn{{Role: RoleUser, Content: "<userMessage>tell me <b>about</b>\nsprites</userMessage>"}},
			"tell me about sprites",
		},
		{
			"last_user_wins",
			[]Turn{
				{Role: RoleUser, Content: "first"},
				{Role: RoleAssistant, Content: "reply"},
				{Role: RoleUser, Content: "second"},
			},
			"second",
		},
		{
			"no_user_turn",
			[]Turn{{Role: RoleSystem, Content: "sys"}},
			"",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := queryFromHistory(tt.history); got != tt.want {
				t.Fatalf("queryFromHistory() = %q, want %q", got, tt.want)
			}
		})
	}
}
