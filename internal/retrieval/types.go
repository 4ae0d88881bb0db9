// Package retrieval is the thin boundary to the external RAG backend. It
// exposes two lookups, recent turns and semantic search, and normalizes the
// backend's loosely-shaped responses into fixed result types. Failures
// degrade to empty results; a degraded context is preferable to a failed
// chat turn.
package retrieval

import "context"

// Collection names understood by the backend.
const (
	CollectionChatHistory   = "chat_history"
	CollectionKnowledgeBase = "knowledge_base"
)

// RecentTurnsResult holds the literal last N conversational exchanges.
type RecentTurnsResult struct {
	Turns        []string
	TotalTokens  int
	WasTruncated bool
}

// SemanticResult holds similarity-search chunks, most relevant first.
type SemanticResult struct {
	Chunks []string
}

// Client is the retrieval interface consumed by the assembler. Both
// operations degrade to their empty result shape on any backend failure;
// callers never branch on "failed" vs "legitimately found nothing".
type Client interface {
	RecentTurns(ctx context.Context, collection string, nTurns, tokenLimit int, persona string) RecentTurnsResult
	SemanticSearch(ctx context.Context, collection, query string, tokenLimit int, persona string) SemanticResult
}
