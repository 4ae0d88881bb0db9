package retrieval

import (
	"context"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/applymytech/openElara-sub000/internal/logging"
)

const (
	defaultRecentTurns = 5
	defaultTokenLimit  = 2048

	// tokensPerChunk is the assumed average size of a retrieved chunk,
	// used to derive how many results to request from the backend. An
	// empirical constant; keep it configurable.
	tokensPerChunk = 150
	minResults     = 5
	maxResults     = 25
)

// Runner executes one backend invocation and returns its raw stdout.
// The production implementation shells out to the RAG backend script;
// tests substitute a fake.
type Runner interface {
	Run(ctx context.Context, args []string, input string) ([]byte, error)
}

// BackendClient implements Client on top of a Runner. It owns parameter
// defaulting, result-count sizing, and response normalization; the Runner
// owns transport and timeout policy.
type BackendClient struct {
	runner         Runner
	storagePath    string
	tokensPerChunk int
}

// NewBackendClient creates a client for the given runner and storage
// location (passed through to the backend on every call).
func NewBackendClient(runner Runner, storagePath string) *BackendClient {
	return &BackendClient{
		runner:         runner,
		storagePath:    storagePath,
		tokensPerChunk: tokensPerChunk,
	}
}

// SetTokensPerChunk overrides the chunk-size heuristic used for result
// count sizing. Non-positive values are ignored.
func (c *BackendClient) SetTokensPerChunk(n int) {
	if n > 0 {
		c.tokensPerChunk = n
	}
}

// RecentTurns fetches the literal last N exchanges from a collection.
// Invalid nTurns or tokenLimit are replaced with defaults and logged, not
// rejected: configuration defects are recoverable here.
func (c *BackendClient) RecentTurns(ctx context.Context, collection string, nTurns, tokenLimit int, persona string) RecentTurnsResult {
	log := logging.Get(logging.CategoryRetrieval)

	if nTurns <= 0 {
		log.Errorf("invalid n_turns %d for %s, using default of %d", nTurns, collection, defaultRecentTurns)
		nTurns = defaultRecentTurns
	}
	if tokenLimit <= 0 {
		log.Errorf("invalid token limit %d for recent turns on %s, using default of %d", tokenLimit, collection, defaultTokenLimit)
		tokenLimit = defaultTokenLimit
	}

	args := []string{"get_recent_turns", collection, c.storagePath, strconv.Itoa(nTurns), strconv.Itoa(tokenLimit)}
	if persona != "" {
		args = append(args, persona)
	}

	out, err := c.runner.Run(ctx, args, "")
	if err != nil {
		log.Errorf("failed to get recent turns from %s: %v", collection, err)
		return RecentTurnsResult{}
	}
	return parseRecentTurns(out)
}

// SemanticSearch runs a similarity search against a collection. The result
// count requested from the backend is derived from the token limit. An
// empty query short-circuits without touching the backend.
func (c *BackendClient) SemanticSearch(ctx context.Context, collection, query string, tokenLimit int, persona string) SemanticResult {
	log := logging.Get(logging.CategoryRetrieval)

	if tokenLimit <= 0 {
		log.Errorf("invalid token limit %d for %s, using fallback of %d to prevent silent failure", tokenLimit, collection, defaultTokenLimit)
		tokenLimit = defaultTokenLimit
	}
	if strings.TrimSpace(query) == "" {
		log.Warnf("empty query for %s, skipping search", collection)
		return SemanticResult{}
	}

	nResults := tokenLimit / c.tokensPerChunk
	if nResults < minResults {
		nResults = minResults
	}
	if nResults > maxResults {
		nResults = maxResults
	}

	args := []string{"search", collection, c.storagePath, strconv.Itoa(tokenLimit), strconv.Itoa(nResults)}
	// Persona scoping only applies to conversation history.
	if persona != "" && collection == CollectionChatHistory {
		args = append(args, persona)
	}

	out, err := c.runner.Run(ctx, args, query)
	if err != nil {
		log.Errorf("semantic search failed for %s: %v", collection, err)
		return SemanticResult{}
	}
	return parseSemantic(out)
}

// parseRecentTurns normalizes the structured recent-turns reply. Anything
// other than the expected object shape yields an empty result.
func parseRecentTurns(out []byte) RecentTurnsResult {
	doc := gjson.ParseBytes(out)
	if !doc.IsObject() {
		return RecentTurnsResult{}
	}
	var res RecentTurnsResult
	for _, turn := range doc.Get("turns").Array() {
		res.Turns = append(res.Turns, turn.String())
	}
	res.TotalTokens = int(doc.Get("total_tokens").Int())
	res.WasTruncated = doc.Get("was_truncated").Bool()
	return res
}

// parseSemantic normalizes the search reply. The backend may answer with a
// JSON array of chunks, a JSON string, or a raw text blob; any other shape
// (including error objects) yields an empty result.
func parseSemantic(out []byte) SemanticResult {
	trimmed := strings.TrimSpace(string(out))
	if trimmed == "" {
		return SemanticResult{}
	}
	if !gjson.Valid(trimmed) {
		return splitChunks(trimmed)
	}
	doc := gjson.Parse(trimmed)
	switch {
	case doc.IsArray():
		var res SemanticResult
		for _, chunk := range doc.Array() {
			if s := chunk.String(); strings.TrimSpace(s) != "" {
				res.Chunks = append(res.Chunks, s)
			}
		}
		return res
	case doc.Type == gjson.String:
		return splitChunks(doc.String())
	default:
		return SemanticResult{}
	}
}

// splitChunks breaks a text blob into paragraph-sized chunks.
func splitChunks(s string) SemanticResult {
	var res SemanticResult
	for _, part := range strings.Split(s, "\n\n") {
		if strings.TrimSpace(part) != "" {
			res.Chunks = append(res.Chunks, part)
		}
	}
	return res
}
