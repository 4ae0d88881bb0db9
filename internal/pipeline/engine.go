// Package pipeline wires the context-assembly stages into the single
// entry point the UI layer calls: trim history, gather and inject
// background context, dispatch to a model backend, and return the
// cleaned response.
package pipeline

import (
	"context"

	"github.com/google/uuid"

	"github.com/applymytech/openElara-sub000/internal/config"
	assembly "github.com/applymytech/openElara-sub000/internal/context"
	"github.com/applymytech/openElara-sub000/internal/logging"
	"github.com/applymytech/openElara-sub000/internal/perception"
	"github.com/applymytech/openElara-sub000/internal/types"
)

const (
	defaultContextWindow     = 32768
	defaultOutputReservation = 2048
)

// ChatRequest is the full request payload for one chat turn.
type ChatRequest struct {
	History []types.Turn
	Model   types.ModelConfig

	Temperature         float64
	HistoryTokenLimit   int
	KnowledgeTokenLimit int
	// OutputReservation is the token allowance for the model's reply.
	// Zero means the default.
	OutputReservation int
	RecentTurnsCount  int
	Persona           string

	AttachedFileContent string
	ContextCanvasFiles  map[string]string
}

// Dispatcher routes an assembled request to a model backend.
type Dispatcher interface {
	Dispatch(ctx context.Context, provider string, req perception.ChatRequest) types.ModelResponse
}

// Engine runs the request pipeline. All stages are per-request; the
// engine itself holds no mutable state and is safe for concurrent use.
type Engine struct {
	trimmer   *assembly.HistoryTrimmer
	assembler *assembly.Assembler
	router    Dispatcher
	personas  []config.Persona
}

func NewEngine(trimmer *assembly.HistoryTrimmer, assembler *assembly.Assembler, router Dispatcher, personas []config.Persona) *Engine {
	return &Engine{
		trimmer:   trimmer,
		assembler: assembler,
		router:    router,
		personas:  personas,
	}
}

// GetAIResponse runs one chat turn through the pipeline. It never
// returns an error: anything that prevents a model reply is reported in
// ModelResponse.Error.
func (e *Engine) GetAIResponse(ctx context.Context, req ChatRequest) types.ModelResponse {
	requestID := uuid.NewString()
	log := logging.Get(logging.CategoryContext).With("request_id", requestID)

	contextWindow := req.Model.ContextWindow
	if contextWindow <= 0 {
		contextWindow = defaultContextWindow
	}
	outputReservation := req.OutputReservation
	if outputReservation <= 0 {
		outputReservation = defaultOutputReservation
	}

	history := e.seedPersonaPrompt(req.History, req.Persona)

	budget := assembly.Budget{
		ContextWindow:     contextWindow,
		KnowledgeTokens:   req.KnowledgeTokenLimit,
		HistoryTokens:     req.HistoryTokenLimit,
		OutputReservation: outputReservation,
	}

	trimmed := e.trimmer.Trim(history, budget)
	if trimmed.Trimmed {
		log.Infof("trimmed history: kept %d turns, dropped %d oldest, %d tokens used",
			trimmed.KeptMessages, trimmed.DroppedOldest, trimmed.UsedTokens)
	}

	augmented := e.assembler.Assemble(ctx, assembly.AssembleParams{
		History:          trimmed.Turns,
		Budget:           budget,
		Persona:          req.Persona,
		RecentTurnsCount: req.RecentTurnsCount,
	})
	log.Debugf("assembled %d turns, background injected at %d", len(augmented.Turns), augmented.InjectedAt)

	resp := e.router.Dispatch(ctx, req.Model.Provider, perception.ChatRequest{
		Turns:               augmented.Turns,
		ModelID:             req.Model.ModelID,
		Temperature:         req.Temperature,
		MaxTokens:           outputReservation,
		AttachedFileContent: req.AttachedFileContent,
		ContextCanvasFiles:  req.ContextCanvasFiles,
	})
	if !resp.Success {
		log.Errorf("dispatch failed for provider %q: %s", req.Model.Provider, resp.Error)
	}
	return resp
}

// seedPersonaPrompt prepends the persona's system prompt when the request
// names a persona and the history carries no leading system turn. The
// input slice is not mutated.
func (e *Engine) seedPersonaPrompt(history []types.Turn, persona string) []types.Turn {
	if persona == "" {
		return history
	}
	if len(history) > 0 && history[0].Role == types.RoleSystem {
		return history
	}
	p, ok := config.FindPersona(e.personas, persona)
	if !ok || p.SystemPrompt == "" {
		return history
	}
	seeded := make([]types.Turn, 0, len(history)+1)
	seeded = append(seeded, types.Turn{Role: types.RoleSystem, Content: p.SystemPrompt})
	seeded = append(seeded, history...)
	return seeded
}
