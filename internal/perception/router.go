package perception

import (
	"context"
	"fmt"
	"strings"

	"github.com/applymytech/openElara-sub000/internal/logging"
)

// ProviderOllama is the provider name routed to the local adapter.
const ProviderOllama = "Ollama (Local)"

// ProviderStore resolves a stored custom provider configuration by its
// display name.
type ProviderStore interface {
	Lookup(name string) (GenericConfig, bool)
}

// Router picks the adapter for a request based on the provider name.
// Ollama goes to the local adapter, Together-hosted models (including
// the free tier) go to the hosted adapter, and everything else is looked
// up in the custom provider store.
type Router struct {
	local     Adapter
	hosted    Adapter
	providers ProviderStore
}

func NewRouter(local, hosted Adapter, providers ProviderStore) *Router {
	return &Router{local: local, hosted: hosted, providers: providers}
}

// Dispatch routes the request to the matching adapter.
func (r *Router) Dispatch(ctx context.Context, provider string, req ChatRequest) ModelResponse {
	log := logging.Get(logging.CategoryRouting)

	switch {
	case provider == ProviderOllama:
		log.Infof("routing model %s to local adapter", req.ModelID)
		return r.local.Dispatch(ctx, req)
	case strings.Contains(provider, "Together") || strings.Contains(provider, "Free"):
		log.Infof("routing model %s to hosted adapter", req.ModelID)
		return r.hosted.Dispatch(ctx, req)
	default:
		cfg, ok := r.providers.Lookup(provider)
		if !ok {
			log.Errorf("no stored configuration for provider %q", provider)
			return ModelResponse{Success: false, Error: fmt.Sprintf("Custom API '%s' configuration missing.", provider)}
		}
		log.Infof("routing model %s to custom provider %s", req.ModelID, cfg.Name)
		return NewGenericClient(cfg).Dispatch(ctx, req)
	}
}
