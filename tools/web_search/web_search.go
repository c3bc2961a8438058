package web_search

import (
	"context"

	"github.com/pmajor/intake/tools/web_search/brave"
	"github.com/pmajor/intake/tools/web_search/models"
	"github.com/pmajor/intake/tools/web_search/serper"
)

// Searcher is the search capability used by the dossier agent's collection
// stage. Implementations never return an error for "nothing found".
type Searcher interface {
	Search(ctx context.Context, q string, k int) ([]models.Result, error)
}

type Provider string

const (
	SerperProvider Provider = "serper"
	BraveProvider  Provider = "brave"
)

// Noop is the searcher used when no API key is configured: it yields an
// empty result list, never an error.
type Noop struct{}

func (Noop) Search(ctx context.Context, q string, k int) ([]models.Result, error) {
	return nil, nil
}

// NewSearcher builds the configured search provider. An empty apiKey yields
// the Noop searcher so collection degrades to "no external data" rather than
// failing.
func NewSearcher(provider Provider, apiKey string) Searcher {
	if apiKey == "" {
		return Noop{}
	}
	switch provider {
	case BraveProvider:
		return brave.Search{ApiKey: apiKey}
	default:
		return serper.Search{ApiKey: apiKey}
	}
}
