package pipeline

import (
	"log/slog"
	"strings"
	"sync"

	"github.com/IshaanNene/storyscout/internal/types"
)

// Middleware processes an entry and returns the (possibly modified) entry.
// Return nil to drop the entry from the pipeline.
type Middleware interface {
	// Name returns the middleware's identifier.
	Name() string

	// Process transforms an entry. Return nil to drop the entry.
	Process(entry *types.Entry) (*types.Entry, error)
}

// Pipeline chains middleware processors together.
type Pipeline struct {
	middlewares []Middleware
	logger      *slog.Logger
}

// New creates a new Pipeline.
func New(logger *slog.Logger) *Pipeline {
	return &Pipeline{
		logger: logger.With("component", "pipeline"),
	}
}

// Default builds the chain every scrape run goes through.
func Default(logger *slog.Logger) *Pipeline {
	p := New(logger)
	p.Use(&TrimMiddleware{})
	p.Use(&RequiredFieldsMiddleware{})
	p.Use(&ResolveURLMiddleware{})
	p.Use(NewDedupMiddleware())
	return p
}

// Use adds a middleware to the pipeline chain.
func (p *Pipeline) Use(mw Middleware) {
	p.middlewares = append(p.middlewares, mw)
	p.logger.Debug("middleware added", "name", mw.Name(), "position", len(p.middlewares))
}

// Process runs the entry through all middleware in order.
func (p *Pipeline) Process(entry *types.Entry) (*types.Entry, error) {
	current := entry

	for _, mw := range p.middlewares {
		result, err := mw.Process(current)
		if err != nil {
			return nil, &types.PipelineError{
				Stage: mw.Name(),
				Entry: current,
				Err:   err,
			}
		}
		if result == nil {
			p.logger.Debug("entry dropped", "stage", mw.Name(), "title", entry.Title)
			return nil, nil
		}
		current = result
	}

	return current, nil
}

// ProcessAll runs every entry through the chain and returns the survivors
// in order, plus how many were dropped. An entry whose middleware fails is
// logged and dropped.
func (p *Pipeline) ProcessAll(entries []types.Entry) ([]types.Entry, int) {
	kept := make([]types.Entry, 0, len(entries))
	dropped := 0

	for i := range entries {
		out, err := p.Process(&entries[i])
		if err != nil {
			p.logger.Warn("entry rejected", "title", entries[i].Title, "error", err)
			dropped++
			continue
		}
		if out == nil {
			dropped++
			continue
		}
		kept = append(kept, *out)
	}

	return kept, dropped
}

// --- Built-in Middleware ---

// TrimMiddleware trims leading and trailing whitespace from text fields.
// Inner title spacing is kept since the title is the identity key.
type TrimMiddleware struct{}

func (m *TrimMiddleware) Name() string { return "trim" }

func (m *TrimMiddleware) Process(entry *types.Entry) (*types.Entry, error) {
	entry.Title = strings.TrimSpace(entry.Title)
	entry.URL = strings.TrimSpace(entry.URL)
	return entry, nil
}

// RequiredFieldsMiddleware drops entries missing a title, URL or keyword.
type RequiredFieldsMiddleware struct{}

func (m *RequiredFieldsMiddleware) Name() string { return "required_fields" }

func (m *RequiredFieldsMiddleware) Process(entry *types.Entry) (*types.Entry, error) {
	if entry.Title == "" || entry.URL == "" || len(entry.MatchedKeywords) == 0 {
		return nil, nil
	}
	return entry, nil
}

// DedupMiddleware drops entries whose title was already seen in this run,
// e.g. a story that moved from one listing page to the next between fetches.
type DedupMiddleware struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

func NewDedupMiddleware() *DedupMiddleware {
	return &DedupMiddleware{
		seen: make(map[string]struct{}),
	}
}

func (m *DedupMiddleware) Name() string { return "dedup" }

func (m *DedupMiddleware) Process(entry *types.Entry) (*types.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.seen[entry.Title]; exists {
		return nil, nil
	}
	m.seen[entry.Title] = struct{}{}
	return entry, nil
}

// Reset forgets seen titles so the middleware can serve another run.
func (m *DedupMiddleware) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seen = make(map[string]struct{})
}
