// Package refine decides between a heuristic result and a provider-refined
// one, degrading to the heuristic on any provider failure.
package refine

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/finance-insights/internal/provider"
)

// DefaultTimeout bounds a single provider call.
const DefaultTimeout = 30 * time.Second

// Refiner dispatches refinement requests to registered providers.
type Refiner struct {
	registry *provider.Registry
	timeout  time.Duration
	log      zerolog.Logger
}

func New(registry *provider.Registry, timeout time.Duration, log zerolog.Logger) *Refiner {
	if registry == nil {
		registry = provider.NewRegistry()
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Refiner{registry: registry, timeout: timeout, log: log}
}

// Select returns the provider a request would use. FreeOnly always selects
// the heuristic.
func (r *Refiner) Select(requested provider.Name, freeOnly bool) provider.Selection {
	if freeOnly {
		return provider.Selection{Name: provider.Heuristic}
	}
	return r.registry.Resolve(requested)
}

// Request describes one refinement attempt.
type Request[T any] struct {
	Provider provider.Name
	FreeOnly bool
	// Kind labels log lines, e.g. "recurring".
	Kind string
	// Prompt is only built when a provider will be called.
	Prompt func() provider.Prompt
	// Parse turns the extracted JSON payload into a result, returning an
	// error wrapping provider.ErrInvalidShape when required fields are missing.
	Parse func(raw []byte) (T, error)
}

// Resolve returns the provider-refined result and the provider's name, or
// heuristic and provider.Heuristic when refinement is not requested, not
// configured, or fails for any reason. Failures are logged, never returned.
func Resolve[T any](ctx context.Context, r *Refiner, req Request[T], heuristic T) (T, provider.Name) {
	sel := r.Select(req.Provider, req.FreeOnly)
	if !sel.External() {
		return heuristic, provider.Heuristic
	}

	log := r.log.With().Str("provider", string(sel.Name)).Str("kind", req.Kind).Logger()

	out, err := attempt(ctx, r.timeout, sel, req)
	if err != nil {
		log.Warn().Err(err).Msg("provider refinement failed, using heuristic result")
		return heuristic, provider.Heuristic
	}
	log.Debug().Msg("provider refinement succeeded")
	return out, sel.Name
}

func attempt[T any](ctx context.Context, timeout time.Duration, sel provider.Selection, req Request[T]) (out T, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("refine: provider %s panicked: %v", sel.Name, rec)
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	prompt := req.Prompt()
	text, err := sel.Generator.Generate(ctx, prompt)
	if err != nil {
		return out, fmt.Errorf("refine: generate: %w", err)
	}

	return provider.Decode(sel.Name, text, prompt.Format, req.Parse)
}
