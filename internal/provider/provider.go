// Package provider wraps the external text-generation services used to
// refine heuristic results.
package provider

import (
	"context"
	"strings"
	"sync"
)

// Name identifies a refinement strategy. Heuristic means no external call.
type Name string

const (
	Heuristic Name = "heuristic"
	Gemini    Name = "gemini"
	OpenAI    Name = "openai"
	// Auto picks the first provider with a credential, in AutoOrder.
	Auto Name = "auto"
)

// AutoOrder is the preference order used to resolve Auto.
var AutoOrder = []Name{Gemini, OpenAI}

// ParseName maps a caller-supplied provider string to a Name. Blank and
// unrecognized values map to Heuristic.
func ParseName(s string) Name {
	switch n := Name(strings.ToLower(strings.TrimSpace(s))); n {
	case Gemini, OpenAI, Auto, Heuristic:
		return n
	default:
		return Heuristic
	}
}

// Format is the top-level JSON shape a prompt asks for.
type Format byte

const (
	FormatObject Format = '{'
	FormatArray  Format = '['
)

// Prompt is a single text-generation request.
type Prompt struct {
	System string
	Text   string
	Format Format
}

// Generator produces free text for a prompt.
type Generator interface {
	Generate(ctx context.Context, p Prompt) (string, error)
}

// GeneratorFunc adapts a function to the Generator interface.
type GeneratorFunc func(ctx context.Context, p Prompt) (string, error)

func (f GeneratorFunc) Generate(ctx context.Context, p Prompt) (string, error) {
	return f(ctx, p)
}

// Selection is the outcome of resolving a requested Name against a Registry.
// Generator is nil when Name is Heuristic.
type Selection struct {
	Name      Name
	Generator Generator
}

// External reports whether the selection calls out to a provider.
func (s Selection) External() bool {
	return s.Name != Heuristic && s.Generator != nil
}

// Registry records which providers are configured with a usable credential.
type Registry struct {
	mu         sync.RWMutex
	generators map[Name]Generator
}

func NewRegistry() *Registry {
	return &Registry{generators: make(map[Name]Generator)}
}

// Register makes g available under name. Registering Heuristic or Auto is
// ignored.
func (r *Registry) Register(name Name, g Generator) {
	if name == Heuristic || name == Auto || g == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.generators[name] = g
}

// Resolve selects the generator for a requested provider. A provider without
// a registered credential resolves to Heuristic.
func (r *Registry) Resolve(requested Name) Selection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	switch requested {
	case Auto:
		for _, n := range AutoOrder {
			if g, ok := r.generators[n]; ok {
				return Selection{Name: n, Generator: g}
			}
		}
	case Heuristic:
	default:
		if g, ok := r.generators[requested]; ok {
			return Selection{Name: requested, Generator: g}
		}
	}
	return Selection{Name: Heuristic}
}

// Available lists the registered providers in AutoOrder.
func (r *Registry) Available() []Name {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Name
	for _, n := range AutoOrder {
		if _, ok := r.generators[n]; ok {
			out = append(out, n)
		}
	}
	return out
}
