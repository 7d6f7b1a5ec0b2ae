package provider

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func stub(text string) Generator {
	return GeneratorFunc(func(ctx context.Context, p Prompt) (string, error) {
		return text, nil
	})
}

func TestParseName(t *testing.T) {
	tests := []struct {
		in   string
		want Name
	}{
		{"gemini", Gemini},
		{" OpenAI ", OpenAI},
		{"auto", Auto},
		{"heuristic", Heuristic},
		{"", Heuristic},
		{"claude", Heuristic},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseName(tt.in))
		})
	}
}

func TestRegistry_Resolve(t *testing.T) {
	onlyOpenAI := NewRegistry()
	onlyOpenAI.Register(OpenAI, stub("o"))

	both := NewRegistry()
	both.Register(OpenAI, stub("o"))
	both.Register(Gemini, stub("g"))

	empty := NewRegistry()

	tests := []struct {
		name      string
		registry  *Registry
		requested Name
		want      Name
	}{
		{"heuristic never calls out", both, Heuristic, Heuristic},
		{"registered provider", both, Gemini, Gemini},
		{"missing credential falls back", onlyOpenAI, Gemini, Heuristic},
		{"auto prefers gemini", both, Auto, Gemini},
		{"auto uses what is available", onlyOpenAI, Auto, OpenAI},
		{"auto with nothing configured", empty, Auto, Heuristic},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sel := tt.registry.Resolve(tt.requested)
			assert.Equal(t, tt.want, sel.Name)
			assert.Equal(t, tt.want != Heuristic, sel.External())
		})
	}
}

func TestRegistry_IgnoresPseudoProviders(t *testing.T) {
	r := NewRegistry()
	r.Register(Heuristic, stub("h"))
	r.Register(Auto, stub("a"))
	r.Register(Gemini, nil)

	assert.Empty(t, r.Available())
	assert.Equal(t, Heuristic, r.Resolve(Auto).Name)
}

func TestRegistry_Available(t *testing.T) {
	r := NewRegistry()
	r.Register(OpenAI, stub("o"))
	r.Register(Gemini, stub("g"))

	assert.Equal(t, []Name{Gemini, OpenAI}, r.Available())
}
