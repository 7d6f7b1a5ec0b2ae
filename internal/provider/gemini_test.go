package provider

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

type fakeModels struct {
	gotModel    string
	gotContents []*genai.Content
	gotConfig   *genai.GenerateContentConfig
	resp        *genai.GenerateContentResponse
	err         error
}

func (f *fakeModels) GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.gotModel = model
	f.gotContents = contents
	f.gotConfig = config
	return f.resp, f.err
}

func textResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{Content: &genai.Content{Parts: []*genai.Part{{Text: text}}}},
		},
	}
}

func TestGeminiGenerator_Generate(t *testing.T) {
	fake := &fakeModels{resp: textResponse(`{"tips": []}`)}
	g := newGemini(fake, "")

	got, err := g.Generate(context.Background(), Prompt{System: "be brief", Text: "hello", Format: FormatObject})

	require.NoError(t, err)
	assert.Equal(t, `{"tips": []}`, got)
	assert.Equal(t, DefaultGeminiModel, fake.gotModel)
	require.Len(t, fake.gotContents, 1)
	assert.Equal(t, "hello", fake.gotContents[0].Parts[0].Text)
	assert.Equal(t, "application/json", fake.gotConfig.ResponseMIMEType)
	require.NotNil(t, fake.gotConfig.SystemInstruction)
	assert.Equal(t, "be brief", fake.gotConfig.SystemInstruction.Parts[0].Text)
	require.NotNil(t, fake.gotConfig.Temperature)
	assert.InDelta(t, 0.2, *fake.gotConfig.Temperature, 1e-6)
}

func TestGeminiGenerator_Errors(t *testing.T) {
	_, err := newGemini(&fakeModels{err: errors.New("quota")}, "m").Generate(context.Background(), Prompt{Text: "x"})
	assert.ErrorContains(t, err, "quota")

	_, err = newGemini(&fakeModels{resp: textResponse("")}, "m").Generate(context.Background(), Prompt{Text: "x"})
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestNewGemini_RequiresKey(t *testing.T) {
	_, err := NewGemini(context.Background(), "", "")
	assert.ErrorIs(t, err, ErrNoCredential)
}
