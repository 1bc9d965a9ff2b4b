package ai

import (
	"context"
	"fmt"
	"os"
	"strings"

	"google.golang.org/genai"

	"github.com/avlasov/spendlens/internal/domain"
)

const (
	answerTemperature = 0.2
	answerMaxTokens   = 400
)

// Gemini implements Provider on top of the Gemini API.
type Gemini struct {
	client      *genai.Client
	embedModel  string
	answerModel string
}

var _ Provider = (*Gemini)(nil)

// NewGemini creates the production provider. It returns ErrNotConfigured
// when no API key is present in the environment, so callers can degrade to
// a provider-less mode instead of failing at startup.
func NewGemini(ctx context.Context, embedModel, answerModel string) (*Gemini, error) {
	if os.Getenv("GEMINI_API_KEY") == "" && os.Getenv("GOOGLE_API_KEY") == "" {
		return nil, ErrNotConfigured
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return nil, fmt.Errorf("NewGemini: failed to create client: %w", err)
	}

	return &Gemini{client: client, embedModel: embedModel, answerModel: answerModel}, nil
}

// EmbedTexts embeds every text through the configured embedding model,
// returning vectors in input order.
func (g *Gemini) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	contents := make([]*genai.Content, len(texts))
	for i, text := range texts {
		contents[i] = &genai.Content{Parts: []*genai.Part{{Text: text}}}
	}

	resp, err := g.client.Models.EmbedContent(ctx, g.embedModel, contents, nil)
	if err != nil {
		return nil, fmt.Errorf("EmbedTexts: %w", err)
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("EmbedTexts: got %d embeddings for %d texts", len(resp.Embeddings), len(texts))
	}

	vectors := make([][]float32, len(resp.Embeddings))
	for i, emb := range resp.Embeddings {
		vectors[i] = emb.Values
	}
	return vectors, nil
}

// ModelVersion names the configured answer model.
func (g *Gemini) ModelVersion() string {
	return g.answerModel
}

// Answer asks the answer model the question grounded in the given rows.
func (g *Gemini) Answer(ctx context.Context, question string, rows []domain.SpendRecord) (string, error) {
	config := &genai.GenerateContentConfig{
		Temperature:       genai.Ptr[float32](answerTemperature),
		MaxOutputTokens:   answerMaxTokens,
		SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: systemPrompt}}},
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.answerModel,
		[]*genai.Content{{
			Role:  "user",
			Parts: []*genai.Part{{Text: buildUserPrompt(question, rows)}},
		}}, config)
	if err != nil {
		return "", fmt.Errorf("Answer: %w", err)
	}

	return strings.TrimSpace(resp.Text()), nil
}
