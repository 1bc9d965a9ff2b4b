package ai

import (
	"context"
	"fmt"

	"github.com/avlasov/spendlens/internal/domain"
)

// Fake is a deterministic in-memory Provider for tests and offline runs.
// Unset function fields fall back to built-in behavior: embeddings derived
// from byte histograms (identical texts embed identically) and a canned
// answer that echoes the context size.
type Fake struct {
	EmbedTextsFunc func(ctx context.Context, texts []string) ([][]float32, error)
	AnswerFunc     func(ctx context.Context, question string, rows []domain.SpendRecord) (string, error)
}

var _ Provider = (*Fake)(nil)

const fakeDim = 8

func (f *Fake) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if f.EmbedTextsFunc != nil {
		return f.EmbedTextsFunc(ctx, texts)
	}
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vec := make([]float32, fakeDim)
		for _, b := range []byte(text) {
			vec[int(b)%fakeDim]++
		}
		vectors[i] = vec
	}
	return vectors, nil
}

func (f *Fake) Answer(ctx context.Context, question string, rows []domain.SpendRecord) (string, error) {
	if f.AnswerFunc != nil {
		return f.AnswerFunc(ctx, question, rows)
	}
	return fmt.Sprintf("(offline) %d context rows considered for: %s", len(rows), question), nil
}

func (f *Fake) ModelVersion() string {
	return "offline"
}
