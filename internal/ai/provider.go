// Package ai is the language-model boundary: embedding texts for the index
// and answering questions grounded in retrieved spend rows. Everything above
// this package talks to the Provider interface; Gemini is the production
// implementation and Fake serves tests and offline runs.
package ai

import (
	"context"
	"errors"

	"github.com/avlasov/spendlens/internal/domain"
)

var (
	// ErrNotConfigured signals that no provider credentials are present.
	ErrNotConfigured = errors.New("ai provider not configured")
	// ErrQuestionRejected signals that sanitization refused the question.
	ErrQuestionRejected = errors.New("question contains disallowed content")
)

// Provider is the abstract model capability: batch text embedding plus
// context-grounded answering.
type Provider interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
	Answer(ctx context.Context, question string, rows []domain.SpendRecord) (string, error)

	// ModelVersion names the answering model, for response metadata.
	ModelVersion() string
}
