package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/avlasov/spendlens/internal/ai"
	"github.com/avlasov/spendlens/internal/config"
	"github.com/avlasov/spendlens/internal/evalset"
	"github.com/avlasov/spendlens/internal/index"
	"github.com/avlasov/spendlens/internal/logger"
)

// Measures retrieval quality of the built index against the fixed QA set
// and writes a Recall@k report. Run it after index-build; a missing index
// shows up as per-query errors in the report rather than a crash.
func main() {
	var (
		configPath = flag.String("config", os.Getenv("SPENDLENS_CONFIG"), "Path to YAML config file")
		outPath    = flag.String("out", "eval_results.json", "Where to write the evaluation report")
	)
	flag.Parse()

	log := logger.New()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	var provider ai.Provider
	gemini, err := ai.NewGemini(ctx, cfg.Index.EmbedModel, cfg.Ask.AnswerModel)
	switch {
	case err == nil:
		provider = gemini
	case errors.Is(err, ai.ErrNotConfigured):
		log.Warn().Msg("No Gemini API key configured - evaluating with the offline provider")
		provider = &ai.Fake{}
	default:
		log.Fatal().Err(err).Msg("Failed to create AI provider")
	}

	searchIndex := index.New(cfg.Index.Dir, provider, cfg.Index.BatchSize)

	log.Info().Str("index_dir", cfg.Index.Dir).Int("pairs", len(evalset.Pairs())).Msg("Starting retrieval evaluation")

	report := evalset.EvaluateRecall(ctx, searchIndex, evalset.Pairs(), evalset.DefaultKs)

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to encode report")
	}
	if err := os.WriteFile(*outPath, data, 0o644); err != nil {
		log.Fatal().Err(err).Msg("Failed to write report")
	}

	for _, kr := range report.PerK {
		fmt.Printf("Recall@%d: %.2f (%d/%d)\n", kr.K, kr.Recall, kr.NFound, kr.NQueries)
	}
	fmt.Printf("Report written to %s\n", *outPath)
}
