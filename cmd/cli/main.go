package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"github.com/avlasov/spendlens/internal/ai"
	"github.com/avlasov/spendlens/internal/analytics"
	"github.com/avlasov/spendlens/internal/config"
	"github.com/avlasov/spendlens/internal/dataset"
	"github.com/avlasov/spendlens/internal/domain"
	"github.com/avlasov/spendlens/internal/gcs"
	infraBQ "github.com/avlasov/spendlens/internal/infra/bigquery"
	"github.com/avlasov/spendlens/internal/index"
	"github.com/avlasov/spendlens/internal/jobs"
	"github.com/avlasov/spendlens/internal/logger"
	"github.com/avlasov/spendlens/internal/notionsync"
)

func main() {
	log := logger.New()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "kpi":
		runKPI(log)
	case "audit":
		runAudit(log)
	case "recommend":
		runRecommend(log)
	case "idle":
		runIdle(log)
	case "normalize":
		runNormalize(log)
	case "index-build":
		runIndexBuild(log)
	case "ask":
		runAsk(log)
	case "export-notion":
		runExportNotion(log)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("SpendLens CLI")
	fmt.Println("\nUsage:")
	fmt.Println("  spendlens <command> [options]")
	fmt.Println("\nCommands:")
	fmt.Println("  kpi            Print the KPI summary for a spend source")
	fmt.Println("  audit          Print data quality warnings for a spend source")
	fmt.Println("  recommend      Flag sudden spend increases and zero-cost services")
	fmt.Println("  idle           Detect resources with recent all-zero spend")
	fmt.Println("  normalize      Normalize a spend source and write contract-ordered CSV")
	fmt.Println("  index-build    Build the embedding index from a spend source")
	fmt.Println("  ask            Ask a question grounded in indexed spend rows")
	fmt.Println("  export-notion  Sync idle findings to a Notion database")
	fmt.Println("  help           Show this help message")
	fmt.Println("\nRun 'spendlens <command> -h' for more information on a command.")
}

func loadConfig(log zerolog.Logger, path string) *config.Config {
	cfg, err := config.Load(path)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	return cfg
}

// newLoader wires the loader for the requested source. BigQuery is only
// dialed when the source actually needs it, so plain CSV commands run
// without cloud credentials.
func newLoader(ctx context.Context, log zerolog.Logger, cfg *config.Config, source string) (*dataset.Loader, func()) {
	loader := &dataset.Loader{
		DefaultPath: cfg.Dataset.Path,
		Objects:     gcs.NewClient(),
	}
	cleanup := func() {}

	ref := source
	if ref == "" {
		ref = cfg.Dataset.Path
	}
	if strings.HasPrefix(ref, "bq://") {
		repo, err := infraBQ.NewSpendRepository(ctx, os.Getenv("GOOGLE_CLOUD_PROJECT"))
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create BigQuery client")
		}
		loader.Warehouse = repo
		cleanup = func() { repo.Close() }
	}
	return loader, cleanup
}

func newProvider(ctx context.Context, log zerolog.Logger, cfg *config.Config) ai.Provider {
	gemini, err := ai.NewGemini(ctx, cfg.Index.EmbedModel, cfg.Ask.AnswerModel)
	switch {
	case err == nil:
		return gemini
	case errors.Is(err, ai.ErrNotConfigured):
		log.Warn().Msg("No Gemini API key configured - using the offline provider")
		return &ai.Fake{}
	default:
		log.Fatal().Err(err).Msg("Failed to create AI provider")
		return nil
	}
}

func printWarnings(warnings []string) {
	if len(warnings) == 0 {
		return
	}
	fmt.Printf("\nWarnings (%d):\n", len(warnings))
	for _, w := range warnings {
		fmt.Printf("  - %s\n", w)
	}
}

func runKPI(log zerolog.Logger) {
	fs := flag.NewFlagSet("kpi", flag.ExitOnError)
	configPath := fs.String("config", os.Getenv("SPENDLENS_CONFIG"), "Path to YAML config file")
	source := fs.String("source", "", "Spend source: local path, gs:// or bq:// (default from config)")
	fs.Parse(os.Args[2:])

	cfg := loadConfig(log, *configPath)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	loader, cleanup := newLoader(ctx, log, cfg, *source)
	defer cleanup()

	table, warnings, err := loader.Load(ctx, *source)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load spend data")
	}

	kpis := analytics.ComputeKPIs(table)

	fmt.Println("\n=== Spend KPIs ===")
	fmt.Printf("Total spend:     $%d\n", kpis.TotalSpend)
	fmt.Printf("Highest service: %s\n", kpis.HighestService)
	fmt.Printf("Lowest service:  %s\n", kpis.LowestService)
	fmt.Printf("Monthly trend:   %v\n", kpis.MonthlyTrend)

	services := lo.Keys(kpis.ServiceTotals)
	sort.Strings(services)
	fmt.Println("\nPer-service totals:")
	for _, svc := range services {
		fmt.Printf("  %-24s $%.2f\n", svc, kpis.ServiceTotals[svc])
	}

	printWarnings(warnings)
}

func runAudit(log zerolog.Logger) {
	fs := flag.NewFlagSet("audit", flag.ExitOnError)
	configPath := fs.String("config", os.Getenv("SPENDLENS_CONFIG"), "Path to YAML config file")
	source := fs.String("source", "", "Spend source: local path, gs:// or bq:// (default from config)")
	fs.Parse(os.Args[2:])

	cfg := loadConfig(log, *configPath)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	loader, cleanup := newLoader(ctx, log, cfg, *source)
	defer cleanup()

	table, warnings, err := loader.Load(ctx, *source)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load spend data")
	}

	fmt.Printf("Rows: %d\n", len(table.Rows))
	if len(warnings) == 0 {
		fmt.Println("No data quality warnings.")
		return
	}
	printWarnings(warnings)
}

func runRecommend(log zerolog.Logger) {
	fs := flag.NewFlagSet("recommend", flag.ExitOnError)
	configPath := fs.String("config", os.Getenv("SPENDLENS_CONFIG"), "Path to YAML config file")
	source := fs.String("source", "", "Spend source: local path, gs:// or bq:// (default from config)")
	threshold := fs.Float64("threshold", -1, "Percent-change threshold, 0-100 (default from config)")
	fs.Parse(os.Args[2:])

	cfg := loadConfig(log, *configPath)
	pct := cfg.Detect.ThresholdPct
	if *threshold >= 0 {
		pct = *threshold
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	loader, cleanup := newLoader(ctx, log, cfg, *source)
	defer cleanup()

	table, warnings, err := loader.Load(ctx, *source)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load spend data")
	}

	flags, trendAnalyzed := analytics.DetectSpendShifts(table, pct)

	fmt.Printf("\n=== Recommendations (threshold %.1f%%) ===\n", pct)
	if !trendAnalyzed {
		fmt.Println("Not enough months of data to compute recommendations.")
	}
	for _, f := range flags {
		switch f.Kind {
		case analytics.FlagSuddenIncrease:
			fmt.Printf("  %-24s +%.2f%% month over month - check deployments, pricing tier, or noisy jobs\n", f.Service, f.PctIncrease)
		case analytics.FlagZeroTotal:
			fmt.Printf("  %-24s zero total spend - confirm if unused and removable\n", f.Service)
		}
	}
	if trendAnalyzed && len(flags) == 0 {
		fmt.Println("No recommendations - spend looks stable.")
	}

	printWarnings(warnings)
}

func runIdle(log zerolog.Logger) {
	fs := flag.NewFlagSet("idle", flag.ExitOnError)
	configPath := fs.String("config", os.Getenv("SPENDLENS_CONFIG"), "Path to YAML config file")
	source := fs.String("source", "", "Spend source: local path, gs:// or bq:// (default from config)")
	months := fs.Int("months", 0, "Size of the all-zero recent window (default from config)")
	minSaving := fs.Float64("min-saving", -1, "Minimum prior-window average cost to report (default from config)")
	fs.Parse(os.Args[2:])

	cfg := loadConfig(log, *configPath)
	opts := analytics.IdleOptions{
		IdleMonths:       cfg.Detect.IdleMonths,
		MinMonthlySaving: cfg.Detect.MinMonthlySaving,
	}
	if *months > 0 {
		opts.IdleMonths = *months
	}
	if *minSaving >= 0 {
		opts.MinMonthlySaving = *minSaving
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	loader, cleanup := newLoader(ctx, log, cfg, *source)
	defer cleanup()

	table, warnings, err := loader.Load(ctx, *source)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load spend data")
	}

	findings, idleWarnings := analytics.DetectIdleResources(table, opts)

	fmt.Printf("\n=== Idle resources (%d) ===\n", len(findings))
	for _, f := range findings {
		fmt.Printf("\n%s\n", f.ResourceID)
		fmt.Printf("  Estimated monthly saving: $%.2f\n", f.EstimatedMonthlySaving)
		fmt.Printf("  Zero months:              %s\n", strings.Join(f.LastMonthsZero, ", "))
		if f.Owner != "" {
			fmt.Printf("  Owner:                    %s\n", f.Owner)
		}
		if f.Env != "" {
			fmt.Printf("  Env:                      %s\n", f.Env)
		}
		if f.Tags != "" {
			fmt.Printf("  Tags:                     %s\n", f.Tags)
		}
	}
	if len(findings) == 0 {
		fmt.Println("No idle resources detected.")
	}

	printWarnings(append(warnings, idleWarnings...))
}

func runNormalize(log zerolog.Logger) {
	fs := flag.NewFlagSet("normalize", flag.ExitOnError)
	configPath := fs.String("config", os.Getenv("SPENDLENS_CONFIG"), "Path to YAML config file")
	source := fs.String("source", "", "Spend source: local path, gs:// or bq:// (default from config)")
	out := fs.String("out", "", "Output destination: local path or gs://bucket/object (default stdout)")
	fs.Parse(os.Args[2:])

	cfg := loadConfig(log, *configPath)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	loader, cleanup := newLoader(ctx, log, cfg, *source)
	defer cleanup()

	table, warnings, err := loader.Load(ctx, *source)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load spend data")
	}

	switch {
	case *out == "":
		if err := dataset.WriteCSV(os.Stdout, table); err != nil {
			log.Fatal().Err(err).Msg("Failed to write CSV")
		}

	case strings.HasPrefix(*out, "gs://"):
		bucket, object, err := gcs.SplitURI(*out)
		if err != nil {
			log.Fatal().Err(err).Msg("Invalid output URI")
		}
		var buf bytes.Buffer
		if err := dataset.WriteCSV(&buf, table); err != nil {
			log.Fatal().Err(err).Msg("Failed to write CSV")
		}
		if err := gcs.UploadObject(ctx, bucket, object, buf.Bytes()); err != nil {
			log.Fatal().Err(err).Msg("Failed to upload CSV")
		}
		fmt.Printf("Wrote %d rows to %s\n", len(table.Rows), *out)

	default:
		f, err := os.Create(*out)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create output file")
		}
		if err := dataset.WriteCSV(f, table); err != nil {
			f.Close()
			log.Fatal().Err(err).Msg("Failed to write CSV")
		}
		if err := f.Close(); err != nil {
			log.Fatal().Err(err).Msg("Failed to close output file")
		}
		fmt.Printf("Wrote %d rows to %s\n", len(table.Rows), *out)
	}

	printWarnings(warnings)
}

func runIndexBuild(log zerolog.Logger) {
	fs := flag.NewFlagSet("index-build", flag.ExitOnError)
	configPath := fs.String("config", os.Getenv("SPENDLENS_CONFIG"), "Path to YAML config file")
	source := fs.String("source", "", "Spend source: local path, gs:// or bq:// (default from config)")
	fs.Parse(os.Args[2:])

	cfg := loadConfig(log, *configPath)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	loader, cleanup := newLoader(ctx, log, cfg, *source)
	defer cleanup()

	provider := newProvider(ctx, log, cfg)
	searchIndex := index.New(cfg.Index.Dir, provider, cfg.Index.BatchSize)

	builder := jobs.NewIndexBuilder(loader, searchIndex, log)
	if cfg.GCS.Bucket != "" {
		builder = builder.WithMirror(gcs.NewClient(), cfg.GCS.Bucket)
	}

	job := &jobs.IndexBuildJob{
		JobID:     uuid.NewString(),
		Source:    *source,
		Status:    jobs.JobStatusRunning,
		CreatedAt: time.Now(),
	}
	if err := builder.Handle(ctx, job); err != nil {
		log.Fatal().Err(err).Msg("Index build failed")
	}

	fmt.Printf("Indexed %d rows into %s\n", job.RowsIndexed, cfg.Index.Dir)
	printWarnings(job.Warnings)
}

func runAsk(log zerolog.Logger) {
	fs := flag.NewFlagSet("ask", flag.ExitOnError)
	configPath := fs.String("config", os.Getenv("SPENDLENS_CONFIG"), "Path to YAML config file")
	question := fs.String("question", "", "Question to ask about the indexed spend data")
	topK := fs.Int("top-k", index.DefaultTopK, "Number of context rows to retrieve (1-50)")
	fs.Parse(os.Args[2:])

	if *question == "" {
		log.Fatal().Msg("Error: --question is required")
	}
	if *topK < 1 || *topK > 50 {
		log.Fatal().Msg("Error: --top-k must be between 1 and 50")
	}

	cfg := loadConfig(log, *configPath)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	sanitized, err := ai.SanitizeQuestion(*question, cfg.Ask.MaxQuestionLen)
	if err != nil {
		log.Fatal().Err(err).Msg("Question rejected")
	}

	provider := newProvider(ctx, log, cfg)
	searchIndex := index.New(cfg.Index.Dir, provider, cfg.Index.BatchSize)

	results, err := searchIndex.Query(ctx, sanitized, *topK)
	if err != nil {
		if errors.Is(err, index.ErrNotBuilt) {
			log.Fatal().Msg("Index not built. Run 'spendlens index-build' first.")
		}
		log.Fatal().Err(err).Msg("Retrieval failed")
	}

	rows := lo.Map(results, func(res index.Result, _ int) domain.SpendRecord {
		return res.SpendRecord
	})

	answer, err := provider.Answer(ctx, sanitized, rows)
	if err != nil {
		log.Fatal().Err(err).Msg("Answer generation failed")
	}

	fmt.Println("\n=== Answer ===")
	fmt.Println(answer)

	fmt.Printf("\nSources (%d):\n", len(results))
	for _, res := range results {
		fmt.Printf("  [%.3f] %s: %s → $%d\n", res.Score, res.Month, res.Service, int64(res.Cost))
	}
}

func runExportNotion(log zerolog.Logger) {
	fs := flag.NewFlagSet("export-notion", flag.ExitOnError)
	configPath := fs.String("config", os.Getenv("SPENDLENS_CONFIG"), "Path to YAML config file")
	source := fs.String("source", "", "Spend source: local path, gs:// or bq:// (default from config)")
	dbID := fs.String("db-id", "", "Notion database ID (default from config)")
	dryRun := fs.Bool("dry-run", false, "Plan the sync without writing to Notion")
	fs.Parse(os.Args[2:])

	cfg := loadConfig(log, *configPath)

	databaseID := cfg.Notion.DatabaseID
	if *dbID != "" {
		databaseID = *dbID
	}
	if databaseID == "" {
		log.Fatal().Msg("Error: --db-id or notion.database_id config is required")
	}

	token := os.Getenv("NOTION_TOKEN")
	if token == "" {
		log.Fatal().Msg("Error: NOTION_TOKEN env is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	loader, cleanup := newLoader(ctx, log, cfg, *source)
	defer cleanup()

	table, warnings, err := loader.Load(ctx, *source)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load spend data")
	}

	findings, idleWarnings := analytics.DetectIdleResources(table, analytics.IdleOptions{
		IdleMonths:       cfg.Detect.IdleMonths,
		MinMonthlySaving: cfg.Detect.MinMonthlySaving,
	})

	client := notionsync.NewNotionClient(token)
	stats, err := notionsync.SyncIdleFindings(ctx, client, databaseID, findings, *dryRun)
	if err != nil {
		log.Fatal().Err(err).Msg("Notion sync failed")
	}

	if *dryRun {
		fmt.Printf("Dry run: would create %d, update %d, archive %d\n", stats.Created, stats.Updated, stats.Deleted)
	} else {
		fmt.Printf("Notion sync complete: %d created, %d updated, %d archived\n", stats.Created, stats.Updated, stats.Deleted)
	}

	printWarnings(append(warnings, idleWarnings...))
}
