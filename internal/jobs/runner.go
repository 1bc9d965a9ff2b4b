package jobs

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/avlasov/spendlens/internal/dataset"
	"github.com/avlasov/spendlens/internal/index"
)

// ArtifactMirror copies index artifacts to a bucket after a build.
type ArtifactMirror interface {
	UploadObject(ctx context.Context, bucket, object string, data []byte) error
}

// IndexBuilder executes index build jobs end to end: resolve the job's data
// source through the loader, rebuild the embedding index, and record the row
// count and any data quality warnings on the job itself.
type IndexBuilder struct {
	loader *dataset.Loader
	index  *index.Index
	log    zerolog.Logger

	mirror       ArtifactMirror
	mirrorBucket string
}

// NewIndexBuilder creates the handler for index build jobs.
func NewIndexBuilder(loader *dataset.Loader, ix *index.Index, log zerolog.Logger) *IndexBuilder {
	return &IndexBuilder{loader: loader, index: ix, log: log}
}

// WithMirror copies the index artifacts to the given bucket after each
// successful build. Mirroring is best effort and never fails the job.
func (b *IndexBuilder) WithMirror(m ArtifactMirror, bucket string) *IndexBuilder {
	b.mirror = m
	b.mirrorBucket = bucket
	return b
}

// Handle implements JobHandler for index build jobs.
func (b *IndexBuilder) Handle(ctx context.Context, job Job) error {
	build, ok := job.(*IndexBuildJob)
	if !ok {
		return fmt.Errorf("Handle: unexpected job type %q", job.GetType())
	}

	table, warnings, err := b.loader.Load(ctx, build.Source)
	if err != nil {
		return fmt.Errorf("Handle: load source: %w", err)
	}
	build.Warnings = warnings

	rows, err := b.index.Build(ctx, table)
	if err != nil {
		return fmt.Errorf("Handle: build index: %w", err)
	}
	build.RowsIndexed = rows

	if b.mirror != nil && b.mirrorBucket != "" && rows > 0 {
		b.mirrorArtifacts(ctx)
	}

	b.log.Info().
		Str("job_id", build.JobID).
		Str("source", build.Source).
		Int("rows_indexed", rows).
		Int("warnings", len(warnings)).
		Msg("Index build completed")
	return nil
}

func (b *IndexBuilder) mirrorArtifacts(ctx context.Context) {
	for _, name := range index.ArtifactFiles() {
		data, err := os.ReadFile(filepath.Join(b.index.Dir(), name))
		if err != nil {
			b.log.Warn().Err(err).Str("artifact", name).Msg("Skipping artifact mirror")
			continue
		}
		object := path.Join("index", name)
		if err := b.mirror.UploadObject(ctx, b.mirrorBucket, object, data); err != nil {
			b.log.Warn().Err(err).Str("artifact", name).Msg("Artifact mirror upload failed")
			continue
		}
		b.log.Debug().Str("bucket", b.mirrorBucket).Str("object", object).Msg("Artifact mirrored")
	}
}
