// Package index maintains the embedding index over the spend table: build
// persists a vector matrix plus row metadata as lockstep artifacts, query
// scores rows by cosine similarity against an embedded question. The live
// matrix is an immutable snapshot swapped wholesale on rebuild, so readers
// never see a partial update.
package index

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/avlasov/spendlens/internal/dataset"
	"github.com/avlasov/spendlens/internal/domain"
)

// ErrNotBuilt signals a query against an index with no persisted artifacts.
var ErrNotBuilt = errors.New("index not built")

const (
	// DefaultTopK is the result count when the caller does not specify one.
	DefaultTopK = 5
	// DefaultBatchSize bounds how many texts go to the embedder per call.
	DefaultBatchSize = 64
)

// Embedder turns texts into vectors, one per input, all of equal dimension.
type Embedder interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// Result is one retrieved row: the spend record plus its similarity score.
type Result struct {
	domain.SpendRecord

	Score float64 `json:"_score"`
}

// Index owns the persisted artifacts under dir and an in-memory snapshot
// loaded lazily on first query. Safe for concurrent use.
type Index struct {
	dir       string
	embedder  Embedder
	batchSize int

	mu   sync.RWMutex
	snap *snapshot
}

type snapshot struct {
	n, dim  int
	vectors []float32 // row-major
	normed  []float32 // row-normalized copy for cosine scoring
	meta    []domain.SpendRecord
}

// New creates an index over the given artifact directory. batchSize values
// below 1 fall back to DefaultBatchSize.
func New(dir string, embedder Embedder, batchSize int) *Index {
	if batchSize < 1 {
		batchSize = DefaultBatchSize
	}
	return &Index{dir: dir, embedder: embedder, batchSize: batchSize}
}

// Dir returns the directory holding the persisted artifacts.
func (ix *Index) Dir() string {
	return ix.dir
}

// Build embeds every row of the table and replaces both persisted artifacts
// and the live snapshot. Any failure before the artifacts are written leaves
// the previous index fully intact. An empty table builds nothing and returns
// 0 without touching existing artifacts.
func (ix *Index) Build(ctx context.Context, table *dataset.Table) (int, error) {
	texts := RowTexts(table)
	if len(texts) == 0 {
		return 0, nil
	}

	vectors, dim, err := ix.embedAll(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("Build: %w", err)
	}

	if err := os.MkdirAll(ix.dir, 0o755); err != nil {
		return 0, fmt.Errorf("Build: %w", err)
	}
	meta := table.Records()
	if err := writeVectorsFile(filepath.Join(ix.dir, vectorsFile), len(texts), dim, vectors); err != nil {
		return 0, fmt.Errorf("Build: %w", err)
	}
	if err := writeMetaFile(filepath.Join(ix.dir, metaFile), meta); err != nil {
		return 0, fmt.Errorf("Build: %w", err)
	}

	snap := newSnapshot(len(texts), dim, vectors, meta)
	ix.mu.Lock()
	ix.snap = snap
	ix.mu.Unlock()
	return len(texts), nil
}

// Query embeds the question text and returns the topK most similar rows by
// cosine similarity, ties broken by row order. topK below 1 defaults to
// DefaultTopK; topK beyond the row count returns every row. Returns
// ErrNotBuilt when no artifacts exist.
func (ix *Index) Query(ctx context.Context, text string, topK int) ([]Result, error) {
	if topK < 1 {
		topK = DefaultTopK
	}

	snap, err := ix.ensureLoaded()
	if err != nil {
		return nil, err
	}

	embedded, err := ix.embedder.EmbedTexts(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("Query: embed: %w", err)
	}
	if len(embedded) != 1 || len(embedded[0]) != snap.dim {
		return nil, fmt.Errorf("Query: embedder returned %d vectors, want one of dimension %d", len(embedded), snap.dim)
	}
	query := embedded[0]

	var queryNorm float64
	for _, v := range query {
		queryNorm += float64(v) * float64(v)
	}
	queryNorm = math.Sqrt(queryNorm) + 1e-12

	scores := make([]float64, snap.n)
	for i := 0; i < snap.n; i++ {
		row := snap.normed[i*snap.dim : (i+1)*snap.dim]
		var dot float64
		for j, v := range row {
			dot += float64(v) * float64(query[j])
		}
		scores[i] = dot / queryNorm
	}

	order := make([]int, snap.n)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return scores[order[a]] > scores[order[b]]
	})

	if topK > snap.n {
		topK = snap.n
	}
	results := make([]Result, 0, topK)
	for _, i := range order[:topK] {
		results = append(results, Result{SpendRecord: snap.meta[i], Score: scores[i]})
	}
	return results, nil
}

func (ix *Index) ensureLoaded() (*snapshot, error) {
	ix.mu.RLock()
	snap := ix.snap
	ix.mu.RUnlock()
	if snap != nil {
		return snap, nil
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()
	if ix.snap != nil {
		return ix.snap, nil
	}

	snap, err := ix.loadSnapshot()
	if err != nil {
		return nil, err
	}
	ix.snap = snap
	return snap, nil
}

func (ix *Index) loadSnapshot() (*snapshot, error) {
	n, dim, vectors, err := readVectorsFile(filepath.Join(ix.dir, vectorsFile))
	if os.IsNotExist(err) {
		return nil, ErrNotBuilt
	}
	if err != nil {
		return nil, fmt.Errorf("loadSnapshot: %w", err)
	}

	meta, err := readMetaFile(filepath.Join(ix.dir, metaFile))
	if os.IsNotExist(err) {
		return nil, ErrNotBuilt
	}
	if err != nil {
		return nil, fmt.Errorf("loadSnapshot: %w", err)
	}
	if len(meta) != n {
		return nil, fmt.Errorf("loadSnapshot: %d meta rows for %d vectors", len(meta), n)
	}
	return newSnapshot(n, dim, vectors, meta), nil
}

func (ix *Index) embedAll(ctx context.Context, texts []string) ([]float32, int, error) {
	flat := make([]float32, 0, len(texts))
	dim := 0
	for start := 0; start < len(texts); start += ix.batchSize {
		end := start + ix.batchSize
		if end > len(texts) {
			end = len(texts)
		}

		batch, err := ix.embedder.EmbedTexts(ctx, texts[start:end])
		if err != nil {
			return nil, 0, fmt.Errorf("embed rows %d..%d: %w", start, end-1, err)
		}
		if len(batch) != end-start {
			return nil, 0, fmt.Errorf("embedder returned %d vectors for %d texts", len(batch), end-start)
		}
		for _, vec := range batch {
			if dim == 0 {
				dim = len(vec)
			}
			if len(vec) != dim || dim == 0 {
				return nil, 0, fmt.Errorf("inconsistent embedding dimension %d, want %d", len(vec), dim)
			}
			flat = append(flat, vec...)
		}
	}
	return flat, dim, nil
}

// newSnapshot precomputes the row-normalized matrix. Zero-norm rows keep
// norm 1 so scoring stays defined.
func newSnapshot(n, dim int, vectors []float32, meta []domain.SpendRecord) *snapshot {
	normed := make([]float32, len(vectors))
	for i := 0; i < n; i++ {
		row := vectors[i*dim : (i+1)*dim]
		var norm float64
		for _, v := range row {
			norm += float64(v) * float64(v)
		}
		norm = math.Sqrt(norm)
		if norm == 0 {
			norm = 1
		}
		for j, v := range row {
			normed[i*dim+j] = float32(float64(v) / norm)
		}
	}
	return &snapshot{n: n, dim: dim, vectors: vectors, normed: normed, meta: meta}
}
