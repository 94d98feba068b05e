package similarity

import (
	"context"
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/ppiankov/concordia/internal/cache"
	"github.com/ppiankov/concordia/internal/model"
	"github.com/ppiankov/concordia/internal/normalize"
	"github.com/ppiankov/concordia/internal/worker"
)

// Matrix is a symmetric n×n similarity matrix with a zero diagonal.
// It is never modified after Build returns.
type Matrix struct {
	n     int
	cells []float64
}

// NewMatrix returns an n×n matrix of zeros
func NewMatrix(n int) *Matrix {
	if n < 0 {
		n = 0
	}
	return &Matrix{n: n, cells: make([]float64, n*n)}
}

// FromRows builds a matrix from explicit rows. Rows must be square,
// symmetric and within [0, 100]; the diagonal is ignored and stored as 0.
func FromRows(rows [][]float64) (*Matrix, error) {
	for i, row := range rows {
		if len(row) != len(rows) {
			return nil, fmt.Errorf("row %d has %d cells, want %d: %w", i, len(row), len(rows), model.ErrInvalidInput)
		}
	}

	m := NewMatrix(len(rows))
	for i, row := range rows {
		for j := i + 1; j < len(row); j++ {
			v := row[j]
			if math.IsNaN(v) || v < 0 || v > MaxScore {
				return nil, fmt.Errorf("cell (%d,%d) = %v out of range: %w", i, j, v, model.ErrInvalidInput)
			}
			if rows[j][i] != v {
				return nil, fmt.Errorf("cells (%d,%d) and (%d,%d) differ: %w", i, j, j, i, model.ErrInvalidInput)
			}
			m.set(i, j, v)
		}
	}
	return m, nil
}

// Len returns the number of names the matrix covers
func (m *Matrix) Len() int {
	return m.n
}

// At returns the similarity of names i and j
func (m *Matrix) At(i, j int) float64 {
	return m.cells[i*m.n+j]
}

// Row returns a copy of row i
func (m *Matrix) Row(i int) []float64 {
	row := make([]float64, m.n)
	copy(row, m.cells[i*m.n:(i+1)*m.n])
	return row
}

// set writes cell (i,j) and its mirror
func (m *Matrix) set(i, j int, v float64) {
	m.cells[i*m.n+j] = v
	m.cells[j*m.n+i] = v
}

// Builder computes similarity matrices
type Builder struct {
	normalize normalize.Func
	score     ScoreFunc
	workers   int
	logger    *zap.Logger
}

// Option configures a Builder
type Option func(*Builder)

// WithNormalizer sets the function applied to every name before scoring
func WithNormalizer(fn normalize.Func) Option {
	return func(b *Builder) {
		if fn != nil {
			b.normalize = fn
		}
	}
}

// WithScorer replaces the pairwise scorer
func WithScorer(fn ScoreFunc) Option {
	return func(b *Builder) {
		if fn != nil {
			b.score = fn
		}
	}
}

// WithWorkers sets how many rows are scored concurrently
func WithWorkers(workers int) Option {
	return func(b *Builder) {
		b.workers = workers
	}
}

// WithLogger sets the logger used for build diagnostics
func WithLogger(logger *zap.Logger) Option {
	return func(b *Builder) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// NewBuilder creates a builder. By default names are normalized with the
// Dutch particle-stripping localizer and scored sequentially.
func NewBuilder(opts ...Option) *Builder {
	b := &Builder{
		normalize: normalize.Localized,
		score:     Score,
		workers:   1,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build computes the similarity matrix for names
func (b *Builder) Build(names []string) *Matrix {
	// a background context is never cancelled, so Build cannot fail
	m, _ := b.BuildContext(context.Background(), names)
	return m
}

// BuildContext computes the similarity matrix for names, scoring rows on
// a worker pool when more than one worker is configured.
func (b *Builder) BuildContext(ctx context.Context, names []string) (*Matrix, error) {
	n := len(names)
	m := NewMatrix(n)
	if n < 2 {
		return m, nil
	}

	normalized := make([]string, n)
	for i, name := range names {
		normalized[i] = b.normalize(name)
	}

	memo := cache.NewMemoryCache()
	score := memoized(b.score, memo)

	if b.workers <= 1 {
		for i := 0; i < n-1; i++ {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			scoreRow(m, normalized, i, score)
		}
	} else {
		jobs := make([]worker.Job, n-1)
		for i := range jobs {
			jobs[i] = &rowJob{row: i, names: normalized, matrix: m, score: score}
		}
		for _, res := range worker.Run(ctx, b.workers, jobs) {
			if res == nil {
				return nil, ctx.Err()
			}
			if err := res.GetError(); err != nil {
				return nil, err
			}
		}
	}

	b.logger.Debug("similarity matrix built",
		zap.Int("names", n),
		zap.Int("pairs", n*(n-1)/2),
		zap.Int("distinct_pairs", memo.Len()),
		zap.Int("workers", max(b.workers, 1)),
	)

	return m, nil
}

// memoized reuses scores of identical normalized pairs
func memoized(score ScoreFunc, c cache.Cache) ScoreFunc {
	return func(a, b string) float64 {
		key := cache.PairKey(a, b)
		if v, ok := c.Get(key); ok {
			return v
		}
		v := score(a, b)
		c.Set(key, v)
		return v
	}
}

// scoreRow fills cells (i,j) and (j,i) for every j > i
func scoreRow(m *Matrix, names []string, i int, score ScoreFunc) {
	for j := i + 1; j < len(names); j++ {
		m.set(i, j, score(names[i], names[j]))
	}
}

// rowJob scores one upper-triangle row. No two row jobs share a cell.
type rowJob struct {
	row    int
	names  []string
	matrix *Matrix
	score  ScoreFunc
}

type rowResult struct {
	err error
}

func (r *rowResult) GetError() error {
	return r.err
}

func (j *rowJob) Execute(ctx context.Context) worker.Result {
	if err := ctx.Err(); err != nil {
		return &rowResult{err: err}
	}
	scoreRow(j.matrix, j.names, j.row, j.score)
	return &rowResult{}
}
