// Package pipeline runs one document through extraction, association,
// clustering and verification, and renders the resulting report.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ppiankov/citecheck/internal/associate"
	"github.com/ppiankov/citecheck/internal/cluster"
	"github.com/ppiankov/citecheck/internal/extract"
	"github.com/ppiankov/citecheck/internal/logging"
	"github.com/ppiankov/citecheck/internal/metrics"
	"github.com/ppiankov/citecheck/internal/model"
	"github.com/ppiankov/citecheck/internal/verify"
	"github.com/ppiankov/citecheck/internal/worker"
)

// DefaultVerifyWorkers bounds concurrent cascade runs per document
const DefaultVerifyWorkers = 4

// maxDocumentBytes caps how much of one document is read
const maxDocumentBytes = 32 << 20

// Verifier resolves one citation to a verification result. It never fails;
// an unresolved citation comes back as the fallback result.
type Verifier interface {
	Verify(ctx context.Context, q verify.Query) model.VerificationResult
}

// Pipeline orchestrates the complete citation check of a document
type Pipeline struct {
	extractor  *extract.Extractor
	associator *associate.Engine
	clusters   *cluster.Builder
	verifier   Verifier // nil skips verification
	workers    int
	logger     *zap.Logger
}

// New creates a pipeline over the given verifier
func New(verifier Verifier, workers int, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	if workers <= 0 {
		workers = DefaultVerifyWorkers
	}
	return &Pipeline{
		extractor:  extract.NewExtractor(nil, logger),
		associator: associate.NewEngine(logger),
		clusters:   cluster.NewBuilder(),
		verifier:   verifier,
		workers:    workers,
		logger:     logger.Named("pipeline"),
	}
}

// NewPipeline creates a pipeline with the cascade described by cfg. store
// may be nil to run without a cache.
func NewPipeline(cfg *model.Config, store verify.Cache, logger *zap.Logger) *Pipeline {
	cascade := verify.NewFromConfig(cfg, store, nil, logger)
	return New(cascade, cfg.Concurrency.VerifyWorkers, logger)
}

// ProcessFile reads the document at path ("-" for stdin) and processes it
func (p *Pipeline) ProcessFile(ctx context.Context, path string) (*model.Report, error) {
	var r io.Reader
	if path == "-" {
		r = os.Stdin
	} else {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open document: %w", err)
		}
		defer func() { _ = f.Close() }()
		r = f
	}

	data, err := io.ReadAll(io.LimitReader(r, maxDocumentBytes))
	if err != nil {
		return nil, fmt.Errorf("read document: %w", err)
	}
	return p.Process(ctx, path, string(data)), nil
}

// Process runs extract, associate, cluster and verify over text. It never
// fails: the worst outcome is a report with zero or unverified citations.
func (p *Pipeline) Process(ctx context.Context, source, text string) *model.Report {
	runID := uuid.NewString()
	logger := p.logger.With(zap.String("run_id", runID), zap.String("source", source))
	ctx = logging.ContextWithLogger(ctx, logger)
	start := time.Now()

	// 1. Extract
	citations := p.extractor.Extract(text)
	metrics.CitationsExtractedTotal.Add(float64(len(citations)))

	// 2. Associate names and dates
	p.associator.Apply(text, citations)

	// 3. Cluster parallel citations
	clusters := p.clusters.BuildInText(text, citations)
	cluster.Link(clusters, citations)

	logger.Debug("document analysed",
		zap.Int("citations", len(citations)),
		zap.Int("clusters", len(clusters)))

	// 4. Verify
	if p.verifier != nil && len(citations) > 0 {
		p.verifyAll(ctx, citations, clusters)
		cluster.Refresh(clusters, citations)
	}

	report := &model.Report{
		RunID:       runID,
		Source:      source,
		ProcessedAt: time.Now().UTC(),
		Citations:   citations,
		Clusters:    clusters,
		Summary:     model.Summarize(citations, clusters),
	}
	if report.Citations == nil {
		report.Citations = []*model.Citation{}
	}
	if report.Clusters == nil {
		report.Clusters = []*model.Cluster{}
	}

	logger.Info("document processed",
		zap.Int("citations", report.Summary.TotalCitations),
		zap.Int("verified", report.Summary.Verified),
		zap.Int("clusters", report.Summary.Clusters),
		zap.Duration("elapsed", time.Since(start)))
	return report
}

// verifyAll runs the cascade for every citation on the worker pool and
// applies the results. Citations the pool never reached keep the fallback.
func (p *Pipeline) verifyAll(ctx context.Context, citations []*model.Citation, clusters []*model.Cluster) {
	for _, c := range citations {
		c.ApplyVerification(model.FallbackResult())
	}

	queries := buildQueries(citations, clusters)

	pool := worker.NewPool(ctx, p.workers)
	pool.Start()
	for i, c := range citations {
		job := &verifyJob{citation: c, query: queries[i], verifier: p.verifier}
		if err := pool.Submit(job); err != nil {
			logging.FromContext(ctx).Warn("verification stopped",
				zap.Int("pending", len(citations)-i),
				zap.Error(err))
			break
		}
	}

	for _, r := range pool.Wait() {
		vr := r.(*verifyResult)
		vr.citation.ApplyVerification(vr.result)
	}
}

// buildQueries pairs each citation with its name and the other members of
// its cluster. A citation without a name of its own borrows the cluster's.
func buildQueries(citations []*model.Citation, clusters []*model.Cluster) []verify.Query {
	byID := make(map[string]*model.Citation, len(citations))
	for _, c := range citations {
		byID[c.ID] = c
	}
	byCluster := make(map[string]*model.Cluster, len(clusters))
	for _, cl := range clusters {
		byCluster[cl.ID] = cl
	}

	queries := make([]verify.Query, len(citations))
	for i, c := range citations {
		q := verify.Query{Citation: c.Text, CaseName: c.ExtractedCaseName}
		if cl, ok := byCluster[c.ParallelOf]; ok {
			for _, id := range cl.Members {
				if id == c.ID {
					continue
				}
				if m, ok := byID[id]; ok {
					q.Parallels = append(q.Parallels, m.Text)
				}
			}
			if q.CaseName == "" {
				q.CaseName = cl.CanonicalName
			}
		}
		queries[i] = q
	}
	return queries
}

type verifyJob struct {
	citation *model.Citation
	query    verify.Query
	verifier Verifier
}

// Execute runs the cascade for one citation
func (j *verifyJob) Execute(ctx context.Context) worker.Result {
	return &verifyResult{
		citation: j.citation,
		result:   j.verifier.Verify(ctx, j.query),
	}
}

type verifyResult struct {
	citation *model.Citation
	result   model.VerificationResult
}

// GetError always returns nil; cascade failures are folded into the result
func (r *verifyResult) GetError() error {
	return nil
}
