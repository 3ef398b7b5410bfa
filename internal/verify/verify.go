// Package verify confirms extracted citations against authoritative case
// records through an ordered cascade of sources.
package verify

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/ppiankov/citecheck/internal/cache"
	"github.com/ppiankov/citecheck/internal/extract"
	"github.com/ppiankov/citecheck/internal/metrics"
	"github.com/ppiankov/citecheck/internal/model"
)

// ErrNoMatch is returned by a stage that answered but found no usable record
var ErrNoMatch = errors.New("no matching case record")

// DefaultStageTimeout bounds each stage when none is configured
const DefaultStageTimeout = 20 * time.Second

var tracer = otel.Tracer("github.com/ppiankov/citecheck/internal/verify")

// Query is what a stage is asked to confirm
type Query struct {
	Citation  string   // Citation text as it appears in the document
	CaseName  string   // Extracted case name, may be empty
	Parallels []string // Other citations of the same cluster, stored with the cache record
}

// Stage is one source in the cascade. Verify returns a verified result,
// ErrNoMatch when the source answered without a usable record, or any
// other error for transport and parse failures.
type Stage interface {
	Name() string
	Verify(ctx context.Context, q Query) (model.VerificationResult, error)
}

// Cache is the lookup and write-through store the cascade consults
type Cache interface {
	Get(ctx context.Context, key string) (model.CacheRecord, string, error)
	Set(ctx context.Context, key string, record model.CacheRecord) error
}

// Cascade runs stages in order and stops at the first verified result
type Cascade struct {
	stages       []Stage
	cache        Cache
	stageTimeout time.Duration
	logger       *zap.Logger
}

// NewCascade creates a cascade. cache may be nil.
func NewCascade(stages []Stage, c Cache, stageTimeout time.Duration, logger *zap.Logger) *Cascade {
	if logger == nil {
		logger = zap.NewNop()
	}
	if stageTimeout <= 0 {
		stageTimeout = DefaultStageTimeout
	}
	return &Cascade{
		stages:       stages,
		cache:        c,
		stageTimeout: stageTimeout,
		logger:       logger.Named("verify"),
	}
}

// Stages returns the stage names in cascade order
func (c *Cascade) Stages() []string {
	names := make([]string, len(c.stages))
	for i, s := range c.stages {
		names[i] = s.Name()
	}
	return names
}

// Verify always returns a result. Stage failures are logged and the next
// stage runs; once ctx is done no further stage starts and the fallback
// result is returned.
func (c *Cascade) Verify(ctx context.Context, q Query) model.VerificationResult {
	ctx, span := tracer.Start(ctx, "verify.Cascade.Verify")
	defer span.End()
	span.SetAttributes(attribute.String("citation", q.Citation))

	start := time.Now()
	defer func() {
		metrics.VerifyDuration.Observe(time.Since(start).Seconds())
	}()

	key := extract.NormalizeCitation(q.Citation)

	if result, ok := c.fromCache(ctx, key, q); ok {
		span.SetAttributes(attribute.String("source", result.Source), attribute.Bool("cached", true))
		return result
	}

	for _, stage := range c.stages {
		if ctx.Err() != nil {
			c.logger.Debug("verification cancelled",
				zap.String("citation", q.Citation),
				zap.String("stage", stage.Name()))
			break
		}

		result, err := c.runStage(ctx, stage, q)
		if err != nil {
			continue
		}

		c.store(ctx, key, q, result)
		span.SetAttributes(attribute.String("source", result.Source))
		return result
	}

	span.SetAttributes(attribute.String("source", model.SourceFallback))
	return model.FallbackResult()
}

func (c *Cascade) fromCache(ctx context.Context, key string, q Query) (model.VerificationResult, bool) {
	if c.cache == nil {
		return model.VerificationResult{}, false
	}
	record, tier, err := c.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, cache.ErrMiss) {
			c.logger.Warn("cache lookup failed", zap.String("citation", q.Citation), zap.Error(err))
		}
		return model.VerificationResult{}, false
	}
	if !record.Verification.Verified {
		return model.VerificationResult{}, false
	}
	c.logger.Debug("cache hit",
		zap.String("citation", q.Citation),
		zap.String("tier", tier))
	return record.Verification, true
}

func (c *Cascade) runStage(ctx context.Context, stage Stage, q Query) (model.VerificationResult, error) {
	stageCtx, cancel := context.WithTimeout(ctx, c.stageTimeout)
	defer cancel()

	stageCtx, span := tracer.Start(stageCtx, "verify.stage."+stage.Name())
	defer span.End()

	result, err := c.safeVerify(stageCtx, stage, q)
	if err == nil && !result.Verified {
		err = ErrNoMatch
	}

	switch {
	case err == nil:
		metrics.VerifyStageTotal.WithLabelValues(stage.Name(), metrics.OutcomeHit).Inc()
		c.logger.Debug("citation verified",
			zap.String("stage", stage.Name()),
			zap.String("citation", q.Citation),
			zap.String("case_name", result.CanonicalName))
		return result, nil

	case errors.Is(err, ErrNoMatch):
		metrics.VerifyStageTotal.WithLabelValues(stage.Name(), metrics.OutcomeMiss).Inc()
		c.logger.Debug("stage found no match",
			zap.String("stage", stage.Name()),
			zap.String("citation", q.Citation))

	default:
		metrics.VerifyStageTotal.WithLabelValues(stage.Name(), metrics.OutcomeError).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.logger.Warn("verification stage failed",
			zap.String("stage", stage.Name()),
			zap.String("citation", q.Citation),
			zap.Error(err))
	}
	return model.VerificationResult{}, err
}

// safeVerify turns a panicking stage into an error
func (c *Cascade) safeVerify(ctx context.Context, stage Stage, q Query) (result model.VerificationResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("stage %s panicked: %v", stage.Name(), r)
		}
	}()
	return stage.Verify(ctx, q)
}

func (c *Cascade) store(ctx context.Context, key string, q Query, result model.VerificationResult) {
	if c.cache == nil {
		return
	}
	record := model.CacheRecord{
		CaseName:          result.CanonicalName,
		ParallelCitations: q.Parallels,
		Verification:      result,
	}
	if y := result.CanonicalDate.Year(); y > 0 {
		record.Year = strconv.Itoa(y)
	}
	// Detached from cancellation; the stage has already answered
	if err := c.cache.Set(context.WithoutCancel(ctx), key, record); err != nil {
		c.logger.Warn("cache write failed", zap.String("citation", q.Citation), zap.Error(err))
	}
}
