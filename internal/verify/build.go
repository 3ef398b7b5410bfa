package verify

import (
	"go.uber.org/zap"

	"github.com/ppiankov/citecheck/internal/model"
	"github.com/ppiankov/citecheck/internal/worker"
)

// NewLimiterFromConfig builds the per-host limiter shared by every stage
func NewLimiterFromConfig(cfg model.RateLimitConfig) *worker.Limiter {
	limiter := worker.NewLimiter(cfg.MinDelay)
	for _, hd := range cfg.PerHost {
		limiter.SetHostDelay(hd.Host, hd.Delay)
	}
	return limiter
}

// NewFromConfig assembles the cascade in its fixed order: landmark, primary
// lookup, primary search, canonical sites, web search. Disabled sources are
// left out; the fallback is implicit.
func NewFromConfig(cfg *model.Config, store Cache, limiter *worker.Limiter, logger *zap.Logger) *Cascade {
	if logger == nil {
		logger = zap.NewNop()
	}
	if limiter == nil {
		limiter = NewLimiterFromConfig(cfg.RateLimit)
	}
	client := NewClient(cfg.HTTP, limiter)
	src := cfg.Sources

	var stages []Stage
	if src.Landmarks {
		stages = append(stages, NewLandmarkStage())
	}

	if src.CourtListener.Enabled {
		service := NewCourtListener(client, src.CourtListener.BaseURL, src.CourtListener.APIToken)
		stages = append(stages, NewLookupStage(service), NewSearchStage(service))
	}

	if src.WebSearch.Enabled {
		engine := NewSearchEngine(client, src.WebSearch.Endpoint)
		var confirm *PageConfirmer
		if src.WebSearch.ConfirmPages {
			confirm = NewPageConfirmer(client, cfg.HTTP.UserAgent, logger)
		}
		stages = append(stages,
			NewSiteStage(engine, src.WebSearch.Sites, confirm),
			NewWebStage(engine, src.WebSearch.Sites, confirm))
	}

	return NewCascade(stages, store, src.StageTimeout, logger)
}
