package trenddigest

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"trend-digest/agents/trend-digest/forum"
	"trend-digest/agents/trend-digest/publish"
	"trend-digest/agents/trend-digest/youtube"
	"trend-digest/internal/models"
	"trend-digest/shared/ai"
	"trend-digest/shared/config"
	"trend-digest/shared/logging"
	"trend-digest/shared/scheduler"
)

const (
	JobDiscover = "discover"
	JobProcess  = "process"
)

var errNotInitialized = errors.New("agent not initialized")

// TrendDigestAgent implements the scheduler.Agent interface
type TrendDigestAgent struct {
	config    *config.Config
	repo      Repository
	metrics   Recorder
	log       *zap.Logger
	catalog   youtube.Catalog
	generator ai.Generator
	forum     publish.Forum
	pipeline  *Pipeline
}

func NewTrendDigestAgent(cfg *config.Config, repo Repository, metrics Recorder, log *zap.Logger) *TrendDigestAgent {
	return &TrendDigestAgent{
		config:  cfg,
		repo:    repo,
		metrics: metrics,
		log:     logging.OrNop(log),
	}
}

func (a *TrendDigestAgent) Name() string {
	return "Trend Digest"
}

// Initialize builds the provider clients and the pipeline. Calling it again
// keeps what already exists.
func (a *TrendDigestAgent) Initialize(ctx context.Context) error {
	if a.pipeline != nil {
		return nil
	}
	a.log.Info("initializing agent", zap.String("agent", a.Name()))

	if a.catalog == nil {
		client, err := youtube.NewClient(ctx, a.config.YouTube.APIKey, a.log)
		if err != nil {
			return fmt.Errorf("failed to create YouTube client: %w", err)
		}
		a.catalog = client
	}

	if a.generator == nil {
		gen, err := ai.NewGeminiGenerator(ctx, a.config.AI.GeminiAPIKey, a.config.AI.Model)
		if err != nil {
			return fmt.Errorf("failed to create AI generator: %w", err)
		}
		a.generator = gen
	}

	if a.forum == nil {
		rc := a.config.Reddit
		a.forum = forum.NewClient(forum.Credentials{
			ClientID:     rc.ClientID,
			ClientSecret: rc.ClientSecret,
			Username:     rc.Username,
			Password:     rc.Password,
		}, rc.UserAgent, a.log)
	}

	yc := a.config.YouTube
	a.pipeline = NewPipeline(PipelineDeps{
		Repository: a.repo,
		Collector:  youtube.NewCollector(a.catalog, yc.Regions, yc.MaxResults, yc.RegionDelay, a.log),
		Planner:    ai.NewPlanner(),
		Analyzer:   ai.NewAnalyzer(a.generator, a.log),
		Publisher:  publish.NewPublisher(a.forum, a.config.Reddit.Subreddit, a.log),
		Metrics:    a.metrics,
		VideoDelay: a.config.Pipeline.VideoDelay,
	}, a.log)

	a.log.Info("agent initialized",
		zap.Strings("regions", yc.Regions),
		zap.String("subreddit", a.config.Reddit.Subreddit),
		zap.String("model", a.config.AI.Model),
	)
	return nil
}

func (a *TrendDigestAgent) Jobs() []scheduler.Job {
	return []scheduler.Job{
		{
			Name:     JobDiscover,
			Schedule: a.config.Schedule.Discover,
			Run: func(ctx context.Context) (scheduler.Report, error) {
				return a.Discover(ctx)
			},
		},
		{
			Name:     JobProcess,
			Schedule: a.config.Schedule.Process,
			Run: func(ctx context.Context) (scheduler.Report, error) {
				return a.ProcessAndPost(ctx, a.config.Pipeline.BatchSize)
			},
		},
	}
}

func (a *TrendDigestAgent) Discover(ctx context.Context) (models.DiscoverReport, error) {
	if a.pipeline == nil {
		return models.DiscoverReport{}, models.NewRunError(JobDiscover, errNotInitialized)
	}
	return a.pipeline.Discover(ctx)
}

func (a *TrendDigestAgent) ProcessAndPost(ctx context.Context, batchSize int) (models.ProcessReport, error) {
	if a.pipeline == nil {
		return models.ProcessReport{}, models.NewRunError(JobProcess, errNotInitialized)
	}
	return a.pipeline.ProcessAndPost(ctx, batchSize)
}
