package trenddigest

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"trend-digest/agents/trend-digest/publish"
	"trend-digest/agents/trend-digest/youtube"
	"trend-digest/internal/models"
	"trend-digest/shared/logging"
	"trend-digest/shared/storage"
)

// Repository is the persistence contract the pipeline runs against.
type Repository interface {
	storage.KnownIDLookup
	CreateVideo(ctx context.Context, video *models.TrendingVideo) error
	FindVideosMissingAnalysis(ctx context.Context, limit int) ([]*models.TrendingVideo, error)
	CreateAnalysis(ctx context.Context, analysis *models.Analysis) error
	CreatePublishRecord(ctx context.Context, record *models.PublishRecord) error
}

type Collector interface {
	Collect(ctx context.Context) ([]youtube.TrendingItem, []models.ItemResult)
}

type Planner interface {
	Anchors(durationSeconds int) []int
}

// Analyzer always yields an analysis, falling back when generation fails.
type Analyzer interface {
	AnalyzeVideo(ctx context.Context, video *models.TrendingVideo, anchors []int) *models.Analysis
}

// Publisher always yields a record carrying the terminal publish status.
type Publisher interface {
	Publish(ctx context.Context, video *models.TrendingVideo, analysisID uuid.UUID, post *publish.Post) *models.PublishRecord
}

// Recorder receives pipeline counters; see monitoring.Metrics.
type Recorder interface {
	VideoDiscovered()
	AnalysisCreated(fallback bool)
	Published(status string)
	UnitError(stage string)
}

type nopRecorder struct{}

func (nopRecorder) VideoDiscovered()     {}
func (nopRecorder) AnalysisCreated(bool) {}
func (nopRecorder) Published(string)     {}
func (nopRecorder) UnitError(string)     {}

// Pipeline sequences discovery and processing. It is not safe for
// overlapping use; callers serialise runs.
type Pipeline struct {
	repo       Repository
	collector  Collector
	planner    Planner
	analyzer   Analyzer
	publisher  Publisher
	metrics    Recorder
	videoDelay time.Duration
	log        *zap.Logger
	sleep      func(ctx context.Context, d time.Duration) error
}

type PipelineDeps struct {
	Repository Repository
	Collector  Collector
	Planner    Planner
	Analyzer   Analyzer
	Publisher  Publisher
	Metrics    Recorder
	VideoDelay time.Duration
}

func NewPipeline(deps PipelineDeps, log *zap.Logger) *Pipeline {
	var metrics Recorder = nopRecorder{}
	if deps.Metrics != nil {
		metrics = deps.Metrics
	}

	return &Pipeline{
		repo:       deps.Repository,
		collector:  deps.Collector,
		planner:    deps.Planner,
		analyzer:   deps.Analyzer,
		publisher:  deps.Publisher,
		metrics:    metrics,
		videoDelay: deps.VideoDelay,
		log:        logging.OrNop(log),
		sleep:      youtube.Sleep,
	}
}

// Discover collects trending items from every region and persists the ones
// not already stored. Known ids are snapshotted once before persisting.
func (p *Pipeline) Discover(ctx context.Context) (models.DiscoverReport, error) {
	report := models.DiscoverReport{Errors: models.BatchErrors{}}

	items, failures := p.collector.Collect(ctx)
	for _, f := range failures {
		report.Errors.Record(f)
		p.metrics.UnitError("discover_region")
	}

	ids := make([]string, len(items))
	for i, item := range items {
		ids[i] = item.Video.Id
	}

	tracker, err := storage.LoadVideoTracker(ctx, p.repo, ids)
	if err != nil {
		return report, models.NewRunError("discover", err)
	}

	skipped := 0
	for _, item := range items {
		if tracker.IsKnown(item.Video.Id) {
			skipped++
			continue
		}

		result := p.persistVideo(ctx, item)
		if !result.OK() {
			p.log.Warn("failed to persist video",
				zap.String("video", result.Key),
				zap.Error(result.Err),
			)
			report.Errors.Record(result)
			p.metrics.UnitError("discover_persist")
			continue
		}

		tracker.MarkKnown(item.Video.Id)
		report.Discovered++
		p.metrics.VideoDiscovered()
	}

	p.log.Info("discovery finished",
		zap.Int("collected", len(items)),
		zap.Int("already_known", skipped),
		zap.Int("discovered", report.Discovered),
		zap.Int("errors", len(report.Errors)),
	)
	return report, nil
}

func (p *Pipeline) persistVideo(ctx context.Context, item youtube.TrendingItem) models.ItemResult {
	video := youtube.ToTrendingVideo(item)
	video.ID = uuid.New()

	if err := p.repo.CreateVideo(ctx, video); err != nil {
		return models.ItemResult{Key: item.Video.Id, Err: err}
	}
	return models.ItemResult{Key: item.Video.Id}
}

// ProcessAndPost analyses and publishes up to batchSize stored videos that
// have no analysis yet, newest first. A failing video never stops the batch.
func (p *Pipeline) ProcessAndPost(ctx context.Context, batchSize int) (models.ProcessReport, error) {
	report := models.ProcessReport{Errors: models.BatchErrors{}}

	videos, err := p.repo.FindVideosMissingAnalysis(ctx, batchSize)
	if err != nil {
		return report, models.NewRunError("process", err)
	}

	for i, video := range videos {
		if i > 0 && p.videoDelay > 0 {
			if err := p.sleep(ctx, p.videoDelay); err != nil {
				report.Errors.Record(models.ItemResult{Key: video.ExternalID, Err: err})
				break
			}
		}

		outcome := p.processVideo(ctx, video)
		if outcome.analyzed {
			report.Analyzed++
		}
		if outcome.posted {
			report.Posted++
		}
		if !outcome.result.OK() {
			p.log.Warn("video processing incomplete",
				zap.String("video", video.ExternalID),
				zap.String("stage", outcome.stage),
				zap.Error(outcome.result.Err),
			)
			report.Errors.Record(outcome.result)
			p.metrics.UnitError(outcome.stage)
		}
	}

	p.log.Info("processing finished",
		zap.Int("selected", len(videos)),
		zap.Int("analyzed", report.Analyzed),
		zap.Int("posted", report.Posted),
		zap.Int("errors", len(report.Errors)),
	)
	return report, nil
}

type videoOutcome struct {
	analyzed bool
	posted   bool
	stage    string
	result   models.ItemResult
}

func (o *videoOutcome) fail(stage string, err error) videoOutcome {
	o.stage = stage
	o.result.Err = err
	return *o
}

// processVideo runs plan, analyse, persist, format, publish, persist for one video.
func (p *Pipeline) processVideo(ctx context.Context, video *models.TrendingVideo) (outcome videoOutcome) {
	outcome.result.Key = video.ExternalID

	defer func() {
		if r := recover(); r != nil {
			outcome.stage = "panic"
			outcome.result.Err = fmt.Errorf("panic: %v", r)
		}
	}()

	anchors := p.planner.Anchors(video.DurationSeconds)
	analysis := p.analyzer.AnalyzeVideo(ctx, video, anchors)

	if err := p.repo.CreateAnalysis(ctx, analysis); err != nil {
		return outcome.fail("persist_analysis", err)
	}
	outcome.analyzed = true
	p.metrics.AnalysisCreated(analysis.Fallback)

	post, err := publish.NewPost(video, analysis)
	if err != nil {
		return outcome.fail("format", err)
	}

	record := p.publisher.Publish(ctx, video, analysis.ID, post)
	outcome.posted = record.Status != models.PublishStatusFailed
	p.metrics.Published(string(record.Status))

	if err := p.repo.CreatePublishRecord(ctx, record); err != nil {
		return outcome.fail("persist_publish", err)
	}

	if record.Status != models.PublishStatusPosted {
		return outcome.fail("publish", fmt.Errorf("publish %s: %s", record.Status, record.ErrorMessage.Or("unknown error")))
	}
	return outcome
}
