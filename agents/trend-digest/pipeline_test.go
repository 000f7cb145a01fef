package trenddigest

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	yt "google.golang.org/api/youtube/v3"

	"trend-digest/agents/trend-digest/publish"
	"trend-digest/agents/trend-digest/youtube"
	"trend-digest/internal/models"
	"trend-digest/shared/ai"
)

// memRepo is an in-memory Repository with per-call failure injection.
type memRepo struct {
	videos      []*models.TrendingVideo
	analyses    map[uuid.UUID]*models.Analysis
	publishes   []*models.PublishRecord
	clock       time.Time
	existingErr error
	findErr     error
	videoErrs   map[string]error
	analysisErr map[uuid.UUID]error
	lookups     int
}

func newMemRepo() *memRepo {
	return &memRepo{
		analyses:    make(map[uuid.UUID]*models.Analysis),
		clock:       time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC),
		videoErrs:   make(map[string]error),
		analysisErr: make(map[uuid.UUID]error),
	}
}

func (r *memRepo) ExistingExternalIDs(ctx context.Context, ids []string) (map[string]bool, error) {
	r.lookups++
	if r.existingErr != nil {
		return nil, r.existingErr
	}
	out := make(map[string]bool)
	for _, id := range ids {
		if r.byExternalID(id) != nil {
			out[id] = true
		}
	}
	return out, nil
}

func (r *memRepo) byExternalID(id string) *models.TrendingVideo {
	for _, v := range r.videos {
		if v.ExternalID == id {
			return v
		}
	}
	return nil
}

func (r *memRepo) CreateVideo(ctx context.Context, video *models.TrendingVideo) error {
	if err := r.videoErrs[video.ExternalID]; err != nil {
		return err
	}
	if r.byExternalID(video.ExternalID) != nil {
		return fmt.Errorf("create video: duplicate %s", video.ExternalID)
	}
	r.clock = r.clock.Add(time.Second)
	video.CreatedAt = r.clock
	r.videos = append(r.videos, video)
	return nil
}

func (r *memRepo) FindVideosMissingAnalysis(ctx context.Context, limit int) ([]*models.TrendingVideo, error) {
	if r.findErr != nil {
		return nil, r.findErr
	}
	var out []*models.TrendingVideo
	for _, v := range r.videos {
		if _, ok := r.analyses[v.ID]; !ok {
			out = append(out, v)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memRepo) CreateAnalysis(ctx context.Context, analysis *models.Analysis) error {
	if err := r.analysisErr[analysis.VideoID]; err != nil {
		return err
	}
	r.analyses[analysis.VideoID] = analysis
	return nil
}

func (r *memRepo) CreatePublishRecord(ctx context.Context, record *models.PublishRecord) error {
	r.publishes = append(r.publishes, record)
	return nil
}

type regionCatalog map[string][]*yt.Video

func (c regionCatalog) MostPopular(ctx context.Context, region string, maxResults int64) ([]*yt.Video, error) {
	items, ok := c[region]
	if !ok {
		return nil, fmt.Errorf("quota exceeded")
	}
	return items, nil
}

func ytVideo(id string) *yt.Video {
	return &yt.Video{
		Id:             id,
		Snippet:        &yt.VideoSnippet{Title: "Title " + id, ChannelTitle: "Channel", PublishedAt: "2026-10-18T10:00:00Z"},
		ContentDetails: &yt.VideoContentDetails{Duration: "PT10M"},
	}
}

func newDiscoverPipeline(repo Repository, catalog youtube.Catalog, regions ...string) *Pipeline {
	return NewPipeline(PipelineDeps{
		Repository: repo,
		Collector:  youtube.NewCollector(catalog, regions, 50, 0, nil),
	}, nil)
}

func TestDiscoverIsIdempotent(t *testing.T) {
	repo := newMemRepo()
	catalog := regionCatalog{"US": {ytVideo("a1"), ytVideo("a2")}}
	p := newDiscoverPipeline(repo, catalog, "US")

	first, err := p.Discover(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, first.Discovered)
	assert.Empty(t, first.Errors)
	assert.NotNil(t, first.Errors)

	second, err := p.Discover(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, second.Discovered)
	assert.Len(t, repo.videos, 2)
}

func TestDiscoverFirstRegionWins(t *testing.T) {
	repo := newMemRepo()
	catalog := regionCatalog{
		"US": {ytVideo("abc123")},
		"GB": {ytVideo("gb1"), ytVideo("abc123")},
	}
	p := newDiscoverPipeline(repo, catalog, "US", "GB")

	report, err := p.Discover(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, report.Discovered)
	stored := repo.byExternalID("abc123")
	require.NotNil(t, stored)
	assert.Equal(t, "US", stored.Region)
	assert.Equal(t, 600, stored.DurationSeconds)
	assert.NotEqual(t, uuid.Nil, stored.ID)
	assert.Equal(t, 1, repo.lookups)
}

func TestDiscoverRegionFailureContinues(t *testing.T) {
	repo := newMemRepo()
	catalog := regionCatalog{"US": {ytVideo("us1")}, "CA": {ytVideo("ca1")}}
	p := newDiscoverPipeline(repo, catalog, "US", "GB", "CA")

	report, err := p.Discover(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, report.Discovered)
	require.Len(t, report.Errors, 1)
	assert.Contains(t, report.Errors[0], "region GB")
}

func TestDiscoverPersistFailureIsIsolated(t *testing.T) {
	repo := newMemRepo()
	repo.videoErrs["bad"] = errors.New("value too long")
	catalog := regionCatalog{"US": {ytVideo("bad"), ytVideo("good")}}
	p := newDiscoverPipeline(repo, catalog, "US")

	report, err := p.Discover(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Discovered)
	assert.Equal(t, models.BatchErrors{"bad: value too long"}, report.Errors)
	assert.NotNil(t, repo.byExternalID("good"))
}

func TestDiscoverSnapshotFailureAborts(t *testing.T) {
	repo := newMemRepo()
	repo.existingErr = errors.New("connection refused")
	p := newDiscoverPipeline(repo, regionCatalog{"US": {ytVideo("a1")}}, "US")

	_, err := p.Discover(context.Background())

	var runErr *models.RunError
	require.ErrorAs(t, err, &runErr)
	assert.Equal(t, "discover", runErr.Op)
	assert.Equal(t, "connection refused", runErr.Details)
	assert.Empty(t, repo.videos)
}

type failingGenerator struct{}

func (failingGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	return "", errors.New("provider unavailable")
}

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(ctx context.Context, video *models.TrendingVideo, analysisID uuid.UUID, post *publish.Post) *models.PublishRecord {
	args := m.Called(ctx, video.ExternalID)
	status := args.Get(0).(models.PublishStatus)

	record := &models.PublishRecord{
		ID:         uuid.New(),
		VideoID:    video.ID,
		AnalysisID: analysisID,
		Title:      post.Title,
		Body:       post.Body,
		URL:        post.URL,
		Status:     status,
		CreatedAt:  time.Now().UTC(),
	}
	if status != models.PublishStatusFailed {
		record.ForumPostID = models.Some("t3_" + video.ExternalID)
	}
	if status != models.PublishStatusPosted {
		record.ErrorMessage = models.Some("forum said no")
	}
	return record
}

type countingRecorder struct {
	discovered int
	fallbacks  int
	published  map[string]int
	stages     []string
}

func (c *countingRecorder) VideoDiscovered() { c.discovered++ }
func (c *countingRecorder) AnalysisCreated(fallback bool) {
	if fallback {
		c.fallbacks++
	}
}
func (c *countingRecorder) Published(status string) { c.published[status]++ }
func (c *countingRecorder) UnitError(stage string)  { c.stages = append(c.stages, stage) }

func seedVideos(t *testing.T, repo *memRepo, ids ...string) {
	t.Helper()
	for _, id := range ids {
		require.NoError(t, repo.CreateVideo(context.Background(), &models.TrendingVideo{
			ID:              uuid.New(),
			ExternalID:      id,
			Title:           "Title " + id,
			ChannelTitle:    "Channel",
			DurationSeconds: 900,
		}))
	}
}

func newProcessPipeline(repo Repository, publisher Publisher, metrics Recorder) *Pipeline {
	return NewPipeline(PipelineDeps{
		Repository: repo,
		Planner:    ai.NewPlanner(),
		Analyzer:   ai.NewAnalyzer(failingGenerator{}, nil),
		Publisher:  publisher,
		Metrics:    metrics,
	}, nil)
}

func TestProcessAndPostFallbackAnalysisIsStored(t *testing.T) {
	repo := newMemRepo()
	seedVideos(t, repo, "old", "new")
	pub := &mockPublisher{}
	pub.On("Publish", mock.Anything, mock.Anything).Return(models.PublishStatusPosted)
	metrics := &countingRecorder{published: map[string]int{}}

	report, err := newProcessPipeline(repo, pub, metrics).ProcessAndPost(context.Background(), 5)
	require.NoError(t, err)

	assert.Equal(t, 2, report.Analyzed)
	assert.Equal(t, 2, report.Posted)
	assert.Empty(t, report.Errors)
	require.Len(t, repo.analyses, 2)
	for _, v := range repo.videos {
		analysis := repo.analyses[v.ID]
		require.NotNil(t, analysis)
		assert.True(t, analysis.Fallback)
		assert.Contains(t, analysis.TLDR, v.Title)
	}
	require.Len(t, repo.publishes, 2)
	assert.Equal(t, repo.byExternalID("new").ID, repo.publishes[0].VideoID, "newest first")
	assert.Equal(t, 2, metrics.fallbacks)
	assert.Equal(t, 2, metrics.published["POSTED"])
}

func TestProcessAndPostBadVideoDoesNotAbortBatch(t *testing.T) {
	repo := newMemRepo()
	seedVideos(t, repo, "good", "broken")
	repo.analysisErr[repo.byExternalID("broken").ID] = errors.New("check constraint violation")
	pub := &mockPublisher{}
	pub.On("Publish", mock.Anything, "good").Return(models.PublishStatusPosted)
	metrics := &countingRecorder{published: map[string]int{}}

	report, err := newProcessPipeline(repo, pub, metrics).ProcessAndPost(context.Background(), 5)
	require.NoError(t, err)

	assert.Equal(t, 1, report.Analyzed)
	assert.Equal(t, 1, report.Posted)
	require.Len(t, report.Errors, 1)
	assert.Contains(t, report.Errors[0], "broken")
	assert.Equal(t, []string{"persist_analysis"}, metrics.stages)
	pub.AssertNotCalled(t, "Publish", mock.Anything, "broken")
}

func TestProcessAndPostPublishOutcomes(t *testing.T) {
	repo := newMemRepo()
	seedVideos(t, repo, "failed", "partial")
	pub := &mockPublisher{}
	pub.On("Publish", mock.Anything, "partial").Return(models.PublishStatusPartial)
	pub.On("Publish", mock.Anything, "failed").Return(models.PublishStatusFailed)

	report, err := newProcessPipeline(repo, pub, nil).ProcessAndPost(context.Background(), 5)
	require.NoError(t, err)

	assert.Equal(t, 2, report.Analyzed)
	assert.Equal(t, 1, report.Posted)
	assert.Len(t, report.Errors, 2)
	require.Len(t, repo.publishes, 2)
	assert.Equal(t, models.PublishStatusPartial, repo.publishes[0].Status)
	assert.Equal(t, models.PublishStatusFailed, repo.publishes[1].Status)
	assert.False(t, repo.publishes[1].ForumPostID.Valid)
}

func TestProcessAndPostRespectsBatchSize(t *testing.T) {
	repo := newMemRepo()
	seedVideos(t, repo, "v1", "v2", "v3")
	pub := &mockPublisher{}
	pub.On("Publish", mock.Anything, mock.Anything).Return(models.PublishStatusPosted)

	report, err := newProcessPipeline(repo, pub, nil).ProcessAndPost(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Analyzed)

	report, err = newProcessPipeline(repo, pub, nil).ProcessAndPost(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Analyzed)

	report, err = newProcessPipeline(repo, pub, nil).ProcessAndPost(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, 0, report.Analyzed)
}

func TestProcessAndPostFindFailureAborts(t *testing.T) {
	repo := newMemRepo()
	repo.findErr = errors.New("relation does not exist")

	_, err := newProcessPipeline(repo, &mockPublisher{}, nil).ProcessAndPost(context.Background(), 5)

	var runErr *models.RunError
	require.ErrorAs(t, err, &runErr)
	assert.Equal(t, "process", runErr.Op)
}

func TestProcessAndPostPacesVideos(t *testing.T) {
	repo := newMemRepo()
	seedVideos(t, repo, "v1", "v2", "v3")
	pub := &mockPublisher{}
	pub.On("Publish", mock.Anything, mock.Anything).Return(models.PublishStatusPosted)

	p := newProcessPipeline(repo, pub, nil)
	p.videoDelay = 2 * time.Second
	var slept []time.Duration
	p.sleep = func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		if len(slept) == 2 {
			return context.Canceled
		}
		return nil
	}

	report, err := p.ProcessAndPost(context.Background(), 5)
	require.NoError(t, err)

	assert.Equal(t, []time.Duration{2 * time.Second, 2 * time.Second}, slept)
	assert.Equal(t, 2, report.Analyzed)
	require.Len(t, report.Errors, 1)
	assert.Contains(t, report.Errors[0], "context canceled")
}

type panickingPlanner struct{}

func (panickingPlanner) Anchors(int) []int { panic("bad duration") }

func TestProcessAndPostRecoversPanics(t *testing.T) {
	repo := newMemRepo()
	seedVideos(t, repo, "v1")
	p := newProcessPipeline(repo, &mockPublisher{}, nil)
	p.planner = panickingPlanner{}

	report, err := p.ProcessAndPost(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, 0, report.Analyzed)
	require.Len(t, report.Errors, 1)
	assert.Contains(t, report.Errors[0], "panic: bad duration")
}
