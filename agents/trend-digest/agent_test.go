package trenddigest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trend-digest/agents/trend-digest/forum"
	"trend-digest/agents/trend-digest/publish"
	"trend-digest/internal/models"
	"trend-digest/shared/config"
	"trend-digest/shared/scheduler"
)

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.YouTube.Regions = []string{"US"}
	cfg.YouTube.MaxResults = 50
	cfg.Reddit.Subreddit = "trendingdigest"
	cfg.Pipeline.BatchSize = 3
	cfg.Schedule.Discover = "0 0 */6 * * *"
	cfg.Schedule.Process = "0 30 * * * *"
	return cfg
}

type nopForum struct{}

func (nopForum) Session(ctx context.Context) (*forum.Session, error) { return &forum.Session{}, nil }

func (nopForum) SubmitPost(ctx context.Context, sess *forum.Session, req forum.PostRequest) (*forum.Submission, error) {
	return &forum.Submission{PostID: "t3_x"}, nil
}

func (nopForum) SubmitComment(ctx context.Context, sess *forum.Session, parentID, body string) error {
	return nil
}

var _ publish.Forum = nopForum{}
var _ scheduler.Agent = (*TrendDigestAgent)(nil)

func newTestAgent(repo Repository, catalog regionCatalog) *TrendDigestAgent {
	a := NewTrendDigestAgent(testConfig(), repo, nil, nil)
	a.catalog = catalog
	a.generator = failingGenerator{}
	a.forum = nopForum{}
	return a
}

func TestAgentName(t *testing.T) {
	agent := NewTrendDigestAgent(testConfig(), nil, nil, nil)
	assert.Equal(t, "Trend Digest", agent.Name())
}

func TestAgentJobs(t *testing.T) {
	agent := NewTrendDigestAgent(testConfig(), nil, nil, nil)
	jobs := agent.Jobs()

	require.Len(t, jobs, 2)
	assert.Equal(t, JobDiscover, jobs[0].Name)
	assert.Equal(t, "0 0 */6 * * *", jobs[0].Schedule)
	assert.Equal(t, JobProcess, jobs[1].Name)
	assert.Equal(t, "0 30 * * * *", jobs[1].Schedule)
}

func TestAgentRequiresInitialize(t *testing.T) {
	agent := NewTrendDigestAgent(testConfig(), newMemRepo(), nil, nil)

	_, err := agent.Discover(context.Background())
	var runErr *models.RunError
	require.ErrorAs(t, err, &runErr)
	assert.Equal(t, "discover", runErr.Op)

	_, err = agent.ProcessAndPost(context.Background(), 1)
	assert.Error(t, err)
}

func TestAgentJobsRunPipeline(t *testing.T) {
	repo := newMemRepo()
	agent := newTestAgent(repo, regionCatalog{"US": {ytVideo("a1"), ytVideo("a2"), ytVideo("a3"), ytVideo("a4")}})
	require.NoError(t, agent.Initialize(context.Background()))
	require.NoError(t, agent.Initialize(context.Background()))

	jobs := agent.Jobs()

	report, err := jobs[0].Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "discovered 4 new videos, 0 errors", report.GetSummary())

	report, err = jobs[1].Run(context.Background())
	require.NoError(t, err)
	processed := report.(models.ProcessReport)
	assert.Equal(t, 3, processed.Analyzed, "configured batch size")
	assert.Equal(t, 3, processed.Posted)
	assert.Len(t, repo.publishes, 3)
	assert.Equal(t, models.PublishStatusPosted, repo.publishes[0].Status)
}
