package youtube

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/youtube/v3"
)

type mockCatalog struct {
	mock.Mock
}

func (m *mockCatalog) MostPopular(ctx context.Context, regionCode string, maxResults int64) ([]*youtube.Video, error) {
	args := m.Called(ctx, regionCode, maxResults)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*youtube.Video), args.Error(1)
}

func videos(ids ...string) []*youtube.Video {
	out := make([]*youtube.Video, len(ids))
	for i, id := range ids {
		out[i] = &youtube.Video{Id: id}
	}
	return out
}

func newTestCollector(catalog Catalog, regions ...string) (*Collector, *[]time.Duration) {
	c := NewCollector(catalog, regions, 50, time.Second, nil)
	var slept []time.Duration
	c.sleep = func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}
	return c, &slept
}

func TestCollectorFirstRegionWins(t *testing.T) {
	catalog := &mockCatalog{}
	catalog.On("MostPopular", mock.Anything, "US", int64(50)).Return(videos("abc123", "us1"), nil)
	catalog.On("MostPopular", mock.Anything, "GB", int64(50)).Return(videos("gb1", "abc123"), nil)

	c, slept := newTestCollector(catalog, "US", "GB")
	items, failures := c.Collect(context.Background())

	assert.Empty(t, failures)
	require.Len(t, items, 3)
	assert.Equal(t, "abc123", items[0].Video.Id)
	assert.Equal(t, "US", items[0].Region)
	assert.Equal(t, "us1", items[1].Video.Id)
	assert.Equal(t, "gb1", items[2].Video.Id)
	assert.Equal(t, []time.Duration{time.Second}, *slept)
	catalog.AssertExpectations(t)
}

func TestCollectorRegionFailureContinues(t *testing.T) {
	catalog := &mockCatalog{}
	catalog.On("MostPopular", mock.Anything, "US", int64(50)).Return(nil, errors.New("quota exceeded"))
	catalog.On("MostPopular", mock.Anything, "GB", int64(50)).Return(videos("gb1"), nil)
	catalog.On("MostPopular", mock.Anything, "CA", int64(50)).Return(videos("ca1", "gb1"), nil)

	c, slept := newTestCollector(catalog, "US", "GB", "CA")
	items, failures := c.Collect(context.Background())

	require.Len(t, failures, 1)
	assert.Equal(t, "region US", failures[0].Key)
	require.Len(t, items, 2)
	assert.Equal(t, "GB", items[0].Region)
	assert.Equal(t, "ca1", items[1].Video.Id)
	assert.Len(t, *slept, 2)
}

func TestCollectorStopsOnCancelledPacing(t *testing.T) {
	catalog := &mockCatalog{}
	catalog.On("MostPopular", mock.Anything, "US", int64(50)).Return(videos("us1"), nil)

	c := NewCollector(catalog, []string{"US", "GB"}, 50, time.Hour, nil)
	ctx, cancel := context.WithCancel(context.Background())
	c.sleep = func(context.Context, time.Duration) error {
		cancel()
		return ctx.Err()
	}

	items, failures := c.Collect(ctx)
	assert.Len(t, items, 1)
	require.Len(t, failures, 1)
	assert.ErrorIs(t, failures[0].Err, context.Canceled)
	catalog.AssertNotCalled(t, "MostPopular", mock.Anything, "GB", mock.Anything)
}

func TestDedupe(t *testing.T) {
	in := []TrendingItem{
		{Video: &youtube.Video{Id: "a"}, Region: "US"},
		{Video: &youtube.Video{Id: "b"}, Region: "US"},
		{Video: &youtube.Video{Id: "a"}, Region: "GB"},
	}
	out := Dedupe(in)
	require.Len(t, out, 2)
	assert.Equal(t, "US", out[0].Region)
}

func TestSleepHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, Sleep(ctx, time.Hour), context.Canceled)
	assert.NoError(t, Sleep(context.Background(), time.Millisecond))
}
