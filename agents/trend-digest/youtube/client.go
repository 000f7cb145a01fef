package youtube

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"

	"trend-digest/internal/models"
	"trend-digest/shared/logging"
)

// videoParts are the resource parts discovery reads from the catalog.
var videoParts = []string{"snippet", "contentDetails", "statistics"}

// TrendingItem is a catalog video tagged with the region it was fetched for.
type TrendingItem struct {
	Video  *youtube.Video
	Region string
}

// Client wraps the YouTube Data API v3 "mostPopular" chart.
type Client struct {
	service *youtube.Service
	log     *zap.Logger
}

func NewClient(ctx context.Context, apiKey string, log *zap.Logger, opts ...option.ClientOption) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("YouTube API key is required")
	}

	opts = append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)
	service, err := youtube.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create YouTube service: %w", err)
	}

	return &Client{service: service, log: logging.OrNop(log)}, nil
}

// MostPopular returns the trending chart for one region, capped at maxResults.
func (c *Client) MostPopular(ctx context.Context, regionCode string, maxResults int64) ([]*youtube.Video, error) {
	call := c.service.Videos.List(videoParts).
		Chart("mostPopular").
		RegionCode(regionCode).
		MaxResults(maxResults).
		Context(ctx)

	resp, err := call.Do()
	if err != nil {
		return nil, fmt.Errorf("failed to list most popular videos for %s: %w", regionCode, err)
	}

	c.log.Debug("fetched trending chart",
		zap.String("region", regionCode),
		zap.Int("items", len(resp.Items)),
	)

	return resp.Items, nil
}

// ToTrendingVideo maps a catalog item to the persisted record. Missing
// durations become the zero-duration sentinel and absent sections become
// empty optionals.
func ToTrendingVideo(item TrendingItem) *models.TrendingVideo {
	v := item.Video
	video := &models.TrendingVideo{
		ExternalID:      v.Id,
		Description:     models.None[string](),
		DurationSeconds: ParseDurationSeconds(ZeroDuration),
		Tags:            []string{},
		ViewCount:       models.None[int64](),
		LikeCount:       models.None[int64](),
		CommentCount:    models.None[int64](),
		Region:          item.Region,
	}

	if s := v.Snippet; s != nil {
		video.Title = s.Title
		if s.Description != "" {
			video.Description = models.Some(s.Description)
		}
		video.ChannelID = s.ChannelId
		video.ChannelTitle = s.ChannelTitle
		video.CategoryID = s.CategoryId
		if s.Tags != nil {
			video.Tags = s.Tags
		}
		if publishedAt, err := time.Parse(time.RFC3339, s.PublishedAt); err == nil {
			video.PublishedAt = publishedAt.UTC()
		}
	}

	if cd := v.ContentDetails; cd != nil && strings.TrimSpace(cd.Duration) != "" {
		video.DurationSeconds = ParseDurationSeconds(cd.Duration)
	}

	if st := v.Statistics; st != nil {
		video.ViewCount = models.Some(clampCount(st.ViewCount))
		video.LikeCount = models.Some(clampCount(st.LikeCount))
		video.CommentCount = models.Some(clampCount(st.CommentCount))
	}

	return video
}

func clampCount(n uint64) int64 {
	if n > math.MaxInt64 {
		return math.MaxInt64
	}
	return int64(n)
}
