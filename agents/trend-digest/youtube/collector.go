package youtube

import (
	"context"
	"time"

	"go.uber.org/zap"
	"google.golang.org/api/youtube/v3"

	"trend-digest/internal/models"
	"trend-digest/shared/logging"
)

// Catalog is the trending feed consumed by discovery.
type Catalog interface {
	MostPopular(ctx context.Context, regionCode string, maxResults int64) ([]*youtube.Video, error)
}

// Collector queries regions one at a time and merges their charts.
type Collector struct {
	catalog    Catalog
	regions    []string
	maxResults int64
	delay      time.Duration
	log        *zap.Logger
	sleep      func(ctx context.Context, d time.Duration) error
}

func NewCollector(catalog Catalog, regions []string, maxResults int64, delay time.Duration, log *zap.Logger) *Collector {
	return &Collector{
		catalog:    catalog,
		regions:    regions,
		maxResults: maxResults,
		delay:      delay,
		log:        logging.OrNop(log),
		sleep:      Sleep,
	}
}

// Collect returns the merged, id-deduplicated trending items and one result
// per failed region. The first occurrence in region order wins.
func (c *Collector) Collect(ctx context.Context) ([]TrendingItem, []models.ItemResult) {
	var (
		all      []TrendingItem
		failures []models.ItemResult
	)

	for i, region := range c.regions {
		if i > 0 && c.delay > 0 {
			if err := c.sleep(ctx, c.delay); err != nil {
				failures = append(failures, models.ItemResult{Key: "region " + region, Err: err})
				break
			}
		}

		videos, err := c.catalog.MostPopular(ctx, region, c.maxResults)
		if err != nil {
			c.log.Warn("region fetch failed, continuing",
				zap.String("region", region),
				zap.Error(err),
			)
			failures = append(failures, models.ItemResult{Key: "region " + region, Err: err})
			continue
		}

		for _, v := range videos {
			if v == nil || v.Id == "" {
				continue
			}
			all = append(all, TrendingItem{Video: v, Region: region})
		}
		c.log.Info("collected trending region",
			zap.String("region", region),
			zap.Int("items", len(videos)),
		)
	}

	return Dedupe(all), failures
}

// Dedupe keeps the first item seen for each catalog id.
func Dedupe(items []TrendingItem) []TrendingItem {
	seen := make(map[string]struct{}, len(items))
	out := make([]TrendingItem, 0, len(items))
	for _, item := range items {
		if _, ok := seen[item.Video.Id]; ok {
			continue
		}
		seen[item.Video.Id] = struct{}{}
		out = append(out, item)
	}
	return out
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
