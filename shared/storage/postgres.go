package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"trend-digest/internal/models"
)

type PoolConfig struct {
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		MaxConns:        5,
		MinConns:        1,
		MaxConnLifetime: time.Hour,
		MaxConnIdleTime: 30 * time.Minute,
	}
}

// NewPool opens a connection pool for databaseURL and verifies it with a ping.
func NewPool(ctx context.Context, databaseURL string, cfg PoolConfig) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse connection string: %w", err)
	}

	poolConfig.MaxConns = cfg.MaxConns
	poolConfig.MinConns = cfg.MinConns
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return pool, nil
}

// PostgresRepository persists videos, analyses and publish records.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func (r *PostgresRepository) ExistsByExternalID(ctx context.Context, externalID string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM trending_videos WHERE external_id = $1)`,
		externalID,
	).Scan(&exists)
	if err != nil {
		return false, WrapError(err, "exists by external id")
	}
	return exists, nil
}

// ExistingExternalIDs returns which of the given external ids are already stored.
func (r *PostgresRepository) ExistingExternalIDs(ctx context.Context, externalIDs []string) (map[string]bool, error) {
	result := make(map[string]bool, len(externalIDs))
	if len(externalIDs) == 0 {
		return result, nil
	}

	rows, err := r.pool.Query(ctx,
		`SELECT external_id FROM trending_videos WHERE external_id = ANY($1)`,
		externalIDs,
	)
	if err != nil {
		return nil, WrapError(err, "existing external ids")
	}

	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, WrapError(err, "existing external ids")
	}
	for _, id := range ids {
		result[id] = true
	}
	return result, nil
}

func (r *PostgresRepository) CreateVideo(ctx context.Context, video *models.TrendingVideo) error {
	query := `
		INSERT INTO trending_videos (
			id, external_id, title, description, channel_id, channel_title, published_at,
			duration_seconds, tags, category_id, view_count, like_count, comment_count, region
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING created_at
	`

	err := r.pool.QueryRow(ctx, query,
		video.ID,
		video.ExternalID,
		video.Title,
		video.Description.Ptr(),
		video.ChannelID,
		video.ChannelTitle,
		video.PublishedAt,
		video.DurationSeconds,
		nonNil(video.Tags),
		video.CategoryID,
		video.ViewCount.Ptr(),
		video.LikeCount.Ptr(),
		video.CommentCount.Ptr(),
		video.Region,
	).Scan(&video.CreatedAt)
	if err != nil {
		return WrapError(err, "create video")
	}
	return nil
}

// FindVideosMissingAnalysis returns up to limit videos without an analysis,
// most recently discovered first.
func (r *PostgresRepository) FindVideosMissingAnalysis(ctx context.Context, limit int) ([]*models.TrendingVideo, error) {
	query := `
		SELECT v.id, v.external_id, v.title, v.description, v.channel_id, v.channel_title,
		       v.published_at, v.duration_seconds, v.tags, v.category_id,
		       v.view_count, v.like_count, v.comment_count, v.region, v.created_at
		FROM trending_videos v
		LEFT JOIN analyses a ON a.video_id = v.id
		WHERE a.id IS NULL
		ORDER BY v.created_at DESC, v.published_at DESC
		LIMIT $1
	`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, WrapError(err, "find videos missing analysis")
	}
	defer rows.Close()

	var videos []*models.TrendingVideo
	for rows.Next() {
		video, err := scanVideo(rows)
		if err != nil {
			return nil, WrapError(err, "scan video")
		}
		videos = append(videos, video)
	}
	if err := rows.Err(); err != nil {
		return nil, WrapError(err, "iterate videos")
	}

	return videos, nil
}

func scanVideo(row pgx.Row) (*models.TrendingVideo, error) {
	var (
		video                  models.TrendingVideo
		description            *string
		views, likes, comments *int64
	)

	err := row.Scan(
		&video.ID,
		&video.ExternalID,
		&video.Title,
		&description,
		&video.ChannelID,
		&video.ChannelTitle,
		&video.PublishedAt,
		&video.DurationSeconds,
		&video.Tags,
		&video.CategoryID,
		&views,
		&likes,
		&comments,
		&video.Region,
		&video.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	video.Description = models.FromPtr(description)
	video.ViewCount = models.FromPtr(views)
	video.LikeCount = models.FromPtr(likes)
	video.CommentCount = models.FromPtr(comments)
	return &video, nil
}

func (r *PostgresRepository) CreateAnalysis(ctx context.Context, analysis *models.Analysis) error {
	query := `
		INSERT INTO analyses (id, video_id, tldr, summary, timestamps, timestamp_descriptions, fallback, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.pool.Exec(ctx, query,
		analysis.ID,
		analysis.VideoID,
		analysis.TLDR,
		analysis.Summary,
		nonNil(analysis.Seconds),
		nonNil(analysis.Descriptions),
		analysis.Fallback,
		analysis.CreatedAt,
	)
	if err != nil {
		return WrapError(err, "create analysis")
	}
	return nil
}

func (r *PostgresRepository) CreatePublishRecord(ctx context.Context, record *models.PublishRecord) error {
	query := `
		INSERT INTO publish_records (
			id, video_id, analysis_id, forum_post_id, permalink, title, body, url,
			status, error_message, posted_at, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	_, err := r.pool.Exec(ctx, query,
		record.ID,
		record.VideoID,
		record.AnalysisID,
		record.ForumPostID.Ptr(),
		record.Permalink.Ptr(),
		record.Title,
		record.Body,
		record.URL,
		string(record.Status),
		record.ErrorMessage.Ptr(),
		record.PostedAt.Ptr(),
		record.CreatedAt,
	)
	if err != nil {
		return WrapError(err, "create publish record")
	}
	return nil
}

// Stats aggregates counts for the dashboard.
func (r *PostgresRepository) Stats(ctx context.Context) (*models.DashboardStats, error) {
	stats := &models.DashboardStats{
		Publishes: map[models.PublishStatus]int64{
			models.PublishStatusPosted:  0,
			models.PublishStatusPartial: 0,
			models.PublishStatusFailed:  0,
		},
	}

	var lastPublish *time.Time
	err := r.pool.QueryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM trending_videos),
			(SELECT COUNT(*) FROM analyses),
			(SELECT MAX(posted_at) FROM publish_records)
	`).Scan(&stats.Videos, &stats.Analyses, &lastPublish)
	if err != nil {
		return nil, WrapError(err, "dashboard totals")
	}
	stats.LastPublishAt = models.FromPtr(lastPublish)

	rows, err := r.pool.Query(ctx, `SELECT status, COUNT(*) FROM publish_records GROUP BY status`)
	if err != nil {
		return nil, WrapError(err, "publish counts")
	}
	defer rows.Close()

	for rows.Next() {
		var (
			status string
			count  int64
		)
		if err := rows.Scan(&status, &count); err != nil {
			return nil, WrapError(err, "scan publish count")
		}
		stats.Publishes[models.PublishStatus(status)] = count
	}
	if err := rows.Err(); err != nil {
		return nil, WrapError(err, "iterate publish counts")
	}

	return stats, nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
