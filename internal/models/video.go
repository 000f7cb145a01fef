package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// TrendingVideo is a catalog item persisted once by discovery and never mutated afterwards.
type TrendingVideo struct {
	ID              uuid.UUID        `json:"id"`
	ExternalID      string           `json:"external_id"`
	Title           string           `json:"title"`
	Description     Optional[string] `json:"description"`
	ChannelID       string           `json:"channel_id"`
	ChannelTitle    string           `json:"channel_title"`
	PublishedAt     time.Time        `json:"published_at"`
	DurationSeconds int              `json:"duration_seconds"`
	Tags            []string         `json:"tags"`
	CategoryID      string           `json:"category_id"`
	ViewCount       Optional[int64]  `json:"view_count"`
	LikeCount       Optional[int64]  `json:"like_count"`
	CommentCount    Optional[int64]  `json:"comment_count"`
	Region          string           `json:"region"`
	CreatedAt       time.Time        `json:"created_at"`
}

// URL is the canonical watch URL. Timestamp links append "&t=<n>s" to it.
func (v *TrendingVideo) URL() string {
	return WatchURL(v.ExternalID)
}

func WatchURL(externalID string) string {
	return fmt.Sprintf("https://www.youtube.com/watch?v=%s", externalID)
}

// Timestamp is one highlighted moment of an analysis.
type Timestamp struct {
	Seconds     int    `json:"seconds"`
	Description string `json:"description"`
}

// Analysis is the generated write-up for a video. Seconds and Descriptions are
// index-aligned and Seconds is non-decreasing.
type Analysis struct {
	ID           uuid.UUID `json:"id"`
	VideoID      uuid.UUID `json:"video_id"`
	TLDR         string    `json:"tldr"`
	Summary      string    `json:"summary"`
	Seconds      []int     `json:"timestamps"`
	Descriptions []string  `json:"timestamp_descriptions"`
	Fallback     bool      `json:"fallback"`
	CreatedAt    time.Time `json:"created_at"`
}

// NewAnalysis splits ordered timestamps into the two aligned sequences.
func NewAnalysis(videoID uuid.UUID, tldr, summary string, timestamps []Timestamp, fallback bool) *Analysis {
	a := &Analysis{
		ID:           uuid.New(),
		VideoID:      videoID,
		TLDR:         tldr,
		Summary:      summary,
		Seconds:      make([]int, 0, len(timestamps)),
		Descriptions: make([]string, 0, len(timestamps)),
		Fallback:     fallback,
		CreatedAt:    time.Now().UTC(),
	}
	for _, ts := range timestamps {
		a.Seconds = append(a.Seconds, ts.Seconds)
		a.Descriptions = append(a.Descriptions, ts.Description)
	}
	return a
}

// Timestamps zips the aligned sequences back together.
func (a *Analysis) Timestamps() []Timestamp {
	n := min(len(a.Seconds), len(a.Descriptions))
	out := make([]Timestamp, n)
	for i := 0; i < n; i++ {
		out[i] = Timestamp{Seconds: a.Seconds[i], Description: a.Descriptions[i]}
	}
	return out
}
