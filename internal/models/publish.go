package models

import (
	"time"

	"github.com/google/uuid"
)

// PublishStatus is the terminal state reached by one publish attempt.
type PublishStatus string

const (
	// PublishStatusPosted means both the post and the comment were accepted.
	PublishStatusPosted PublishStatus = "POSTED"
	// PublishStatusPartial means the post was accepted and the comment failed.
	PublishStatusPartial PublishStatus = "PARTIAL"
	// PublishStatusFailed means the post itself was rejected.
	PublishStatusFailed PublishStatus = "FAILED"
)

// PublishRecord is written once per processed video and never revised.
type PublishRecord struct {
	ID           uuid.UUID           `json:"id"`
	VideoID      uuid.UUID           `json:"video_id"`
	AnalysisID   uuid.UUID           `json:"analysis_id"`
	ForumPostID  Optional[string]    `json:"forum_post_id"`
	Permalink    Optional[string]    `json:"permalink"`
	Title        string              `json:"title"`
	Body         string              `json:"body"`
	URL          string              `json:"url"`
	Status       PublishStatus       `json:"status"`
	ErrorMessage Optional[string]    `json:"error_message"`
	PostedAt     Optional[time.Time] `json:"posted_at"`
	CreatedAt    time.Time           `json:"created_at"`
}

// DashboardStats is the aggregate view served to the dashboard.
type DashboardStats struct {
	Videos        int64                   `json:"videos"`
	Analyses      int64                   `json:"analyses"`
	Publishes     map[PublishStatus]int64 `json:"publishes"`
	LastPublishAt Optional[time.Time]     `json:"last_publish_at"`
}
