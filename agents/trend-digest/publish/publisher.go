package publish

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"trend-digest/agents/trend-digest/forum"
	"trend-digest/internal/models"
	"trend-digest/shared/logging"
)

// Forum is the subset of the forum client the publisher drives.
type Forum interface {
	Session(ctx context.Context) (*forum.Session, error)
	SubmitPost(ctx context.Context, sess *forum.Session, req forum.PostRequest) (*forum.Submission, error)
	SubmitComment(ctx context.Context, sess *forum.Session, parentID, body string) error
}

// Post is the rendered content for one video.
type Post struct {
	Title string
	Body  string
	URL   string
}

func NewPost(video *models.TrendingVideo, analysis *models.Analysis) (*Post, error) {
	body, err := FormatBody(video, analysis)
	if err != nil {
		return nil, err
	}
	return &Post{
		Title: FormatTitle(video.Title),
		Body:  body,
		URL:   video.URL(),
	}, nil
}

type Publisher struct {
	forum     Forum
	subreddit string
	log       *zap.Logger
	now       func() time.Time
}

func NewPublisher(f Forum, subreddit string, log *zap.Logger) *Publisher {
	return &Publisher{
		forum:     f,
		subreddit: subreddit,
		log:       logging.OrNop(log),
		now:       time.Now,
	}
}

// Publish submits a link post for the video and then the body as its first
// comment. The returned record carries the terminal status:
//
//	session or submit fails -> FAILED, no post id
//	comment fails           -> PARTIAL, post id kept
//	both succeed            -> POSTED
//
// Nothing is retried.
func (p *Publisher) Publish(ctx context.Context, video *models.TrendingVideo, analysisID uuid.UUID, post *Post) *models.PublishRecord {
	record := &models.PublishRecord{
		ID:         uuid.New(),
		VideoID:    video.ID,
		AnalysisID: analysisID,
		Title:      post.Title,
		Body:       post.Body,
		URL:        post.URL,
		CreatedAt:  p.now().UTC(),
	}

	sess, err := p.forum.Session(ctx)
	if err != nil {
		return p.failed(record, video, err)
	}

	sub, err := p.forum.SubmitPost(ctx, sess, forum.PostRequest{
		Subreddit: p.subreddit,
		Title:     post.Title,
		URL:       post.URL,
	})
	if err != nil {
		return p.failed(record, video, err)
	}

	record.ForumPostID = models.Some(sub.PostID)
	record.Permalink = sub.Permalink
	record.PostedAt = models.Some(p.now().UTC())

	if err := p.forum.SubmitComment(ctx, sess, sub.PostID, post.Body); err != nil {
		p.log.Warn("post submitted but comment failed",
			zap.String("video", video.ExternalID),
			zap.String("post_id", sub.PostID),
			zap.Error(err),
		)
		record.Status = models.PublishStatusPartial
		record.ErrorMessage = models.Some(fmt.Sprintf("comment failed: %v", err))
		return record
	}

	p.log.Info("published video summary",
		zap.String("video", video.ExternalID),
		zap.String("post_id", sub.PostID),
	)
	record.Status = models.PublishStatusPosted
	return record
}

func (p *Publisher) failed(record *models.PublishRecord, video *models.TrendingVideo, err error) *models.PublishRecord {
	p.log.Warn("post submission failed",
		zap.String("video", video.ExternalID),
		zap.Error(err),
	)
	record.Status = models.PublishStatusFailed
	record.ErrorMessage = models.Some(err.Error())
	return record
}
