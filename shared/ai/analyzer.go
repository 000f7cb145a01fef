package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"trend-digest/internal/models"
	"trend-digest/shared/logging"
)

// Generator is a prompt-in, JSON-text-out completion backend.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// FallbackTimestamps are used whenever generation fails or its output is unusable.
var FallbackTimestamps = []models.Timestamp{
	{Seconds: 60, Description: "Introduction and overview"},
	{Seconds: 180, Description: "Main discussion points"},
	{Seconds: 300, Description: "Conclusion and key takeaways"},
}

// leadingClock strips a time prefix such as "1:05 -" or "[12:30]" from descriptions.
var leadingClock = regexp.MustCompile(`^\[?\(?\d{1,2}:\d{2}(?::\d{2})?\)?\]?\s*[-–—:|]?\s*`)

type Analyzer struct {
	generator Generator
	log       *zap.Logger
	now       func() time.Time
}

func NewAnalyzer(generator Generator, log *zap.Logger) *Analyzer {
	return &Analyzer{
		generator: generator,
		log:       logging.OrNop(log),
		now:       time.Now,
	}
}

// AnalyzeVideo asks the generator for a write-up covering the given anchors.
// It never fails: provider errors and malformed output yield the fallback analysis.
func (a *Analyzer) AnalyzeVideo(ctx context.Context, video *models.TrendingVideo, anchors []int) *models.Analysis {
	prompt := buildAnalysisPrompt(video, anchors, a.now().UTC())

	responseText, err := a.generator.Generate(ctx, prompt)
	if err != nil {
		a.log.Warn("generation failed, using fallback analysis",
			zap.String("video", video.ExternalID),
			zap.Error(err),
		)
		return FallbackAnalysis(video)
	}

	if strings.TrimSpace(responseText) == "" {
		a.log.Warn("empty generation response, using fallback analysis",
			zap.String("video", video.ExternalID),
		)
		return FallbackAnalysis(video)
	}

	analysis, err := a.parseAnalysisResponse(responseText, video)
	if err != nil {
		a.log.Warn("unusable generation response, using fallback analysis",
			zap.String("video", video.ExternalID),
			zap.Error(err),
		)
		return FallbackAnalysis(video)
	}

	return analysis
}

func (a *Analyzer) parseAnalysisResponse(response string, video *models.TrendingVideo) (*models.Analysis, error) {
	startIdx := strings.Index(response, "{")
	endIdx := strings.LastIndex(response, "}")
	if startIdx == -1 || endIdx < startIdx {
		return nil, fmt.Errorf("no JSON object in response")
	}

	var result map[string]any
	if err := json.Unmarshal([]byte(response[startIdx:endIdx+1]), &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	summary, ok := nonEmptyString(result["summary"])
	if !ok {
		return nil, fmt.Errorf("summary is missing or empty")
	}
	tldr, ok := nonEmptyString(result["tldr"])
	if !ok {
		return nil, fmt.Errorf("tldr is missing or empty")
	}
	rawTimestamps, ok := result["timestamps"].([]any)
	if !ok {
		return nil, fmt.Errorf("timestamps is missing or not an array")
	}

	timestamps := a.validateTimestamps(rawTimestamps, video)
	return models.NewAnalysis(video.ID, tldr, summary, timestamps, false), nil
}

// validateTimestamps keeps entries with a numeric seconds value inside
// [0, duration] and a textual description, ordered by seconds.
func (a *Analyzer) validateTimestamps(raw []any, video *models.TrendingVideo) []models.Timestamp {
	duration := float64(video.DurationSeconds)
	out := make([]models.Timestamp, 0, len(raw))

	for i, entry := range raw {
		obj, ok := entry.(map[string]any)
		if !ok {
			a.dropTimestamp(video, i, "entry is not an object")
			continue
		}
		seconds, ok := obj["seconds"].(float64)
		if !ok || math.IsNaN(seconds) {
			a.dropTimestamp(video, i, "seconds is not numeric")
			continue
		}
		description, ok := obj["description"].(string)
		if !ok {
			a.dropTimestamp(video, i, "description is not text")
			continue
		}
		if seconds < 0 || seconds > duration {
			a.dropTimestamp(video, i, fmt.Sprintf("seconds %v outside [0, %d]", seconds, video.DurationSeconds))
			continue
		}
		description = sanitizeDescription(description)
		if description == "" {
			a.dropTimestamp(video, i, "description is empty")
			continue
		}

		out = append(out, models.Timestamp{
			Seconds:     int(math.Round(seconds)),
			Description: description,
		})
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Seconds < out[j].Seconds })
	return out
}

func (a *Analyzer) dropTimestamp(video *models.TrendingVideo, index int, reason string) {
	a.log.Debug("dropping generated timestamp",
		zap.String("video", video.ExternalID),
		zap.Int("index", index),
		zap.String("reason", reason),
	)
}

func sanitizeDescription(s string) string {
	return strings.TrimSpace(leadingClock.ReplaceAllString(strings.TrimSpace(s), ""))
}

func nonEmptyString(v any) (string, bool) {
	s, ok := v.(string)
	if !ok {
		return "", false
	}
	s = strings.TrimSpace(s)
	return s, s != ""
}

// FallbackAnalysis is the fixed placeholder analysis for a video.
func FallbackAnalysis(video *models.TrendingVideo) *models.Analysis {
	tldr := fmt.Sprintf("\"%s\" by %s is trending right now.", video.Title, video.ChannelTitle)
	summary := fmt.Sprintf("\"%s\" from %s is currently one of the most popular videos on YouTube. "+
		"An automated breakdown could not be produced for this upload, so the highlights below are "+
		"general markers for the opening, the core of the video and its wrap-up. "+
		"Watch the full video for the complete context.", video.Title, video.ChannelTitle)

	return models.NewAnalysis(video.ID, tldr, summary, FallbackTimestamps, true)
}
