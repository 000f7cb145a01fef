package ai

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"trend-digest/internal/models"
)

const (
	descriptionLimit = 500
	tagLimit         = 15
	maxExtraMoments  = 5
	ellipsis         = "..."
	promptDateLayout = "2006-01-02"
)

var countPrinter = message.NewPrinter(language.English)

// buildVideoContext renders the metadata block the model reasons over.
func buildVideoContext(video *models.TrendingVideo, today time.Time) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Title: %s\n", video.Title)
	fmt.Fprintf(&b, "Channel: %s\n", video.ChannelTitle)
	fmt.Fprintf(&b, "Today's date: %s\n", today.Format(promptDateLayout))
	if !video.PublishedAt.IsZero() {
		fmt.Fprintf(&b, "Published: %s\n", video.PublishedAt.Format(promptDateLayout))
	}
	fmt.Fprintf(&b, "Duration: %s\n", formatClock(video.DurationSeconds))

	if desc := video.Description.Or(""); desc != "" {
		fmt.Fprintf(&b, "Description: %s\n", truncateString(desc, descriptionLimit))
	}

	if len(video.Tags) > 0 {
		tags := video.Tags
		suffix := ""
		if len(tags) > tagLimit {
			tags = tags[:tagLimit]
			suffix = ", " + ellipsis
		}
		fmt.Fprintf(&b, "Tags: %s%s\n", strings.Join(tags, ", "), suffix)
	}

	if video.CategoryID != "" {
		fmt.Fprintf(&b, "Category: %s\n", video.CategoryID)
	}
	if video.ViewCount.Valid {
		fmt.Fprintf(&b, "Views: %s\n", formatCount(video.ViewCount.Value))
	}
	if video.LikeCount.Valid {
		fmt.Fprintf(&b, "Likes: %s\n", formatCount(video.LikeCount.Value))
	}

	return b.String()
}

func buildAnalysisPrompt(video *models.TrendingVideo, anchors []int, today time.Time) string {
	anchorLines := make([]string, len(anchors))
	for i, s := range anchors {
		anchorLines[i] = fmt.Sprintf("- %d seconds (%s)", s, formatClock(s))
	}

	return fmt.Sprintf(`You are writing a community post that helps readers decide whether a trending YouTube video is worth their time.

VIDEO METADATA:
%s
MANDATORY COVERAGE POINTS:
%s

INSTRUCTIONS:
1. Write a "tldr": one or two sentences capturing the core of the video.
2. Write a "summary": two to four paragraphs describing what the video covers and why it is trending.
3. Produce "timestamps": one entry for EVERY coverage point above (%d entries), using exactly those seconds values.
4. You may add up to %d additional timestamps for notable moments, each within 0 and %d seconds.
5. Each timestamp description must describe what happens at that moment and must NOT contain time values such as "1:05" or "at 3 minutes".

Respond with JSON only, in this format:
{
  "tldr": "string",
  "summary": "string",
  "timestamps": [{"seconds": integer, "description": "string"}]
}`,
		buildVideoContext(video, today),
		strings.Join(anchorLines, "\n"),
		len(anchors),
		maxExtraMoments,
		video.DurationSeconds,
	)
}

func truncateString(s string, maxLength int) string {
	runes := []rune(s)
	if len(runes) <= maxLength {
		return s
	}
	return string(runes[:maxLength]) + ellipsis
}

func formatCount(n int64) string {
	return countPrinter.Sprintf("%d", n)
}

// formatClock renders seconds as M:SS.
func formatClock(seconds int) string {
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}
