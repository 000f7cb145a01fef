package publish

import (
	_ "embed"
	"fmt"
	"strconv"
	"strings"
	"text/template"

	"trend-digest/internal/models"
)

const (
	TitlePrefix = "📺 Video Summary: "
	Footer      = "This summary was generated automatically. Timestamp links jump straight to that moment in the video."

	maxTitleRunes = 300
)

//go:embed post_body.tmpl
var postBodyTemplate string

var bodyTemplate = template.Must(template.New("post").Funcs(template.FuncMap{
	"clock": FormatTimestamp,
	"link":  TimestampURL,
}).Parse(postBodyTemplate))

type bodyData struct {
	TLDR       string
	Summary    string
	URL        string
	Timestamps []models.Timestamp
	Footer     string
}

// FormatTimestamp renders seconds as M:SS with unpadded minutes.
func FormatTimestamp(seconds int) string {
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}

// TimestampURL deep-links into the video at the given offset.
func TimestampURL(canonicalURL string, seconds int) string {
	return canonicalURL + "&t=" + strconv.Itoa(seconds) + "s"
}

// FormatTitle prefixes the video title, cut to the forum's title limit.
func FormatTitle(videoTitle string) string {
	title := []rune(TitlePrefix + videoTitle)
	if len(title) > maxTitleRunes {
		title = title[:maxTitleRunes]
	}
	return string(title)
}

func FormatBody(video *models.TrendingVideo, analysis *models.Analysis) (string, error) {
	var b strings.Builder
	err := bodyTemplate.Execute(&b, bodyData{
		TLDR:       analysis.TLDR,
		Summary:    analysis.Summary,
		URL:        video.URL(),
		Timestamps: analysis.Timestamps(),
		Footer:     Footer,
	})
	if err != nil {
		return "", fmt.Errorf("failed to render post body: %w", err)
	}
	return strings.TrimSpace(b.String()), nil
}
