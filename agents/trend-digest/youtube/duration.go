package youtube

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// FallbackDurationSeconds is used when a duration string cannot be parsed.
// Anchor planning and timestamp validation bound against it, so it must stay 300.
const FallbackDurationSeconds = 300

// ZeroDuration is stored for items whose contentDetails carry no duration.
const ZeroDuration = "PT0S"

var durationPattern = regexp.MustCompile(`^PT(?:(\d+)H)?(?:(\d+)M)?(?:(\d+)S)?$`)

// ParseDurationSeconds converts an ISO 8601 duration ("PT1H2M3S", "PT45S") to
// seconds. Any other shape yields FallbackDurationSeconds.
func ParseDurationSeconds(duration string) int {
	matches := durationPattern.FindStringSubmatch(strings.TrimSpace(duration))
	if matches == nil {
		return FallbackDurationSeconds
	}

	var totalSeconds int
	for i, unit := range []int{3600, 60, 1} {
		if matches[i+1] == "" {
			continue
		}
		n, err := strconv.Atoi(matches[i+1])
		if err != nil {
			return FallbackDurationSeconds
		}
		totalSeconds += n * unit
	}

	return totalSeconds
}

// FormatDuration renders seconds as an ISO 8601 duration, omitting zero parts.
func FormatDuration(seconds int) string {
	if seconds <= 0 {
		return ZeroDuration
	}

	h, m, s := seconds/3600, (seconds%3600)/60, seconds%60

	var b strings.Builder
	b.WriteString("PT")
	if h > 0 {
		fmt.Fprintf(&b, "%dH", h)
	}
	if m > 0 {
		fmt.Fprintf(&b, "%dM", m)
	}
	if s > 0 {
		fmt.Fprintf(&b, "%dS", s)
	}
	return b.String()
}
