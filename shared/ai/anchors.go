package ai

import (
	"math"
	"math/rand/v2"
	"sort"
)

// AnchorCount is the number of coverage anchors every analysis must address.
const AnchorCount = 15

const (
	anchorEdgeSeconds = 5
	maxJitterSeconds  = 20
	jitterFraction    = 0.1
)

// Planner spreads coverage anchors evenly across a video with a small jitter
// so consecutive analyses do not land on identical offsets.
type Planner struct {
	random func() float64
}

func NewPlanner() *Planner {
	return &Planner{random: rand.Float64}
}

// NewPlannerWithSource is used when anchor jitter must be reproducible.
func NewPlannerWithSource(random func() float64) *Planner {
	return &Planner{random: random}
}

// Anchors returns AnchorCount second offsets in ascending order, each clamped
// to [5, duration-5]. Short videos can collapse several anchors onto the same
// second; duplicates are kept.
func (p *Planner) Anchors(duration int) []int {
	interval := float64(duration) / float64(AnchorCount+1)
	jitterSpan := math.Min(interval*jitterFraction, maxJitterSeconds)

	anchors := make([]int, 0, AnchorCount)
	for i := 1; i <= AnchorCount; i++ {
		base := roundHalfUp(float64(i) * interval)
		jitter := roundHalfUp((p.random() - 0.5) * jitterSpan)
		anchors = append(anchors, clampAnchor(base+jitter, duration))
	}

	sort.Ints(anchors)
	return anchors
}

func clampAnchor(v, duration int) int {
	if hi := duration - anchorEdgeSeconds; v > hi {
		v = hi
	}
	if v < anchorEdgeSeconds {
		v = anchorEdgeSeconds
	}
	return v
}

func roundHalfUp(x float64) int {
	return int(math.Floor(x + 0.5))
}
