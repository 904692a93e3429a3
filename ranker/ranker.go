// Package ranker orders stories by importance for downstream briefing
// assembly. Ranking is a pure function of the story set and the provided
// time, so identical inputs always produce identical order.
package ranker

import (
	"math"
	"sort"
	"time"

	"github.com/Dean-Rough/transferjuice-sub005/model"
)

const (
	// Recency half-life: a story loses half its recency weight every six
	// hours without a new report.
	recencyHalfLife = 6 * time.Hour

	weightConfidence    = 0.30
	weightRecency       = 0.30
	weightStage         = 0.25
	weightCorroboration = 0.15
)

// stageWeights put confirmed deals on top and idle rumours at the bottom.
var stageWeights = map[model.Stage]float64{
	model.StageUnknown: 0.0,
	model.StageRumour:  0.2,
	model.StageTalks:   0.4,
	model.StageAgreed:  0.7,
	model.StageMedical: 0.85,
	model.StageDone:    1.0,
}

// Score computes a single story's importance at the given time, in [0,1].
func Score(story *model.Story, now time.Time) float64 {
	age := now.Sub(story.LastUpdatedAt)
	if age < 0 {
		age = 0
	}
	recency := math.Exp2(-float64(age) / float64(recencyHalfLife))

	distinct := float64(len(story.DistinctSourceHandles()))
	corroboration := math.Min(1, distinct/4)

	return weightConfidence*story.Confidence +
		weightRecency*recency +
		weightStage*stageWeights[story.Stage] +
		weightCorroboration*corroboration
}

// Rank returns the stories in descending importance order. The input slice
// is not modified. Ties break on story id so the order is total.
func Rank(stories []*model.Story, now time.Time) []*model.Story {
	ranked := make([]*model.Story, len(stories))
	copy(ranked, stories)

	sort.SliceStable(ranked, func(i, j int) bool {
		scoreI, scoreJ := Score(ranked[i], now), Score(ranked[j], now)
		if scoreI == scoreJ {
			return ranked[i].Id < ranked[j].Id
		}
		return scoreI > scoreJ
	})
	return ranked
}
