// Package reliability maintains a rolling accuracy score per source.
//
// Scores are updated with an exponential moving average so that recent
// behavior dominates but a single bad report doesn't crater a long-trusted
// source. Only positive reinforcement is applied at merge time: agreement
// with the merged consensus nudges the score up, disagreement leaves it
// unchanged, since ground truth is not knowable online.
package reliability

import (
	"sync"

	Logger "github.com/Dean-Rough/transferjuice-sub005/utils/log"
)

const (
	// Smoothing factor of the moving average.
	DefaultAlpha = 0.1

	// Score assigned to a source we have never seen before.
	DefaultScore = 0.5
)

// Persister receives score updates so they survive restarts. The gorm
// repository implements this; tests use the in-memory one.
type Persister interface {
	UpdateSourceReliability(handle string, score float64) error
}

type Tracker struct {
	mu     sync.RWMutex
	alpha  float64
	scores map[string]float64

	persister Persister
}

func NewTracker(persister Persister) *Tracker {
	return &Tracker{
		alpha:     DefaultAlpha,
		scores:    make(map[string]float64),
		persister: persister,
	}
}

// Prime sets the current score for a source without applying the moving
// average. Used when loading seeded priors from the registry.
func (t *Tracker) Prime(handle string, score float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.scores[handle] = clamp(score)
}

// Score returns the rolling accuracy score for a source in [0,1].
func (t *Tracker) Score(handle string) float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if score, ok := t.scores[handle]; ok {
		return score
	}
	return DefaultScore
}

// RecordOutcome folds one merge outcome into the source's score:
// newScore = oldScore*(1-alpha) + outcome*alpha.
func (t *Tracker) RecordOutcome(handle string, agreedWithConsensus bool) {
	outcome := 0.0
	if agreedWithConsensus {
		outcome = 1.0
	}

	t.mu.Lock()
	old, ok := t.scores[handle]
	if !ok {
		old = DefaultScore
	}
	updated := clamp(old*(1-t.alpha) + outcome*t.alpha)
	t.scores[handle] = updated
	t.mu.Unlock()

	if t.persister != nil {
		if err := t.persister.UpdateSourceReliability(handle, updated); err != nil {
			Logger.Log.Errorln("fail to persist reliability for source", handle, ":", err)
		}
	}
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
