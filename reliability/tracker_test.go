package reliability

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

type recordingPersister struct {
	mu      sync.Mutex
	updates map[string]float64
}

func (p *recordingPersister) UpdateSourceReliability(handle string, score float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.updates == nil {
		p.updates = make(map[string]float64)
	}
	p.updates[handle] = score
	return nil
}

func TestScoreDefaultsForUnknownSource(t *testing.T) {
	tracker := NewTracker(nil)
	assert.Equal(t, DefaultScore, tracker.Score("nobody"))
}

func TestRecordOutcomeMovingAverage(t *testing.T) {
	tracker := NewTracker(nil)
	tracker.Prime("romano", 0.9)

	tracker.RecordOutcome("romano", true)
	assert.InDelta(t, 0.9*0.9+0.1, tracker.Score("romano"), 1e-9)

	tracker.RecordOutcome("romano", false)
	assert.InDelta(t, (0.9*0.9+0.1)*0.9, tracker.Score("romano"), 1e-9)
}

func TestSingleBadOutcomeDoesNotCraterScore(t *testing.T) {
	tracker := NewTracker(nil)
	tracker.Prime("ornstein", 0.93)

	tracker.RecordOutcome("ornstein", false)
	assert.Greater(t, tracker.Score("ornstein"), 0.8)
}

func TestRecordOutcomePersists(t *testing.T) {
	persister := &recordingPersister{}
	tracker := NewTracker(persister)
	tracker.Prime("romano", 0.9)

	tracker.RecordOutcome("romano", true)

	persister.mu.Lock()
	defer persister.mu.Unlock()
	assert.InDelta(t, 0.91, persister.updates["romano"], 1e-9)
}

func TestConcurrentOutcomes(t *testing.T) {
	tracker := NewTracker(nil)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tracker.RecordOutcome("busy", true)
		}()
	}
	wg.Wait()

	score := tracker.Score("busy")
	assert.Greater(t, score, DefaultScore)
	assert.LessOrEqual(t, score, 1.0)
}
