package acquisition

import (
	"sync"
	"time"
)

// StateSnapshot is the part of a source's acquisition state worth keeping
// across restarts: which strategy last worked and the newest external id we
// have already ingested. Losing it is harmless, persisting it improves
// continuity.
type StateSnapshot struct {
	ActiveStrategy     StrategyKind `json:"active_strategy"`
	LastSeenExternalId string       `json:"last_seen_external_id"`
	LastSuccess        time.Time    `json:"last_success"`
}

// StateStore persists acquisition state snapshots per source handle. The
// redis implementation lives in the storage package.
type StateStore interface {
	LoadState(handle string) (StateSnapshot, bool, error)
	SaveState(handle string, snapshot StateSnapshot) error
}

// strategyState tracks one strategy's health for one source.
type strategyState struct {
	consecutiveFailures int
	disabledUntil       time.Time
}

func (s *strategyState) disabled(now time.Time) bool {
	if s.disabledUntil.IsZero() {
		return false
	}
	if now.Before(s.disabledUntil) {
		return true
	}
	// Cool-down expired, the strategy gets a fresh start.
	s.disabledUntil = time.Time{}
	s.consecutiveFailures = 0
	return false
}

func (s *strategyState) recordFailure(now time.Time, threshold int, coolDown time.Duration) {
	s.consecutiveFailures++
	if s.consecutiveFailures >= threshold {
		s.disabledUntil = now.Add(coolDown)
	}
}

func (s *strategyState) recordSuccess() {
	s.consecutiveFailures = 0
	s.disabledUntil = time.Time{}
}

// sourceState is the per-source acquisition state. Mutated only by the
// acquisition client, under the per-source mutex; no cross-source locking.
type sourceState struct {
	mu sync.Mutex

	active             StrategyKind
	lastSuccess        time.Time
	lastSeenExternalId string

	primary   strategyState
	secondary strategyState
	feed      strategyState
}

func newSourceState() *sourceState {
	return &sourceState{active: StrategyPrimary}
}

func (s *sourceState) forKind(kind StrategyKind) *strategyState {
	switch kind {
	case StrategySecondary:
		return &s.secondary
	case StrategyFeed:
		return &s.feed
	default:
		return &s.primary
	}
}

func (s *sourceState) snapshot() StateSnapshot {
	return StateSnapshot{
		ActiveStrategy:     s.active,
		LastSeenExternalId: s.lastSeenExternalId,
		LastSuccess:        s.lastSuccess,
	}
}

func (s *sourceState) restore(snapshot StateSnapshot) {
	if snapshot.ActiveStrategy == StrategyPrimary || snapshot.ActiveStrategy == StrategySecondary {
		s.active = snapshot.ActiveStrategy
	}
	s.lastSeenExternalId = snapshot.LastSeenExternalId
	s.lastSuccess = snapshot.LastSuccess
}

// SourceHealth is the monitoring view of one source's acquisition state.
type SourceHealth struct {
	Strategy            StrategyKind `json:"strategy"`
	ConsecutiveFailures int          `json:"consecutive_failures"`
	PrimaryDisabled     bool         `json:"primary_disabled"`
	SecondaryDisabled   bool         `json:"secondary_disabled"`
	LastSuccess         time.Time    `json:"last_success"`
}
