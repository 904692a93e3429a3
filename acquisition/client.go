package acquisition

import (
	"context"
	"sync"
	"time"

	"github.com/Dean-Rough/transferjuice-sub005/clock"
	"github.com/Dean-Rough/transferjuice-sub005/model"
	Logger "github.com/Dean-Rough/transferjuice-sub005/utils/log"
)

const (
	// Consecutive failures before a strategy is put on cool-down.
	FailureThreshold = 3

	// How long a disabled strategy sits out.
	CoolDown = 15 * time.Minute

	// The browser-session strategy needs a materially longer timeout than
	// the API strategy.
	primaryTimeout   = 30 * time.Second
	secondaryTimeout = 8 * time.Second
	feedTimeout      = 15 * time.Second
)

// rateAware is implemented by strategies with a known rate-limit budget.
type rateAware interface {
	RemainingCalls() int
}

// Client fetches raw items for one source at a time, switching between the
// primary (session scrape) and secondary (API) strategies on failure.
//
// Callable concurrently for distinct sources. State updates are per-source
// exclusive; no shared mutable state crosses sources.
type Client struct {
	primary   Strategy
	secondary Strategy
	feed      Strategy
	store     StateStore
	clock     clock.Clock

	mu     sync.Mutex
	states map[string]*sourceState
}

func NewClient(primary, secondary, feed Strategy, store StateStore, clk clock.Clock) *Client {
	return &Client{
		primary:   primary,
		secondary: secondary,
		feed:      feed,
		store:     store,
		clock:     clk,
		states:    make(map[string]*sourceState),
	}
}

// Fetch acquires up to maxItems newest-first raw items for the source.
// A total failure after exhausting both strategies surfaces as an
// AcquisitionError with KindBothStrategiesExhausted; the caller treats that
// as "no items for this cycle", never as a batch-aborting failure.
func (c *Client) Fetch(ctx context.Context, source model.Source, maxItems int) ([]model.RawItem, error) {
	state := c.stateFor(source.Handle)

	state.mu.Lock()
	defer state.mu.Unlock()

	if source.Kind == model.SourceKindFeed {
		return c.fetchFeed(ctx, source, maxItems, state)
	}

	now := c.clock.Now()
	first := c.pickFirst(state, now)
	if first == "" {
		return nil, newError(KindBothStrategiesExhausted, "", source.Handle, nil)
	}

	items, err := c.attempt(ctx, first, source, maxItems, state)
	if err == nil {
		state.active = first
		c.persist(source.Handle, state)
		return items, nil
	}
	Logger.Log.Warnf("strategy %s failed for source %s, falling back: %v", first, source.Handle, err)

	// Single fallback hop within the same call, not a retry storm.
	second := other(first)
	if !c.usable(state, second, c.clock.Now()) {
		return nil, newError(KindBothStrategiesExhausted, "", source.Handle, err)
	}

	items, err2 := c.attempt(ctx, second, source, maxItems, state)
	if err2 == nil {
		// The preferred strategy only moves off the failing one once it is
		// on cool-down; until then the next call retries it first.
		if state.forKind(first).disabled(c.clock.Now()) {
			state.active = second
		}
		c.persist(source.Handle, state)
		return items, nil
	}
	return nil, newError(KindBothStrategiesExhausted, "", source.Handle, err2)
}

// LastSeen returns the newest external id already ingested for the source.
func (c *Client) LastSeen(handle string) string {
	state := c.stateFor(handle)
	state.mu.Lock()
	defer state.mu.Unlock()
	return state.lastSeenExternalId
}

// Health reports the acquisition health of every source seen so far.
func (c *Client) Health() map[string]SourceHealth {
	c.mu.Lock()
	handles := make([]string, 0, len(c.states))
	states := make([]*sourceState, 0, len(c.states))
	for handle, state := range c.states {
		handles = append(handles, handle)
		states = append(states, state)
	}
	c.mu.Unlock()

	now := c.clock.Now()
	health := make(map[string]SourceHealth, len(handles))
	for i, state := range states {
		state.mu.Lock()
		health[handles[i]] = SourceHealth{
			Strategy:            state.active,
			ConsecutiveFailures: state.forKind(state.active).consecutiveFailures,
			PrimaryDisabled:     state.primary.disabled(now),
			SecondaryDisabled:   state.secondary.disabled(now),
			LastSuccess:         state.lastSuccess,
		}
		state.mu.Unlock()
	}
	return health
}

// pickFirst applies the strategy-selection policy: start on whichever
// strategy last succeeded, skip disabled strategies, and never burn a call
// on the API when its rate window is already empty. Returns "" when neither
// strategy is usable.
func (c *Client) pickFirst(state *sourceState, now time.Time) StrategyKind {
	first := state.active
	if first != StrategyPrimary && first != StrategySecondary {
		first = StrategyPrimary
	}

	if !c.usable(state, first, now) {
		first = other(first)
		if !c.usable(state, first, now) {
			return ""
		}
	}
	return first
}

func (c *Client) usable(state *sourceState, kind StrategyKind, now time.Time) bool {
	if state.forKind(kind).disabled(now) {
		return false
	}
	if kind == StrategySecondary {
		// A guaranteed-429 call is worse than not calling.
		if aware, ok := c.secondary.(rateAware); ok && aware.RemainingCalls() == 0 {
			return false
		}
	}
	return true
}

func (c *Client) attempt(ctx context.Context, kind StrategyKind, source model.Source, maxItems int, state *sourceState) ([]model.RawItem, error) {
	strategy := c.primary
	timeout := primaryTimeout
	if kind == StrategySecondary {
		strategy = c.secondary
		timeout = secondaryTimeout
	}

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	items, err := strategy.Fetch(callCtx, source, maxItems, state.lastSeenExternalId)
	now := c.clock.Now()
	if err != nil {
		state.forKind(kind).recordFailure(now, FailureThreshold, CoolDown)
		return nil, err
	}

	state.forKind(kind).recordSuccess()
	state.lastSuccess = now
	if len(items) > 0 {
		state.lastSeenExternalId = items[0].ExternalId
	}
	return items, nil
}

func (c *Client) fetchFeed(ctx context.Context, source model.Source, maxItems int, state *sourceState) ([]model.RawItem, error) {
	callCtx, cancel := context.WithTimeout(ctx, feedTimeout)
	defer cancel()

	items, err := c.feed.Fetch(callCtx, source, maxItems, state.lastSeenExternalId)
	if err != nil {
		state.forKind(StrategyFeed).recordFailure(c.clock.Now(), FailureThreshold, CoolDown)
		return nil, err
	}

	state.forKind(StrategyFeed).recordSuccess()
	state.active = StrategyFeed
	state.lastSuccess = c.clock.Now()
	if len(items) > 0 {
		state.lastSeenExternalId = items[0].ExternalId
	}
	c.persist(source.Handle, state)
	return items, nil
}

func (c *Client) stateFor(handle string) *sourceState {
	c.mu.Lock()
	defer c.mu.Unlock()

	if state, ok := c.states[handle]; ok {
		return state
	}

	state := newSourceState()
	if c.store != nil {
		snapshot, found, err := c.store.LoadState(handle)
		if err != nil {
			Logger.Log.Errorln("fail to load acquisition state for source", handle, ":", err)
		} else if found {
			state.restore(snapshot)
		}
	}
	c.states[handle] = state
	return state
}

func (c *Client) persist(handle string, state *sourceState) {
	if c.store == nil {
		return
	}
	if err := c.store.SaveState(handle, state.snapshot()); err != nil {
		Logger.Log.Errorln("fail to persist acquisition state for source", handle, ":", err)
	}
}

func other(kind StrategyKind) StrategyKind {
	if kind == StrategyPrimary {
		return StrategySecondary
	}
	return StrategyPrimary
}
