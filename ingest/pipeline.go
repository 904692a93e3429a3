// Package ingest wires acquisition, extraction and aggregation into the
// cycle that external schedulers drive.
package ingest

import (
	"context"
	"sync"
	"time"

	"github.com/jinzhu/copier"
	"github.com/pkg/errors"

	"github.com/Dean-Rough/transferjuice-sub005/acquisition"
	"github.com/Dean-Rough/transferjuice-sub005/aggregator"
	"github.com/Dean-Rough/transferjuice-sub005/clock"
	"github.com/Dean-Rough/transferjuice-sub005/extractor"
	"github.com/Dean-Rough/transferjuice-sub005/model"
	"github.com/Dean-Rough/transferjuice-sub005/ranker"
	"github.com/Dean-Rough/transferjuice-sub005/reliability"
	"github.com/Dean-Rough/transferjuice-sub005/storage"
	Logger "github.com/Dean-Rough/transferjuice-sub005/utils/log"
)

const (
	// The session-scrape strategy is resource heavy, so acquisition fans out
	// over a small fixed pool rather than one goroutine per source.
	DefaultWorkerCount = 4

	DefaultMaxItemsPerSource = 20
)

// SourceOutcome is the per-source line of a cycle summary.
type SourceOutcome struct {
	ItemsFetched int    `json:"items_fetched"`
	ItemsSkipped int    `json:"items_skipped"`
	Error        string `json:"error,omitempty"`
}

// CycleSummary is what one full acquisition+aggregation pass reports back.
// Partial failure is the normal case: a dead source or a failed story save
// shows up here, it never aborts the cycle.
type CycleSummary struct {
	StoriesCreated int                      `json:"stories_created"`
	StoriesUpdated int                      `json:"stories_updated"`
	ItemsSkipped   int                      `json:"items_skipped"`
	Sources        map[string]SourceOutcome `json:"sources"`
}

// SourceHealth combines acquisition state with the source's rolling
// reliability for monitoring output.
type SourceHealth struct {
	Strategy            acquisition.StrategyKind `json:"strategy"`
	ConsecutiveFailures int                      `json:"consecutive_failures"`
	Reliability         float64                  `json:"reliability"`
	LastSuccess         time.Time                `json:"last_success"`
}

type Pipeline struct {
	repo       storage.Repository
	client     *acquisition.Client
	extractor  *extractor.Extractor
	aggregator *aggregator.Aggregator
	tracker    *reliability.Tracker
	clock      clock.Clock

	workerCount       int
	maxItemsPerSource int
}

func NewPipeline(
	repo storage.Repository,
	client *acquisition.Client,
	ext *extractor.Extractor,
	agg *aggregator.Aggregator,
	tracker *reliability.Tracker,
	clk clock.Clock,
) *Pipeline {
	return &Pipeline{
		repo:              repo,
		client:            client,
		extractor:         ext,
		aggregator:        agg,
		tracker:           tracker,
		clock:             clk,
		workerCount:       DefaultWorkerCount,
		maxItemsPerSource: DefaultMaxItemsPerSource,
	}
}

// Configure adjusts the acquisition pool sizing. Called once before the
// first cycle.
func (p *Pipeline) Configure(workerCount int, maxItemsPerSource int) {
	if workerCount > 0 {
		p.workerCount = workerCount
	}
	if maxItemsPerSource > 0 {
		p.maxItemsPerSource = maxItemsPerSource
	}
}

type fetchResult struct {
	source model.Source
	items  []model.RawItem
	err    error
}

// RunCycle runs one full acquisition+aggregation pass over all active
// sources. Acquisition fans out per source over a bounded pool; aggregation
// runs serially afterwards, so merges for one identity are never racing the
// same cycle's items. Only a total infrastructure failure returns an error.
func (p *Pipeline) RunCycle(ctx context.Context) (*CycleSummary, error) {
	sources, err := p.repo.ListActiveSources()
	if err != nil {
		return nil, errors.Wrap(err, "fail to list active sources")
	}

	results := p.fetchAll(ctx, sources)

	summary := &CycleSummary{Sources: make(map[string]SourceOutcome)}
	for _, result := range results {
		outcome := SourceOutcome{ItemsFetched: len(result.items)}
		if result.err != nil {
			// A source that exhausted both strategies contributes no items
			// this cycle, the rest of the batch is unaffected.
			outcome.Error = result.err.Error()
			Logger.Log.Warnf("acquisition failed for source %s: %v", result.source.Handle, result.err)
			summary.Sources[result.source.Handle] = outcome
			continue
		}

		for i := range result.items {
			p.ingestItem(&result.source, &result.items[i], summary, &outcome)
		}
		summary.Sources[result.source.Handle] = outcome
	}
	return summary, nil
}

// fetchAll runs acquisition for every source over the worker pool. Per-source
// state is the only mutable state touched concurrently and it is per-source
// exclusive inside the client.
func (p *Pipeline) fetchAll(ctx context.Context, sources []model.Source) []fetchResult {
	jobs := make(chan int)
	results := make([]fetchResult, len(sources))

	var wg sync.WaitGroup
	for w := 0; w < p.workerCount; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				items, err := p.client.Fetch(ctx, sources[i], p.maxItemsPerSource)
				results[i] = fetchResult{source: sources[i], items: items, err: err}
			}
		}()
	}
	for i := range sources {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	return results
}

func (p *Pipeline) ingestItem(source *model.Source, item *model.RawItem, summary *CycleSummary, outcome *SourceOutcome) {
	if item.Id == "" {
		item.Id = item.SourceID + "/" + item.ExternalId
	}
	if err := p.repo.SaveRawItem(item); err != nil {
		Logger.Log.Errorln("fail to save raw item", item.ExternalId, "from", source.Handle, ":", err)
	}

	facts := p.extractor.Extract(item.Text)
	if reason, skip := extractor.ShouldSkip(item.Text, facts); skip {
		summary.ItemsSkipped++
		outcome.ItemsSkipped++
		Logger.Log.Debugln("skipping item", item.ExternalId, "from", source.Handle, ":", reason)
		return
	}

	result, err := p.aggregator.Ingest(source, item, facts)
	if err != nil {
		// Per-story isolation: one failed save must not sink the cycle.
		Logger.Log.Errorln("fail to aggregate item", item.ExternalId, "from", source.Handle, ":", err)
		summary.ItemsSkipped++
		outcome.ItemsSkipped++
		return
	}

	switch result.Outcome {
	case aggregator.OutcomeCreated:
		summary.StoriesCreated++
	case aggregator.OutcomeUpdated:
		summary.StoriesUpdated++
	case aggregator.OutcomeSkipped:
		summary.ItemsSkipped++
		outcome.ItemsSkipped++
	}
}

// RankedStories returns up to limit stories updated since the given time, in
// descending importance order. Stories are deep copies, callers can't mutate
// pipeline state through them.
func (p *Pipeline) RankedStories(since time.Time, limit int) ([]*model.Story, error) {
	stories, err := p.repo.FindStoriesUpdatedSince(since)
	if err != nil {
		return nil, errors.Wrap(err, "fail to load stories for ranking")
	}

	ranked := ranker.Rank(stories, p.clock.Now())
	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}

	copies := make([]*model.Story, 0, len(ranked))
	for _, story := range ranked {
		snapshot := &model.Story{}
		if err := copier.Copy(snapshot, story); err != nil {
			return nil, errors.Wrap(err, "fail to copy ranked story")
		}
		copies = append(copies, snapshot)
	}
	return copies, nil
}

// SourceHealth reports acquisition state and reliability for every source
// the client has touched.
func (p *Pipeline) SourceHealth() map[string]SourceHealth {
	health := make(map[string]SourceHealth)
	for handle, acq := range p.client.Health() {
		health[handle] = SourceHealth{
			Strategy:            acq.Strategy,
			ConsecutiveFailures: acq.ConsecutiveFailures,
			Reliability:         p.tracker.Score(handle),
			LastSuccess:         acq.LastSuccess,
		}
	}
	return health
}
