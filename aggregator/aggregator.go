// Package aggregator is the core state machine of the pipeline: it maps each
// extracted fact set onto its canonical story, creating the story on first
// sight and merging into it afterwards.
//
// Correctness here hinges on two invariants. First, at most one story exists
// per real-world transfer: an identity collision must always route into a
// merge, never into a second story. Second, merged knowledge never regresses:
// a story's stage only moves forward and an adopted fee is only displaced by
// a strictly more reliable source.
package aggregator

import (
	"fmt"
	"hash/fnv"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/stat"

	"github.com/Dean-Rough/transferjuice-sub005/clock"
	"github.com/Dean-Rough/transferjuice-sub005/model"
	"github.com/Dean-Rough/transferjuice-sub005/reliability"
	"github.com/Dean-Rough/transferjuice-sub005/storage"
	"github.com/Dean-Rough/transferjuice-sub005/utils"
	Logger "github.com/Dean-Rough/transferjuice-sub005/utils/log"
)

const (
	// How far back the fuzzy matching pass looks for candidate stories.
	DefaultFuzzyWindow = 72 * time.Hour

	// Minimum token similarity for the fuzzy pass to treat two player sets
	// as the same people.
	DefaultSimilarityThreshold = 0.5

	// Corroboration has diminishing returns, roughly saturating around four
	// distinct sources.
	confidenceSourceScale = 2.0

	storyLockShards = 64
)

type Outcome string

const (
	OutcomeCreated   Outcome = "created"
	OutcomeUpdated   Outcome = "updated"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeSkipped   Outcome = "skipped"
)

// Result describes what one Ingest call did to the story set.
type Result struct {
	Outcome Outcome
	Story   *model.Story
}

type Aggregator struct {
	repo    storage.Repository
	tracker *reliability.Tracker
	clock   clock.Clock

	fuzzyWindow         time.Duration
	similarityThreshold float64

	// Merge correctness needs one writer at a time per identity hash.
	// Sharded locks give that without serializing unrelated stories.
	locks [storyLockShards]sync.Mutex
}

func NewAggregator(repo storage.Repository, tracker *reliability.Tracker, c clock.Clock) *Aggregator {
	return &Aggregator{
		repo:                repo,
		tracker:             tracker,
		clock:               c,
		fuzzyWindow:         DefaultFuzzyWindow,
		similarityThreshold: DefaultSimilarityThreshold,
	}
}

// Ingest routes one raw item and its extracted facts into the story set.
// Items whose facts name no player are skipped, never attached or stored as
// a story.
func (a *Aggregator) Ingest(source *model.Source, item *model.RawItem, facts model.FactSet) (*Result, error) {
	if !facts.HasEntities() {
		return &Result{Outcome: OutcomeSkipped}, nil
	}

	hash := IdentityHash(facts.Players, facts.Clubs)

	resolvedHash, err := a.resolveIdentity(hash, facts)
	if err != nil {
		return nil, err
	}

	result, retry, err := a.ingestUnder(resolvedHash, hash, source, item, facts)
	if err != nil {
		return nil, err
	}
	if retry {
		// The fuzzy-matched story vanished before we took its lock. Create
		// under the item's own hash instead.
		result, _, err = a.ingestUnder(hash, hash, source, item, facts)
	}
	return result, err
}

// ingestUnder does the create-or-merge under the identity lock for
// lockedHash. Resolution happened outside the lock, so the story is fetched
// again under it: a concurrent creator for the same hash is caught here and
// turned into a merge. retry is true when a fuzzy-matched story disappeared
// and the caller should create under createHash.
func (a *Aggregator) ingestUnder(lockedHash string, createHash string, source *model.Source, item *model.RawItem, facts model.FactSet) (result *Result, retry bool, err error) {
	lock := a.lockFor(lockedHash)
	lock.Lock()
	defer lock.Unlock()

	story, err := a.repo.FindStoryByHash(lockedHash)
	if err != nil {
		return nil, false, err
	}
	if story == nil {
		if lockedHash != createHash {
			return nil, true, nil
		}
		result, err = a.create(createHash, source, item, facts)
		return result, false, err
	}
	result, err = a.merge(story, source, item, facts)
	return result, false, err
}

// resolveIdentity finds which story, if any, the facts belong to: exact hash
// first, then a fuzzy pass over recently updated stories to absorb
// transliteration variants. Returns the hash to create under when neither
// pass matches.
func (a *Aggregator) resolveIdentity(hash string, facts model.FactSet) (string, error) {
	story, err := a.repo.FindStoryByHash(hash)
	if err != nil {
		return "", err
	}
	if story != nil {
		return hash, nil
	}

	since := a.clock.Now().Add(-a.fuzzyWindow)
	recent, err := a.repo.FindStoriesUpdatedSince(since)
	if err != nil {
		return "", err
	}

	bestSimilarity := 0.0
	bestHash := ""
	for _, candidate := range recent {
		similarity := TokenSimilarity(facts.Players, candidate.PlayerList())
		if similarity < a.similarityThreshold || similarity < bestSimilarity {
			continue
		}
		if !ClubOverlap(facts.Clubs, candidate.ClubList()) {
			continue
		}
		bestSimilarity = similarity
		bestHash = candidate.IdentityHash
	}
	if bestHash != "" {
		return bestHash, nil
	}
	return hash, nil
}

func (a *Aggregator) create(hash string, source *model.Source, item *model.RawItem, facts model.FactSet) (*Result, error) {
	now := a.clock.Now()
	stage := facts.EffectiveStage()

	story := &model.Story{
		Id:            uuid.New().String(),
		IdentityHash:  hash,
		Headline:      seedHeadline(source, facts, stage),
		Stage:         stage,
		Players:       model.JoinList(NormalizeNames(facts.Players)),
		Clubs:         model.JoinList(NormalizeNames(facts.Clubs)),
		Keywords:      model.JoinList(facts.Keywords),
		LastUpdatedAt: now,
	}
	if stage != model.StageUnknown {
		story.StageSource = source.Handle
	}
	if !facts.Fee.IsZero() {
		story.FeeAmount = facts.Fee.Amount
		story.FeeCurrency = facts.Fee.Currency
		story.FeeSource = source.Handle
	}
	story.Items = []model.StoryItem{a.newStoryItem(story, source, item, facts)}
	story.Confidence = a.confidence(story)

	if err := a.repo.SaveStory(story); err != nil {
		return nil, errors.Wrap(err, "fail to create story")
	}
	return &Result{Outcome: OutcomeCreated, Story: story}, nil
}

func (a *Aggregator) merge(story *model.Story, source *model.Source, item *model.RawItem, facts model.FactSet) (*Result, error) {
	if story.HasItem(item.ExternalId) {
		return &Result{Outcome: OutcomeDuplicate, Story: story}, nil
	}

	story.Items = append(story.Items, a.newStoryItem(story, source, item, facts))

	a.mergeStage(story, source, facts)
	a.mergeFee(story, source, facts)
	a.mergeEntities(story, facts)

	story.UpdateCount++
	story.LastUpdatedAt = a.clock.Now()
	story.Confidence = a.confidence(story)

	if err := a.repo.SaveStory(story); err != nil {
		return nil, errors.Wrap(err, "fail to save merged story")
	}

	a.reinforce(story)
	return &Result{Outcome: OutcomeUpdated, Story: story}, nil
}

// mergeStage adopts the higher-priority stage. A later, weaker report never
// walks a story's stage backwards.
func (a *Aggregator) mergeStage(story *model.Story, source *model.Source, facts model.FactSet) {
	stage := facts.EffectiveStage()
	if stage.Priority() > story.Stage.Priority() {
		story.Stage = stage
		story.StageSource = source.Handle
	}
}

// mergeFee adopts a new fee when no fee is stored yet, or when the reporting
// source is strictly more reliable than the source behind the stored fee. A
// conflicting fee between equally reliable sources is unresolvable, so it is
// recorded as an ambiguity and the stored fee stands.
func (a *Aggregator) mergeFee(story *model.Story, source *model.Source, facts model.FactSet) {
	if facts.Fee.IsZero() {
		return
	}
	if story.Fee().IsZero() {
		story.FeeAmount = facts.Fee.Amount
		story.FeeCurrency = facts.Fee.Currency
		story.FeeSource = source.Handle
		return
	}
	if facts.Fee.Amount == story.FeeAmount && facts.Fee.Currency == story.FeeCurrency {
		return
	}

	newScore := a.tracker.Score(source.Handle)
	storedScore := a.tracker.Score(story.FeeSource)
	if newScore > storedScore {
		story.FeeAmount = facts.Fee.Amount
		story.FeeCurrency = facts.Fee.Currency
		story.FeeSource = source.Handle
		return
	}
	if newScore == storedScore {
		markAmbiguous(story, "fee")
		Logger.Log.Infoln("unresolvable fee conflict on story", story.Id,
			"between", story.FeeSource, "and", source.Handle)
	}
}

// mergeEntities unions players, clubs and keywords. More than two clubs on
// one story means at least one side is ambiguously reported; that is flagged
// but never blocks the merge.
func (a *Aggregator) mergeEntities(story *model.Story, facts model.FactSet) {
	story.Players = model.JoinList(unionNames(story.PlayerList(), facts.Players))
	mergedClubs := unionNames(story.ClubList(), facts.Clubs)
	story.Clubs = model.JoinList(mergedClubs)
	if len(mergedClubs) > 2 {
		markAmbiguous(story, "clubs")
	}
	story.Keywords = model.JoinList(unionPlain(splitKeywords(story.Keywords), facts.Keywords))
}

// confidence combines update count, distinct-source corroboration and the
// average reliability of contributing sources. Corroboration dominates, with
// diminishing returns as more sources pile on.
func (a *Aggregator) confidence(story *model.Story) float64 {
	handles := story.DistinctSourceHandles()

	updates := math.Min(1, float64(story.UpdateCount)/6)
	corroboration := 1 - math.Exp(-float64(len(handles))/confidenceSourceScale)

	scores := make([]float64, 0, len(handles))
	for _, handle := range handles {
		scores = append(scores, a.tracker.Score(handle))
	}
	avgReliability := 0.0
	if len(scores) > 0 {
		avgReliability = stat.Mean(scores, nil)
	}

	return 0.2*updates + 0.5*corroboration + 0.3*avgReliability
}

// reinforce nudges every contributing source whose supplied stage or fee
// matches the merged consensus. Disagreement leaves the score untouched;
// a conflicting report is not knowably wrong at merge time.
func (a *Aggregator) reinforce(story *model.Story) {
	credited := make(map[string]bool)
	for _, item := range story.Items {
		if credited[item.SourceHandle] {
			continue
		}
		if a.itemAgrees(story, item) {
			credited[item.SourceHandle] = true
			a.tracker.RecordOutcome(item.SourceHandle, true)
		}
	}
}

func (a *Aggregator) itemAgrees(story *model.Story, item model.StoryItem) bool {
	if item.SuppliedStage != model.StageUnknown && item.SuppliedStage == story.Stage {
		return true
	}
	if item.SuppliedFeeAmount != 0 &&
		item.SuppliedFeeAmount == story.FeeAmount && item.SuppliedFeeCurrency == story.FeeCurrency {
		return true
	}
	return false
}

func (a *Aggregator) newStoryItem(story *model.Story, source *model.Source, item *model.RawItem, facts model.FactSet) model.StoryItem {
	storyItem := model.StoryItem{
		Id:            uuid.New().String(),
		StoryID:       story.Id,
		RawItemID:     item.Id,
		ExternalId:    item.ExternalId,
		SourceHandle:  source.Handle,
		Position:      len(story.Items),
		SuppliedStage: facts.EffectiveStage(),
	}
	if !facts.Fee.IsZero() {
		storyItem.SuppliedFeeAmount = facts.Fee.Amount
		storyItem.SuppliedFeeCurrency = facts.Fee.Currency
	}
	return storyItem
}

func (a *Aggregator) lockFor(hash string) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(hash))
	return &a.locks[h.Sum32()%storyLockShards]
}

func seedHeadline(source *model.Source, facts model.FactSet, stage model.Stage) string {
	players := strings.Join(facts.Players, ", ")
	return fmt.Sprintf("%s: %s (%s)", source.DisplayName, players, stage.String())
}

func markAmbiguous(story *model.Story, field string) {
	if utils.ContainsString(story.AmbiguousFieldList(), field) {
		return
	}
	story.AmbiguousFields = model.JoinList(append(story.AmbiguousFieldList(), field))
}

func unionNames(existing []string, incoming []string) []string {
	return unionPlain(existing, NormalizeNames(incoming))
}

func unionPlain(existing []string, incoming []string) []string {
	seen := make(map[string]bool)
	merged := []string{}
	for _, entry := range existing {
		if entry == "" || seen[entry] {
			continue
		}
		seen[entry] = true
		merged = append(merged, entry)
	}
	for _, entry := range incoming {
		if entry == "" || seen[entry] {
			continue
		}
		seen[entry] = true
		merged = append(merged, entry)
	}
	return merged
}

func splitKeywords(joined string) []string {
	if joined == "" {
		return nil
	}
	return strings.Split(joined, ",")
}
