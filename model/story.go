package model

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

/*

Story is the canonical, evolving record of one real-world transfer situation.

Invariant: for any two non-deleted stories the identity hashes are distinct.
A hash collision must route into a merge, never into duplicate creation.

Id: primary key
IdentityHash: hash of the normalized player set and primary club pair
Headline: best current one-line summary
Stage: merged stage, only ever moves forward in priority order
StageSource: handle of the source that supplied the current stage
FeeAmount / FeeCurrency: merged fee, zero when no report named one
FeeSource: handle of the source that supplied the current fee. Kept so a
later conflicting fee is only adopted from a strictly more reliable source.
Players / Clubs: normalized entity unions, comma separated
Keywords: union of matched lexicon keywords, comma separated
AmbiguousFields: field names that received an unresolvable conflict, comma
separated. Recorded for health output, never blocks a merge.
UpdateCount: number of merges applied after creation
Confidence: corroboration-weighted confidence in [0,1]
LastUpdatedAt: time of the most recent merge
Items: contributing raw items in insertion order, each tagged with the handle
of the source that supplied it, "has-many" relation
*/
type Story struct {
	Id              string `gorm:"primaryKey"`
	CreatedAt       time.Time
	DeletedAt       gorm.DeletedAt
	IdentityHash    string `gorm:"uniqueIndex"`
	Headline        string
	Stage           Stage `gorm:"type:text"`
	StageSource     string
	FeeAmount       int64
	FeeCurrency     string
	FeeSource       string
	Players         string
	Clubs           string
	Keywords        string
	AmbiguousFields string
	UpdateCount     int
	Confidence      float64
	LastUpdatedAt   time.Time
	Items           []StoryItem `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
}

/*

StoryItem joins a story to one contributing raw item.

StoryID: owning story, "belongs-to" relation
RawItemID:
RawItem: the contributing item
ExternalId: denormalized from the raw item so idempotency checks don't need a
join
SourceHandle: handle of the source that supplied the item
Position: insertion order within the story
SuppliedStage / SuppliedFeeAmount / SuppliedFeeCurrency: the claims this item
made at ingest time, kept so corroborating sources can be credited once the
merged story settles on the same values
*/
type StoryItem struct {
	Id                  string `gorm:"primaryKey"`
	CreatedAt           time.Time
	StoryID             string `gorm:"uniqueIndex:idx_story_external_id"`
	RawItemID           string
	RawItem             RawItem `gorm:"constraint:OnUpdate:CASCADE,OnDelete:SET NULL;"`
	ExternalId          string  `gorm:"uniqueIndex:idx_story_external_id"`
	SourceHandle        string
	Position            int
	SuppliedStage       Stage `gorm:"type:text"`
	SuppliedFeeAmount   int64
	SuppliedFeeCurrency string
}

// HasItem reports whether the story already references a raw item with the
// given external id. Used to keep re-ingestion idempotent.
func (s *Story) HasItem(externalId string) bool {
	for _, item := range s.Items {
		if item.ExternalId == externalId {
			return true
		}
	}
	return false
}

// DistinctSourceHandles returns the handles of all contributing sources,
// de-duplicated, in first-contribution order.
func (s *Story) DistinctSourceHandles() []string {
	seen := make(map[string]bool)
	handles := []string{}
	for _, item := range s.Items {
		if seen[item.SourceHandle] {
			continue
		}
		seen[item.SourceHandle] = true
		handles = append(handles, item.SourceHandle)
	}
	return handles
}

func (s *Story) PlayerList() []string {
	return splitList(s.Players)
}

func (s *Story) ClubList() []string {
	return splitList(s.Clubs)
}

func (s *Story) AmbiguousFieldList() []string {
	return splitList(s.AmbiguousFields)
}

// Fee returns the merged fee, zero value when no fee has been adopted yet.
func (s *Story) Fee() Fee {
	if s.FeeAmount == 0 && s.FeeCurrency == "" {
		return Fee{}
	}
	return Fee{Amount: s.FeeAmount, Currency: s.FeeCurrency}
}

func splitList(joined string) []string {
	if joined == "" {
		return nil
	}
	return strings.Split(joined, ",")
}

// JoinList is the inverse of the list accessors above. Entity names are
// normalized before storage and never contain commas.
func JoinList(entries []string) string {
	return strings.Join(entries, ",")
}
