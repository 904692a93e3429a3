package model

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

/*

RawItem is one fetched unit of source text, a tweet or a feed entry.

Immutable once stored. Owned exclusively by the source that produced it; many
raw items may later attach to one story through StoryItem rows.

Id: primary key
ExternalId: the id the item carries on the source platform (tweet id, feed
guid). Unique per source, which is what makes re-ingestion idempotent.
SourceID:
Source: the source this item was fetched from, "belongs-to" relation
Text: plain text body
PublishedAt: when the source published the item
FetchedAt: when our acquisition client fetched it
Metrics: optional engagement metrics (likes, retweets) as a JSON blob. The
shape differs per platform so this stays schemaless on purpose.
MediaUrls: comma separated image urls attached to the item
OriginUrl: permanent link back to the item
*/
type RawItem struct {
	Id          string `gorm:"primaryKey"`
	CreatedAt   time.Time
	DeletedAt   gorm.DeletedAt
	ExternalId  string `gorm:"uniqueIndex:idx_source_external_id"`
	SourceID    string `gorm:"uniqueIndex:idx_source_external_id;constraint:OnUpdate:CASCADE,OnDelete:SET NULL;"`
	Source      Source `gorm:"constraint:OnUpdate:CASCADE,OnDelete:SET NULL;"`
	Text        string
	PublishedAt time.Time
	FetchedAt   time.Time
	Metrics     datatypes.JSON
	MediaUrls   string
	OriginUrl   string
}
