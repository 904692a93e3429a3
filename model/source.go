package model

import (
	"time"

	"gorm.io/gorm"
)

type SourceKind string

const (
	SourceKindTwitter SourceKind = "twitter"
	SourceKindFeed    SourceKind = "feed"
)

/*

Source is a data model for one monitored rumour source.

Example: the FabrizioRomano twitter account, or a club news RSS feed.

Id: primary key
CreatedAt: time when entity is created
DeletedAt: time when entity is deleted

Handle: unique identity of the source, the twitter username or feed slug
DisplayName: human readable name, for example "Fabrizio Romano"
Kind: "twitter" or "feed", decides which acquisition strategies apply
FeedURL: feed address, only set for Kind == "feed"
Tier: editorial trust rank, 1 (highest) to 3
Region: region the source mostly covers, for example "england"
Language: primary language of the source's posts
Reliability: rolling accuracy score in [0,1]. Seeded from the registry prior,
mutated only by the reliability tracker through the repository.
Active: inactive sources are skipped by the ingest cycle but never deleted
while stories still reference them.
*/
type Source struct {
	Id          string `gorm:"primaryKey"`
	CreatedAt   time.Time
	DeletedAt   gorm.DeletedAt
	Handle      string `gorm:"uniqueIndex"`
	DisplayName string
	Kind        SourceKind
	FeedURL     string
	Tier        int
	Region      string
	Language    string
	Reliability float64
	Active      bool
}
