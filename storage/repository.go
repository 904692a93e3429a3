// Package storage puts persistence behind a narrow repository interface so
// the pipeline has no knowledge of the storage technology. The gorm/postgres
// implementation is the production one; the in-memory implementation backs
// tests.
package storage

import (
	"time"

	"github.com/Dean-Rough/transferjuice-sub005/model"
)

type Repository interface {
	// SaveStory persists the story and its contributing item rows.
	SaveStory(story *model.Story) error

	// FindStoryByHash returns the story with the given identity hash, or
	// nil when no such story exists.
	FindStoryByHash(hash string) (*model.Story, error)

	// FindStoriesUpdatedSince returns all stories merged into at or after
	// the given instant, newest update first.
	FindStoriesUpdatedSince(since time.Time) ([]*model.Story, error)

	SaveRawItem(item *model.RawItem) error

	// GetSource returns the source with the given handle, or nil when
	// unknown.
	GetSource(handle string) (*model.Source, error)

	ListActiveSources() ([]model.Source, error)

	// UpsertSource creates the source or updates its catalog fields,
	// keyed by handle. Reliability is only written on first creation;
	// later reliability changes go through UpdateSourceReliability.
	UpsertSource(source *model.Source) error

	UpdateSourceReliability(handle string, score float64) error
}
