package storage

import (
	"sort"
	"sync"
	"time"

	"github.com/jinzhu/copier"
	"github.com/pkg/errors"

	"github.com/Dean-Rough/transferjuice-sub005/model"
)

// MemoryRepository is an in-memory Repository used in tests and local dry
// runs. Stories are deep-copied on the way in and out so callers can't
// mutate stored state behind the repository's back.
type MemoryRepository struct {
	mu       sync.RWMutex
	stories  map[string]*model.Story // keyed by identity hash
	rawItems map[string]*model.RawItem
	sources  map[string]*model.Source // keyed by handle
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		stories:  make(map[string]*model.Story),
		rawItems: make(map[string]*model.RawItem),
		sources:  make(map[string]*model.Source),
	}
}

func (r *MemoryRepository) SaveStory(story *model.Story) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := &model.Story{}
	if err := copier.Copy(stored, story); err != nil {
		return errors.Wrap(err, "fail to copy story")
	}
	r.stories[story.IdentityHash] = stored
	return nil
}

func (r *MemoryRepository) FindStoryByHash(hash string) (*model.Story, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stored, ok := r.stories[hash]
	if !ok {
		return nil, nil
	}
	return copyStory(stored)
}

func (r *MemoryRepository) FindStoriesUpdatedSince(since time.Time) ([]*model.Story, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stories := []*model.Story{}
	for _, stored := range r.stories {
		if stored.LastUpdatedAt.Before(since) {
			continue
		}
		story, err := copyStory(stored)
		if err != nil {
			return nil, err
		}
		stories = append(stories, story)
	}

	sort.Slice(stories, func(i, j int) bool {
		if stories[i].LastUpdatedAt.Equal(stories[j].LastUpdatedAt) {
			return stories[i].Id < stories[j].Id
		}
		return stories[i].LastUpdatedAt.After(stories[j].LastUpdatedAt)
	})
	return stories, nil
}

func (r *MemoryRepository) SaveRawItem(item *model.RawItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := &model.RawItem{}
	if err := copier.Copy(stored, item); err != nil {
		return errors.Wrap(err, "fail to copy raw item")
	}
	r.rawItems[item.SourceID+"/"+item.ExternalId] = stored
	return nil
}

func (r *MemoryRepository) GetSource(handle string) (*model.Source, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stored, ok := r.sources[handle]
	if !ok {
		return nil, nil
	}
	source := *stored
	return &source, nil
}

func (r *MemoryRepository) ListActiveSources() ([]model.Source, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sources := []model.Source{}
	for _, stored := range r.sources {
		if stored.Active {
			sources = append(sources, *stored)
		}
	}
	sort.Slice(sources, func(i, j int) bool { return sources[i].Handle < sources[j].Handle })
	return sources, nil
}

func (r *MemoryRepository) UpsertSource(source *model.Source) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.sources[source.Handle]; ok {
		existing.DisplayName = source.DisplayName
		existing.Kind = source.Kind
		existing.FeedURL = source.FeedURL
		existing.Tier = source.Tier
		existing.Region = source.Region
		existing.Language = source.Language
		existing.Active = source.Active
		return nil
	}

	stored := *source
	r.sources[source.Handle] = &stored
	return nil
}

func (r *MemoryRepository) UpdateSourceReliability(handle string, score float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	source, ok := r.sources[handle]
	if !ok {
		return errors.Errorf("unknown source %s", handle)
	}
	source.Reliability = score
	return nil
}

func copyStory(stored *model.Story) (*model.Story, error) {
	story := &model.Story{}
	if err := copier.Copy(story, stored); err != nil {
		return nil, errors.Wrap(err, "fail to copy story")
	}
	return story, nil
}
