package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dean-Rough/transferjuice-sub005/model"
)

func TestMemoryRepositoryStoryRoundTrip(t *testing.T) {
	repo := NewMemoryRepository()

	story := &model.Story{
		Id:            "story-1",
		IdentityHash:  "hash-1",
		Headline:      "Fabrizio Romano: Smith (MEDICAL)",
		Stage:         model.StageMedical,
		LastUpdatedAt: time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC),
		Items: []model.StoryItem{
			{StoryID: "story-1", ExternalId: "t1", SourceHandle: "FabrizioRomano", Position: 0},
		},
	}
	require.NoError(t, repo.SaveStory(story))

	// Mutating the saved pointer must not leak into stored state.
	story.Headline = "mutated"

	got, err := repo.FindStoryByHash("hash-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Fabrizio Romano: Smith (MEDICAL)", got.Headline)
	assert.Len(t, got.Items, 1)

	missing, err := repo.FindStoryByHash("no-such-hash")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestMemoryRepositoryItemsKeepInsertionOrder(t *testing.T) {
	repo := NewMemoryRepository()

	story := &model.Story{
		Id:           "story-1",
		IdentityHash: "hash-1",
		Items: []model.StoryItem{
			{StoryID: "story-1", ExternalId: "t1", SourceHandle: "FabrizioRomano", Position: 0},
			{StoryID: "story-1", ExternalId: "b7", SourceHandle: "RandomBlog", Position: 1},
			{StoryID: "story-1", ExternalId: "t2", SourceHandle: "David_Ornstein", Position: 2},
		},
	}
	require.NoError(t, repo.SaveStory(story))

	got, err := repo.FindStoryByHash("hash-1")
	require.NoError(t, err)
	require.Len(t, got.Items, 3)
	for i, item := range got.Items {
		assert.Equal(t, i, item.Position)
	}
	assert.Equal(t, "t1", got.Items[0].ExternalId)
	assert.Equal(t, "t2", got.Items[2].ExternalId)
}

func TestMemoryRepositoryFindStoriesUpdatedSince(t *testing.T) {
	repo := NewMemoryRepository()

	old := &model.Story{Id: "old", IdentityHash: "h-old",
		LastUpdatedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	fresh := &model.Story{Id: "fresh", IdentityHash: "h-fresh",
		LastUpdatedAt: time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)}
	fresher := &model.Story{Id: "fresher", IdentityHash: "h-fresher",
		LastUpdatedAt: time.Date(2026, 2, 2, 0, 0, 0, 0, time.UTC)}
	require.NoError(t, repo.SaveStory(old))
	require.NoError(t, repo.SaveStory(fresh))
	require.NoError(t, repo.SaveStory(fresher))

	got, err := repo.FindStoriesUpdatedSince(time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "fresher", got[0].Id)
	assert.Equal(t, "fresh", got[1].Id)
}

func TestMemoryRepositoryUpsertSourcePreservesReliability(t *testing.T) {
	repo := NewMemoryRepository()

	require.NoError(t, repo.UpsertSource(&model.Source{
		Handle: "FabrizioRomano", DisplayName: "Fabrizio Romano",
		Kind: model.SourceKindTwitter, Reliability: 0.9, Active: true,
	}))
	require.NoError(t, repo.UpdateSourceReliability("FabrizioRomano", 0.95))

	// Re-seeding updates metadata but never claws back the learned score.
	require.NoError(t, repo.UpsertSource(&model.Source{
		Handle: "FabrizioRomano", DisplayName: "Fabrizio Romano (official)",
		Kind: model.SourceKindTwitter, Reliability: 0.9, Active: true,
	}))

	got, err := repo.GetSource("FabrizioRomano")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Fabrizio Romano (official)", got.DisplayName)
	assert.Equal(t, 0.95, got.Reliability)
}

func TestMemoryRepositoryListActiveSources(t *testing.T) {
	repo := NewMemoryRepository()

	require.NoError(t, repo.UpsertSource(&model.Source{Handle: "b", Active: true}))
	require.NoError(t, repo.UpsertSource(&model.Source{Handle: "a", Active: true}))
	require.NoError(t, repo.UpsertSource(&model.Source{Handle: "c", Active: false}))

	got, err := repo.ListActiveSources()
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].Handle)
	assert.Equal(t, "b", got[1].Handle)
}

func TestMemoryRepositoryUpdateUnknownSource(t *testing.T) {
	repo := NewMemoryRepository()
	assert.Error(t, repo.UpdateSourceReliability("nobody", 0.5))
}
