package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dean-Rough/transferjuice-sub005/model"
	"github.com/Dean-Rough/transferjuice-sub005/reliability"
	"github.com/Dean-Rough/transferjuice-sub005/storage"
)

func TestParseEmbeddedSeeds(t *testing.T) {
	sources, err := ParseSeeds(seedsYaml)
	require.NoError(t, err)
	require.NotEmpty(t, sources)

	handles := make(map[string]model.Source)
	for _, source := range sources {
		handles[source.Handle] = source
	}

	romano, ok := handles["FabrizioRomano"]
	require.True(t, ok)
	assert.Equal(t, model.SourceKindTwitter, romano.Kind)
	assert.Equal(t, 1, romano.Tier)
	assert.True(t, romano.Active)

	gossip, ok := handles["bbc-football-gossip"]
	require.True(t, ok)
	assert.Equal(t, model.SourceKindFeed, gossip.Kind)
	assert.NotEmpty(t, gossip.FeedURL)

	for _, source := range sources {
		assert.GreaterOrEqual(t, source.Reliability, 0.0)
		assert.LessOrEqual(t, source.Reliability, 1.0)
		assert.Contains(t, []int{1, 2, 3}, source.Tier)
	}
}

func TestSeedCatalogTierOneBlock(t *testing.T) {
	sources, err := ParseSeeds(seedsYaml)
	require.NoError(t, err)

	priors := map[string]float64{
		"FabrizioRomano":  0.95,
		"David_Ornstein":  0.93,
		"SamLee":          0.92,
		"_pauljoyce":      0.91,
		"lauriewhitwell":  0.90,
		"RobDawsonESPN":   0.89,
		"LukeEdwardsTele": 0.88,
		"JPercyTelegraph": 0.90,
		"CraigHope_DM":    0.87,
		"DeanJonesSoccer": 0.86,
		"SirayahShiraz":   0.85,
		"BouhafsiMohamed": 0.90,
		"DiMarzio":        0.91,
		"alfredopedulla":  0.88,
		"honigstein":      0.89,
	}

	tierOne := map[string]model.Source{}
	for _, source := range sources {
		if source.Tier == 1 {
			tierOne[source.Handle] = source
		}
	}

	require.Len(t, tierOne, len(priors))
	for handle, prior := range priors {
		source, ok := tierOne[handle]
		require.True(t, ok, "missing tier-1 source %s", handle)
		assert.Equal(t, prior, source.Reliability, handle)
		assert.Equal(t, model.SourceKindTwitter, source.Kind, handle)
	}
}

func TestParseSeedsRejectsBadCatalog(t *testing.T) {
	_, err := ParseSeeds([]byte("sources:\n  - display_name: No Handle\n    kind: twitter\n"))
	assert.Error(t, err)

	_, err = ParseSeeds([]byte("sources:\n  - handle: x\n    kind: telegram\n"))
	assert.Error(t, err)

	_, err = ParseSeeds([]byte("sources:\n  - handle: x\n    kind: feed\n"))
	assert.Error(t, err)
}

func TestSeedKeepsLearnedReliability(t *testing.T) {
	repo := storage.NewMemoryRepository()
	tracker := reliability.NewTracker(repo)

	require.NoError(t, Seed(repo, tracker))
	require.NoError(t, repo.UpdateSourceReliability("FabrizioRomano", 0.99))

	// Second seeding must not claw the learned score back to the prior.
	require.NoError(t, Seed(repo, tracker))

	stored, err := repo.GetSource("FabrizioRomano")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, 0.99, stored.Reliability)
	assert.Equal(t, 0.99, tracker.Score("FabrizioRomano"))
}

func TestEnsureSourceAutoCreates(t *testing.T) {
	repo := storage.NewMemoryRepository()
	tracker := reliability.NewTracker(repo)

	source, err := EnsureSource(repo, tracker, "BrandNewITK")
	require.NoError(t, err)
	require.NotNil(t, source)
	assert.Equal(t, 3, source.Tier)
	assert.Equal(t, reliability.DefaultScore, source.Reliability)
	assert.True(t, source.Active)

	again, err := EnsureSource(repo, tracker, "BrandNewITK")
	require.NoError(t, err)
	assert.Equal(t, source.Id, again.Id)
}
