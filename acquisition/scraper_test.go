package acquisition

import (
	"context"
	"testing"
	"time"

	twitterscraper "github.com/n0madic/twitter-scraper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dean-Rough/transferjuice-sub005/clock"
)

type cannedTimeline struct {
	tweets []*twitterscraper.Tweet
	err    error
}

func (c *cannedTimeline) FetchTweets(user string, maxTweetsNbr int, cursor string) ([]*twitterscraper.Tweet, string, error) {
	return c.tweets, "", c.err
}

func TestScraperStrategySkipsRetweetsAndReplies(t *testing.T) {
	clk := clock.NewFake(time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC))
	timeline := &cannedTimeline{tweets: []*twitterscraper.Tweet{
		{ID: "3", Text: "Smith to Arsenal, medical booked https://t.co/xyz", Timestamp: 1767949100, Likes: 12},
		{ID: "2", Text: "RT someone else's scoop", Timestamp: 1767949000, IsRetweet: true},
		{ID: "1", Text: "@fan no idea", Timestamp: 1767948900, IsReply: true},
	}}

	strategy := NewScraperStrategyWithClient(timeline, clk)
	items, err := strategy.Fetch(context.Background(), twitterSource(), 10, "")
	require.NoError(t, err)

	require.Len(t, items, 1)
	assert.Equal(t, "3", items[0].ExternalId)
	assert.Equal(t, "Smith to Arsenal, medical booked", items[0].Text)
	assert.Equal(t, clk.Now(), items[0].FetchedAt)
	assert.Contains(t, string(items[0].Metrics), `"likes":12`)
}

func TestScraperStrategyStopsAtLastSeenId(t *testing.T) {
	clk := clock.NewFake(time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC))
	timeline := &cannedTimeline{tweets: []*twitterscraper.Tweet{
		{ID: "5", Text: "new scoop", Timestamp: 1767949100},
		{ID: "4", Text: "older scoop", Timestamp: 1767949000},
		{ID: "3", Text: "already ingested", Timestamp: 1767948900},
	}}

	strategy := NewScraperStrategyWithClient(timeline, clk)
	items, err := strategy.Fetch(context.Background(), twitterSource(), 10, "3")
	require.NoError(t, err)

	require.Len(t, items, 2)
	assert.Equal(t, "5", items[0].ExternalId)
	assert.Equal(t, "4", items[1].ExternalId)
}

func TestScraperStrategyClassifiesErrors(t *testing.T) {
	clk := clock.NewFake(time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC))

	timeline := &cannedTimeline{err: assert.AnError}
	strategy := NewScraperStrategyWithClient(timeline, clk)

	_, err := strategy.Fetch(context.Background(), twitterSource(), 10, "")
	require.Error(t, err)
	acqErr, ok := err.(*AcquisitionError)
	require.True(t, ok)
	assert.Equal(t, StrategyPrimary, acqErr.Strategy)
}

func TestRemoveTwitterLink(t *testing.T) {
	assert.Equal(t, "here we go", removeTwitterLink("here we go https://t.co/sIGZPDyx76"))
	assert.Equal(t, "no links here", removeTwitterLink("no links here"))
}
