package acquisition

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dean-Rough/transferjuice-sub005/clock"
	"github.com/Dean-Rough/transferjuice-sub005/model"
)

type cannedHTTPClient struct {
	responses map[string]*http.Response
	requests  []*http.Request
}

func (c *cannedHTTPClient) Do(req *http.Request) (*http.Response, error) {
	c.requests = append(c.requests, req)
	for prefix, res := range c.responses {
		if strings.HasPrefix(req.URL.String(), prefix) {
			return res, nil
		}
	}
	return &http.Response{StatusCode: http.StatusNotFound, Body: io.NopCloser(bytes.NewReader(nil)), Header: http.Header{}}, nil
}

func jsonResponse(status int, body string, headers map[string]string) *http.Response {
	header := http.Header{}
	for k, v := range headers {
		header.Set(k, v)
	}
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     header,
	}
}

func TestAPIStrategyFetchAndRateWindow(t *testing.T) {
	clk := clock.NewFake(time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC))
	httpClient := &cannedHTTPClient{responses: map[string]*http.Response{
		"https://api.twitter.com/2/users/by/username/FabrizioRomano": jsonResponse(
			200, `{"data":{"id":"42","username":"FabrizioRomano"}}`, nil),
		"https://api.twitter.com/2/users/42/tweets": jsonResponse(
			200,
			`{"data":[
				{"id":"101","text":"Smith to Arsenal, here we go https://t.co/abc123","created_at":"2026-01-10T08:55:00Z","public_metrics":{"retweet_count":10,"reply_count":2,"like_count":50}},
				{"id":"100","text":"Talks ongoing","created_at":"2026-01-10T08:00:00Z","public_metrics":{}}
			],"meta":{"result_count":2}}`,
			map[string]string{"x-rate-limit-remaining": "7", "x-rate-limit-reset": "1767949200"}),
	}}

	strategy := NewAPIStrategy(httpClient, "token", clk)
	items, err := strategy.Fetch(context.Background(), twitterSource(), 10, "")
	require.NoError(t, err)
	require.Len(t, items, 2)

	assert.Equal(t, "101", items[0].ExternalId)
	assert.Equal(t, "Smith to Arsenal, here we go", items[0].Text)
	assert.Equal(t, time.Date(2026, 1, 10, 8, 55, 0, 0, time.UTC), items[0].PublishedAt)
	assert.Contains(t, string(items[0].Metrics), `"likes":50`)
	assert.Equal(t, "https://twitter.com/FabrizioRomano/status/101", items[0].OriginUrl)

	assert.Equal(t, 7, strategy.RemainingCalls())

	// Bearer token attached to every request.
	for _, req := range httpClient.requests {
		assert.Equal(t, "Bearer token", req.Header.Get("Authorization"))
	}
}

func TestAPIStrategyCachesUserIdLookups(t *testing.T) {
	clk := clock.NewFake(time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC))
	httpClient := &cannedHTTPClient{responses: map[string]*http.Response{
		"https://api.twitter.com/2/users/by/username/FabrizioRomano": jsonResponse(
			200, `{"data":{"id":"42","username":"FabrizioRomano"}}`, nil),
	}}
	strategy := NewAPIStrategy(httpClient, "token", clk)

	id, err := strategy.lookupUserId(context.Background(), "FabrizioRomano")
	require.NoError(t, err)
	assert.Equal(t, "42", id)

	_, err = strategy.lookupUserId(context.Background(), "FabrizioRomano")
	require.NoError(t, err)
	assert.Len(t, httpClient.requests, 1)
}

func TestAPIStrategyClassifiesStatuses(t *testing.T) {
	clk := clock.NewFake(time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC))

	cases := []struct {
		status int
		kind   ErrorKind
	}{
		{http.StatusTooManyRequests, KindRateLimited},
		{http.StatusUnauthorized, KindAuthRejected},
		{http.StatusForbidden, KindAuthRejected},
		{http.StatusBadGateway, KindBlocked},
	}

	for _, tc := range cases {
		httpClient := &cannedHTTPClient{responses: map[string]*http.Response{
			"https://api.twitter.com/2/users/by/username/FabrizioRomano": jsonResponse(tc.status, `{}`, nil),
		}}
		strategy := NewAPIStrategy(httpClient, "token", clk)

		_, err := strategy.Fetch(context.Background(), twitterSource(), 10, "")
		require.Error(t, err)
		acqErr, ok := err.(*AcquisitionError)
		require.True(t, ok)
		assert.Equal(t, tc.kind, acqErr.Kind, "status %d", tc.status)
	}
}

func TestRateWindowExpires(t *testing.T) {
	clk := clock.NewFake(time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC))
	strategy := NewAPIStrategy(&cannedHTTPClient{}, "token", clk)

	strategy.mu.Lock()
	strategy.window = RateWindow{Remaining: 0, ResetAt: clk.Now().Add(10 * time.Minute)}
	strategy.mu.Unlock()

	assert.Equal(t, 0, strategy.RemainingCalls())

	clk.Advance(11 * time.Minute)
	assert.Equal(t, -1, strategy.RemainingCalls())
}

func TestFeedStrategySkipsAlreadySeenEntries(t *testing.T) {
	clk := clock.NewFake(time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC))
	feedXML := `<?xml version="1.0"?>
<rss version="2.0"><channel><title>Transfer News</title>
<item><guid>e2</guid><title>Smith medical booked at Arsenal</title><link>https://example.com/2</link><pubDate>Fri, 09 Jan 2026 10:00:00 GMT</pubDate></item>
<item><guid>e1</guid><title>Arsenal open talks for Smith</title><link>https://example.com/1</link><pubDate>Thu, 08 Jan 2026 10:00:00 GMT</pubDate></item>
</channel></rss>`

	httpClient := &http.Client{Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
		return jsonResponse(200, feedXML, nil), nil
	})}
	strategy := NewFeedStrategy(httpClient, clk)

	source := model.Source{Id: "src-2", Handle: "transfer-feed", Kind: model.SourceKindFeed, FeedURL: "https://example.com/feed"}

	items, err := strategy.Fetch(context.Background(), source, 10, "e1")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "e2", items[0].ExternalId)
	assert.Contains(t, items[0].Text, "Smith medical booked")
}

type roundTripFunc func(req *http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}
