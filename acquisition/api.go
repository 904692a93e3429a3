package acquisition

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Dean-Rough/transferjuice-sub005/clock"
	"github.com/Dean-Rough/transferjuice-sub005/model"
)

const (
	userLookupBaseUri = `https://api.twitter.com/2/users/by/username/%s`
	userTweetsBaseUri = `https://api.twitter.com/2/users/%s/tweets?max_results=%d&exclude=retweets,replies&tweet.fields=created_at,public_metrics`
)

// Typed response shapes for the Twitter V2 timeline endpoints.
type userLookupResponse struct {
	Data struct {
		ID       string `json:"id"`
		Username string `json:"username"`
	} `json:"data"`
}

type userTweetsResponse struct {
	Data []userTweetsResponseData `json:"data"`
	Meta struct {
		OldestID    string `json:"oldest_id"`
		NewestID    string `json:"newest_id"`
		ResultCount int    `json:"result_count"`
		NextToken   string `json:"next_token"`
	} `json:"meta"`
}

type userTweetsResponseData struct {
	ID            string `json:"id"`
	Text          string `json:"text"`
	CreatedAt     string `json:"created_at"`
	PublicMetrics struct {
		RetweetCount int `json:"retweet_count"`
		ReplyCount   int `json:"reply_count"`
		LikeCount    int `json:"like_count"`
		QuoteCount   int `json:"quote_count"`
	} `json:"public_metrics"`
}

// RateWindow is the API strategy's view of its rate-limit budget, taken from
// the x-rate-limit response headers.
type RateWindow struct {
	Remaining int
	ResetAt   time.Time
}

// HttpClient is the slice of http.Client we use, extracted for testing.
type HttpClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// APIStrategy is the secondary acquisition strategy: a thin wrapper upon
// http.Client making bearer-token requests to the Twitter V2 API. Low
// latency, strict rate limit window.
type APIStrategy struct {
	client      HttpClient
	bearerToken string
	clock       clock.Clock

	mu sync.Mutex
	// User id lookups are static information, cache them to avoid burning
	// the rate limit on repeat lookups.
	userIds map[string]string
	window  RateWindow
}

func NewAPIStrategy(client HttpClient, bearerToken string, clk clock.Clock) *APIStrategy {
	if client == nil {
		client = &http.Client{}
	}
	return &APIStrategy{
		client:      client,
		bearerToken: bearerToken,
		clock:       clk,
		userIds:     make(map[string]string),
		window:      RateWindow{Remaining: -1},
	}
}

func (a *APIStrategy) Kind() StrategyKind {
	return StrategySecondary
}

// RemainingCalls reports the remaining budget in the current rate window.
// Returns -1 when no window information has been observed yet. A window
// whose reset time has passed counts as replenished.
func (a *APIStrategy) RemainingCalls() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.window.Remaining >= 0 && a.clock.Now().After(a.window.ResetAt) {
		return -1
	}
	return a.window.Remaining
}

func (a *APIStrategy) Fetch(ctx context.Context, source model.Source, maxItems int, sinceId string) ([]model.RawItem, error) {
	userId, err := a.lookupUserId(ctx, source.Handle)
	if err != nil {
		return nil, err
	}

	// The endpoint rejects max_results below 5 and above 100.
	pageSize := maxItems
	if pageSize < 5 {
		pageSize = 5
	}
	if pageSize > 100 {
		pageSize = 100
	}
	url := fmt.Sprintf(userTweetsBaseUri, userId, pageSize)
	if sinceId != "" {
		url += "&since_id=" + sinceId
	}

	body, err := a.get(ctx, url, source.Handle)
	if err != nil {
		return nil, err
	}

	res := &userTweetsResponse{}
	if err := json.Unmarshal(body, res); err != nil {
		return nil, newError(KindBlocked, a.Kind(), source.Handle, err)
	}

	items := []model.RawItem{}
	for _, tweet := range res.Data {
		items = append(items, a.convertTweet(tweet, source))
		if len(items) >= maxItems {
			break
		}
	}
	return items, nil
}

func (a *APIStrategy) convertTweet(tweet userTweetsResponseData, source model.Source) model.RawItem {
	publishedAt, err := time.Parse(time.RFC3339, tweet.CreatedAt)
	if err != nil {
		publishedAt = a.clock.Now()
	}

	metrics, _ := json.Marshal(map[string]int{
		"likes":    tweet.PublicMetrics.LikeCount,
		"retweets": tweet.PublicMetrics.RetweetCount,
		"replies":  tweet.PublicMetrics.ReplyCount,
	})

	return model.RawItem{
		ExternalId:  tweet.ID,
		SourceID:    source.Id,
		Text:        removeTwitterLink(tweet.Text),
		PublishedAt: publishedAt.UTC(),
		FetchedAt:   a.clock.Now(),
		Metrics:     metrics,
		OriginUrl:   fmt.Sprintf("https://twitter.com/%s/status/%s", source.Handle, tweet.ID),
	}
}

func (a *APIStrategy) lookupUserId(ctx context.Context, handle string) (string, error) {
	a.mu.Lock()
	if id, ok := a.userIds[handle]; ok {
		a.mu.Unlock()
		return id, nil
	}
	a.mu.Unlock()

	body, err := a.get(ctx, fmt.Sprintf(userLookupBaseUri, handle), handle)
	if err != nil {
		return "", err
	}

	res := &userLookupResponse{}
	if err := json.Unmarshal(body, res); err != nil {
		return "", newError(KindBlocked, a.Kind(), handle, err)
	}
	if res.Data.ID == "" {
		return "", newError(KindBlocked, a.Kind(), handle, fmt.Errorf("user %s not found", handle))
	}

	a.mu.Lock()
	a.userIds[handle] = res.Data.ID
	a.mu.Unlock()
	return res.Data.ID, nil
}

func (a *APIStrategy) get(ctx context.Context, url string, sourceHandle string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, newError(KindBlocked, a.Kind(), sourceHandle, err)
	}
	req.Header.Add("Authorization", "Bearer "+a.bearerToken)

	res, err := a.client.Do(req)
	if err != nil {
		return nil, newError(classifyErr(err), a.Kind(), sourceHandle, err)
	}
	defer res.Body.Close()

	a.observeRateHeaders(res)

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, newError(KindBlocked, a.Kind(), sourceHandle, err)
	}

	if res.StatusCode != http.StatusOK {
		return nil, newError(classifyHTTPStatus(res.StatusCode), a.Kind(), sourceHandle,
			fmt.Errorf("status %d: %s", res.StatusCode, strings.TrimSpace(string(body))))
	}
	return body, nil
}

// observeRateHeaders records the rate-limit window the API reports with each
// response.
func (a *APIStrategy) observeRateHeaders(res *http.Response) {
	remaining := res.Header.Get("x-rate-limit-remaining")
	if remaining == "" {
		return
	}
	n, err := strconv.Atoi(remaining)
	if err != nil {
		return
	}

	window := RateWindow{Remaining: n}
	if reset := res.Header.Get("x-rate-limit-reset"); reset != "" {
		if epoch, err := strconv.ParseInt(reset, 10, 64); err == nil {
			window.ResetAt = time.Unix(epoch, 0)
		}
	}

	a.mu.Lock()
	a.window = window
	a.mu.Unlock()
}
