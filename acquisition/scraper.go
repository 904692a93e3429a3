package acquisition

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"
	"time"

	twitterscraper "github.com/n0madic/twitter-scraper"
	"golang.org/x/time/rate"

	"github.com/Dean-Rough/transferjuice-sub005/clock"
	"github.com/Dean-Rough/transferjuice-sub005/model"
)

// timelineScraper is the slice of the twitter-scraper surface we depend on,
// kept narrow so tests can substitute canned timelines.
type timelineScraper interface {
	FetchTweets(user string, maxTweetsNbr int, cursor string) ([]*twitterscraper.Tweet, string, error)
}

// Sometimes Twitter returns shortened links directly in the text, in which
// case we want to remove them, e.g. "https://t.co/sIGZPDyx76".
var twitterLinkPattern = regexp.MustCompile(`https:\/\/t.co\/[A-Za-z0-9]*`)

// ScraperStrategy is the primary acquisition strategy: an authenticated
// browser-session scrape of the user timeline. Higher latency than the API
// and subject to anti-automation blocking, but no formal rate limit. Calls
// are paced with a limiter to stay under the blocking radar.
type ScraperStrategy struct {
	scraper timelineScraper
	limiter *rate.Limiter
	clock   clock.Clock
}

func NewScraperStrategy(clk clock.Clock) *ScraperStrategy {
	return &ScraperStrategy{
		scraper: twitterscraper.New(),
		// One timeline call every two seconds, with a small burst for the
		// start of a cycle.
		limiter: rate.NewLimiter(rate.Every(2*time.Second), 3),
		clock:   clk,
	}
}

// NewScraperStrategyWithClient is used by tests to inject a fake timeline.
func NewScraperStrategyWithClient(scraper timelineScraper, clk clock.Clock) *ScraperStrategy {
	return &ScraperStrategy{
		scraper: scraper,
		limiter: rate.NewLimiter(rate.Inf, 1),
		clock:   clk,
	}
}

func (s *ScraperStrategy) Kind() StrategyKind {
	return StrategyPrimary
}

func (s *ScraperStrategy) Fetch(ctx context.Context, source model.Source, maxItems int, sinceId string) ([]model.RawItem, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, newError(KindTimeout, s.Kind(), source.Handle, err)
	}

	// The scraper library doesn't take a context, so the call runs in its
	// own goroutine and we give up when the deadline expires.
	type fetchResult struct {
		tweets []*twitterscraper.Tweet
		err    error
	}
	resultCh := make(chan fetchResult, 1)
	go func() {
		tweets, _, err := s.scraper.FetchTweets(source.Handle, maxItems, "")
		resultCh <- fetchResult{tweets: tweets, err: err}
	}()

	var tweets []*twitterscraper.Tweet
	select {
	case <-ctx.Done():
		return nil, newError(KindTimeout, s.Kind(), source.Handle, ctx.Err())
	case res := <-resultCh:
		if res.err != nil {
			return nil, newError(classifyScrapeError(res.err), s.Kind(), source.Handle, res.err)
		}
		tweets = res.tweets
	}

	items := []model.RawItem{}
	for _, tweet := range tweets {
		if tweet.ID == sinceId {
			break
		}
		// Retweets and replies carry no first-hand information from the
		// monitored account.
		if tweet.IsRetweet || tweet.IsReply {
			continue
		}
		items = append(items, s.convertTweet(tweet, source))
		if len(items) >= maxItems {
			break
		}
	}
	return items, nil
}

func (s *ScraperStrategy) convertTweet(tweet *twitterscraper.Tweet, source model.Source) model.RawItem {
	metrics, _ := json.Marshal(map[string]int{
		"likes":    tweet.Likes,
		"retweets": tweet.Retweets,
		"replies":  tweet.Replies,
	})

	return model.RawItem{
		ExternalId:  tweet.ID,
		SourceID:    source.Id,
		Text:        removeTwitterLink(tweet.Text),
		PublishedAt: time.Unix(tweet.Timestamp, 0).UTC(),
		FetchedAt:   s.clock.Now(),
		Metrics:     metrics,
		MediaUrls:   strings.Join(tweet.Photos, ","),
		OriginUrl:   tweet.PermanentURL,
	}
}

func removeTwitterLink(content string) string {
	linkRemoved := twitterLinkPattern.ReplaceAllString(content, "")
	return strings.TrimSpace(strings.ReplaceAll(linkRemoved, "  ", " "))
}

// classifyScrapeError inspects the scraper error text. The library folds the
// HTTP layer away, so string matching is the best signal available.
func classifyScrapeError(err error) ErrorKind {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "429") || strings.Contains(msg, "rate limit"):
		return KindRateLimited
	case strings.Contains(msg, "401") || strings.Contains(msg, "403") || strings.Contains(msg, "forbidden"):
		return KindAuthRejected
	default:
		return classifyErr(err)
	}
}
