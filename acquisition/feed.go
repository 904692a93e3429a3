package acquisition

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/araddon/dateparse"
	"github.com/mmcdole/gofeed"

	"github.com/Dean-Rough/transferjuice-sub005/clock"
	"github.com/Dean-Rough/transferjuice-sub005/model"
)

// FeedStrategy fetches RSS/Atom sources. Feed sources are single-strategy:
// there is no session/API split to fall back between.
type FeedStrategy struct {
	client *http.Client
	parser *gofeed.Parser
	clock  clock.Clock
}

func NewFeedStrategy(client *http.Client, clk clock.Clock) *FeedStrategy {
	if client == nil {
		client = &http.Client{}
	}
	return &FeedStrategy{
		client: client,
		parser: gofeed.NewParser(),
		clock:  clk,
	}
}

func (f *FeedStrategy) Kind() StrategyKind {
	return StrategyFeed
}

func (f *FeedStrategy) Fetch(ctx context.Context, source model.Source, maxItems int, sinceId string) ([]model.RawItem, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source.FeedURL, nil)
	if err != nil {
		return nil, newError(KindBlocked, f.Kind(), source.Handle, err)
	}

	res, err := f.client.Do(req)
	if err != nil {
		return nil, newError(classifyErr(err), f.Kind(), source.Handle, err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return nil, newError(classifyHTTPStatus(res.StatusCode), f.Kind(), source.Handle,
			fmt.Errorf("status %d", res.StatusCode))
	}

	feed, err := f.parser.Parse(res.Body)
	if err != nil {
		return nil, newError(KindBlocked, f.Kind(), source.Handle, err)
	}

	items := []model.RawItem{}
	for _, entry := range feed.Items {
		items = append(items, f.convertEntry(entry, source))
	}

	// Feeds don't guarantee ordering; normalize to newest first.
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].PublishedAt.After(items[j].PublishedAt)
	})

	cut := []model.RawItem{}
	for _, item := range items {
		if item.ExternalId == sinceId {
			break
		}
		cut = append(cut, item)
		if len(cut) >= maxItems {
			break
		}
	}
	return cut, nil
}

func (f *FeedStrategy) convertEntry(entry *gofeed.Item, source model.Source) model.RawItem {
	externalId := entry.GUID
	if externalId == "" {
		externalId = entry.Link
	}

	text := entry.Title
	if entry.Description != "" {
		text += ". " + entry.Description
	}

	publishedAt := f.clock.Now()
	if entry.PublishedParsed != nil {
		publishedAt = *entry.PublishedParsed
	} else if entry.Published != "" {
		// Feeds in the wild use every date format imaginable.
		if parsed, err := dateparse.ParseAny(entry.Published); err == nil {
			publishedAt = parsed
		}
	}

	return model.RawItem{
		ExternalId:  externalId,
		SourceID:    source.Id,
		Text:        strings.TrimSpace(text),
		PublishedAt: publishedAt.UTC(),
		FetchedAt:   f.clock.Now(),
		OriginUrl:   entry.Link,
	}
}
