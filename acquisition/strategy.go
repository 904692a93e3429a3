// Package acquisition fetches raw items for monitored sources. Each twitter
// source is served by two interchangeable strategies, an authenticated
// browser-session scrape (primary) and a bearer-token API call (secondary),
// with failure counting and automatic fallback between them. Feed sources
// are single-strategy.
package acquisition

import (
	"context"

	"github.com/Dean-Rough/transferjuice-sub005/model"
)

type StrategyKind string

const (
	StrategyPrimary   StrategyKind = "primary_session"
	StrategySecondary StrategyKind = "secondary_api"
	StrategyFeed      StrategyKind = "feed"
)

// Strategy acquires the newest items for one source, newest first. sinceId
// is the last external id already seen for the source; strategies stop
// emitting items once they reach it.
type Strategy interface {
	Kind() StrategyKind
	Fetch(ctx context.Context, source model.Source, maxItems int, sinceId string) ([]model.RawItem, error)
}
