// Package server exposes the pipeline's read surface over HTTP: ranked
// stories for the briefing assembler and source health for monitoring.
package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Dean-Rough/transferjuice-sub005/ingest"
	"github.com/Dean-Rough/transferjuice-sub005/model"
)

const (
	defaultWindow = 72 * time.Hour
	defaultLimit  = 20
	maxLimit      = 100
)

// storyResponse is the wire shape of one ranked story.
type storyResponse struct {
	Id              string    `json:"id"`
	Headline        string    `json:"headline"`
	Stage           string    `json:"stage"`
	Players         []string  `json:"players"`
	Clubs           []string  `json:"clubs"`
	FeeAmount       int64     `json:"fee_amount,omitempty"`
	FeeCurrency     string    `json:"fee_currency,omitempty"`
	Confidence      float64   `json:"confidence"`
	UpdateCount     int       `json:"update_count"`
	Sources         []string  `json:"sources"`
	AmbiguousFields []string  `json:"ambiguous_fields,omitempty"`
	LastUpdatedAt   time.Time `json:"last_updated_at"`
}

func toStoryResponse(story *model.Story) storyResponse {
	return storyResponse{
		Id:              story.Id,
		Headline:        story.Headline,
		Stage:           story.Stage.String(),
		Players:         story.PlayerList(),
		Clubs:           story.ClubList(),
		FeeAmount:       story.FeeAmount,
		FeeCurrency:     story.FeeCurrency,
		Confidence:      story.Confidence,
		UpdateCount:     story.UpdateCount,
		Sources:         story.DistinctSourceHandles(),
		AmbiguousFields: story.AmbiguousFieldList(),
		LastUpdatedAt:   story.LastUpdatedAt,
	}
}

// StoriesHandler serves ranked stories. Query params: "hours" for the
// trailing window, "limit" for the maximum count.
func StoriesHandler(pipeline *ingest.Pipeline) gin.HandlerFunc {
	return func(c *gin.Context) {
		window := defaultWindow
		if hours, err := strconv.Atoi(c.DefaultQuery("hours", "")); err == nil && hours > 0 {
			window = time.Duration(hours) * time.Hour
		}
		limit := defaultLimit
		if parsed, err := strconv.Atoi(c.DefaultQuery("limit", "")); err == nil && parsed > 0 {
			limit = parsed
		}
		if limit > maxLimit {
			limit = maxLimit
		}

		stories, err := pipeline.RankedStories(time.Now().Add(-window), limit)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		responses := make([]storyResponse, 0, len(stories))
		for _, story := range stories {
			responses = append(responses, toStoryResponse(story))
		}
		c.JSON(http.StatusOK, gin.H{"stories": responses})
	}
}

// HealthHandler serves per-source acquisition and reliability state.
func HealthHandler(pipeline *ingest.Pipeline) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"sources": pipeline.SourceHealth()})
	}
}

// CycleHandler triggers one ingest cycle on demand. Used by operators when
// waiting for the scheduler is not an option.
func CycleHandler(pipeline *ingest.Pipeline) gin.HandlerFunc {
	return func(c *gin.Context) {
		summary, err := pipeline.RunCycle(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, summary)
	}
}
