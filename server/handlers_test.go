package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dean-Rough/transferjuice-sub005/acquisition"
	"github.com/Dean-Rough/transferjuice-sub005/aggregator"
	"github.com/Dean-Rough/transferjuice-sub005/clock"
	"github.com/Dean-Rough/transferjuice-sub005/extractor"
	"github.com/Dean-Rough/transferjuice-sub005/ingest"
	"github.com/Dean-Rough/transferjuice-sub005/model"
	"github.com/Dean-Rough/transferjuice-sub005/reliability"
	"github.com/Dean-Rough/transferjuice-sub005/storage"
)

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	repo := storage.NewMemoryRepository()
	tracker := reliability.NewTracker(repo)
	real := clock.Real{}

	require.NoError(t, repo.UpsertSource(&model.Source{
		Id: "Romano", Handle: "Romano", DisplayName: "Fabrizio Romano",
		Kind: model.SourceKindTwitter, Reliability: 0.9, Active: true,
	}))
	tracker.Prime("Romano", 0.9)

	agg := aggregator.NewAggregator(repo, tracker, real)
	source := &model.Source{Id: "Romano", Handle: "Romano", DisplayName: "Fabrizio Romano"}
	item := &model.RawItem{Id: "raw-1", ExternalId: "t1", SourceID: "Romano"}
	ext := extractor.NewExtractor(nil)
	facts := ext.Extract("Arsenal agree £35m deal for Smith, medical Monday")
	_, err := agg.Ingest(source, item, facts)
	require.NoError(t, err)

	noop := &noopStrategy{}
	client := acquisition.NewClient(noop, noop, noop, nil, real)
	pipeline := ingest.NewPipeline(repo, client, ext, agg, tracker, real)

	router := gin.New()
	router.GET("/stories", StoriesHandler(pipeline))
	router.GET("/health", HealthHandler(pipeline))
	router.POST("/cycle", CycleHandler(pipeline))
	return router
}

type noopStrategy struct{}

func (s *noopStrategy) Kind() acquisition.StrategyKind { return acquisition.StrategyPrimary }

func (s *noopStrategy) Fetch(_ context.Context, _ model.Source, _ int, _ string) ([]model.RawItem, error) {
	return nil, nil
}

func TestStoriesEndpoint(t *testing.T) {
	router := newTestRouter(t)

	recorder := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodGet, "/stories?limit=5", nil)
	router.ServeHTTP(recorder, request)

	require.Equal(t, http.StatusOK, recorder.Code)

	var body struct {
		Stories []storyResponse `json:"stories"`
	}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &body))
	require.Len(t, body.Stories, 1)
	assert.Equal(t, "MEDICAL", body.Stories[0].Stage)
	assert.Contains(t, body.Stories[0].Players, "smith")
	assert.Contains(t, body.Stories[0].Sources, "Romano")
}

func TestHealthEndpoint(t *testing.T) {
	router := newTestRouter(t)

	recorder := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodGet, "/health", nil)
	router.ServeHTTP(recorder, request)

	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Contains(t, recorder.Body.String(), "sources")
}

func TestCycleEndpoint(t *testing.T) {
	router := newTestRouter(t)

	recorder := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodPost, "/cycle", nil)
	router.ServeHTTP(recorder, request)

	require.Equal(t, http.StatusOK, recorder.Code)

	var summary ingest.CycleSummary
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &summary))
	assert.NotNil(t, summary.Sources)
}
