package ingest

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dean-Rough/transferjuice-sub005/acquisition"
	"github.com/Dean-Rough/transferjuice-sub005/model"
)

func newTestBus() *gochannel.GoChannel {
	return gochannel.NewGoChannel(
		gochannel.Config{OutputChannelBuffer: 100},
		watermill.NewStdLogger(false, false),
	)
}

func TestSchedulerPublishesTriggerImmediately(t *testing.T) {
	bus := newTestBus()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	messages, err := bus.Subscribe(ctx, TopicPendingCycle)
	require.NoError(t, err)

	scheduler := NewScheduler(SchedulerConfig{Name: "scheduler", Interval: time.Hour}, bus)
	go scheduler.RunModule(ctx)

	select {
	case msg := <-messages:
		msg.Ack()
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler never published a cycle trigger")
	}
}

func TestOrchestratorRunsCycleAndPublishesSummary(t *testing.T) {
	primary := &stubStrategy{
		kind: acquisition.StrategyPrimary,
		items: map[string][]model.RawItem{
			"Romano": {tweet("t1", "Romano", "Arsenal agree £35m deal for Smith")},
		},
	}
	pipeline, repo, tracker, _ := newTestPipeline(t, primary)
	seedSource(t, repo, tracker, "Romano", 0.9)

	bus := newTestBus()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	results, err := bus.Subscribe(ctx, TopicCycleResult)
	require.NoError(t, err)

	orchestrator := NewOrchestrator(OrchestratorConfig{Name: "orchestrator"}, pipeline, bus)
	go orchestrator.RunModule(ctx)

	// Give the orchestrator a moment to subscribe before triggering.
	time.Sleep(100 * time.Millisecond)
	trigger := message.NewMessage(watermill.NewUUID(), []byte("now"))
	require.NoError(t, bus.Publish(TopicPendingCycle, trigger))

	select {
	case msg := <-results:
		msg.Ack()
		summary := CycleSummary{}
		require.NoError(t, json.Unmarshal(msg.Payload, &summary))
		assert.Equal(t, 1, summary.StoriesCreated)
	case <-time.After(10 * time.Second):
		t.Fatal("orchestrator never published a cycle summary")
	}
}

func TestReportCycleSummaryHandlesNilClient(t *testing.T) {
	reportCycleSummary(&CycleSummary{
		StoriesCreated: 1,
		Sources:        map[string]SourceOutcome{"x": {Error: "down"}},
	}, nil)
}
