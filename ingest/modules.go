package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/DataDog/datadog-go/statsd"
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	Logger "github.com/Dean-Rough/transferjuice-sub005/utils/log"
)

type SchedulerConfig struct {
	Name string

	// How often a cycle is triggered. Transfer news moves on an hourly
	// cadence at most, polling harder mostly burns rate limit.
	Interval time.Duration
}

// Scheduler publishes a cycle trigger onto the event bus on a fixed cadence.
// The first trigger fires immediately on startup.
type Scheduler struct {
	Config SchedulerConfig

	EventBus *gochannel.GoChannel
}

func NewScheduler(config SchedulerConfig, e *gochannel.GoChannel) *Scheduler {
	if config.Interval <= 0 {
		config.Interval = time.Hour
	}
	return &Scheduler{
		Config:   config,
		EventBus: e,
	}
}

func (s *Scheduler) RunModule(ctx context.Context) error {
	ticker := time.NewTicker(s.Config.Interval)
	defer ticker.Stop()

	for {
		msg := message.NewMessage(watermill.NewUUID(), []byte(time.Now().UTC().Format(time.RFC3339)))
		if err := s.EventBus.Publish(TopicPendingCycle, msg); err != nil {
			return err
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) Name() string {
	return s.Config.Name
}

func (s *Scheduler) Shutdown() {}

type OrchestratorConfig struct {
	Name string
}

// Orchestrator listens for cycle triggers, runs the pipeline and publishes
// each cycle's summary for the reporter.
type Orchestrator struct {
	Config OrchestratorConfig

	pipeline *Pipeline

	EventBus *gochannel.GoChannel
}

func NewOrchestrator(config OrchestratorConfig, pipeline *Pipeline, e *gochannel.GoChannel) *Orchestrator {
	return &Orchestrator{
		Config:   config,
		pipeline: pipeline,
		EventBus: e,
	}
}

func (o *Orchestrator) publishSummary(summary *CycleSummary) error {
	data, err := json.Marshal(summary)
	if err != nil {
		return err
	}
	msg := message.NewMessage(watermill.NewUUID(), data)
	return o.EventBus.Publish(TopicCycleResult, msg)
}

func (o *Orchestrator) RunModule(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	messages, err := o.EventBus.Subscribe(ctx, TopicPendingCycle)
	if err != nil {
		return err
	}

	for msg := range messages {
		msg.Ack()

		summary, err := o.pipeline.RunCycle(ctx)
		if err != nil {
			// Only total infrastructure failure lands here. Surface it and
			// let the engine restart the module.
			return err
		}
		Logger.Log.Infof("cycle finished: %d created, %d updated, %d skipped",
			summary.StoriesCreated, summary.StoriesUpdated, summary.ItemsSkipped)

		if err := o.publishSummary(summary); err != nil {
			Logger.Log.Errorf("fail to publish cycle summary, error: %s", err)
		}
	}

	return nil
}

func (o *Orchestrator) Name() string {
	return o.Config.Name
}

func (o *Orchestrator) Shutdown() {}

type ReporterConfig struct {
	Name string
}

// Reporter listens to cycle results and forwards metrics to Datadog for
// monitoring.
type Reporter struct {
	Config ReporterConfig

	Statsd *statsd.Client

	EventBus *gochannel.GoChannel
}

func NewReporter(config ReporterConfig, statsd *statsd.Client, e *gochannel.GoChannel) *Reporter {
	return &Reporter{
		Config:   config,
		Statsd:   statsd,
		EventBus: e,
	}
}

func reportCycleSummary(summary *CycleSummary, client *statsd.Client) {
	if client == nil {
		return
	}

	count := func(metric string, value int64, tags []string) {
		if err := client.Count(metric, value, tags, 1); err != nil {
			Logger.Log.Infoln("cannot report metric", metric)
		}
	}

	count("ingest.stories.created", int64(summary.StoriesCreated), nil)
	count("ingest.stories.updated", int64(summary.StoriesUpdated), nil)
	count("ingest.items.skipped", int64(summary.ItemsSkipped), nil)

	for handle, outcome := range summary.Sources {
		tags := []string{fmt.Sprintf("source:%s", handle)}
		count("ingest.items.fetched", int64(outcome.ItemsFetched), tags)
		if outcome.Error != "" {
			count("ingest.source.failure", 1, tags)
		}
	}
}

func (r *Reporter) RunModule(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	messages, err := r.EventBus.Subscribe(ctx, TopicCycleResult)
	if err != nil {
		return err
	}

	for msg := range messages {
		msg.Ack()

		summary := CycleSummary{}
		if err := json.Unmarshal(msg.Payload, &summary); err != nil {
			Logger.Log.Errorf("fail to decode cycle summary, error: %s", err)
			continue
		}
		reportCycleSummary(&summary, r.Statsd)
	}

	return nil
}

func (r *Reporter) Name() string {
	return r.Config.Name
}

func (r *Reporter) Shutdown() {}
