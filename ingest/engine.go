package ingest

import (
	"context"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	Logger "github.com/Dean-Rough/transferjuice-sub005/utils/log"
)

const (
	// Cycle triggers published by the scheduler.
	TopicPendingCycle = "topic.pending_cycle"

	// Finished cycle summaries, consumed by the reporter.
	TopicCycleResult = "topic.cycle_result"

	gracefulRetryDelay = 3 * time.Second
)

// Module is one long-running part of the ingester daemon. Each module runs
// in its own goroutine for the lifetime of the engine.
type Module interface {
	// RunModule contains the module's logic. Its lifecycle is managed
	// through the passed context. Returning an error triggers a restart.
	RunModule(ctx context.Context) error

	// Name uniquely identifies the module instance.
	Name() string

	// Shutdown releases the module's resources during graceful shutdown.
	Shutdown()
}

// Engine manages shared resources and execution lifecycle of each module. It
// maintains a shared event bus. For now the bus is a golang channel
// implementation, but it could be substituted with a broker-backed one when
// the modules need to live in separate processes.
type Engine struct {
	Modules []Module

	ctx    context.Context
	cancel context.CancelFunc

	EventBus *gochannel.GoChannel
}

func NewEngine(ms []Module, ctx context.Context, cancel context.CancelFunc, e *gochannel.GoChannel) *Engine {
	return &Engine{
		Modules:  ms,
		ctx:      ctx,
		cancel:   cancel,
		EventBus: e,
	}
}

// Run executes all engine modules and blocks until all of them finish.
func (e *Engine) Run() {
	var wg sync.WaitGroup

	for idx := range e.Modules {
		wg.Add(1)
		go func(index int) {
			defer wg.Done()
			Logger.Log.Infof("start engine module %s", e.Modules[index].Name())
			runModuleWithGracefulRestart(e.ctx, e.Modules[index])
			Logger.Log.Infof("module %s finished execution", e.Modules[index].Name())
		}(idx)
	}

	wg.Wait()
}

func (e *Engine) Shutdown() {
	Logger.Log.Infoln("starting graceful shutdown process, goodbye!")
	e.cancel()

	var wg sync.WaitGroup
	for idx := range e.Modules {
		wg.Add(1)
		go func(index int) {
			defer wg.Done()
			e.Modules[index].Shutdown()
			Logger.Log.Infof("module %s shut down", e.Modules[index].Name())
		}(idx)
	}

	wg.Wait()
}

func runModuleWithGracefulRestart(ctx context.Context, module Module) {
	for {
		err := module.RunModule(ctx)
		if err == nil {
			return
		}
		Logger.Log.Errorf("module %s exited with error %v, retry in %s",
			module.Name(), err, gracefulRetryDelay)

		select {
		case <-ctx.Done():
			return
		case <-time.After(gracefulRetryDelay):
		}
	}
}
