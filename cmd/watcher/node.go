package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"

	"github.com/dukex/watcher/pkg/clock"
	"github.com/dukex/watcher/pkg/cmd"
	"github.com/dukex/watcher/pkg/condition"
	"github.com/dukex/watcher/pkg/config"
	"github.com/dukex/watcher/pkg/eventbus"
	"github.com/dukex/watcher/pkg/execution"
	"github.com/dukex/watcher/pkg/history"
	"github.com/dukex/watcher/pkg/otelhelper"
	"github.com/dukex/watcher/pkg/persistence"
	"github.com/dukex/watcher/pkg/trigger"
	"github.com/dukex/watcher/pkg/trigger/bus"
	"github.com/dukex/watcher/pkg/trigger/manual"
	"github.com/dukex/watcher/pkg/trigger/schedule"
	"github.com/dukex/watcher/pkg/watch"
)

const shutdownTimeout = 10 * time.Second

// node is one running watcher process: persistence, event bus, trigger
// engines, execution service and HTTP API.
type node struct {
	logger      *slog.Logger
	cfg         config.Config
	persistence persistence.Persistence
	eventBus    eventbus.EventBus
	store       *watch.Store
	service     *execution.Service
	manager     *trigger.Manager
	api         *API
	shutdowns   []otelhelper.Shutdown
}

func newNode(ctx context.Context, logger *slog.Logger, cfg config.Config, telemetry bool) (*node, error) {
	n := &node{logger: logger, cfg: cfg}

	err := n.build(ctx, telemetry)
	if err != nil {
		n.close(context.WithoutCancel(ctx))

		return nil, err
	}

	return n, nil
}

func (n *node) build(ctx context.Context, telemetry bool) error {
	var err error

	tracer := otel.Tracer("github.com/dukex/watcher")

	if telemetry {
		var shutdownTracer otelhelper.Shutdown

		tracer, shutdownTracer, err = otelhelper.NewTracer(ctx, "watcher")
		if err != nil {
			return fmt.Errorf("failed to initialize tracer: %w", err)
		}

		n.shutdowns = append(n.shutdowns, shutdownTracer)

		var shutdownMeter otelhelper.Shutdown

		shutdownMeter, err = otelhelper.NewMeterProvider(ctx, "watcher")
		if err != nil {
			return fmt.Errorf("failed to initialize meter provider: %w", err)
		}

		n.shutdowns = append(n.shutdowns, shutdownMeter)
	}

	metrics, err := otelhelper.NewExecutionMetrics(otelhelper.Meter())
	if err != nil {
		return err
	}

	n.persistence, err = cmd.NewPersistence(ctx, n.logger, n.cfg.Server.DatabaseURL)
	if err != nil {
		return err
	}

	n.eventBus, err = cmd.NewEventBus(n.cfg.Server, n.logger)
	if err != nil {
		return err
	}

	nodeID := n.cfg.Engine.NodeID
	n.store = watch.NewStore(n.logger, n.persistence).WithPublisher(n.eventBus, nodeID)

	components := cmd.NewRegistry(n.logger, n.eventBus)
	conditions := condition.NewDefaultRegistry()

	parser, err := watch.NewParser(conditions, components)
	if err != nil {
		return err
	}

	sink := history.NewMultiSink(n.logger,
		history.NewPersistenceSink(n.persistence),
		history.NewEventBusSink(n.eventBus),
	)

	n.service = execution.NewService(n.logger, n.cfg.Engine, n.store, conditions, components, sink,
		execution.WithTracer(tracer),
		execution.WithMetrics(metrics),
	)

	clk := clock.System()

	busEngine, err := bus.NewEngine(n.logger, clk, n.eventBus)
	if err != nil {
		return err
	}

	manualEngine := manual.NewEngine(n.logger, clk)

	n.manager = trigger.NewManager(n.logger, schedule.NewEngine(n.logger, clk), manualEngine, busEngine)

	err = n.manager.FollowWatchChanges(n.eventBus, n.store, nodeID)
	if err != nil {
		return err
	}

	n.api = NewAPI(ctx, n.logger, n.persistence, n.store, parser, n.service, n.manager, manualEngine, n.cfg.Server.HistoryLimit)

	return nil
}

// run loads the watches, starts every component and blocks until ctx is done
// or the HTTP server fails.
func (n *node) run(ctx context.Context) error {
	err := n.store.Load(ctx)
	if err != nil {
		return err
	}

	n.service.Start()
	n.manager.Load(n.store.All())

	err = n.manager.Start(ctx, trigger.NewAsyncListener(n.logger, n.service))
	if err != nil {
		return fmt.Errorf("failed to start trigger engines: %w", err)
	}

	err = n.eventBus.Subscribe(ctx)
	if err != nil {
		return fmt.Errorf("failed to subscribe to event bus: %w", err)
	}

	n.logger.InfoContext(ctx, "Watcher started",
		"node_id", n.cfg.Engine.NodeID, "port", n.cfg.Server.Port, "watches", n.store.Len())

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return n.api.Start(n.cfg.Server.Port)
	})

	g.Go(func() error {
		<-gctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()

		return n.api.Shutdown(shutdownCtx)
	})

	err = g.Wait()

	n.stop(context.WithoutCancel(ctx))

	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	return nil
}

// stop shuts the engines down before the service so no firing arrives while
// executions drain.
func (n *node) stop(ctx context.Context) {
	n.logger.InfoContext(ctx, "Shutting down watcher")

	err := n.manager.Stop(ctx)
	if err != nil {
		n.logger.ErrorContext(ctx, "Failed to stop trigger engines", "error", err)
	}

	err = n.service.Stop(ctx)
	if err != nil {
		n.logger.ErrorContext(ctx, "Failed to stop execution service", "error", err)
	}

	n.close(ctx)
}

func (n *node) close(ctx context.Context) {
	if n.eventBus != nil {
		err := n.eventBus.Close()
		if err != nil {
			n.logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
		}
	}

	if n.persistence != nil {
		err := n.persistence.Close(ctx)
		if err != nil {
			n.logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
		}
	}

	for _, shutdown := range n.shutdowns {
		err := shutdown(ctx)
		if err != nil {
			n.logger.ErrorContext(ctx, "Failed to shut down telemetry", "error", err)
		}
	}
}
