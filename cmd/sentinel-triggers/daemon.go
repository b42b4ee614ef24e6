package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/finwatch/sentinel/pkg/config"
	"github.com/finwatch/sentinel/pkg/engine"
	"github.com/finwatch/sentinel/pkg/triggers/queue"
	"github.com/finwatch/sentinel/pkg/triggers/schedule"
)

// Daemon hosts the trigger adapters: the cron-backed schedule poller and the
// optional Redis queue consumer. Both feed executions into the engine.
type Daemon struct {
	id        string
	engine    *engine.Engine
	scheduler *schedule.Scheduler
	queue     *queue.Trigger
	logger    *slog.Logger
}

func NewDaemon(
	id string,
	logger *slog.Logger,
	eng *engine.Engine,
	scheduler *schedule.Scheduler,
	cfg *config.Config,
) (*Daemon, error) {
	d := &Daemon{
		id:        id,
		engine:    eng,
		scheduler: scheduler,
		logger:    logger.With("module", "trigger_daemon"),
	}

	if cfg.Queue.Enabled {
		queueConfig := map[string]any{"queue": cfg.Queue.Queue}
		for k, v := range cfg.Queue.Configuration {
			queueConfig[k] = v
		}

		trigger, err := queue.NewTrigger(queueConfig, logger)
		if err != nil {
			return nil, err
		}

		d.queue = trigger
	}

	return d, nil
}

// Start runs the trigger adapters until the context is cancelled or a
// shutdown signal arrives.
func (d *Daemon) Start(ctx context.Context) error {
	dCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	d.logger.Info("Starting trigger daemon", "daemon_id", d.id)

	if err := d.scheduler.Start(dCtx, d.execute); err != nil {
		return err
	}

	if d.queue != nil {
		if err := d.queue.Start(dCtx, d.execute); err != nil {
			d.stopScheduler(dCtx)

			return err
		}
	}

	d.handleSignals(cancel)
	<-dCtx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer shutdownCancel()

	d.stopScheduler(shutdownCtx)

	if d.queue != nil {
		if err := d.queue.Stop(shutdownCtx); err != nil {
			d.logger.Error("Failed to stop queue trigger", "error", err)
		}
	}

	d.logger.Info("Trigger daemon stopped")

	return nil
}

func (d *Daemon) execute(ctx context.Context, policyID string, inputData map[string]any) error {
	trace, err := d.engine.ExecutePolicy(ctx, policyID, inputData)
	if err != nil {
		d.logger.ErrorContext(ctx, "Triggered execution failed to start",
			"policy_id", policyID, "error", err)

		return err
	}

	d.logger.InfoContext(ctx, "Triggered execution finished",
		"policy_id", policyID,
		"execution_id", trace.ExecutionID,
		"decision", trace.Decision,
	)

	return nil
}

func (d *Daemon) stopScheduler(ctx context.Context) {
	if err := d.scheduler.Stop(ctx); err != nil {
		d.logger.Error("Failed to stop scheduler", "error", err)
	}
}

func (d *Daemon) handleSignals(cancel context.CancelFunc) {
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-signals
		d.logger.Info("Received signal, shutting down gracefully", "signal", sig)
		cancel()
	}()
}
