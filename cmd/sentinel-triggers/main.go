package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	cli "github.com/urfave/cli/v3"

	"github.com/finwatch/sentinel/pkg/abrouter"
	"github.com/finwatch/sentinel/pkg/cmd"
	"github.com/finwatch/sentinel/pkg/config"
	"github.com/finwatch/sentinel/pkg/engine"
	"github.com/finwatch/sentinel/pkg/log"
	"github.com/finwatch/sentinel/pkg/nodes"
	"github.com/finwatch/sentinel/pkg/providers"
	"github.com/finwatch/sentinel/pkg/registry"
	"github.com/finwatch/sentinel/pkg/triggers/schedule"
)

func main() {
	command := &cli.Command{
		Name:                  "sentinel-triggers",
		Usage:                 "Run the schedule and queue trigger daemon",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "daemon-id",
				Aliases: []string{"id"},
				Usage:   "Custom daemon ID (auto-generated if not provided)",
				Value:   "",
				Sources: cli.EnvVars("DAEMON_ID"),
			},
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for persistence",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus type (kafka, gochannel)",
				Value:   "gochannel",
				Sources: cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to the sentinel.yaml configuration file",
				Value:   "./sentinel.yaml",
				Sources: cli.EnvVars("SENTINEL_CONFIG"),
			},
			&cli.DurationFlag{
				Name:    "poll-interval",
				Usage:   "Schedule polling interval",
				Value:   10 * time.Second,
				Sources: cli.EnvVars("SCHEDULE_POLL_INTERVAL"),
			},
			&cli.BoolFlag{
				Name:    "tracing",
				Usage:   "Enable OpenTelemetry tracing",
				Sources: cli.EnvVars("OTEL_ENABLED"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			daemonID := command.String("daemon-id")
			if daemonID == "" {
				daemonID = fmt.Sprintf("triggers-%s", uuid.New().String()[:8])
			}

			logger := log.WithModule("triggers").With("daemon_id", daemonID)
			logger.InfoContext(ctx, "Initializing Sentinel trigger daemon")

			cfg := config.LoadOrDefault(command.String("config"))

			persist, err := cmd.NewPersistence(ctx, logger, command.String("database-url"))
			if err != nil {
				return err
			}

			defer func() {
				if err := persist.Close(ctx); err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			eventBus := cmd.NewEventBus(command.String("event-bus"), logger)
			defer func() {
				if err := eventBus.Close(); err != nil {
					logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
				}
			}()

			tracer, err := cmd.NewTracer(ctx, logger, "sentinel-triggers", command.Bool("tracing"))
			if err != nil {
				return err
			}

			invoker := providers.NewHTTPInvoker(cfg.Providers, logger)
			reg := registry.NewDefaultRegistry(logger, invoker, nodes.NewLogEffects(logger))
			router := abrouter.NewRouter(logger, persist.PolicyRepository())
			eng := engine.NewEngine(logger, persist, reg, router, eventBus, tracer)

			scheduler := schedule.NewScheduler(logger, persist.ScheduleRepository(), command.Duration("poll-interval"))

			daemon, err := NewDaemon(daemonID, logger, eng, scheduler, cfg)
			if err != nil {
				return err
			}

			return daemon.Start(ctx)
		},
	}

	if err := command.Run(context.Background(), os.Args); err != nil {
		panic(err)
	}
}
