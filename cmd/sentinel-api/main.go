package main

import (
	"context"
	"os"

	cli "github.com/urfave/cli/v3"

	"github.com/finwatch/sentinel/pkg/cmd"
	"github.com/finwatch/sentinel/pkg/config"
	"github.com/finwatch/sentinel/pkg/log"
	"github.com/finwatch/sentinel/pkg/providers"
)

const defaultPort = 9091

func main() {
	command := &cli.Command{
		Name:                  "sentinel-api",
		Usage:                 "Create, manage and execute decision policies",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to run the API server on",
				Value:   defaultPort,
				Sources: cli.EnvVars("PORT"),
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
			&cli.StringFlag{
				Name:    "api-key",
				Usage:   "Require this X-API-Key header on all non-health endpoints",
				Value:   "",
				Sources: cli.EnvVars("API_KEY"),
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

			logger := log.WithModule("api")
			logger.InfoContext(ctx, "Initializing Sentinel API")

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

			tracer, err := cmd.NewTracer(ctx, logger, "sentinel-api", command.Bool("tracing"))
			if err != nil {
				return err
			}

			seedModels(ctx, logger, persist, cfg)

			api := NewAPI(
				logger,
				persist,
				eventBus,
				providers.NewHTTPInvoker(cfg.Providers, logger),
				tracer,
				cfg.AnomalyProvider,
				command.String("api-key"),
			)

			if err := api.Start(command.Int("port")); err != nil {
				logger.ErrorContext(ctx, "Failed to start API server", "error", err)
			}

			return nil
		},
	}

	if err := command.Run(context.Background(), os.Args); err != nil {
		panic(err)
	}
}
