package main

import (
	"context"
	"os"

	cli "github.com/urfave/cli/v3"

	"github.com/flowmesh/flowmesh/pkg/cmd"
	"github.com/flowmesh/flowmesh/pkg/config"
	"github.com/flowmesh/flowmesh/pkg/eventbus"
	"github.com/flowmesh/flowmesh/pkg/log"
	"github.com/flowmesh/flowmesh/pkg/otelhelper"
	"github.com/flowmesh/flowmesh/pkg/schedule"
	"github.com/flowmesh/flowmesh/pkg/services"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"

	gochannelfactory "github.com/flowmesh/flowmesh/pkg/channels/gochannel"
	kafkafactory "github.com/flowmesh/flowmesh/pkg/channels/kafka"
)

const defaultPort = 9091

func main() {
	logger := log.WithModule("api")

	root := &cli.Command{
		Name:                  "flowmesh-api",
		Usage:                 "Run the flowmesh workflow command API",
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
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to the flowmesh YAML configuration file",
				Sources: cli.EnvVars("FLOWMESH_CONFIG"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
			&cli.BoolFlag{
				Name:    "tracing",
				Usage:   "Enable OTLP trace export",
				Sources: cli.EnvVars("FLOWMESH_TRACING"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			logger.InfoContext(ctx, "Initializing flowmesh API")

			cfg := config.Default()

			if path := command.String("config"); path != "" {
				loaded, err := config.Load(path)
				if err != nil {
					return err
				}

				cfg = loaded
			}

			store, err := cmd.NewEventStore(ctx, logger, cfg.Store)
			if err != nil {
				return err
			}

			defer func() {
				if err := store.Close(ctx); err != nil {
					logger.ErrorContext(ctx, "Failed to close event store", "error", err)
				}
			}()

			r := cmd.NewRouter(logger, cfg.Router)
			service := services.NewWorkflowService(store, r, logger)

			if command.Bool("tracing") {
				tracer, err := otelhelper.NewTracer(ctx, "flowmesh-api")
				if err != nil {
					return err
				}

				service.WithTracer(tracer)
			}

			if cfg.Sweeper.Enabled {
				sweeper, err := schedule.NewSweeper(service, logger, cfg.Sweeper.Spec)
				if err != nil {
					return err
				}

				if err := sweeper.Start(ctx); err != nil {
					return err
				}
				defer sweeper.Stop()
			}

			if cfg.Bridge.Enabled {
				publisher, err := newBridgePublisher(cfg.Bridge)
				if err != nil {
					return err
				}

				forwarder, err := eventbus.NewForwarder(r, publisher, cfg.Bridge.Pattern, cfg.Bridge.Topic, logger)
				if err != nil {
					return err
				}

				go func() {
					if err := forwarder.Run(ctx); err != nil && ctx.Err() == nil {
						logger.ErrorContext(ctx, "Event forwarder stopped", "error", err)
					}
				}()
			}

			api := NewAPI(logger, service, r)

			return api.Start(command.Int("port"))
		},
	}

	if err := root.Run(context.Background(), os.Args); err != nil {
		panic(err)
	}
}

func newBridgePublisher(cfg config.BridgeConfig) (message.Publisher, error) {
	wmLogger := watermill.NewSlogLogger(log.WithModule("watermill"))

	switch cfg.Channel {
	case "kafka":
		publisher, _, err := kafkafactory.CreateChannel(wmLogger, "flowmesh-api", cfg.Brokers)

		return publisher, err
	default:
		publisher, _, err := gochannelfactory.CreateChannel(wmLogger)

		return publisher, err
	}
}
