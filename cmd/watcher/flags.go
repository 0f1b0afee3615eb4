package main

import (
	cli "github.com/urfave/cli/v3"

	"github.com/dukex/watcher/pkg/config"
)

func logLevelFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "log-level",
		Usage:   "Log level (debug, info, warn, error)",
		Value:   "info",
		Sources: cli.EnvVars("LOG_LEVEL"),
	}
}

func engineFlags() []cli.Flag {
	defaults := config.DefaultEngine()

	return []cli.Flag{
		&cli.StringFlag{
			Name:    "node-id",
			Usage:   "Identifier of this node in records and lifecycle events (random when empty)",
			Sources: cli.EnvVars("NODE_ID"),
		},
		&cli.IntFlag{
			Name:    "pool-size",
			Usage:   "Number of watch execution workers",
			Value:   defaults.PoolSize,
			Sources: cli.EnvVars("POOL_SIZE"),
		},
		&cli.IntFlag{
			Name:    "queue-capacity",
			Usage:   "Maximum number of queued watch executions",
			Value:   defaults.QueueCapacity,
			Sources: cli.EnvVars("QUEUE_CAPACITY"),
		},
		&cli.DurationFlag{
			Name:    "default-throttle-period",
			Usage:   "Throttle period of watches without their own",
			Value:   defaults.DefaultThrottlePeriod,
			Sources: cli.EnvVars("DEFAULT_THROTTLE_PERIOD"),
		},
		&cli.StringFlag{
			Name:    "concurrency-policy",
			Usage:   "What to do when a watch fires while it is still running (reject, allow)",
			Value:   string(defaults.ConcurrencyPolicy),
			Sources: cli.EnvVars("CONCURRENCY_POLICY"),
		},
		&cli.DurationFlag{
			Name:    "drain-timeout",
			Usage:   "How long shutdown waits for running executions",
			Value:   defaults.DrainTimeout,
			Sources: cli.EnvVars("DRAIN_TIMEOUT"),
		},
	}
}

func serverFlags() []cli.Flag {
	defaults := config.DefaultServer()

	return []cli.Flag{
		&cli.IntFlag{
			Name:    "port",
			Aliases: []string{"p"},
			Usage:   "Port to run the API server on",
			Value:   defaults.Port,
			Sources: cli.EnvVars("PORT"),
		},
		databaseURLFlag(),
		&cli.StringFlag{
			Name:    "event-bus",
			Usage:   "Event bus type (gochannel, kafka)",
			Value:   defaults.EventBus,
			Sources: cli.EnvVars("EVENT_BUS_TYPE"),
		},
		&cli.StringSliceFlag{
			Name:    "kafka-brokers",
			Usage:   "Kafka brokers used when the event bus is kafka",
			Sources: cli.EnvVars("KAFKA_BROKERS"),
		},
		&cli.IntFlag{
			Name:    "history-limit",
			Usage:   "Maximum number of records returned by the history endpoint",
			Value:   defaults.HistoryLimit,
			Sources: cli.EnvVars("HISTORY_LIMIT"),
		},
		&cli.BoolFlag{
			Name:    "telemetry",
			Usage:   "Export traces and metrics over OTLP/HTTP",
			Sources: cli.EnvVars("TELEMETRY_ENABLED"),
		},
	}
}

func databaseURLFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "database-url",
		Usage:   "Database connection URL for persistence (file://, postgres://, redis://)",
		Value:   config.DefaultServer().DatabaseURL,
		Sources: cli.EnvVars("DATABASE_URL"),
	}
}

// configFromCommand reads the run configuration and validates it.
func configFromCommand(command *cli.Command) (config.Config, error) {
	cfg := config.Default()

	if nodeID := command.String("node-id"); nodeID != "" {
		cfg.Engine.NodeID = nodeID
	}

	cfg.Engine.PoolSize = command.Int("pool-size")
	cfg.Engine.QueueCapacity = command.Int("queue-capacity")
	cfg.Engine.DefaultThrottlePeriod = command.Duration("default-throttle-period")
	cfg.Engine.ConcurrencyPolicy = config.ConcurrencyPolicy(command.String("concurrency-policy"))
	cfg.Engine.DrainTimeout = command.Duration("drain-timeout")

	cfg.Server.Port = command.Int("port")
	cfg.Server.DatabaseURL = command.String("database-url")
	cfg.Server.EventBus = command.String("event-bus")
	cfg.Server.KafkaBrokers = command.StringSlice("kafka-brokers")
	cfg.Server.HistoryLimit = command.Int("history-limit")

	cfg.LogLevel = command.String("log-level")

	err := config.Validate(cfg)
	if err != nil {
		return config.Config{}, err
	}

	return cfg, nil
}
