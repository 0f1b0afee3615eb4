// Package cmd builds the components shared by the command-line entry points.
package cmd

import (
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"

	"github.com/dukex/watcher/pkg/channels/gochannel"
	"github.com/dukex/watcher/pkg/channels/kafka"
	"github.com/dukex/watcher/pkg/config"
	"github.com/dukex/watcher/pkg/eventbus"
)

const serviceName = "watcher"

func NewEventBus(server config.Server, logger *slog.Logger) (eventbus.EventBus, error) {
	watermillLogger := watermill.NewSlogLogger(logger)

	switch server.EventBus {
	case config.EventBusKafka:
		pub, sub, err := kafka.CreateChannel(watermillLogger, server.KafkaBrokers, serviceName)
		if err != nil {
			return nil, fmt.Errorf("failed to create Kafka pub/sub: %w", err)
		}

		return eventbus.NewWatermillEventBus(pub, sub), nil
	case config.EventBusGoChannel, "":
		pub, sub, err := gochannel.CreateChannel(watermillLogger)
		if err != nil {
			return nil, fmt.Errorf("failed to create in-process pub/sub: %w", err)
		}

		return eventbus.NewWatermillEventBus(pub, sub), nil
	default:
		return nil, fmt.Errorf("unsupported event bus provider: %s", server.EventBus)
	}
}
