// Package config holds the explicit configuration handed to each component at
// construction. Nothing here is read from process-wide state.
package config

import (
	"fmt"
	"runtime"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// ConcurrencyPolicy decides what happens when a watch fires while an earlier
// firing of the same watch is still in flight.
type ConcurrencyPolicy string

const (
	// ConcurrencyReject records the second firing as executed_multiple_times.
	ConcurrencyReject ConcurrencyPolicy = "reject"
	// ConcurrencyAllow lets both firings run.
	ConcurrencyAllow ConcurrencyPolicy = "allow"
)

// Engine configures the execution service.
type Engine struct {
	NodeID                string            `validate:"required"`
	PoolSize              int               `validate:"min=1"`
	QueueCapacity         int               `validate:"min=0"`
	DefaultThrottlePeriod time.Duration     `validate:"min=0"`
	ConcurrencyPolicy     ConcurrencyPolicy `validate:"oneof=reject allow"`
	DrainTimeout          time.Duration     `validate:"min=0"`
}

// DefaultEngine sizes the pool at five workers per CPU, capped at 50.
func DefaultEngine() Engine {
	return Engine{
		NodeID:                uuid.NewString(),
		PoolSize:              min(5*runtime.NumCPU(), 50),
		QueueCapacity:         1000,
		DefaultThrottlePeriod: 5 * time.Second,
		ConcurrencyPolicy:     ConcurrencyReject,
		DrainTimeout:          30 * time.Second,
	}
}

const (
	EventBusGoChannel = "gochannel"
	EventBusKafka     = "kafka"
)

// Server configures the HTTP API and its backends.
type Server struct {
	Port         int      `validate:"min=1,max=65535"`
	DatabaseURL  string   `validate:"required"`
	EventBus     string   `validate:"oneof=gochannel kafka"`
	KafkaBrokers []string `validate:"required_if=EventBus kafka"`
	HistoryLimit int      `validate:"min=1,max=1000"`
}

func DefaultServer() Server {
	return Server{
		Port:         9091,
		DatabaseURL:  "file://./data",
		EventBus:     EventBusGoChannel,
		HistoryLimit: 50,
	}
}

// Config is everything the run command needs.
type Config struct {
	Engine   Engine
	Server   Server
	LogLevel string `validate:"oneof=debug info warn error"`
}

func Default() Config {
	return Config{
		Engine:   DefaultEngine(),
		Server:   DefaultServer(),
		LogLevel: "info",
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks a struct against its validate tags.
func Validate(value any) error {
	err := validate.Struct(value)
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	return nil
}
