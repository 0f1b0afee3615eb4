package log_action

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dukex/watcher/pkg/log"
	"github.com/dukex/watcher/pkg/protocol"
	"github.com/dukex/watcher/pkg/template"
)

func NewLogActionFactory() *LogActionFactory {
	return &LogActionFactory{}
}

type LogActionFactory struct {
}

func (*LogActionFactory) ID() string {
	return "log"
}

func (f *LogActionFactory) Create(config map[string]any) (protocol.Action, error) {
	return NewLogAction(config)
}

// LogAction writes a rendered message to the engine log.
type LogAction struct {
	Message string
	Level   string

	message *template.Template
}

func NewLogAction(config map[string]any) (*LogAction, error) {
	message, _ := config["message"].(string)

	level, _ := config["level"].(string)
	if level == "" {
		level = "info"
	}

	tmpl, err := template.Compile("message", message)
	if err != nil {
		return nil, fmt.Errorf("invalid message template: %w", err)
	}

	return &LogAction{Message: message, Level: level, message: tmpl}, nil
}

func (a *LogAction) Execute(ctx context.Context, model map[string]any, logger *slog.Logger) (any, error) {
	message, err := a.message.RenderString(model)
	if err != nil {
		return nil, err
	}

	logger.With("action_type", "log").Log(ctx, log.ParseLevel(a.Level), message)

	return map[string]any{"message": message, "level": a.Level}, nil
}

func (a *LogAction) Simulate(_ context.Context, model map[string]any) (any, error) {
	message, err := a.message.RenderString(model)
	if err != nil {
		return nil, err
	}

	return map[string]any{"message": message, "level": a.Level}, nil
}
