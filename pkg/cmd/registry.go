package cmd

import (
	"log/slog"

	file_write_action "github.com/dukex/watcher/pkg/actions/file_write"
	log_action "github.com/dukex/watcher/pkg/actions/log"
	"github.com/dukex/watcher/pkg/actions/publish"
	"github.com/dukex/watcher/pkg/actions/webhook"
	"github.com/dukex/watcher/pkg/eventbus"
	"github.com/dukex/watcher/pkg/inputs/httpinput"
	"github.com/dukex/watcher/pkg/inputs/none"
	"github.com/dukex/watcher/pkg/inputs/simple"
	"github.com/dukex/watcher/pkg/registry"
	"github.com/dukex/watcher/pkg/transforms/chain"
	"github.com/dukex/watcher/pkg/transforms/script"
)

func registerNativeActions(reg *registry.Registry, publisher eventbus.EventPublisher) {
	reg.RegisterAction(log_action.NewLogActionFactory())
	reg.RegisterAction(webhook.NewActionFactory())
	reg.RegisterAction(file_write_action.NewFileWriteActionFactory())

	if publisher != nil {
		reg.RegisterAction(publish.NewActionFactory(publisher))
	}
}

func registerNativeInputs(reg *registry.Registry, log *slog.Logger) {
	reg.RegisterInput(none.NewInputFactory())
	reg.RegisterInput(simple.NewInputFactory())
	reg.RegisterInput(httpinput.NewInputFactory(log))
}

func registerNativeTransforms(reg *registry.Registry) {
	reg.RegisterTransform(script.NewTransformFactory())
	reg.RegisterTransform(chain.NewTransformFactory(reg.CreateTransform))
}

// NewRegistry registers every built-in component. The publish action is only
// available when a publisher is given.
func NewRegistry(log *slog.Logger, publisher eventbus.EventPublisher) *registry.Registry {
	reg := registry.NewRegistry(log)

	registerNativeInputs(reg, log)
	registerNativeTransforms(reg)
	registerNativeActions(reg, publisher)

	return reg
}
