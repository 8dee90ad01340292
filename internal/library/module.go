package library

import (
	"context"
	"fmt"

	"github.com/spf13/viper"
	"go.uber.org/fx"

	"github.com/MrScripty/Pumas-Library-sub004/pkg/logging"
)

// ConfigKey is the viper key a Config is read from.
const ConfigKey = "library"

// Module wires a *Context from viper configuration and an injected
// logging.Interface, registering an fx.Lifecycle OnStop hook that calls
// Context.Close, the same wiring shape as pkg/logging.Module
// and pkg/hfhub's fx integration.
var Module fx.Option = fx.Provide(provideContext)

func provideContext(lc fx.Lifecycle, v *viper.Viper, log logging.Interface) (*Context, error) {
	var cfg Config
	if err := v.UnmarshalKey(ConfigKey, &cfg); err != nil {
		return nil, fmt.Errorf("reading library configuration: %w", err)
	}
	if cfg.SharedResourcesRoot == "" {
		return nil, fmt.Errorf("library configuration: shared_resources_root is required")
	}

	ctx, err := New(cfg, log)
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return ctx.Close()
		},
	})

	return ctx, nil
}
