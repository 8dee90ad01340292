// Command modellib is additive operator tooling over the library package:
// every subcommand is a thin wrapper around an internal/library.Context
// method, the same "one concrete entrypoint, no hidden state" shape the
// library facade itself follows.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/MrScripty/Pumas-Library-sub004/pkg/logging"
)

var (
	cfgSharedResourcesRoot string
	cfgAppConfigDir        string
	cfgHFEndpoint          string
)

var rootCmd = &cobra.Command{
	Use:   "modellib",
	Short: "Operate the shared model library",
	Long:  "modellib is a CLI over the shared model library: import, search, dependency resolution, application mapping, and filesystem watching.",
}

func main() {
	rootCmd.PersistentFlags().StringVar(&cfgSharedResourcesRoot, "shared-resources-root", os.Getenv("MODELLIB_SHARED_RESOURCES_ROOT"), "root directory holding models/, index/, cache/, downloads/")
	rootCmd.PersistentFlags().StringVar(&cfgAppConfigDir, "app-config-dir", os.Getenv("MODELLIB_APP_CONFIG_DIR"), "directory of per-application model-library-translation JSON configs")
	rootCmd.PersistentFlags().StringVar(&cfgHFEndpoint, "hf-endpoint", "", "override the HuggingFace Hub endpoint")

	rootCmd.AddCommand(
		newImportCommand(),
		newSearchCommand(),
		newResolveCommand(),
		newMapCommand(),
		newWatchCommand(),
		newStatusCommand(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		os.Exit(1)
	}
}

func newCLILogger() logging.Interface {
	v := viper.New()
	cfg, err := logging.NewConfig(logging.WithViperKey(v, logging.ConfigKey))
	if err != nil {
		return logging.NewTestLogger()
	}
	zapLogger, err := logging.NewLogger(cfg)
	if err != nil {
		return logging.NewTestLogger()
	}
	return logging.ForZap(zapLogger)
}
