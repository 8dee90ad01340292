package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/MrScripty/Pumas-Library-sub004/internal/importer"
	"github.com/MrScripty/Pumas-Library-sub004/internal/library"
	"github.com/MrScripty/Pumas-Library-sub004/internal/resolver"
)

func newLibraryContext() (*library.Context, error) {
	if cfgSharedResourcesRoot == "" {
		return nil, fmt.Errorf("--shared-resources-root (or MODELLIB_SHARED_RESOURCES_ROOT) is required")
	}
	cfg := library.Config{
		SharedResourcesRoot: cfgSharedResourcesRoot,
		AppConfigDir:        cfgAppConfigDir,
		HFEndpoint:          cfgHFEndpoint,
	}
	return library.New(cfg, newCLILogger())
}

func printJSON(v interface{}) error {
	enc, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(enc))
	return nil
}

func newImportCommand() *cobra.Command {
	var family, name, modelType string

	cmd := &cobra.Command{
		Use:   "import [paths...]",
		Short: "Import local files or directories into the canonical model tree",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			lc, err := newLibraryContext()
			if err != nil {
				return err
			}
			defer lc.Close()

			outcomes, err := lc.ImportModel(args, importer.Hints{Family: family, Name: name, ModelType: modelType})
			if err != nil {
				return err
			}
			return printJSON(outcomes)
		},
	}

	cmd.Flags().StringVar(&family, "family", "", "override the detected model family")
	cmd.Flags().StringVar(&name, "name", "", "override the detected model name")
	cmd.Flags().StringVar(&modelType, "model-type", "", "override the detected model type")
	return cmd
}

func newSearchCommand() *cobra.Command {
	var modelType string
	var limit, offset int

	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Full-text search the catalog, or list it when query is empty",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			lc, err := newLibraryContext()
			if err != nil {
				return err
			}
			defer lc.Close()

			query := ""
			if len(args) == 1 {
				query = args[0]
			}
			if query == "" {
				results, err := lc.ListModels(modelType, limit, offset)
				if err != nil {
					return err
				}
				return printJSON(results)
			}
			results, err := lc.SearchModelsFTS(query, modelType, limit, offset)
			if err != nil {
				return err
			}
			return printJSON(results)
		},
	}

	cmd.Flags().StringVar(&modelType, "model-type", "", "restrict to one model type")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum rows returned")
	cmd.Flags().IntVar(&offset, "offset", 0, "rows to skip")
	return cmd
}

func newResolveCommand() *cobra.Command {
	var backendKey, platform string

	cmd := &cobra.Command{
		Use:   "resolve [model-id]",
		Short: "Resolve the dependency bindings attached to a model",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			lc, err := newLibraryContext()
			if err != nil {
				return err
			}
			defer lc.Close()

			resp, err := lc.ResolveDependencies(resolver.Context{
				ModelID:     args[0],
				BackendKey:  backendKey,
				PlatformKey: platform,
			})
			if err != nil {
				return err
			}
			return printJSON(resp)
		},
	}

	cmd.Flags().StringVar(&backendKey, "backend", "", "preferred backend key")
	cmd.Flags().StringVar(&platform, "platform", "", "platform selector (e.g. linux/amd64+cuda12)")
	return cmd
}

func newMapCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "map",
		Short: "Compute and apply application link mappings",
	}

	var appID, versionTag string

	dryRun := &cobra.Command{
		Use:   "dry-run",
		Short: "Compute the link plan without touching disk",
		RunE: func(cmd *cobra.Command, args []string) error {
			lc, err := newLibraryContext()
			if err != nil {
				return err
			}
			defer lc.Close()

			plan, err := lc.DryRunMapping(appID, versionTag)
			if err != nil {
				return err
			}
			if warnings := lc.GetCrossFilesystemWarning(plan); len(warnings) > 0 {
				fmt.Fprintln(cmd.ErrOrStderr(), strings.Join(warnings, "\n"))
			}
			return printJSON(plan)
		},
	}

	apply := &cobra.Command{
		Use:   "apply",
		Short: "Apply the mapping for the given application version",
		RunE: func(cmd *cobra.Command, args []string) error {
			lc, err := newLibraryContext()
			if err != nil {
				return err
			}
			defer lc.Close()

			outcomes, err := lc.RefreshModelMappings(appID, versionTag)
			if err != nil {
				return err
			}
			return printJSON(outcomes)
		},
	}

	heal := &cobra.Command{
		Use:   "heal",
		Short: "Repair or prune broken links across every registered application",
		RunE: func(cmd *cobra.Command, args []string) error {
			lc, err := newLibraryContext()
			if err != nil {
				return err
			}
			defer lc.Close()

			outcomes, err := lc.GetLinkHealth()
			if err != nil {
				return err
			}
			return printJSON(outcomes)
		},
	}

	for _, sub := range []*cobra.Command{dryRun, apply, heal} {
		sub.Flags().StringVar(&appID, "app-id", "", "application identifier")
		sub.Flags().StringVar(&versionTag, "app-version", "", "application version tag")
		cmd.AddCommand(sub)
	}
	return cmd
}

func newWatchCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Block, reindexing models as the canonical tree changes on disk",
		RunE: func(cmd *cobra.Command, args []string) error {
			lc, err := newLibraryContext()
			if err != nil {
				return err
			}
			defer lc.Close()

			if err := lc.Watcher.Start(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "watching for changes, press Ctrl+C to stop")
			<-cmd.Context().Done()
			return nil
		},
	}
}

func newStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Report catalog size and total bytes under management",
		RunE: func(cmd *cobra.Command, args []string) error {
			lc, err := newLibraryContext()
			if err != nil {
				return err
			}
			defer lc.Close()

			status, err := lc.GetLibraryStatus()
			if err != nil {
				return err
			}
			return printJSON(status)
		},
	}
}
