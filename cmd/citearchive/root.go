package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/wiki-citation-archive/internal/app"
	"github.com/JakeFAU/wiki-citation-archive/internal/config"
)

// appKeyType is the key for storing the App in the command context.
type appKeyType string

const appKey appKeyType = "app"

// newApp is the application factory. Tests replace it to inject fakes.
var newApp = func(ctx context.Context, cfgPath, envFile string) (*app.App, error) {
	cfg, err := config.Load(cfgPath, envFile)
	if err != nil {
		return nil, err
	}
	return app.New(ctx, cfg, app.Options{})
}

func newRootCmd() *cobra.Command {
	var cfgPath, envFile string

	cmd := &cobra.Command{
		Use:   "citearchive",
		Short: "Measure how many Wikipedia citations are preserved in the Wayback Machine.",
		Long: `citearchive samples Wikipedia articles, cleans their external citation
links, asks the Wayback Machine availability API whether each link has an
archived snapshot, and reports coverage. The check stage is resumable: rerun
it after an interruption and it continues where the output store stops.`,
		SilenceUsage:  true,
		SilenceErrors: true,

		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context(), cfgPath, envFile)
			if err != nil {
				return fmt.Errorf("initialize: %w", err)
			}
			cmd.SetContext(context.WithValue(cmd.Context(), appKey, a))
			return nil
		},

		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if a, ok := cmd.Context().Value(appKey).(*app.App); ok && a != nil {
				a.Close()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&cfgPath, "config", "", "config file (YAML, JSON or TOML)")
	cmd.PersistentFlags().StringVar(&envFile, "env", ".env", "dotenv file loaded before the environment")

	cmd.AddCommand(
		newHarvestCmd(),
		newCleanCmd(),
		newCheckCmd(),
		newFinalizeCmd(),
		newReportCmd(),
	)
	return cmd
}

func resolveApp(ctx context.Context) (*app.App, error) {
	a, ok := ctx.Value(appKey).(*app.App)
	if !ok || a == nil {
		return nil, fmt.Errorf("application not initialized")
	}
	return a, nil
}

// runStage resolves the App and closes it when fn fails, since cobra skips
// PersistentPostRun after an error.
func runStage(cmd *cobra.Command, name string, fn func(context.Context, *app.App) error) error {
	a, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	if err := fn(cmd.Context(), a); err != nil {
		a.Logger().Error(name+" failed", zap.Error(err))
		a.Close()
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}
