package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/wiki-citation-archive/internal/app"
)

func newHarvestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "harvest",
		Short: "Collect external citation links from sampled Wikipedia articles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStage(cmd, "harvest", func(ctx context.Context, a *app.App) error {
				_, err := a.Harvest(ctx)
				return err
			})
		},
	}
}

func newCleanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clean",
		Short: "Normalize harvested links and split off existing archive links",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStage(cmd, "clean", func(ctx context.Context, a *app.App) error {
				_, _, err := a.Clean(ctx)
				return err
			})
		},
	}
}

func newCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Look up every pending link in the Wayback Machine, resuming from the output store",
		Long: `check reads the non-archive work list, skips links already present in
the output store, and appends one row per remaining link. Progress is synced
to disk every runner.flush_every rows. Interrupt it at any time and rerun the
same command to continue.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStage(cmd, "check", func(ctx context.Context, a *app.App) error {
				_, err := a.Check(ctx)
				return err
			})
		},
	}
}

func newFinalizeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "finalize",
		Short: "Deduplicate and normalize the archive status table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStage(cmd, "finalize", func(ctx context.Context, a *app.App) error {
				_, err := a.Finalize(ctx)
				return err
			})
		},
	}
}

func newReportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "report",
		Short: "Print archive coverage by category, domain, TLD and snapshot year",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStage(cmd, "report", func(ctx context.Context, a *app.App) error {
				_, err := a.Report(ctx)
				return err
			})
		},
	}
}
