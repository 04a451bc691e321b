package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"text/tabwriter"

	"github.com/spf13/cobra"

	sqliteadapter "github.com/ubq-testing/label-base-rate-watcher/internal/adapter/driven/sqlite"
	"github.com/ubq-testing/label-base-rate-watcher/internal/application"
	"github.com/ubq-testing/label-base-rate-watcher/internal/config"
	"github.com/ubq-testing/label-base-rate-watcher/internal/domain/model"
	"github.com/ubq-testing/label-base-rate-watcher/internal/domain/port/driven"
)

type reconcileOptions struct {
	org          string
	from         float64
	to           float64
	settingsPath string
	assistive    bool
	noRecord     bool
}

func newReconcileCommand() *cobra.Command {
	var opts reconcileOptions

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Re-price an organization's labels for an explicit base rate change",
		Long: `Run the label reconciliation for every repository in an organization,
as if the base rate had just changed from --from to --to. Use it to finish a
run that was interrupted or rate limited.`,
		Example: `  basewatcher reconcile --org ubiquity --from 1 --to 2
  basewatcher reconcile --org ubiquity --to 1.5 --assistive`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runReconcile(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.org, "org", "", "organization to reconcile")
	cmd.Flags().Float64Var(&opts.from, "from", 0, "previous base rate multiplier (omit when there was none)")
	cmd.Flags().Float64Var(&opts.to, "to", 0, "new base rate multiplier")
	cmd.Flags().StringVar(&opts.settingsPath, "settings", "", "bot settings file (defaults to BASEWATCHER_SETTINGS_PATH)")
	cmd.Flags().BoolVar(&opts.assistive, "assistive", false, "force assistive pricing on")
	cmd.Flags().BoolVar(&opts.noRecord, "no-record", false, "do not record the run in the database")
	_ = cmd.MarkFlagRequired("org")
	_ = cmd.MarkFlagRequired("to")

	return cmd
}

func runReconcile(cmd *cobra.Command, opts reconcileOptions) error {
	ctx := cmd.Context()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if !cfg.HasGitHubToken() {
		return errors.New("BASEWATCHER_GITHUB_TOKEN is required for reconcile")
	}

	settingsPath := cfg.SettingsPath
	if opts.settingsPath != "" {
		settingsPath = opts.settingsPath
	}
	settings, err := config.LoadSettings(settingsPath)
	if err != nil {
		return err
	}
	if opts.assistive {
		settings.Features.AssistivePricing = true
	}

	rates := model.Rates{NewBaseRate: model.Float64Ptr(opts.to)}
	if cmd.Flags().Changed("from") {
		rates.PreviousBaseRate = model.Float64Ptr(opts.from)
	}

	var runs driven.RunStore
	if !opts.noRecord {
		db, err := sqliteadapter.NewDB(ctx, cfg.DBPath)
		if err != nil {
			return err
		}
		defer func() {
			if closeErr := db.Close(); closeErr != nil {
				slog.Error("error closing database", "error", closeErr)
			}
		}()
		if err := sqliteadapter.RunMigrations(db.Writer); err != nil {
			return err
		}
		runs = sqliteadapter.NewRunRepo(db)
	}

	trigger := application.NewTrigger(newGitHubClient(cfg.GitHubToken), runs, slog.Default())
	report, err := trigger.Reconcile(ctx, opts.org, rates, settings)
	if printErr := printReport(cmd.OutOrStdout(), report); printErr != nil {
		return printErr
	}
	if err != nil {
		return fmt.Errorf("reconcile %s: %w", opts.org, err)
	}
	return nil
}

// printReport writes one line per repository followed by a status tally.
func printReport(w io.Writer, report application.BatchReport) error {
	if len(report.Outcomes) == 0 {
		_, err := fmt.Fprintln(w, "nothing to reconcile")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "REPOSITORY\tSTATUS\tCREATED\tUPDATED\tDELETED\tISSUES\tREASON")
	for _, o := range report.Outcomes {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%d\t%s\n",
			o.Repository, o.Status, o.LabelsCreated, o.LabelsUpdated, o.LabelsDeleted, o.IssuesRelabelled, o.Reason)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	_, err := fmt.Fprintf(w, "\n%d done, %d skipped, %d rate limited, %d pending\n",
		report.Count(model.RepoStatusDone),
		report.Count(model.RepoStatusSkipped),
		report.Count(model.RepoStatusRateLimited),
		report.Count(model.RepoStatusPending),
	)
	return err
}
