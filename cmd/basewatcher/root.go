package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	githubadapter "github.com/ubq-testing/label-base-rate-watcher/internal/adapter/driven/github"
	"github.com/ubq-testing/label-base-rate-watcher/internal/config"
	"github.com/ubq-testing/label-base-rate-watcher/internal/domain/port/driven"
)

// newRootCommand creates the basewatcher command tree.
func newRootCommand() *cobra.Command {
	var (
		verbose bool
		envFile string
	)

	root := &cobra.Command{
		Use:   "basewatcher",
		Short: "Keep GitHub price labels in step with the organization base rate",
		Long: `basewatcher watches pushes to the organization bot configuration. When the
base rate multiplier changes it renames the price labels of every repository
in the organization and re-prices the open issues that carry them.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			level := slog.LevelInfo
			if verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

			return config.LoadEnvFile(envFile)
		},
	}

	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file with BASEWATCHER_* variables (ignored when missing)")

	root.AddCommand(
		newServeCommand(),
		newReconcileCommand(),
		newHealthcheckCommand(),
	)

	return root
}

// newGitHubClient is the client factory shared by every command.
func newGitHubClient(token string) driven.GitHubClient {
	return githubadapter.NewClient(token)
}
