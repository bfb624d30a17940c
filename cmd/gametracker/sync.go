package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/erazemk/gametracker/internal/ghsync"
	"github.com/erazemk/gametracker/internal/model"
)

func newSyncCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Mirror the JSON data files to GitHub",
	}
	cmd.AddCommand(newSyncTransferCommand(ctx, "pull", "Replace local data files with the GitHub copies"))
	cmd.AddCommand(newSyncTransferCommand(ctx, "push", "Upload local data files to GitHub"))
	cmd.AddCommand(newSyncStatusCommand(ctx))
	return cmd
}

// withSyncer runs fn with the configured syncer and open file stores.
func withSyncer(ctx *commandContext, fn func(*backend, *ghsync.Syncer) error) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	if !cfg.SyncEnabled() {
		return errors.New("github sync is not configured (set GITHUB_TOKEN and GITHUB_REPO)")
	}
	b, err := openBackend(cfg, false)
	if err != nil {
		return err
	}
	defer b.Close()
	return fn(b, b.syncer)
}

func newSyncTransferCommand(ctx *commandContext, op, short string) *cobra.Command {
	return &cobra.Command{
		Use:       op + " [games|books]",
		Short:     short,
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{"games", "books"},
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSyncer(ctx, func(b *backend, s *ghsync.Syncer) error {
				kinds := s.Kinds()
				if len(args) == 1 {
					kind, err := model.ParseKind(args[0])
					if err != nil {
						return err
					}
					kinds = []model.Kind{kind}
				}

				var errs []error
				for _, kind := range kinds {
					var err error
					if op == "pull" {
						err = s.Pull(cmd.Context(), kind)
					} else {
						err = s.Push(cmd.Context(), kind)
					}
					if err != nil {
						errs = append(errs, fmt.Errorf("%s %s: %w", op, kind.Plural(), err))
						continue
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%s %s: ok\n", op, kind.Plural())
				}
				return errors.Join(errs...)
			})
		},
	}
}

func newSyncStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the GitHub copy of each data file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSyncer(ctx, func(b *backend, s *ghsync.Syncer) error {
				var rows [][]string
				for _, st := range s.Status(cmd.Context()) {
					updated := ""
					if st.LastGitHubUpdate != nil {
						updated = st.LastGitHubUpdate.Local().Format("2006-01-02 15:04")
					}
					rows = append(rows, []string{
						st.Kind.Plural(),
						st.Repo + "@" + st.Branch,
						st.FilePath,
						yesNo(st.GitHubFileExists),
						updated,
						st.Error,
					})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"Kind", "Repository", "Path", "Exists", "Last update", "Error"},
					rows, nil,
				))
				return nil
			})
		},
	}
}
