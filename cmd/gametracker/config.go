package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/erazemk/gametracker/internal/config"
)

func newConfigCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and create configuration files",
	}

	cmd.AddCommand(&cobra.Command{
		Use:         "init <path>",
		Short:       "Write a sample configuration file",
		Args:        cobra.ExactArgs(1),
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.CreateSample(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", args[0])
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Load the configuration and report the effective settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			backend := "json files"
			if cfg.Storage.UseDatabase {
				backend = "database"
			}
			rows := [][]string{
				{"listen", cfg.Addr()},
				{"backend", backend},
				{"multi-user", yesNo(cfg.Auth.MultiUser)},
				{"limits", fmt.Sprintf("default %d, max %d", cfg.Limits.Default, cfg.Limits.Max)},
				{"github sync", yesNo(cfg.SyncEnabled())},
			}
			if !cfg.Storage.UseDatabase {
				rows = append(rows, []string{"games file", cfg.GamesPath()}, []string{"books file", cfg.BooksPath()})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Setting", "Value"}, rows, nil))
			fmt.Fprintln(cmd.OutOrStdout(), "Configuration is valid.")
			return nil
		},
	})

	return cmd
}
