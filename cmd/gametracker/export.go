package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/erazemk/gametracker/internal/export"
)

func newExportCommand(ctx *commandContext) *cobra.Command {
	var user, format, dir string
	var noGames, noBooks bool
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write items to a JSON, CSV or XLSX file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := export.ParseFormat(format)
			if err != nil {
				return err
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			b, err := openBackend(cfg, false)
			if err != nil {
				return err
			}
			defer b.Close()

			ownerID, username, err := b.owner(cmd.Context(), user)
			if err != nil {
				return err
			}

			e := &export.Export{Username: username, ExportedAt: time.Now()}
			for _, s := range b.stores() {
				if (s == b.games && noGames) || (s == b.books && noBooks) {
					continue
				}
				items, err := s.ListAll(cmd.Context(), ownerID)
				if err != nil {
					return err
				}
				e.Datasets = append(e.Datasets, export.Dataset{Kind: s.Kind(), Items: items})
			}
			if len(e.Datasets) == 0 {
				return fmt.Errorf("nothing selected for export")
			}

			path := filepath.Join(dir, export.Filename(cfg.AppName, username, e.ExportedAt, f))
			out, err := os.Create(path)
			if err != nil {
				return fmt.Errorf("creating export file: %w", err)
			}
			if err := export.Write(out, e, f); err != nil {
				out.Close()
				return err
			}
			if err := out.Close(); err != nil {
				return fmt.Errorf("closing export file: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
			return nil
		},
	}
	cmd.Flags().StringVar(&user, "user", "", "Account to export (database backend)")
	cmd.Flags().StringVarP(&format, "format", "f", "json", "Output format: json, csv or xlsx")
	cmd.Flags().StringVarP(&dir, "dir", "o", ".", "Output directory")
	cmd.Flags().BoolVar(&noGames, "no-games", false, "Leave games out")
	cmd.Flags().BoolVar(&noBooks, "no-books", false, "Leave books out")
	return cmd
}
