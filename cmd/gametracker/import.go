package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/erazemk/gametracker/internal/filestore"
	"github.com/erazemk/gametracker/internal/model"
	"github.com/erazemk/gametracker/internal/store"
)

func newImportCommand(ctx *commandContext) *cobra.Command {
	var user, gamesPath, booksPath string
	var keepLimit bool
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Copy items from JSON data files into the database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if gamesPath == "" {
				gamesPath = cfg.GamesPath()
			}
			if booksPath == "" {
				booksPath = cfg.BooksPath()
			}

			b, err := openBackend(cfg, false)
			if err != nil {
				return err
			}
			defer b.Close()
			if err := b.requireDB(); err != nil {
				return err
			}
			ownerID, username, err := b.owner(cmd.Context(), user)
			if err != nil {
				return err
			}

			for _, src := range []struct {
				kind model.Kind
				path string
			}{
				{model.KindGame, gamesPath},
				{model.KindBook, booksPath},
			} {
				data, err := filestore.ReadFile(src.path, src.kind)
				if errors.Is(err, fs.ErrNotExist) {
					fmt.Fprintf(cmd.OutOrStdout(), "Skipping %s: %s does not exist\n", src.kind.Plural(), src.path)
					continue
				}
				if err != nil {
					return fmt.Errorf("reading %s: %w", src.path, err)
				}
				limit := 0
				if keepLimit {
					limit = data.Limit
				}
				n, err := store.ImportItems(cmd.Context(), b.db, src.kind, ownerID, data.Items, limit)
				if err != nil {
					return err
				}
				slog.Info("imported data file", "kind", src.kind, "path", src.path, "items", n, "user", username)
				fmt.Fprintf(cmd.OutOrStdout(), "Imported %d %s from %s\n", n, src.kind.Plural(), src.path)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&user, "user", "", "Account that receives the items (default: the single-user owner)")
	cmd.Flags().StringVar(&gamesPath, "games", "", "Games data file (default: configured games file)")
	cmd.Flags().StringVar(&booksPath, "books", "", "Books data file (default: configured books file)")
	cmd.Flags().BoolVar(&keepLimit, "keep-limit", true, "Copy each file's limit to the account")
	return cmd
}
