package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/erazemk/gametracker/internal/model"
)

func newListCommand(ctx *commandContext) *cobra.Command {
	var user string
	cmd := &cobra.Command{
		Use:       "list <games|books>",
		Short:     "Print items grouped by status",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"games", "books"},
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := model.ParseKind(args[0])
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

			ownerID, _, err := b.owner(cmd.Context(), user)
			if err != nil {
				return err
			}
			s := b.store(kind)
			groups, err := s.ListGrouped(cmd.Context(), ownerID)
			if err != nil {
				return err
			}
			counts, err := s.Counts(cmd.Context(), ownerID)
			if err != nil {
				return err
			}

			headers := []string{"ID", "Status", "Title", "Rating", "Created", "Ended"}
			if kind.HasAuthor() {
				headers = []string{"ID", "Status", "Title", "Author", "Progress", "Rating", "Created", "Ended"}
			}
			var rows [][]string
			for _, status := range kind.Statuses() {
				for _, it := range groups[status] {
					rating, ended := "", ""
					if it.Rating != nil {
						rating = strconv.Itoa(*it.Rating)
					}
					if it.EndedAt != nil {
						ended = it.EndedAt.Format("2006-01-02")
					}
					row := []string{strconv.FormatInt(it.ID, 10), string(it.Status), it.Title}
					if kind.HasAuthor() {
						row = append(row, it.Author, it.Progress)
					}
					rows = append(rows, append(row, rating, it.CreatedAt.Format("2006-01-02"), ended))
				}
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderTable(headers, rows, []columnAlignment{alignRight}))
			fmt.Fprintf(out, "%d of %d %s\n", counts.Count, counts.Limit, kind.LimitedStatus())
			return nil
		},
	}
	cmd.Flags().StringVar(&user, "user", "", "Account to list (database backend)")
	return cmd
}
