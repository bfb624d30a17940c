package main

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strconv"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"

	"github.com/erazemk/gametracker/internal/model"
	"github.com/erazemk/gametracker/internal/store"
)

func newUserCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage accounts (database backend)",
	}
	cmd.AddCommand(newUserCreateCommand(ctx))
	cmd.AddCommand(newUserListCommand(ctx))
	cmd.AddCommand(newUserActiveCommand(ctx, "disable", false))
	cmd.AddCommand(newUserActiveCommand(ctx, "enable", true))
	return cmd
}

func newUserCreateCommand(ctx *commandContext) *cobra.Command {
	var password string
	cmd := &cobra.Command{
		Use:   "create <username> <email>",
		Short: "Create an account; prints a generated password unless --password is set",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			b, err := openBackend(cfg, false)
			if err != nil {
				return err
			}
			defer b.Close()
			if err := b.requireDB(); err != nil {
				return err
			}

			generated := password == ""
			if generated {
				if password, err = generatePassword(16); err != nil {
					return fmt.Errorf("generating password: %w", err)
				}
			}
			if err := model.ValidatePassword(password); err != nil {
				return err
			}
			hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
			if err != nil {
				return fmt.Errorf("hashing password: %w", err)
			}

			user, err := store.CreateUser(cmd.Context(), b.db, args[0], args[1], string(hash), cfg.Limits.Default)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Created user %s (id %d)\n", user.Username, user.ID)
			if generated {
				fmt.Fprintf(out, "  Password: %s\n", password)
				fmt.Fprintln(out, "Save this password. It cannot be recovered.")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&password, "password", "", "Password to set instead of a generated one")
	return cmd
}

func newUserListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List accounts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			b, err := openBackend(cfg, false)
			if err != nil {
				return err
			}
			defer b.Close()
			if err := b.requireDB(); err != nil {
				return err
			}

			users, err := store.ListUsers(cmd.Context(), b.db)
			if err != nil {
				return err
			}
			rows := make([][]string, 0, len(users))
			for _, u := range users {
				rows = append(rows, []string{
					strconv.FormatInt(u.ID, 10),
					u.Username,
					u.Email,
					yesNo(u.Active),
					u.CreatedAt.Format("2006-01-02"),
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"ID", "Username", "Email", "Active", "Created"},
				rows,
				[]columnAlignment{alignRight},
			))
			return nil
		},
	}
}

func newUserActiveCommand(ctx *commandContext, verb string, active bool) *cobra.Command {
	return &cobra.Command{
		Use:   verb + " <username|email>",
		Short: "Set whether an account may sign in",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			b, err := openBackend(cfg, false)
			if err != nil {
				return err
			}
			defer b.Close()
			if err := b.requireDB(); err != nil {
				return err
			}

			user, err := store.GetUserByLogin(cmd.Context(), b.db, args[0])
			if err != nil {
				return err
			}
			if user == nil {
				return fmt.Errorf("user %q not found", args[0])
			}
			if err := store.SetUserActive(cmd.Context(), b.db, user.ID, active); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "User %s %sd\n", user.Username, verb)
			return nil
		},
	}
}

// generatePassword creates a random password of the given length.
func generatePassword(length int) (string, error) {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789!@#$%&*"
	result := make([]byte, length)
	for i := range result {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		if err != nil {
			return "", err
		}
		result[i] = charset[n.Int64()]
	}
	return string(result), nil
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
