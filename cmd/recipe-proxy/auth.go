package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/Sternrassler/recipe-cache/internal/credentials"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func newAuthCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage the recipe API key",
		Long: `Manage the recipe API key.

The key is kept in the OS keyring. RECIPE_API_KEY or api.key in the config
file take precedence over the stored key.`,
		// Key management needs no config file
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	}

	cmd.AddCommand(newAuthLoginCmd(a))
	cmd.AddCommand(newAuthLogoutCmd(a))
	cmd.AddCommand(newAuthStatusCmd(a))

	return cmd
}

func newAuthLoginCmd(a *app) *cobra.Command {
	var key string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Store the API key in the OS keyring",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			key = strings.TrimSpace(key)
			if key == "" {
				fmt.Fprint(cmd.OutOrStdout(), "Enter API key: ")
				raw, err := term.ReadPassword(int(os.Stdin.Fd()))
				fmt.Fprintln(cmd.OutOrStdout())
				if err != nil {
					return fmt.Errorf("read API key: %w", err)
				}
				key = strings.TrimSpace(string(raw))
			}

			if err := a.keys.Set(credentials.DefaultAccount, key); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Saved API key")
			return nil
		},
	}

	cmd.Flags().StringVar(&key, "key", "", "API key (optional, overrides prompt)")

	return cmd
}

func newAuthLogoutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove the stored API key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			err := a.keys.Delete(credentials.DefaultAccount)
			if errors.Is(err, credentials.ErrNotFound) {
				fmt.Fprintln(cmd.OutOrStdout(), "No API key stored")
				return nil
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Removed API key")
			return nil
		},
	}
}

func newAuthStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show whether an API key is stored",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := a.keys.Get(credentials.DefaultAccount)
			switch {
			case err == nil:
				fmt.Fprintln(cmd.OutOrStdout(), "spoonacular: logged in")
			case errors.Is(err, credentials.ErrNotFound):
				fmt.Fprintln(cmd.OutOrStdout(), "spoonacular: not logged in")
			default:
				return fmt.Errorf("read keyring: %w", err)
			}
			return nil
		},
	}
}
