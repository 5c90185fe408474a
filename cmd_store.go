package main

import (
	"context"
	"encoding/json"
	"io"

	"sjsage522/asinharvester/services/storage"

	"github.com/spf13/cobra"
)

func newStoreCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "store",
		Short: "Inspect and edit saved identifiers",
		Long: `Store talks to the configured storage backend (STORAGE_BACKEND = local, document or api)
and prints every answer as JSON.`,
	}

	var account string
	all := &cobra.Command{
		Use:   "all",
		Short: "Print every saved identifier, grouped by account and category",
		Args:  cobra.NoArgs,
		RunE: a.withStore(func(ctx context.Context, cmd *cobra.Command, store storage.Store, _ []string) (any, error) {
			return store.GetAll(ctx, account)
		}),
	}
	all.Flags().StringVarP(&account, "account", "a", "", "Only this account")

	cmd.AddCommand(
		all,
		&cobra.Command{
			Use:   "get <account> <category>",
			Short: "Print the identifiers saved under one account and category",
			Args:  cobra.ExactArgs(2),
			RunE: a.withStore(func(ctx context.Context, cmd *cobra.Command, store storage.Store, args []string) (any, error) {
				return store.GetOne(ctx, args[0], args[1])
			}),
		},
		&cobra.Command{
			Use:   "save <account> <category> <asin>...",
			Short: "Add identifiers to one account and category",
			Args:  cobra.MinimumNArgs(3),
			RunE: a.withStore(func(ctx context.Context, cmd *cobra.Command, store storage.Store, args []string) (any, error) {
				return store.SaveIdentifiers(ctx, args[0], args[1], args[2:])
			}),
		},
		&cobra.Command{
			Use:   "delete <account> <category>",
			Short: "Remove one account and category",
			Args:  cobra.ExactArgs(2),
			RunE: a.withStore(func(ctx context.Context, cmd *cobra.Command, store storage.Store, args []string) (any, error) {
				deleted, err := store.DeleteCategory(ctx, args[0], args[1])
				return map[string]bool{"deleted": deleted}, err
			}),
		},
		&cobra.Command{
			Use:   "accounts",
			Short: "List accounts",
			Args:  cobra.NoArgs,
			RunE: a.withStore(func(ctx context.Context, cmd *cobra.Command, store storage.Store, _ []string) (any, error) {
				return store.ListAccounts(ctx)
			}),
		},
		&cobra.Command{
			Use:   "categories",
			Short: "List categories",
			Args:  cobra.NoArgs,
			RunE: a.withStore(func(ctx context.Context, cmd *cobra.Command, store storage.Store, _ []string) (any, error) {
				return store.ListCategories(ctx)
			}),
		},
		&cobra.Command{
			Use:   "add-account <account>",
			Short: "Register an account",
			Args:  cobra.ExactArgs(1),
			RunE: a.withStore(func(ctx context.Context, cmd *cobra.Command, store storage.Store, args []string) (any, error) {
				return map[string]bool{"success": true}, store.AddAccount(ctx, args[0])
			}),
		},
		&cobra.Command{
			Use:   "add-category <category>",
			Short: "Register a category",
			Args:  cobra.ExactArgs(1),
			RunE: a.withStore(func(ctx context.Context, cmd *cobra.Command, store storage.Store, args []string) (any, error) {
				return map[string]bool{"success": true}, store.AddCategory(ctx, args[0])
			}),
		},
		&cobra.Command{
			Use:   "stats",
			Short: "Print totals",
			Args:  cobra.NoArgs,
			RunE: a.withStore(func(ctx context.Context, cmd *cobra.Command, store storage.Store, _ []string) (any, error) {
				return store.GetStats(ctx)
			}),
		},
	)
	return cmd
}

type storeFunc func(ctx context.Context, cmd *cobra.Command, store storage.Store, args []string) (any, error)

// withStore opens the configured store around fn and prints its answer
func (a *app) withStore(fn storeFunc) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		services, err := initializeServices(ctx, a.cfg, need{store: true})
		if err != nil {
			return err
		}
		defer services.Cleanup()

		out, err := fn(ctx, cmd, services.Store, args)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), out)
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
