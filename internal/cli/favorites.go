package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/dukerupert/menuboard/internal/favorites"
	"github.com/dukerupert/menuboard/internal/localcache"
	"github.com/dukerupert/menuboard/internal/preferences"
	"github.com/dukerupert/menuboard/internal/store"
	"github.com/spf13/cobra"
)

type favoritesFlags struct {
	deviceFlags
	Establishment string
	Customer      string
}

// NewFavoritesCommand creates the favorites command group.
func NewFavoritesCommand(rootOpts *RootOptions) *cobra.Command {
	flags := &favoritesFlags{}

	cmd := &cobra.Command{
		Use:   "favorites",
		Short: "Manage favorites from this device",
		Long: `Manage the favorite products of one establishment from this device.

Without --customer the favorites are anonymous and kept in the local cache.
With --customer they are kept on the server; anonymous favorites saved on this
device are copied to the customer the first time they sign in.`,
	}

	cmd.PersistentFlags().StringVarP(&flags.Establishment, "establishment", "e", "", "establishment ID (required)")
	cmd.PersistentFlags().StringVar(&flags.Customer, "customer", "", "signed-in customer ID")
	cmd.PersistentFlags().StringVar(&flags.APIURL, "api-url", "", "API base URL")
	cmd.PersistentFlags().StringVar(&flags.APIKey, "api-key", "", "API key")
	cmd.PersistentFlags().StringVar(&flags.CacheDir, "cache-dir", "", "local cache directory")
	cmd.MarkPersistentFlagRequired("establishment")

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List favorite products",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withFavorites(cmd.Context(), rootOpts, flags, func(s *favorites.Store, prefs *preferences.Service) error {
				first, err := prefs.FirstVisit(cmd.Context(), flags.Establishment)
				if err != nil {
					rootOpts.logger.Warn("failed to record visit", "error", err)
				}
				ids := s.IDs()
				return rootOpts.print(cmd.OutOrStdout(), map[string]any{"favorites": ids, "first_visit": first}, func(w io.Writer) {
					if first {
						fmt.Fprintln(cmd.ErrOrStderr(), "Welcome! Toggle a product to save it as a favorite.")
					}
					if len(ids) == 0 {
						fmt.Fprintln(w, "no favorites")
						return
					}
					fmt.Fprintln(w, strings.Join(ids, "\n"))
				})
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "toggle <product-id>",
		Short: "Add or remove a favorite product",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withFavorites(cmd.Context(), rootOpts, flags, func(s *favorites.Store, _ *preferences.Service) error {
				on := s.Toggle(cmd.Context(), args[0])
				return rootOpts.print(cmd.OutOrStdout(), map[string]any{"product_id": args[0], "favorite": on}, func(w io.Writer) {
					if on {
						fmt.Fprintf(w, "%s added to favorites\n", args[0])
					} else {
						fmt.Fprintf(w, "%s removed from favorites\n", args[0])
					}
				})
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Remove every favorite product",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withFavorites(cmd.Context(), rootOpts, flags, func(s *favorites.Store, _ *preferences.Service) error {
				if err := s.Clear(cmd.Context()); err != nil {
					return err
				}
				return rootOpts.print(cmd.OutOrStdout(), map[string]int{"favorites": 0}, func(w io.Writer) {
					fmt.Fprintln(w, "favorites cleared")
				})
			})
		},
	})

	return cmd
}

// withFavorites loads the favorites store for the flags and calls fn.
func withFavorites(ctx context.Context, opts *RootOptions, flags *favoritesFlags, fn func(*favorites.Store, *preferences.Service) error) error {
	dir, db, err := flags.openLocal(opts)
	if err != nil {
		return err
	}
	defer db.Close()

	logger := opts.logger.With("component", "favorites")
	chain := localcache.NewDeviceChain(logger, dir, db)
	s := favorites.New(flags.client(opts), chain, logger)
	if err := s.Load(ctx, flags.Establishment, flags.Customer); err != nil {
		return err
	}

	prefs := preferences.New(store.NewSettingsStore(db, "device"))
	return fn(s, prefs)
}
