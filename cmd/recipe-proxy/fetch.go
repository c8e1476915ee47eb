package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/Sternrassler/recipe-cache/pkg/recipes"
	"github.com/spf13/cobra"
)

func newFetchCmd(a *app) *cobra.Command {
	var refresh bool

	cmd := &cobra.Command{
		Use:   "fetch <popular|healthy|category NAME|recipe ID|search QUERY|random>",
		Short: "Print recipe data as JSON, served from the cache when fresh",
		Long: `Print recipe data as JSON.

Lists and recipes are read through the cache; --refresh calls the API and
overwrites the stored entry. Search and random are never cached.

Examples:
  recipe-proxy fetch popular
  recipe-proxy fetch category Dessert
  recipe-proxy fetch recipe 715538 --refresh`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := a.build(cmd.Context())
			if err != nil {
				return err
			}
			defer d.Close()

			svc := d.service
			if refresh {
				svc = svc.Refreshing()
			}

			result, err := runFetch(cmd.Context(), svc, args)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), result)
		},
	}

	cmd.Flags().BoolVar(&refresh, "refresh", false, "bypass valid entries and refresh them from the API")

	return cmd
}

// runFetch dispatches a fetch subject to the service.
func runFetch(ctx context.Context, svc *recipes.Service, args []string) (any, error) {
	subject, rest := strings.ToLower(args[0]), args[1:]

	switch subject {
	case "popular":
		return svc.Popular(ctx)
	case "healthy":
		return svc.Healthy(ctx)
	case "category":
		if len(rest) != 1 {
			return nil, fmt.Errorf("usage: fetch category NAME")
		}
		return svc.ByCategory(ctx, rest[0])
	case "recipe":
		if len(rest) != 1 {
			return nil, fmt.Errorf("usage: fetch recipe ID")
		}
		id, err := strconv.Atoi(rest[0])
		if err != nil {
			return nil, fmt.Errorf("invalid recipe id %q", rest[0])
		}
		return svc.ByID(ctx, id)
	case "search":
		return svc.Search(ctx, strings.Join(rest, " "))
	case "random":
		return svc.Random(ctx)
	default:
		return nil, fmt.Errorf("unknown subject %q", args[0])
	}
}

func newWarmCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "warm ID...",
		Short: "Load recipes into the cache",
		Long: `Load the given recipes into the cache with bounded concurrency.
Recipes that are already cached and fresh are not requested again.

Example:
  recipe-proxy warm 715538 716429 644387`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := make([]int, 0, len(args))
			for _, arg := range args {
				id, err := strconv.Atoi(arg)
				if err != nil {
					return fmt.Errorf("invalid recipe id %q", arg)
				}
				ids = append(ids, id)
			}

			d, err := a.build(cmd.Context())
			if err != nil {
				return err
			}
			defer d.Close()

			loaded, err := d.service.Warm(cmd.Context(), ids)

			out := cmd.OutOrStdout()
			got := make([]int, 0, len(loaded))
			for id := range loaded {
				got = append(got, id)
			}
			sort.Ints(got)
			for _, id := range got {
				fmt.Fprintf(out, "%d\t%s\n", id, loaded[id].Title)
			}
			fmt.Fprintf(out, "loaded %d of %d\n", len(loaded), len(ids))

			return err
		},
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
