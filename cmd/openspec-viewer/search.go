package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/spf13/cobra"

	"github.com/c360studio/openspec-viewer/openspec"
	"github.com/c360studio/openspec-viewer/storage"
)

// loadStore resolves root, performs one refresh and returns the loaded
// store. A failed load is an error.
func loadStore(ctx context.Context, path string, logger *slog.Logger) (*storage.Store, error) {
	root, err := resolveRoot(path)
	if err != nil {
		return nil, err
	}

	store := storage.NewStore(root, logger)
	if res := store.Refresh(ctx, nil); !res.OK() {
		return nil, res.Err()
	}
	return store, nil
}

func searchCmd(global *globalOptions) *cobra.Command {
	var (
		path    string
		asJSON  bool
		maxHits int
	)

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search project, specs, designs and proposals",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			if utf8.RuneCountInString(query) < 2 {
				return fmt.Errorf("query must be at least 2 characters")
			}

			_, logger, err := global.load(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			store, err := loadStore(cmd.Context(), path, logger)
			if err != nil {
				return err
			}

			results, err := store.Search(query)
			if err != nil {
				return err
			}
			if maxHits > 0 && len(results) > maxHits {
				results = results[:maxHits]
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(map[string]any{"results": results})
			}
			printResults(cmd.OutOrStdout(), query, results)
			return nil
		},
	}

	cmd.Flags().StringVar(&path, "path", ".", "Path to OpenSpec directory")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print results as JSON")
	cmd.Flags().IntVarP(&maxHits, "limit", "n", 0, "Maximum results to print (0 = all)")
	return cmd
}

func printResults(w io.Writer, query string, results []openspec.SearchResult) {
	if len(results) == 0 {
		fmt.Fprintf(w, "No matches for %q\n", query)
		return
	}
	for _, r := range results {
		fmt.Fprintf(w, "%-7s %s:%d\n        %s\n", r.Type, r.Name, r.MatchLine, r.Excerpt)
	}
}
