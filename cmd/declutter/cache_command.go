package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"declutter/internal/respcache"
)

func newCacheCommand(ctx *commandContext) *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and manage the categorization cache",
	}

	cacheCmd.AddCommand(newCacheListCommand(ctx))
	cacheCmd.AddCommand(newCacheSweepCommand(ctx))
	cacheCmd.AddCommand(newCacheClearCommand(ctx))

	return cacheCmd
}

func newCacheListCommand(ctx *commandContext) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List cached categorizations, most recently used first",
		RunE: func(cmd *cobra.Command, args []string) error {
			cache, err := openCache(ctx)
			if err != nil {
				return err
			}
			entries := cache.List()
			if limit > 0 && len(entries) > limit {
				entries = entries[:limit]
			}

			if ctx.jsonOutput() {
				rows := make([]cacheEntryJSON, 0, len(entries))
				for _, entry := range entries {
					rows = append(rows, cacheEntryJSON{
						Path:      entry.Path,
						Category:  entry.Category,
						Subfolder: entry.Subfolder,
						CachedAt:  time.Unix(entry.CachedAt, 0).UTC(),
						Expired:   cache.Expired(entry),
					})
				}
				return writeJSON(cmd, rows)
			}

			out := cmd.OutOrStdout()
			if len(entries) == 0 {
				fmt.Fprintf(out, "Cache is empty (%s)\n", cache.Path())
				return nil
			}
			rows := make([][]string, 0, len(entries))
			for _, entry := range entries {
				state := "fresh"
				if cache.Expired(entry) {
					state = "stale"
				}
				rows = append(rows, []string{
					entry.Path,
					entry.Categorization().Folder(),
					formatAge(time.Unix(entry.CachedAt, 0)),
					state,
				})
			}
			fmt.Fprintln(out, tableSpec{
				headers:  []string{"File", "Folder", "Cached", "State"},
				rows:     rows,
				maxWidth: map[int]int{0: 64},
			}.render())
			fmt.Fprintf(out, "%s in %s\n", plural(cache.Len(), "entry", "entries"), cache.Path())
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "Show at most this many entries (0 = all)")
	return cmd
}

func newCacheSweepCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Remove cache entries older than cache.ttl_days",
		RunE: func(cmd *cobra.Command, args []string) error {
			cache, err := openCache(ctx)
			if err != nil {
				return err
			}
			removed := cache.Sweep()
			if err := cache.Save(); err != nil {
				return err
			}
			if removed == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No expired cache entries")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %s (%d left)\n", plural(removed, "expired entry", "expired entries"), cache.Len())
			return nil
		},
	}
}

func newCacheClearCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear [path...]",
		Short: "Forget cached categorizations",
		Long:  "Without arguments every entry is removed. With paths, only those files are forgotten.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cache, err := openCache(ctx)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(args) == 0 {
				n := cache.Len()
				cache.Clear()
				if err := cache.Save(); err != nil {
					return err
				}
				fmt.Fprintf(out, "Cleared %s\n", plural(n, "entry", "entries"))
				return nil
			}

			var missing []string
			for _, arg := range args {
				if !cache.Invalidate(absPath(arg)) {
					missing = append(missing, arg)
				}
			}
			if err := cache.Save(); err != nil {
				return err
			}
			fmt.Fprintf(out, "Cleared %s\n", plural(len(args)-len(missing), "entry", "entries"))
			if len(missing) > 0 {
				fmt.Fprintf(out, "Not cached: %s\n", strings.Join(missing, ", "))
			}
			return nil
		},
	}
}

type cacheEntryJSON struct {
	Path      string    `json:"path"`
	Category  string    `json:"category"`
	Subfolder string    `json:"subfolder,omitempty"`
	CachedAt  time.Time `json:"cached_at"`
	Expired   bool      `json:"expired"`
}

func openCache(ctx *commandContext) (*respcache.Cache, error) {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return nil, err
	}
	return respcache.Open(cfg.Paths.CacheFile, respcache.Options{
		TTL:        time.Duration(cfg.Cache.TTLDays) * 24 * time.Hour,
		MaxEntries: cfg.Cache.MaxEntries,
		Logger:     ctx.ensureLogger(),
	})
}
