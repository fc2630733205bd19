package cmd

import (
	"context"
	"fmt"

	"github.com/pydex/pydex/pkg/index"
	"github.com/urfave/cli/v3"
)

// CrawlCommand creates the crawl command
func CrawlCommand() *cli.Command {
	return &cli.Command{
		Name:      "crawl",
		Usage:     "Run one crawl cycle now",
		ArgsUsage: "[project ...]",
		Description: "Without arguments, runs a full reindex cycle: resync " +
			"against the upstream project list and re-crawl every project " +
			"with cached metadata. With project names, crawls just those " +
			"projects and their dependencies.",
		Action: func(ctx context.Context, c *cli.Command) error {
			return crawlOnce(ctx, c.String("config"), c.Args().Slice())
		},
	}
}

// crawlOnce runs a single crawl cycle in the foreground.
func crawlOnce(ctx context.Context, configPath string, seeds []string) error {
	a, err := openApp(configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	if len(seeds) == 0 {
		if err := a.crawler.RefetchHook(ctx); err != nil {
			return fmt.Errorf("reindex cycle: %w", err)
		}
	} else {
		frontier := make(map[string]struct{}, len(seeds))
		for _, name := range seeds {
			frontier[index.NormalizeName(name)] = struct{}{}
		}
		a.crawler.CrawlRecursively(ctx, frontier)
	}

	stats, err := a.model.RepositoryStats(ctx)
	if err != nil {
		return fmt.Errorf("getting stats: %w", err)
	}
	fmt.Printf("Crawl complete: %d projects indexed, %d releases cached\n",
		stats.Projects, stats.CachedReleases)
	return nil
}
