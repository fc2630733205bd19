package cmd

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"
)

// StatsCommand creates the stats command
func StatsCommand() *cli.Command {
	return &cli.Command{
		Name:  "stats",
		Usage: "Show local index statistics",
		Action: func(ctx context.Context, c *cli.Command) error {
			return showStats(ctx, c.String("config"))
		},
	}
}

// showStats displays index and cache statistics
func showStats(ctx context.Context, configPath string) error {
	a, err := openApp(configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	stats, err := a.model.RepositoryStats(ctx)
	if err != nil {
		return fmt.Errorf("getting stats: %w", err)
	}

	fmt.Printf("Projects indexed:        %d\n", stats.Projects)
	fmt.Printf("Releases cached:         %d\n", stats.CachedReleases)
	fmt.Printf("Projects with metadata:  %d\n", stats.ProjectsWithMetadata)
	return nil
}
