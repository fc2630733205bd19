package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/pydex/pydex/pkg/model"
	"github.com/urfave/cli/v3"
)

// Define styles using lipgloss
var (
	exactStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("86")).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("86")).
			Padding(0, 1).
			Margin(0, 0, 1, 0)

	nameStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("214"))

	versionStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("33"))

	metaStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			Italic(true)

	noDataStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			Italic(true).
			Margin(1, 0)
)

// SearchCommand creates the search command
func SearchCommand() *cli.Command {
	return &cli.Command{
		Name:      "search",
		Usage:     "Search the local project index",
		ArgsUsage: "<query>",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "page",
				Usage: "Result page to show",
				Value: 1,
			},
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Maximum number of results per page",
				Value: 20,
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			query := strings.Join(c.Args().Slice(), " ")
			return searchProjects(ctx, c.String("config"), query, c.Int("limit"), c.Int("page"))
		},
	}
}

// searchProjects queries the local index and prints the result page.
func searchProjects(ctx context.Context, configPath, query string, limit, page int) error {
	a, err := openApp(configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	result, err := a.model.ProjectQuery(ctx, query, limit, page)
	if err != nil {
		var invalid *model.InvalidSearchQuery
		if errors.As(err, &invalid) {
			return fmt.Errorf("invalid query: %s", invalid.Detail)
		}
		return fmt.Errorf("searching: %w", err)
	}

	if result.Exact != nil {
		fmt.Println(exactStyle.Render(formatResultItem(*result.Exact)))
	}

	if result.ResultsCount == 0 {
		fmt.Println(noDataStyle.Render("No projects found"))
		return nil
	}

	for i, item := range result.Results {
		fmt.Printf("%d. %s\n", (page-1)*limit+i+1, formatResultItem(item))
	}

	fmt.Println(metaStyle.Render(fmt.Sprintf(
		"%d results, page %d of %d", result.ResultsCount, result.Page, result.NPages)))
	return nil
}

func formatResultItem(item model.SearchResultItem) string {
	line := nameStyle.Render(item.CanonicalName)
	if item.ReleaseVersion != "" {
		line += " " + versionStyle.Render(item.ReleaseVersion)
	}
	if item.Summary != "" {
		line += " - " + item.Summary
	}
	if item.ReleaseDate != nil {
		line += " " + metaStyle.Render(item.ReleaseDate.Format("2006-01-02"))
	}
	return line
}
