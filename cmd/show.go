package cmd

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/pydex/pydex/pkg/model"
	"github.com/pydex/pydex/pkg/wheel"
	"github.com/urfave/cli/v3"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// ShowCommand creates the show command
func ShowCommand() *cli.Command {
	return &cli.Command{
		Name:      "show",
		Usage:     "Show a project's releases, files and metadata",
		ArgsUsage: "<project> [version]",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "recache",
				Usage: "Force re-fetching the cached package metadata",
				Value: false,
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			if c.Args().Len() < 1 {
				return fmt.Errorf("project name is required")
			}
			return showProject(ctx, c.String("config"), c.Args().Get(0), c.Args().Get(1), c.Bool("recache"))
		},
	}
}

// showProject prints a project page to the terminal.
func showProject(ctx context.Context, configPath, name, version string, recache bool) error {
	a, err := openApp(configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	page, err := a.model.ProjectPage(ctx, name, version, recache)
	if err != nil {
		var reqErr *model.RequestError
		if errors.As(err, &reqErr) {
			return fmt.Errorf("%s", reqErr.Detail)
		}
		return fmt.Errorf("fetching project page: %w", err)
	}

	title := fmt.Sprintf("%s %s", page.Project.Name, page.Version)
	if page.Version != page.LatestVersion {
		title += fmt.Sprintf(" (latest: %s)", page.LatestVersion)
	}
	fmt.Println(exactStyle.Render(title))

	if page.FileMetadata != nil && page.FileMetadata.Summary != "" {
		fmt.Println(page.FileMetadata.Summary)
		fmt.Println()
	}

	fmt.Println(nameStyle.Render("Releases"))
	for _, release := range page.Releases {
		line := "  " + versionStyle.Render(release.Version.String())
		if release.ReleaseDate != nil {
			line += " " + metaStyle.Render(release.ReleaseDate.Format("2006-01-02"))
		}
		var labels []string
		for _, text := range release.Labels {
			labels = append(labels, text)
		}
		sort.Strings(labels)
		if len(labels) > 0 {
			line += " [" + strings.Join(labels, "; ") + "]"
		}
		fmt.Println(line)
	}

	if len(page.FilesForVersion) > 0 {
		fmt.Println()
		fmt.Println(nameStyle.Render(fmt.Sprintf("Files for %s", page.Version)))
		for _, file := range page.FilesForVersion {
			line := "  " + file.Filename
			if page.FileMetadata != nil {
				if info, ok := page.FileMetadata.FilesInfo[file.Filename]; ok {
					line += " " + metaStyle.Render(formatSize(info.Size))
				}
			}
			if file.Yanked {
				line += " " + metaStyle.Render("(yanked)")
			}
			fmt.Println(line)
		}
	}

	if len(page.ClassifiersByTopLevel) > 0 {
		fmt.Println()
		fmt.Println(nameStyle.Render("Classifiers"))
		titleCaser := cases.Title(language.English)

		var groups []string
		for group := range page.ClassifiersByTopLevel {
			groups = append(groups, group)
		}
		sort.Strings(groups)
		for _, group := range groups {
			fmt.Printf("  %s\n", titleCaser.String(group))
			for _, classifier := range page.ClassifiersByTopLevel[group] {
				fmt.Printf("    %s\n", classifier)
			}
		}
	}

	if matrix := page.CompatibilityMatrix; len(matrix.Matrix) > 0 {
		fmt.Println()
		fmt.Println(nameStyle.Render("Wheel compatibility"))
		for _, pyABI := range matrix.PyABINames {
			var platforms []string
			for _, platform := range matrix.PlatformNames {
				if _, ok := matrix.Matrix[wheel.MatrixKey{PyABIName: pyABI, Platform: platform}]; ok {
					platforms = append(platforms, platform)
				}
			}
			fmt.Printf("  %s: %s\n", pyABI, strings.Join(platforms, ", "))
		}
	}

	return nil
}

func formatSize(size int64) string {
	switch {
	case size >= 1<<20:
		return fmt.Sprintf("%.1f MiB", float64(size)/(1<<20))
	case size >= 1<<10:
		return fmt.Sprintf("%.1f KiB", float64(size)/(1<<10))
	default:
		return fmt.Sprintf("%d B", size)
	}
}
