package index

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// DefaultPopularProjectsURL is the public top-downloads feed used to seed the
// crawler with widely used projects.
const DefaultPopularProjectsURL = "https://hugovk.github.io/top-pypi-packages/top-pypi-packages-30-days.min.json"

// popularLimit caps how many rows of the feed are taken.
const popularLimit = 100

type popularFeed struct {
	Rows []struct {
		Project string `json:"project"`
	} `json:"rows"`
}

// FetchPopularProjects downloads the popular-projects feed and returns up to
// the first 100 project names. Callers treat failures as a degraded feature,
// never as fatal.
func FetchPopularProjects(ctx context.Context, httpClient *http.Client, feedURL string) ([]string, error) {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if feedURL == "" {
		feedURL = DefaultPopularProjectsURL
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching popular projects: %w", err)
	}
	defer closeQuietly(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching popular projects: unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading popular projects feed: %w", err)
	}
	var feed popularFeed
	if err := json.Unmarshal(body, &feed); err != nil {
		return nil, fmt.Errorf("decoding popular projects feed: %w", err)
	}

	var names []string
	for i, row := range feed.Rows {
		if i >= popularLimit {
			break
		}
		names = append(names, row.Project)
	}
	return names, nil
}
