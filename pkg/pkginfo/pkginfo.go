// Package pkginfo fetches and parses per-release package metadata: the core
// metadata document of a representative distribution file, plus file sizes
// gathered through HEAD requests.
package pkginfo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pydex/pydex/pkg/index"
	"github.com/pydex/pydex/pkg/log"
)

// FileInfo carries per-file enrichment data.
type FileInfo struct {
	// Size, in bytes, of the compressed file.
	Size int64 `json:"size"`
}

// PackageInfo is the parsed core metadata of one release.
type PackageInfo struct {
	Summary        string              `json:"summary"`
	Description    string              `json:"description"`
	URL            string              `json:"url"`
	Author         string              `json:"author,omitempty"`
	Maintainer     string              `json:"maintainer,omitempty"`
	Classifiers    []string            `json:"classifiers,omitempty"`
	ProjectURLs    map[string]string   `json:"project_urls,omitempty"`
	FilesInfo      map[string]FileInfo `json:"files_info,omitempty"`
	RequiresPython string              `json:"requires_python,omitempty"`
	RequiresDist   []string            `json:"requires_dist,omitempty"`
}

// ErrNoFiles is returned when a release has no files to fetch metadata from.
var ErrNoFiles = errors.New("release has no files")

// ErrNoMetadata is returned when the index has no metadata document for the
// representative file. Unlike a transient fetch failure, this does not go
// away on retry.
var ErrNoMetadata = errors.New("no metadata resource for file")

const maxHeadConcurrency = 10

type Fetcher struct {
	client *http.Client
	logger *log.Logger
}

func NewFetcher(client *http.Client) *Fetcher {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Fetcher{
		client: client,
		logger: log.ForService("pkginfo"),
	}
}

// PackageInfo downloads and parses the metadata of the release made up of
// files. It returns the parsed info together with the representative file the
// metadata came from. File size enrichment failures degrade gracefully: the
// affected file simply has no size entry.
func (f *Fetcher) PackageInfo(ctx context.Context, files []index.File) (*PackageInfo, index.File, error) {
	if len(files) == 0 {
		return nil, index.File{}, ErrNoFiles
	}

	ordered := make([]index.File, len(files))
	copy(ordered, files)
	sort.SliceStable(ordered, func(i, j int) bool {
		return filePreference(ordered[i]) > filePreference(ordered[j])
	})
	representative := ordered[0]

	filesInfo := f.fetchFileSizes(ctx, ordered)

	info, err := f.fetchCoreMetadata(ctx, representative)
	if err != nil {
		return nil, representative, err
	}
	info.FilesInfo = filesInfo
	return info, representative, nil
}

// filePreference ranks files for metadata extraction: wheels carry the most
// reliable metadata, then gzipped sdists, then zips.
func filePreference(file index.File) int {
	lower := strings.ToLower(file.Filename)
	switch {
	case strings.HasSuffix(lower, ".whl"):
		return 3
	case strings.HasSuffix(lower, ".tar.gz"):
		return 2
	case strings.HasSuffix(lower, ".zip"):
		return 1
	}
	return 0
}

// fetchFileSizes issues HEAD requests for every file that does not already
// carry a size, at most maxHeadConcurrency in flight.
func (f *Fetcher) fetchFileSizes(ctx context.Context, files []index.File) map[string]FileInfo {
	filesInfo := make(map[string]FileInfo)

	var mu sync.Mutex
	var wg sync.WaitGroup
	sem := make(chan struct{}, maxHeadConcurrency)

	for _, file := range files {
		if file.HasSize {
			filesInfo[file.Filename] = FileInfo{Size: file.Size}
			continue
		}
		wg.Add(1)
		go func(file index.File) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			size, err := f.headContentLength(ctx, file.URL)
			if err != nil {
				f.logger.Warnf("unable to determine size of %s: %v", file.Filename, err)
				return
			}
			mu.Lock()
			filesInfo[file.Filename] = FileInfo{Size: size}
			mu.Unlock()
		}(file)
	}
	wg.Wait()

	return filesInfo
}

func (f *Fetcher) headContentLength(ctx context.Context, url string) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return 0, err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			f.logger.Warnf("closing response body: %v", err)
		}
	}()
	if resp.StatusCode >= 400 {
		return 0, fmt.Errorf("HEAD %s: status %d", url, resp.StatusCode)
	}
	length := resp.Header.Get("Content-Length")
	if length == "" {
		return 0, fmt.Errorf("HEAD %s: no Content-Length header", url)
	}
	return strconv.ParseInt(length, 10, 64)
}

// fetchCoreMetadata downloads the PEP 658 metadata document that sits next
// to the distribution file.
func (f *Fetcher) fetchCoreMetadata(ctx context.Context, file index.File) (*PackageInfo, error) {
	url := file.URL + ".metadata"
	f.logger.Infof("fetching metadata for %s", file.Filename)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", url, err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			f.logger.Warnf("closing response body: %v", err)
		}
	}()
	if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone {
		return nil, fmt.Errorf("fetching %s: %w", url, ErrNoMetadata)
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("fetching %s: status %d", url, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", url, err)
	}
	return ParseCoreMetadata(body)
}
