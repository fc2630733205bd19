// Package crawler periodically walks the dependency graph of the upstream
// package index, keeping the local project index and the pkg-info metadata
// cache populated.
package crawler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/pydex/pydex/pkg/cache"
	"github.com/pydex/pydex/pkg/index"
	"github.com/pydex/pydex/pkg/log"
	"github.com/pydex/pydex/pkg/pep440"
	"github.com/pydex/pydex/pkg/pkginfo"
	"github.com/pydex/pydex/pkg/projects"
	"github.com/pydex/pydex/pkg/storage"
)

// DisableIndexingEnv disables the periodic crawl loop when set to "1".
// Useful for tests and read-only deployments.
const DisableIndexingEnv = "PYDEX_DISABLE_INDEXING"

type Config struct {
	// Frequency is the pause between two crawl cycles.
	Frequency time.Duration
	// RequestDelay bounds the request rate against the upstream index
	// during the recursive crawl.
	RequestDelay time.Duration
	// CrawlPopularProjects seeds each cycle with an external top-100 feed.
	CrawlPopularProjects bool
	PopularProjectsURL   string
}

func (c *Config) applyDefaults() {
	if c.Frequency <= 0 {
		c.Frequency = 24 * time.Hour
	}
	if c.RequestDelay <= 0 {
		c.RequestDelay = 10 * time.Millisecond
	}
	if c.PopularProjectsURL == "" {
		c.PopularProjectsURL = index.DefaultPopularProjectsURL
	}
}

type Crawler struct {
	repo       index.Repository
	store      *storage.Store
	cache      *cache.Cache
	fetcher    *pkginfo.Fetcher
	httpClient *http.Client
	config     Config
	limiter    *rate.Limiter
	logger     *log.Logger

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

func New(repo index.Repository, store *storage.Store, metadataCache *cache.Cache, fetcher *pkginfo.Fetcher, httpClient *http.Client, config Config) *Crawler {
	config.applyDefaults()
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Crawler{
		repo:       repo,
		store:      store,
		cache:      metadataCache,
		fetcher:    fetcher,
		httpClient: httpClient,
		config:     config,
		limiter:    rate.NewLimiter(rate.Every(config.RequestDelay), 1),
		logger:     log.ForService("crawler"),
		stopCh:     make(chan struct{}),
	}
}

// Start launches the periodic reindexing loop. It is a no-op when indexing
// is disabled through the environment.
func (c *Crawler) Start(ctx context.Context) {
	if os.Getenv(DisableIndexingEnv) == "1" {
		c.logger.Infof("indexing disabled via %s", DisableIndexingEnv)
		return
	}

	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return
	}
	c.running = true
	stopCh := c.stopCh
	c.mu.Unlock()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.logger.Infof("starting the reindexing loop (every %s)", c.config.Frequency)
		for {
			// Cycle failures are logged and swallowed so the loop
			// always re-arms.
			if err := c.RefetchHook(ctx); err != nil {
				c.logger.Errorf("reindex cycle failed: %v", err)
			}

			select {
			case <-ctx.Done():
				return
			case <-stopCh:
				return
			case <-time.After(c.config.Frequency):
			}
		}
	}()
}

// Stop terminates the periodic loop and waits for the current cycle's
// goroutine to exit. Calling Stop on a stopped or never-started crawler is a
// no-op.
func (c *Crawler) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.running = false
	close(c.stopCh)
	c.mu.Unlock()
	c.wg.Wait()
}

// Reconfigure stops the loop, applies new crawl settings and starts the loop
// again. The crawler keeps its storage and cache handles, so callers holding
// a reference stay valid across the restart.
func (c *Crawler) Reconfigure(ctx context.Context, config Config) {
	c.Stop()
	config.applyDefaults()
	c.mu.Lock()
	c.config = config
	c.limiter = rate.NewLimiter(rate.Every(config.RequestDelay), 1)
	c.stopCh = make(chan struct{})
	c.mu.Unlock()
	c.Start(ctx)
}

// RefetchHook runs one full reindex cycle: resync the project table against
// the upstream list, seed the crawl with every project that already has
// cached metadata (optionally plus the popular-projects feed), then crawl.
func (c *Crawler) RefetchHook(ctx context.Context) error {
	list, err := c.repo.GetProjectList(ctx)
	if err != nil {
		return fmt.Errorf("fetching upstream project list: %w", err)
	}

	if len(list.Projects) == 0 {
		// An empty upstream list is a transient index failure, not a
		// request to drop every row.
		c.logger.Warnf("upstream project list is empty, skipping resync")
	} else {
		upstream := make(map[string]string, len(list.Projects))
		for _, entry := range list.Projects {
			upstream[index.NormalizeName(entry.Name)] = entry.Name
		}
		if err := c.store.FullyPopulate(upstream); err != nil {
			return fmt.Errorf("resyncing project table: %w", err)
		}
	}

	seeds := make(map[string]struct{})
	cached, err := c.cache.Names(cache.PkgInfoNamespace)
	if err != nil {
		return fmt.Errorf("listing cached metadata: %w", err)
	}
	for _, name := range cached {
		seeds[name] = struct{}{}
	}

	if c.config.CrawlPopularProjects {
		popular, err := index.FetchPopularProjects(ctx, c.httpClient, c.config.PopularProjectsURL)
		if err != nil {
			// Best effort: a broken feed must not abort the cycle.
			c.logger.Warnf("problem fetching popular projects: %v", err)
		}
		for _, name := range popular {
			seeds[index.NormalizeName(name)] = struct{}{}
		}
	}

	c.CrawlRecursively(ctx, seeds)
	return nil
}

// CrawlRecursively visits every project in seeds and, transitively, the
// runtime dependencies discovered in their metadata. The frontier is a
// worklist popped in arbitrary order; it is guaranteed to drain because seen
// only grows.
func (c *Crawler) CrawlRecursively(ctx context.Context, seeds map[string]struct{}) {
	frontier := make(map[string]struct{}, len(seeds))
	for name := range seeds {
		frontier[name] = struct{}{}
	}
	seen := make(map[string]struct{})

	for len(frontier) > 0 {
		name := popAny(frontier)
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}

		c.logger.Debugf("crawling %s (%d remaining, %d done)", name, len(frontier), len(seen))

		if err := c.limiter.Wait(ctx); err != nil {
			return
		}

		detail, err := c.repo.GetProjectPage(ctx, name)
		if err != nil {
			if !errors.Is(err, index.ErrNotFound) {
				c.logger.Warnf("fetching project page for %s: %v", name, err)
			}
			continue
		}
		if len(detail.Files) == 0 {
			continue
		}

		infos, latest, err := projects.ReleaseInfos(*detail)
		if err != nil {
			c.logger.Warnf("computing releases for %s: %v", name, err)
			continue
		}
		if latest.IsPrerelease() {
			// Don't bother indexing unstable-only projects.
			continue
		}

		_, info, err := c.FetchPkgInfo(ctx, detail, latest, infos, latest, false)
		if err != nil {
			c.logger.Warnf("fetching metadata for %s: %v", name, err)
			continue
		}
		if info == nil {
			continue
		}

		for _, specifier := range info.RequiresDist {
			depName, runtime, err := pkginfo.RequirementName(specifier)
			if err != nil {
				// A single malformed specifier must not sink the
				// whole project.
				c.logger.Warnf("problem handling dependency of %s: %v", name, err)
				continue
			}
			if !runtime {
				continue
			}
			frontier[index.NormalizeName(depName)] = struct{}{}
		}
	}
}

// cachedPkgInfo is the value stored in the pkg-info cache namespace. The
// filename set records which files the cached result covers, so a later
// upload to the same release invalidates the entry.
type cachedPkgInfo struct {
	RepresentativeFile index.File           `json:"representative_file"`
	CachedFilenames    []string             `json:"filenames"`
	Info               *pkginfo.PackageInfo `json:"info"`
}

// FetchPkgInfo returns the package metadata for one release, from cache when
// the cached entry still covers every file of the release, otherwise
// freshly fetched. A fresh fetch of the latest release also updates the
// project's summary row.
func (c *Crawler) FetchPkgInfo(
	ctx context.Context,
	detail *index.ProjectDetail,
	version pep440.Version,
	infos []projects.ShortReleaseInfo,
	latest pep440.Version,
	forceRecache bool,
) (index.File, *pkginfo.PackageInfo, error) {
	canonical := index.NormalizeName(detail.Name)

	var release *projects.ShortReleaseInfo
	for i := range infos {
		if infos[i].Version.Equal(version) {
			release = &infos[i]
			break
		}
	}
	if release == nil {
		return index.File{}, nil, fmt.Errorf("project %s has no release %s", detail.Name, version)
	}

	if !forceRecache {
		var cached cachedPkgInfo
		hit, err := c.cache.Get(cache.PkgInfoNamespace, canonical, version.String(), &cached)
		if err != nil {
			c.logger.Warnf("reading cached metadata for %s %s: %v", canonical, version, err)
		}
		if hit && coversAllFiles(cached.CachedFilenames, release.Files) {
			return cached.RepresentativeFile, cached.Info, nil
		}
	}

	if err := c.store.InsertIfMissing(canonical, detail.Name); err != nil {
		return index.File{}, nil, err
	}

	info, representative, err := c.fetcher.PackageInfo(ctx, release.Files)
	if err != nil {
		if !errors.Is(err, pkginfo.ErrNoMetadata) {
			return index.File{}, nil, err
		}
		// The index has no metadata document for this release. Cache the
		// miss so later cycles skip the release instead of refetching it.
		c.logger.Debugf("no metadata for %s %s, caching the miss", canonical, version)
		info = nil
	}

	filenames := make([]string, 0, len(release.Files))
	for _, file := range release.Files {
		filenames = append(filenames, file.Filename)
	}
	entry := cachedPkgInfo{
		RepresentativeFile: representative,
		CachedFilenames:    filenames,
		Info:               info,
	}
	if err := c.cache.Set(cache.PkgInfoNamespace, canonical, version.String(), entry); err != nil {
		c.logger.Warnf("caching metadata for %s %s: %v", canonical, version, err)
	}

	if info != nil && version.Equal(latest) {
		if err := c.store.UpdateSummary(canonical, info.Summary, version.String(), representative.UploadTime); err != nil {
			return representative, info, err
		}
	}

	return representative, info, nil
}

// popAny removes and returns an arbitrary element of the set.
func popAny(set map[string]struct{}) string {
	for name := range set {
		delete(set, name)
		return name
	}
	return ""
}

func coversAllFiles(cachedFilenames []string, files []index.File) bool {
	known := make(map[string]bool, len(cachedFilenames))
	for _, name := range cachedFilenames {
		known[name] = true
	}
	for _, file := range files {
		if !known[file.Filename] {
			return false
		}
	}
	return true
}
