package cmd

import (
	"fmt"
	"net/http"
	"time"

	"github.com/pydex/pydex/pkg/cache"
	"github.com/pydex/pydex/pkg/config"
	"github.com/pydex/pydex/pkg/crawler"
	"github.com/pydex/pydex/pkg/index"
	"github.com/pydex/pydex/pkg/model"
	"github.com/pydex/pydex/pkg/pkginfo"
	"github.com/pydex/pydex/pkg/storage"
)

// app bundles the wired-up service components every command needs.
type app struct {
	cfg     *config.Config
	repo    *index.Client
	store   *storage.Store
	cache   *cache.Cache
	crawler *crawler.Crawler
	model   *model.Model
}

// openApp loads the configuration and opens the store, cache, index client,
// crawler and model. The caller must Close the returned app.
func openApp(configPath string) (*app, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	store, err := storage.Open(cfg.DBPath())
	if err != nil {
		return nil, fmt.Errorf("opening project database: %w", err)
	}
	if err := store.CreateTable(); err != nil {
		closeStore(store)
		return nil, fmt.Errorf("initializing project database: %w", err)
	}

	metadataCache, err := cache.New(cfg.CacheDir())
	if err != nil {
		closeStore(store)
		return nil, fmt.Errorf("opening metadata cache: %w", err)
	}

	httpClient := &http.Client{Timeout: 30 * time.Second}
	repo := index.NewClient(cfg.IndexURL, httpClient)
	fetcher := pkginfo.NewFetcher(httpClient)

	c := crawler.New(repo, store, metadataCache, fetcher, httpClient, crawlerConfig(cfg))

	return &app{
		cfg:     cfg,
		repo:    repo,
		store:   store,
		cache:   metadataCache,
		crawler: c,
		model:   model.New(repo, store, metadataCache, c),
	}, nil
}

func (a *app) Close() {
	closeStore(a.store)
}

func closeStore(store *storage.Store) {
	if err := store.Close(); err != nil {
		fmt.Printf("Warning: failed to close project database: %v\n", err)
	}
}

func crawlerConfig(cfg *config.Config) crawler.Config {
	return crawler.Config{
		Frequency:            cfg.ReindexFrequency.Duration,
		RequestDelay:         cfg.RequestDelay.Duration,
		CrawlPopularProjects: cfg.CrawlPopularProjects,
		PopularProjectsURL:   cfg.PopularProjectsURL,
	}
}
