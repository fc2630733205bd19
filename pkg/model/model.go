// Package model is the application core behind the API layer: it answers
// search queries from the local project index and assembles project pages
// from the upstream repository, the metadata cache and the crawler.
package model

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pydex/pydex/pkg/cache"
	"github.com/pydex/pydex/pkg/crawler"
	"github.com/pydex/pydex/pkg/index"
	"github.com/pydex/pydex/pkg/log"
	"github.com/pydex/pydex/pkg/pep440"
	"github.com/pydex/pydex/pkg/pkginfo"
	"github.com/pydex/pydex/pkg/projects"
	"github.com/pydex/pydex/pkg/search"
	"github.com/pydex/pydex/pkg/storage"
	"github.com/pydex/pydex/pkg/wheel"
)

// SearchResultItem is one row of a query result page.
type SearchResultItem struct {
	CanonicalName  string     `json:"canonical_name"`
	Summary        string     `json:"summary"`
	ReleaseVersion string     `json:"release_version"`
	ReleaseDate    *time.Time `json:"release_date"`
}

// QueryResult is a single page of search results. ResultsCount may exceed
// len(Results) since the results are paginated.
type QueryResult struct {
	Exact              *SearchResultItem  `json:"exact"`
	SearchQuery        string             `json:"search_query"`
	Results            []SearchResultItem `json:"results"`
	ResultsCount       int                `json:"results_count"`
	SingleNameProposal string             `json:"single_name_proposal,omitempty"`
	Page               int                `json:"page"` // starts at 1
	NPages             int                `json:"n_pages"`
}

// ProjectPage aggregates everything the project view needs.
type ProjectPage struct {
	Project               *index.ProjectDetail
	Releases              []projects.ShortReleaseInfo
	Version               string
	FilesForVersion       []index.File
	ClassifiersByTopLevel map[string][]string
	LatestVersion         string
	FileInfo              index.File
	FileMetadata          *pkginfo.PackageInfo
	CompatibilityMatrix   wheel.CompatibilityMatrix
}

// RepositoryStats summarizes the state of the local index.
type RepositoryStats struct {
	Projects             int `json:"n_projects"`
	CachedReleases       int `json:"n_cached_releases"`
	ProjectsWithMetadata int `json:"n_projects_with_metadata"`
}

type Model struct {
	repo    index.Repository
	store   *storage.Store
	cache   *cache.Cache
	crawler *crawler.Crawler
	logger  *log.Logger
}

func New(repo index.Repository, store *storage.Store, metadataCache *cache.Cache, c *crawler.Crawler) *Model {
	return &Model{
		repo:    repo,
		store:   store,
		cache:   metadataCache,
		crawler: c,
		logger:  log.ForService("model"),
	}
}

// ProjectQuery runs a search query against the local project index and
// returns the requested result page.
func (m *Model) ProjectQuery(ctx context.Context, query string, pageSize, page int) (*QueryResult, error) {
	term, err := search.Parse(query)
	if err != nil {
		return nil, &InvalidSearchQuery{Detail: fmt.Sprintf("invalid search pattern (%v)", err)}
	}
	if term == nil {
		return nil, &InvalidSearchQuery{Detail: "please specify a search query"}
	}

	builder, err := search.Compile(term)
	if err != nil {
		return nil, &InvalidSearchQuery{Detail: fmt.Sprintf("search query invalid (%v)", err)}
	}

	resultsCount, err := m.store.Count(builder)
	if err != nil {
		return nil, err
	}

	nPages := (resultsCount + pageSize - 1) / pageSize
	if nPages > 0 && (page < 1 || page > nPages) {
		return nil, &InvalidSearchQuery{
			Detail: fmt.Sprintf("requested page (page: %d) is beyond the number of pages (%d)", page, nPages),
		}
	}

	result := &QueryResult{
		SearchQuery:  query,
		ResultsCount: resultsCount,
		Page:         page,
		NPages:       nPages,
	}

	if name, ok := search.SimpleNameFromQuery(term); ok {
		result.SingleNameProposal = name
		project, err := m.store.GetExact(name)
		if err != nil {
			return nil, err
		}
		if project != nil {
			item := toResultItem(*project)
			result.Exact = &item
		}
	}

	offset := (page - 1) * pageSize
	rows, err := m.store.Search(builder, pageSize, offset)
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		item := toResultItem(row)
		// The exact match is shown separately, drop the duplicate.
		if result.Exact != nil && item.CanonicalName == result.Exact.CanonicalName {
			continue
		}
		result.Results = append(result.Results, item)
	}

	return result, nil
}

// ProjectPage fetches a live project page from the upstream index. When the
// upstream index no longer knows the project, the local row and its cached
// metadata are evicted before reporting not-found.
func (m *Model) ProjectPage(ctx context.Context, projectName, version string, recache bool) (*ProjectPage, error) {
	canonical := index.NormalizeName(projectName)

	detail, err := m.repo.GetProjectPage(ctx, canonical)
	if err != nil {
		if errors.Is(err, index.ErrNotFound) {
			m.evictProject(canonical)
			return nil, &RequestError{StatusCode: 404, Detail: fmt.Sprintf("project %q not found", projectName)}
		}
		return nil, err
	}
	if err := m.store.InsertIfMissing(canonical, detail.Name); err != nil {
		return nil, err
	}

	infos, latest, err := projects.ReleaseInfos(*detail)
	if err != nil {
		if errors.Is(err, projects.ErrNoReleases) {
			return nil, &RequestError{StatusCode: 404, Detail: fmt.Sprintf("no releases for %q", projectName)}
		}
		return nil, err
	}

	selected := latest
	if version != "" {
		v, err := pep440.Parse(version)
		if err != nil {
			v = pep440.Invalid(version)
		}
		selected = v
	}

	var release *projects.ShortReleaseInfo
	for i := range infos {
		if infos[i].Version.Equal(selected) {
			release = &infos[i]
			break
		}
	}
	if release == nil {
		return nil, &RequestError{
			StatusCode: 404,
			Detail:     fmt.Sprintf("release %q not found for %q", version, projectName),
		}
	}

	fileInfo, metadata, err := m.crawler.FetchPkgInfo(ctx, detail, selected, infos, latest, recache)
	if err != nil {
		return nil, err
	}

	page := &ProjectPage{
		Project:             detail,
		Releases:            infos,
		Version:             selected.String(),
		FilesForVersion:     release.Files,
		LatestVersion:       latest.String(),
		FileInfo:            fileInfo,
		FileMetadata:        metadata,
		CompatibilityMatrix: wheel.Matrix(release.Files),
	}
	if metadata != nil {
		page.ClassifiersByTopLevel = groupClassifiers(metadata.Classifiers)
	}
	return page, nil
}

// RepositoryStats reports the size of the local index and metadata cache.
func (m *Model) RepositoryStats(ctx context.Context) (*RepositoryStats, error) {
	nProjects, err := m.store.CountAll()
	if err != nil {
		return nil, err
	}
	nCached, err := m.cache.CountEntries(cache.PkgInfoNamespace)
	if err != nil {
		return nil, err
	}
	names, err := m.cache.Names(cache.PkgInfoNamespace)
	if err != nil {
		return nil, err
	}
	return &RepositoryStats{
		Projects:             nProjects,
		CachedReleases:       nCached,
		ProjectsWithMetadata: len(names),
	}, nil
}

func (m *Model) evictProject(canonical string) {
	if err := m.cache.DeleteAll(cache.PkgInfoNamespace, canonical); err != nil {
		m.logger.Warnf("evicting cached metadata for %s: %v", canonical, err)
	}
	if err := m.store.RemoveIfFound(canonical); err != nil {
		m.logger.Warnf("removing project row for %s: %v", canonical, err)
	}
}

func toResultItem(project storage.Project) SearchResultItem {
	return SearchResultItem{
		CanonicalName:  project.CanonicalName,
		Summary:        project.Summary,
		ReleaseVersion: project.ReleaseVersion,
		ReleaseDate:    project.ReleaseDate,
	}
}

// groupClassifiers groups trove classifiers by their top-level component,
// e.g. "Programming Language :: Python :: 3" files under
// "Programming Language".
func groupClassifiers(classifiers []string) map[string][]string {
	grouped := make(map[string][]string)
	for _, classifier := range classifiers {
		top, _, _ := strings.Cut(classifier, "::")
		top = strings.TrimSpace(top)
		grouped[top] = append(grouped[top], classifier)
	}
	return grouped
}
