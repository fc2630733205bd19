package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/pydex/pydex/pkg/index"
	"github.com/pydex/pydex/pkg/model"
	"github.com/pydex/pydex/pkg/version"
	"github.com/pydex/pydex/pkg/wheel"
)

func (s *Server) HandleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		s.writeError(w, http.StatusBadRequest, "Missing query parameter", "Query parameter 'q' is required")
		return
	}

	page := 1
	if raw := r.URL.Query().Get("page"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			s.writeError(w, http.StatusBadRequest, "Invalid page", "Page must be a positive integer")
			return
		}
		page = parsed
	}

	result, err := s.model.ProjectQuery(r.Context(), query, s.pageSize, page)
	if err != nil {
		s.writeModelError(w, "Search failed", err)
		return
	}

	response := SearchResponse{
		Query:        result.SearchQuery,
		Exact:        result.Exact,
		Results:      result.Results,
		ResultsCount: result.ResultsCount,
		Page:         result.Page,
		TotalPages:   result.NPages,
		HasMore:      result.Page < result.NPages,
	}
	if response.Results == nil {
		response.Results = []model.SearchResultItem{}
	}

	s.writeJSON(w, http.StatusOK, response)
}

func (s *Server) HandleProject(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if name == "" {
		s.writeError(w, http.StatusBadRequest, "Invalid path", "Project name is required")
		return
	}
	version := r.PathValue("version")
	recache := r.URL.Query().Get("recache") == "1"

	page, err := s.model.ProjectPage(r.Context(), name, version, recache)
	if err != nil {
		s.writeModelError(w, "Failed to fetch project", err)
		return
	}

	s.writeJSON(w, http.StatusOK, projectResponse(page))
}

func (s *Server) HandleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.model.RepositoryStats(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "Failed to get stats", err.Error())
		return
	}

	s.writeJSON(w, http.StatusOK, stats)
}

func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	health := HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC(),
		Version:   version.APIVersion(),
	}

	s.writeJSON(w, http.StatusOK, health)
}

// writeModelError maps the model's typed errors onto HTTP statuses. Unknown
// errors become an opaque 500 so upstream details never leak to clients.
func (s *Server) writeModelError(w http.ResponseWriter, context string, err error) {
	var invalid *model.InvalidSearchQuery
	if errors.As(err, &invalid) {
		s.writeError(w, http.StatusBadRequest, "Invalid search query", invalid.Detail)
		return
	}
	var reqErr *model.RequestError
	if errors.As(err, &reqErr) {
		s.writeError(w, reqErr.StatusCode, http.StatusText(reqErr.StatusCode), reqErr.Detail)
		return
	}
	s.logger.Errorf("%s: %v", context, err)
	s.writeError(w, http.StatusInternalServerError, context, "internal error")
}

func projectResponse(page *model.ProjectPage) ProjectResponse {
	releases := make([]ReleaseResponse, len(page.Releases))
	for i, release := range page.Releases {
		releases[i] = ReleaseResponse{
			Version:     release.Version.String(),
			FileCount:   len(release.Files),
			ReleaseDate: release.ReleaseDate,
			Labels:      release.Labels,
		}
	}

	files := make([]FileResponse, len(page.FilesForVersion))
	for i, file := range page.FilesForVersion {
		files[i] = fileResponse(file)
	}

	return ProjectResponse{
		Name:          page.Project.Name,
		Version:       page.Version,
		LatestVersion: page.LatestVersion,
		Releases:      releases,
		Files:         files,
		Metadata:      page.FileMetadata,
		Classifiers:   page.ClassifiersByTopLevel,
		Compatibility: compatibilityResponse(page.CompatibilityMatrix),
	}
}

func fileResponse(file index.File) FileResponse {
	resp := FileResponse{
		Filename:     file.Filename,
		URL:          file.URL,
		UploadTime:   file.UploadTime,
		Yanked:       file.Yanked,
		YankedReason: file.YankedReason,
	}
	if file.HasSize {
		size := file.Size
		resp.Size = &size
	}
	return resp
}

func compatibilityResponse(matrix wheel.CompatibilityMatrix) *CompatibilityResponse {
	if len(matrix.Matrix) == 0 {
		return nil
	}
	cells := make(map[string]map[string]string)
	for key, file := range matrix.Matrix {
		row, ok := cells[key.PyABIName]
		if !ok {
			row = make(map[string]string)
			cells[key.PyABIName] = row
		}
		row[key.Platform] = file.Filename
	}
	return &CompatibilityResponse{
		PyABINames:    matrix.PyABINames,
		PlatformNames: matrix.PlatformNames,
		Cells:         cells,
	}
}
