package api

import (
	"time"

	"github.com/pydex/pydex/pkg/model"
	"github.com/pydex/pydex/pkg/pkginfo"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

type SearchResponse struct {
	Query        string                   `json:"query"`
	Exact        *model.SearchResultItem  `json:"exact,omitempty"`
	Results      []model.SearchResultItem `json:"results"`
	ResultsCount int                      `json:"results_count"`
	Page         int                      `json:"page"`
	TotalPages   int                      `json:"total_pages"`
	HasMore      bool                     `json:"has_more"`
}

type FileResponse struct {
	Filename     string     `json:"filename"`
	URL          string     `json:"url"`
	Size         *int64     `json:"size,omitempty"`
	UploadTime   *time.Time `json:"upload_time,omitempty"`
	Yanked       bool       `json:"yanked,omitempty"`
	YankedReason string     `json:"yanked_reason,omitempty"`
}

type ReleaseResponse struct {
	Version     string            `json:"version"`
	FileCount   int               `json:"file_count"`
	ReleaseDate *time.Time        `json:"release_date,omitempty"`
	Labels      map[string]string `json:"labels,omitempty"`
}

// CompatibilityResponse flattens the wheel compatibility matrix into JSON:
// Cells maps python/ABI name to platform name to providing filename.
type CompatibilityResponse struct {
	PyABINames    []string                     `json:"py_abi_names"`
	PlatformNames []string                     `json:"platform_names"`
	Cells         map[string]map[string]string `json:"cells"`
}

type ProjectResponse struct {
	Name          string                 `json:"name"`
	Version       string                 `json:"version"`
	LatestVersion string                 `json:"latest_version"`
	Releases      []ReleaseResponse      `json:"releases"`
	Files         []FileResponse         `json:"files"`
	Metadata      *pkginfo.PackageInfo   `json:"metadata,omitempty"`
	Classifiers   map[string][]string    `json:"classifiers,omitempty"`
	Compatibility *CompatibilityResponse `json:"compatibility,omitempty"`
}

type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
}
