package index

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// File is a single distribution file listed on a project page.
type File struct {
	Filename string
	URL      string

	// Size in bytes, zero when the index did not report one. HasSize
	// distinguishes "unknown" from a genuinely empty file.
	Size    int64
	HasSize bool

	// UploadTime is nil when the index does not expose one.
	UploadTime *time.Time

	// Yanked is true when the file has been withdrawn-but-retained.
	// YankedReason carries the optional human-readable reason.
	Yanked       bool
	YankedReason string

	// DistInfoMetadata indicates a PEP 658 metadata resource is available
	// for this file (filename + ".metadata").
	DistInfoMetadata bool
}

// WithSize returns a copy of f with the size populated.
func (f File) WithSize(size int64) File {
	f.Size = size
	f.HasSize = true
	return f
}

// IsWheel reports whether the file is a binary wheel.
func (f File) IsWheel() bool {
	return strings.HasSuffix(strings.ToLower(f.Filename), ".whl")
}

// ProjectDetail is the content of a project page (PEP 691 project detail).
type ProjectDetail struct {
	Name  string
	Files []File

	// Versions is the declared version list, when the index provides one.
	// It may name versions that have no files at all (for example a fully
	// quarantined release).
	Versions []string

	// PrivateMetadata carries index-private extension fields verbatim.
	PrivateMetadata map[string]json.RawMessage
}

// ProjectListEntry is one project in the repository-wide listing.
type ProjectListEntry struct {
	Name           string `json:"name"`
	NormalizedName string `json:"normalized_name"`
}

// ProjectList is the repository-wide project listing.
type ProjectList struct {
	Projects []ProjectListEntry
}

// QuarantinedFile describes a file withheld pending a release time. The wire
// shape is an external contract of the index's private metadata and must be
// preserved exactly.
type QuarantinedFile struct {
	Filename              string `json:"filename"`
	UploadTime            string `json:"upload_time"`
	QuarantineReleaseTime string `json:"quarantine_release_time"`
}

// QuarantineTimeLayout is the timestamp layout used inside the quarantined
// files private metadata.
const QuarantineTimeLayout = time.RFC3339

// quarantinedFilesKey is the private-metadata field carrying quarantine data.
const quarantinedFilesKey = "_quarantined_files"

// QuarantinedFiles decodes the quarantined-files side channel from a project
// detail's private metadata. A missing field yields an empty slice.
func (p ProjectDetail) QuarantinedFiles() ([]QuarantinedFile, error) {
	raw, ok := p.PrivateMetadata[quarantinedFilesKey]
	if !ok {
		return nil, nil
	}
	var files []QuarantinedFile
	if err := json.Unmarshal(raw, &files); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", quarantinedFilesKey, err)
	}
	return files, nil
}

// UploadedAt parses the quarantined file's original upload time.
func (q QuarantinedFile) UploadedAt() (time.Time, error) {
	return time.Parse(QuarantineTimeLayout, q.UploadTime)
}

// AvailableFrom parses the time at which the file leaves quarantine.
func (q QuarantinedFile) AvailableFrom() (time.Time, error) {
	return time.Parse(QuarantineTimeLayout, q.QuarantineReleaseTime)
}
