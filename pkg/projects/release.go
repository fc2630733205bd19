// Package projects derives per-release information from an upstream project
// page: files grouped by the version embedded in their filename, quarantine
// metadata merged in, and display labels such as yanked or latest-release.
package projects

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/pydex/pydex/pkg/index"
	"github.com/pydex/pydex/pkg/pep440"
)

// Label keys attached to a release. Values are human-readable reasons.
const (
	LabelYanked        = "yanked"
	LabelPartialYank   = "partial-yank"
	LabelQuarantined   = "quarantined"
	LabelLatestRelease = "latest-release"
)

// ErrNoReleases is returned when a project page declares neither files nor
// version strings.
var ErrNoReleases = errors.New("project has no releases")

// ShortReleaseInfo is a lightweight per-version record. Many of these are
// computed per page view, so it stays cheap: no file downloads, only data
// already present on the project page.
type ShortReleaseInfo struct {
	Version     pep440.Version
	Files       []index.File
	ReleaseDate *time.Time
	Labels      map[string]string
}

// ReleaseInfos groups the project's files by release and returns them sorted
// by ascending version, together with the latest version. Exactly one entry
// carries the latest-release label.
func ReleaseInfos(detail index.ProjectDetail) ([]ShortReleaseInfo, pep440.Version, error) {
	canonical := index.NormalizeName(detail.Name)

	byVersion := make(map[string]*releaseEntry)
	lookup := func(v pep440.Version) *releaseEntry {
		key := v.String()
		e, ok := byVersion[key]
		if !ok {
			e = &releaseEntry{version: v}
			byVersion[key] = e
		}
		return e
	}

	for _, file := range detail.Files {
		v := extractVersion(file.Filename, canonical)
		e := lookup(v)
		e.files = append(e.files, file)
	}

	// Declared version strings get an entry even with zero files, so a
	// fully quarantined release still shows up.
	for _, raw := range detail.Versions {
		v, err := pep440.Parse(raw)
		if err != nil {
			v = pep440.Invalid(raw)
		}
		lookup(v)
	}

	quarantined, err := detail.QuarantinedFiles()
	if err != nil {
		return nil, pep440.Version{}, fmt.Errorf("reading quarantined files for %s: %w", detail.Name, err)
	}
	for _, qf := range quarantined {
		v := extractVersion(qf.Filename, canonical)
		e := lookup(v)
		e.quarantined = append(e.quarantined, qf)
	}

	if len(byVersion) == 0 {
		return nil, pep440.Version{}, ErrNoReleases
	}

	entries := make([]*releaseEntry, 0, len(byVersion))
	for _, e := range byVersion {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].version.Less(entries[j].version)
	})

	latest := latestVersion(entries)

	infos := make([]ShortReleaseInfo, 0, len(entries))
	for _, e := range entries {
		info := ShortReleaseInfo{
			Version:     e.version,
			Files:       e.files,
			ReleaseDate: releaseDate(e.files, e.quarantined),
			Labels:      map[string]string{},
		}
		applyYankLabels(&info)
		if len(e.files) == 0 && len(e.quarantined) > 0 {
			info.Labels[LabelQuarantined] = quarantineReason(e.quarantined)
		}
		if e.version.Equal(latest) {
			info.Labels[LabelLatestRelease] = "latest available release"
		}
		infos = append(infos, info)
	}

	return infos, latest, nil
}

type releaseEntry struct {
	version     pep440.Version
	files       []index.File
	quarantined []index.QuarantinedFile
}

// latestVersion picks the release to advertise as latest: prefer versions
// that have files, then stable over dev/pre-release, then the version order
// itself.
func latestVersion(entries []*releaseEntry) pep440.Version {
	best := entries[0]
	for _, e := range entries[1:] {
		if lessEntry(best, e) {
			best = e
		}
	}
	return best.version
}

func lessEntry(a, b *releaseEntry) bool {
	if hasFiles := boolToInt(len(a.files) > 0) - boolToInt(len(b.files) > 0); hasFiles != 0 {
		return hasFiles < 0
	}
	if stable := boolToInt(!a.version.IsPrerelease()) - boolToInt(!b.version.IsPrerelease()); stable != 0 {
		return stable < 0
	}
	return a.version.Less(b.version)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func releaseDate(files []index.File, quarantined []index.QuarantinedFile) *time.Time {
	var earliest *time.Time
	for _, file := range files {
		if file.UploadTime == nil {
			continue
		}
		if earliest == nil || file.UploadTime.Before(*earliest) {
			t := *file.UploadTime
			earliest = &t
		}
	}
	if earliest != nil {
		return earliest
	}
	for _, qf := range quarantined {
		t, err := qf.UploadedAt()
		if err != nil {
			continue
		}
		if earliest == nil || t.Before(*earliest) {
			u := t
			earliest = &u
		}
	}
	return earliest
}

func applyYankLabels(info *ShortReleaseInfo) {
	if len(info.Files) == 0 {
		return
	}
	yanked := 0
	var reasons []string
	seen := map[string]bool{}
	for _, file := range info.Files {
		if !file.Yanked {
			continue
		}
		yanked++
		if file.YankedReason != "" && !seen[file.YankedReason] {
			seen[file.YankedReason] = true
			reasons = append(reasons, file.YankedReason)
		}
	}
	switch {
	case yanked == len(info.Files):
		info.Labels[LabelYanked] = strings.Join(reasons, "; ")
	case yanked > 0:
		info.Labels[LabelPartialYank] = "some files for this release have been yanked"
	}
}

func quarantineReason(quarantined []index.QuarantinedFile) string {
	var earliest *time.Time
	for _, qf := range quarantined {
		t, err := qf.AvailableFrom()
		if err != nil {
			continue
		}
		if earliest == nil || t.Before(*earliest) {
			u := t
			earliest = &u
		}
	}
	if earliest == nil {
		return "all files for this release are quarantined"
	}
	return fmt.Sprintf("available from %s", earliest.Format(time.RFC3339))
}
