// Package wheel parses PEP 427 wheel filenames and interprets their
// compatibility tags into human-readable python/ABI and platform axes.
package wheel

import (
	"fmt"
	"strings"
)

// Filename is a parsed wheel filename. A wheel encodes five or six
// hyphen-delimited segments; the build tag is the optional sixth.
type Filename struct {
	Distribution string
	Version      string
	BuildTag     string
	PythonTags   []string
	ABITags      []string
	PlatformTags []string
}

// Tag is a single {python}-{abi}-{platform} compatibility triple.
type Tag struct {
	Interpreter string
	ABI         string
	Platform    string
}

// ParseFilename parses a .whl filename. Compound (dot-separated) tag fields
// are split but not expanded; use Tags for the Cartesian product.
func ParseFilename(filename string) (Filename, error) {
	base := filename
	if !strings.HasSuffix(strings.ToLower(base), ".whl") {
		return Filename{}, fmt.Errorf("not a wheel filename: %q", filename)
	}
	base = base[:len(base)-len(".whl")]

	parts := strings.Split(base, "-")
	var f Filename
	switch len(parts) {
	case 5:
		f = Filename{
			Distribution: parts[0],
			Version:      parts[1],
			PythonTags:   strings.Split(parts[2], "."),
			ABITags:      strings.Split(parts[3], "."),
			PlatformTags: strings.Split(parts[4], "."),
		}
	case 6:
		f = Filename{
			Distribution: parts[0],
			Version:      parts[1],
			BuildTag:     parts[2],
			PythonTags:   strings.Split(parts[3], "."),
			ABITags:      strings.Split(parts[4], "."),
			PlatformTags: strings.Split(parts[5], "."),
		}
	default:
		return Filename{}, fmt.Errorf("wheel filename %q has %d segments, want 5 or 6", filename, len(parts))
	}
	return f, nil
}

// Tags expands the compound tag fields into every individual compatibility
// triple the wheel declares.
func (f Filename) Tags() []Tag {
	var tags []Tag
	for _, py := range f.PythonTags {
		for _, abi := range f.ABITags {
			for _, plat := range f.PlatformTags {
				tags = append(tags, Tag{Interpreter: py, ABI: abi, Platform: plat})
			}
		}
	}
	return tags
}
