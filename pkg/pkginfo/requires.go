package pkginfo

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	reqNameRE     = regexp.MustCompile(`^([a-zA-Z0-9][-a-zA-Z0-9._]*)`)
	extraMarkerRE = regexp.MustCompile(`\bextra\s*==`)
)

// InvalidRequirement reports a dependency specifier that could not be parsed.
// Non-PEP 508 specifiers still show up in the wild
// (https://discuss.python.org/t/pip-supporting-non-pep508-dependency-specifiers/23107),
// so callers are expected to log and skip rather than fail.
type InvalidRequirement struct {
	Specifier string
}

func (e *InvalidRequirement) Error() string {
	return fmt.Sprintf("invalid requirement specifier %q", e.Specifier)
}

// RequirementName extracts the distribution name from a PEP 508 dependency
// specifier like "requests (>=2.0); python_version >= '3.8'". The second
// return value is false for requirements guarded by an extra marker, which
// are not runtime dependencies.
func RequirementName(specifier string) (name string, runtime bool, err error) {
	trimmed := strings.TrimSpace(specifier)
	if trimmed == "" {
		return "", false, &InvalidRequirement{Specifier: specifier}
	}

	rest, marker, hasMarker := strings.Cut(trimmed, ";")
	runtime = !hasMarker || !extraMarkerRE.MatchString(marker)

	match := reqNameRE.FindStringSubmatch(strings.TrimSpace(rest))
	if match == nil {
		return "", false, &InvalidRequirement{Specifier: specifier}
	}
	return match[1], runtime, nil
}
