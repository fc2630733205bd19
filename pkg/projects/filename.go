package projects

import (
	"strings"

	"github.com/pydex/pydex/pkg/index"
	"github.com/pydex/pydex/pkg/pep440"
)

var sdistSuffixes = []string{
	".tar.gz", ".tar.bz2", ".tar.xz", ".tgz", ".tbz", ".tar", ".zip",
}

// extractVersion pulls the version out of a distribution filename. Wheel and
// egg filenames put it in the second hyphen segment; sdist filenames are
// "<name>-<version><suffix>" where the name part is matched against the
// canonical project name since the distribution may spell it differently.
// Unparsable filenames map to the invalid sentinel version.
func extractVersion(filename, canonicalName string) pep440.Version {
	lower := strings.ToLower(filename)
	if strings.HasSuffix(lower, ".whl") || strings.HasSuffix(lower, ".egg") {
		parts := strings.Split(filename, "-")
		if len(parts) < 2 {
			return pep440.Invalid(filename)
		}
		return parseOrInvalid(parts[1])
	}

	stem := filename
	for _, suffix := range sdistSuffixes {
		if strings.HasSuffix(lower, suffix) {
			stem = filename[:len(filename)-len(suffix)]
			break
		}
	}

	// The name part may itself contain hyphens. Scan for the split point
	// where the prefix normalizes to the canonical project name.
	for i := 0; i < len(stem); i++ {
		if stem[i] != '-' {
			continue
		}
		if index.NormalizeName(stem[:i]) == canonicalName {
			return parseOrInvalid(stem[i+1:])
		}
	}
	return pep440.Invalid(filename)
}

func parseOrInvalid(s string) pep440.Version {
	v, err := pep440.Parse(s)
	if err != nil {
		return pep440.Invalid(s)
	}
	return v
}
