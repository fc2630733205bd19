package index

import (
	"regexp"
	"strings"
)

var nameSeparators = regexp.MustCompile(`[-_.]+`)

// NormalizeName canonicalizes a project name per PEP 503: lowercase, with
// every run of ".", "_" and "-" collapsed to a single "-". The function is
// idempotent.
func NormalizeName(name string) string {
	return strings.ToLower(nameSeparators.ReplaceAllString(name, "-"))
}
