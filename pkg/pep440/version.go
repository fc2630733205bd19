// Package pep440 implements parsing and ordering of Python package version
// numbers as specified by PEP 440.
//
// The comparison semantics mirror the reference "packaging" implementation:
// epoch first, then the release tuple (with trailing zeros ignored), then the
// pre/post/dev segments with their infinity-style sentinels, then the local
// segment. A dedicated Invalid sentinel sorts before every valid version so
// that unparsable filenames never win a "latest release" comparison.
package pep440

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// versionRE is the canonical PEP 440 version pattern (appendix B of the spec),
// anchored and case-insensitive, with the leading "v" prefix allowed.
var versionRE = regexp.MustCompile(`(?i)^v?` +
	`(?:(?P<epoch>[0-9]+)!)?` +
	`(?P<release>[0-9]+(?:\.[0-9]+)*)` +
	`(?P<pre>[-_.]?(?P<preL>alpha|a|beta|b|preview|pre|c|rc)[-_.]?(?P<preN>[0-9]+)?)?` +
	`(?P<post>(?:-(?P<postN1>[0-9]+))|(?:[-_.]?(?P<postL>post|rev|r)[-_.]?(?P<postN2>[0-9]+)?))?` +
	`(?P<dev>[-_.]?dev[-_.]?(?P<devN>[0-9]+)?)?` +
	`(?:\+(?P<local>[a-z0-9]+(?:[-_.][a-z0-9]+)*))?$`)

// Version is an immutable, parsed PEP 440 version.
type Version struct {
	epoch   int
	release []int
	pre     *letterNumber
	post    *int
	dev     *int
	local   []localSegment

	original string
	invalid  bool
}

type letterNumber struct {
	letter string
	number int
}

type localSegment struct {
	num     int
	str     string
	numeric bool
}

// Parse parses s as a PEP 440 version. The error is non-nil for anything the
// grammar does not accept (including empty strings).
func Parse(s string) (Version, error) {
	trimmed := strings.TrimSpace(s)
	m := versionRE.FindStringSubmatch(trimmed)
	if m == nil {
		return Version{}, fmt.Errorf("invalid version: %q", s)
	}
	groups := make(map[string]string)
	for i, name := range versionRE.SubexpNames() {
		if name != "" && m[i] != "" {
			groups[name] = strings.ToLower(m[i])
		}
	}

	v := Version{original: trimmed}
	if e, ok := groups["epoch"]; ok {
		v.epoch, _ = strconv.Atoi(e)
	}
	for _, part := range strings.Split(groups["release"], ".") {
		n, err := strconv.Atoi(part)
		if err != nil {
			return Version{}, fmt.Errorf("invalid version: %q", s)
		}
		v.release = append(v.release, n)
	}
	if _, ok := groups["pre"]; ok {
		v.pre = &letterNumber{
			letter: normalizePreLabel(groups["preL"]),
			number: atoiDefault(groups["preN"]),
		}
	}
	if _, ok := groups["post"]; ok {
		n := atoiDefault(groups["postN1"])
		if _, implicit := groups["postN1"]; !implicit {
			n = atoiDefault(groups["postN2"])
		}
		v.post = &n
	}
	if _, ok := groups["dev"]; ok {
		n := atoiDefault(groups["devN"])
		v.dev = &n
	}
	if local, ok := groups["local"]; ok {
		for _, part := range splitLocal(local) {
			if n, err := strconv.Atoi(part); err == nil {
				v.local = append(v.local, localSegment{num: n, numeric: true})
			} else {
				v.local = append(v.local, localSegment{str: part})
			}
		}
	}
	return v, nil
}

// MustParse parses s and panics on error. Intended for tests and constants.
func MustParse(s string) Version {
	v, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return v
}

// Invalid returns the sentinel version for an unparsable version string.
// It keeps the original text for display, sorts before every valid version
// and reports itself as a pre-release so it is never chosen as latest.
func Invalid(original string) Version {
	return Version{original: original, invalid: true}
}

func normalizePreLabel(label string) string {
	switch label {
	case "alpha":
		return "a"
	case "beta":
		return "b"
	case "c", "pre", "preview":
		return "rc"
	}
	return label
}

func atoiDefault(s string) int {
	if s == "" {
		return 0
	}
	n, _ := strconv.Atoi(s)
	return n
}

func splitLocal(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return r == '-' || r == '_' || r == '.'
	})
}

// IsInvalid reports whether v is the Invalid sentinel.
func (v Version) IsInvalid() bool { return v.invalid }

// IsDevRelease reports whether v carries a .devN segment.
func (v Version) IsDevRelease() bool { return v.dev != nil }

// IsPrerelease reports whether v is a pre-release or a dev release, matching
// the semantics of packaging's Version.is_prerelease.
func (v Version) IsPrerelease() bool { return v.invalid || v.pre != nil || v.dev != nil }

// String returns the normalized form of the version, or the original text
// for the Invalid sentinel.
func (v Version) String() string {
	if v.invalid {
		return v.original
	}
	var b strings.Builder
	if v.epoch != 0 {
		fmt.Fprintf(&b, "%d!", v.epoch)
	}
	parts := make([]string, len(v.release))
	for i, n := range v.release {
		parts[i] = strconv.Itoa(n)
	}
	b.WriteString(strings.Join(parts, "."))
	if v.pre != nil {
		fmt.Fprintf(&b, "%s%d", v.pre.letter, v.pre.number)
	}
	if v.post != nil {
		fmt.Fprintf(&b, ".post%d", *v.post)
	}
	if v.dev != nil {
		fmt.Fprintf(&b, ".dev%d", *v.dev)
	}
	if len(v.local) > 0 {
		b.WriteByte('+')
		segs := make([]string, len(v.local))
		for i, seg := range v.local {
			if seg.numeric {
				segs[i] = strconv.Itoa(seg.num)
			} else {
				segs[i] = seg.str
			}
		}
		b.WriteString(strings.Join(segs, "."))
	}
	return b.String()
}

// Sentinel ranks used to order the pre/post/dev segments the way packaging's
// _cmpkey does, without resorting to +/- infinity values.
const (
	rankNegInf = -1
	rankValue  = 0
	rankPosInf = 1
)

// Compare returns -1, 0 or +1 ordering v against other. The Invalid sentinel
// compares equal to itself and less than every valid version.
func (v Version) Compare(other Version) int {
	if v.invalid || other.invalid {
		switch {
		case v.invalid && other.invalid:
			return 0
		case v.invalid:
			return -1
		default:
			return 1
		}
	}
	if c := cmpInt(v.epoch, other.epoch); c != 0 {
		return c
	}
	if c := cmpRelease(v.release, other.release); c != 0 {
		return c
	}
	if c := cmpPre(v, other); c != 0 {
		return c
	}
	if c := cmpOptional(v.post, other.post, rankNegInf); c != 0 {
		return c
	}
	if c := cmpOptional(v.dev, other.dev, rankPosInf); c != 0 {
		return c
	}
	return cmpLocal(v.local, other.local)
}

// Less reports whether v orders before other.
func (v Version) Less(other Version) bool { return v.Compare(other) < 0 }

// Equal reports whether v and other compare equal (normalization-aware).
func (v Version) Equal(other Version) bool { return v.Compare(other) == 0 }

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func cmpRelease(a, b []int) int {
	a, b = trimZeros(a), trimZeros(b)
	for i := 0; i < len(a) && i < len(b); i++ {
		if c := cmpInt(a[i], b[i]); c != 0 {
			return c
		}
	}
	return cmpInt(len(a), len(b))
}

func trimZeros(r []int) []int {
	end := len(r)
	for end > 1 && r[end-1] == 0 {
		end--
	}
	return r[:end]
}

// preRank maps the pre segment to packaging's sentinel scheme: a bare dev
// release sorts below any pre-release, and no pre segment at all sorts above.
func preRank(v Version) (rank int, letter string, number int) {
	switch {
	case v.pre == nil && v.post == nil && v.dev != nil:
		return rankNegInf, "", 0
	case v.pre == nil:
		return rankPosInf, "", 0
	default:
		return rankValue, v.pre.letter, v.pre.number
	}
}

func cmpPre(a, b Version) int {
	ra, la, na := preRank(a)
	rb, lb, nb := preRank(b)
	if c := cmpInt(ra, rb); c != 0 {
		return c
	}
	if c := strings.Compare(la, lb); c != 0 {
		return c
	}
	return cmpInt(na, nb)
}

// cmpOptional orders optional numeric segments, treating absence as the given
// infinity rank (post: missing sorts first; dev: missing sorts last).
func cmpOptional(a, b *int, missingRank int) int {
	ra, rb := rankValue, rankValue
	va, vb := 0, 0
	if a == nil {
		ra = missingRank
	} else {
		va = *a
	}
	if b == nil {
		rb = missingRank
	} else {
		vb = *b
	}
	if c := cmpInt(ra, rb); c != 0 {
		return c
	}
	return cmpInt(va, vb)
}

func cmpLocal(a, b []localSegment) int {
	if len(a) == 0 || len(b) == 0 {
		return cmpInt(boolToInt(len(a) > 0), boolToInt(len(b) > 0))
	}
	for i := 0; i < len(a) && i < len(b); i++ {
		sa, sb := a[i], b[i]
		switch {
		case sa.numeric && sb.numeric:
			if c := cmpInt(sa.num, sb.num); c != 0 {
				return c
			}
		case sa.numeric != sb.numeric:
			// Numeric segments sort after string segments.
			return cmpInt(boolToInt(sa.numeric), boolToInt(sb.numeric))
		default:
			if c := strings.Compare(sa.str, sb.str); c != 0 {
				return c
			}
		}
	}
	return cmpInt(len(a), len(b))
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// Sort orders versions ascending, in place.
func Sort(versions []Version) {
	sort.SliceStable(versions, func(i, j int) bool {
		return versions[i].Less(versions[j])
	})
}
