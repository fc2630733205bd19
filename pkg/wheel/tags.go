package wheel

import (
	"fmt"
	"strings"

	"github.com/pydex/pydex/pkg/pep440"
)

// pyTagImplementations maps the two-letter python tag prefixes to the
// interpreter implementation names.
// https://packaging.python.org/en/latest/specifications/platform-compatibility-tags/#python-tag
var pyTagImplementations = map[string]string{
	"py": "Python",
	"cp": "CPython",
	"ip": "IronPython",
	"pp": "PyPy",
	"jy": "Jython",
}

// InterpretedTag is the human-readable reading of a python/ABI tag pair,
// along with the sort keys used to order the matrix axis.
type InterpretedTag struct {
	NiceName       string
	Implementation string
	PythonVersion  pep440.Version
	known          bool
}

// InterpretPyAndABITag renders a python tag / ABI tag pair into a display
// name like "CPython 3.11 (debug)". Unrecognised python tag prefixes fall
// back to rendering both tags verbatim.
func InterpretPyAndABITag(pyTag, abiTag string) InterpretedTag {
	impl, ok := pyTagImplementations[prefixOf(pyTag)]
	if !ok {
		return InterpretedTag{NiceName: fmt.Sprintf("%s (%s)", pyTag, abiTag)}
	}

	versionNodot := pyTag[2:]
	pyVersion := interpretVersionSuffix(versionNodot)

	switch {
	case strings.HasPrefix(abiTag, pyTag):
		flags := abiTag[len(pyTag):]
		if strings.Contains(flags, "d") {
			flags = strings.ReplaceAll(flags, "d", "")
			impl += " (debug)"
		}
		if strings.Contains(flags, "u") {
			// Wide unicode builds, a Python 2 concept.
			flags = strings.ReplaceAll(flags, "u", "")
			impl += " (wide)"
		}
		// The "m" pymalloc flag carries no useful information.
		flags = strings.ReplaceAll(flags, "m", "")
		if flags != "" {
			impl += fmt.Sprintf(" (additional flags: %s)", flags)
		}
		return interpreted(fmt.Sprintf("%s %s", impl, pyVersion), impl, pyVersion)
	case strings.HasPrefix(abiTag, "pypy") && impl == "PyPy":
		parts := strings.SplitN(abiTag, "_", 2)
		abi := abiTag
		if len(parts) == 2 {
			abi = parts[1]
		}
		return interpreted(fmt.Sprintf("%s %s (%s)", impl, pyVersion, abi), impl, pyVersion)
	case abiTag == "abi3":
		return interpreted(fmt.Sprintf("%s >=%s (abi3)", impl, pyVersion), impl, pyVersion)
	case abiTag == "none":
		return interpreted(fmt.Sprintf("%s %s", impl, pyVersion), impl, pyVersion)
	default:
		return interpreted(fmt.Sprintf("%s %s (%s)", impl, pyVersion, abiTag), impl, pyVersion)
	}
}

func interpreted(niceName, impl string, version pep440.Version) InterpretedTag {
	return InterpretedTag{
		NiceName:       niceName,
		Implementation: impl,
		PythonVersion:  version,
		known:          true,
	}
}

func prefixOf(pyTag string) string {
	if len(pyTag) < 2 {
		return ""
	}
	return pyTag[:2]
}

// interpretVersionSuffix parses the version part of a python tag: a single
// digit is a bare major version, underscore-separated parts form a dotted
// version, anything else splits after the first digit into major.rest.
func interpretVersionSuffix(versionNodot string) pep440.Version {
	if versionNodot == "" {
		return pep440.Invalid("")
	}
	var s string
	switch {
	case strings.Contains(versionNodot, "_"):
		s = strings.Join(strings.Split(versionNodot, "_"), ".")
	case len(versionNodot) == 1:
		s = versionNodot
	default:
		s = versionNodot[:1] + "." + versionNodot[1:]
	}
	v, err := pep440.Parse(s)
	if err != nil {
		return pep440.Invalid(versionNodot)
	}
	return v
}
