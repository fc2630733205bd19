package wheel

import (
	"sort"

	"github.com/pydex/pydex/pkg/index"
)

// MatrixKey addresses one cell of the compatibility matrix.
type MatrixKey struct {
	PyABIName string
	Platform  string
}

// CompatibilityMatrix maps (python/ABI name, platform name) pairs to the file
// providing that combination, together with the sorted axis name lists.
// It is computed fresh per request and never persisted.
type CompatibilityMatrix struct {
	Matrix        map[MatrixKey]index.File
	PyABINames    []string
	PlatformNames []string
}

// Matrix computes the compatibility matrix for a release's files. Non-wheel
// files and unparsable wheel filenames are ignored; a wheel with compound
// tags occupies one cell per expanded combination.
func Matrix(files []index.File) CompatibilityMatrix {
	cells := make(map[MatrixKey]index.File)
	interpretedCache := make(map[[2]string]InterpretedTag)
	pyABISortKeys := make(map[string]InterpretedTag)
	platformSet := make(map[string]struct{})

	for _, file := range files {
		if !file.IsWheel() {
			continue
		}
		parsed, err := ParseFilename(file.Filename)
		if err != nil {
			continue
		}

		tags := parsed.Tags()
		// Give the cells a deterministic winner when several tags of one
		// file collide on a cell.
		sort.Slice(tags, func(i, j int) bool {
			a, b := tags[i], tags[j]
			if a.Platform != b.Platform {
				return a.Platform < b.Platform
			}
			if a.ABI != b.ABI {
				return a.ABI < b.ABI
			}
			return a.Interpreter < b.Interpreter
		})

		for _, tag := range tags {
			cacheKey := [2]string{tag.Interpreter, tag.ABI}
			interp, ok := interpretedCache[cacheKey]
			if !ok {
				interp = InterpretPyAndABITag(tag.Interpreter, tag.ABI)
				interpretedCache[cacheKey] = interp
			}

			cells[MatrixKey{PyABIName: interp.NiceName, Platform: tag.Platform}] = file
			pyABISortKeys[interp.NiceName] = interp
			platformSet[tag.Platform] = struct{}{}
		}
	}

	platforms := make([]string, 0, len(platformSet))
	for name := range platformSet {
		platforms = append(platforms, name)
	}
	sort.Strings(platforms)

	pyABINames := make([]string, 0, len(pyABISortKeys))
	for name := range pyABISortKeys {
		pyABINames = append(pyABINames, name)
	}
	// Order interpreters by implementation then version so related entries
	// stay adjacent and chronological.
	sort.Slice(pyABINames, func(i, j int) bool {
		a, b := pyABISortKeys[pyABINames[i]], pyABISortKeys[pyABINames[j]]
		if a.Implementation != b.Implementation {
			return a.Implementation < b.Implementation
		}
		if c := a.PythonVersion.Compare(b.PythonVersion); c != 0 {
			return c < 0
		}
		return a.NiceName < b.NiceName
	})

	return CompatibilityMatrix{
		Matrix:        cells,
		PyABINames:    pyABINames,
		PlatformNames: platforms,
	}
}
