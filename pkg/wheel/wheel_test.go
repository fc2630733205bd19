package wheel

import (
	"reflect"
	"testing"

	"github.com/pydex/pydex/pkg/index"
)

func TestParseFilename(t *testing.T) {
	tests := []struct {
		in   string
		want Filename
	}{
		{
			in: "cycler-0.12.1-py3-none-any.whl",
			want: Filename{
				Distribution: "cycler",
				Version:      "0.12.1",
				PythonTags:   []string{"py3"},
				ABITags:      []string{"none"},
				PlatformTags: []string{"any"},
			},
		},
		{
			in: "mypkg-1.0-1-py2.py3-none-any.whl",
			want: Filename{
				Distribution: "mypkg",
				Version:      "1.0",
				BuildTag:     "1",
				PythonTags:   []string{"py2", "py3"},
				ABITags:      []string{"none"},
				PlatformTags: []string{"any"},
			},
		},
		{
			in: "lxml-4.9.3-cp27-cp27du-manylinux_2_5_i686.manylinux1_i686.whl",
			want: Filename{
				Distribution: "lxml",
				Version:      "4.9.3",
				PythonTags:   []string{"cp27"},
				ABITags:      []string{"cp27du"},
				PlatformTags: []string{"manylinux_2_5_i686", "manylinux1_i686"},
			},
		},
	}
	for _, tt := range tests {
		got, err := ParseFilename(tt.in)
		if err != nil {
			t.Fatalf("ParseFilename(%q): %v", tt.in, err)
		}
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("ParseFilename(%q) = %+v, want %+v", tt.in, got, tt.want)
		}
	}
}

func TestParseFilenameErrors(t *testing.T) {
	for _, in := range []string{"lxml-4.9.3.tar.gz", "toofew-1.0.whl", "a-b-c-d-e-f-g.whl"} {
		if _, err := ParseFilename(in); err == nil {
			t.Errorf("ParseFilename(%q) succeeded, want error", in)
		}
	}
}

func TestTagsCartesianProduct(t *testing.T) {
	f, err := ParseFilename("mypkg-1.0-py2.py3-none-manylinux1_i686.win32.whl")
	if err != nil {
		t.Fatal(err)
	}
	tags := f.Tags()
	if len(tags) != 4 {
		t.Fatalf("got %d tags, want 4", len(tags))
	}
}

func TestInterpretPyAndABITag(t *testing.T) {
	tests := []struct {
		py, abi string
		want    string
	}{
		{"py3", "none", "Python 3"},
		{"cp38", "cp38", "CPython 3.8"},
		{"cp27", "cp27mu", "CPython (wide) 2.7"},
		{"cp27", "cp27du", "CPython (debug) (wide) 2.7"},
		{"cp27", "cp27abd", "CPython (debug) (additional flags: ab) 2.7"},
		{"cp3_99", "cp3_99d", "CPython (debug) 3.99"},
		{"cp37", "abi3", "CPython >=3.7 (abi3)"},
		{"cp38", "none", "CPython 3.8"},
		{"pp310", "pypy310_pp73", "PyPy 3.10 (pp73)"},
		{"cp311", "somethingelse", "CPython 3.11 (somethingelse)"},
		{"madeup27", "madeup2_7m", "madeup27 (madeup2_7m)"},
	}
	for _, tt := range tests {
		got := InterpretPyAndABITag(tt.py, tt.abi)
		if got.NiceName != tt.want {
			t.Errorf("InterpretPyAndABITag(%q, %q) = %q, want %q", tt.py, tt.abi, got.NiceName, tt.want)
		}
	}
}

func file(name string) index.File {
	return index.File{Filename: name, URL: "https://files.example.invalid/" + name}
}

func TestMatrixNoWheels(t *testing.T) {
	mtx := Matrix([]index.File{file("lxml-4.9.3.tar.gz")})
	if len(mtx.Matrix) != 0 || len(mtx.PyABINames) != 0 || len(mtx.PlatformNames) != 0 {
		t.Errorf("expected empty matrix, got %+v", mtx)
	}
}

func TestMatrixPureWheel(t *testing.T) {
	mtx := Matrix([]index.File{file("cycler-0.12.1-py3-none-any.whl")})
	if !reflect.DeepEqual(mtx.PyABINames, []string{"Python 3"}) {
		t.Errorf("PyABINames = %v", mtx.PyABINames)
	}
	if !reflect.DeepEqual(mtx.PlatformNames, []string{"any"}) {
		t.Errorf("PlatformNames = %v", mtx.PlatformNames)
	}
	if _, ok := mtx.Matrix[MatrixKey{"Python 3", "any"}]; !ok {
		t.Error("missing matrix cell")
	}
}

func TestMatrixAbi3(t *testing.T) {
	mtx := Matrix([]index.File{
		file("PyQt6-6.5.3-cp37-abi3-macosx_10_14_universal2.whl"),
		file("PyQt6-6.5.3-cp37-abi3-manylinux_2_28_x86_64.whl"),
		file("PyQt6-6.5.3-cp37-abi3-win_amd64.whl"),
		file("PyQt6-6.5.3.tar.gz"),
	})
	if !reflect.DeepEqual(mtx.PyABINames, []string{"CPython >=3.7 (abi3)"}) {
		t.Errorf("PyABINames = %v", mtx.PyABINames)
	}
	wantPlatforms := []string{"macosx_10_14_universal2", "manylinux_2_28_x86_64", "win_amd64"}
	if !reflect.DeepEqual(mtx.PlatformNames, wantPlatforms) {
		t.Errorf("PlatformNames = %v", mtx.PlatformNames)
	}
}

func TestMatrixFlagOrdering(t *testing.T) {
	mtx := Matrix([]index.File{
		file("lxml-4.9.3-cp27-cp27m-manylinux_2_5_i686.whl"),
		file("lxml-4.9.3-cp27-cp27mu-manylinux_2_5_i686.whl"),
		file("lxml-4.9.3-cp27-cp27du-manylinux_2_5_i686.manylinux1_i686.whl"),
	})
	want := []string{"CPython 2.7", "CPython (debug) (wide) 2.7", "CPython (wide) 2.7"}
	if !reflect.DeepEqual(mtx.PyABINames, want) {
		t.Errorf("PyABINames = %v, want %v", mtx.PyABINames, want)
	}
	if !reflect.DeepEqual(mtx.PlatformNames, []string{"manylinux1_i686", "manylinux_2_5_i686"}) {
		t.Errorf("PlatformNames = %v", mtx.PlatformNames)
	}
}

func TestMatrixCompoundTagsOccupyMultipleCells(t *testing.T) {
	mtx := Matrix([]index.File{file("mypkg-1.0-py2.py3-none-any.whl")})
	want := []string{"Python 2", "Python 3"}
	if !reflect.DeepEqual(mtx.PyABINames, want) {
		t.Errorf("PyABINames = %v, want %v", mtx.PyABINames, want)
	}
	if len(mtx.Matrix) != 2 {
		t.Errorf("got %d cells, want 2", len(mtx.Matrix))
	}
}
