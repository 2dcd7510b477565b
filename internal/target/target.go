// Package target defines the execution units handed to the strategy engine.
//
// Targets are only built through the checked factories in this package, so a
// malformed path or import path is rejected before it can enter a session.
package target

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"
	"unicode"
)

// Kind tags the target variant.
type Kind string

const (
	KindAllPackages Kind = "all_packages"
	KindDirectory   Kind = "directory"
	KindFile        Kind = "file"
	KindPackage     Kind = "package"
)

// Target is one unit of test-execution scope.
type Target interface {
	// Kind returns the variant tag.
	Kind() Kind
	// Args returns the package arguments handed to `go test`.
	Args() []string
	// Scope returns the package directory or pattern the target lives in.
	Scope() string
	// String returns a human-readable identifier used in logs and error records.
	String() string

	isTarget()
}

// Path is a validated, non-empty filesystem path.
type Path struct {
	value string
}

// NewPath validates raw and returns it as a Path.
func NewPath(raw string) (Path, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Path{}, ErrEmptyPath
	}
	if strings.ContainsRune(trimmed, 0) || strings.ContainsAny(trimmed, "\n\r") {
		return Path{}, ErrInvalidPath
	}
	return Path{value: filepath.ToSlash(filepath.Clean(trimmed))}, nil
}

// String returns the cleaned path.
func (p Path) String() string { return p.value }

// MarshalText implements encoding.TextMarshaler.
func (p Path) MarshalText() ([]byte, error) { return []byte(p.value), nil }

// ImportPath is a validated, non-empty Go import path.
type ImportPath struct {
	value string
}

// NewImportPath validates raw and returns it as an ImportPath.
func NewImportPath(raw string) (ImportPath, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ImportPath{}, ErrEmptyImportPath
	}
	for _, r := range trimmed {
		if unicode.IsSpace(r) || r == 0 {
			return ImportPath{}, ErrInvalidPath
		}
	}
	return ImportPath{value: trimmed}, nil
}

// String returns the import path.
func (p ImportPath) String() string { return p.value }

// MarshalText implements encoding.TextMarshaler.
func (p ImportPath) MarshalText() ([]byte, error) { return []byte(p.value), nil }

// Pattern is a validated, non-empty package pattern such as "./...".
type Pattern struct {
	value string
}

// NewPattern validates raw and returns it as a Pattern.
func NewPattern(raw string) (Pattern, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Pattern{}, ErrEmptyPattern
	}
	if strings.IndexFunc(trimmed, func(r rune) bool { return unicode.IsSpace(r) || r == 0 }) >= 0 {
		return Pattern{}, ErrInvalidPath
	}
	return Pattern{value: trimmed}, nil
}

// String returns the pattern.
func (p Pattern) String() string { return p.value }

// MarshalText implements encoding.TextMarshaler.
func (p Pattern) MarshalText() ([]byte, error) { return []byte(p.value), nil }

// AllPackages targets every package matching a pattern.
type AllPackages struct {
	Pattern Pattern
}

// NewAllPackages builds an AllPackages target.
func NewAllPackages(raw string) (AllPackages, error) {
	p, err := NewPattern(raw)
	if err != nil {
		return AllPackages{}, fmt.Errorf("all-packages target: %w", err)
	}
	return AllPackages{Pattern: p}, nil
}

func (AllPackages) Kind() Kind       { return KindAllPackages }
func (t AllPackages) Args() []string { return []string{t.Pattern.String()} }
func (t AllPackages) Scope() string  { return t.Pattern.String() }
func (t AllPackages) String() string { return t.Pattern.String() }
func (AllPackages) isTarget()        {}

// Directory targets the package in a directory, optionally with its subpackages.
type Directory struct {
	Path      Path
	Recursive bool
}

// NewDirectory builds a Directory target.
func NewDirectory(raw string, recursive bool) (Directory, error) {
	p, err := NewPath(raw)
	if err != nil {
		return Directory{}, fmt.Errorf("directory target: %w", err)
	}
	return Directory{Path: p, Recursive: recursive}, nil
}

func (Directory) Kind() Kind { return KindDirectory }

func (t Directory) Args() []string {
	arg := relative(t.Path.String())
	if t.Recursive {
		arg = strings.TrimSuffix(arg, "/") + "/..."
	}
	return []string{arg}
}

func (t Directory) Scope() string { return t.Path.String() }

func (t Directory) String() string {
	if t.Recursive {
		return t.Path.String() + "/..."
	}
	return t.Path.String()
}

func (Directory) isTarget() {}

// File targets a single test file, optionally narrowed to one test function.
//
// go test cannot run one file of a package on its own, so a File without a
// TestName runs every test in the file's package. Only TestName narrows the
// run, through RunPattern.
type File struct {
	Path     Path
	TestName string
}

// NewFile builds a File target. testName may be empty.
func NewFile(raw, testName string) (File, error) {
	p, err := NewPath(raw)
	if err != nil {
		return File{}, fmt.Errorf("file target: %w", err)
	}
	testName = strings.TrimSpace(testName)
	if strings.IndexFunc(testName, unicode.IsSpace) >= 0 {
		return File{}, ErrInvalidTestName
	}
	return File{Path: p, TestName: testName}, nil
}

func (File) Kind() Kind { return KindFile }

// Args runs the file's package; a test name is passed separately via RunPattern.
func (t File) Args() []string {
	return []string{relative(path.Dir(t.Path.String()))}
}

// RunPattern returns the -run expression for the target, or "" when the
// whole package runs.
func (t File) RunPattern() string {
	if t.TestName == "" {
		return ""
	}
	return "^" + t.TestName + "$"
}

func (t File) Scope() string { return path.Dir(t.Path.String()) }

func (t File) String() string {
	if t.TestName != "" {
		return t.Path.String() + ":" + t.TestName
	}
	return t.Path.String()
}

func (File) isTarget() {}

// Package targets a package by import path.
type Package struct {
	ImportPath ImportPath
}

// NewPackage builds a Package target.
func NewPackage(raw string) (Package, error) {
	p, err := NewImportPath(raw)
	if err != nil {
		return Package{}, fmt.Errorf("package target: %w", err)
	}
	return Package{ImportPath: p}, nil
}

func (Package) Kind() Kind       { return KindPackage }
func (t Package) Args() []string { return []string{t.ImportPath.String()} }
func (t Package) Scope() string  { return t.ImportPath.String() }
func (t Package) String() string { return t.ImportPath.String() }
func (Package) isTarget()        {}

// relative makes a slash path usable as a go package argument.
func relative(p string) string {
	if p == "." || strings.HasPrefix(p, "./") || strings.HasPrefix(p, "../") || strings.HasPrefix(p, "/") {
		return p
	}
	return "./" + p
}
