package target

import (
	"strings"
)

// Parse builds a target from a command-line style argument:
//
//	./...                    all packages
//	./internal/...           directory, recursive
//	./internal/runner        directory
//	runner_test.go:TestFoo   file, narrowed to TestFoo
//	github.com/acme/tool/x   package by import path
func Parse(raw string) (Target, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ErrEmptyPath
	}

	if raw == "./..." || raw == "..." || raw == "all" {
		return NewAllPackages("./...")
	}

	if file, name, ok := splitTestFile(raw); ok {
		return NewFile(file, name)
	}

	if strings.HasSuffix(raw, "/...") {
		dir := strings.TrimSuffix(raw, "/...")
		if isLocal(dir) {
			return NewDirectory(dir, true)
		}
		return NewAllPackages(raw)
	}

	if isLocal(raw) {
		return NewDirectory(raw, false)
	}
	return NewPackage(raw)
}

// ParseAll parses every argument, stopping at the first invalid one.
func ParseAll(raws []string) ([]Target, error) {
	targets := make([]Target, 0, len(raws))
	for _, raw := range raws {
		t, err := Parse(raw)
		if err != nil {
			return nil, err
		}
		targets = append(targets, t)
	}
	return targets, nil
}

func splitTestFile(raw string) (file, name string, ok bool) {
	file = raw
	if idx := strings.LastIndex(raw, ":"); idx > 0 {
		file, name = raw[:idx], raw[idx+1:]
	}
	if !strings.HasSuffix(file, "_test.go") {
		return "", "", false
	}
	return file, name, true
}

func isLocal(p string) bool {
	return p == "." || p == ".." ||
		strings.HasPrefix(p, "./") || strings.HasPrefix(p, "../") || strings.HasPrefix(p, "/")
}
