// Package discovery finds the test packages of a Go module tree.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/gotestctl/internal/target"
)

// ErrNoModule is returned when the root holds neither go.mod nor go.work.
var ErrNoModule = errors.New("no go.mod or go.work found")

// Project is the result of walking a module root.
type Project struct {
	// Root is the absolute module root.
	Root string

	// Targets holds one directory target per package with test files,
	// sorted by path.
	Targets []target.Target

	// TotalPackages counts every directory holding Go source.
	TotalPackages int

	// HasComplexDependencies is set for workspaces and nested modules.
	HasComplexDependencies bool

	// Modules lists the go.mod files found, relative to Root.
	Modules []string
}

type options struct {
	parser *Parser
	logger *zap.Logger
}

// Option configures Discover.
type Option func(*options)

// WithParser replaces the default .gitignore parser.
func WithParser(p *Parser) Option {
	return func(o *options) {
		o.parser = p
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l.Named("discovery")
		}
	}
}

// Discover walks root and collects its test packages. Directories the go
// tool skips (vendor, testdata, names starting with "." or "_") and paths
// matched by the ignore rules are not visited. Nested modules are counted
// but their packages are left out, as `go test ./...` does.
func Discover(ctx context.Context, root string, opts ...Option) (*Project, error) {
	o := options{
		parser: NewParser(DefaultIgnoreFiles, nil),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving root: %w", err)
	}

	_, modErr := os.Stat(filepath.Join(abs, "go.mod"))
	_, workErr := os.Stat(filepath.Join(abs, "go.work"))
	hasWork := workErr == nil
	if modErr != nil && !hasWork {
		return nil, fmt.Errorf("%s: %w", abs, ErrNoModule)
	}

	rules, err := o.parser.ParseProject(abs)
	if err != nil {
		return nil, fmt.Errorf("reading ignore files: %w", err)
	}

	project := &Project{Root: abs}
	sources := make(map[string]bool)
	tests := make(map[string]bool)

	err = filepath.WalkDir(abs, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		rel, err := filepath.Rel(abs, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if rel == "." {
				return nil
			}
			if skipDir(d.Name()) || rules.Match(rel, true) {
				return filepath.SkipDir
			}
			if _, err := os.Stat(filepath.Join(p, "go.mod")); err == nil {
				project.Modules = append(project.Modules, rel+"/go.mod")
				o.logger.Debug("skipping nested module", zap.String("dir", rel))
				return filepath.SkipDir
			}
			return nil
		}

		name := d.Name()
		if name == "go.mod" && rel == "go.mod" {
			project.Modules = append(project.Modules, rel)
			return nil
		}
		if !strings.HasSuffix(name, ".go") || rules.Match(rel, false) {
			return nil
		}

		dir := filepath.ToSlash(filepath.Dir(rel))
		sources[dir] = true
		if strings.HasSuffix(name, "_test.go") {
			tests[dir] = true
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", abs, err)
	}

	dirs := make([]string, 0, len(tests))
	for dir := range tests {
		dirs = append(dirs, dir)
	}
	sort.Strings(dirs)

	for _, dir := range dirs {
		t, err := target.NewDirectory(dir, false)
		if err != nil {
			return nil, fmt.Errorf("package %s: %w", dir, err)
		}
		project.Targets = append(project.Targets, t)
	}

	project.TotalPackages = len(sources)
	project.HasComplexDependencies = hasWork || len(project.Modules) > 1

	o.logger.Debug("project discovered",
		zap.String("root", abs),
		zap.Int("packages", project.TotalPackages),
		zap.Int("test_packages", len(project.Targets)),
		zap.Bool("complex", project.HasComplexDependencies),
	)

	return project, nil
}

// skipDir reports whether the go tool ignores a directory name.
func skipDir(name string) bool {
	return name == "vendor" || name == "testdata" ||
		strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_")
}
