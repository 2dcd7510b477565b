package session

import (
	"strings"

	"github.com/fyrsmithlabs/gotestctl/internal/strategy"
	"github.com/fyrsmithlabs/gotestctl/internal/target"
)

// Unit is one `go test` invocation within a round.
type Unit struct {
	Index   int
	Targets []target.Target
	// Flags are strategy-specific `go test` flags such as "-p 1".
	Flags []string
}

// Args renders the command line for the unit.
//
// Package arguments are de-duplicated in target order. When every target is
// a test file narrowed to one test, the test names are passed with -run.
func (u Unit) Args(goBinary string, extra []string) []string {
	if goBinary == "" {
		goBinary = "go"
	}
	args := []string{goBinary, "test"}
	args = append(args, u.Flags...)
	args = append(args, extra...)

	if pattern := u.runPattern(); pattern != "" {
		args = append(args, "-run", pattern)
	}

	seen := make(map[string]bool)
	for _, t := range u.Targets {
		for _, a := range t.Args() {
			if !seen[a] {
				seen[a] = true
				args = append(args, a)
			}
		}
	}
	return args
}

func (u Unit) runPattern() string {
	patterns := make([]string, 0, len(u.Targets))
	for _, t := range u.Targets {
		f, ok := t.(target.File)
		if !ok || f.TestName == "" {
			return ""
		}
		patterns = append(patterns, f.RunPattern())
	}
	return strings.Join(patterns, "|")
}

// Names returns the string form of every target in the unit.
func (u Unit) Names() []string {
	names := make([]string, len(u.Targets))
	for i, t := range u.Targets {
		names[i] = t.String()
	}
	return names
}

// Plan partitions targets into the units a strategy runs.
//
//   - AllAtOnce: one unit with every target, serialised with -p 1 unless parallel.
//   - Batch: consecutive units of BatchSize targets.
//   - DirectoryByDirectory: one unit per target scope, in first-seen order.
//   - FileByFile: one unit per target.
func Plan(s strategy.Strategy, targets []target.Target) []Unit {
	if len(targets) == 0 {
		return nil
	}

	switch v := s.(type) {
	case strategy.AllAtOnce:
		u := Unit{Targets: targets}
		if !v.Parallel {
			u.Flags = []string{"-p", "1"}
		}
		return []Unit{u}

	case strategy.Batch:
		size := max(v.BatchSize, 1)
		units := make([]Unit, 0, (len(targets)+size-1)/size)
		for start := 0; start < len(targets); start += size {
			end := min(start+size, len(targets))
			units = append(units, Unit{Index: len(units), Targets: targets[start:end]})
		}
		return units

	case strategy.DirectoryByDirectory:
		var units []Unit
		byScope := make(map[string]int)
		for _, t := range targets {
			idx, ok := byScope[t.Scope()]
			if !ok {
				idx = len(units)
				byScope[t.Scope()] = idx
				units = append(units, Unit{Index: idx})
			}
			units[idx].Targets = append(units[idx].Targets, t)
		}
		return units

	default:
		units := make([]Unit, len(targets))
		for i, t := range targets {
			units[i] = Unit{Index: i, Targets: []target.Target{t}}
		}
		return units
	}
}
