// Package strategy defines execution strategies, the degradation ladder between
// them, and the selector that picks the first strategy for a project.
package strategy

import "fmt"

// Kind tags the strategy variant.
type Kind string

const (
	KindAllAtOnce            Kind = "all_at_once"
	KindBatch                Kind = "batch"
	KindDirectoryByDirectory Kind = "directory_by_directory"
	KindFileByFile           Kind = "file_by_file"
)

// Strategy describes how targets are partitioned and concurrency-bounded for
// one execution round. Implementations are immutable value types.
type Strategy interface {
	Kind() Kind
	String() string

	isStrategy()
}

// AllAtOnce runs every target in a single invocation.
type AllAtOnce struct {
	Parallel bool `json:"parallel"`
}

// Batch runs targets in fixed-size batches.
type Batch struct {
	BatchSize int  `json:"batch_size"`
	Parallel  bool `json:"parallel"`
}

// DirectoryByDirectory runs one invocation per package directory.
type DirectoryByDirectory struct {
	MaxConcurrency int `json:"max_concurrency"`
}

// FileByFile runs one invocation per target, sequentially.
type FileByFile struct {
	StopOnFirstError bool `json:"stop_on_first_error"`
}

func (AllAtOnce) Kind() Kind            { return KindAllAtOnce }
func (Batch) Kind() Kind                { return KindBatch }
func (DirectoryByDirectory) Kind() Kind { return KindDirectoryByDirectory }
func (FileByFile) Kind() Kind           { return KindFileByFile }

func (AllAtOnce) isStrategy()            {}
func (Batch) isStrategy()                {}
func (DirectoryByDirectory) isStrategy() {}
func (FileByFile) isStrategy()           {}

func (s AllAtOnce) String() string {
	if s.Parallel {
		return "all-at-once (parallel)"
	}
	return "all-at-once"
}

func (s Batch) String() string {
	mode := "sequential"
	if s.Parallel {
		mode = "parallel"
	}
	return fmt.Sprintf("batch of %d (%s)", s.BatchSize, mode)
}

func (s DirectoryByDirectory) String() string {
	return fmt.Sprintf("directory-by-directory (max %d concurrent)", s.MaxConcurrency)
}

func (s FileByFile) String() string {
	if s.StopOnFirstError {
		return "file-by-file (stop on first error)"
	}
	return "file-by-file"
}

// Next returns the next, more conservative strategy on the degradation ladder.
// FileByFile is terminal and reports false.
func Next(s Strategy) (Strategy, bool) {
	switch v := s.(type) {
	case AllAtOnce:
		return DirectoryByDirectory{MaxConcurrency: 5}, true
	case Batch:
		size := v.BatchSize / 2
		if size < 1 {
			size = 1
		}
		return Batch{BatchSize: size, Parallel: false}, true
	case DirectoryByDirectory:
		return FileByFile{StopOnFirstError: true}, true
	case FileByFile:
		return nil, false
	default:
		return nil, false
	}
}

// Ladder returns s followed by every strategy reachable through Next, stopping
// at the terminal strategy or after limit steps, whichever comes first.
func Ladder(s Strategy, limit int) []Strategy {
	ladder := []Strategy{s}
	current := s
	for i := 0; i < limit; i++ {
		next, ok := Next(current)
		if !ok {
			break
		}
		ladder = append(ladder, next)
		current = next
	}
	return ladder
}

// Parse maps a strategy kind name to its default value, as used by the CLI.
func Parse(name string) (Strategy, error) {
	switch Kind(name) {
	case KindAllAtOnce, "all-at-once":
		return AllAtOnce{Parallel: false}, nil
	case KindBatch:
		return Batch{BatchSize: 10, Parallel: true}, nil
	case KindDirectoryByDirectory, "directory-by-directory":
		return DirectoryByDirectory{MaxConcurrency: 5}, nil
	case KindFileByFile, "file-by-file":
		return FileByFile{StopOnFirstError: true}, nil
	default:
		return nil, fmt.Errorf("unknown strategy %q", name)
	}
}
