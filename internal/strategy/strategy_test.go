package strategy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNext(t *testing.T) {
	tests := []struct {
		name   string
		from   Strategy
		want   Strategy
		wantOK bool
	}{
		{"all at once", AllAtOnce{Parallel: true}, DirectoryByDirectory{MaxConcurrency: 5}, true},
		{"batch halves", Batch{BatchSize: 10, Parallel: true}, Batch{BatchSize: 5, Parallel: false}, true},
		{"batch odd floors", Batch{BatchSize: 5, Parallel: false}, Batch{BatchSize: 2, Parallel: false}, true},
		{"batch floor is one", Batch{BatchSize: 1, Parallel: true}, Batch{BatchSize: 1, Parallel: false}, true},
		{"directory", DirectoryByDirectory{MaxConcurrency: 3}, FileByFile{StopOnFirstError: true}, true},
		{"file by file is terminal", FileByFile{StopOnFirstError: true}, nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Next(tt.from)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNext_TerminatesFromAllAtOnce(t *testing.T) {
	var current Strategy = AllAtOnce{}
	seen := map[string]bool{current.String(): true}

	steps := 0
	for {
		next, ok := Next(current)
		if !ok {
			break
		}
		require.False(t, seen[next.String()], "ladder revisited %s", next)
		seen[next.String()] = true
		current = next
		steps++
		require.Less(t, steps, 10, "ladder did not terminate")
	}

	assert.Equal(t, FileByFile{StopOnFirstError: true}, current)
	assert.Equal(t, 2, steps)

	_, ok := Next(current)
	assert.False(t, ok)
}

func TestLadder(t *testing.T) {
	ladder := Ladder(AllAtOnce{}, 10)
	require.Len(t, ladder, 3)
	assert.Equal(t, KindAllAtOnce, ladder[0].Kind())
	assert.Equal(t, KindDirectoryByDirectory, ladder[1].Kind())
	assert.Equal(t, KindFileByFile, ladder[2].Kind())

	batch := Ladder(Batch{BatchSize: 8, Parallel: true}, 3)
	assert.Equal(t, []Strategy{
		Batch{BatchSize: 8, Parallel: true},
		Batch{BatchSize: 4},
		Batch{BatchSize: 2},
		Batch{BatchSize: 1},
	}, batch)
}

func TestParse(t *testing.T) {
	s, err := Parse("directory_by_directory")
	require.NoError(t, err)
	assert.Equal(t, DirectoryByDirectory{MaxConcurrency: 5}, s)

	s, err = Parse("file-by-file")
	require.NoError(t, err)
	assert.Equal(t, FileByFile{StopOnFirstError: true}, s)

	_, err = Parse("round_robin")
	assert.Error(t, err)
}

func TestStrategyStrings(t *testing.T) {
	assert.Equal(t, "all-at-once", AllAtOnce{}.String())
	assert.Equal(t, "batch of 10 (parallel)", Batch{BatchSize: 10, Parallel: true}.String())
	assert.Equal(t, "directory-by-directory (max 3 concurrent)", DirectoryByDirectory{MaxConcurrency: 3}.String())
	assert.Equal(t, "file-by-file (stop on first error)", FileByFile{StopOnFirstError: true}.String())
}
