package strategy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSelectInitial(t *testing.T) {
	tests := []struct {
		name     string
		criteria Criteria
		want     Strategy
	}{
		{
			name:     "small project",
			criteria: Criteria{TotalPackages: 5, TimeConstraintSeconds: 300},
			want:     AllAtOnce{Parallel: false},
		},
		{
			name:     "tight time budget beats size",
			criteria: Criteria{TotalPackages: 200, HasComplexDependencies: true, TimeConstraintSeconds: 30},
			want:     AllAtOnce{Parallel: false},
		},
		{
			name:     "medium project without constraints",
			criteria: Criteria{TotalPackages: 30, TimeConstraintSeconds: 300},
			want:     Batch{BatchSize: 10, Parallel: true},
		},
		{
			name: "medium project with enough concurrency",
			criteria: Criteria{
				TotalPackages:         50,
				TimeConstraintSeconds: 300,
				Resources:             &ResourceConstraints{MaxConcurrency: 4},
			},
			want: Batch{BatchSize: 10, Parallel: true},
		},
		{
			name: "medium project with complex deps and low concurrency",
			criteria: Criteria{
				TotalPackages:          30,
				HasComplexDependencies: true,
				TimeConstraintSeconds:  300,
				Resources:              &ResourceConstraints{MaxConcurrency: 2},
			},
			want: DirectoryByDirectory{MaxConcurrency: 2},
		},
		{
			name:     "large project",
			criteria: Criteria{TotalPackages: 120, TimeConstraintSeconds: 600},
			want:     DirectoryByDirectory{MaxConcurrency: 5},
		},
		{
			name: "large project honours resource limit",
			criteria: Criteria{
				TotalPackages:         120,
				TimeConstraintSeconds: 600,
				Resources:             &ResourceConstraints{MaxConcurrency: 8},
			},
			want: DirectoryByDirectory{MaxConcurrency: 8},
		},
		{
			name: "medium project constrained without complex deps",
			criteria: Criteria{
				TotalPackages:         20,
				TimeConstraintSeconds: 300,
				Resources:             &ResourceConstraints{MaxConcurrency: 1},
			},
			want: FileByFile{StopOnFirstError: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SelectInitial(tt.criteria))
		})
	}
}

func TestSelectInitial_Deterministic(t *testing.T) {
	c := Criteria{TotalPackages: 42, HasComplexDependencies: true, TimeConstraintSeconds: 120}
	first := SelectInitial(c)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, SelectInitial(c))
	}
}
