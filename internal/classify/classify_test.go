package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/gotestctl/internal/process"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		exitCode int
		killed   bool
		signal   string
		want     Classification
	}{
		{name: "zero exit", exitCode: 0, want: Success{}},
		{name: "zero exit wins over kill flag", exitCode: 0, killed: true, signal: "SIGKILL", want: Success{}},
		{name: "test failure", exitCode: 1, want: TestFailure{}},
		{name: "build error", exitCode: 2, want: BuildError{Code: 2}},
		{name: "build error while killed", exitCode: 2, killed: true, signal: "SIGTERM", want: BuildError{Code: 2}},
		{name: "timeout", exitCode: 124, want: Timeout{Code: 124}},
		{name: "timeout with signal", exitCode: 124, killed: true, signal: "SIGKILL", want: Timeout{Code: 124}},
		{name: "killed by signal", exitCode: 137, killed: true, signal: "SIGKILL", want: Killed{Code: 137, Signal: "SIGKILL"}},
		{name: "exit 1 killed with signal", exitCode: 1, killed: true, signal: "SIGTERM", want: Killed{Code: 1, Signal: "SIGTERM"}},
		{name: "exit 1 killed without signal", exitCode: 1, killed: true, want: Unknown{Code: 1}},
		{name: "killed without signal", exitCode: 137, killed: true, want: Unknown{Code: 137}},
		{name: "signal without kill flag", exitCode: 143, signal: "SIGTERM", want: Unknown{Code: 143}},
		{name: "unrecognised code", exitCode: 3, want: Unknown{Code: 3}},
		{name: "negative code", exitCode: -1, want: Unknown{Code: -1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.exitCode, tt.killed, tt.signal)
			assert.Equal(t, tt.want, got)
		})
	}
}

// Every input maps to one variant, and the variant is the one the precedence
// order selects.
func TestClassify_Total(t *testing.T) {
	codes := []int{-1, 0, 1, 2, 3, 124, 125, 130, 137, 143, 255}
	signals := []string{"", "SIGKILL", "SIGTERM"}

	for _, code := range codes {
		for _, killed := range []bool{false, true} {
			for _, sig := range signals {
				got := Classify(code, killed, sig)
				require.NotNil(t, got)

				var want Kind
				switch {
				case code == 0:
					want = KindSuccess
				case code == 1 && !killed:
					want = KindTestFailure
				case code == 2:
					want = KindBuildError
				case code == 124:
					want = KindTimeout
				case killed && sig != "":
					want = KindKilled
				default:
					want = KindUnknown
				}
				assert.Equal(t, want, got.Kind(), "code=%d killed=%v signal=%q", code, killed, sig)

				if code != 0 && code != 1 {
					assert.Equal(t, code, got.ExitCode())
				}
			}
		}
	}
}

func TestFromOutcome(t *testing.T) {
	got := FromOutcome(process.Outcome{ExitCode: 124, Killed: true, Signal: "SIGKILL"})
	assert.Equal(t, Timeout{Code: 124}, got)

	got = FromOutcome(process.Outcome{ExitCode: 130, Killed: true, Signal: "SIGINT"})
	assert.Equal(t, Killed{Code: 130, Signal: "SIGINT"}, got)
}

func TestIsFailure(t *testing.T) {
	assert.False(t, IsFailure(Success{}))
	assert.True(t, IsFailure(TestFailure{}))
	assert.True(t, IsFailure(BuildError{Code: 2}))
	assert.True(t, IsFailure(Unknown{Code: 9}))
}

func TestClassification_String(t *testing.T) {
	assert.Equal(t, "success", Success{}.String())
	assert.Equal(t, "build error (exit 2)", BuildError{Code: 2}.String())
	assert.Equal(t, "killed by SIGKILL (exit 137)", Killed{Code: 137, Signal: "SIGKILL"}.String())
	assert.Equal(t, "unknown exit 7", Unknown{Code: 7}.String())
}
