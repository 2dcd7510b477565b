package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"testing"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/gotestctl/internal/config"
	"github.com/fyrsmithlabs/gotestctl/internal/process"
	"github.com/fyrsmithlabs/gotestctl/internal/strategy"
)

// writeModule lays out a module with two tested packages and one untested.
func writeModule(t *testing.T) string {
	t.Helper()
	t.Setenv("HOME", t.TempDir())

	dir := t.TempDir()
	files := map[string]string{
		"go.mod":                "module example.com/demo\n\ngo 1.24\n",
		"demo.go":               "package demo\n",
		"demo_test.go":          "package demo\n",
		"internal/x/x.go":       "package x\n",
		"internal/x/x_test.go":  "package x\n",
		"internal/y/y.go":       "package y\n",
		"testdata/skip_test.go": "package skip\n",
	}
	for name, content := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	}
	return dir
}

// recordingExecutor answers every invocation with answer and records args.
type recordingExecutor struct {
	mu     sync.Mutex
	calls  [][]string
	answer func(args []string) process.Outcome
}

func (e *recordingExecutor) Run(_ context.Context, args []string, _ process.Opts) (process.Outcome, error) {
	e.mu.Lock()
	e.calls = append(e.calls, args)
	e.mu.Unlock()
	return e.answer(args), nil
}

func useExecutor(t *testing.T, exec process.Executor) {
	t.Helper()
	prev := newExecutor
	newExecutor = func(*zap.Logger) process.Executor { return exec }
	t.Cleanup(func() { newExecutor = prev })
}

func exitWith(code int) func([]string) process.Outcome {
	return func([]string) process.Outcome {
		return process.Outcome{ExitCode: code, Duration: time.Millisecond}
	}
}

func defaultRunOptions() runOptions {
	return runOptions{maxRetries: -1}
}

func TestRootCmd_Commands(t *testing.T) {
	for _, name := range []string{"run", "plan", "version"} {
		cmd, _, err := rootCmd.Find([]string{name})
		require.NoError(t, err)
		assert.Equal(t, name, cmd.Name())
		assert.NotEmpty(t, cmd.Short)
	}

	for _, flag := range []string{"strategy", "max-retries", "no-fallback", "timeout", "nats-url", "json", "metrics-file"} {
		assert.NotNil(t, runCmd.Flags().Lookup(flag), flag)
	}
	assert.NotNil(t, rootCmd.PersistentFlags().Lookup("config"))
	assert.NotNil(t, rootCmd.PersistentFlags().Lookup("dir"))
}

func TestVersionCmd(t *testing.T) {
	var out bytes.Buffer
	versionCmd.SetOut(&out)
	t.Cleanup(func() { versionCmd.SetOut(nil) })

	versionCmd.Run(versionCmd, nil)
	assert.Equal(t, "gotestctl dev\n", out.String())
}

func TestExitError(t *testing.T) {
	err := &exitError{code: 3}
	assert.Equal(t, "exit status 3", err.Error())
}

func TestApplyFlags(t *testing.T) {
	cfg := config.Default()
	require.NoError(t, applyFlags(cfg, defaultRunOptions()))
	assert.Equal(t, config.Default(), cfg, "unset flags change nothing")

	cfg = config.Default()
	require.NoError(t, applyFlags(cfg, runOptions{
		maxRetries: 0,
		noFallback: true,
		timeout:    30 * time.Second,
		natsURL:    "nats://127.0.0.1:4222",
	}))
	assert.Equal(t, 0, cfg.Fallback.MaxRetries)
	assert.False(t, cfg.Fallback.Enabled)
	assert.Equal(t, 30*time.Second, cfg.Runner.UnitTimeout.Duration())
	assert.Equal(t, "nats://127.0.0.1:4222", cfg.Events.NATSURL)
}

func TestPrintPlan_Selected(t *testing.T) {
	dir := writeModule(t)

	var out bytes.Buffer
	require.NoError(t, printPlan(context.Background(), &out, dir, "", nil, ""))

	text := out.String()
	assert.Contains(t, text, "Packages: 3 (2 targets)")
	assert.Contains(t, text, "Strategy: all-at-once (selected)")
	assert.Contains(t, text, "  1. all-at-once\n")
	assert.Contains(t, text, "  2. directory-by-directory (max 5 concurrent)\n")
	assert.Contains(t, text, "  3. file-by-file (stop on first error)\n")
	assert.Contains(t, text, "  go test -p 1 . ./internal/x\n")
	assert.NotContains(t, text, "testdata")
}

func TestPrintPlan_Requested(t *testing.T) {
	dir := writeModule(t)

	var out bytes.Buffer
	require.NoError(t, printPlan(context.Background(), &out, dir, "", []string{"./internal/x"}, "file_by_file"))

	text := out.String()
	assert.Contains(t, text, "Strategy: file-by-file (stop on first error) (requested)")
	assert.Contains(t, text, "  go test ./internal/x\n")
	assert.NotContains(t, text, "  go test .\n")
}

func TestPrintPlan_NoFallback(t *testing.T) {
	dir := writeModule(t)
	cfgPath := filepath.Join(t.TempDir(), "gotestctl.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("fallback:\n  enabled: false\n"), 0o600))

	var out bytes.Buffer
	require.NoError(t, printPlan(context.Background(), &out, dir, cfgPath, nil, ""))
	assert.Contains(t, out.String(), "(no fallbacks allowed)")
	assert.NotContains(t, out.String(), "  2. ")
}

func TestPrintPlan_Errors(t *testing.T) {
	dir := writeModule(t)

	err := printPlan(context.Background(), &bytes.Buffer{}, dir, "", nil, "sideways")
	assert.ErrorContains(t, err, "unknown strategy")

	err = printPlan(context.Background(), &bytes.Buffer{}, t.TempDir(), "", nil, "")
	assert.Error(t, err, "no module root and no explicit targets")
}

func TestResolveProject_ExplicitTargetsWithoutModule(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	proj, err := resolveProject(context.Background(), t.TempDir(), []string{"./a", "./b/..."}, config.Default(), zap.NewNop())
	require.NoError(t, err)
	require.Len(t, proj.Targets, 2)
	assert.Equal(t, 2, proj.Metadata.TotalPackages)
	assert.Nil(t, proj.Metadata.Resources)
}

func TestResolveProject_Resources(t *testing.T) {
	dir := writeModule(t)
	cfg := config.Default()
	cfg.Selector.MaxConcurrency = 2

	proj, err := resolveProject(context.Background(), dir, nil, cfg, zap.NewNop())
	require.NoError(t, err)
	require.NotNil(t, proj.Metadata.Resources)
	assert.Equal(t, 2, proj.Metadata.Resources.MaxConcurrency)
}

// writeWideModule lays out a module with n tested packages.
func writeWideModule(t *testing.T, n int) string {
	t.Helper()
	t.Setenv("HOME", t.TempDir())

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "go.mod"), []byte("module example.com/wide\n\ngo 1.24\n"), 0o600))
	for i := 0; i < n; i++ {
		pkg := filepath.Join(dir, "pkg", fmt.Sprintf("p%02d", i))
		require.NoError(t, os.MkdirAll(pkg, 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(pkg, "p.go"), []byte("package p\n"), 0o600))
		require.NoError(t, os.WriteFile(filepath.Join(pkg, "p_test.go"), []byte("package p\n"), 0o600))
	}
	return dir
}

func TestInitialStrategy_DefaultConfigUsesPackageCount(t *testing.T) {
	tests := []struct {
		packages int
		want     strategy.Strategy
	}{
		{packages: 4, want: strategy.AllAtOnce{Parallel: false}},
		{packages: 30, want: strategy.Batch{BatchSize: 10, Parallel: true}},
		{packages: 60, want: strategy.DirectoryByDirectory{MaxConcurrency: 5}},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d packages", tt.packages), func(t *testing.T) {
			dir := writeWideModule(t, tt.packages)

			proj, err := resolveProject(context.Background(), dir, nil, config.Default(), zap.NewNop())
			require.NoError(t, err)
			require.Equal(t, tt.packages, proj.Metadata.TotalPackages)

			st, forced, err := initialStrategy("", proj.Metadata)
			require.NoError(t, err)
			assert.False(t, forced)
			assert.Equal(t, tt.want, st)
		})
	}
}

func TestInitialStrategy_TightTimeConstraint(t *testing.T) {
	dir := writeWideModule(t, 30)
	cfg := config.Default()
	cfg.Selector.TimeConstraint = config.Duration(30 * time.Second)

	proj, err := resolveProject(context.Background(), dir, nil, cfg, zap.NewNop())
	require.NoError(t, err)

	st, _, err := initialStrategy("", proj.Metadata)
	require.NoError(t, err)
	assert.Equal(t, strategy.AllAtOnce{Parallel: false}, st)
}

func TestRunSession_Completed(t *testing.T) {
	dir := writeModule(t)
	exec := &recordingExecutor{answer: exitWith(0)}
	useExecutor(t, exec)

	var out bytes.Buffer
	code, err := runSession(context.Background(), &out, dir, "", nil, defaultRunOptions())
	require.NoError(t, err)

	assert.Equal(t, 0, code)
	assert.Contains(t, out.String(), "completed")
	assert.Equal(t, [][]string{{"go", "test", "-p", "1", ".", "./internal/x"}}, exec.calls)
}

func TestRunSession_BuildErrorExitCode(t *testing.T) {
	dir := writeModule(t)
	useExecutor(t, &recordingExecutor{answer: exitWith(2)})

	var out bytes.Buffer
	code, err := runSession(context.Background(), &out, dir, "", nil, defaultRunOptions())
	require.NoError(t, err)

	assert.Equal(t, 2, code)
	assert.Contains(t, out.String(), "stopped")
}

func TestRunSession_JSON(t *testing.T) {
	dir := writeModule(t)
	useExecutor(t, &recordingExecutor{answer: exitWith(0)})

	opts := defaultRunOptions()
	opts.json = true
	opts.strategy = "file_by_file"

	var out bytes.Buffer
	code, err := runSession(context.Background(), &out, dir, "", nil, opts)
	require.NoError(t, err)
	assert.Equal(t, 0, code)

	var doc struct {
		SessionID string `json:"session_id"`
		Status    string `json:"status"`
		ExitCode  int    `json:"exit_code"`
		Rounds    []struct {
			Strategy string `json:"strategy"`
		} `json:"rounds"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &doc))
	assert.NotEmpty(t, doc.SessionID)
	assert.Equal(t, "completed", doc.Status)
	require.Len(t, doc.Rounds, 1)
	assert.Equal(t, "file-by-file (stop on first error)", doc.Rounds[0].Strategy)
}

func TestRunSession_InvalidFlags(t *testing.T) {
	dir := writeModule(t)

	opts := defaultRunOptions()
	opts.strategy = "sideways"
	_, err := runSession(context.Background(), &bytes.Buffer{}, dir, "", nil, opts)
	assert.ErrorContains(t, err, "unknown strategy")

	_, err = runSession(context.Background(), &bytes.Buffer{}, dir, filepath.Join(dir, "missing.yaml"), nil, defaultRunOptions())
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestRunSession_MetricsFile(t *testing.T) {
	dir := writeModule(t)
	useExecutor(t, &recordingExecutor{answer: exitWith(0)})

	opts := defaultRunOptions()
	opts.metricsFile = filepath.Join(t.TempDir(), "gotestctl.prom")

	_, err := runSession(context.Background(), &bytes.Buffer{}, dir, "", nil, opts)
	require.NoError(t, err)

	content, err := os.ReadFile(opts.metricsFile)
	require.NoError(t, err)
	assert.Contains(t, string(content), "runner_items_total")
}

func TestRunSession_PublishesEvents(t *testing.T) {
	server, err := natsserver.NewServer(&natsserver.Options{Host: "127.0.0.1", Port: -1, NoLog: true, NoSigs: true})
	require.NoError(t, err)
	go server.Start()
	require.True(t, server.ReadyForConnections(5*time.Second))
	t.Cleanup(func() {
		server.Shutdown()
		server.WaitForShutdown()
	})

	nc, err := nats.Connect(server.ClientURL())
	require.NoError(t, err)
	t.Cleanup(nc.Close)

	fallbacks := make(chan *nats.Msg, 4)
	finished := make(chan *nats.Msg, 1)
	_, err = nc.ChanSubscribe("gotestctl.sessions.*.fallback", fallbacks)
	require.NoError(t, err)
	_, err = nc.ChanSubscribe("gotestctl.sessions.*.finished", finished)
	require.NoError(t, err)
	require.NoError(t, nc.Flush())

	// The serialised first round fails entirely; per-directory units pass.
	dir := writeModule(t)
	useExecutor(t, &recordingExecutor{answer: func(args []string) process.Outcome {
		if slices.Contains(args, "-p") {
			return process.Outcome{ExitCode: 1, Duration: time.Millisecond}
		}
		return process.Outcome{ExitCode: 0, Duration: time.Millisecond}
	}})

	opts := defaultRunOptions()
	opts.natsURL = server.ClientURL()

	code, err := runSession(context.Background(), &bytes.Buffer{}, dir, "", nil, opts)
	require.NoError(t, err)
	assert.Equal(t, 0, code)

	select {
	case msg := <-fallbacks:
		var ev struct {
			FromKind    string `json:"from_kind"`
			ToKind      string `json:"to_kind"`
			TriggerKind string `json:"trigger_kind"`
		}
		require.NoError(t, json.Unmarshal(msg.Data, &ev))
		assert.Equal(t, "all_at_once", ev.FromKind)
		assert.Equal(t, "directory_by_directory", ev.ToKind)
	case <-time.After(2 * time.Second):
		t.Fatal("no fallback event")
	}

	select {
	case msg := <-finished:
		var ev struct {
			Status    string `json:"status"`
			Fallbacks int    `json:"fallbacks"`
		}
		require.NoError(t, json.Unmarshal(msg.Data, &ev))
		assert.Equal(t, "completed", ev.Status)
		assert.Equal(t, 1, ev.Fallbacks)
	case <-time.After(2 * time.Second):
		t.Fatal("no finished event")
	}
}
