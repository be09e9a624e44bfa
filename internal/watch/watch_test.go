package watch

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/xrd2template/internal/logging"
	"github.com/hupe1980/xrd2template/internal/plan"
)

// ---------------------------------------------------------------------------
// Debouncer
// ---------------------------------------------------------------------------

type recorder struct {
	mu    sync.Mutex
	calls [][]string
}

func (r *recorder) record(paths []string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.calls = append(r.calls, paths)
}

func (r *recorder) snapshot() [][]string {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([][]string(nil), r.calls...)
}

func TestDebouncer_CoalescesBurst(t *testing.T) {
	var rec recorder

	d := NewDebouncer(80*time.Millisecond, rec.record)
	defer d.Stop()

	for _, p := range []string{"b.yaml", "a.yaml", "b.yaml", "c.yaml"} {
		d.Trigger(p)
		time.Sleep(5 * time.Millisecond)
	}

	time.Sleep(250 * time.Millisecond)

	calls := rec.snapshot()
	require.Len(t, calls, 1)
	assert.Equal(t, []string{"a.yaml", "b.yaml", "c.yaml"}, calls[0])
}

func TestDebouncer_SeparateBursts(t *testing.T) {
	var rec recorder

	d := NewDebouncer(30*time.Millisecond, rec.record)
	defer d.Stop()

	d.Trigger("first.yaml")
	time.Sleep(150 * time.Millisecond)
	d.Trigger("second.yaml")
	time.Sleep(150 * time.Millisecond)

	assert.Equal(t, [][]string{{"first.yaml"}, {"second.yaml"}}, rec.snapshot())
}

func TestDebouncer_Stop(t *testing.T) {
	var called atomic.Bool

	d := NewDebouncer(50*time.Millisecond, func([]string) { called.Store(true) })

	d.Trigger("x.yaml")
	d.Stop()

	time.Sleep(150 * time.Millisecond)
	assert.False(t, called.Load())
}

// ---------------------------------------------------------------------------
// Tracker
// ---------------------------------------------------------------------------

func templateDoc(params ...string) map[string]interface{} {
	props := make(map[string]interface{}, len(params))
	for _, p := range params {
		props[p] = map[string]interface{}{"type": "string"}
	}

	return map[string]interface{}{
		"spec": map[string]interface{}{
			"parameters": []interface{}{map[string]interface{}{"properties": props}},
		},
	}
}

func TestTracker_Update(t *testing.T) {
	tr := NewTracker()

	assert.Nil(t, tr.Update(map[string]map[string]interface{}{
		"buckets-template": templateDoc("region"),
		"queues-template":  templateDoc("size"),
	}))

	changes := tr.Update(map[string]map[string]interface{}{
		"buckets-template": templateDoc("region", "tier"),
		"queues-template":  templateDoc("size"),
		"topics-template":  templateDoc(),
	})

	require.Len(t, changes, 2)
	assert.Equal(t, Change{Template: "buckets-template", Status: plan.StatusChanged, Summary: "+1 parameter(s) added"}, changes[0])
	assert.Equal(t, Change{Template: "topics-template", Status: plan.StatusAdded}, changes[1])

	changes = tr.Update(map[string]map[string]interface{}{
		"topics-template": templateDoc(),
	})

	require.Len(t, changes, 2)
	assert.Equal(t, plan.StatusRemoved, changes[0].Status)
	assert.Equal(t, "1 removed", Summarize(changes[:1]))
	assert.Equal(t, "2 removed", Summarize(changes))
}

func TestSummarize(t *testing.T) {
	assert.Equal(t, "no template changes", Summarize(nil))
	assert.Equal(t, "1 added, 2 changed", Summarize([]Change{
		{Status: plan.StatusChanged}, {Status: plan.StatusAdded}, {Status: plan.StatusChanged},
	}))
}

func TestChange_String(t *testing.T) {
	assert.Equal(t, "added t", Change{Template: "t", Status: plan.StatusAdded}.String())
	assert.Equal(t, "changed t: x", Change{Template: "t", Status: plan.StatusChanged, Summary: "x"}.String())
}

// ---------------------------------------------------------------------------
// Event filtering
// ---------------------------------------------------------------------------

func TestIsRelevant(t *testing.T) {
	tests := []struct {
		name string
		path string
		op   fsnotify.Op
		want bool
	}{
		{"yaml write", "xrd.yaml", fsnotify.Write, true},
		{"yml create", "xrd.yml", fsnotify.Create, true},
		{"json remove", "xrd.json", fsnotify.Remove, true},
		{"rename", "renamed.yaml", fsnotify.Rename, true},
		{"config file", ".xrd2template.yaml", fsnotify.Write, true},
		{"markdown", "README.md", fsnotify.Write, false},
		{"hidden file", ".hidden.yaml", fsnotify.Write, false},
		{"swap file", "xrd.yaml.swp", fsnotify.Write, false},
		{"backup tilde", "xrd.yaml~", fsnotify.Write, false},
		{"emacs hash", "#xrd.yaml", fsnotify.Write, false},
		{"zero op", "xrd.yaml", 0, false},
		{"chmod only", "xrd.yaml", fsnotify.Chmod, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isRelevant(fsnotify.Event{Name: tt.path, Op: tt.op}))
		})
	}
}

func TestDescribeTrigger(t *testing.T) {
	assert.Equal(t, "a.yaml", describeTrigger([]string{"a.yaml"}))
	assert.Equal(t, "a.yaml (+2 more)", describeTrigger([]string{"a.yaml", "b.yaml", "c.yaml"}))
}

func TestAddRecursive_SkipsHiddenDirs(t *testing.T) {
	dir := t.TempDir()

	require.NoError(t, os.MkdirAll(filepath.Join(dir, "storage", "aws"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".git", "objects"), 0o755))

	watcher, err := fsnotify.NewWatcher()
	require.NoError(t, err)
	defer watcher.Close()

	require.NoError(t, addRecursive(watcher, dir))

	watched := make(map[string]bool)
	for _, p := range watcher.WatchList() {
		watched[p] = true
	}

	assert.True(t, watched[dir])
	assert.True(t, watched[filepath.Join(dir, "storage")])
	assert.True(t, watched[filepath.Join(dir, "storage", "aws")])
	assert.False(t, watched[filepath.Join(dir, ".git")])
	assert.False(t, watched[filepath.Join(dir, ".git", "objects")])
}

func TestAddRecursive_NonExistentDir(t *testing.T) {
	watcher, err := fsnotify.NewWatcher()
	require.NoError(t, err)
	defer watcher.Close()

	assert.Error(t, addRecursive(watcher, filepath.Join(t.TempDir(), "missing")))
}

// ---------------------------------------------------------------------------
// Run
// ---------------------------------------------------------------------------

func testOptions(dir string, out io.Writer) Options {
	opts := DefaultOptions()
	opts.Dir = dir
	opts.Debounce = 50 * time.Millisecond
	opts.Logger = logging.Discard()
	opts.Out = out

	return opts
}

func TestRun_FileChangeTriggersRebuild(t *testing.T) {
	dir := t.TempDir()
	xrdFile := filepath.Join(dir, "xrd.yaml")
	require.NoError(t, os.WriteFile(xrdFile, []byte("kind: CompositeResourceDefinition\n"), 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var runCount atomic.Int32

	done := make(chan error, 1)
	go func() {
		done <- Run(ctx, testOptions(dir, io.Discard), func(context.Context) (*RunResult, error) {
			runCount.Add(1)
			return &RunResult{Definitions: 1, Templates: 1}, nil
		})
	}()

	time.Sleep(200 * time.Millisecond)
	initial := runCount.Load()
	assert.Equal(t, int32(1), initial)

	require.NoError(t, os.WriteFile(xrdFile, []byte("kind: CompositeResourceDefinition\n# edit\n"), 0o644))

	time.Sleep(300 * time.Millisecond)
	assert.Greater(t, runCount.Load(), initial)

	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not shut down in time")
	}
}

func TestRun_IgnoresUnrelatedFiles(t *testing.T) {
	dir := t.TempDir()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var runCount atomic.Int32

	done := make(chan error, 1)
	go func() {
		done <- Run(ctx, testOptions(dir, io.Discard), func(context.Context) (*RunResult, error) {
			runCount.Add(1)
			return &RunResult{}, nil
		})
	}()

	time.Sleep(200 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))
	time.Sleep(250 * time.Millisecond)

	assert.Equal(t, int32(1), runCount.Load())

	cancel()
	<-done
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.buf.String()
}

func TestRun_ReportsResultsAndErrors(t *testing.T) {
	dir := t.TempDir()

	ctx, cancel := context.WithCancel(context.Background())

	var (
		out   syncBuffer
		calls atomic.Int32
	)

	done := make(chan error, 1)
	go func() {
		done <- Run(ctx, testOptions(dir, &out), func(context.Context) (*RunResult, error) {
			if calls.Add(1) == 1 {
				return &RunResult{
					Definitions: 2,
					Templates:   3,
					Failures:    []string{"buckets.example.org@v1: malformed schema"},
					Changes:     []Change{{Template: "t", Status: plan.StatusAdded}},
				}, nil
			}

			return nil, errors.New("load failed")
		})
	}()

	time.Sleep(200 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "xrd.yaml"), []byte("a: 1\n"), 0o644))
	time.Sleep(300 * time.Millisecond)

	cancel()
	<-done

	s := out.String()
	assert.Contains(t, s, "(initial) -> OK (2 definitions, 3 templates)")
	assert.Contains(t, s, "failed: buckets.example.org@v1: malformed schema")
	assert.Contains(t, s, "templates: 1 added")
	assert.Contains(t, s, "ERROR: load failed")
	assert.Contains(t, s, "shutting down watcher")
}

func TestRun_InvalidDir(t *testing.T) {
	err := Run(context.Background(), testOptions(filepath.Join(t.TempDir(), "missing"), io.Discard),
		func(context.Context) (*RunResult, error) { return &RunResult{}, nil })

	assert.ErrorContains(t, err, "watching directory")
}

func TestRun_ExtraFiles(t *testing.T) {
	dir := t.TempDir()

	cfg := filepath.Join(t.TempDir(), ".xrd2template.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte("owner: group:default/a\n"), 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	opts := testOptions(dir, io.Discard)
	opts.ExtraFiles = []string{cfg}

	var runCount atomic.Int32

	done := make(chan error, 1)
	go func() {
		done <- Run(ctx, opts, func(context.Context) (*RunResult, error) {
			runCount.Add(1)
			return &RunResult{}, nil
		})
	}()

	time.Sleep(200 * time.Millisecond)
	require.NoError(t, os.WriteFile(cfg, []byte("owner: group:default/b\n"), 0o644))
	time.Sleep(300 * time.Millisecond)

	assert.GreaterOrEqual(t, runCount.Load(), int32(2))

	cancel()
	<-done
}

func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions()
	assert.Equal(t, 500*time.Millisecond, opts.Debounce)
	assert.NotNil(t, opts.Logger)
	assert.NotNil(t, opts.Out)
}
