package watch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/poiesic/docqa/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeIngester struct {
	mu       sync.Mutex
	ingested []string
	forgot   []core.ID
	failFor  string
}

func (f *fakeIngester) IngestFile(ctx context.Context, path string) (core.ID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if path == f.failFor {
		return 0, core.ErrCorruptDocument
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	f.ingested = append(f.ingested, path)
	return core.IDFromContent(string(data)), nil
}

func (f *fakeIngester) Forget(ctx context.Context, id core.ID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.forgot = append(f.forgot, id)
	return nil
}

func (f *fakeIngester) counts() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.ingested), len(f.forgot)
}

func newTestWatcher(t *testing.T, ing Ingester, hook func(Change)) *Watcher {
	t.Helper()
	w, err := New(ing, Config{Debounce: 100 * time.Millisecond}, WithChangeHook(hook))
	require.NoError(t, err)
	t.Cleanup(func() { w.Close() })
	return w
}

func TestClassify(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "nested.txt")
	require.NoError(t, os.Mkdir(sub, 0755))

	tests := []struct {
		name   string
		event  fsnotify.Event
		want   ChangeType
		wantOK bool
	}{
		{name: "create txt", event: fsnotify.Event{Name: filepath.Join(dir, "a.txt"), Op: fsnotify.Create}, want: ChangeUpsert, wantOK: true},
		{name: "write pdf", event: fsnotify.Event{Name: filepath.Join(dir, "a.pdf"), Op: fsnotify.Write}, want: ChangeUpsert, wantOK: true},
		{name: "remove docx", event: fsnotify.Event{Name: filepath.Join(dir, "a.docx"), Op: fsnotify.Remove}, want: ChangeDelete, wantOK: true},
		{name: "rename", event: fsnotify.Event{Name: filepath.Join(dir, "a.txt"), Op: fsnotify.Rename}, want: ChangeDelete, wantOK: true},
		{name: "chmod ignored", event: fsnotify.Event{Name: filepath.Join(dir, "a.txt"), Op: fsnotify.Chmod}},
		{name: "hidden file ignored", event: fsnotify.Event{Name: filepath.Join(dir, ".a.txt"), Op: fsnotify.Create}},
		{name: "unsupported format ignored", event: fsnotify.Event{Name: filepath.Join(dir, "a.png"), Op: fsnotify.Create}},
		{name: "directory ignored", event: fsnotify.Event{Name: sub, Op: fsnotify.Create}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := classify(tt.event)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestNew_Validation(t *testing.T) {
	_, err := New(nil, DefaultConfig())
	require.Error(t, err)

	_, err = New(&fakeIngester{}, Config{Debounce: -time.Second})
	require.ErrorIs(t, err, core.ErrInvalidConfig)
}

func TestAdd_IngestsExistingFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "policy.txt"), []byte("coverage"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "image.png"), []byte("png"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.txt"), []byte("x"), 0644))

	ing := &fakeIngester{failFor: filepath.Join(dir, "broken.txt")}
	w := newTestWatcher(t, ing, nil)

	require.NoError(t, w.Add(context.Background(), dir))
	ingested, _ := ing.counts()
	assert.Equal(t, 1, ingested)
	assert.Equal(t, 1, w.Tracked())

	require.Error(t, w.Add(context.Background(), filepath.Join(dir, "missing")))
}

func TestRun_AppliesDebouncedChanges(t *testing.T) {
	dir := t.TempDir()
	ing := &fakeIngester{}

	changes := make(chan Change, 16)
	w := newTestWatcher(t, ing, func(c Change) { changes <- c })
	require.NoError(t, w.Add(context.Background(), dir))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	path := filepath.Join(dir, "handbook.txt")
	require.NoError(t, os.WriteFile(path, []byte("first"), 0644))
	require.NoError(t, os.WriteFile(path, []byte("first version"), 0644))

	first := waitChange(t, changes)
	assert.Equal(t, ChangeUpsert, first.Type)
	assert.Equal(t, core.IDFromContent("first version"), first.Id)
	require.NoError(t, first.Err)

	require.NoError(t, os.WriteFile(path, []byte("second version"), 0644))
	second := waitChange(t, changes)
	assert.Equal(t, core.IDFromContent("second version"), second.Id)

	require.NoError(t, os.Remove(path))
	removed := waitChange(t, changes)
	assert.Equal(t, ChangeDelete, removed.Type)
	assert.Equal(t, second.Id, removed.Id)

	ing.mu.Lock()
	assert.Equal(t, []core.ID{first.Id, second.Id}, ing.forgot)
	ing.mu.Unlock()
	assert.Zero(t, w.Tracked())

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestApply_IngestFailure(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.txt")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0644))

	var got Change
	w := newTestWatcher(t, &fakeIngester{failFor: path}, func(c Change) { got = c })
	w.apply(context.Background(), path, ChangeUpsert)

	require.True(t, errors.Is(got.Err, core.ErrCorruptDocument))
	assert.Zero(t, w.Tracked())

	got = Change{}
	w.apply(context.Background(), filepath.Join(dir, "never-seen.txt"), ChangeDelete)
	assert.Equal(t, Change{}, got, "unknown deletions are ignored")
}

func waitChange(t *testing.T, changes <-chan Change) Change {
	t.Helper()
	select {
	case c := <-changes:
		return c
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for file change")
		return Change{}
	}
}

func TestApply_SharedContent(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	a := filepath.Join(dir, "a.txt")
	b := filepath.Join(dir, "b.txt")
	require.NoError(t, os.WriteFile(a, []byte("same policy text"), 0644))
	require.NoError(t, os.WriteFile(b, []byte("same policy text"), 0644))
	shared := core.IDFromContent("same policy text")

	ing := &fakeIngester{}
	w := newTestWatcher(t, ing, nil)
	w.apply(ctx, a, ChangeUpsert)
	w.apply(ctx, b, ChangeUpsert)
	require.Equal(t, 2, w.Tracked())

	t.Run("rewriting one copy keeps the shared document", func(t *testing.T) {
		require.NoError(t, os.WriteFile(a, []byte("edited policy text"), 0644))
		w.apply(ctx, a, ChangeUpsert)
		_, forgot := ing.counts()
		assert.Zero(t, forgot)
	})

	t.Run("deleting a copy keeps the shared document", func(t *testing.T) {
		require.NoError(t, os.WriteFile(a, []byte("same policy text"), 0644))
		w.apply(ctx, a, ChangeUpsert)
		ing.mu.Lock()
		ing.forgot = nil
		ing.mu.Unlock()

		require.NoError(t, os.Remove(a))
		w.apply(ctx, a, ChangeDelete)
		_, forgot := ing.counts()
		assert.Zero(t, forgot)
		assert.Equal(t, 1, w.Tracked())
	})

	t.Run("deleting the last copy forgets it", func(t *testing.T) {
		require.NoError(t, os.Remove(b))
		w.apply(ctx, b, ChangeDelete)
		ing.mu.Lock()
		defer ing.mu.Unlock()
		assert.Equal(t, []core.ID{shared}, ing.forgot)
		assert.Zero(t, w.Tracked())
	})
}
