package watcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCoalesce_CreateThenDeleteAnnihilate(t *testing.T) {
	w := &Watcher{pending: map[string]Kind{}}
	w.coalesce(w.pending, "a", Create)
	w.coalesce(w.pending, "a", Delete)
	assert.Empty(t, w.pending)
}

func TestCoalesce_DeleteThenCreateIsModify(t *testing.T) {
	w := &Watcher{pending: map[string]Kind{}}
	w.coalesce(w.pending, "a", Delete)
	w.coalesce(w.pending, "a", Create)
	assert.Equal(t, Modify, w.pending["a"])
}

func TestCoalesce_ModifyCollapses(t *testing.T) {
	w := &Watcher{pending: map[string]Kind{}}
	w.coalesce(w.pending, "a", Modify)
	w.coalesce(w.pending, "a", Modify)
	assert.Equal(t, map[string]Kind{"a": Modify}, w.pending)

	w.coalesce(w.pending, "b", Create)
	w.coalesce(w.pending, "b", Modify)
	assert.Equal(t, Create, w.pending["b"])
}

func TestSortChanges_DeterministicOrder(t *testing.T) {
	pending := map[string]Kind{
		"z-mod":    Modify,
		"a-mod":    Modify,
		"b-create": Create,
		"c-delete": Delete,
	}
	changes := sortChanges(pending)
	got := make([]string, len(changes))
	for i, c := range changes {
		got[i] = c.Path
	}
	assert.Equal(t, []string{"c-delete", "b-create", "a-mod", "z-mod"}, got)
}

func TestShouldIgnore(t *testing.T) {
	assert.True(t, shouldIgnore("/x/.hidden"))
	assert.True(t, shouldIgnore("/x/file.norg~"))
	assert.True(t, shouldIgnore("/x/.file.swp"))
	assert.True(t, shouldIgnore("/x/#lock#"))
	assert.False(t, shouldIgnore("/x/index.norg"))
}

func TestRecordError_ThreeWithinAMinuteIsFatal(t *testing.T) {
	w := &Watcher{}
	assert.False(t, w.recordError())
	assert.False(t, w.recordError())
	assert.True(t, w.recordError())
}

// TestRun_DebouncesBurstsIntoOneBatch exercises the whole watch path with a
// real fsnotify watcher: several writes to the same file inside one window
// must yield exactly one batch with one change for that path.
func TestRun_DebouncesBurstsIntoOneBatch(t *testing.T) {
	dir := t.TempDir()
	w, err := New([]string{dir}, 150*time.Millisecond)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	target := filepath.Join(dir, "note.norg")
	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(target, []byte("tick"), 0o644))
		time.Sleep(10 * time.Millisecond)
	}

	select {
	case batch := <-w.Batches():
		require.Len(t, batch.Changes, 1)
		assert.Equal(t, target, batch.Changes[0].Path)
		assert.NotEmpty(t, batch.ID)
	case <-time.After(3 * time.Second):
		t.Fatal("no batch arrived")
	}

	// Quiet period: no further batches.
	select {
	case batch := <-w.Batches():
		t.Fatalf("unexpected extra batch: %+v", batch)
	case <-time.After(400 * time.Millisecond):
	}

	cancel()
	require.NoError(t, <-done)
}

func TestRun_DeleteArrivesAsDelete(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "doomed.norg")
	require.NoError(t, os.WriteFile(target, []byte("x"), 0o644))

	w, err := New([]string{dir}, 100*time.Millisecond)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Run(ctx) }()

	require.NoError(t, os.Remove(target))

	select {
	case batch := <-w.Batches():
		require.Len(t, batch.Changes, 1)
		assert.Equal(t, Delete, batch.Changes[0].Kind)
	case <-time.After(3 * time.Second):
		t.Fatal("no batch arrived")
	}
}
