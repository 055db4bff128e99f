package sqlite

import (
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JaimeIvanCervantes/hytra/internal/db"
	"github.com/JaimeIvanCervantes/hytra/internal/merger"
)

func newTestStore(t *testing.T) *RunStore {
	t.Helper()
	database, err := db.Open(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	return NewRunStore(database.DB)
}

func sampleReport() merger.Report {
	return merger.Report{
		1: {1: {5, 6}},
		3: {2: {7, 8, 9}, 4: {10, 11}},
	}
}

func TestRunStore_InsertAndGet(t *testing.T) {
	store := newTestStore(t)

	run := &Run{
		GraphPath:  "/data/graph.json",
		PlotPath:   "/data/tracks.png",
		ConfigJSON: json.RawMessage(`{"num_states":4}`),
	}
	require.NoError(t, store.Insert(run, sampleReport()))

	assert.NotEmpty(t, run.RunID)
	assert.Equal(t, 3, run.MergerCount)
	assert.Equal(t, 7, run.NewObjectCount)
	assert.Equal(t, 2, run.TimestepCount)
	assert.NotZero(t, run.CreatedAt)

	got, err := store.Get(run.RunID)
	require.NoError(t, err)
	if diff := cmp.Diff(run, got); diff != "" {
		t.Errorf("Get mismatch (-want +got):\n%s", diff)
	}
}

func TestRunStore_OptionalFieldsAreNull(t *testing.T) {
	store := newTestStore(t)

	run := &Run{RunID: "bare", GraphPath: "g.json"}
	require.NoError(t, store.Insert(run, merger.Report{}))

	got, err := store.Get("bare")
	require.NoError(t, err)
	assert.Empty(t, got.PlotPath)
	assert.Nil(t, got.ConfigJSON)
	assert.Zero(t, got.MergerCount)
}

func TestRunStore_Report(t *testing.T) {
	store := newTestStore(t)

	run := &Run{GraphPath: "g.json"}
	require.NoError(t, store.Insert(run, sampleReport()))

	report, err := store.Report(run.RunID)
	require.NoError(t, err)
	if diff := cmp.Diff(sampleReport(), report); diff != "" {
		t.Errorf("Report mismatch (-want +got):\n%s", diff)
	}
}

func TestRunStore_ListNewestFirst(t *testing.T) {
	store := newTestStore(t)

	for i, id := range []string{"old", "mid", "new"} {
		run := &Run{RunID: id, GraphPath: "g.json", CreatedAt: int64(100 + i)}
		require.NoError(t, store.Insert(run, merger.Report{}))
	}

	runs, err := store.List()
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, []string{"new", "mid", "old"}, []string{runs[0].RunID, runs[1].RunID, runs[2].RunID})
}

func TestRunStore_DeleteCascades(t *testing.T) {
	store := newTestStore(t)

	run := &Run{RunID: "gone", GraphPath: "g.json"}
	require.NoError(t, store.Insert(run, sampleReport()))
	require.NoError(t, store.Delete("gone"))

	_, err := store.Get("gone")
	assert.True(t, errors.Is(err, ErrRunNotFound))

	var n int
	require.NoError(t, store.db.QueryRow(`SELECT COUNT(*) FROM resolved_mergers WHERE run_id = ?`, "gone").Scan(&n))
	assert.Zero(t, n)
}

func TestRunStore_NotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Get("missing")
	assert.ErrorIs(t, err, ErrRunNotFound)

	_, err = store.Report("missing")
	assert.ErrorIs(t, err, ErrRunNotFound)

	assert.ErrorIs(t, store.Delete("missing"), ErrRunNotFound)
}

func TestRunStore_DuplicateID(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.Insert(&Run{RunID: "dup", GraphPath: "g.json"}, sampleReport()))
	err := store.Insert(&Run{RunID: "dup", GraphPath: "g.json"}, sampleReport())
	require.Error(t, err)

	// The failed transaction leaves the first run's mergers untouched.
	report, err := store.Report("dup")
	require.NoError(t, err)
	assert.Equal(t, 3, report.Mergers())
}

func TestRetryOnBusy(t *testing.T) {
	t.Run("succeeds after transient busy", func(t *testing.T) {
		calls := 0
		err := retryOnBusy(func() error {
			calls++
			if calls < 3 {
				return errors.New("database is locked (5) (SQLITE_BUSY)")
			}
			return nil
		})
		assert.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("gives up after max attempts", func(t *testing.T) {
		calls := 0
		err := retryOnBusy(func() error {
			calls++
			return errors.New("SQLITE_BUSY")
		})
		assert.Error(t, err)
		assert.Equal(t, maxBusyRetries, calls)
	})

	t.Run("non-busy error returned immediately", func(t *testing.T) {
		calls := 0
		want := errors.New("constraint failed")
		err := retryOnBusy(func() error {
			calls++
			return want
		})
		assert.Same(t, want, err)
		assert.Equal(t, 1, calls)
	})
}

func TestIsSQLiteBusy(t *testing.T) {
	assert.False(t, isSQLiteBusy(nil))
	assert.False(t, isSQLiteBusy(errors.New("no such table")))
	assert.True(t, isSQLiteBusy(errors.New("database is locked")))
	assert.True(t, isSQLiteBusy(errors.New("sqlite: SQLITE_BUSY")))
}
