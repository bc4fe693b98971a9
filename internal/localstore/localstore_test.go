package localstore

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alexanderramin/smartplan/internal/domain"
	"github.com/alexanderramin/smartplan/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_PutGet(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "nested"))

	require.NoError(t, s.Put("prefs", map[string]string{"theme": "dark"}))
	var got map[string]string
	require.NoError(t, s.Get("prefs", &got))
	assert.Equal(t, "dark", got["theme"])

	entries, err := os.ReadDir(s.Dir())
	require.NoError(t, err)
	require.Len(t, entries, 1, "temporary files are cleaned up")
	assert.Equal(t, "prefs.json", entries[0].Name())
}

func TestStore_GetMissing(t *testing.T) {
	s := New(t.TempDir())
	var got map[string]string
	assert.ErrorIs(t, s.Get("nothing", &got), ErrNotFound)
	assert.False(t, s.Has("nothing"))
}

func TestStore_RejectsPathKeys(t *testing.T) {
	s := New(t.TempDir())
	assert.Error(t, s.Put("../escape", 1))
	assert.Error(t, s.Put("", 1))
}

func TestStore_Delete(t *testing.T) {
	s := New(t.TempDir())
	require.NoError(t, s.Put("k", 1))
	require.NoError(t, s.Delete("k"))
	assert.False(t, s.Has("k"))
	assert.NoError(t, s.Delete("k"))
}

func TestLastGoal_SaveLoadReplaces(t *testing.T) {
	lg := NewLastGoal(New(t.TempDir()))
	at := time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)
	lg.now = func() time.Time { return at }

	assert.False(t, lg.Exists())

	first := domain.GoalPlan{Goal: *testutil.NewTestGoal(testutil.WithGoalName("first")), Markdown: "# first"}
	second := domain.GoalPlan{Goal: *testutil.NewTestGoal(testutil.WithGoalName("second")), Markdown: "# second"}
	require.NoError(t, lg.Save(first))
	require.NoError(t, lg.Save(second))
	assert.True(t, lg.Exists())

	entry, err := lg.Load()
	require.NoError(t, err)
	assert.Equal(t, "second", entry.GoalPlan.Goal.Name)
	assert.Equal(t, second.Goal.GUID, entry.GoalPlan.Goal.GUID)
	assert.Equal(t, at.UnixMilli(), entry.Timestamp)
	assert.True(t, entry.SavedAt().Equal(at))
}

func TestLastGoal_ExistsDoesNotDecode(t *testing.T) {
	s := New(t.TempDir())
	require.NoError(t, os.MkdirAll(s.Dir(), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(s.Dir(), LastGoalKey+".json"), []byte("not json"), 0o644))

	lg := NewLastGoal(s)
	assert.True(t, lg.Exists())
	_, err := lg.Load()
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestLastGoal_LoadMissing(t *testing.T) {
	lg := NewLastGoal(New(t.TempDir()))
	_, err := lg.Load()
	assert.ErrorIs(t, err, ErrNotFound)
}
