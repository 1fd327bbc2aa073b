package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/final-funnel/funnel-cli/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func TestSQLite_SaveAndGetQuery(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	saved, err := st.SaveQuery(ctx, model.SavedQuery{
		Name:    "us-software-ctos",
		Filters: map[string][]string{"comp_country": {"United States"}, "manlevel": {"C-Level"}},
	})
	require.NoError(t, err)
	require.NotEmpty(t, saved.ID)

	got, err := st.GetQuery(ctx, saved.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "us-software-ctos", got.Name)
	assert.Equal(t, []string{"United States"}, got.Filters["comp_country"])
}

func TestSQLite_GetQuery_Missing(t *testing.T) {
	st := newTestSQLiteStore(t)

	got, err := st.GetQuery(context.Background(), "nonexistent")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSQLite_SaveQuery_OverwriteByName(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	first, err := st.SaveQuery(ctx, model.SavedQuery{
		Name:    "emea",
		Filters: map[string][]string{"comp_country": {"Germany"}},
	})
	require.NoError(t, err)

	_, err = st.SaveQuery(ctx, model.SavedQuery{
		Name:    "emea",
		Filters: map[string][]string{"comp_country": {"Germany", "France"}},
	})
	require.NoError(t, err)

	got, err := st.GetQuery(ctx, first.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Len(t, got.Filters["comp_country"], 2)
}

func TestSQLite_ListAndDeleteQueries(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	a, err := st.SaveQuery(ctx, model.SavedQuery{Name: "a", Filters: map[string][]string{}})
	require.NoError(t, err)
	_, err = st.SaveQuery(ctx, model.SavedQuery{Name: "b", Filters: map[string][]string{}})
	require.NoError(t, err)

	queries, err := st.ListQueries(ctx)
	require.NoError(t, err)
	assert.Len(t, queries, 2)

	require.NoError(t, st.DeleteQuery(ctx, a.ID))

	queries, err = st.ListQueries(ctx)
	require.NoError(t, err)
	assert.Len(t, queries, 1)

	err = st.DeleteQuery(ctx, a.ID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}
