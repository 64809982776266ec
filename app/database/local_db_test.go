package database

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *LocalDB {
	t.Helper()
	db, err := OpenLocalDB(filepath.Join(t.TempDir(), "data", "pos.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

type stockRecord struct {
	ID    string  `json:"id"`
	Stock float64 `json:"stock"`
}

func TestLocalDB_SaveAndLoad(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	var missing []stockRecord
	found, err := db.Load(ctx, "ingredients", &missing)
	require.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, missing)

	require.NoError(t, db.Save(ctx, map[string]any{
		"ingredients": []stockRecord{{ID: "ing_bun", Stock: 10}},
		"settings":    map[string]string{"currency": "THB"},
	}))
	require.NoError(t, db.Save(ctx, map[string]any{
		"ingredients": []stockRecord{{ID: "ing_bun", Stock: 8}, {ID: "ing_patty", Stock: 3}},
	}))
	require.NoError(t, db.Save(ctx, nil))

	var ingredients []stockRecord
	found, err = db.Load(ctx, "ingredients", &ingredients)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, []stockRecord{{ID: "ing_bun", Stock: 8}, {ID: "ing_patty", Stock: 3}}, ingredients)

	var settings map[string]string
	found, err = db.Load(ctx, "settings", &settings)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "THB", settings["currency"])
}

func TestLocalDB_ReopenKeepsRecords(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "pos.db")

	db, err := OpenLocalDB(path)
	require.NoError(t, err)
	require.NoError(t, db.Save(ctx, map[string]any{"tables": []string{"T1", "T2"}}))
	require.NoError(t, db.Close())

	db, err = OpenLocalDB(path)
	require.NoError(t, err)
	defer db.Close()
	assert.Equal(t, path, db.Path())

	var tables []string
	found, err := db.Load(ctx, "tables", &tables)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, []string{"T1", "T2"}, tables)
}

func TestLocalDB_UndecodableRecord(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	require.NoError(t, db.Save(ctx, map[string]any{"orders": "not a list"}))

	var orders []stockRecord
	_, err := db.Load(ctx, "orders", &orders)
	require.Error(t, err)
}

func TestLocalDB_SyncStatus(t *testing.T) {
	db := openTestDB(t)

	status, err := db.GetSyncStatus()
	require.NoError(t, err)
	assert.Equal(t, "never", status.Status)

	require.NoError(t, db.UpdateSyncStatus("completed", "", 0))
	require.NoError(t, db.UpdateSyncStatus("failed", "connection refused", 3))

	status, err = db.GetSyncStatus()
	require.NoError(t, err)
	assert.Equal(t, "failed", status.Status)
	assert.Equal(t, "connection refused", status.LastError)
	assert.Equal(t, 3, status.PendingOrders)
	require.NotNil(t, status.LastSyncAt)
	require.NotNil(t, status.LastSuccessAt)
	assert.False(t, status.LastSuccessAt.After(*status.LastSyncAt))

	var rows int64
	require.NoError(t, db.db.Model(&SyncStatus{}).Count(&rows).Error)
	assert.Equal(t, int64(1), rows)
}

func TestLocalDB_SyncLogs(t *testing.T) {
	db := openTestDB(t)

	require.NoError(t, db.LogSync("order", "push", 2, "success", ""))
	require.NoError(t, db.LogSync("order", "pull", 0, "failed", "timeout"))
	require.NoError(t, db.LogSync("table", "pull", 6, "success", ""))

	logs, err := db.RecentSyncLogs(2)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, "table", logs[0].EntityType)
	assert.Equal(t, "timeout", logs[1].Error)

	require.NoError(t, db.ClearSyncLogs(30))
	logs, err = db.RecentSyncLogs(10)
	require.NoError(t, err)
	assert.Len(t, logs, 3, "recent rows survive the cleanup")

	require.NoError(t, db.ClearSyncLogs(-1))
	logs, err = db.RecentSyncLogs(10)
	require.NoError(t, err)
	assert.Empty(t, logs)
}
