package db

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Nixie-Tech-LLC/waqt/internal/dataset"
)

func setupDB(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := InitTestDB(ctx, "../../migrations"); err != nil {
		t.Skipf("database not available: %v", err)
	}
}

func TestImportDatasetRoundTrip(t *testing.T) {
	setupDB(t)
	ctx := context.Background()

	const doc = `{
	  "Dhaka": [
	    {"date": "10/03/2025", "ramadanDay": 10},
	    {"date": "01/03/2025", "ramadanDay": 1}
	  ],
	  "Sylhet": [{"date": "01/03/2025"}]
	}`

	districts, rows, err := ImportDataset(ctx, DB, strings.NewReader(doc))
	require.NoError(t, err)
	assert.Equal(t, 2, districts)
	assert.Equal(t, 3, rows)

	n, err := CountScheduleEntries(ctx, DB)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	ds, err := dataset.NewPostgresSource(DB).Fetch(ctx)
	require.NoError(t, err)
	entries := ds.EntriesFor("Dhaka")
	require.Len(t, entries, 2)
	assert.Equal(t, "10/03/2025", entries[0].DateKey, "file order is kept")
}

func TestImportDatasetRejectsBadJSON(t *testing.T) {
	setupDB(t)
	_, _, err := ImportDataset(context.Background(), DB, strings.NewReader(`[1,2]`))
	assert.Error(t, err)
}

func TestRunMigrationsEmptyDir(t *testing.T) {
	n, err := RunMigrations(context.Background(), nil, t.TempDir())
	assert.NoError(t, err)
	assert.Zero(t, n)
}

func TestRunMigrationsSkipsApplied(t *testing.T) {
	setupDB(t)
	n, err := RunMigrations(context.Background(), DB, "../../migrations")
	require.NoError(t, err)
	assert.Zero(t, n, "setup already applied every migration")
}
