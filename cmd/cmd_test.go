package cmd

import (
	"bytes"
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"p9e.in/siteprogress/models"
)

// run executes the command line against the SQLite file at dsn.
func run(t *testing.T, dsn string, args ...string) (string, error) {
	t.Helper()
	root := RootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"--db-driver", "sqlite", "--db-dsn", dsn, "--log-level", "error"}, args...))
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := run(t, filepath.Join(t.TempDir(), "unused.db"), "version")
	require.NoError(t, err)
	assert.Contains(t, out, "Version:   dev")
}

func TestSiteAndUserCommands(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "site.db")

	out, err := run(t, dsn, "migrate")
	require.NoError(t, err)
	assert.Contains(t, out, "migrations applied")

	out, err = run(t, dsn, "site", "add", "Tower A", "--location", "Pune", "--basements", "1", "--floors", "3")
	require.NoError(t, err)
	assert.Contains(t, out, "with 6 floor labels")

	_, err = run(t, dsn, "site", "add", "Tower A", "--location", "Pune")
	assert.ErrorIs(t, err, models.ErrDuplicate)

	_, err = run(t, dsn, "site", "add", "Tower B", "--location", "Pune", "--start-date", "10/01/2024")
	var verr *models.ValidationError
	assert.ErrorAs(t, err, &verr)

	plot := filepath.Join(t.TempDir(), "plot.geojson")
	require.NoError(t, os.WriteFile(plot, []byte(`{"type":"Polygon","coordinates":[[[73.85,18.52],[73.852,18.52],[73.852,18.522],[73.85,18.52]]]}`), 0o600))
	_, err = run(t, dsn, "site", "add", "Tower C", "--location", "Pune", "--boundary", plot)
	require.NoError(t, err)

	_, err = run(t, dsn, "site", "add", "Tower D", "--location", "Pune", "--boundary", "plot.shp")
	assert.ErrorAs(t, err, &verr)

	out, err = run(t, dsn, "site", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "Tower A")
	assert.Contains(t, out, "B1+G+3+R")

	out, err = run(t, dsn, "site", "status", "Tower A", "on hold")
	require.NoError(t, err)
	assert.Contains(t, out, "Tower A is now On Hold")

	_, err = run(t, dsn, "site", "status", "Nowhere", "Active")
	assert.ErrorIs(t, err, models.ErrNotFound)

	out, err = run(t, dsn, "user", "add", "asha", "--password", "secret")
	require.NoError(t, err)
	assert.Contains(t, out, "created engineer asha")

	_, err = run(t, dsn, "user", "add", "ravi", "--password", "secret", "--role", "foreman")
	var verrs models.ValidationErrors
	assert.ErrorAs(t, err, &verrs)

	out, err = run(t, dsn, "user", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "asha")
}

const oldFloorText = `Shuttering done.

--- FLOOR-WISE DETAILS ---
Floor: Basement 1
Work Phase: In Progress
Floor Progress: 40%

Work Types Being Carried Out:
- Structural Work: Started | 40%
`

func oldDatabase(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "old.db")
	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	defer db.Close()

	stmts := []string{
		`CREATE TABLE users (id INTEGER PRIMARY KEY AUTOINCREMENT, username TEXT UNIQUE NOT NULL, password BLOB NOT NULL, role TEXT NOT NULL)`,
		`CREATE TABLE sites (id INTEGER PRIMARY KEY AUTOINCREMENT, name TEXT UNIQUE NOT NULL, location TEXT NOT NULL,
			description TEXT, start_date TEXT, status TEXT DEFAULT 'Active',
			num_basements INTEGER DEFAULT 0, num_floors INTEGER DEFAULT 10, has_roof INTEGER DEFAULT 1)`,
		`CREATE TABLE progress (id INTEGER PRIMARY KEY AUTOINCREMENT, site_id INTEGER NOT NULL, user_id INTEGER NOT NULL,
			date TEXT NOT NULL, category TEXT NOT NULL, description TEXT NOT NULL, image BLOB,
			ai_report TEXT, ai_verification_status TEXT, progress_percentage INTEGER)`,
		`INSERT INTO users (username, password, role) VALUES ('ravi', '$2b$12$def', 'engineer')`,
		`INSERT INTO sites (name, location, start_date, num_basements) VALUES ('Tower A', 'Pune', '2024-01-10', 1)`,
	}
	for _, s := range stmts {
		_, err := db.Exec(s)
		require.NoError(t, err, s)
	}
	_, err = db.Exec(`INSERT INTO progress (site_id, user_id, date, category, description, progress_percentage)
		VALUES (1, 1, '2025-01-16 09:00:00', 'Structural Work', ?, 40)`, oldFloorText)
	require.NoError(t, err)
	return path
}

func TestLegacyDiagnoseAndExport(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "new.db")
	source := oldDatabase(t)

	out, err := run(t, dsn, "legacy", "import", "--source", source)
	require.NoError(t, err)
	assert.Contains(t, out, "sites:   1 created, 0 reused")
	assert.Contains(t, out, "records: 1 imported, 0 skipped, 0 failed")

	out, err = run(t, dsn, "legacy", "import", "--source", source)
	require.NoError(t, err)
	assert.Contains(t, out, "records: 0 imported, 1 skipped, 0 failed")

	out, err = run(t, dsn, "diagnose")
	require.NoError(t, err)
	assert.Regexp(t, `Tower A\s+1\s+0\s+1\s+0\s+0\s+1`, out)

	out, err = run(t, dsn, "legacy", "materialize", "--site", "Tower A")
	require.NoError(t, err)
	assert.Contains(t, out, "records: 1 imported, 0 skipped, 0 failed")
	assert.Contains(t, out, "rows:    1 floors, 1 work types")

	out, err = run(t, dsn, "diagnose", "--site", "Tower A")
	require.NoError(t, err)
	assert.Regexp(t, `Tower A\s+1\s+1\s+0\s+0\s+0\s+0`, out)

	dir := t.TempDir()
	out, err = run(t, dsn, "export", "--site", "Tower A", "--format", "csv", "--out", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "wrote 1 updates")
	files, err := filepath.Glob(filepath.Join(dir, "monthly_progress_report_Tower*.csv"))
	require.NoError(t, err)
	require.Len(t, files, 1)
	data, err := os.ReadFile(files[0])
	require.NoError(t, err)
	assert.Contains(t, string(data), "Basement 1")

	_, err = run(t, dsn, "export", "--site", "Tower A", "--format", "pdf")
	var verr *models.ValidationError
	assert.ErrorAs(t, err, &verr)
}
