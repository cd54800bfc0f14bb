// Package legacy imports a database written by the previous version of the
// tracker and converts text-only floor reports into structured rows.
package legacy

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// User is a row of the old users table. Password is a bcrypt hash.
type User struct {
	ID       int64
	Username string
	Password string
	Role     string
}

// Site is a row of the old sites table. Databases created before the
// building shape columns existed get the old defaults.
type Site struct {
	ID           int64
	Name         string
	Location     string
	Description  string
	StartDate    string
	Status       string
	NumBasements int
	NumFloors    int
	HasRoof      bool
}

// Progress is a row of the old progress table.
type Progress struct {
	ID                 int64
	SiteID             int64
	UserID             int64
	Date               string
	Category           string
	Description        string
	Image              []byte
	AIReport           string
	VerificationStatus string
	ProgressPercentage int
}

// WorkType is a row of the optional work_types table.
type WorkType struct {
	ID                 int64
	ProgressID         int64
	SiteID             int64
	FloorName          string
	WorkName           string
	Status             string
	ProgressPercentage int
	Date               string
}

// Reader reads the old schema.
type Reader struct {
	db *sql.DB
}

// Open opens an old database file read-only.
func Open(path string) (*Reader, error) {
	db, err := sql.Open("sqlite3", "file:"+path+"?mode=ro")
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("open legacy database %s: %w", path, err)
	}
	return &Reader{db: db}, nil
}

// NewReader wraps an existing handle.
func NewReader(db *sql.DB) *Reader { return &Reader{db: db} }

// Close closes the handle.
func (r *Reader) Close() error { return r.db.Close() }

// Users returns every user ordered by id.
func (r *Reader) Users(ctx context.Context) ([]User, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT id, username, password, role FROM users ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("read users: %w", err)
	}
	defer rows.Close()

	var out []User
	for rows.Next() {
		var u User
		var password []byte
		if err := rows.Scan(&u.ID, &u.Username, &password, &u.Role); err != nil {
			return nil, err
		}
		u.Password = string(password)
		out = append(out, u)
	}
	return out, rows.Err()
}

// columns returns the column names of table.
func (r *Reader) columns(ctx context.Context, table string) (map[string]bool, error) {
	rows, err := r.db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols := map[string]bool{}
	for rows.Next() {
		var (
			cid       int
			name      string
			typ       string
			notNull   int
			dfltValue sql.NullString
			pk        int
		)
		if err := rows.Scan(&cid, &name, &typ, &notNull, &dfltValue, &pk); err != nil {
			return nil, err
		}
		cols[name] = true
	}
	return cols, rows.Err()
}

// Sites returns every site ordered by id.
func (r *Reader) Sites(ctx context.Context) ([]Site, error) {
	cols, err := r.columns(ctx, "sites")
	if err != nil {
		return nil, fmt.Errorf("inspect sites: %w", err)
	}

	pick := func(col, fallback string) string {
		if cols[col] {
			return col
		}
		return fallback + " AS " + col
	}
	query := fmt.Sprintf(`SELECT id, name, location,
		COALESCE(description, ''), COALESCE(start_date, ''), COALESCE(status, 'Active'),
		%s, %s, %s
		FROM sites ORDER BY id`,
		pick("num_basements", "0"), pick("num_floors", "10"), pick("has_roof", "1"))

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("read sites: %w", err)
	}
	defer rows.Close()

	var out []Site
	for rows.Next() {
		var s Site
		var basements, floors, roof sql.NullInt64
		if err := rows.Scan(&s.ID, &s.Name, &s.Location, &s.Description, &s.StartDate, &s.Status,
			&basements, &floors, &roof); err != nil {
			return nil, err
		}
		s.NumBasements = int(basements.Int64)
		s.NumFloors = 10
		if floors.Valid {
			s.NumFloors = int(floors.Int64)
		}
		s.HasRoof = !roof.Valid || roof.Int64 != 0
		out = append(out, s)
	}
	return out, rows.Err()
}

// Progress returns every progress row ordered by id.
func (r *Reader) Progress(ctx context.Context) ([]Progress, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, site_id, user_id, date, category, description,
		image, COALESCE(ai_report, ''), COALESCE(ai_verification_status, ''), COALESCE(progress_percentage, 0)
		FROM progress ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("read progress: %w", err)
	}
	defer rows.Close()

	var out []Progress
	for rows.Next() {
		var p Progress
		if err := rows.Scan(&p.ID, &p.SiteID, &p.UserID, &p.Date, &p.Category, &p.Description,
			&p.Image, &p.AIReport, &p.VerificationStatus, &p.ProgressPercentage); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// HasWorkTypes reports whether the work_types table exists.
func (r *Reader) HasWorkTypes(ctx context.Context) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'work_types'").Scan(&n)
	return n > 0, err
}

// WorkTypes returns the work_types rows grouped by progress id, in id order.
func (r *Reader) WorkTypes(ctx context.Context) (map[int64][]WorkType, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, progress_id, site_id, floor_name, work_name,
		status, progress_percentage, date FROM work_types ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("read work types: %w", err)
	}
	defer rows.Close()

	out := map[int64][]WorkType{}
	for rows.Next() {
		var w WorkType
		if err := rows.Scan(&w.ID, &w.ProgressID, &w.SiteID, &w.FloorName, &w.WorkName,
			&w.Status, &w.ProgressPercentage, &w.Date); err != nil {
			return nil, err
		}
		out[w.ProgressID] = append(out[w.ProgressID], w)
	}
	return out, rows.Err()
}
