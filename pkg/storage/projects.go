// Package storage persists the local project index in SQLite. It is the
// shared surface between the crawler's write path and the query model's
// read path; every exported operation is a single atomic statement (or one
// transaction) so the two sides can interleave safely.
package storage

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/pydex/pydex/pkg/db"
	"github.com/pydex/pydex/pkg/search"
)

// Project is one row of the projects table. CanonicalName is the PEP 503
// normalized form and the unique key; PreferredName keeps the spelling the
// upstream index advertised. Summary, ReleaseVersion and ReleaseDate are
// filled in lazily by the crawler and stay empty until then.
type Project struct {
	CanonicalName  string
	PreferredName  string
	Summary        string
	ReleaseVersion string
	ReleaseDate    *time.Time
}

type Store struct {
	db *sql.DB
}

func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Apply performance pragmas
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 30000",
		"PRAGMA cache_size = -64000", // 64MB cache
		"PRAGMA temp_store = memory",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return nil, fmt.Errorf("applying pragma %q: %w", pragma, err)
		}
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// CreateTable brings the database schema up to date by applying any pending
// migrations.
func (s *Store) CreateTable() error {
	if err := db.InitializeDatabase(s.db); err != nil {
		return fmt.Errorf("migrating projects database: %w", err)
	}
	return nil
}

// InsertIfMissing records a project the first time it is seen. Existing rows
// keep their summary and release columns untouched.
func (s *Store) InsertIfMissing(canonicalName, preferredName string) error {
	_, err := s.db.Exec(`
		INSERT OR IGNORE INTO projects (canonical_name, preferred_name)
		VALUES (?, ?)
	`, canonicalName, preferredName)
	if err != nil {
		return fmt.Errorf("inserting project %s: %w", canonicalName, err)
	}
	return nil
}

func (s *Store) RemoveIfFound(canonicalName string) error {
	_, err := s.db.Exec(`DELETE FROM projects WHERE canonical_name = ?`, canonicalName)
	if err != nil {
		return fmt.Errorf("removing project %s: %w", canonicalName, err)
	}
	return nil
}

// UpdateSummary stores the freshly crawled metadata of a project's latest
// release.
func (s *Store) UpdateSummary(canonicalName, summary, releaseVersion string, releaseDate *time.Time) error {
	var dateStr any
	if releaseDate != nil {
		dateStr = releaseDate.UTC().Format(time.RFC3339)
	}
	_, err := s.db.Exec(`
		UPDATE projects
		SET summary = ?, release_version = ?, release_date = ?
		WHERE canonical_name = ?
	`, summary, releaseVersion, dateStr, canonicalName)
	if err != nil {
		return fmt.Errorf("updating summary for %s: %w", canonicalName, err)
	}
	return nil
}

// FullyPopulate resyncs the table against the upstream project list: names
// not yet present are inserted, rows whose canonical name upstream no longer
// lists are deleted. An empty upstream list is treated as a transient index
// failure and rejected so a flaky fetch cannot wipe the table.
func (s *Store) FullyPopulate(upstream map[string]string) error {
	if len(upstream) == 0 {
		return fmt.Errorf("refusing to resync against an empty upstream project list")
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}

	committed := false
	defer func() {
		if !committed {
			if err := tx.Rollback(); err != nil && err != sql.ErrTxDone {
				fmt.Printf("Warning: failed to rollback transaction: %v\n", err)
			}
		}
	}()

	stmt, err := tx.Prepare(`
		INSERT OR IGNORE INTO projects (canonical_name, preferred_name)
		VALUES (?, ?)
	`)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer func() {
		if err := stmt.Close(); err != nil {
			fmt.Printf("Warning: failed to close statement: %v\n", err)
		}
	}()

	for canonical, preferred := range upstream {
		if _, err := stmt.Exec(canonical, preferred); err != nil {
			return fmt.Errorf("inserting project %s: %w", canonical, err)
		}
	}

	existing, err := allNames(tx)
	if err != nil {
		return err
	}
	for _, name := range existing {
		if _, ok := upstream[name]; ok {
			continue
		}
		if _, err := tx.Exec(`DELETE FROM projects WHERE canonical_name = ?`, name); err != nil {
			return fmt.Errorf("removing project %s: %w", name, err)
		}
	}

	err = tx.Commit()
	if err == nil {
		committed = true
	}
	return err
}

func allNames(tx *sql.Tx) ([]string, error) {
	rows, err := tx.Query(`SELECT canonical_name FROM projects`)
	if err != nil {
		return nil, fmt.Errorf("listing projects: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			fmt.Printf("Warning: failed to close rows: %v\n", err)
		}
	}()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// Count returns the number of rows matching the compiled query.
func (s *Store) Count(builder search.SQLBuilder) (int, error) {
	query := `SELECT COUNT(*) FROM projects`
	if builder.Where != "" {
		query += " WHERE " + builder.Where
	}

	var count int
	if err := s.db.QueryRow(query, builder.WhereParams...).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting projects: %w", err)
	}
	return count, nil
}

func (s *Store) CountAll() (int, error) {
	var count int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM projects`).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting projects: %w", err)
	}
	return count, nil
}

// Search runs the compiled query with its relevance ordering and returns one
// page of rows.
func (s *Store) Search(builder search.SQLBuilder, limit, offset int) ([]Project, error) {
	query := `
		SELECT canonical_name, preferred_name, summary, release_version, release_date
		FROM projects`
	var args []any
	if builder.Where != "" {
		query += " WHERE " + builder.Where
		args = append(args, builder.WhereParams...)
	}
	query += " ORDER BY " + builder.Order
	args = append(args, builder.OrderParams...)
	query += " LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying projects: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			fmt.Printf("Warning: failed to close rows: %v\n", err)
		}
	}()

	var projects []Project
	for rows.Next() {
		project, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		projects = append(projects, project)
	}
	return projects, rows.Err()
}

// GetExact looks a project up by canonical name. A missing row returns
// (nil, nil).
func (s *Store) GetExact(canonicalName string) (*Project, error) {
	row := s.db.QueryRow(`
		SELECT canonical_name, preferred_name, summary, release_version, release_date
		FROM projects
		WHERE canonical_name = ?
	`, canonicalName)

	project, err := scanProject(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &project, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProject(row rowScanner) (Project, error) {
	var project Project
	var summary, releaseVersion, releaseDate sql.NullString

	err := row.Scan(&project.CanonicalName, &project.PreferredName, &summary, &releaseVersion, &releaseDate)
	if err == sql.ErrNoRows {
		return Project{}, err
	}
	if err != nil {
		return Project{}, fmt.Errorf("scanning row: %w", err)
	}

	project.Summary = summary.String
	project.ReleaseVersion = releaseVersion.String
	if releaseDate.Valid {
		t, err := time.Parse(time.RFC3339, releaseDate.String)
		if err != nil {
			return Project{}, fmt.Errorf("parsing release date for %s: %w", project.CanonicalName, err)
		}
		project.ReleaseDate = &t
	}
	return project, nil
}
