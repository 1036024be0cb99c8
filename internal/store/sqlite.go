package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/joescharf/issuetracker/internal/models"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// MemoryDSN opens a private in-memory SQLite database.
const MemoryDSN = ":memory:"

// SQLiteStore implements Store using modernc.org/sqlite (pure Go, no CGO).
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at the given path.
// MemoryDSN keeps the database in memory for the life of the process.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dbPath != MemoryDSN {
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// One connection serializes writers, and is also what keeps an
	// in-memory database alive between calls.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%s: %w", strings.ToLower(p), err)
		}
	}

	return &SQLiteStore{db: db}, nil
}

// Migrate runs all embedded SQL migration files in order.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		filename TEXT PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT (datetime('now'))
	)`)
	if err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()

		var count int
		err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_migrations WHERE filename = ?", name).Scan(&count)
		if err != nil {
			return fmt.Errorf("check migration %s: %w", name, err)
		}
		if count > 0 {
			continue
		}

		data, err := migrationsFS.ReadFile("migrations/" + name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}
		if _, err := s.db.ExecContext(ctx, string(data)); err != nil {
			return fmt.Errorf("apply migration %s: %w", name, err)
		}
		if _, err := s.db.ExecContext(ctx, "INSERT INTO schema_migrations (filename) VALUES (?)", name); err != nil {
			return fmt.Errorf("record migration %s: %w", name, err)
		}
	}

	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// boolToInt converts a bool to 0 or 1 for SQLite storage.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

const issueColumns = `id, issue_title, issue_text, created_by, assigned_to, status_text, created_on, updated_on, open`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanIssue(row rowScanner) (*models.Issue, error) {
	issue := &models.Issue{}
	var open int
	if err := row.Scan(&issue.ID, &issue.Title, &issue.Text, &issue.CreatedBy,
		&issue.AssignedTo, &issue.StatusText, &issue.CreatedOn, &issue.UpdatedOn, &open); err != nil {
		return nil, err
	}
	issue.Open = open != 0
	return issue, nil
}

func (s *SQLiteStore) CreateIssue(ctx context.Context, project string, issue *models.Issue) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create issue: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "INSERT OR IGNORE INTO projects (name) VALUES (?)", project); err != nil {
		return fmt.Errorf("create project %s: %w", project, err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO issues (project, `+issueColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		project, issue.ID, issue.Title, issue.Text, issue.CreatedBy, issue.AssignedTo, issue.StatusText,
		issue.CreatedOn.UTC(), issue.UpdatedOn.UTC(), boolToInt(issue.Open),
	)
	if err != nil {
		return fmt.Errorf("create issue: %w", err)
	}
	return tx.Commit()
}

func (s *SQLiteStore) ListIssues(ctx context.Context, project string, filter IssueFilter) ([]*models.Issue, error) {
	conditions := []string{"project = ?"}
	args := []any{project}

	eq := func(column string, o models.Optional[string]) {
		if o.Set {
			conditions = append(conditions, column+" = ?")
			args = append(args, o.Value)
		}
	}
	eq("id", filter.ID)
	eq("issue_title", filter.Title)
	eq("issue_text", filter.Text)
	eq("created_by", filter.CreatedBy)
	eq("assigned_to", filter.AssignedTo)
	eq("status_text", filter.StatusText)
	if filter.Open.Set {
		conditions = append(conditions, "open = ?")
		args = append(args, boolToInt(filter.Open.Value))
	}

	query := `SELECT ` + issueColumns + ` FROM issues WHERE ` + strings.Join(conditions, " AND ") + ` ORDER BY seq`
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list issues: %w", err)
	}
	defer func() { _ = rows.Close() }()

	issues := []*models.Issue{}
	for rows.Next() {
		issue, err := scanIssue(rows)
		if err != nil {
			return nil, fmt.Errorf("scan issue: %w", err)
		}
		issues = append(issues, issue)
	}
	return issues, rows.Err()
}

func (s *SQLiteStore) UpdateIssue(ctx context.Context, project, id string, mutate func(*models.Issue)) (*models.Issue, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin update issue: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	issue, err := scanIssue(tx.QueryRowContext(ctx,
		`SELECT `+issueColumns+` FROM issues WHERE project = ? AND id = ?`, project, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get issue: %w", err)
	}

	mutate(issue)

	_, err = tx.ExecContext(ctx,
		`UPDATE issues SET issue_title=?, issue_text=?, created_by=?, assigned_to=?, status_text=?, updated_on=?, open=?
		WHERE project=? AND id=?`,
		issue.Title, issue.Text, issue.CreatedBy, issue.AssignedTo, issue.StatusText,
		issue.UpdatedOn.UTC(), boolToInt(issue.Open), project, id,
	)
	if err != nil {
		return nil, fmt.Errorf("update issue: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit update issue: %w", err)
	}
	return issue, nil
}

func (s *SQLiteStore) DeleteIssue(ctx context.Context, project, id string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM issues WHERE project = ? AND id = ?", project, id)
	if err != nil {
		return fmt.Errorf("delete issue: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) Projects(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT name FROM projects ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer func() { _ = rows.Close() }()

	names := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}
