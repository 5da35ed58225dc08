package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/SergeiKhy/shortlink/internal/models"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS links (
	slug          TEXT PRIMARY KEY,
	url           TEXT NOT NULL,
	clicks        INTEGER NOT NULL DEFAULT 0 CHECK (clicks >= 0),
	created_at    TEXT NOT NULL,
	expires_at    TEXT,
	password_hash TEXT
);
`

// SQLiteDB is a single-connection handle to a SQLite file.
type SQLiteDB struct {
	DB *sql.DB
}

// NewSQLiteDB opens (or creates) the database at path and applies the schema.
// ":memory:" gives a private in-process database.
func NewSQLiteDB(path string) (*SQLiteDB, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}

	// A single connection serializes writers and keeps ":memory:" databases shared.
	db.SetMaxOpenConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping sqlite: %w", err)
	}

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply sqlite schema: %w", err)
	}

	return &SQLiteDB{DB: db}, nil
}

func (db *SQLiteDB) Close() error {
	return db.DB.Close()
}

type sqliteLinkRepository struct {
	db *SQLiteDB
}

// NewSQLiteLinkRepository returns the SQLite link store.
func NewSQLiteLinkRepository(db *SQLiteDB) LinkRepository {
	return &sqliteLinkRepository{db: db}
}

func (r *sqliteLinkRepository) Create(ctx context.Context, link *models.Link) error {
	query := `
		INSERT INTO links (slug, url, clicks, created_at, expires_at, password_hash)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	var expiresAt, passwordHash sql.NullString
	if link.ExpiresAt != nil {
		expiresAt = sql.NullString{String: formatTime(*link.ExpiresAt), Valid: true}
	}
	if link.PasswordHash != nil {
		passwordHash = sql.NullString{String: *link.PasswordHash, Valid: true}
	}

	_, err := r.db.DB.ExecContext(ctx, query,
		link.Slug,
		link.URL,
		link.Clicks,
		formatTime(link.CreatedAt),
		expiresAt,
		passwordHash,
	)
	if err != nil {
		if isSQLiteConstraint(err) {
			return ErrSlugExists
		}
		return fmt.Errorf("failed to create link: %w", err)
	}

	return nil
}

func (r *sqliteLinkRepository) GetBySlug(ctx context.Context, slug string) (*models.Link, error) {
	query := `
		SELECT slug, url, clicks, created_at, expires_at, password_hash
		FROM links
		WHERE slug = ?
	`

	var (
		link         models.Link
		createdAt    string
		expiresAt    sql.NullString
		passwordHash sql.NullString
	)

	err := r.db.DB.QueryRowContext(ctx, query, slug).Scan(
		&link.Slug,
		&link.URL,
		&link.Clicks,
		&createdAt,
		&expiresAt,
		&passwordHash,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrLinkNotFound
		}
		return nil, fmt.Errorf("failed to get link: %w", err)
	}

	if link.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if expiresAt.Valid {
		t, err := time.Parse(time.RFC3339Nano, expiresAt.String)
		if err != nil {
			return nil, fmt.Errorf("failed to parse expires_at: %w", err)
		}
		link.ExpiresAt = &t
	}
	if passwordHash.Valid {
		link.PasswordHash = &passwordHash.String
	}

	return &link, nil
}

func (r *sqliteLinkRepository) IncrementClicks(ctx context.Context, slug string) error {
	result, err := r.db.DB.ExecContext(ctx, `UPDATE links SET clicks = clicks + 1 WHERE slug = ?`, slug)
	if err != nil {
		return fmt.Errorf("failed to increment clicks: %w", err)
	}

	return requireAffected(result)
}

func (r *sqliteLinkRepository) Delete(ctx context.Context, slug string) error {
	result, err := r.db.DB.ExecContext(ctx, `DELETE FROM links WHERE slug = ?`, slug)
	if err != nil {
		return fmt.Errorf("failed to delete link: %w", err)
	}

	return requireAffected(result)
}

func (r *sqliteLinkRepository) Ping(ctx context.Context) error {
	return r.db.DB.PingContext(ctx)
}

func requireAffected(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return ErrLinkNotFound
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func isSQLiteConstraint(err error) bool {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	switch sqliteErr.Code() {
	case sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3.SQLITE_CONSTRAINT_UNIQUE:
		return true
	}
	return false
}
