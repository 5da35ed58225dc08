package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/SergeiKhy/shortlink/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrLinkNotFound = errors.New("link not found")
	ErrSlugExists   = errors.New("slug already exists")
)

// pgUniqueViolation is the SQLSTATE for unique_violation.
const pgUniqueViolation = "23505"

// LinkRepository is the persistent keyed table of links. Implementations must
// reject duplicate slugs with ErrSlugExists and increment clicks atomically.
type LinkRepository interface {
	Create(ctx context.Context, link *models.Link) error
	GetBySlug(ctx context.Context, slug string) (*models.Link, error)
	IncrementClicks(ctx context.Context, slug string) error
	Delete(ctx context.Context, slug string) error
	Ping(ctx context.Context) error
}

type linkRepository struct {
	db *PostgresDB
}

// NewLinkRepository returns the Postgres link store.
func NewLinkRepository(db *PostgresDB) LinkRepository {
	return &linkRepository{db: db}
}

func (r *linkRepository) Create(ctx context.Context, link *models.Link) error {
	query := `
		INSERT INTO links (slug, url, clicks, created_at, expires_at, password_hash)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.db.Pool.Exec(
		ctx,
		query,
		link.Slug,
		link.URL,
		link.Clicks,
		link.CreatedAt,
		link.ExpiresAt,
		link.PasswordHash,
	)

	if err != nil {
		if isUniqueViolation(err) {
			return ErrSlugExists
		}
		return fmt.Errorf("failed to create link: %w", err)
	}

	return nil
}

func (r *linkRepository) GetBySlug(ctx context.Context, slug string) (*models.Link, error) {
	query := `
		SELECT slug, url, clicks, created_at, expires_at, password_hash
		FROM links
		WHERE slug = $1
	`

	link := &models.Link{}
	err := r.db.Pool.QueryRow(ctx, query, slug).Scan(
		&link.Slug,
		&link.URL,
		&link.Clicks,
		&link.CreatedAt,
		&link.ExpiresAt,
		&link.PasswordHash,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrLinkNotFound
		}
		return nil, fmt.Errorf("failed to get link: %w", err)
	}

	return link, nil
}

func (r *linkRepository) IncrementClicks(ctx context.Context, slug string) error {
	query := `UPDATE links SET clicks = clicks + 1 WHERE slug = $1`

	result, err := r.db.Pool.Exec(ctx, query, slug)
	if err != nil {
		return fmt.Errorf("failed to increment clicks: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrLinkNotFound
	}

	return nil
}

func (r *linkRepository) Delete(ctx context.Context, slug string) error {
	query := `DELETE FROM links WHERE slug = $1`

	result, err := r.db.Pool.Exec(ctx, query, slug)
	if err != nil {
		return fmt.Errorf("failed to delete link: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrLinkNotFound
	}

	return nil
}

func (r *linkRepository) Ping(ctx context.Context) error {
	return r.db.Pool.Ping(ctx)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}
