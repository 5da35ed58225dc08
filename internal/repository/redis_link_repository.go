package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/SergeiKhy/shortlink/internal/models"
	"github.com/redis/go-redis/v9"
)

// Each link is a hash at link:{slug}. Keys carry no TTL: expired links must stay
// readable for stats.
const (
	fieldURL          = "url"
	fieldClicks       = "clicks"
	fieldCreatedAt    = "created_at"
	fieldExpiresAt    = "expires_at"
	fieldPasswordHash = "password_hash"
)

// createScript writes the hash only if the key is absent.
var createScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
	return 0
end
redis.call('HSET', KEYS[1], unpack(ARGV))
return 1
`)

// incrementScript bumps clicks only on an existing link, so a deleted slug is not recreated.
var incrementScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
	return -1
end
return redis.call('HINCRBY', KEYS[1], 'clicks', 1)
`)

type redisLinkRepository struct {
	redis *RedisDB
}

// NewRedisLinkRepository stores links as Redis hashes.
func NewRedisLinkRepository(redis *RedisDB) LinkRepository {
	return &redisLinkRepository{redis: redis}
}

func (r *redisLinkRepository) Create(ctx context.Context, link *models.Link) error {
	args := []interface{}{
		fieldURL, link.URL,
		fieldClicks, link.Clicks,
		fieldCreatedAt, link.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
	if link.ExpiresAt != nil {
		args = append(args, fieldExpiresAt, link.ExpiresAt.UTC().Format(time.RFC3339Nano))
	}
	if link.PasswordHash != nil {
		args = append(args, fieldPasswordHash, *link.PasswordHash)
	}

	created, err := createScript.Run(ctx, r.redis.Client, []string{r.key(link.Slug)}, args...).Int()
	if err != nil {
		return fmt.Errorf("failed to create link: %w", err)
	}
	if created == 0 {
		return ErrSlugExists
	}

	return nil
}

func (r *redisLinkRepository) GetBySlug(ctx context.Context, slug string) (*models.Link, error) {
	fields, err := r.redis.Client.HGetAll(ctx, r.key(slug)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get link: %w", err)
	}
	if len(fields) == 0 {
		return nil, ErrLinkNotFound
	}

	link, err := decodeLink(slug, fields)
	if err != nil {
		return nil, fmt.Errorf("failed to decode link %q: %w", slug, err)
	}

	return link, nil
}

func (r *redisLinkRepository) IncrementClicks(ctx context.Context, slug string) error {
	clicks, err := incrementScript.Run(ctx, r.redis.Client, []string{r.key(slug)}).Int64()
	if err != nil {
		return fmt.Errorf("failed to increment clicks: %w", err)
	}
	if clicks < 0 {
		return ErrLinkNotFound
	}

	return nil
}

func (r *redisLinkRepository) Delete(ctx context.Context, slug string) error {
	removed, err := r.redis.Client.Del(ctx, r.key(slug)).Result()
	if err != nil {
		return fmt.Errorf("failed to delete link: %w", err)
	}
	if removed == 0 {
		return ErrLinkNotFound
	}

	return nil
}

func (r *redisLinkRepository) Ping(ctx context.Context) error {
	return r.redis.Client.Ping(ctx).Err()
}

func (r *redisLinkRepository) key(slug string) string {
	return "link:" + slug
}

func decodeLink(slug string, fields map[string]string) (*models.Link, error) {
	url, ok := fields[fieldURL]
	if !ok {
		return nil, errors.New("missing url field")
	}

	link := &models.Link{Slug: slug, URL: url}

	clicks, err := strconv.ParseInt(fields[fieldClicks], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse clicks: %w", err)
	}
	link.Clicks = clicks

	link.CreatedAt, err = time.Parse(time.RFC3339Nano, fields[fieldCreatedAt])
	if err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}

	if raw, ok := fields[fieldExpiresAt]; ok {
		expiresAt, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return nil, fmt.Errorf("parse expires_at: %w", err)
		}
		link.ExpiresAt = &expiresAt
	}

	if hash, ok := fields[fieldPasswordHash]; ok {
		link.PasswordHash = &hash
	}

	return link, nil
}
