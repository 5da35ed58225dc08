package repository_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/SergeiKhy/shortlink/internal/models"
	"github.com/SergeiKhy/shortlink/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testLinkRepository runs the behaviour every LinkRepository must share.
// newRepo must return an empty store.
func testLinkRepository(t *testing.T, newRepo func(t *testing.T) repository.LinkRepository) {
	created := time.Date(2025, 3, 1, 12, 0, 0, 123000, time.UTC)

	t.Run("create and get", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		expires := created.Add(time.Hour)
		hash := "$2a$04$abcdefghijklmnopqrstuv"
		link := &models.Link{
			Slug:         "full",
			URL:          "https://example.com/full",
			CreatedAt:    created,
			ExpiresAt:    &expires,
			PasswordHash: &hash,
		}
		require.NoError(t, repo.Create(ctx, link))

		got, err := repo.GetBySlug(ctx, "full")
		require.NoError(t, err)
		assert.Equal(t, "full", got.Slug)
		assert.Equal(t, "https://example.com/full", got.URL)
		assert.Equal(t, int64(0), got.Clicks)
		assert.True(t, created.Equal(got.CreatedAt), "created_at %v != %v", got.CreatedAt, created)
		require.NotNil(t, got.ExpiresAt)
		assert.True(t, expires.Equal(*got.ExpiresAt))
		require.NotNil(t, got.PasswordHash)
		assert.Equal(t, hash, *got.PasswordHash)
	})

	t.Run("optional fields stay nil", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		require.NoError(t, repo.Create(ctx, &models.Link{Slug: "bare", URL: "https://example.com", CreatedAt: created}))

		got, err := repo.GetBySlug(ctx, "bare")
		require.NoError(t, err)
		assert.Nil(t, got.ExpiresAt)
		assert.Nil(t, got.PasswordHash)
	})

	t.Run("duplicate slug", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		require.NoError(t, repo.Create(ctx, &models.Link{Slug: "dup", URL: "https://example.com/1", CreatedAt: created}))
		err := repo.Create(ctx, &models.Link{Slug: "dup", URL: "https://example.com/2", CreatedAt: created})
		assert.ErrorIs(t, err, repository.ErrSlugExists)

		got, err := repo.GetBySlug(ctx, "dup")
		require.NoError(t, err)
		assert.Equal(t, "https://example.com/1", got.URL)
	})

	t.Run("concurrent creates with one slug", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		const workers = 10
		var (
			wg        sync.WaitGroup
			mu        sync.Mutex
			succeeded int
		)
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				err := repo.Create(ctx, &models.Link{Slug: "race", URL: "https://example.com", CreatedAt: created})
				if err == nil {
					mu.Lock()
					succeeded++
					mu.Unlock()
					return
				}
				assert.True(t, errors.Is(err, repository.ErrSlugExists), "unexpected error: %v", err)
			}()
		}
		wg.Wait()

		assert.Equal(t, 1, succeeded)
	})

	t.Run("not found", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		_, err := repo.GetBySlug(ctx, "missing")
		assert.ErrorIs(t, err, repository.ErrLinkNotFound)
		assert.ErrorIs(t, repo.IncrementClicks(ctx, "missing"), repository.ErrLinkNotFound)
		assert.ErrorIs(t, repo.Delete(ctx, "missing"), repository.ErrLinkNotFound)

		_, err = repo.GetBySlug(ctx, "missing")
		assert.ErrorIs(t, err, repository.ErrLinkNotFound, "increment must not create a link")
	})

	t.Run("concurrent increments", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		require.NoError(t, repo.Create(ctx, &models.Link{Slug: "hot", URL: "https://example.com", CreatedAt: created}))

		const n = 50
		var wg sync.WaitGroup
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				assert.NoError(t, repo.IncrementClicks(ctx, "hot"))
			}()
		}
		wg.Wait()

		got, err := repo.GetBySlug(ctx, "hot")
		require.NoError(t, err)
		assert.Equal(t, int64(n), got.Clicks)
	})

	t.Run("delete", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		require.NoError(t, repo.Create(ctx, &models.Link{Slug: "gone", URL: "https://example.com", CreatedAt: created}))
		require.NoError(t, repo.Delete(ctx, "gone"))

		_, err := repo.GetBySlug(ctx, "gone")
		assert.ErrorIs(t, err, repository.ErrLinkNotFound)
		assert.ErrorIs(t, repo.Delete(ctx, "gone"), repository.ErrLinkNotFound)
	})

	t.Run("ping", func(t *testing.T) {
		assert.NoError(t, newRepo(t).Ping(context.Background()))
	})
}
