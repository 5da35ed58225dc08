package service_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/SergeiKhy/shortlink/internal/models"
	"github.com/SergeiKhy/shortlink/internal/service"
	"github.com/SergeiKhy/shortlink/internal/service/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testBaseURL = "https://sho.rt"

var fixedNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

// setupTestService builds a service over the in-memory repository with a fixed clock.
func setupTestService(opts ...service.Option) (service.LinkService, *mocks.MockLinkRepository) {
	linkRepo := mocks.NewMockLinkRepository()
	opts = append([]service.Option{service.WithClock(func() time.Time { return fixedNow })}, opts...)
	linkService := service.NewLinkService(linkRepo, service.Config{
		BaseURL:    testBaseURL + "/",
		SlugLength: 6,
		BcryptCost: bcrypt.MinCost,
	}, zap.NewNop(), opts...)
	return linkService, linkRepo
}

func strPtr(s string) *string { return &s }

func timePtr(t time.Time) *time.Time { return &t }

func intPtr(n int) *int { return &n }

func TestLinkService_CreateLink_Success(t *testing.T) {
	linkService, linkRepo := setupTestService()

	link, err := linkService.CreateLink(context.Background(), &models.CreateLinkInput{
		URL: "https://example.com/test",
	})

	require.NoError(t, err)
	assert.Len(t, link.Slug, 6)
	assert.Equal(t, strings.ToLower(link.Slug), link.Slug)
	assert.Equal(t, testBaseURL+"/"+link.Slug, link.ShortURL)
	assert.Equal(t, "https://example.com/test", link.URL)
	assert.Equal(t, fixedNow, link.CreatedAt)
	assert.Nil(t, link.ExpiresAt)
	assert.Equal(t, int64(0), linkRepo.Clicks(link.Slug))
}

func TestLinkService_CreateLink_CustomSlugIsNormalized(t *testing.T) {
	linkService, _ := setupTestService()
	ctx := context.Background()

	link, err := linkService.CreateLink(ctx, &models.CreateLinkInput{
		URL:        "https://example.com",
		CustomSlug: strPtr("  My-Link "),
	})
	require.NoError(t, err)
	assert.Equal(t, "my-link", link.Slug)
	assert.Equal(t, testBaseURL+"/my-link", link.ShortURL)

	target, err := linkService.ResolveAndTrack(ctx, "MY-LINK", "")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com", target)
}

func TestLinkService_CreateLink_BlankCustomSlugGenerates(t *testing.T) {
	linkService, _ := setupTestService()

	link, err := linkService.CreateLink(context.Background(), &models.CreateLinkInput{
		URL:        "https://example.com",
		CustomSlug: strPtr("   "),
	})

	require.NoError(t, err)
	assert.Len(t, link.Slug, 6)
}

func TestLinkService_CreateLink_DuplicateSlug(t *testing.T) {
	linkService, linkRepo := setupTestService()
	ctx := context.Background()

	_, err := linkService.CreateLink(ctx, &models.CreateLinkInput{URL: "https://example.com/1", CustomSlug: strPtr("abc")})
	require.NoError(t, err)

	link, err := linkService.CreateLink(ctx, &models.CreateLinkInput{URL: "https://example.com/2", CustomSlug: strPtr("ABC")})
	assert.Nil(t, link)
	assert.ErrorIs(t, err, service.ErrConflict)
	assert.Equal(t, 1, linkRepo.Len())

	target, err := linkService.ResolveAndTrack(ctx, "abc", "")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/1", target)
}

func TestLinkService_CreateLink_ConcurrentSameSlug(t *testing.T) {
	linkService, linkRepo := setupTestService()
	ctx := context.Background()

	const workers = 20
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		conflicts int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			_, err := linkService.CreateLink(ctx, &models.CreateLinkInput{
				URL:        fmt.Sprintf("https://example.com/%d", id),
				CustomSlug: strPtr("race"),
			})
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				succeeded++
			} else if errors.Is(err, service.ErrConflict) {
				conflicts++
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, workers-1, conflicts)
	assert.Equal(t, 1, linkRepo.Len())
}

func TestLinkService_CreateLink_InvalidInput(t *testing.T) {
	tests := []struct {
		name  string
		input *models.CreateLinkInput
	}{
		{"nil input", nil},
		{"empty url", &models.CreateLinkInput{URL: ""}},
		{"blank url", &models.CreateLinkInput{URL: "   "}},
		{"no scheme", &models.CreateLinkInput{URL: "example.com"}},
		{"unsupported scheme", &models.CreateLinkInput{URL: "ftp://example.com"}},
		{"no host", &models.CreateLinkInput{URL: "https://"}},
		{"slug too short", &models.CreateLinkInput{URL: "https://example.com", CustomSlug: strPtr("ab")}},
		{"slug too long", &models.CreateLinkInput{URL: "https://example.com", CustomSlug: strPtr(strings.Repeat("a", 33))}},
		{"slug bad chars", &models.CreateLinkInput{URL: "https://example.com", CustomSlug: strPtr("bad/slug")}},
		{"reserved slug", &models.CreateLinkInput{URL: "https://example.com", CustomSlug: strPtr("API")}},
		{"password too long", &models.CreateLinkInput{URL: "https://example.com", Password: strPtr(strings.Repeat("p", 73))}},
		{"negative expires_in", &models.CreateLinkInput{URL: "https://example.com", ExpiresIn: intPtr(-1)}},
		{"expires_in above max", &models.CreateLinkInput{URL: "https://example.com", ExpiresIn: intPtr(service.MaxExpiresIn + 1)}},
		{"expires_in overflowing duration", &models.CreateLinkInput{URL: "https://example.com", ExpiresIn: intPtr(200000000)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			linkService, linkRepo := setupTestService()

			link, err := linkService.CreateLink(context.Background(), tt.input)

			assert.Nil(t, link)
			assert.ErrorIs(t, err, service.ErrValidation)
			assert.Equal(t, service.KindValidation, service.KindOf(err))
			assert.Zero(t, linkRepo.Len())
		})
	}
}

func TestLinkService_CreateLink_WithExpiration(t *testing.T) {
	linkService, _ := setupTestService()
	ctx := context.Background()

	expiresAt := fixedNow.Add(time.Hour)
	link, err := linkService.CreateLink(ctx, &models.CreateLinkInput{
		URL:       "https://example.com",
		ExpiresAt: &expiresAt,
	})
	require.NoError(t, err)
	require.NotNil(t, link.ExpiresAt)
	assert.True(t, expiresAt.Equal(*link.ExpiresAt))

	expiresIn := 90
	link, err = linkService.CreateLink(ctx, &models.CreateLinkInput{
		URL:       "https://example.com",
		ExpiresIn: &expiresIn,
	})
	require.NoError(t, err)
	require.NotNil(t, link.ExpiresAt)
	assert.Equal(t, fixedNow.Add(90*time.Minute), *link.ExpiresAt)
}

func TestLinkService_CreateLink_ExpiresInUpperBound(t *testing.T) {
	linkService, _ := setupTestService()
	ctx := context.Background()

	link, err := linkService.CreateLink(ctx, &models.CreateLinkInput{
		URL:        "https://example.com",
		CustomSlug: strPtr("longlived"),
		ExpiresIn:  intPtr(service.MaxExpiresIn),
	})
	require.NoError(t, err)
	require.NotNil(t, link.ExpiresAt)
	assert.Equal(t, fixedNow.Add(service.MaxExpiresIn*time.Minute), *link.ExpiresAt)
	assert.True(t, link.ExpiresAt.After(fixedNow))

	target, err := linkService.ResolveAndTrack(ctx, "longlived", "")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com", target)

	zero, err := linkService.CreateLink(ctx, &models.CreateLinkInput{
		URL:       "https://example.com",
		ExpiresIn: intPtr(0),
	})
	require.NoError(t, err)
	assert.Nil(t, zero.ExpiresAt)
}

func TestLinkService_CreateLink_PasswordIsHashed(t *testing.T) {
	linkService, linkRepo := setupTestService()
	ctx := context.Background()

	link, err := linkService.CreateLink(ctx, &models.CreateLinkInput{
		URL:        "https://example.com",
		CustomSlug: strPtr("secret"),
		Password:   strPtr("hunter2"),
	})
	require.NoError(t, err)

	stored, err := linkRepo.GetBySlug(ctx, link.Slug)
	require.NoError(t, err)
	require.NotNil(t, stored.PasswordHash)
	assert.NotEqual(t, "hunter2", *stored.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(*stored.PasswordHash), []byte("hunter2")))

	plain, err := linkService.CreateLink(ctx, &models.CreateLinkInput{
		URL:      "https://example.com",
		Password: strPtr(""),
	})
	require.NoError(t, err)
	stored, err = linkRepo.GetBySlug(ctx, plain.Slug)
	require.NoError(t, err)
	assert.Nil(t, stored.PasswordHash)
}

func TestLinkService_CreateLink_RetriesGeneratedCollision(t *testing.T) {
	candidates := []string{"taken1", "api", "fresh1"}
	var calls int
	gen := func() (string, error) {
		slug := candidates[calls]
		calls++
		return slug, nil
	}

	linkService, linkRepo := setupTestService(service.WithSlugGenerator(gen))
	linkRepo.Put(&models.Link{Slug: "taken1", URL: "https://other.example", CreatedAt: fixedNow})

	link, err := linkService.CreateLink(context.Background(), &models.CreateLinkInput{URL: "https://example.com"})

	require.NoError(t, err)
	assert.Equal(t, "fresh1", link.Slug)
	assert.Equal(t, 3, calls)
}

func TestLinkService_CreateLink_GeneratorExhausted(t *testing.T) {
	gen := func() (string, error) { return "taken1", nil }

	linkService, linkRepo := setupTestService(service.WithSlugGenerator(gen))
	linkRepo.Put(&models.Link{Slug: "taken1", URL: "https://other.example", CreatedAt: fixedNow})

	_, err := linkService.CreateLink(context.Background(), &models.CreateLinkInput{URL: "https://example.com"})

	assert.ErrorIs(t, err, service.ErrInternal)
}

func TestLinkService_ResolveAndTrack_CountsClicks(t *testing.T) {
	linkService, linkRepo := setupTestService()
	ctx := context.Background()

	link, err := linkService.CreateLink(ctx, &models.CreateLinkInput{URL: "https://example.com/page"})
	require.NoError(t, err)

	for i := 1; i <= 3; i++ {
		target, err := linkService.ResolveAndTrack(ctx, link.Slug, "")
		require.NoError(t, err)
		assert.Equal(t, "https://example.com/page", target)
		assert.Equal(t, int64(i), linkRepo.Clicks(link.Slug))
	}
}

func TestLinkService_ResolveAndTrack_NotFound(t *testing.T) {
	linkService, _ := setupTestService()

	for _, slug := range []string{"nonexistent", "", "  "} {
		target, err := linkService.ResolveAndTrack(context.Background(), slug, "")
		assert.Empty(t, target)
		assert.ErrorIs(t, err, service.ErrNotFound)
	}
}

func TestLinkService_ResolveAndTrack_Expired(t *testing.T) {
	linkService, linkRepo := setupTestService()
	ctx := context.Background()

	link, err := linkService.CreateLink(ctx, &models.CreateLinkInput{
		URL:       "https://example.com",
		ExpiresAt: timePtr(fixedNow.Add(-time.Second)),
	})
	require.NoError(t, err)

	target, err := linkService.ResolveAndTrack(ctx, link.Slug, "")
	assert.Empty(t, target)
	assert.ErrorIs(t, err, service.ErrExpired)
	assert.Equal(t, int64(0), linkRepo.Clicks(link.Slug))
}

func TestLinkService_ResolveAndTrack_ExpiryIsStrict(t *testing.T) {
	linkService, _ := setupTestService()
	ctx := context.Background()

	link, err := linkService.CreateLink(ctx, &models.CreateLinkInput{
		URL:       "https://example.com",
		ExpiresAt: timePtr(fixedNow),
	})
	require.NoError(t, err)

	_, err = linkService.ResolveAndTrack(ctx, link.Slug, "")
	assert.NoError(t, err)
}

func TestLinkService_ResolveAndTrack_Password(t *testing.T) {
	linkService, linkRepo := setupTestService()
	ctx := context.Background()

	link, err := linkService.CreateLink(ctx, &models.CreateLinkInput{
		URL:      "https://example.com/private",
		Password: strPtr("hunter2"),
	})
	require.NoError(t, err)

	_, err = linkService.ResolveAndTrack(ctx, link.Slug, "")
	assert.ErrorIs(t, err, service.ErrUnauthorized)

	_, err = linkService.ResolveAndTrack(ctx, link.Slug, "wrong")
	assert.ErrorIs(t, err, service.ErrUnauthorized)
	assert.Equal(t, int64(0), linkRepo.Clicks(link.Slug))

	target, err := linkService.ResolveAndTrack(ctx, link.Slug, "hunter2")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/private", target)
	assert.Equal(t, int64(1), linkRepo.Clicks(link.Slug))
}

func TestLinkService_ResolveAndTrack_ExpiredBeatsPassword(t *testing.T) {
	linkService, _ := setupTestService()
	ctx := context.Background()

	link, err := linkService.CreateLink(ctx, &models.CreateLinkInput{
		URL:       "https://example.com",
		Password:  strPtr("hunter2"),
		ExpiresAt: timePtr(fixedNow.Add(-time.Minute)),
	})
	require.NoError(t, err)

	_, err = linkService.ResolveAndTrack(ctx, link.Slug, "hunter2")
	assert.ErrorIs(t, err, service.ErrExpired)
}

func TestLinkService_ResolveAndTrack_ConcurrentClicks(t *testing.T) {
	linkService, linkRepo := setupTestService()
	ctx := context.Background()

	link, err := linkService.CreateLink(ctx, &models.CreateLinkInput{URL: "https://example.com"})
	require.NoError(t, err)

	const n = 100
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := linkService.ResolveAndTrack(ctx, link.Slug, "")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(n), linkRepo.Clicks(link.Slug))
}

func TestLinkService_GetStats(t *testing.T) {
	linkService, _ := setupTestService()
	ctx := context.Background()

	link, err := linkService.CreateLink(ctx, &models.CreateLinkInput{URL: "https://example.com", CustomSlug: strPtr("stats")})
	require.NoError(t, err)
	_, err = linkService.ResolveAndTrack(ctx, link.Slug, "")
	require.NoError(t, err)

	stats, err := linkService.GetStats(ctx, "STATS")
	require.NoError(t, err)
	assert.Equal(t, &models.LinkStats{
		Slug:      "stats",
		URL:       "https://example.com",
		Clicks:    1,
		CreatedAt: fixedNow,
	}, stats)

	// Reading stats never counts as a click.
	stats, err = linkService.GetStats(ctx, "stats")
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Clicks)
}

func TestLinkService_GetStats_ExpiredLink(t *testing.T) {
	linkService, _ := setupTestService()
	ctx := context.Background()

	link, err := linkService.CreateLink(ctx, &models.CreateLinkInput{
		URL:       "https://example.com",
		ExpiresAt: timePtr(fixedNow.Add(-24 * time.Hour)),
	})
	require.NoError(t, err)

	stats, err := linkService.GetStats(ctx, link.Slug)
	require.NoError(t, err)
	assert.Equal(t, link.Slug, stats.Slug)
	assert.Equal(t, int64(0), stats.Clicks)
}

func TestLinkService_GetStats_NotFound(t *testing.T) {
	linkService, _ := setupTestService()

	stats, err := linkService.GetStats(context.Background(), "nonexistent")
	assert.Nil(t, stats)
	assert.ErrorIs(t, err, service.ErrNotFound)
}

func TestLinkService_DeleteLink(t *testing.T) {
	linkService, linkRepo := setupTestService()
	ctx := context.Background()

	link, err := linkService.CreateLink(ctx, &models.CreateLinkInput{URL: "https://example.com"})
	require.NoError(t, err)

	require.NoError(t, linkService.DeleteLink(ctx, link.Slug))
	assert.Zero(t, linkRepo.Len())

	_, err = linkService.GetStats(ctx, link.Slug)
	assert.ErrorIs(t, err, service.ErrNotFound)
}

func TestLinkService_DeleteLink_NotFound(t *testing.T) {
	linkService, linkRepo := setupTestService()
	ctx := context.Background()

	_, err := linkService.CreateLink(ctx, &models.CreateLinkInput{URL: "https://example.com"})
	require.NoError(t, err)

	err = linkService.DeleteLink(ctx, "nonexistent")
	assert.ErrorIs(t, err, service.ErrNotFound)
	assert.Equal(t, 1, linkRepo.Len())
}

func TestLinkService_StoreFailureIsInternal(t *testing.T) {
	linkService, linkRepo := setupTestService()
	ctx := context.Background()

	link, err := linkService.CreateLink(ctx, &models.CreateLinkInput{URL: "https://example.com"})
	require.NoError(t, err)

	storeErr := errors.New("connection refused")
	linkRepo.Err = storeErr

	_, err = linkService.CreateLink(ctx, &models.CreateLinkInput{URL: "https://example.com"})
	assert.ErrorIs(t, err, service.ErrInternal)
	assert.ErrorIs(t, err, storeErr)

	_, err = linkService.ResolveAndTrack(ctx, link.Slug, "")
	assert.Equal(t, service.KindInternal, service.KindOf(err))

	_, err = linkService.GetStats(ctx, link.Slug)
	assert.Equal(t, service.KindInternal, service.KindOf(err))

	err = linkService.DeleteLink(ctx, link.Slug)
	assert.Equal(t, service.KindInternal, service.KindOf(err))
}

// TestLinkService_Lifecycle walks create -> redirect -> delete -> redirect.
func TestLinkService_Lifecycle(t *testing.T) {
	linkService, linkRepo := setupTestService()
	ctx := context.Background()

	link, err := linkService.CreateLink(ctx, &models.CreateLinkInput{
		URL:        "https://example.com",
		CustomSlug: strPtr("abc"),
	})
	require.NoError(t, err)
	assert.Equal(t, testBaseURL+"/abc", link.ShortURL)

	target, err := linkService.ResolveAndTrack(ctx, "abc", "")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com", target)
	assert.Equal(t, int64(1), linkRepo.Clicks("abc"))

	require.NoError(t, linkService.DeleteLink(ctx, "abc"))

	_, err = linkService.ResolveAndTrack(ctx, "abc", "")
	assert.ErrorIs(t, err, service.ErrNotFound)
}

func TestLinkService_GeneratedSlugsAreUnique(t *testing.T) {
	linkService, _ := setupTestService()
	ctx := context.Background()

	seen := make(map[string]bool)
	for i := 0; i < 200; i++ {
		link, err := linkService.CreateLink(ctx, &models.CreateLinkInput{
			URL: fmt.Sprintf("https://example.com/%d", i),
		})
		require.NoError(t, err)
		assert.Regexp(t, `^[0-9a-z_-]{6}$`, link.Slug)
		assert.False(t, seen[link.Slug])
		seen[link.Slug] = true
	}
}
