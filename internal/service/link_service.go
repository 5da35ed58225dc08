package service

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/SergeiKhy/shortlink/internal/models"
	"github.com/SergeiKhy/shortlink/internal/repository"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const (
	// maxGenerateAttempts bounds retries when a generated slug collides.
	maxGenerateAttempts = 5
	// MaxExpiresIn is the largest accepted ExpiresIn, ten years in minutes.
	MaxExpiresIn = 10 * 365 * 24 * 60
)

// LinkService holds the business rules of the link lifecycle.
type LinkService interface {
	CreateLink(ctx context.Context, input *models.CreateLinkInput) (*models.ShortLink, error)
	ResolveAndTrack(ctx context.Context, slug, password string) (string, error)
	GetStats(ctx context.Context, slug string) (*models.LinkStats, error)
	DeleteLink(ctx context.Context, slug string) error
}

// Config carries the service settings. Zero SlugLength and BcryptCost select
// the defaults (6 and bcrypt.DefaultCost).
type Config struct {
	BaseURL    string
	SlugLength int
	BcryptCost int
}

// Option customizes a service built by NewLinkService.
type Option func(*linkService)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *linkService) {
		s.now = now
	}
}

// WithSlugGenerator replaces the random slug source.
func WithSlugGenerator(gen SlugGenerator) Option {
	return func(s *linkService) {
		s.generateSlug = gen
	}
}

type linkService struct {
	linkRepo     repository.LinkRepository
	logger       *zap.Logger
	baseURL      string
	bcryptCost   int
	generateSlug SlugGenerator
	now          func() time.Time
}

// NewLinkService builds the LinkService over linkRepo. A nil logger is replaced
// with a no-op logger.
func NewLinkService(linkRepo repository.LinkRepository, cfg Config, logger *zap.Logger, opts ...Option) LinkService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = bcrypt.DefaultCost
	}

	s := &linkService{
		linkRepo:     linkRepo,
		logger:       logger,
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		bcryptCost:   cfg.BcryptCost,
		generateSlug: NewSlugGenerator(cfg.SlugLength),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	return s
}

func (s *linkService) CreateLink(ctx context.Context, input *models.CreateLinkInput) (*models.ShortLink, error) {
	if input == nil {
		return nil, newError(KindValidation, "URL is required")
	}

	target := strings.TrimSpace(input.URL)
	if err := validateURL(target); err != nil {
		return nil, err
	}

	if input.ExpiresIn != nil && (*input.ExpiresIn < 0 || *input.ExpiresIn > MaxExpiresIn) {
		return nil, newError(KindValidation, "expires_in must be between 0 and 5256000 minutes")
	}

	var customSlug string
	if input.CustomSlug != nil {
		customSlug = NormalizeSlug(*input.CustomSlug)
		if customSlug != "" {
			if err := validateCustomSlug(customSlug); err != nil {
				return nil, err
			}
		}
	}

	now := s.now().UTC().Truncate(time.Microsecond)

	var expiresAt *time.Time
	switch {
	case input.ExpiresAt != nil:
		t := input.ExpiresAt.UTC().Truncate(time.Microsecond)
		expiresAt = &t
	case input.ExpiresIn != nil && *input.ExpiresIn > 0:
		t := now.Add(time.Duration(*input.ExpiresIn) * time.Minute)
		expiresAt = &t
	}

	var passwordHash *string
	if input.Password != nil && *input.Password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(*input.Password), s.bcryptCost)
		if err != nil {
			if errors.Is(err, bcrypt.ErrPasswordTooLong) {
				return nil, newError(KindValidation, "password must be at most 72 bytes")
			}
			return nil, internalError("failed to hash password", err)
		}
		h := string(hash)
		passwordHash = &h
	}

	link := &models.Link{
		URL:          target,
		Clicks:       0,
		CreatedAt:    now,
		ExpiresAt:    expiresAt,
		PasswordHash: passwordHash,
	}

	if customSlug != "" {
		link.Slug = customSlug
		if err := s.insert(ctx, link); err != nil {
			return nil, err
		}
	} else if err := s.insertGenerated(ctx, link); err != nil {
		return nil, err
	}

	s.logger.Info("Link created",
		zap.String("slug", link.Slug),
		zap.Bool("custom_slug", customSlug != ""),
		zap.Bool("protected", passwordHash != nil),
		zap.Bool("expires", expiresAt != nil),
	)

	return &models.ShortLink{
		Slug:      link.Slug,
		ShortURL:  s.baseURL + "/" + link.Slug,
		URL:       link.URL,
		ExpiresAt: link.ExpiresAt,
		CreatedAt: link.CreatedAt,
	}, nil
}

// insert relies on the store's uniqueness guarantee; no pre-check is made.
func (s *linkService) insert(ctx context.Context, link *models.Link) error {
	err := s.linkRepo.Create(ctx, link)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrSlugExists):
		return newError(KindConflict, "slug already in use")
	default:
		s.logger.Error("Failed to store link", zap.String("slug", link.Slug), zap.Error(err))
		return internalError("failed to store link", err)
	}
}

func (s *linkService) insertGenerated(ctx context.Context, link *models.Link) error {
	for attempt := 1; attempt <= maxGenerateAttempts; attempt++ {
		slug, err := s.generateSlug()
		if err != nil {
			return internalError("failed to generate slug", err)
		}
		if isReserved(slug) {
			continue
		}

		link.Slug = slug
		err = s.insert(ctx, link)
		if KindOf(err) != KindConflict {
			return err
		}

		s.logger.Debug("Generated slug collided",
			zap.String("slug", slug),
			zap.Int("attempt", attempt),
		)
	}

	return internalError("failed to generate a unique slug", nil)
}

func (s *linkService) ResolveAndTrack(ctx context.Context, slug, password string) (string, error) {
	link, err := s.find(ctx, slug)
	if err != nil {
		return "", err
	}

	if link.IsExpired(s.now()) {
		return "", newError(KindExpired, "this link has expired")
	}

	if link.IsProtected() {
		if password == "" {
			return "", newError(KindUnauthorized, "password required")
		}
		if err := bcrypt.CompareHashAndPassword([]byte(*link.PasswordHash), []byte(password)); err != nil {
			if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
				return "", newError(KindUnauthorized, "incorrect password")
			}
			return "", internalError("failed to verify password", err)
		}
	}

	if err := s.linkRepo.IncrementClicks(ctx, link.Slug); err != nil {
		if errors.Is(err, repository.ErrLinkNotFound) {
			return "", newError(KindNotFound, "link not found")
		}
		s.logger.Error("Failed to count click", zap.String("slug", link.Slug), zap.Error(err))
		return "", internalError("failed to count click", err)
	}

	return link.URL, nil
}

func (s *linkService) GetStats(ctx context.Context, slug string) (*models.LinkStats, error) {
	link, err := s.find(ctx, slug)
	if err != nil {
		return nil, err
	}

	return &models.LinkStats{
		Slug:      link.Slug,
		URL:       link.URL,
		Clicks:    link.Clicks,
		CreatedAt: link.CreatedAt,
	}, nil
}

func (s *linkService) DeleteLink(ctx context.Context, slug string) error {
	slug = NormalizeSlug(slug)
	if slug == "" {
		return newError(KindNotFound, "link not found")
	}

	if err := s.linkRepo.Delete(ctx, slug); err != nil {
		if errors.Is(err, repository.ErrLinkNotFound) {
			return newError(KindNotFound, "link not found")
		}
		s.logger.Error("Failed to delete link", zap.String("slug", slug), zap.Error(err))
		return internalError("failed to delete link", err)
	}

	s.logger.Info("Link deleted", zap.String("slug", slug))

	return nil
}

func (s *linkService) find(ctx context.Context, slug string) (*models.Link, error) {
	slug = NormalizeSlug(slug)
	if slug == "" {
		return nil, newError(KindNotFound, "link not found")
	}

	link, err := s.linkRepo.GetBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, repository.ErrLinkNotFound) {
			return nil, newError(KindNotFound, "link not found")
		}
		s.logger.Error("Failed to load link", zap.String("slug", slug), zap.Error(err))
		return nil, internalError("failed to load link", err)
	}

	return link, nil
}

// validateURL accepts absolute http(s) URLs with a host.
func validateURL(raw string) error {
	if raw == "" {
		return newError(KindValidation, "URL is required")
	}

	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return newError(KindValidation, "URL must be an absolute http or https URL")
	}

	return nil
}
