package mocks

import (
	"context"
	"sync"

	"github.com/SergeiKhy/shortlink/internal/models"
	"github.com/SergeiKhy/shortlink/internal/repository"
)

// MockLinkRepository implements repository.LinkRepository in memory for testing.
// Setting Err makes every call fail with it.
type MockLinkRepository struct {
	mu    sync.RWMutex
	links map[string]*models.Link
	Err   error
}

// NewMockLinkRepository returns an empty repository.
func NewMockLinkRepository() *MockLinkRepository {
	return &MockLinkRepository{
		links: make(map[string]*models.Link),
	}
}

func (m *MockLinkRepository) Create(ctx context.Context, link *models.Link) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return m.Err
	}
	if _, exists := m.links[link.Slug]; exists {
		return repository.ErrSlugExists
	}

	stored := *link
	m.links[link.Slug] = &stored
	return nil
}

func (m *MockLinkRepository) GetBySlug(ctx context.Context, slug string) (*models.Link, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.Err != nil {
		return nil, m.Err
	}
	link, exists := m.links[slug]
	if !exists {
		return nil, repository.ErrLinkNotFound
	}

	out := *link
	return &out, nil
}

func (m *MockLinkRepository) IncrementClicks(ctx context.Context, slug string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return m.Err
	}
	link, exists := m.links[slug]
	if !exists {
		return repository.ErrLinkNotFound
	}
	link.Clicks++
	return nil
}

func (m *MockLinkRepository) Delete(ctx context.Context, slug string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return m.Err
	}
	if _, exists := m.links[slug]; !exists {
		return repository.ErrLinkNotFound
	}
	delete(m.links, slug)
	return nil
}

func (m *MockLinkRepository) Ping(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.Err
}

// Put stores a link directly, bypassing uniqueness checks.
func (m *MockLinkRepository) Put(link *models.Link) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := *link
	m.links[link.Slug] = &stored
}

// Clicks returns the stored click count for slug, or -1 if absent.
func (m *MockLinkRepository) Clicks(slug string) int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	link, exists := m.links[slug]
	if !exists {
		return -1
	}
	return link.Clicks
}

// Len returns the number of stored links.
func (m *MockLinkRepository) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.links)
}
