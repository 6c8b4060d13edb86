package services

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/prefeitura-rio/app-credentialing/internal/models"
	"github.com/prefeitura-rio/app-credentialing/internal/observability"
)

// ProviderFilter narrows a provider listing; zero values match everything
type ProviderFilter struct {
	Status       models.ProviderStatus
	IntakeSource models.IntakeSource
	PSVStatus    models.OverallPSVStatus
	Search       string
	// PerPage 0 returns every match
	Page    int
	PerPage int
}

func (f ProviderFilter) offset() int {
	if f.PerPage <= 0 || f.Page <= 1 {
		return 0
	}
	return (f.Page - 1) * f.PerPage
}

// ProviderStore persists providers with optimistic versioning.
// Implementations hand out copies: callers never share state with the store.
type ProviderStore interface {
	Get(ctx context.Context, id string) (*models.Provider, error)
	Create(ctx context.Context, p *models.Provider) (*models.Provider, error)
	// Save replaces the stored provider when its version equals p.Version and
	// returns the stored copy with the incremented version
	Save(ctx context.Context, p *models.Provider) (*models.Provider, error)
	List(ctx context.Context, filter ProviderFilter) ([]*models.Provider, int64, error)
	Ping(ctx context.Context) error
}

// MemoryProviderStore keeps providers in process memory
type MemoryProviderStore struct {
	mu        sync.RWMutex
	providers map[string]*models.Provider
}

// NewMemoryProviderStore creates an empty in-memory store
func NewMemoryProviderStore() *MemoryProviderStore {
	return &MemoryProviderStore{providers: make(map[string]*models.Provider)}
}

// Get returns a copy of the provider
func (s *MemoryProviderStore) Get(_ context.Context, id string) (*models.Provider, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.providers[id]
	if !ok {
		return nil, models.ErrProviderNotFound
	}
	return p.Clone(), nil
}

// Create stores a new provider at version 1
func (s *MemoryProviderStore) Create(_ context.Context, p *models.Provider) (*models.Provider, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.providers[p.ID]; exists {
		observability.DatabaseOperations.WithLabelValues("create", "duplicate").Inc()
		return nil, models.ErrProviderExists
	}
	stored := p.Clone()
	stored.Version = 1
	s.providers[p.ID] = stored
	observability.DatabaseOperations.WithLabelValues("create", "success").Inc()
	return stored.Clone(), nil
}

// Save replaces the provider when versions match
func (s *MemoryProviderStore) Save(_ context.Context, p *models.Provider) (*models.Provider, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.providers[p.ID]
	if !ok {
		return nil, models.ErrProviderNotFound
	}
	if current.Version != p.Version {
		observability.StoreConflicts.WithLabelValues("detected").Inc()
		return nil, &models.ConflictError{
			Resource: "providers",
			ID:       p.ID,
			Expected: p.Version,
			Actual:   current.Version,
		}
	}

	stored := p.Clone()
	stored.Version = current.Version + 1
	stored.CreatedAt = current.CreatedAt
	s.providers[p.ID] = stored
	observability.DatabaseOperations.WithLabelValues("save", "success").Inc()
	return stored.Clone(), nil
}

// List returns matching providers, most recently updated first
func (s *MemoryProviderStore) List(_ context.Context, filter ProviderFilter) ([]*models.Provider, int64, error) {
	s.mu.RLock()
	matches := make([]*models.Provider, 0, len(s.providers))
	for _, p := range s.providers {
		if matchesFilter(p, filter) {
			matches = append(matches, p.Clone())
		}
	}
	s.mu.RUnlock()

	sort.Slice(matches, func(i, j int) bool {
		if !matches[i].UpdatedAt.Equal(matches[j].UpdatedAt) {
			return matches[i].UpdatedAt.After(matches[j].UpdatedAt)
		}
		return matches[i].ID < matches[j].ID
	})

	total := int64(len(matches))
	if filter.PerPage <= 0 {
		return matches, total, nil
	}
	start := filter.offset()
	if start >= len(matches) {
		return []*models.Provider{}, total, nil
	}
	end := start + filter.PerPage
	if end > len(matches) {
		end = len(matches)
	}
	return matches[start:end], total, nil
}

// Ping always succeeds
func (s *MemoryProviderStore) Ping(context.Context) error {
	return nil
}

func matchesFilter(p *models.Provider, f ProviderFilter) bool {
	if f.Status != "" && p.Status != f.Status {
		return false
	}
	if f.IntakeSource != "" && p.IntakeSource != f.IntakeSource {
		return false
	}
	if f.PSVStatus != "" && p.PSVStatus.OverallStatus != f.PSVStatus {
		return false
	}
	if q := strings.ToLower(strings.TrimSpace(f.Search)); q != "" {
		fields := []string{p.Name, p.FirstName, p.LastName, p.NPI, p.Credentials.NPI, p.Contact.Email}
		for _, field := range fields {
			if strings.Contains(strings.ToLower(field), q) {
				return true
			}
		}
		return false
	}
	return true
}
