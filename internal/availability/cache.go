package availability

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
)

// CachedRepository is a read-through cache over a SettingsRepository for
// the two lookups a date-range scan repeats for every date: the provider's
// profile and the service. Entries expire after a TTL; profile writes
// invalidate eagerly. Day-scoped constraint reads (blocked periods,
// bookings) deliberately stay uncached so the engine always sees fresh
// conflict data.
type CachedRepository struct {
	SettingsRepository

	ttl      time.Duration
	profiles *lru.Cache[uuid.UUID, cacheEntry[*Profile]]
	services *lru.Cache[uuid.UUID, cacheEntry[*Service]]
}

type cacheEntry[T any] struct {
	value     T
	fetchedAt time.Time
}

func NewCachedRepository(repo SettingsRepository, size int, ttl time.Duration) (*CachedRepository, error) {
	profiles, err := lru.New[uuid.UUID, cacheEntry[*Profile]](size)
	if err != nil {
		return nil, fmt.Errorf("init profile cache: %w", err)
	}
	services, err := lru.New[uuid.UUID, cacheEntry[*Service]](size)
	if err != nil {
		return nil, fmt.Errorf("init service cache: %w", err)
	}
	return &CachedRepository{
		SettingsRepository: repo,
		ttl:                ttl,
		profiles:           profiles,
		services:           services,
	}, nil
}

func (c *CachedRepository) GetProfile(ctx context.Context, providerID uuid.UUID) (*Profile, error) {
	if entry, ok := c.profiles.Get(providerID); ok && time.Since(entry.fetchedAt) < c.ttl {
		return entry.value, nil
	}

	p, err := c.SettingsRepository.GetProfile(ctx, providerID)
	if err != nil {
		return nil, err
	}
	c.profiles.Add(providerID, cacheEntry[*Profile]{value: p, fetchedAt: time.Now()})
	return p, nil
}

func (c *CachedRepository) GetService(ctx context.Context, serviceID uuid.UUID) (*Service, error) {
	if entry, ok := c.services.Get(serviceID); ok && time.Since(entry.fetchedAt) < c.ttl {
		return entry.value, nil
	}

	s, err := c.SettingsRepository.GetService(ctx, serviceID)
	if err != nil {
		return nil, err
	}
	c.services.Add(serviceID, cacheEntry[*Service]{value: s, fetchedAt: time.Now()})
	return s, nil
}

func (c *CachedRepository) UpsertProfile(ctx context.Context, p *Profile) (*Profile, error) {
	updated, err := c.SettingsRepository.UpsertProfile(ctx, p)
	if err != nil {
		return nil, err
	}
	c.profiles.Remove(p.ProviderID)
	return updated, nil
}

// InvalidateService drops a cached service, for callers that mutate
// services outside this repository.
func (c *CachedRepository) InvalidateService(serviceID uuid.UUID) {
	c.services.Remove(serviceID)
}
