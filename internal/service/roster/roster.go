// Package roster answers which HH:MM slots a doctor offers on a given date.
package roster

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/jwalitptl/medvault-api/internal/model"
	"github.com/jwalitptl/medvault-api/internal/repository"
	"github.com/jwalitptl/medvault-api/pkg/errors"
	"github.com/jwalitptl/medvault-api/pkg/logger"
)

// Provider returns the ascending slot list a doctor offers on date.
type Provider interface {
	Slots(ctx context.Context, doctorID uuid.UUID, date string) ([]string, error)
}

// Static serves slots from configuration: a clinic-wide default plus
// optional per-doctor overrides. It never fails.
type Static struct {
	defaults  []string
	perDoctor map[uuid.UUID][]string
}

// NewStatic validates and normalizes the configured rosters. Keys of
// perDoctor that are not UUIDs are rejected.
func NewStatic(defaults []string, perDoctor map[string][]string) (*Static, error) {
	normalized, err := model.NormalizeSlots(defaults)
	if err != nil {
		return nil, fmt.Errorf("default slots: %w", err)
	}
	if len(normalized) == 0 {
		return nil, fmt.Errorf("default slots must not be empty")
	}

	s := &Static{defaults: normalized, perDoctor: make(map[uuid.UUID][]string, len(perDoctor))}
	for key, slots := range perDoctor {
		doctorID, err := uuid.Parse(key)
		if err != nil {
			return nil, fmt.Errorf("doctor slots key %q: %w", key, err)
		}
		ns, err := model.NormalizeSlots(slots)
		if err != nil {
			return nil, fmt.Errorf("doctor %s slots: %w", key, err)
		}
		s.perDoctor[doctorID] = ns
	}
	return s, nil
}

func (s *Static) Slots(_ context.Context, doctorID uuid.UUID, _ string) ([]string, error) {
	if slots, ok := s.perDoctor[doctorID]; ok {
		return append([]string(nil), slots...), nil
	}
	return append([]string(nil), s.defaults...), nil
}

// Cached reads per-doctor rosters from the doctor_slots table through an
// in-memory cache and falls back when a doctor has none stored.
type Cached struct {
	repo     repository.RosterRepository
	fallback Provider
	cache    *cache.Cache
	logger   *logger.Logger
}

func NewCached(repo repository.RosterRepository, fallback Provider, ttl time.Duration, log *logger.Logger) *Cached {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Cached{
		repo:     repo,
		fallback: fallback,
		cache:    cache.New(ttl, 2*ttl),
		logger:   log,
	}
}

func (c *Cached) Slots(ctx context.Context, doctorID uuid.UUID, date string) ([]string, error) {
	key := doctorID.String()
	if v, found := c.cache.Get(key); found {
		slots := v.([]string)
		if len(slots) == 0 {
			return c.fallback.Slots(ctx, doctorID, date)
		}
		return append([]string(nil), slots...), nil
	}

	slots, err := c.repo.ListSlots(ctx, doctorID)
	if err != nil {
		return nil, errors.Internal(fmt.Errorf("failed to load roster for doctor %s: %w", doctorID, err))
	}
	// Empty rosters are cached too so the fallback path skips the database.
	c.cache.SetDefault(key, slots)

	if len(slots) == 0 {
		return c.fallback.Slots(ctx, doctorID, date)
	}
	return append([]string(nil), slots...), nil
}

// Set replaces a doctor's roster and drops the cached copy. An empty list
// reverts the doctor to the fallback roster.
func (c *Cached) Set(ctx context.Context, doctorID uuid.UUID, slots []string) ([]string, error) {
	normalized, err := model.NormalizeSlots(slots)
	if err != nil {
		return nil, errors.Validation("%v", err)
	}
	if err := c.repo.ReplaceSlots(ctx, doctorID, normalized); err != nil {
		return nil, errors.Internal(err)
	}
	c.cache.Delete(doctorID.String())
	c.logger.Info("doctor roster updated", "doctor_id", doctorID.String(), "slots", len(normalized))
	return normalized, nil
}
