package matching

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/opensource-finance/fuelrecon/internal/domain"
	"github.com/opensource-finance/fuelrecon/internal/normalize"
)

// PlateResolver maps external plate strings to active vehicles.
type PlateResolver struct {
	store  domain.RecordStore
	cache  domain.Cache
	ttl    time.Duration
	logger *slog.Logger
}

// NewPlateResolver creates a resolver. cache may be nil; when set, positive
// resolutions are shared across runs for ttl.
func NewPlateResolver(store domain.RecordStore, cache domain.Cache, ttl time.Duration, logger *slog.Logger) *PlateResolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &PlateResolver{store: store, cache: cache, ttl: ttl, logger: logger}
}

// Resolve returns the ID of the active vehicle carrying the plate, or ""
// when there is none.
func (r *PlateResolver) Resolve(ctx context.Context, tenantID, rawPlate string) (string, error) {
	plate := normalize.Plate(rawPlate)
	if plate == "" {
		return "", nil
	}

	if id := r.cached(ctx, tenantID, plate); id != "" {
		return id, nil
	}

	// Indexed lookup first
	v, err := r.store.FindVehicleByNormalizedPlate(ctx, tenantID, plate)
	switch {
	case err == nil && v != nil && v.Active():
		r.remember(ctx, tenantID, plate, v.ID)
		return v.ID, nil
	case err != nil && !errors.Is(err, domain.ErrNotFound):
		return "", fmt.Errorf("lookup plate %s: %w", plate, err)
	}

	// Full scan catches plates stored with formatting the index does not cover
	vehicles, err := r.store.FindActiveVehicles(ctx, tenantID)
	if err != nil {
		return "", fmt.Errorf("scan vehicles: %w", err)
	}
	for _, v := range vehicles {
		if v.Active() && normalize.Plate(v.Plate) == plate {
			r.remember(ctx, tenantID, plate, v.ID)
			return v.ID, nil
		}
	}
	return "", nil
}

func cacheKey(plate string) string {
	return "plate:" + plate
}

func (r *PlateResolver) cached(ctx context.Context, tenantID, plate string) string {
	if r.cache == nil || r.ttl <= 0 {
		return ""
	}
	data, err := r.cache.Get(ctx, tenantID, cacheKey(plate))
	if err != nil {
		r.logger.Warn("plate cache read failed", "tenant_id", tenantID, "error", err)
		return ""
	}
	return string(data)
}

func (r *PlateResolver) remember(ctx context.Context, tenantID, plate, vehicleID string) {
	if r.cache == nil || r.ttl <= 0 {
		return
	}
	if err := r.cache.Set(ctx, tenantID, cacheKey(plate), []byte(vehicleID), r.ttl); err != nil {
		r.logger.Warn("plate cache write failed", "tenant_id", tenantID, "error", err)
	}
}

// runCache memoizes resolutions, including misses, for one matching run.
// Concurrent lookups of the same plate share a single resolution.
type runCache struct {
	mu      sync.Mutex
	entries map[string]string
	group   singleflight.Group
}

func newRunCache() *runCache {
	return &runCache{entries: make(map[string]string)}
}

func (c *runCache) lookup(key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id, ok := c.entries[key]
	return id, ok
}

func (c *runCache) resolve(ctx context.Context, r *PlateResolver, tenantID, rawPlate string) (string, error) {
	key := normalize.Plate(rawPlate)
	if id, ok := c.lookup(key); ok {
		return id, nil
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		// a flight may have finished between lookup and Do
		if id, ok := c.lookup(key); ok {
			return id, nil
		}
		id, err := r.Resolve(ctx, tenantID, rawPlate)
		if err != nil {
			return "", err
		}
		c.mu.Lock()
		c.entries[key] = id
		c.mu.Unlock()
		return id, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}
