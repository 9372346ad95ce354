// Package appinfo caches the portal configuration blob (site
// coordinates, filter list, frame types) for the lifetime of the
// process.
package appinfo

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/telescopiosnaescola/argus/pkg/api"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Cache lazily fetches /api/appinfo/ and memoizes the result.
// Concurrent loads before the first resolution share a single request.
// A failed load is reported to every waiter and caches nothing, so the
// next call retries; a reported success never leaves the cache empty.
type Cache struct {
	client *api.Client
	logger *zap.Logger

	group singleflight.Group
	mu    sync.RWMutex
	info  *api.AppInfo
}

// NewCache creates an app info cache over the given API client.
func NewCache(client *api.Client, logger *zap.Logger) *Cache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache{
		client: client,
		logger: logger.With(zap.String("component", "appinfo_cache")),
	}
}

// Load returns the cached configuration, fetching it on first use.
func (c *Cache) Load(ctx context.Context) (*api.AppInfo, error) {
	c.mu.RLock()
	if c.info != nil {
		info := c.info
		c.mu.RUnlock()
		return info, nil
	}
	c.mu.RUnlock()

	v, err, _ := c.group.Do("appinfo", func() (interface{}, error) {
		info, err := c.client.AppInfo(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load app info: %w", err)
		}

		c.mu.Lock()
		c.info = info
		c.mu.Unlock()

		c.logger.Info("App info loaded",
			zap.String("lat", info.Latitude),
			zap.String("lon", info.Longitude),
			zap.Int("filters", len(info.Filters)))
		return info, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*api.AppInfo), nil
}

// Invalidate drops the cached blob; the next Load re-fetches.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.info = nil
	c.mu.Unlock()
}

// SiteLatitude returns the telescope site latitude in degrees.
func (c *Cache) SiteLatitude(ctx context.Context) (float64, error) {
	info, err := c.Load(ctx)
	if err != nil {
		return 0, err
	}
	lat, err := strconv.ParseFloat(info.Latitude, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid site latitude %q: %w", info.Latitude, err)
	}
	return lat, nil
}

// SiteLongitude returns the telescope site longitude in degrees.
func (c *Cache) SiteLongitude(ctx context.Context) (float64, error) {
	info, err := c.Load(ctx)
	if err != nil {
		return 0, err
	}
	lon, err := strconv.ParseFloat(info.Longitude, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid site longitude %q: %w", info.Longitude, err)
	}
	return lon, nil
}

// Filters returns the available filter names.
func (c *Cache) Filters(ctx context.Context) ([]string, error) {
	info, err := c.Load(ctx)
	if err != nil {
		return nil, err
	}
	return info.Filters, nil
}

// FrameTypes returns the available frame reduction modes.
func (c *Cache) FrameTypes(ctx context.Context) ([]string, error) {
	info, err := c.Load(ctx)
	if err != nil {
		return nil, err
	}
	return info.FrameTypes, nil
}
