package geocode

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

// Cache stores resolved districts between lookups.
type Cache interface {
	Get(ctx context.Context, key string) (string, bool)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}

// CachedGeocoder consults a Cache before calling the wrapped Geocoder.
// Coordinates are rounded to three decimals (about 100 m) to form the key.
// Failed lookups are never cached.
type CachedGeocoder struct {
	next  Geocoder
	cache Cache
	ttl   time.Duration
}

func NewCachedGeocoder(next Geocoder, cache Cache, ttl time.Duration) *CachedGeocoder {
	return &CachedGeocoder{next: next, cache: cache, ttl: ttl}
}

func CacheKey(lat, lon float64) string {
	return fmt.Sprintf("geocode:%.3f:%.3f", lat, lon)
}

func (c *CachedGeocoder) Resolve(ctx context.Context, lat, lon float64) (string, bool) {
	key := CacheKey(lat, lon)
	if district, ok := c.cache.Get(ctx, key); ok {
		return district, true
	}

	district, ok := c.next.Resolve(ctx, lat, lon)
	if !ok {
		return "", false
	}
	if err := c.cache.Set(ctx, key, district, c.ttl); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("[geocode] cache write failed")
	}
	return district, true
}
