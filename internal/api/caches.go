package api

import (
	"time"

	"stock-insight-backend/internal/cache"
)

// analysisCaches holds the per-endpoint response caches. TTLs track how fast
// each payload goes stale: quotes churn in seconds while seasonality barely
// moves within a session.
type analysisCaches struct {
	quotes      cache.Store
	history     cache.Store
	technicals  cache.Store
	seasonality cache.Store
	zones       cache.Store
	signals     cache.Store
}

// newAnalysisCaches builds the response caches. With Redis available the
// caches are shared across instances; otherwise each store is an in-memory
// TTL map with a bounded entry count.
func newAnalysisCaches(redis *cache.Service) analysisCaches {
	build := func(prefix string, ttl time.Duration, maxEntries int) cache.Store {
		if redis != nil {
			return cache.NewRedisStore(redis, prefix, ttl)
		}
		return cache.NewMemory(ttl, maxEntries)
	}

	return analysisCaches{
		quotes:      build("quotes", 10*time.Second, cache.DefaultMaxEntries),
		history:     build("history", 2*time.Minute, 320),
		technicals:  build("tech", 4*time.Minute, cache.DefaultMaxEntries),
		seasonality: build("season", 20*time.Minute, 220),
		zones:       build("zones", 6*time.Minute, 320),
		signals:     build("signal", 2*time.Minute, cache.DefaultMaxEntries),
	}
}
