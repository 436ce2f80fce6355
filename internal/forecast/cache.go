package forecast

import (
	"sync"
	"time"

	"github.com/skybrief/turbcast/internal/metrics"
	"github.com/skybrief/turbcast/pkg/logger"
)

type cacheEntry struct {
	forecast       *Forecast
	storedAt       time.Time
	lastAccessedAt time.Time
	hitCount       int64
}

// TierStats is a snapshot of one tier's counters
type TierStats struct {
	Entries  int   `json:"entries"`
	Requests int64 `json:"requests"`
	Hits     int64 `json:"hits"`
	Misses   int64 `json:"misses"`
}

// CacheStats is a snapshot of the whole cache
type CacheStats struct {
	Basic     TierStats `json:"basic"`
	Full      TierStats `json:"full"`
	Evictions int64     `json:"evictions"`
}

// CacheConfig sizes the cache and its TTLs
type CacheConfig struct {
	BasicTTL   time.Duration
	FullTTL    time.Duration
	MaxEntries int
}

// Cache holds forecasts in two independently-expiring tiers. Basic entries
// are cheap to rebuild and live longer; full entries fold in live pilot
// reports and go stale fast. Each tier is capped at MaxEntries with
// least-recently-accessed eviction.
type Cache struct {
	mu      sync.Mutex
	tiers   map[Tier]map[string]*cacheEntry
	ttls    map[Tier]time.Duration
	max     int
	stats   map[Tier]*TierStats
	evicted int64
	now     func() time.Time
	logger  *logger.Logger
}

// NewCache creates an empty forecast cache
func NewCache(cfg CacheConfig, log *logger.Logger) *Cache {
	return &Cache{
		tiers: map[Tier]map[string]*cacheEntry{
			TierBasic: make(map[string]*cacheEntry),
			TierFull:  make(map[string]*cacheEntry),
		},
		ttls: map[Tier]time.Duration{
			TierBasic: cfg.BasicTTL,
			TierFull:  cfg.FullTTL,
		},
		max: cfg.MaxEntries,
		stats: map[Tier]*TierStats{
			TierBasic: {},
			TierFull:  {},
		},
		now:    time.Now,
		logger: log.Named("forecast-cache"),
	}
}

// Get returns a live entry for the flight number, or nil on miss. Expired
// entries count as misses and are removed on the spot.
func (c *Cache) Get(tier Tier, flightNumber string) *Forecast {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := c.stats[tier]
	stats.Requests++

	entry, ok := c.tiers[tier][flightNumber]
	if !ok {
		stats.Misses++
		metrics.ObserveCacheLookup(string(tier), metrics.ResultMiss)
		return nil
	}

	if c.now().Sub(entry.storedAt) > c.ttls[tier] {
		delete(c.tiers[tier], flightNumber)
		stats.Misses++
		metrics.ObserveCacheLookup(string(tier), metrics.ResultMiss)
		return nil
	}

	entry.lastAccessedAt = c.now()
	entry.hitCount++
	stats.Hits++
	metrics.ObserveCacheLookup(string(tier), metrics.ResultHit)
	return entry.forecast
}

// Set stores a forecast, evicting the least recently accessed entry when
// the tier is at capacity.
func (c *Cache) Set(tier Tier, flightNumber string, f *Forecast) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entries := c.tiers[tier]
	if _, exists := entries[flightNumber]; !exists && len(entries) >= c.max {
		c.evictOldest(tier)
	}

	now := c.now()
	entries[flightNumber] = &cacheEntry{
		forecast:       f,
		storedAt:       now,
		lastAccessedAt: now,
	}
}

// evictOldest removes the entry with the oldest last access. Caller holds
// the lock.
func (c *Cache) evictOldest(tier Tier) {
	entries := c.tiers[tier]

	var oldestKey string
	var oldest time.Time
	for key, entry := range entries {
		if oldestKey == "" || entry.lastAccessedAt.Before(oldest) {
			oldestKey = key
			oldest = entry.lastAccessedAt
		}
	}
	if oldestKey == "" {
		return
	}

	delete(entries, oldestKey)
	c.evicted++
	metrics.ObserveCacheEviction()

	c.logger.Debug("Evicted cache entry",
		logger.String("tier", string(tier)),
		logger.String("flight", oldestKey))
}

// Sweep removes expired entries from both tiers and returns how many were
// dropped. Expiry is also enforced lazily on Get; the sweep just keeps
// memory bounded for keys nobody asks about again.
func (c *Cache) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	now := c.now()
	for tier, entries := range c.tiers {
		ttl := c.ttls[tier]
		for key, entry := range entries {
			if now.Sub(entry.storedAt) > ttl {
				delete(entries, key)
				removed++
			}
		}
	}

	if removed > 0 {
		c.logger.Info("Swept expired forecasts", logger.Int("removed", removed))
	}
	return removed
}

// Clear drops every entry in both tiers and returns how many were removed.
// Counters are preserved.
func (c *Cache) Clear() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for tier, entries := range c.tiers {
		removed += len(entries)
		c.tiers[tier] = make(map[string]*cacheEntry)
	}

	c.logger.Info("Cleared forecast cache", logger.Int("removed", removed))
	return removed
}

// GetStats returns a snapshot of the cache counters
func (c *Cache) GetStats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	snapshot := func(tier Tier) TierStats {
		s := *c.stats[tier]
		s.Entries = len(c.tiers[tier])
		return s
	}

	return CacheStats{
		Basic:     snapshot(TierBasic),
		Full:      snapshot(TierFull),
		Evictions: c.evicted,
	}
}
