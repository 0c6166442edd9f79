// Package cache implements the tiered content cache that sits in front of
// repeated DOM, screenshot, and API-response fetches within a session.
//
// It is adapted from the routing-plan LRU cache in the orchestration
// package: same doubly-linked-list LRU discipline and lazy TTL-on-read
// eviction, generalized from a single cache of routing plans to three
// independently sized tiers of raw byte payloads.
package cache

import (
	"sync"
	"time"
)

// Tier names, used as labels in Stats and logging.
const (
	TierDOM        = "dom"
	TierScreenshot = "screenshot"
	TierAPI        = "api"
)

// Stats mirrors the per-tier statistics required by the spec: hits,
// misses, evictions, total byte size, and the derived hit rate.
type Stats struct {
	Hits      int64
	Misses    int64
	Evictions int64
	TotalSize int64
	HitRate   float64
}

func (s Stats) withHitRate() Stats {
	total := s.Hits + s.Misses
	if total > 0 {
		s.HitRate = float64(s.Hits) / float64(total)
	}
	return s
}

// entry is one cached payload. Compressed payloads are decompressed on
// Get so callers never observe the internal representation.
type entry struct {
	key        string
	payload    []byte
	compressed bool
	insertedAt time.Time
	hits       int64
	byteSize   int64
	prev, next *entry
}

// tier is a single LRU+TTL cache keyed by string (typically url+contentType).
type tier struct {
	mu                    sync.Mutex
	name                  string
	capacity              int
	ttl                    time.Duration
	compressionEnabled    bool
	compressionThreshold  int
	items                 map[string]*entry
	head, tail            *entry
	stats                 Stats
}

func newTier(name string, capacity int, ttl time.Duration, compressionEnabled bool, compressionThreshold int) *tier {
	return &tier{
		name:                 name,
		capacity:             capacity,
		ttl:                  ttl,
		compressionEnabled:   compressionEnabled,
		compressionThreshold: compressionThreshold,
		items:                make(map[string]*entry),
	}
}

func (t *tier) get(key string) ([]byte, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, found := t.items[key]
	if !found {
		t.stats.Misses++
		return nil, false
	}

	if time.Since(e.insertedAt) >= t.ttl {
		t.removeEntry(e)
		t.stats.Misses++
		return nil, false
	}

	t.moveToFront(e)
	e.hits++
	t.stats.Hits++

	payload := e.payload
	if e.compressed {
		payload = decompress(payload)
	}
	return payload, true
}

func (t *tier) set(key string, payload []byte) {
	t.mu.Lock()
	defer t.mu.Unlock()

	stored := payload
	compressed := false
	if t.compressionEnabled && len(payload) > t.compressionThreshold {
		stored = compress(payload)
		compressed = true
	}

	if e, found := t.items[key]; found {
		e.payload = stored
		e.compressed = compressed
		e.insertedAt = time.Now()
		e.byteSize = int64(len(stored))
		t.moveToFront(e)
		t.recomputeSize()
		return
	}

	if len(t.items) >= t.capacity {
		t.evictLRU()
	}

	e := &entry{
		key:        key,
		payload:    stored,
		compressed: compressed,
		insertedAt: time.Now(),
		byteSize:   int64(len(stored)),
	}
	t.items[key] = e
	t.linkFront(e)
	t.recomputeSize()
}

func (t *tier) clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.items = make(map[string]*entry)
	t.head, t.tail = nil, nil
	t.stats.TotalSize = 0
}

func (t *tier) size() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.items)
}

func (t *tier) statsSnapshot() Stats {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := t.stats
	return s.withHitRate()
}

func (t *tier) recomputeSize() {
	var total int64
	for _, e := range t.items {
		total += e.byteSize
	}
	t.stats.TotalSize = total
}

func (t *tier) moveToFront(e *entry) {
	if e == t.head {
		return
	}
	t.unlink(e)
	t.linkFront(e)
}

func (t *tier) linkFront(e *entry) {
	e.prev = nil
	e.next = t.head
	if t.head != nil {
		t.head.prev = e
	}
	t.head = e
	if t.tail == nil {
		t.tail = e
	}
}

func (t *tier) unlink(e *entry) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		t.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		t.tail = e.prev
	}
}

func (t *tier) removeEntry(e *entry) {
	t.unlink(e)
	delete(t.items, e.key)
	t.stats.Evictions++
	t.recomputeSize()
}

func (t *tier) evictLRU() {
	if t.tail != nil {
		t.removeEntry(t.tail)
	}
}

// TieredCache is the C3 component: three LRU+TTL caches (dom, screenshot,
// api) with navigation-triggered invalidation. The screenshot tier is
// sized to half of maxSize since screenshots are large and less reusable
// than DOM or API responses.
type TieredCache struct {
	dom        *tier
	screenshot *tier
	api        *tier
}

// Config configures tier sizing, TTL, and compression (mirrors the
// cacheStrategy config option in the distilled spec).
type Config struct {
	MaxSize               int
	TTL                   time.Duration
	CompressionEnabled    bool
	CompressionThreshold  int
}

// DefaultConfig returns sane defaults: 100 entries per tier, 5 minute TTL,
// compression disabled.
func DefaultConfig() Config {
	return Config{
		MaxSize:              100,
		TTL:                  5 * time.Minute,
		CompressionEnabled:   false,
		CompressionThreshold: 4096,
	}
}

// New builds a TieredCache from the given Config.
func New(cfg Config) *TieredCache {
	screenshotCapacity := cfg.MaxSize / 2
	if screenshotCapacity < 1 {
		screenshotCapacity = 1
	}
	return &TieredCache{
		dom:        newTier(TierDOM, cfg.MaxSize, cfg.TTL, cfg.CompressionEnabled, cfg.CompressionThreshold),
		screenshot: newTier(TierScreenshot, screenshotCapacity, cfg.TTL, cfg.CompressionEnabled, cfg.CompressionThreshold),
		api:        newTier(TierAPI, cfg.MaxSize, cfg.TTL, cfg.CompressionEnabled, cfg.CompressionThreshold),
	}
}

func (c *TieredCache) tierFor(name string) *tier {
	switch name {
	case TierDOM:
		return c.dom
	case TierScreenshot:
		return c.screenshot
	case TierAPI:
		return c.api
	default:
		return nil
	}
}

// Get fetches a payload from the named tier.
func (c *TieredCache) Get(tierName, key string) ([]byte, bool) {
	t := c.tierFor(tierName)
	if t == nil {
		return nil, false
	}
	return t.get(key)
}

// Set stores a payload in the named tier.
func (c *TieredCache) Set(tierName, key string, payload []byte) {
	t := c.tierFor(tierName)
	if t == nil {
		return
	}
	t.set(key, payload)
}

// Stats returns a snapshot of every tier's statistics, keyed by tier name.
func (c *TieredCache) Stats() map[string]Stats {
	return map[string]Stats{
		TierDOM:        c.dom.statsSnapshot(),
		TierScreenshot: c.screenshot.statsSnapshot(),
		TierAPI:        c.api.statsSnapshot(),
	}
}

// Size returns the current entry count of the named tier (0 if unknown).
func (c *TieredCache) Size(tierName string) int {
	t := c.tierFor(tierName)
	if t == nil {
		return 0
	}
	return t.size()
}

// Invalidate applies the navigation invalidation rule: if oldURL and
// newURL share a hostname (or oldURL is empty, i.e. first navigation),
// only the dom tier is cleared; otherwise all three tiers are cleared.
func (c *TieredCache) Invalidate(oldURL, newURL string) {
	if oldURL == "" || sameHostname(oldURL, newURL) {
		c.dom.clear()
		return
	}
	c.dom.clear()
	c.screenshot.clear()
	c.api.clear()
}
