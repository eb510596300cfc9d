// Package store holds the keyed result cache shared by every subscription.
//
// Entries never expire on their own. Freshness is computed by the caller from
// StoredAt and a TTL, so the same entry can be fresh for one consumer and stale
// for another.
package store

import (
	"sort"
	"strings"
	"time"

	"github.com/jellydator/ttlcache/v3"

	"github.com/huangsam/dashcache/schema"
)

// Entry is a cached fetch result.
type Entry struct {
	Key      string
	Value    any
	StoredAt time.Time
}

// Age returns how long ago the entry was stored relative to now.
func (e Entry) Age(now time.Time) time.Duration {
	return now.Sub(e.StoredAt)
}

// FreshAt reports whether the entry is still fresh at now for the given ttl.
func (e Entry) FreshAt(now time.Time, ttl time.Duration) bool {
	return e.Age(now) < ttl
}

// Clock returns the current time.
type Clock func() time.Time

// Store is a concurrency-safe map from key to Entry.
type Store struct {
	items    *ttlcache.Cache[string, Entry]
	now      Clock
	capacity uint64
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source used for StoredAt and freshness checks.
func WithClock(clock Clock) Option {
	return func(s *Store) {
		if clock != nil {
			s.now = clock
		}
	}
}

// WithCapacity bounds the number of entries; the least recently used key is evicted first.
func WithCapacity(capacity uint64) Option {
	return func(s *Store) {
		s.capacity = capacity
	}
}

// New creates an empty Store.
func New(opts ...Option) *Store {
	s := &Store{now: time.Now}
	for _, opt := range opts {
		opt(s)
	}

	cacheOpts := []ttlcache.Option[string, Entry]{
		ttlcache.WithTTL[string, Entry](ttlcache.NoTTL),
		ttlcache.WithDisableTouchOnHit[string, Entry](),
	}
	if s.capacity > 0 {
		cacheOpts = append(cacheOpts, ttlcache.WithCapacity[string, Entry](s.capacity))
	}
	s.items = ttlcache.New(cacheOpts...)
	return s
}

// Now returns the store's current time.
func (s *Store) Now() time.Time {
	return s.now()
}

// Get returns the entry for key, if any.
func (s *Store) Get(key string) (Entry, bool) {
	item := s.items.Get(key)
	if item == nil {
		return Entry{}, false
	}
	return item.Value(), true
}

// Set stores value under key with StoredAt set to now, replacing any previous entry.
func (s *Store) Set(key string, value any) Entry {
	entry := Entry{Key: key, Value: value, StoredAt: s.now()}
	s.items.Set(key, entry, ttlcache.NoTTL)
	return entry
}

// IsFresh reports whether key has an entry younger than ttl. Absent keys are never fresh.
func (s *Store) IsFresh(key string, ttl time.Duration) bool {
	entry, ok := s.Get(key)
	if !ok {
		return false
	}
	return entry.FreshAt(s.now(), ttl)
}

// Delete removes key. Deleting an absent key is a no-op.
func (s *Store) Delete(key string) {
	s.items.Delete(key)
}

// DeletePrefix removes every key starting with prefix and returns how many were removed.
func (s *Store) DeletePrefix(prefix string) int {
	removed := 0
	for _, key := range s.items.Keys() {
		if strings.HasPrefix(key, prefix) {
			s.items.Delete(key)
			removed++
		}
	}
	return removed
}

// Clear removes every entry.
func (s *Store) Clear() {
	s.items.DeleteAll()
}

// Len returns the number of entries.
func (s *Store) Len() int {
	return s.items.Len()
}

// Keys returns the stored keys in sorted order.
func (s *Store) Keys() []string {
	keys := s.items.Keys()
	sort.Strings(keys)
	return keys
}

// Status summarizes the store contents.
func (s *Store) Status() schema.StoreStatus {
	status := schema.StoreStatus{
		Capacity: s.capacity,
		Keys:     []string{},
	}
	for key, item := range s.items.Items() {
		entry := item.Value()
		status.Entries++
		status.Keys = append(status.Keys, key)
		if status.OldestEntry.IsZero() || entry.StoredAt.Before(status.OldestEntry) {
			status.OldestEntry = entry.StoredAt
		}
		if entry.StoredAt.After(status.NewestEntry) {
			status.NewestEntry = entry.StoredAt
		}
	}
	sort.Strings(status.Keys)
	return status
}
