package geo

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/ringsaturn/tzf"
)

// FallbackTimezone is returned whenever a coordinate cannot be resolved to a
// concrete zone. It represents a zero UTC offset; callers that care should
// log the fallback at warning level.
const FallbackTimezone = "UTC"

// tzMemoTTL bounds how long a resolved timezone is reused for a bucket before
// being recomputed. Timezone polygons effectively never move, but the memo is
// kept wall-clock bounded so a transient resolver fault cannot pin a wrong
// answer forever.
const tzMemoTTL = 24 * time.Hour

// TimezoneFinder is the subset of the tzf finder the resolver needs.
// tzf's API takes longitude before latitude.
type TimezoneFinder interface {
	GetTimezoneName(lng float64, lat float64) string
}

// Resolver maps coordinates to IANA timezone names with a per-bucket memo
// cache. Resolution fails soft: any lookup failure yields FallbackTimezone,
// never an error, so a broken timezone index degrades alerts to UTC schedules
// rather than taking the engine down.
type Resolver struct {
	finder TimezoneFinder
	clock  clockwork.Clock

	mu   sync.RWMutex
	memo map[string]tzMemoEntry
}

type tzMemoEntry struct {
	name      string
	expiresAt time.Time
}

// NewResolver creates a Resolver backed by the given finder. A nil clock
// defaults to the real clock.
func NewResolver(finder TimezoneFinder, clock clockwork.Clock) *Resolver {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Resolver{
		finder: finder,
		clock:  clock,
		memo:   make(map[string]tzMemoEntry),
	}
}

// NewDefaultResolver creates a Resolver over the embedded tzf dataset.
// Building the finder parses the polygon index once at startup.
func NewDefaultResolver() (*Resolver, error) {
	finder, err := tzf.NewDefaultFinder()
	if err != nil {
		return nil, err
	}
	return NewResolver(finder, nil), nil
}

// Resolve returns the IANA timezone name for the coordinate, memoized per
// bucket key for tzMemoTTL. On any failure it returns FallbackTimezone; it
// never returns an error.
func (r *Resolver) Resolve(lat, lon float64) string {
	key := BucketKey(lat, lon)
	now := r.clock.Now()

	r.mu.RLock()
	entry, ok := r.memo[key]
	r.mu.RUnlock()
	if ok && now.Before(entry.expiresAt) {
		return entry.name
	}

	name := r.lookup(lat, lon)

	r.mu.Lock()
	r.memo[key] = tzMemoEntry{name: name, expiresAt: now.Add(tzMemoTTL)}
	r.mu.Unlock()

	return name
}

// Clear drops all memoized entries. Intended for tests.
func (r *Resolver) Clear() {
	r.mu.Lock()
	r.memo = make(map[string]tzMemoEntry)
	r.mu.Unlock()
}

// lookup performs the underlying finder call, converting panics and empty
// results into the fallback zone.
func (r *Resolver) lookup(lat, lon float64) (name string) {
	defer func() {
		if recover() != nil {
			name = FallbackTimezone
		}
	}()

	if r.finder == nil {
		return FallbackTimezone
	}
	name = r.finder.GetTimezoneName(lon, lat)
	if name == "" {
		return FallbackTimezone
	}
	// Reject names the zoneinfo database does not know; downstream window
	// math and cron registration both need a loadable location.
	if _, err := time.LoadLocation(name); err != nil {
		return FallbackTimezone
	}
	return name
}
