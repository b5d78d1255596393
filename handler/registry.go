package handler

import (
	"sync"
	"time"

	"HealthBot/flow"

	"github.com/jellydator/ttlcache/v3"
)

// liveSession is one user's controller plus the panel message it draws into.
type liveSession struct {
	mu      sync.Mutex
	userID  int64
	chatID  int64
	panelID int
	ctrl    *flow.Controller
}

func (s *liveSession) panel() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.panelID
}

// registry keeps controllers in memory between updates so an outstanding
// Finish is seen by the next update of the same user. Evicted entries are
// rebuilt from the session store.
type registry struct {
	mu    sync.Mutex
	cache *ttlcache.Cache[int64, *liveSession]
}

func newRegistry(ttl time.Duration) *registry {
	cache := ttlcache.New[int64, *liveSession](
		ttlcache.WithTTL[int64, *liveSession](ttl),
	)
	go cache.Start()
	return &registry{cache: cache}
}

func (r *registry) get(userID int64) *liveSession {
	if item := r.cache.Get(userID); item != nil {
		return item.Value()
	}
	return nil
}

// getOrLoad returns the cached session or stores the one load builds. Only
// one load per registry runs at a time.
func (r *registry) getOrLoad(userID int64, load func() (*liveSession, error)) (*liveSession, error) {
	if s := r.get(userID); s != nil {
		return s, nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if s := r.get(userID); s != nil {
		return s, nil
	}
	s, err := load()
	if err != nil {
		return nil, err
	}
	r.cache.Set(userID, s, ttlcache.DefaultTTL)
	return s, nil
}

func (r *registry) put(s *liveSession) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache.Set(s.userID, s, ttlcache.DefaultTTL)
}

func (r *registry) drop(userID int64) {
	r.cache.Delete(userID)
}

func (r *registry) close() {
	r.cache.Stop()
}
