package session

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/paulmach/orb"

	"github.com/mohammed-shakir/botanitours-map/internal/core/model"
	"github.com/mohammed-shakir/botanitours-map/internal/core/observability"
	"github.com/mohammed-shakir/botanitours-map/internal/logger"
)

// Registry keeps sessions for ttl since their last access, evicting the least
// recently used past size.
type Registry struct {
	deps     Deps
	mu       sync.Mutex // orders Get's renewal against Delete
	sessions *expirable.LRU[string, *Session]
	active   atomic.Int64
}

func NewRegistry(size int, ttl time.Duration, deps Deps) *Registry {
	if size <= 0 {
		size = 1024
	}
	r := &Registry{deps: deps}
	r.sessions = expirable.NewLRU[string, *Session](size, func(string, *Session) {
		observability.SetActiveSessions(int(r.active.Add(-1)))
	}, ttl)
	return r
}

func (r *Registry) Create(vp model.Viewport) *Session {
	s := New(logger.NewID(), vp, r.deps)
	observability.SetActiveSessions(int(r.active.Add(1)))
	r.sessions.Add(s.ID(), s)
	return s
}

// Get returns a live session and renews its ttl.
func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions.Get(id)
	if ok {
		r.sessions.Add(id, s)
	}
	return s, ok
}

func (r *Registry) Delete(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sessions.Remove(id)
}

func (r *Registry) Len() int { return r.sessions.Len() }

// InvalidateExtent forces the next pan or zoom of every session whose fetched
// extent intersects b to query again. It returns how many sessions were touched.
func (r *Registry) InvalidateExtent(b orb.Bound) int {
	n := 0
	for _, s := range r.sessions.Values() {
		if s.forgetExtent(b) {
			n++
		}
	}
	return n
}

// InvalidateStatic does the same for sessions showing file.
func (r *Registry) InvalidateStatic(file string) int {
	n := 0
	for _, s := range r.sessions.Values() {
		if s.forgetStatic(file) {
			n++
		}
	}
	return n
}
