package memory

import (
	"strconv"
	"sync"
	"time"

	"ai-tutoring-engine/internal/entity"

	"github.com/patrickmn/go-cache"
)

type View string

const (
	ViewHistory View = "history"
	ViewLatest  View = "latest"
)

// CatalogRepository is the in-memory list of history sessions and
// latest-document templates. History entries keep their pointer identity
// across refreshes so the active session sees renames made here.
type CatalogRepository struct {
	mu      sync.RWMutex
	history []*entity.HistorySession
	latest  []*entity.LatestDocumentSession
	view    View

	// consumed remembers seeded templates so a lagging list refresh cannot
	// offer them again.
	consumed *cache.Cache
}

func NewCatalogRepository() *CatalogRepository {
	// Consumed ids expire after 1 hour, purged every 10 minutes
	return &CatalogRepository{
		view:     ViewHistory,
		consumed: cache.New(1*time.Hour, 10*time.Minute),
	}
}

// ReplaceHistory installs the server list, updating known entries in place.
func (r *CatalogRepository) ReplaceHistory(list []*entity.HistorySession) {
	r.mu.Lock()
	defer r.mu.Unlock()

	known := make(map[int64]*entity.HistorySession, len(r.history))
	for _, s := range r.history {
		known[s.Id] = s
	}

	next := make([]*entity.HistorySession, 0, len(list))
	for _, s := range list {
		if s == nil {
			continue
		}
		if existing, ok := known[s.Id]; ok {
			*existing = *s
			next = append(next, existing)
			continue
		}
		next = append(next, s)
	}
	r.history = next
}

// UpsertHistory puts a session at the top of the list and returns the
// pointer the catalog keeps for it.
func (r *CatalogRepository) UpsertHistory(s *entity.HistorySession) *entity.HistorySession {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, existing := range r.history {
		if existing.Id == s.Id {
			*existing = *s
			r.history = append([]*entity.HistorySession{existing}, append(r.history[:i:i], r.history[i+1:]...)...)
			return existing
		}
	}
	r.history = append([]*entity.HistorySession{s}, r.history...)
	return s
}

func (r *CatalogRepository) FindHistory(id int64) (*entity.HistorySession, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, s := range r.history {
		if s.Id == id {
			return s, true
		}
	}
	return nil, false
}

// RenameHistory replaces the title of a known session in place.
func (r *CatalogRepository) RenameHistory(id int64, title string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, s := range r.history {
		if s.Id == id {
			s.Title = title
			return true
		}
	}
	return false
}

func (r *CatalogRepository) History() []entity.HistorySession {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]entity.HistorySession, len(r.history))
	for i, s := range r.history {
		out[i] = *s
	}
	return out
}

func (r *CatalogRepository) ReplaceLatest(list []*entity.LatestDocumentSession) {
	r.mu.Lock()
	defer r.mu.Unlock()

	next := make([]*entity.LatestDocumentSession, 0, len(list))
	for _, t := range list {
		if t == nil {
			continue
		}
		if _, gone := r.consumed.Get(key(t.Id)); gone {
			continue
		}
		next = append(next, t)
	}
	r.latest = next
}

func (r *CatalogRepository) FindLatest(id int64) (*entity.LatestDocumentSession, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, t := range r.latest {
		if t.Id == id {
			return t, true
		}
	}
	return nil, false
}

// ConsumeLatest removes a template for good. It reports false when the
// template was already consumed or never listed.
func (r *CatalogRepository) ConsumeLatest(id int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.consumed.Add(key(id), true, cache.DefaultExpiration); err != nil {
		return false
	}
	for i, t := range r.latest {
		if t.Id == id {
			r.latest = append(r.latest[:i:i], r.latest[i+1:]...)
			return true
		}
	}
	r.consumed.Delete(key(id))
	return false
}

func (r *CatalogRepository) IsConsumed(id int64) bool {
	_, found := r.consumed.Get(key(id))
	return found
}

func (r *CatalogRepository) Latest() []entity.LatestDocumentSession {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]entity.LatestDocumentSession, len(r.latest))
	for i, t := range r.latest {
		out[i] = *t
	}
	return out
}

func (r *CatalogRepository) SetView(v View) {
	r.mu.Lock()
	r.view = v
	r.mu.Unlock()
}

func (r *CatalogRepository) View() View {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.view
}

func key(id int64) string {
	return strconv.FormatInt(id, 10)
}
