package orchestration

import (
	"slices"
	"strings"

	"github.com/puzpuzpuz/xsync/v3"
)

// Registry tracks the live sessions of a worker process.
type Registry struct {
	sessions *xsync.MapOf[string, *Session]
}

func NewRegistry() *Registry {
	return &Registry{sessions: xsync.NewMapOf[string, *Session]()}
}

func (r *Registry) Add(session *Session) {
	if session == nil {
		return
	}
	r.sessions.Store(session.ID, session)
}

func (r *Registry) Remove(id string) (*Session, bool) {
	return r.sessions.LoadAndDelete(id)
}

func (r *Registry) Get(id string) (*Session, bool) {
	return r.sessions.Load(id)
}

func (r *Registry) Len() int { return r.sessions.Size() }

// Statuses returns a snapshot of every session, ordered by room then ID.
func (r *Registry) Statuses() []Status {
	statuses := make([]Status, 0, r.sessions.Size())
	r.sessions.Range(func(_ string, session *Session) bool {
		statuses = append(statuses, session.Status())
		return true
	})

	slices.SortFunc(statuses, func(a, b Status) int {
		if c := strings.Compare(a.Room, b.Room); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return statuses
}

// CloseAll closes and forgets every session.
func (r *Registry) CloseAll() {
	r.sessions.Range(func(id string, session *Session) bool {
		session.Close()
		r.sessions.Delete(id)
		return true
	})
}
