// sessions.go - In-memory editing sessions with a sliding TTL.
package server

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/xob0t/GoCarousel/pkg/carousel"
	"github.com/xob0t/GoCarousel/pkg/export"
)

var errSessionNotFound = errors.New("project not found")

// session is one open carousel project.
type session struct {
	id       string
	comp     *carousel.Composition
	exporter *export.Exporter
	created  time.Time
}

type sessionStore struct {
	items *cache.Cache
}

func newSessionStore(ttl time.Duration) *sessionStore {
	c := cache.New(ttl, time.Hour)
	c.OnEvicted(func(_ string, v interface{}) {
		if s, ok := v.(*session); ok {
			s.exporter.Cancel()
		}
		activeSessions.Dec()
	})
	return &sessionStore{items: c}
}

func (st *sessionStore) create(comp *carousel.Composition, ex *export.Exporter) *session {
	s := &session{
		id:       uuid.NewString(),
		comp:     comp,
		exporter: ex,
		created:  time.Now(),
	}
	st.items.SetDefault(s.id, s)
	activeSessions.Inc()
	return s
}

// get returns the session and extends its lifetime.
func (st *sessionStore) get(id string) (*session, error) {
	v, ok := st.items.Get(id)
	if !ok {
		return nil, errSessionNotFound
	}
	s := v.(*session)
	st.items.SetDefault(id, s)
	return s, nil
}

func (st *sessionStore) remove(id string) error {
	if _, ok := st.items.Get(id); !ok {
		return errSessionNotFound
	}
	st.items.Delete(id)
	return nil
}

func (st *sessionStore) len() int {
	return st.items.ItemCount()
}
