package web

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mikequentel/memeboard/internal/editor"
	"github.com/mikequentel/memeboard/internal/model"
	"github.com/mikequentel/memeboard/internal/publish"
)

var errForbidden = errors.New("editor session belongs to another user")

// editorSession is one draft being composed by its owner. mu serializes
// every event applied to the draft.
type editorSession struct {
	id    string
	owner string

	mu    sync.Mutex
	draft publish.Draft

	lastUsed time.Time // guarded by registry.mu
}

// registry holds live editor sessions and expires idle ones.
type registry struct {
	ttl time.Duration
	now func() time.Time

	mu       sync.Mutex
	sessions map[string]*editorSession
}

func newRegistry(ttl time.Duration, now func() time.Time) *registry {
	if now == nil {
		now = time.Now
	}
	return &registry{ttl: ttl, now: now, sessions: make(map[string]*editorSession)}
}

func (r *registry) create(owner string) *editorSession {
	es := &editorSession{
		id:       uuid.NewString(),
		owner:    owner,
		draft:    publish.Draft{Editor: editor.New()},
		lastUsed: r.now(),
	}
	r.mu.Lock()
	r.sessions[es.id] = es
	r.mu.Unlock()
	return es
}

// acquire returns the session locked for owner's exclusive use. The caller
// must call the returned release func.
func (r *registry) acquire(id, owner string) (*editorSession, func(), error) {
	r.mu.Lock()
	es, ok := r.sessions[id]
	if ok && r.expired(es) {
		delete(r.sessions, id)
		ok = false
	}
	if !ok {
		r.mu.Unlock()
		return nil, nil, model.ErrNotFound
	}
	if es.owner != owner {
		r.mu.Unlock()
		return nil, nil, errForbidden
	}
	es.lastUsed = r.now()
	r.mu.Unlock()

	es.mu.Lock()
	return es, es.mu.Unlock, nil
}

// expired must be called with r.mu held.
func (r *registry) expired(es *editorSession) bool {
	return r.ttl > 0 && r.now().Sub(es.lastUsed) > r.ttl
}

func (r *registry) remove(id, owner string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	es, ok := r.sessions[id]
	if !ok {
		return model.ErrNotFound
	}
	if es.owner != owner {
		return errForbidden
	}
	delete(r.sessions, id)
	return nil
}

// sweep drops expired sessions and returns how many were dropped.
func (r *registry) sweep() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for id, es := range r.sessions {
		if r.expired(es) {
			delete(r.sessions, id)
			n++
		}
	}
	return n
}

func (r *registry) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
