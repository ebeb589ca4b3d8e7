// Package memory holds an in-process implementation of the session store,
// used in tests and single-node deployments.
package memory

import (
	"context"
	"sync"

	"github.com/classkit/live-quiz/internal/game"
)

// Store keeps session records in a map and fans committed changes out to
// subscribers synchronously. Snapshots handed out are deep copies.
type Store struct {
	mu        sync.Mutex
	sessions  map[string]*game.Session
	listeners map[string]map[int]func(*game.Session)
	nextID    int
}

var _ game.Store = (*Store)(nil)

func NewStore() *Store {
	return &Store{
		sessions:  make(map[string]*game.Session),
		listeners: make(map[string]map[int]func(*game.Session)),
	}
}

func (st *Store) Create(_ context.Context, s *game.Session) error {
	st.mu.Lock()
	st.sessions[s.ID] = s.Clone()
	snapshot := s.Clone()
	fns := st.listenerList(s.ID)
	st.mu.Unlock()

	notify(fns, snapshot)
	return nil
}

func (st *Store) Get(_ context.Context, id string) (*game.Session, error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	s, ok := st.sessions[id]
	if !ok {
		return nil, game.ErrSessionNotFound
	}
	return s.Clone(), nil
}

func (st *Store) Update(_ context.Context, id string, fn func(*game.Session) error) (*game.Session, error) {
	st.mu.Lock()
	s, ok := st.sessions[id]
	if !ok {
		st.mu.Unlock()
		return nil, game.ErrSessionNotFound
	}
	next := s.Clone()
	if err := fn(next); err != nil {
		st.mu.Unlock()
		return nil, err
	}
	st.sessions[id] = next
	snapshot := next.Clone()
	fns := st.listenerList(id)
	st.mu.Unlock()

	notify(fns, snapshot)
	return next.Clone(), nil
}

func (st *Store) FindByJoinCode(_ context.Context, code string) (*game.Session, error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	for _, s := range st.sessions {
		if s.JoinCode == code && s.Status != game.StatusFinished {
			return s.Clone(), nil
		}
	}
	return nil, game.ErrSessionNotFound
}

func (st *Store) Subscribe(_ context.Context, id string, fn func(*game.Session)) (func(), error) {
	st.mu.Lock()
	s, ok := st.sessions[id]
	if !ok {
		st.mu.Unlock()
		return nil, game.ErrSessionNotFound
	}
	if st.listeners[id] == nil {
		st.listeners[id] = make(map[int]func(*game.Session))
	}
	key := st.nextID
	st.nextID++
	st.listeners[id][key] = fn
	snapshot := s.Clone()
	st.mu.Unlock()

	// Initial snapshot, mirroring the push store's subscribe semantics.
	fn(snapshot)

	return func() {
		st.mu.Lock()
		defer st.mu.Unlock()
		delete(st.listeners[id], key)
	}, nil
}

// Redeliver re-sends the current snapshot to every subscriber, as a push
// store does after a reconnect. Consumers must treat it as a duplicate.
func (st *Store) Redeliver(id string) {
	st.mu.Lock()
	s, ok := st.sessions[id]
	if !ok {
		st.mu.Unlock()
		return
	}
	snapshot := s.Clone()
	fns := st.listenerList(id)
	st.mu.Unlock()

	notify(fns, snapshot)
}

// mu must be held.
func (st *Store) listenerList(id string) []func(*game.Session) {
	fns := make([]func(*game.Session), 0, len(st.listeners[id]))
	for _, fn := range st.listeners[id] {
		fns = append(fns, fn)
	}
	return fns
}

func notify(fns []func(*game.Session), s *game.Session) {
	for _, fn := range fns {
		fn(s.Clone())
	}
}
