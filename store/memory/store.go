// Package memory is an in-process store for tests and development.
package memory

import (
	"cmp"
	"context"
	"maps"
	"slices"
	"sync"

	"github.com/xraph/drip"
	"github.com/xraph/drip/access"
	"github.com/xraph/drip/event"
	"github.com/xraph/drip/store"
	"github.com/xraph/drip/stream"
	"github.com/xraph/drip/types"
)

type Store struct {
	mu sync.RWMutex

	streams    map[uint64]*stream.Stream
	aggregates map[types.Identity]*stream.Aggregate
	globals    stream.Globals
	roles      map[types.Identity]*access.Assignment
	pending    map[types.Identity]*access.PendingTransfer
	events     []*event.Event

	closed bool
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		streams:    make(map[uint64]*stream.Stream),
		aggregates: make(map[types.Identity]*stream.Aggregate),
		roles:      make(map[types.Identity]*access.Assignment),
		pending:    make(map[types.Identity]*access.PendingTransfer),
	}
}

// Stream Store implementation
func (s *Store) GetStream(_ context.Context, streamID uint64) (*stream.Stream, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if st, ok := s.streams[streamID]; ok {
		return st.Clone(), nil
	}
	return nil, drip.ErrStreamNotFound
}

func (s *Store) ListStreams(_ context.Context, opts stream.ListOpts) ([]*stream.Stream, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := slices.Sorted(maps.Keys(s.streams))
	var result []*stream.Stream
	for _, id := range ids {
		st := s.streams[id]
		if opts.Matches(st) {
			result = append(result, st.Clone())
		}
	}
	return stream.Page(result, opts.Offset, opts.Limit), nil
}

func (s *Store) GetAggregate(_ context.Context, identity types.Identity) (*stream.Aggregate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if a, ok := s.aggregates[identity]; ok {
		return a.Clone(), nil
	}
	return stream.NewAggregate(identity), nil
}

func (s *Store) GetGlobals(_ context.Context) (*stream.Globals, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.globals.Clone(), nil
}

// Access Store implementation
func (s *Store) GetRoles(_ context.Context, identity types.Identity) (access.RoleSet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if a, ok := s.roles[identity]; ok {
		return a.Roles, nil
	}
	return 0, nil
}

func (s *Store) ListRoleHolders(_ context.Context, role access.Role) ([]*access.Assignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*access.Assignment
	for _, a := range s.roles {
		if a.Roles.Has(role) {
			c := *a
			result = append(result, &c)
		}
	}
	slices.SortFunc(result, func(a, b *access.Assignment) int {
		return cmp.Compare(a.Identity, b.Identity)
	})
	return result, nil
}

func (s *Store) GetPendingTransfer(_ context.Context, from types.Identity) (*access.PendingTransfer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if p, ok := s.pending[from]; ok {
		c := *p
		return &c, nil
	}
	return nil, drip.ErrNoPendingTransfer
}

// Event Store implementation
func (s *Store) ListEvents(_ context.Context, opts event.ListOpts) ([]*event.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*event.Event
	for _, e := range s.events {
		if opts.Matches(e) {
			c := *e
			result = append(result, &c)
		}
	}
	return stream.Page(result, opts.Offset, opts.Limit), nil
}

// Commit applies the changeset under a single write lock.
func (s *Store) Commit(_ context.Context, cs *store.Changeset) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return drip.ErrStoreFailure
	}

	for id, st := range cs.Streams {
		s.streams[id] = st.Clone()
	}
	for identity, a := range cs.Aggregates {
		s.aggregates[identity] = a.Clone()
	}
	if cs.Globals != nil {
		s.globals = *cs.Globals
	}
	for identity, roles := range cs.Roles {
		a, ok := s.roles[identity]
		if !ok {
			a = &access.Assignment{Entity: types.NewEntity(), Identity: identity}
			s.roles[identity] = a
		}
		a.Roles = roles
		a.Touch()
	}
	for from, p := range cs.Pending {
		if p == nil {
			delete(s.pending, from)
			continue
		}
		c := *p
		s.pending[from] = &c
	}
	for _, e := range cs.Events {
		c := *e
		s.events = append(s.events, &c)
	}
	return nil
}

func (s *Store) Migrate(_ context.Context) error { return nil }

func (s *Store) Ping(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return drip.ErrStoreFailure
	}
	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	return nil
}
