// Package badger implements store.Store on an embedded Badger database.
//
// Records are JSON encoded under prefixed keys. Every Commit runs in one
// read-write transaction, so a changeset is applied entirely or not at all.
package badger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/xraph/drip"
	"github.com/xraph/drip/access"
	"github.com/xraph/drip/event"
	"github.com/xraph/drip/store"
	"github.com/xraph/drip/stream"
	"github.com/xraph/drip/types"
)

// DefaultGCInterval is how often the value log is garbage collected.
const DefaultGCInterval = time.Hour

// Options configures Open.
type Options struct {
	// Dir holds the database files. Ignored when InMemory is set.
	Dir string
	// InMemory keeps everything in memory. Useful for tests.
	InMemory bool
	// Logger receives badger's own log output. Defaults to slog.Default().
	Logger *slog.Logger
	// GCInterval overrides DefaultGCInterval. Negative disables GC.
	GCInterval time.Duration
}

// Store is a Badger-backed store.Store.
type Store struct {
	db     *badger.DB
	logger *slog.Logger

	mu    sync.RWMutex
	ready bool
	stop  chan struct{}
	done  chan struct{}
}

var _ store.Store = (*Store)(nil)

// Open opens or creates a database.
func Open(o Options) (*Store, error) {
	logger := o.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var opts badger.Options
	if o.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if o.Dir == "" {
			return nil, errors.New("badger: dir is required")
		}
		// Make sure all directories exist
		if err := os.MkdirAll(o.Dir, 0o700); err != nil {
			return nil, fmt.Errorf("badger: create %q: %w", o.Dir, err)
		}
		opts = badger.DefaultOptions(o.Dir)
	}
	opts = opts.WithLogger(slogger{logger: logger})

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("badger: open: %w", err)
	}

	s := &Store{
		db:     db,
		logger: logger,
		ready:  true,
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}

	interval := o.GCInterval
	if interval == 0 {
		interval = DefaultGCInterval
	}
	if interval > 0 && !o.InMemory {
		go s.gc(interval)
	} else {
		close(s.done)
	}

	return s, nil
}

// ──────────────────────────────────────────────────
// Stream Store implementation
// ──────────────────────────────────────────────────

func (s *Store) GetStream(_ context.Context, streamID uint64) (*stream.Stream, error) {
	var st stream.Stream
	err := s.view(func(txn *badger.Txn) error {
		return get(txn, streamKey(streamID), &st)
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, drip.ErrStreamNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("badger: get stream %d: %w", streamID, err)
	}
	return &st, nil
}

func (s *Store) ListStreams(_ context.Context, opts stream.ListOpts) ([]*stream.Stream, error) {
	var result []*stream.Stream
	err := s.view(func(txn *badger.Txn) error {
		return scan(txn, prefixStream, func(data []byte) error {
			var st stream.Stream
			if err := json.Unmarshal(data, &st); err != nil {
				return err
			}
			if opts.Matches(&st) {
				result = append(result, &st)
			}
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("badger: list streams: %w", err)
	}
	return stream.Page(result, opts.Offset, opts.Limit), nil
}

func (s *Store) GetAggregate(_ context.Context, identity types.Identity) (*stream.Aggregate, error) {
	var a stream.Aggregate
	err := s.view(func(txn *badger.Txn) error {
		return get(txn, aggregateKey(identity), &a)
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return stream.NewAggregate(identity), nil
	}
	if err != nil {
		return nil, fmt.Errorf("badger: get aggregate %s: %w", identity, err)
	}
	return &a, nil
}

func (s *Store) GetGlobals(_ context.Context) (*stream.Globals, error) {
	var g stream.Globals
	err := s.view(func(txn *badger.Txn) error {
		return get(txn, keyGlobals, &g)
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return &stream.Globals{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("badger: get globals: %w", err)
	}
	return &g, nil
}

// ──────────────────────────────────────────────────
// Access Store implementation
// ──────────────────────────────────────────────────

func (s *Store) GetRoles(_ context.Context, identity types.Identity) (access.RoleSet, error) {
	var a access.Assignment
	err := s.view(func(txn *badger.Txn) error {
		return get(txn, roleKey(identity), &a)
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("badger: get roles %s: %w", identity, err)
	}
	return a.Roles, nil
}

func (s *Store) ListRoleHolders(_ context.Context, role access.Role) ([]*access.Assignment, error) {
	var result []*access.Assignment
	err := s.view(func(txn *badger.Txn) error {
		return scan(txn, prefixRole, func(data []byte) error {
			var a access.Assignment
			if err := json.Unmarshal(data, &a); err != nil {
				return err
			}
			if a.Roles.Has(role) {
				result = append(result, &a)
			}
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("badger: list role holders: %w", err)
	}
	return result, nil
}

func (s *Store) GetPendingTransfer(_ context.Context, from types.Identity) (*access.PendingTransfer, error) {
	var p access.PendingTransfer
	err := s.view(func(txn *badger.Txn) error {
		return get(txn, pendingKey(from), &p)
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, drip.ErrNoPendingTransfer
	}
	if err != nil {
		return nil, fmt.Errorf("badger: get pending transfer %s: %w", from, err)
	}
	return &p, nil
}

// ──────────────────────────────────────────────────
// Event Store implementation
// ──────────────────────────────────────────────────

func (s *Store) ListEvents(_ context.Context, opts event.ListOpts) ([]*event.Event, error) {
	var result []*event.Event
	err := s.view(func(txn *badger.Txn) error {
		return scan(txn, prefixEvent, func(data []byte) error {
			var e event.Event
			if err := json.Unmarshal(data, &e); err != nil {
				return err
			}
			if opts.Matches(&e) {
				result = append(result, &e)
			}
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("badger: list events: %w", err)
	}
	return stream.Page(result, opts.Offset, opts.Limit), nil
}

// ──────────────────────────────────────────────────
// Commit
// ──────────────────────────────────────────────────

// Commit applies cs in a single read-write transaction.
func (s *Store) Commit(_ context.Context, cs *store.Changeset) error {
	if cs.Empty() {
		return nil
	}

	l, err := s.lock()
	if err != nil {
		return err
	}
	defer l.Unlock()

	return s.db.Update(func(txn *badger.Txn) error {
		for id, st := range cs.Streams {
			if err := put(txn, streamKey(id), st); err != nil {
				return err
			}
		}
		for identity, a := range cs.Aggregates {
			if err := put(txn, aggregateKey(identity), a); err != nil {
				return err
			}
		}
		if cs.Globals != nil {
			if err := put(txn, keyGlobals, cs.Globals); err != nil {
				return err
			}
		}
		for identity, roles := range cs.Roles {
			if err := putRoles(txn, identity, roles); err != nil {
				return err
			}
		}
		for from, p := range cs.Pending {
			if p == nil {
				if err := txn.Delete(pendingKey(from)); err != nil {
					return err
				}
				continue
			}
			if err := put(txn, pendingKey(from), p); err != nil {
				return err
			}
		}
		for _, e := range cs.Events {
			if err := put(txn, eventKey(e.Seq), e); err != nil {
				return err
			}
		}
		return nil
	})
}

func putRoles(txn *badger.Txn, identity types.Identity, roles access.RoleSet) error {
	var a access.Assignment
	err := get(txn, roleKey(identity), &a)
	switch {
	case errors.Is(err, badger.ErrKeyNotFound):
		a = access.Assignment{Entity: types.NewEntity(), Identity: identity}
	case err != nil:
		return err
	default:
		a.Touch()
	}
	a.Roles = roles
	return put(txn, roleKey(identity), &a)
}

// ──────────────────────────────────────────────────
// Core methods
// ──────────────────────────────────────────────────

// Migrate records the schema version, refusing databases written by an
// incompatible layout.
func (s *Store) Migrate(_ context.Context) error {
	l, err := s.lock()
	if err != nil {
		return err
	}
	defer l.Unlock()

	return s.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(keySchemaVersion)
		switch {
		case errors.Is(err, badger.ErrKeyNotFound):
			return txn.Set(keySchemaVersion, []byte(schemaVersion))
		case err != nil:
			return err
		}
		v, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		if string(v) != schemaVersion {
			return fmt.Errorf("badger: unsupported schema version %q", v)
		}
		return nil
	})
}

func (s *Store) Ping(_ context.Context) error {
	l, err := s.lock()
	if err != nil {
		return err
	}
	l.Unlock()
	return nil
}

// Close stops garbage collection and closes the database.
func (s *Store) Close() error {
	s.mu.Lock()
	if !s.ready {
		s.mu.Unlock()
		return nil
	}
	s.ready = false
	close(s.stop)
	s.mu.Unlock()

	<-s.done
	return s.db.Close()
}

// lock acquires a read lock and checks the store is still open.
func (s *Store) lock() (sync.Locker, error) {
	l := s.mu.RLocker()
	l.Lock()
	if !s.ready {
		l.Unlock()
		return nil, drip.ErrStoreFailure
	}
	return l, nil
}

func (s *Store) view(fn func(txn *badger.Txn) error) error {
	l, err := s.lock()
	if err != nil {
		return err
	}
	defer l.Unlock()
	return s.db.View(fn)
}

func (s *Store) gc(interval time.Duration) {
	defer close(s.done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
		}

		// Run GC if 50% space could be reclaimed
		err := s.db.RunValueLogGC(0.5)
		if err != nil && !errors.Is(err, badger.ErrNoRewrite) {
			s.logger.Error("badger gc failed", "error", err)
		}
	}
}

// ──────────────────────────────────────────────────
// Helpers
// ──────────────────────────────────────────────────

func get(txn *badger.Txn, key []byte, v any) error {
	item, err := txn.Get(key)
	if err != nil {
		return err
	}
	return item.Value(func(data []byte) error {
		return json.Unmarshal(data, v)
	})
}

func put(txn *badger.Txn, key []byte, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return txn.Set(key, data)
}

func scan(txn *badger.Txn, prefix []byte, fn func(data []byte) error) error {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix

	it := txn.NewIterator(opts)
	defer it.Close()

	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		if err := it.Item().Value(fn); err != nil {
			return err
		}
	}
	return nil
}
