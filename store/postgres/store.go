// Package postgres implements store.Store on PostgreSQL through the Grove
// ORM.
//
// Commit applies a changeset inside one transaction opened with the driver's
// BeginTxQuery. Aggregate id lists and event fields are JSONB columns.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/pgdriver"
	"github.com/xraph/grove/drivers/pgdriver/pgmigrate"
	"github.com/xraph/grove/migrate"

	"github.com/xraph/drip"
	"github.com/xraph/drip/access"
	"github.com/xraph/drip/event"
	dripstore "github.com/xraph/drip/store"
	"github.com/xraph/drip/stream"
	"github.com/xraph/drip/types"
)

// compile-time interface check
var _ dripstore.Store = (*Store)(nil)

// Store implements store.Store using PostgreSQL via Grove ORM.
type Store struct {
	db *grove.DB
	pg *pgdriver.PgDB
}

// New creates a new PostgreSQL store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db: db,
		pg: pgdriver.Unwrap(db),
	}
}

// NewDriver creates a store over an opened driver that is not registered
// with a grove.DB.
func NewDriver(pg *pgdriver.PgDB) *Store {
	return &Store{pg: pg}
}

// Open connects to dsn and returns a store over the pool.
func Open(ctx context.Context, dsn string) (*Store, error) {
	pg := pgdriver.New()
	if err := pg.Open(ctx, dsn); err != nil {
		return nil, fmt.Errorf("drip/postgres: open: %w", err)
	}
	return NewDriver(pg), nil
}

// DB returns the underlying grove database for direct access. It is nil for
// stores built with NewDriver or Open.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates the required tables and indexes using the grove orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	orch := migrate.NewOrchestrator(pgmigrate.New(s.pg), Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("drip/postgres: migration failed: %w", err)
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if s.db != nil {
		return s.db.Ping(ctx)
	}
	return s.pg.Ping(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return s.pg.Close()
}

// ==================== Stream Store ====================

func (s *Store) GetStream(ctx context.Context, streamID uint64) (*stream.Stream, error) {
	m := new(streamModel)
	err := s.pg.NewSelect(m).
		Where("id = $1", int64(streamID)).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, drip.ErrStreamNotFound
		}
		return nil, fmt.Errorf("drip/postgres: get stream: %w", err)
	}
	return fromStreamModel(m), nil
}

func (s *Store) ListStreams(ctx context.Context, opts stream.ListOpts) ([]*stream.Stream, error) {
	var models []streamModel
	if err := s.listStreamsQuery(&models, opts).Scan(ctx); err != nil {
		return nil, fmt.Errorf("drip/postgres: list streams: %w", err)
	}

	result := make([]*stream.Stream, len(models))
	for i := range models {
		result[i] = fromStreamModel(&models[i])
	}
	return result, nil
}

func (s *Store) listStreamsQuery(models *[]streamModel, opts stream.ListOpts) *pgdriver.SelectQuery {
	q := s.pg.NewSelect(models)
	arg := 0
	where := func(col string, v any) {
		arg++
		q = q.Where(fmt.Sprintf("%s = $%d", col, arg), v)
	}

	if opts.Sender != "" {
		where("sender", string(opts.Sender))
	}
	if opts.Recipient != "" {
		where("recipient", string(opts.Recipient))
	}
	if opts.Status != "" {
		where("status", string(opts.Status))
	}
	q = q.OrderExpr("id ASC")
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	return q
}

func (s *Store) GetAggregate(ctx context.Context, identity types.Identity) (*stream.Aggregate, error) {
	m := new(aggregateModel)
	err := s.pg.NewSelect(m).
		Where("identity = $1", string(identity)).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return stream.NewAggregate(identity), nil
		}
		return nil, fmt.Errorf("drip/postgres: get aggregate: %w", err)
	}
	a, err := fromAggregateModel(m)
	if err != nil {
		return nil, fmt.Errorf("drip/postgres: decode aggregate: %w", err)
	}
	return a, nil
}

func (s *Store) GetGlobals(ctx context.Context) (*stream.Globals, error) {
	m := new(globalsModel)
	err := s.pg.NewSelect(m).
		Where("id = $1", globalsID).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return &stream.Globals{}, nil
		}
		return nil, fmt.Errorf("drip/postgres: get globals: %w", err)
	}
	return fromGlobalsModel(m), nil
}

// ==================== Access Store ====================

func (s *Store) GetRoles(ctx context.Context, identity types.Identity) (access.RoleSet, error) {
	m := new(roleModel)
	err := s.pg.NewSelect(m).
		Where("identity = $1", string(identity)).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("drip/postgres: get roles: %w", err)
	}
	return access.RoleSet(m.Roles), nil
}

func (s *Store) ListRoleHolders(ctx context.Context, role access.Role) ([]*access.Assignment, error) {
	var models []roleModel
	err := s.pg.NewSelect(&models).
		Where("(roles & $1) <> 0", int32(role)).
		OrderExpr("identity ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("drip/postgres: list role holders: %w", err)
	}

	result := make([]*access.Assignment, len(models))
	for i := range models {
		result[i] = fromRoleModel(&models[i])
	}
	return result, nil
}

func (s *Store) GetPendingTransfer(ctx context.Context, from types.Identity) (*access.PendingTransfer, error) {
	m := new(pendingModel)
	err := s.pg.NewSelect(m).
		Where("from_admin = $1", string(from)).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, drip.ErrNoPendingTransfer
		}
		return nil, fmt.Errorf("drip/postgres: get pending transfer: %w", err)
	}
	return fromPendingModel(m), nil
}

// ==================== Event Store ====================

func (s *Store) ListEvents(ctx context.Context, opts event.ListOpts) ([]*event.Event, error) {
	var models []eventModel
	if err := s.listEventsQuery(&models, opts).Scan(ctx); err != nil {
		return nil, fmt.Errorf("drip/postgres: list events: %w", err)
	}

	result := make([]*event.Event, len(models))
	for i := range models {
		e, err := fromEventModel(&models[i])
		if err != nil {
			return nil, fmt.Errorf("drip/postgres: decode event: %w", err)
		}
		result[i] = e
	}
	return result, nil
}

func (s *Store) listEventsQuery(models *[]eventModel, opts event.ListOpts) *pgdriver.SelectQuery {
	q := s.pg.NewSelect(models)
	arg := 0
	where := func(col string, v any) {
		arg++
		q = q.Where(fmt.Sprintf("%s = $%d", col, arg), v)
	}

	if opts.StreamID != 0 {
		where("stream_id", int64(opts.StreamID))
	}
	if opts.Name != "" {
		where("name", string(opts.Name))
	}
	q = q.OrderExpr("seq ASC")
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	return q
}

// ==================== Commit ====================

// Commit writes cs in one transaction.
func (s *Store) Commit(ctx context.Context, cs *dripstore.Changeset) error {
	if cs.Empty() {
		return nil
	}

	tx, err := s.pg.BeginTxQuery(ctx, nil)
	if err != nil {
		return fmt.Errorf("drip/postgres: begin: %w", err)
	}
	if err := write(ctx, tx, cs); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("drip/postgres: commit: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("drip/postgres: commit: %w", err)
	}
	return nil
}

func write(ctx context.Context, tx *pgdriver.PgTx, cs *dripstore.Changeset) error {
	for _, st := range cs.Streams {
		q := upsert(tx.NewInsert(toStreamModel(st)), "id", streamColumns)
		if _, err := q.Exec(ctx); err != nil {
			return fmt.Errorf("write stream %d: %w", st.ID, err)
		}
	}

	for _, a := range cs.Aggregates {
		m, err := toAggregateModel(a)
		if err != nil {
			return fmt.Errorf("encode aggregate %s: %w", a.Identity, err)
		}
		if _, err := upsert(tx.NewInsert(m), "identity", aggregateColumns).Exec(ctx); err != nil {
			return fmt.Errorf("write aggregate %s: %w", a.Identity, err)
		}
	}

	if cs.Globals != nil {
		q := upsert(tx.NewInsert(toGlobalsModel(cs.Globals)), "id", globalsColumns)
		if _, err := q.Exec(ctx); err != nil {
			return fmt.Errorf("write globals: %w", err)
		}
	}

	t := now()
	for identity, roles := range cs.Roles {
		m := &roleModel{
			Identity:  string(identity),
			Roles:     int32(roles),
			CreatedAt: t,
			UpdatedAt: t,
		}
		if _, err := upsert(tx.NewInsert(m), "identity", roleColumns).Exec(ctx); err != nil {
			return fmt.Errorf("write roles %s: %w", identity, err)
		}
	}

	for from, p := range cs.Pending {
		if p == nil {
			_, err := tx.NewDelete((*pendingModel)(nil)).
				Where("from_admin = $1", string(from)).
				Exec(ctx)
			if err != nil {
				return fmt.Errorf("delete pending transfer %s: %w", from, err)
			}
			continue
		}
		q := upsert(tx.NewInsert(toPendingModel(p)), "from_admin", pendingColumns)
		if _, err := q.Exec(ctx); err != nil {
			return fmt.Errorf("write pending transfer %s: %w", from, err)
		}
	}

	for _, e := range cs.Events {
		m, err := toEventModel(e)
		if err != nil {
			return fmt.Errorf("encode event %d: %w", e.Seq, err)
		}
		if _, err := tx.NewInsert(m).Exec(ctx); err != nil {
			return fmt.Errorf("write event %d: %w", e.Seq, err)
		}
	}

	return nil
}

// ==================== Helpers ====================

// Role rows keep their original created_at.
var (
	roleColumns    = []string{"roles", "updated_at"}
	pendingColumns = []string{"to_admin", "initiated_at", "updated_at"}
)

// upsert turns q into INSERT ... ON CONFLICT (key) DO UPDATE over columns.
func upsert(q *pgdriver.InsertQuery, key string, columns []string) *pgdriver.InsertQuery {
	q = q.OnConflict("(" + key + ") DO UPDATE")
	for _, col := range columns {
		q = q.Set(col + " = EXCLUDED." + col)
	}
	return q
}

// now returns the current UTC time.
func now() time.Time {
	return time.Now().UTC()
}

// isNoRows checks if an error wraps sql.ErrNoRows. pgx.ErrNoRows wraps it.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
