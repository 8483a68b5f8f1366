// Package mongo implements store.Store on MongoDB through the Grove ORM.
//
// Reads go through Grove queries. Commit writes a changeset inside a
// multi-document transaction, which requires a replica set or sharded
// cluster.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/mongodriver"

	"github.com/xraph/drip"
	"github.com/xraph/drip/access"
	"github.com/xraph/drip/event"
	dripstore "github.com/xraph/drip/store"
	"github.com/xraph/drip/stream"
	"github.com/xraph/drip/types"
)

// Collection name constants.
const (
	colStreams    = "drip_streams"
	colAggregates = "drip_aggregates"
	colGlobals    = "drip_globals"
	colRoles      = "drip_roles"
	colPending    = "drip_pending_transfers"
	colEvents     = "drip_events"
)

// compile-time interface check
var _ dripstore.Store = (*Store)(nil)

// Store implements store.Store using MongoDB via Grove ORM.
type Store struct {
	db  *grove.DB
	mdb *mongodriver.MongoDB
}

// New creates a new MongoDB store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db:  db,
		mdb: mongodriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates indexes for all drip collections.
func (s *Store) Migrate(ctx context.Context) error {
	indexes := migrationIndexes()

	for col, models := range indexes {
		if len(models) == 0 {
			continue
		}
		_, err := s.mdb.Collection(col).Indexes().CreateMany(ctx, models)
		if err != nil {
			return fmt.Errorf("drip/mongo: migrate %s indexes: %w", col, err)
		}
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// ==================== Stream Store ====================

func (s *Store) GetStream(ctx context.Context, streamID uint64) (*stream.Stream, error) {
	var m streamModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": int64(streamID)}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, drip.ErrStreamNotFound
		}
		return nil, fmt.Errorf("drip/mongo: get stream: %w", err)
	}
	return fromStreamModel(&m), nil
}

func (s *Store) ListStreams(ctx context.Context, opts stream.ListOpts) ([]*stream.Stream, error) {
	var models []streamModel

	filter := bson.M{}
	if opts.Sender != "" {
		filter["sender"] = string(opts.Sender)
	}
	if opts.Recipient != "" {
		filter["recipient"] = string(opts.Recipient)
	}
	if opts.Status != "" {
		filter["status"] = string(opts.Status)
	}

	q := s.mdb.NewFind(&models).
		Filter(filter).
		Sort(bson.D{{Key: "_id", Value: 1}})

	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		q = q.Skip(int64(opts.Offset))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("drip/mongo: list streams: %w", err)
	}

	result := make([]*stream.Stream, len(models))
	for i := range models {
		result[i] = fromStreamModel(&models[i])
	}
	return result, nil
}

func (s *Store) GetAggregate(ctx context.Context, identity types.Identity) (*stream.Aggregate, error) {
	var m aggregateModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": string(identity)}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return stream.NewAggregate(identity), nil
		}
		return nil, fmt.Errorf("drip/mongo: get aggregate: %w", err)
	}
	return fromAggregateModel(&m), nil
}

func (s *Store) GetGlobals(ctx context.Context) (*stream.Globals, error) {
	var m globalsModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": globalsID}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return &stream.Globals{}, nil
		}
		return nil, fmt.Errorf("drip/mongo: get globals: %w", err)
	}
	return fromGlobalsModel(&m), nil
}

// ==================== Access Store ====================

func (s *Store) GetRoles(ctx context.Context, identity types.Identity) (access.RoleSet, error) {
	var m roleModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": string(identity)}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("drip/mongo: get roles: %w", err)
	}
	return access.RoleSet(m.Roles), nil
}

func (s *Store) ListRoleHolders(ctx context.Context, role access.Role) ([]*access.Assignment, error) {
	var models []roleModel

	err := s.mdb.NewFind(&models).
		Filter(bson.M{"roles": bson.M{"$bitsAllSet": int32(role)}}).
		Sort(bson.D{{Key: "_id", Value: 1}}).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("drip/mongo: list role holders: %w", err)
	}

	result := make([]*access.Assignment, len(models))
	for i := range models {
		result[i] = fromRoleModel(&models[i])
	}
	return result, nil
}

func (s *Store) GetPendingTransfer(ctx context.Context, from types.Identity) (*access.PendingTransfer, error) {
	var m pendingModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": string(from)}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, drip.ErrNoPendingTransfer
		}
		return nil, fmt.Errorf("drip/mongo: get pending transfer: %w", err)
	}
	return fromPendingModel(&m), nil
}

// ==================== Event Store ====================

func (s *Store) ListEvents(ctx context.Context, opts event.ListOpts) ([]*event.Event, error) {
	var models []eventModel

	filter := bson.M{}
	if opts.StreamID != 0 {
		filter["stream_id"] = int64(opts.StreamID)
	}
	if opts.Name != "" {
		filter["name"] = string(opts.Name)
	}

	q := s.mdb.NewFind(&models).
		Filter(filter).
		Sort(bson.D{{Key: "seq", Value: 1}})

	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		q = q.Skip(int64(opts.Offset))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("drip/mongo: list events: %w", err)
	}

	result := make([]*event.Event, len(models))
	for i := range models {
		e, err := fromEventModel(&models[i])
		if err != nil {
			return nil, fmt.Errorf("drip/mongo: decode event: %w", err)
		}
		result[i] = e
	}
	return result, nil
}

// ==================== Commit ====================

// Commit writes cs in one multi-document transaction.
func (s *Store) Commit(ctx context.Context, cs *dripstore.Changeset) error {
	if cs.Empty() {
		return nil
	}

	session, err := s.client().StartSession()
	if err != nil {
		return fmt.Errorf("drip/mongo: start session: %w", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(ctx context.Context) (any, error) {
		return nil, s.write(ctx, cs)
	})
	if err != nil {
		return fmt.Errorf("drip/mongo: commit: %w", err)
	}
	return nil
}

func (s *Store) write(ctx context.Context, cs *dripstore.Changeset) error {
	upsert := options.Replace().SetUpsert(true)

	for _, st := range cs.Streams {
		m := toStreamModel(st)
		if _, err := s.mdb.Collection(colStreams).ReplaceOne(ctx, bson.M{"_id": m.ID}, m, upsert); err != nil {
			return fmt.Errorf("write stream %d: %w", st.ID, err)
		}
	}

	for _, a := range cs.Aggregates {
		m := toAggregateModel(a)
		if _, err := s.mdb.Collection(colAggregates).ReplaceOne(ctx, bson.M{"_id": m.Identity}, m, upsert); err != nil {
			return fmt.Errorf("write aggregate %s: %w", a.Identity, err)
		}
	}

	if cs.Globals != nil {
		m := toGlobalsModel(cs.Globals)
		if _, err := s.mdb.Collection(colGlobals).ReplaceOne(ctx, bson.M{"_id": globalsID}, m, upsert); err != nil {
			return fmt.Errorf("write globals: %w", err)
		}
	}

	t := now()
	for identity, roles := range cs.Roles {
		_, err := s.mdb.Collection(colRoles).UpdateOne(ctx,
			bson.M{"_id": string(identity)},
			bson.M{
				"$set":         bson.M{"roles": int32(roles), "updated_at": t},
				"$setOnInsert": bson.M{"created_at": t},
			},
			options.UpdateOne().SetUpsert(true),
		)
		if err != nil {
			return fmt.Errorf("write roles %s: %w", identity, err)
		}
	}

	for from, p := range cs.Pending {
		if p == nil {
			if _, err := s.mdb.Collection(colPending).DeleteOne(ctx, bson.M{"_id": string(from)}); err != nil {
				return fmt.Errorf("delete pending transfer %s: %w", from, err)
			}
			continue
		}
		m := toPendingModel(p)
		if _, err := s.mdb.Collection(colPending).ReplaceOne(ctx, bson.M{"_id": m.From}, m, upsert); err != nil {
			return fmt.Errorf("write pending transfer %s: %w", from, err)
		}
	}

	if len(cs.Events) > 0 {
		docs := make([]any, len(cs.Events))
		for i, e := range cs.Events {
			docs[i] = toEventModel(e)
		}
		if _, err := s.mdb.Collection(colEvents).InsertMany(ctx, docs); err != nil {
			return fmt.Errorf("write events: %w", err)
		}
	}

	return nil
}

// ==================== Helpers ====================

func (s *Store) client() *mongo.Client {
	return s.mdb.Collection(colStreams).Database().Client()
}

// now returns the current UTC time.
func now() time.Time {
	return time.Now().UTC()
}

// isNoDocuments checks if an error wraps mongo.ErrNoDocuments.
func isNoDocuments(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}

// migrationIndexes returns the index definitions for all drip collections.
func migrationIndexes() map[string][]mongo.IndexModel {
	return map[string][]mongo.IndexModel{
		colStreams: {
			{Keys: bson.D{{Key: "sender", Value: 1}, {Key: "_id", Value: 1}}},
			{Keys: bson.D{{Key: "recipient", Value: 1}, {Key: "_id", Value: 1}}},
			{Keys: bson.D{{Key: "status", Value: 1}}},
		},
		colRoles: {
			{Keys: bson.D{{Key: "roles", Value: 1}}},
		},
		colPending: {
			{Keys: bson.D{{Key: "to", Value: 1}}},
		},
		colEvents: {
			{
				Keys:    bson.D{{Key: "seq", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{Keys: bson.D{{Key: "stream_id", Value: 1}, {Key: "seq", Value: 1}}},
			{Keys: bson.D{{Key: "name", Value: 1}, {Key: "seq", Value: 1}}},
		},
	}
}
