package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/dmitrymomot/dynamosession/pkg/kvstore"
)

// DefaultMetaCollection holds one document per table.
const DefaultMetaCollection = "kvstore_tables"

// codeNamespaceExists is returned by createCollection for an existing collection.
const codeNamespaceExists = 48

// DefaultClaimTTL bounds how long an unfinished table creation blocks others.
const DefaultClaimTTL = time.Minute

type tableDoc struct {
	Name          string    `bson:"_id"`
	Status        string    `bson:"status"`
	HashKey       string    `bson:"hash_key"`
	ReadCapacity  int64     `bson:"read_capacity"`
	WriteCapacity int64     `bson:"write_capacity"`
	CreatedAt     time.Time `bson:"created_at"`
}

type recordDoc struct {
	ID        string    `bson:"_id"`
	Data      []byte    `bson:"data,omitempty"`
	Expires   int64     `bson:"expires"`
	Modified  int64     `bson:"modified"`
	ExpiresAt time.Time `bson:"expires_at"` // TTL index field
}

// Storage implements kvstore.Client on MongoDB. Each table is a collection
// with a TTL index on the record expiry; table metadata lives in a separate
// collection keyed by table name.
type Storage struct {
	db           *mongo.Database
	meta         string
	pollInterval time.Duration
	claimTTL     time.Duration
	now          func() time.Time
}

var _ kvstore.Client = (*Storage)(nil)

// StorageOption configures Storage.
type StorageOption func(*Storage)

// WithMetaCollection overrides the collection holding table metadata.
func WithMetaCollection(name string) StorageOption {
	return func(s *Storage) {
		if name != "" {
			s.meta = name
		}
	}
}

// WithPollInterval sets the delay between status checks in WaitUntilActive.
func WithPollInterval(d time.Duration) StorageOption {
	return func(s *Storage) {
		if d > 0 {
			s.pollInterval = d
		}
	}
}

// WithClaimTTL sets how long a CREATING metadata document is trusted before
// another creator may replace it. Non-positive values are ignored.
func WithClaimTTL(d time.Duration) StorageOption {
	return func(s *Storage) {
		if d > 0 {
			s.claimTTL = d
		}
	}
}

// NewStorage creates a kvstore.Client over the given database.
func NewStorage(db *mongo.Database, opts ...StorageOption) *Storage {
	s := &Storage{
		db:           db,
		meta:         DefaultMetaCollection,
		pollInterval: 100 * time.Millisecond,
		claimTTL:     DefaultClaimTTL,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// APIVersion reports the modern key schema generation; collections are schemaless.
func (s *Storage) APIVersion() string {
	return kvstore.APIVersion20120810
}

func (s *Storage) Ping(ctx context.Context) error {
	if err := s.db.Client().Ping(ctx, nil); err != nil {
		return fmt.Errorf("mongo ping: %w", err)
	}
	return nil
}

func (s *Storage) DescribeTable(ctx context.Context, name string) (*kvstore.TableMetadata, error) {
	var doc tableDoc
	err := s.db.Collection(s.meta).FindOne(ctx, bson.D{{Key: "_id", Value: name}}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, kvstore.ErrTableNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("mongo describe table: %w", err)
	}

	if doc.staleClaim(s.now(), s.claimTTL) {
		return nil, kvstore.ErrTableNotFound
	}

	meta := &kvstore.TableMetadata{
		Name:          doc.Name,
		Status:        kvstore.TableStatus(doc.Status),
		HashKey:       doc.HashKey,
		ReadCapacity:  doc.ReadCapacity,
		WriteCapacity: doc.WriteCapacity,
		CreatedAt:     doc.CreatedAt,
	}
	if meta.Status.Usable() {
		if n, err := s.db.Collection(name).EstimatedDocumentCount(ctx); err == nil {
			meta.ItemCount = n
		}
	}
	return meta, nil
}

// CreateTable inserts the metadata document first, so a duplicate key error
// identifies a concurrent creator, then builds the collection and its TTL index.
// A CREATING document older than the claim TTL is replaced, and the document
// is removed again when a later step fails, so an interrupted creation never
// blocks later ones.
func (s *Storage) CreateTable(ctx context.Context, req kvstore.CreateTableRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}

	meta := s.db.Collection(s.meta)
	now := s.now().UTC().Truncate(time.Millisecond)

	_, err := meta.DeleteOne(ctx, bson.D{
		{Key: "_id", Value: req.TableName},
		{Key: "status", Value: string(kvstore.StatusCreating)},
		{Key: "created_at", Value: bson.D{{Key: "$lte", Value: now.Add(-s.claimTTL)}}},
	})
	if err != nil {
		return fmt.Errorf("mongo create table: %w", err)
	}

	_, err = meta.InsertOne(ctx, tableDoc{
		Name:          req.TableName,
		Status:        string(kvstore.StatusCreating),
		HashKey:       req.KeySchema.HashKeyName(),
		ReadCapacity:  req.ReadCapacity,
		WriteCapacity: req.WriteCapacity,
		CreatedAt:     now,
	})
	if mongo.IsDuplicateKeyError(err) {
		return errors.Join(kvstore.ErrTableInUse, err)
	}
	if err != nil {
		return fmt.Errorf("mongo create table: %w", err)
	}

	claim := claimFilter(req.TableName, now)
	if err := s.buildCollection(ctx, req.TableName); err != nil {
		s.release(ctx, claim)
		return err
	}

	res, err := meta.UpdateOne(ctx, claim,
		bson.D{{Key: "$set", Value: bson.D{{Key: "status", Value: string(kvstore.StatusActive)}}}},
	)
	if err != nil {
		s.release(ctx, claim)
		return fmt.Errorf("mongo activate table: %w", err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("%w: %s: claim expired before activation", kvstore.ErrTableInUse, req.TableName)
	}
	return nil
}

func (s *Storage) buildCollection(ctx context.Context, name string) error {
	if err := s.db.CreateCollection(ctx, name); err != nil {
		var cmdErr mongo.CommandError
		if !errors.As(err, &cmdErr) || cmdErr.Code != codeNamespaceExists {
			return fmt.Errorf("mongo create table: %w", err)
		}
	}

	_, err := s.db.Collection(name).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "expires_at", Value: 1}},
		Options: options.Index().SetExpireAfterSeconds(0),
	})
	if err != nil {
		return fmt.Errorf("mongo create ttl index: %w", err)
	}
	return nil
}

// release removes the caller's CREATING document. It runs even when ctx is
// already cancelled.
func (s *Storage) release(ctx context.Context, claim bson.D) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	_, _ = s.db.Collection(s.meta).DeleteOne(ctx, claim)
}

// claimFilter matches the CREATING document written by one creator.
func claimFilter(name string, createdAt time.Time) bson.D {
	return bson.D{
		{Key: "_id", Value: name},
		{Key: "status", Value: string(kvstore.StatusCreating)},
		{Key: "created_at", Value: createdAt},
	}
}

// WaitUntilActive polls the table metadata until it is usable.
func (s *Storage) WaitUntilActive(ctx context.Context, name string, timeout time.Duration) error {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		meta, err := s.DescribeTable(ctx, name)
		switch {
		case err == nil && meta.Status.Usable():
			return nil
		case err != nil && !errors.Is(err, kvstore.ErrTableNotFound):
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			return fmt.Errorf("%w: %s", kvstore.ErrWaitTimeout, name)
		case <-ticker.C:
		}
	}
}

func (s *Storage) GetItem(ctx context.Context, table kvstore.TableRef, id string) (*kvstore.Record, error) {
	var doc recordDoc
	err := s.db.Collection(table.Name).FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, kvstore.ErrItemNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("mongo get item: %w", err)
	}
	return doc.record(), nil
}

// PutItem upserts the whole record document.
func (s *Storage) PutItem(ctx context.Context, table kvstore.TableRef, rec kvstore.Record) error {
	doc := recordDoc{
		ID:        rec.ID,
		Data:      rec.Data,
		Expires:   rec.Expires,
		Modified:  rec.Modified,
		ExpiresAt: time.Unix(rec.Expires, 0).UTC(),
	}
	_, err := s.db.Collection(table.Name).ReplaceOne(ctx,
		bson.D{{Key: "_id", Value: rec.ID}},
		doc,
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("mongo put item: %w", err)
	}
	return nil
}

func (s *Storage) DeleteItem(ctx context.Context, table kvstore.TableRef, id string) error {
	if _, err := s.db.Collection(table.Name).DeleteOne(ctx, bson.D{{Key: "_id", Value: id}}); err != nil {
		return fmt.Errorf("mongo delete item: %w", err)
	}
	return nil
}

// Scan runs the conditions server side. Record payloads are not fetched.
func (s *Storage) Scan(ctx context.Context, in kvstore.ScanInput) ([]kvstore.Record, error) {
	opts := options.Find().SetProjection(bson.D{{Key: "data", Value: 0}})
	if in.PageSize > 0 {
		opts.SetBatchSize(in.PageSize)
	}

	cur, err := s.db.Collection(in.Table.Name).Find(ctx, scanFilter(in.AnyOf), opts)
	if err != nil {
		return nil, fmt.Errorf("mongo scan: %w", err)
	}

	var docs []recordDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("mongo scan: %w", err)
	}

	records := make([]kvstore.Record, 0, len(docs))
	for _, doc := range docs {
		records = append(records, *doc.record())
	}
	return records, nil
}

func scanFilter(anyOf []kvstore.Condition) bson.D {
	if len(anyOf) == 0 {
		return bson.D{}
	}
	or := make(bson.A, 0, len(anyOf))
	for _, c := range anyOf {
		or = append(or, bson.D{{Key: c.Attribute, Value: bson.D{{Key: "$lt", Value: c.Before}}}})
	}
	return bson.D{{Key: "$or", Value: or}}
}

// staleClaim reports whether d is a CREATING document whose creator has had
// longer than ttl to finish.
func (d tableDoc) staleClaim(now time.Time, ttl time.Duration) bool {
	return d.Status == string(kvstore.StatusCreating) && !d.CreatedAt.After(now.Add(-ttl))
}

func (d recordDoc) record() *kvstore.Record {
	return &kvstore.Record{
		ID:       d.ID,
		Data:     d.Data,
		Expires:  d.Expires,
		Modified: d.Modified,
	}
}
