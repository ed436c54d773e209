// Package mongostore maps docstore collections onto MongoDB collections with
// the document id stored as _id.
package mongostore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"marketplace_backend/internal/docstore"
	"marketplace_backend/platform/mongodb"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Store implements docstore.Store on a Mongo database.
type Store struct {
	db *mongo.Database
}

var _ docstore.Store = (*Store)(nil)

// New wraps a connected database.
func New(db *mongo.Database) *Store {
	return &Store{db: db}
}

func (s *Store) Get(ctx context.Context, collection, id string, out any) error {
	var doc bson.M
	err := s.db.Collection(collection).FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return docstore.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("mongostore: get %s/%s: %w", collection, id, err)
	}
	raw, err := toJSON(doc)
	if err != nil {
		return err
	}
	return docstore.DecodeRaw(raw, out)
}

func (s *Store) Query(ctx context.Context, collection string, filter docstore.Filter, page docstore.Page, out any) error {
	query, err := toBSON(filter)
	if err != nil {
		return err
	}

	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}})
	if page.Limit > 0 {
		opts.SetLimit(int64(page.Limit))
	}
	if page.Skip > 0 {
		opts.SetSkip(int64(page.Skip))
	}

	cursor, err := s.db.Collection(collection).Find(ctx, query, opts)
	if err != nil {
		return fmt.Errorf("mongostore: query %s: %w", collection, err)
	}
	defer cursor.Close(ctx)

	docs := make([]json.RawMessage, 0)
	for cursor.Next(ctx) {
		var doc bson.M
		if err := cursor.Decode(&doc); err != nil {
			return fmt.Errorf("mongostore: decode %s: %w", collection, err)
		}
		raw, err := toJSON(doc)
		if err != nil {
			return err
		}
		docs = append(docs, raw)
	}
	if err := cursor.Err(); err != nil {
		return fmt.Errorf("mongostore: query %s: %w", collection, err)
	}
	return docstore.DecodeAll(docs, out)
}

func (s *Store) Create(ctx context.Context, collection, id string, doc any) error {
	normalized, err := docstore.Normalize(doc)
	if err != nil {
		return err
	}
	normalized["_id"] = id

	_, err = s.db.Collection(collection).InsertOne(ctx, bson.M(normalized))
	if mongodb.IsDuplicateKeyError(err) {
		return docstore.ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("mongostore: create %s/%s: %w", collection, id, err)
	}
	return nil
}

func (s *Store) Update(ctx context.Context, collection, id string, patch docstore.Patch) (bool, error) {
	return s.UpdateIf(ctx, collection, id, nil, patch)
}

func (s *Store) UpdateIf(ctx context.Context, collection, id string, expect docstore.Filter, patch docstore.Patch) (bool, error) {
	normalized, err := docstore.NormalizePatch(patch)
	if err != nil {
		return false, err
	}
	query, err := toBSON(append(docstore.Filter{docstore.Eq("_id", id)}, expect...))
	if err != nil {
		return false, err
	}

	res, err := s.db.Collection(collection).UpdateOne(ctx, query, bson.M{"$set": bson.M(normalized)})
	if err != nil {
		return false, fmt.Errorf("mongostore: update %s/%s: %w", collection, id, err)
	}
	return res.MatchedCount > 0, nil
}

func (s *Store) Increment(ctx context.Context, collection, id, field string, delta int) error {
	res, err := s.db.Collection(collection).UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$inc": bson.M{field: delta}},
	)
	if err != nil {
		return fmt.Errorf("mongostore: increment %s/%s: %w", collection, id, err)
	}
	if res.MatchedCount == 0 {
		return docstore.ErrNotFound
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, collection, id string) (bool, error) {
	res, err := s.db.Collection(collection).DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return false, fmt.Errorf("mongostore: delete %s/%s: %w", collection, id, err)
	}
	return res.DeletedCount > 0, nil
}

// toBSON renders a filter. Mongo already treats {f: null} as "missing or
// null" and {$ne: v} as matching missing fields, which is the docstore contract.
func toBSON(filter docstore.Filter) (bson.M, error) {
	f, err := docstore.NormalizeFilter(filter)
	if err != nil {
		return nil, err
	}
	if len(f) == 0 {
		return bson.M{}, nil
	}

	clauses := make(bson.A, 0, len(f))
	for _, cond := range f {
		switch cond.Op {
		case docstore.OpEq:
			clauses = append(clauses, bson.M{cond.Field: cond.Value})
		case docstore.OpNe:
			clauses = append(clauses, bson.M{cond.Field: bson.M{"$ne": cond.Value}})
		case docstore.OpIn:
			clauses = append(clauses, bson.M{cond.Field: bson.M{"$in": bson.A(cond.Values)}})
		default:
			return nil, fmt.Errorf("mongostore: unsupported filter op %d", cond.Op)
		}
	}
	return bson.M{"$and": clauses}, nil
}

func toJSON(doc bson.M) (json.RawMessage, error) {
	delete(doc, "_id")
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("mongostore: encode document: %w", err)
	}
	return raw, nil
}
