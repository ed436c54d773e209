// Package pgstore stores documents as JSONB rows in a single Postgres table
// keyed by (collection, id).
package pgstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"marketplace_backend/internal/docstore"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const uniqueViolation = "23505"

// Store implements docstore.Store on pgx.
type Store struct {
	pool *pgxpool.Pool
}

var _ docstore.Store = (*Store)(nil)

// New wraps a connection pool. The documents table comes from the embedded
// goose migrations in platform/db.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) Get(ctx context.Context, collection, id string, out any) error {
	var raw []byte
	err := s.pool.QueryRow(ctx,
		`SELECT doc FROM documents WHERE collection = $1 AND id = $2`,
		collection, id,
	).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return docstore.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("pgstore: get %s/%s: %w", collection, id, err)
	}
	return docstore.DecodeRaw(raw, out)
}

func (s *Store) Query(ctx context.Context, collection string, filter docstore.Filter, page docstore.Page, out any) error {
	b := newBuilder(collection)
	if err := b.where(filter); err != nil {
		return err
	}

	query := `SELECT doc FROM documents WHERE ` + b.clause() + ` ORDER BY created_at, id`
	if page.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", page.Limit)
	}
	if page.Skip > 0 {
		query += fmt.Sprintf(" OFFSET %d", page.Skip)
	}

	rows, err := s.pool.Query(ctx, query, b.args...)
	if err != nil {
		return fmt.Errorf("pgstore: query %s: %w", collection, err)
	}
	defer rows.Close()

	docs := make([]json.RawMessage, 0)
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return fmt.Errorf("pgstore: scan %s: %w", collection, err)
		}
		docs = append(docs, json.RawMessage(raw))
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("pgstore: query %s: %w", collection, err)
	}
	return docstore.DecodeAll(docs, out)
}

func (s *Store) Create(ctx context.Context, collection, id string, doc any) error {
	normalized, err := docstore.Normalize(doc)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(normalized)
	if err != nil {
		return fmt.Errorf("pgstore: encode document: %w", err)
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO documents (collection, id, doc) VALUES ($1, $2, $3::jsonb)`,
		collection, id, string(raw),
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return docstore.ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("pgstore: create %s/%s: %w", collection, id, err)
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
	raw, err := json.Marshal(normalized)
	if err != nil {
		return false, fmt.Errorf("pgstore: encode patch: %w", err)
	}

	b := newBuilder(collection)
	idParam := b.bind(id)
	if err := b.where(expect); err != nil {
		return false, err
	}
	patchParam := b.bind(string(raw))

	tag, err := s.pool.Exec(ctx,
		`UPDATE documents SET doc = doc || `+patchParam+`::jsonb, updated_at = now()
		 WHERE id = `+idParam+` AND `+b.clause(),
		b.args...,
	)
	if err != nil {
		return false, fmt.Errorf("pgstore: update %s/%s: %w", collection, id, err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *Store) Increment(ctx context.Context, collection, id, field string, delta int) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE documents
		 SET doc = jsonb_set(doc, ARRAY[$3::text], to_jsonb(COALESCE((doc->>$3)::numeric, 0) + $4)),
		     updated_at = now()
		 WHERE collection = $1 AND id = $2`,
		collection, id, field, delta,
	)
	if err != nil {
		return fmt.Errorf("pgstore: increment %s/%s: %w", collection, id, err)
	}
	if tag.RowsAffected() == 0 {
		return docstore.ErrNotFound
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, collection, id string) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM documents WHERE collection = $1 AND id = $2`,
		collection, id,
	)
	if err != nil {
		return false, fmt.Errorf("pgstore: delete %s/%s: %w", collection, id, err)
	}
	return tag.RowsAffected() > 0, nil
}

// builder renders a docstore.Filter into a parameterized WHERE clause.
// Field names are always bound as parameters.
type builder struct {
	args  []any
	parts []string
}

func newBuilder(collection string) *builder {
	b := &builder{}
	b.parts = append(b.parts, "collection = "+b.bind(collection))
	return b
}

func (b *builder) bind(value any) string {
	b.args = append(b.args, value)
	return fmt.Sprintf("$%d", len(b.args))
}

func (b *builder) clause() string {
	return strings.Join(b.parts, " AND ")
}

func (b *builder) where(filter docstore.Filter) error {
	f, err := docstore.NormalizeFilter(filter)
	if err != nil {
		return err
	}
	for _, cond := range f {
		field := "doc->" + b.bind(cond.Field) + "::text"
		switch cond.Op {
		case docstore.OpEq:
			if cond.Value == nil {
				b.parts = append(b.parts, fmt.Sprintf("(%s IS NULL OR %s = 'null'::jsonb)", field, field))
				continue
			}
			value, err := jsonParam(cond.Value)
			if err != nil {
				return err
			}
			b.parts = append(b.parts, fmt.Sprintf("%s = %s::jsonb", field, b.bind(value)))
		case docstore.OpNe:
			if cond.Value == nil {
				b.parts = append(b.parts, fmt.Sprintf("(%s IS NOT NULL AND %s <> 'null'::jsonb)", field, field))
				continue
			}
			value, err := jsonParam(cond.Value)
			if err != nil {
				return err
			}
			b.parts = append(b.parts, fmt.Sprintf("(%s IS NULL OR %s <> %s::jsonb)", field, field, b.bind(value)))
		case docstore.OpIn:
			if len(cond.Values) == 0 {
				b.parts = append(b.parts, "FALSE")
				continue
			}
			values, err := jsonParam(cond.Values)
			if err != nil {
				return err
			}
			// a missing field becomes [null] so In(nil) still matches it
			b.parts = append(b.parts, fmt.Sprintf("%s::jsonb @> jsonb_build_array(COALESCE(%s, 'null'::jsonb))", b.bind(values), field))
		default:
			return fmt.Errorf("pgstore: unsupported filter op %d", cond.Op)
		}
	}
	return nil
}

func jsonParam(value any) (string, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return "", fmt.Errorf("pgstore: encode filter value: %w", err)
	}
	return string(raw), nil
}
