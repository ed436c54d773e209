package pgstore

import (
	"context"
	"os"
	"testing"

	"marketplace_backend/internal/docstore"
	"marketplace_backend/internal/docstore/storetest"
	"marketplace_backend/platform/db"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Set DOCSTORE_TEST_DATABASE_URL to run the contract against a live Postgres.
func TestPgstoreContract(t *testing.T) {
	url := os.Getenv("DOCSTORE_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("DOCSTORE_TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(pool.Close)

	if err := db.RunMigrations(ctx, pool); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	storetest.Run(t, func(t *testing.T) docstore.Store {
		return New(pool)
	})
}

func TestBuilderBindsFieldNames(t *testing.T) {
	b := newBuilder("jobs")
	err := b.where(docstore.Where(
		docstore.Eq("status'; DROP TABLE documents; --", "open"),
		docstore.In("category", "plumbing", "automotive"),
		docstore.Eq("customerId", nil),
	))
	if err != nil {
		t.Fatalf("where: %v", err)
	}

	want := "collection = $1 AND doc->$2::text = $3::jsonb AND $5::jsonb @> jsonb_build_array(COALESCE(doc->$4::text, 'null'::jsonb)) AND (doc->$6::text IS NULL OR doc->$6::text = 'null'::jsonb)"
	if got := b.clause(); got != want {
		t.Fatalf("unexpected clause\n got: %s\nwant: %s", got, want)
	}
	if len(b.args) != 6 {
		t.Fatalf("expected 6 args, got %d", len(b.args))
	}
	if b.args[2] != `"open"` || b.args[4] != `["plumbing","automotive"]` {
		t.Fatalf("unexpected json args %#v", b.args)
	}
}
