package mongostore

import (
	"context"
	"os"
	"testing"

	"marketplace_backend/internal/docstore"
	"marketplace_backend/internal/docstore/storetest"
	"marketplace_backend/platform/mongodb"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

type mongoTestConfig struct {
	uri string
	db  string
}

func (c mongoTestConfig) GetDatabaseURL() string          { return "" }
func (c mongoTestConfig) GetDocumentStoreBackend() string { return "mongo" }
func (c mongoTestConfig) GetMongoURI() string             { return c.uri }
func (c mongoTestConfig) GetMongoDatabase() string        { return c.db }

// Set DOCSTORE_TEST_MONGO_URI to run the contract against a live MongoDB.
func TestMongostoreContract(t *testing.T) {
	uri := os.Getenv("DOCSTORE_TEST_MONGO_URI")
	if uri == "" {
		t.Skip("DOCSTORE_TEST_MONGO_URI not set")
	}

	ctx := context.Background()
	client, db, err := mongodb.Connect(ctx, mongoTestConfig{uri: uri, db: "storetest_" + uuid.NewString()[:8]})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = db.Drop(context.Background())
		_ = mongodb.Disconnect(client)
	})

	storetest.Run(t, func(t *testing.T) docstore.Store {
		return New(db)
	})
}

func TestToBSON(t *testing.T) {
	got, err := toBSON(docstore.Where(
		docstore.Eq("status", "open"),
		docstore.Ne("customerId", nil),
		docstore.In("category", "plumbing", "automotive"),
	))
	require.NoError(t, err)

	want := bson.M{"$and": bson.A{
		bson.M{"status": "open"},
		bson.M{"customerId": bson.M{"$ne": nil}},
		bson.M{"category": bson.M{"$in": bson.A{"plumbing", "automotive"}}},
	}}
	assert.Equal(t, want, got)

	empty, err := toBSON(nil)
	require.NoError(t, err)
	assert.Equal(t, bson.M{}, empty)
}
