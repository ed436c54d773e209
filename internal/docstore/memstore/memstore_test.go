package memstore

import (
	"testing"

	"marketplace_backend/internal/docstore"
	"marketplace_backend/internal/docstore/storetest"
)

func TestMemstoreContract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) docstore.Store {
		return New()
	})
}
