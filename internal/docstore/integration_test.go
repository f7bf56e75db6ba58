package docstore_test

import (
	"context"
	"database/sql"
	"os"
	"testing"

	"github.com/alovak/cardprofile/internal/docstore"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/require"
)

// exerciseStore runs the Store contract every backend must satisfy.
func exerciseStore(t *testing.T, store docstore.Store, key string) {
	t.Helper()
	ctx := context.Background()

	// clean slate; delete of an absent key must succeed
	require.NoError(t, store.Delete(ctx, key))

	_, err := store.Get(ctx, key)
	require.ErrorIs(t, err, docstore.ErrNotFound)

	err = store.Merge(ctx, key, []byte(`{"company":"Initech"}`))
	require.ErrorIs(t, err, docstore.ErrNotFound)

	require.NoError(t, store.Set(ctx, key, []byte(`{"fullName":"Jane Doe","company":"Acme"}`)))

	require.NoError(t, store.Merge(ctx, key, []byte(`{"company":"Initech"}`)))
	doc, err := store.Get(ctx, key)
	require.NoError(t, err)
	require.JSONEq(t, `{"fullName":"Jane Doe","company":"Initech"}`, string(doc))

	require.NoError(t, store.Delete(ctx, key))
	require.NoError(t, store.Delete(ctx, key))
	require.NoError(t, store.Ping(ctx))
}

func TestMemoryStoreContract(t *testing.T) {
	exerciseStore(t, docstore.NewMemory(), "contract-test")
}

// Skips unless DB_DSN is provided.
func TestPostgresStoreContract(t *testing.T) {
	dsn := os.Getenv("DB_DSN")
	if dsn == "" {
		t.Skip("DB_DSN not set; skipping Postgres integration test")
	}

	db, err := sql.Open("postgres", dsn)
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, db.Ping())

	store := docstore.NewPostgres(db)
	require.NoError(t, store.EnsureSchema(context.Background()))

	exerciseStore(t, store, "contract-test-pg")
}

// Skips unless REDIS_ADDR is provided.
func TestRedisStoreContract(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set; skipping Redis integration test")
	}

	store, err := docstore.NewRedis(addr, os.Getenv("REDIS_PASSWORD"), 0)
	require.NoError(t, err)
	defer store.Close()

	exerciseStore(t, store, "contract-test-redis")
}
