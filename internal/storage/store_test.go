package storage

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type record struct {
	OrderID string    `json:"orderId"`
	At      time.Time `json:"at"`
}

func newGORMStore(t *testing.T) *GORMStore {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	store, err := NewGORMStore(db)
	require.NoError(t, err)
	return store
}

func TestStores(t *testing.T) {
	stores := map[string]Store{
		"memory": NewMemoryStore(),
		"gorm":   newGORMStore(t),
	}

	for name, s := range stores {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, err := s.Get(ctx, "cart")
			assert.ErrorIs(t, err, ErrNotFound)

			require.NoError(t, s.Set(ctx, "cart", []byte(`[1]`)))
			v, err := s.Get(ctx, "cart")
			require.NoError(t, err)
			assert.Equal(t, `[1]`, string(v))

			// overwrite
			require.NoError(t, s.Set(ctx, "cart", []byte(`[1,2]`)))
			v, err = s.Get(ctx, "cart")
			require.NoError(t, err)
			assert.Equal(t, `[1,2]`, string(v))

			require.NoError(t, s.Delete(ctx, "cart"))
			_, err = s.Get(ctx, "cart")
			assert.ErrorIs(t, err, ErrNotFound)

			// deleting twice is fine
			assert.NoError(t, s.Delete(ctx, "cart"))
		})
	}
}

func TestJSONHelpers(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	in := record{OrderID: "order-1", At: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}

	require.NoError(t, SetJSON(ctx, s, "pendingTransaction", in))

	var out record
	require.NoError(t, GetJSON(ctx, s, "pendingTransaction", &out))
	assert.Equal(t, in, out)

	var missing record
	assert.ErrorIs(t, GetJSON(ctx, s, "nope", &missing), ErrNotFound)

	require.NoError(t, s.Set(ctx, "broken", []byte("{")))
	err := GetJSON(ctx, s, "broken", &out)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_CopiesValues(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	buf := []byte("abc")
	require.NoError(t, s.Set(ctx, "k", buf))
	buf[0] = 'z'

	v, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(v))
}

func TestRedisStore_Key(t *testing.T) {
	s := NewRedisStore("localhost:6379", "ecostore", 0)
	defer s.Close()
	assert.Equal(t, "ecostore:pendingTransaction", s.Key("pendingTransaction"))

	bare := NewRedisStore("localhost:6379", "", 0)
	defer bare.Close()
	assert.Equal(t, "cart", bare.Key("cart"))
}
