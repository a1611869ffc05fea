package persistence

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/angelmondragon/shopfront/pkg/db/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type fakeKV struct {
	mu     sync.Mutex
	data   map[string][]byte
	setErr error
	getErr error
}

func newFakeKV() *fakeKV {
	return &fakeKV{data: map[string][]byte{}}
}

func (f *fakeKV) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	if f.setErr != nil {
		return f.setErr
	}
	if ttl != 0 {
		return errors.New("unexpected ttl")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data[key] = append([]byte(nil), value.([]byte)...)
	return nil
}

func (f *fakeKV) GetBytes(_ context.Context, key string) ([]byte, bool, error) {
	if f.getErr != nil {
		return nil, false, f.getErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	payload, ok := f.data[key]
	return payload, ok, nil
}

func (f *fakeKV) CartKey(name string) string {
	return "sf:cart:" + name
}

func openSQLite(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{Logger: gormlogger.Discard})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(&models.CartSnapshot{}))
	return db
}

func TestSnapshotStores(t *testing.T) {
	stores := map[string]func(t *testing.T) SnapshotStore{
		"memory": func(t *testing.T) SnapshotStore { return NewMemoryStore() },
		"redis": func(t *testing.T) SnapshotStore {
			s, err := NewRedisStore(newFakeKV())
			require.NoError(t, err)
			return s
		},
		"sql": func(t *testing.T) SnapshotStore {
			s, err := NewSQLStore(openSQLite(t))
			require.NoError(t, err)
			return s
		},
	}

	for name, build := range stores {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store := build(t)

			_, err := store.Get(ctx, "cart")
			require.ErrorIs(t, err, ErrNotFound)

			require.NoError(t, store.Put(ctx, "cart", []byte(`{"v":1}`)))
			require.NoError(t, store.Put(ctx, "cart", []byte(`{"v":2}`)))
			require.NoError(t, store.Put(ctx, "other", []byte(`{"v":3}`)))

			got, err := store.Get(ctx, "cart")
			require.NoError(t, err)
			assert.Equal(t, `{"v":2}`, string(got))
		})
	}
}

func TestRedisStoreUsesNamespacedKey(t *testing.T) {
	kv := newFakeKV()
	store, err := NewRedisStore(kv)
	require.NoError(t, err)

	require.NoError(t, store.Put(context.Background(), "cart", []byte("x")))
	_, ok := kv.data["sf:cart:cart"]
	assert.True(t, ok)
}

func TestRedisStorePropagatesErrors(t *testing.T) {
	kv := newFakeKV()
	kv.getErr = errors.New("i/o timeout")
	kv.setErr = errors.New("readonly")
	store, err := NewRedisStore(kv)
	require.NoError(t, err)

	_, err = store.Get(context.Background(), "cart")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
	require.Error(t, store.Put(context.Background(), "cart", []byte("x")))
}

func TestSQLStoreTracksUpdatedAt(t *testing.T) {
	db := openSQLite(t)
	store, err := NewSQLStore(db)
	require.NoError(t, err)
	fixed := time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return fixed }

	require.NoError(t, store.Put(context.Background(), "cart", []byte("{}")))

	var row models.CartSnapshot
	require.NoError(t, db.First(&row, "cart_key = ?", "cart").Error)
	assert.True(t, row.UpdatedAt.Equal(fixed))
}

func TestStoreConstructorsRequireDeps(t *testing.T) {
	_, err := NewRedisStore(nil)
	assert.Error(t, err)
	_, err = NewSQLStore(nil)
	assert.Error(t, err)
}
