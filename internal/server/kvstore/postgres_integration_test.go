package kvstore

import (
	"context"
	"os"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkorchagin/onboardchat/internal/common"
)

func newPostgresStore(t *testing.T) *PostgresStore {
	t.Helper()

	dsn := os.Getenv("TEST_DATABASE_DSN")
	if dsn == "" {
		t.Skip("skipping integration test: TEST_DATABASE_DSN not set")
	}

	db, err := OpenPostgres(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		t.Skipf("skipping integration test: postgres not available (%v)", err)
	}
	require.NoError(t, RunMigrations(ctx, db))

	return NewPostgresStore(db)
}

func TestPostgresStore_Integration(t *testing.T) {
	s := newPostgresStore(t)
	ctx := context.Background()
	ns := Namespace("it:" + strconv.FormatInt(time.Now().UnixNano(), 10))

	t.Run("update and get", func(t *testing.T) {
		err := s.Update(ctx, ns, "k", func(current []byte) ([]byte, bool, error) {
			require.Nil(t, current)
			return []byte("v1"), false, nil
		})
		require.NoError(t, err)

		got, err := s.Get(ctx, ns, "k")
		require.NoError(t, err)
		assert.Equal(t, []byte("v1"), got)
	})

	t.Run("fn error passes through", func(t *testing.T) {
		err := s.Update(ctx, ns, "err-key", func([]byte) ([]byte, bool, error) {
			return nil, false, common.ErrTokenExpired
		})
		assert.ErrorIs(t, err, common.ErrTokenExpired)
	})

	// Every goroutine starts before the key exists, so this exercises the
	// creation path where a plain row lock has nothing to grab yet. Any
	// lost update shows up as a final count below n.
	t.Run("concurrent increments are atomic", func(t *testing.T) {
		const n = 50
		var wg sync.WaitGroup
		wg.Add(n)
		for i := 0; i < n; i++ {
			go func() {
				defer wg.Done()
				err := s.Update(ctx, ns, "counter", func(current []byte) ([]byte, bool, error) {
					count := 0
					if current != nil {
						v, err := strconv.Atoi(string(current))
						if err != nil {
							return nil, false, err
						}
						count = v
					}
					return []byte(strconv.Itoa(count + 1)), false, nil
				})
				assert.NoError(t, err)
			}()
		}
		wg.Wait()

		got, err := s.Get(ctx, ns, "counter")
		require.NoError(t, err)
		assert.Equal(t, strconv.Itoa(n), string(got))
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, s.Delete(ctx, ns, "k"))
		_, err := s.Get(ctx, ns, "k")
		assert.ErrorIs(t, err, common.ErrorNotFound)
	})
}
