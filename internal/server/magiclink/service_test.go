package magiclink

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkorchagin/onboardchat/internal/common"
	"github.com/mkorchagin/onboardchat/internal/logging"
	"github.com/mkorchagin/onboardchat/internal/server/kvstore"
)

func testLogger() logging.Logger {
	return logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func newTestService(t *testing.T, ttl time.Duration) (*Service, *kvstore.MemoryStore) {
	t.Helper()
	store := kvstore.NewMemoryStore()
	return NewService(store, testLogger(), ttl), store
}

func TestIssueAndRedeem_Success(t *testing.T) {
	t.Parallel()

	s, _ := newTestService(t, 15*time.Minute)
	ctx := context.Background()

	raw, err := s.Issue(ctx, "session-1", "User@Example.com")
	require.NoError(t, err)
	require.Len(t, raw, tokenLength)

	grant, err := s.Redeem(ctx, raw)
	require.NoError(t, err)
	assert.Equal(t, "session-1", grant.SessionID)
	assert.Equal(t, "user@example.com", grant.Email, "email is stored lower-cased")
}

func TestIssue_RawTokenNeverPersisted(t *testing.T) {
	t.Parallel()

	s, store := newTestService(t, 15*time.Minute)
	ctx := context.Background()

	raw, err := s.Issue(ctx, "session-1", "user@example.com")
	require.NoError(t, err)

	// the record is keyed by the hash and carries no trace of the raw value
	record, err := store.Get(ctx, tokensNamespace, HashToken(raw))
	require.NoError(t, err)
	assert.NotContains(t, string(record), raw)

	_, err = store.Get(ctx, tokensNamespace, raw)
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestIssue_RecordFields(t *testing.T) {
	t.Parallel()

	s, store := newTestService(t, 15*time.Minute)
	issuedAt := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return issuedAt }

	raw, err := s.Issue(context.Background(), "session-1", "user@example.com")
	require.NoError(t, err)

	record, err := store.Get(context.Background(), tokensNamespace, HashToken(raw))
	require.NoError(t, err)

	var tok Token
	require.NoError(t, json.Unmarshal(record, &tok))
	assert.Equal(t, "session-1", tok.SessionID)
	assert.True(t, tok.CreatedAt.Equal(issuedAt))
	assert.True(t, tok.ExpiresAt.Equal(issuedAt.Add(15*time.Minute)))
	assert.False(t, tok.Used)
	assert.Nil(t, tok.UsedAt)
}

func TestIssue_EmptySessionID(t *testing.T) {
	t.Parallel()

	s, _ := newTestService(t, time.Minute)
	_, err := s.Issue(context.Background(), "", "user@example.com")
	assert.Error(t, err)
}

func TestRedeem_SecondCallReturnsAlreadyUsed(t *testing.T) {
	t.Parallel()

	s, _ := newTestService(t, 15*time.Minute)
	ctx := context.Background()

	raw, err := s.Issue(ctx, "session-1", "")
	require.NoError(t, err)

	_, err = s.Redeem(ctx, raw)
	require.NoError(t, err)

	_, err = s.Redeem(ctx, raw)
	assert.ErrorIs(t, err, common.ErrTokenAlreadyUsed)
}

func TestRedeem_UnknownToken(t *testing.T) {
	t.Parallel()

	s, _ := newTestService(t, 15*time.Minute)

	// well-formed but never issued
	raw, _ := NewToken()
	_, err := s.Redeem(context.Background(), raw)
	assert.ErrorIs(t, err, common.ErrTokenNotFound)
}

func TestRedeem_MalformedToken(t *testing.T) {
	t.Parallel()

	s, _ := newTestService(t, 15*time.Minute)

	for _, raw := range []string{"", "short", "!!definitely-not-a-token!!"} {
		_, err := s.Redeem(context.Background(), raw)
		assert.ErrorIs(t, err, common.ErrTokenNotFound, "input %q", raw)
	}
}

func TestRedeem_ExpiredToken(t *testing.T) {
	t.Parallel()

	s, _ := newTestService(t, 15*time.Minute)
	issuedAt := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return issuedAt }

	raw, err := s.Issue(context.Background(), "session-1", "")
	require.NoError(t, err)

	// expiry boundary: a token is invalid from ExpiresAt onward
	s.now = func() time.Time { return issuedAt.Add(15 * time.Minute) }
	_, err = s.Redeem(context.Background(), raw)
	assert.ErrorIs(t, err, common.ErrTokenExpired)
}

func TestRedeem_JustBeforeExpiryStillValid(t *testing.T) {
	t.Parallel()

	s, _ := newTestService(t, 15*time.Minute)
	issuedAt := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return issuedAt }

	raw, err := s.Issue(context.Background(), "session-1", "")
	require.NoError(t, err)

	s.now = func() time.Time { return issuedAt.Add(15*time.Minute - time.Second) }
	grant, err := s.Redeem(context.Background(), raw)
	require.NoError(t, err)
	assert.Equal(t, "session-1", grant.SessionID)
}

func TestRedeem_UsedWinsOverExpired(t *testing.T) {
	t.Parallel()

	s, _ := newTestService(t, 15*time.Minute)
	issuedAt := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return issuedAt }

	raw, err := s.Issue(context.Background(), "session-1", "")
	require.NoError(t, err)

	_, err = s.Redeem(context.Background(), raw)
	require.NoError(t, err)

	// a replay after expiry still reports "already used", not "expired"
	s.now = func() time.Time { return issuedAt.Add(time.Hour) }
	_, err = s.Redeem(context.Background(), raw)
	assert.ErrorIs(t, err, common.ErrTokenAlreadyUsed)
}

func TestIssue_StoreFailureSurfacesAsUnavailable(t *testing.T) {
	t.Parallel()

	s := NewService(failingStore{}, testLogger(), time.Minute)
	_, err := s.Issue(context.Background(), "session-1", "")
	assert.ErrorIs(t, err, common.ErrStoreUnavailable)
}

func TestRedeem_StoreFailureSurfacesAsUnavailable(t *testing.T) {
	t.Parallel()

	s := NewService(failingStore{}, testLogger(), time.Minute)
	raw, _ := NewToken()
	_, err := s.Redeem(context.Background(), raw)
	assert.ErrorIs(t, err, common.ErrStoreUnavailable)
}

type failingStore struct{}

func (failingStore) Update(context.Context, kvstore.Namespace, string, kvstore.UpdateFn) error {
	return fmt.Errorf("%w: connection refused", common.ErrStoreUnavailable)
}
func (failingStore) Get(context.Context, kvstore.Namespace, string) ([]byte, error) {
	return nil, fmt.Errorf("%w: connection refused", common.ErrStoreUnavailable)
}
func (failingStore) Delete(context.Context, kvstore.Namespace, string) error {
	return fmt.Errorf("%w: connection refused", common.ErrStoreUnavailable)
}

// Of N concurrent redemptions of one token, exactly one may succeed.
func TestRedeem_ConcurrentRedemptionsExactlyOneWins(t *testing.T) {
	t.Parallel()

	s, _ := newTestService(t, time.Hour)
	ctx := context.Background()

	raw, err := s.Issue(ctx, "session-1", "")
	require.NoError(t, err)

	const n = 20
	var succeeded, replayed atomic.Int64
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			_, err := s.Redeem(ctx, raw)
			switch {
			case err == nil:
				succeeded.Add(1)
			case assert.ErrorIs(t, err, common.ErrTokenAlreadyUsed):
				replayed.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1), succeeded.Load())
	assert.Equal(t, int64(n-1), replayed.Load())
}
