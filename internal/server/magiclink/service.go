package magiclink

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mkorchagin/onboardchat/internal/common"
	"github.com/mkorchagin/onboardchat/internal/logging"
	"github.com/mkorchagin/onboardchat/internal/server/kvstore"
)

// tokensNamespace keeps token records apart from the rate-limit namespaces
// sharing the same store.
const tokensNamespace = kvstore.Namespace("magic_link:tokens")

// Token is the persisted record for one issued token, keyed by the hash of
// its raw value.
type Token struct {
	SessionID string     `json:"session_id"`
	Email     string     `json:"email,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	ExpiresAt time.Time  `json:"expires_at"`
	Used      bool       `json:"used"`
	UsedAt    *time.Time `json:"used_at,omitempty"`
}

// Grant is the result of a successful redemption.
type Grant struct {
	SessionID string
	Email     string
}

// Service issues and redeems magic-link tokens against the record store.
type Service struct {
	store  kvstore.Store
	logger logging.Logger
	ttl    time.Duration
	now    func() time.Time
}

func NewService(store kvstore.Store, logger logging.Logger, ttl time.Duration) *Service {
	return &Service{
		store:  store,
		logger: logger.With("module", "magiclink"),
		ttl:    ttl,
		now:    time.Now,
	}
}

// Issue creates a single-use token for sessionID and returns its raw value.
// Only the token's hash is persisted; the caller is responsible for
// delivering the raw value (normally inside an emailed link) and must not
// store it.
func (s *Service) Issue(ctx context.Context, sessionID, email string) (string, error) {
	if sessionID == "" {
		return "", fmt.Errorf("empty session id")
	}

	raw, hash := NewToken()
	now := s.now()

	record, err := json.Marshal(Token{
		SessionID: sessionID,
		Email:     strings.ToLower(strings.TrimSpace(email)),
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	})
	if err != nil {
		return "", fmt.Errorf("marshaling token record: %w", err)
	}

	err = s.store.Update(ctx, tokensNamespace, hash, func(current []byte) ([]byte, bool, error) {
		if current != nil {
			// would require a sha256 collision between random tokens
			return nil, false, fmt.Errorf("token key already occupied")
		}
		return record, false, nil
	})
	if err != nil {
		s.logger.Error(ctx, "token issuance failed", "error", err.Error())
		if !errors.Is(err, common.ErrStoreUnavailable) {
			err = fmt.Errorf("%w: %v", common.ErrStoreUnavailable, err)
		}
		return "", err
	}

	s.logger.Info(ctx, "magic link token issued", "session_id", sessionID)
	return raw, nil
}

// Redeem transitions the token behind raw from unused to used, exactly
// once, and returns the session it authenticates. The check and the write
// happen inside one store transaction, so of any number of concurrent
// redemptions of the same token exactly one succeeds; the rest observe
// common.ErrTokenAlreadyUsed.
//
// Failures are the closed set common.ErrTokenNotFound,
// common.ErrTokenAlreadyUsed, common.ErrTokenExpired, and
// common.ErrStoreUnavailable.
func (s *Service) Redeem(ctx context.Context, raw string) (*Grant, error) {
	if !validTokenShape(raw) {
		return nil, common.ErrTokenNotFound
	}

	hash := HashToken(raw)

	var grant *Grant
	err := s.store.Update(ctx, tokensNamespace, hash, func(current []byte) ([]byte, bool, error) {
		if current == nil {
			return nil, false, common.ErrTokenNotFound
		}

		var tok Token
		if err := json.Unmarshal(current, &tok); err != nil {
			return nil, false, fmt.Errorf("unreadable token record: %w", err)
		}

		if tok.Used {
			return nil, false, common.ErrTokenAlreadyUsed
		}
		now := s.now()
		if !now.Before(tok.ExpiresAt) {
			return nil, false, common.ErrTokenExpired
		}

		tok.Used = true
		tok.UsedAt = &now

		next, err := json.Marshal(tok)
		if err != nil {
			return nil, false, fmt.Errorf("marshaling token record: %w", err)
		}

		grant = &Grant{SessionID: tok.SessionID, Email: tok.Email}
		return next, false, nil
	})
	if err != nil {
		if errors.Is(err, common.ErrTokenNotFound) ||
			errors.Is(err, common.ErrTokenAlreadyUsed) ||
			errors.Is(err, common.ErrTokenExpired) {
			return nil, err
		}
		s.logger.Error(ctx, "token redemption failed", "error", err.Error())
		if !errors.Is(err, common.ErrStoreUnavailable) {
			err = fmt.Errorf("%w: %v", common.ErrStoreUnavailable, err)
		}
		return nil, err
	}

	s.logger.Info(ctx, "magic link token redeemed", "session_id", grant.SessionID)
	return grant, nil
}
