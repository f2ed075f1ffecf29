package ratelimit

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

// Class selects the limiter configuration for a call site.
type Class string

const (
	// ClassMagicLink limits magic-link issuance per email address.
	ClassMagicLink Class = "magic_link"
	// ClassChat limits chat messages per onboarding session.
	ClassChat Class = "chat"
)

// namespace returns the store namespace for the class. Classes never share
// a namespace, so their records are fully disjoint.
func (c Class) namespace() kvstore.Namespace {
	return kvstore.Namespace("rate_limit:" + string(c))
}

// unavailableReason is shown when the limiter cannot reach the store and
// fails closed.
const unavailableReason = "Service temporarily unavailable. Please try again later."

// ExceededError reports a denied request together with its user-facing
// reason, for callers that surface limiter denials as errors.
type ExceededError struct {
	Reason string
}

func (e *ExceededError) Error() string {
	return e.Reason
}

// Service binds the limiter algorithm to the record store for the
// configured classes.
type Service struct {
	store   kvstore.Store
	logger  logging.Logger
	configs map[Class]Config
	now     func() time.Time
}

func NewService(store kvstore.Store, logger logging.Logger, configs map[Class]Config) *Service {
	return &Service{
		store:   store,
		logger:  logger.With("module", "ratelimit"),
		configs: configs,
		now:     time.Now,
	}
}

// Normalize canonicalizes an identifier for its class: email addresses are
// trimmed and lower-cased, session ids pass through unchanged.
func Normalize(class Class, identifier string) string {
	if class == ClassMagicLink {
		return strings.ToLower(strings.TrimSpace(identifier))
	}
	return identifier
}

// CheckRequest decides whether one request by identifier is allowed under
// the class's configuration, updating the identifier's record in the same
// store transaction.
//
// If the store transaction fails, the limiter fails closed: the returned
// decision denies the request and the error wraps common.ErrStoreUnavailable
// so the caller can tell infrastructure trouble apart from an exceeded
// limit.
func (s *Service) CheckRequest(ctx context.Context, class Class, identifier string) (Decision, error) {
	cfg, ok := s.configs[class]
	if !ok {
		return Decision{Reason: unavailableReason}, fmt.Errorf("unknown limiter class %q", class)
	}

	id := Normalize(class, identifier)
	if id == "" {
		return Decision{Reason: unavailableReason}, fmt.Errorf("empty identifier for class %q", class)
	}

	var dec Decision
	err := s.store.Update(ctx, class.namespace(), id, func(current []byte) ([]byte, bool, error) {
		var rec *Record
		if current != nil {
			rec = &Record{}
			if err := json.Unmarshal(current, rec); err != nil {
				// A corrupt record must not lock the identifier out forever;
				// treat it as absent and start a fresh window.
				s.logger.Warn(ctx, "discarding unreadable rate limit record",
					"class", string(class), "error", err.Error())
				rec = nil
			}
		}

		next, d := Decide(cfg, rec, id, s.now())
		dec = d
		if next == nil {
			return nil, false, nil
		}

		b, err := json.Marshal(next)
		if err != nil {
			return nil, false, err
		}
		return b, false, nil
	})

	if err != nil {
		s.logger.Error(ctx, "rate limit check failed, denying request",
			"class", string(class), "error", err.Error())
		if !errors.Is(err, common.ErrStoreUnavailable) {
			err = fmt.Errorf("%w: %v", common.ErrStoreUnavailable, err)
		}
		return Decision{Reason: unavailableReason}, err
	}

	if !dec.Allowed {
		s.logger.Info(ctx, "request denied by rate limiter", "class", string(class))
	}
	return dec, nil
}

// Reset deletes the rate-limit record for an identifier, clearing its
// window and any active block. Operator use only; it bypasses the limiter
// algorithm entirely.
func (s *Service) Reset(ctx context.Context, class Class, identifier string) error {
	if _, ok := s.configs[class]; !ok {
		return fmt.Errorf("unknown limiter class %q", class)
	}

	if err := s.store.Delete(ctx, class.namespace(), Normalize(class, identifier)); err != nil {
		if errors.Is(err, common.ErrStoreUnavailable) {
			return err
		}
		return fmt.Errorf("%w: %v", common.ErrStoreUnavailable, err)
	}

	s.logger.Info(ctx, "rate limit record reset", "class", string(class))
	return nil
}
