// Package ratelimit implements the sliding-window rate limiter guarding
// magic-link requests and chat messages. The decision algorithm is a pure
// function over the per-identifier record; the service binds it to the
// transactional record store so concurrent requests for one identifier
// cannot race past the limit.
package ratelimit

import (
	"fmt"
	"time"
)

// Config holds the immutable parameters of one limiter class.
type Config struct {
	// Window is the sliding-window length over which attempts are counted.
	Window time.Duration
	// MaxAttempts is the number of requests allowed per window before the
	// identifier is blocked.
	MaxAttempts int
	// BlockDuration is the punitive block length once MaxAttempts is
	// exceeded.
	BlockDuration time.Duration
	// Message renders the user-facing deny reason from the number of
	// minutes the caller has to wait.
	Message func(minutes int) string
}

// Record is the per-identifier state persisted in the record store.
type Record struct {
	Identifier     string     `json:"identifier"`
	Attempts       int        `json:"attempts"`
	FirstAttemptAt time.Time  `json:"first_attempt_at"`
	LastAttemptAt  time.Time  `json:"last_attempt_at"`
	BlockedUntil   *time.Time `json:"blocked_until,omitempty"`
}

// Decision is the outcome of one limiter check. Reason is set only on deny.
type Decision struct {
	Allowed bool
	Reason  string
}

// Decide executes one limiter step for identifier against cfg and the
// current record (nil when the identifier has no record yet). It returns
// the record state to persist (nil means nothing must be written) and the
// decision. now is the transaction-time clock reading; the caller must
// apply the result inside the same store transaction that produced current.
func Decide(cfg Config, current *Record, identifier string, now time.Time) (*Record, Decision) {
	// first request ever for this identifier
	if current == nil {
		return freshRecord(identifier, now), Decision{Allowed: true}
	}

	// An active block is reported without touching the record, so repeated
	// denied requests neither extend nor shorten it. The block ends the
	// moment now reaches BlockedUntil.
	if current.BlockedUntil != nil && current.BlockedUntil.After(now) {
		wait := current.BlockedUntil.Sub(now)
		return nil, Decision{Reason: cfg.Message(minutesCeil(wait))}
	}

	// Window elapsed: full reset. A stale BlockedUntil is discarded along
	// with the rest of the old record.
	if now.Sub(current.FirstAttemptAt) > cfg.Window {
		return freshRecord(identifier, now), Decision{Allowed: true}
	}

	next := *current
	next.Attempts++
	next.LastAttemptAt = now

	if current.Attempts >= cfg.MaxAttempts {
		until := now.Add(cfg.BlockDuration)
		next.BlockedUntil = &until
		return &next, Decision{Reason: cfg.Message(minutesCeil(cfg.BlockDuration))}
	}

	return &next, Decision{Allowed: true}
}

func freshRecord(identifier string, now time.Time) *Record {
	return &Record{
		Identifier:     identifier,
		Attempts:       1,
		FirstAttemptAt: now,
		LastAttemptAt:  now,
	}
}

// minutesCeil rounds d up to whole minutes.
func minutesCeil(d time.Duration) int {
	return int((d + time.Minute - 1) / time.Minute)
}

// FormatMinutes renders a wait time for user-facing messages.
func FormatMinutes(minutes int) string {
	if minutes == 1 {
		return "1 minute"
	}
	return fmt.Sprintf("%d minutes", minutes)
}
