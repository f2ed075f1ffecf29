// Package chat is the conversational boundary of the onboarding flow. The
// LLM-backed assistant is an external collaborator behind the Assistant
// interface; this package only gates messages through the rate limiter and
// forwards them.
package chat

import (
	"context"

	"github.com/mkorchagin/onboardchat/internal/logging"
	"github.com/mkorchagin/onboardchat/internal/server/ratelimit"
)

// Assistant produces the reply to one onboarding chat message.
type Assistant interface {
	Reply(ctx context.Context, sessionID, message string) (string, error)
}

// Service gates chat messages per session through the rate limiter before
// handing them to the assistant.
type Service struct {
	limiter   *ratelimit.Service
	assistant Assistant
	logger    logging.Logger
}

func NewService(limiter *ratelimit.Service, assistant Assistant, logger logging.Logger) *Service {
	return &Service{
		limiter:   limiter,
		assistant: assistant,
		logger:    logger.With("module", "chat"),
	}
}

// Send checks the session's rate limit and, when allowed, returns the
// assistant's reply. A denied message yields *ratelimit.ExceededError; a
// store failure propagates as common.ErrStoreUnavailable (the limiter has
// already denied the request by then).
func (s *Service) Send(ctx context.Context, sessionID, message string) (string, error) {
	dec, err := s.limiter.CheckRequest(ctx, ratelimit.ClassChat, sessionID)
	if err != nil {
		return "", err
	}
	if !dec.Allowed {
		return "", &ratelimit.ExceededError{Reason: dec.Reason}
	}

	reply, err := s.assistant.Reply(ctx, sessionID, message)
	if err != nil {
		s.logger.Error(ctx, "assistant reply failed", "error", err.Error())
		return "", err
	}
	return reply, nil
}
