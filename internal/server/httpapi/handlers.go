package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/mkorchagin/onboardchat/internal/common"
	"github.com/mkorchagin/onboardchat/internal/server/auth"
	"github.com/mkorchagin/onboardchat/internal/server/ratelimit"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type magicLinkRequest struct {
	Email string `json:"email"`
}

// handleRequestMagicLink issues a magic link for an email address. The
// response is 202 regardless of whether the address is known anywhere, so
// the endpoint cannot be used to probe for accounts.
func (s *Server) handleRequestMagicLink(w http.ResponseWriter, r *http.Request) {
	var req magicLinkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || !strings.Contains(email, "@") {
		writeError(w, http.StatusBadRequest, "a valid email address is required")
		return
	}

	dec, err := s.limiter.CheckRequest(r.Context(), ratelimit.ClassMagicLink, email)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, dec.Reason)
		return
	}
	if !dec.Allowed {
		writeError(w, http.StatusTooManyRequests, dec.Reason)
		return
	}

	sessionID := uuid.NewString()

	raw, err := s.links.Issue(r.Context(), sessionID, email)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "could not issue a login link, please try again later")
		return
	}

	link := s.baseURL + "/onboarding?token=" + raw
	if err := s.mailer.SendMagicLink(r.Context(), email, link); err != nil {
		s.logger.Error(r.Context(), "magic link delivery failed", "error", err.Error())
		writeError(w, http.StatusInternalServerError, "could not send the login link, please try again later")
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{"status": "sent"})
}

type redeemRequest struct {
	Token string `json:"token"`
}

type redeemResponse struct {
	AccessToken string `json:"access_token"`
	SessionID   string `json:"session_id"`
	Email       string `json:"email,omitempty"`
}

func (s *Server) handleRedeem(w http.ResponseWriter, r *http.Request) {
	var req redeemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	grant, err := s.links.Redeem(r.Context(), req.Token)
	if err != nil {
		switch {
		case errors.Is(err, common.ErrTokenNotFound):
			writeError(w, http.StatusNotFound, "this login link is not valid, please request a new one")
		case errors.Is(err, common.ErrTokenAlreadyUsed):
			writeError(w, http.StatusConflict, "this login link was already used, please request a new one")
		case errors.Is(err, common.ErrTokenExpired):
			writeError(w, http.StatusGone, "this login link has expired, please request a new one")
		default:
			writeError(w, http.StatusServiceUnavailable, "could not verify the login link, please try again later")
		}
		return
	}

	accessToken, err := auth.GenerateToken(grant.SessionID, s.secretKey, s.accessTokenValidity)
	if err != nil {
		s.logger.Error(r.Context(), "access token generation failed", "error", err.Error())
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, redeemResponse{
		AccessToken: accessToken,
		SessionID:   grant.SessionID,
		Email:       grant.Email,
	})
}

type chatMessageRequest struct {
	Message string `json:"message"`
}

func (s *Server) handleChatMessage(w http.ResponseWriter, r *http.Request) {
	sessionID := sessionIDFromContext(r.Context())
	if sessionID == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req chatMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeError(w, http.StatusBadRequest, "message must not be empty")
		return
	}

	reply, err := s.chat.Send(r.Context(), sessionID, req.Message)
	if err != nil {
		var exceeded *ratelimit.ExceededError
		switch {
		case errors.As(err, &exceeded):
			writeError(w, http.StatusTooManyRequests, exceeded.Reason)
		case errors.Is(err, common.ErrStoreUnavailable):
			writeError(w, http.StatusServiceUnavailable, "service temporarily unavailable")
		default:
			writeError(w, http.StatusInternalServerError, "could not process the message")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"reply": reply})
}

type rateLimitResetRequest struct {
	Class      string `json:"class"`
	Identifier string `json:"identifier"`
}

func (s *Server) handleRateLimitReset(w http.ResponseWriter, r *http.Request) {
	var req rateLimitResetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var class ratelimit.Class
	switch req.Class {
	case string(ratelimit.ClassMagicLink):
		class = ratelimit.ClassMagicLink
	case string(ratelimit.ClassChat):
		class = ratelimit.ClassChat
	default:
		writeError(w, http.StatusBadRequest, "unknown rate limit class")
		return
	}
	if req.Identifier == "" {
		writeError(w, http.StatusBadRequest, "identifier is required")
		return
	}

	if err := s.limiter.Reset(r.Context(), class, req.Identifier); err != nil {
		writeError(w, http.StatusServiceUnavailable, "reset failed")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
