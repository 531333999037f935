package server

import (
	"net/http"

	"github.com/socialbridge/socialbridge/connect"
	"github.com/socialbridge/socialbridge/credentials"
	"github.com/socialbridge/socialbridge/internal/errors"
)

func platformFromRequest(r *http.Request) (credentials.Platform, bool) {
	platform := credentials.Platform(r.PathValue("platform"))
	return platform, credentials.IsValidPlatform(platform)
}

// AuthorizeHandler starts a connect attempt and returns the provider
// authorization URL. For the OAuth 1.0a family this persists a pending
// handshake as a side effect.
func (s *Server) AuthorizeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		platform, ok := platformFromRequest(r)
		if !ok {
			writeJSONError(w, "unknown_platform", "unsupported platform", http.StatusNotFound)
			return
		}

		userID := userIDFromContext(r.Context())
		returnAddress := r.URL.Query().Get("return_to")

		result, err := s.connects.BeginConnect(r.Context(), userID, platform, returnAddress, s.callbackURL(string(platform)))
		if err != nil {
			s.logger.Error().Str("platform", string(platform)).Err(err).Msg("failed to start connect")
			writeJSONError(w, "authorize_failed", "could not start the connect flow", http.StatusBadGateway)
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}

// CallbackHandler terminates a connect attempt. Whatever happened, the end
// user leaves with a redirect to a known return address.
func (s *Server) CallbackHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		platform, ok := platformFromRequest(r)
		if !ok {
			writeJSONError(w, "unknown_platform", "unsupported platform", http.StatusNotFound)
			return
		}

		query := r.URL.Query()
		params := connect.CallbackParams{
			Code:          query.Get("code"),
			State:         query.Get("state"),
			ProviderError: query.Get("error"),
			RequestToken:  query.Get("oauth_token"),
			Verifier:      query.Get("oauth_verifier"),
			Denied:        query.Get("denied"),
			CallbackURL:   s.callbackURL(string(platform)),
		}

		redirect, err := s.connects.CompleteCallback(r.Context(), platform, params)
		if err != nil {
			writeJSONError(w, "callback_failed", "could not complete the connect flow", http.StatusBadGateway)
			return
		}
		http.Redirect(w, r, redirect.URL, http.StatusSeeOther)
	}
}

// StatusHandler reports whether the platform is connected, after a live
// refresh-if-needed check.
func (s *Server) StatusHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		platform, ok := platformFromRequest(r)
		if !ok {
			writeJSONError(w, "unknown_platform", "unsupported platform", http.StatusNotFound)
			return
		}

		status, err := s.connects.Status(r.Context(), userIDFromContext(r.Context()), platform)
		if err != nil {
			if errors.Is(err, errors.ErrProviderUnavailable) || errors.Is(err, errors.ErrRateLimited) {
				writeJSONError(w, "provider_unavailable", "provider temporarily unavailable", http.StatusBadGateway)
				return
			}
			s.logger.Error().Str("platform", string(platform)).Err(err).Msg("status check failed")
			writeJSONError(w, "server_error", "could not determine connection status", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, status)
	}
}

// DisconnectHandler clears the credential record. Disconnecting a platform
// that was never connected succeeds.
func (s *Server) DisconnectHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		platform, ok := platformFromRequest(r)
		if !ok {
			writeJSONError(w, "unknown_platform", "unsupported platform", http.StatusNotFound)
			return
		}

		if err := s.connects.Disconnect(r.Context(), userIDFromContext(r.Context()), platform); err != nil {
			s.logger.Error().Str("platform", string(platform)).Err(err).Msg("disconnect failed")
			writeJSONError(w, "server_error", "could not disconnect", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"disconnected": true})
	}
}
