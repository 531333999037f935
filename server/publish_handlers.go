package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/socialbridge/socialbridge/internal/errors"
	"github.com/socialbridge/socialbridge/platforms"
	"github.com/socialbridge/socialbridge/publish"
)

// publishRequest is the payload of POST /publish/{platform}. Kind selects
// the variant; unused fields are ignored.
type publishRequest struct {
	Kind                string   `json:"kind"`
	Text                string   `json:"text,omitempty"`
	Parts               []string `json:"parts,omitempty"`
	PollOptions         []string `json:"pollOptions,omitempty"`
	PollDurationMinutes int      `json:"pollDurationMinutes,omitempty"`
	PageID              string   `json:"pageId,omitempty"`
	LinkURL             string   `json:"linkUrl,omitempty"`
}

type publishErrorResponse struct {
	Error            string          `json:"error"`
	ErrorDescription string          `json:"error_description"`
	Result           *publish.Result `json:"result,omitempty"`
}

// PublishHandler posts content through a connected platform. Failures name
// the reason; thread failures include the partial result.
func (s *Server) PublishHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		platform, ok := platformFromRequest(r)
		if !ok {
			writeJSONError(w, "unknown_platform", "unsupported platform", http.StatusNotFound)
			return
		}

		var request publishRequest
		if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
			writeJSONError(w, "invalid_request", "failed to parse publish payload", http.StatusBadRequest)
			return
		}

		post, err := postFromRequest(request)
		if err != nil {
			writeJSONError(w, "invalid_request", err.Error(), http.StatusBadRequest)
			return
		}

		result, err := s.publisher.Publish(r.Context(), userIDFromContext(r.Context()), platform, post)
		if err != nil {
			code, status := classifyPublishError(err)
			s.logger.Warn().Str("platform", string(platform)).Str("reason", code).Msg("publish failed")
			writeJSON(w, status, publishErrorResponse{
				Error:            code,
				ErrorDescription: err.Error(),
				Result:           result,
			})
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}

func postFromRequest(request publishRequest) (*platforms.Post, error) {
	post := &platforms.Post{
		Kind:         platforms.PostKind(request.Kind),
		Text:         request.Text,
		Parts:        request.Parts,
		PollOptions:  request.PollOptions,
		PollDuration: time.Duration(request.PollDurationMinutes) * time.Minute,
		PageID:       request.PageID,
		LinkURL:      request.LinkURL,
	}

	switch post.Kind {
	case platforms.PostKindSingle:
		if post.Text == "" && post.LinkURL == "" {
			return nil, errors.Wrapf(errors.ErrUnsupported, "single post needs text or a link")
		}
	case platforms.PostKindThread:
		if len(post.Parts) == 0 {
			return nil, errors.Wrapf(errors.ErrUnsupported, "thread post needs at least one part")
		}
	case platforms.PostKindPoll:
		if len(post.PollOptions) < 2 {
			return nil, errors.Wrapf(errors.ErrUnsupported, "poll post needs at least two options")
		}
	case platforms.PostKindPage:
		if post.PageID == "" {
			return nil, errors.Wrapf(errors.ErrUnsupported, "page post needs a pageId")
		}
	default:
		return nil, errors.Wrapf(errors.ErrUnsupported, "unknown post kind %q", request.Kind)
	}
	return post, nil
}

func classifyPublishError(err error) (code string, statusCode int) {
	switch {
	case errors.Is(err, errors.ErrNotConnected):
		return "not_connected", http.StatusNotFound
	case errors.Is(err, errors.ErrConnectionExpired):
		return "connection_expired", http.StatusForbidden
	case errors.Is(err, errors.ErrContentRejected):
		return "content_rejected", http.StatusUnprocessableEntity
	case errors.Is(err, errors.ErrRateLimited):
		return "rate_limited", http.StatusTooManyRequests
	case errors.Is(err, errors.ErrProviderUnavailable):
		return "provider_unavailable", http.StatusBadGateway
	case errors.Is(err, errors.ErrUnsupported):
		return "unsupported", http.StatusBadRequest
	default:
		return "server_error", http.StatusInternalServerError
	}
}
