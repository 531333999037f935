// Package publish wraps outbound publish calls in a per-platform backoff
// policy. Each attempt covers the whole call including any token refresh,
// so a credential that expires between attempts is healed on the next one.
package publish

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/socialbridge/socialbridge/credentials"
	"github.com/socialbridge/socialbridge/internal/errors"
	"github.com/socialbridge/socialbridge/platforms"
)

// CredentialSource resolves a live token set, refreshing first when needed.
type CredentialSource interface {
	Ensure(ctx context.Context, userID string, platform credentials.Platform) (*platforms.TokenSet, *credentials.Credential, error)
}

// PartStatus reports the outcome of one part of a multi-part publish.
type PartStatus struct {
	Index     int    `json:"index"`
	ContentID string `json:"contentId,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Result is the terminal state of a publish operation. For threads a fatal
// failure at part k leaves parts 0..k-1 published; partial success is a
// valid, reportable terminal state, not a rollback trigger.
type Result struct {
	Platform   credentials.Platform `json:"platform"`
	ContentIDs []string             `json:"contentIds,omitempty"`
	Parts      []PartStatus         `json:"parts,omitempty"`
	Attempts   int                  `json:"attempts"`
}

type Service struct {
	adapters platforms.Registry
	tokens   CredentialSource
	policies map[credentials.Platform]Policy
	logger   zerolog.Logger
}

func NewService(adapters platforms.Registry, tokens CredentialSource, policies map[credentials.Platform]Policy, logger zerolog.Logger) *Service {
	if policies == nil {
		policies = DefaultPolicies
	}
	return &Service{
		adapters: adapters,
		tokens:   tokens,
		policies: policies,
		logger:   logger,
	}
}

func (s *Service) policy(platform credentials.Platform) Policy {
	if policy, ok := s.policies[platform]; ok {
		return policy
	}
	return Policy{MaxRetries: 2, BaseDelay: time.Second, MaxDelay: 20 * time.Second}
}

// Publish posts content through the user's connected platform account. The
// returned Result is populated even on error so callers can report partial
// thread success.
func (s *Service) Publish(ctx context.Context, userID string, platform credentials.Platform, post *platforms.Post) (*Result, error) {
	if _, ok := s.adapters.Get(platform); !ok {
		return nil, fmt.Errorf("%w: no adapter for platform %q", errors.ErrUnsupported, platform)
	}

	if post.Kind == platforms.PostKindThread {
		return s.publishThread(ctx, userID, platform, post)
	}

	result := &Result{Platform: platform}
	publishResult, attempts, err := s.attemptWithRetry(ctx, userID, platform, post)
	result.Attempts = attempts
	if err != nil {
		return result, err
	}
	result.ContentIDs = publishResult.ContentIDs
	return result, nil
}

// publishThread sequences the parts of a thread in order, each retried
// independently. A fatal failure halts the sequence without touching the
// already-published parts.
func (s *Service) publishThread(ctx context.Context, userID string, platform credentials.Platform, post *platforms.Post) (*Result, error) {
	result := &Result{Platform: platform}
	inReplyTo := ""

	for index, text := range post.Parts {
		part := &platforms.Post{
			Kind:      platforms.PostKindSingle,
			Text:      text,
			LinkURL:   post.LinkURL,
			InReplyTo: inReplyTo,
		}
		if index > 0 {
			// Only the head of the thread carries the link.
			part.LinkURL = ""
		}

		partResult, attempts, err := s.attemptWithRetry(ctx, userID, platform, part)
		result.Attempts += attempts
		if err != nil {
			result.Parts = append(result.Parts, PartStatus{Index: index, Error: err.Error()})
			s.logger.Warn().
				Str("platform", string(platform)).
				Int("part", index).
				Int("published", index).
				Msg("thread publish halted")
			return result, errors.Wrapf(err, "thread halted at part %d", index)
		}

		contentID := ""
		if len(partResult.ContentIDs) > 0 {
			contentID = partResult.ContentIDs[0]
		}
		result.Parts = append(result.Parts, PartStatus{Index: index, ContentID: contentID})
		result.ContentIDs = append(result.ContentIDs, partResult.ContentIDs...)
		inReplyTo = contentID
	}
	return result, nil
}

// attemptWithRetry runs one logical publish call under the platform's
// backoff policy: up to MaxRetries+1 total attempts, strictly ordered, and
// the last error surfaces when the ceiling is reached.
func (s *Service) attemptWithRetry(ctx context.Context, userID string, platform credentials.Platform, post *platforms.Post) (*platforms.PublishResult, int, error) {
	adapter, _ := s.adapters.Get(platform)
	policy := s.policy(platform)

	var lastErr error
	for attempt := 0; attempt <= policy.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := policy.delay(attempt-1, lastErr)
			s.logger.Debug().
				Str("platform", string(platform)).
				Int("attempt", attempt).
				Dur("delay", delay).
				Msg("retrying publish")
			if err := SleepFunc(ctx, delay); err != nil {
				return nil, attempt, err
			}
		}

		tokenSet, _, err := s.tokens.Ensure(ctx, userID, platform)
		if err == nil {
			var result *platforms.PublishResult
			result, err = adapter.Publish(ctx, tokenSet, post)
			if err == nil {
				return result, attempt + 1, nil
			}
		}

		lastErr = err
		if !policy.retryable(err) {
			return nil, attempt + 1, err
		}
	}
	return nil, policy.MaxRetries + 1, lastErr
}
