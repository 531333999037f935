package publish

import (
	"context"
	"math/rand"
	"time"

	"github.com/socialbridge/socialbridge/credentials"
	"github.com/socialbridge/socialbridge/internal/errors"
)

// SleepFunc waits out a backoff delay. It can be overridden in tests.
var SleepFunc = sleepContext

// jitterMax is the upper bound of the random component added to every
// backoff delay so synchronized callers fan out.
const jitterMax = time.Second

// Policy is the per-platform retry configuration for one outbound publish
// call.
type Policy struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	Retryable  func(error) bool
}

// DefaultRetryable classifies transient provider failures: rate limits,
// 5xx responses, and timeouts retry; everything else is fatal.
func DefaultRetryable(err error) bool {
	return errors.Is(err, errors.ErrProviderUnavailable) || errors.Is(err, errors.ErrRateLimited)
}

// DefaultPolicies is the per-platform backoff table. Twitter and the Graph
// platforms rate-limit aggressively enough to warrant a higher ceiling.
var DefaultPolicies = map[credentials.Platform]Policy{
	credentials.PlatformTwitter:   {MaxRetries: 3, BaseDelay: 2 * time.Second, MaxDelay: 30 * time.Second},
	credentials.PlatformLinkedIn:  {MaxRetries: 3, BaseDelay: 2 * time.Second, MaxDelay: 30 * time.Second},
	credentials.PlatformFacebook:  {MaxRetries: 2, BaseDelay: time.Second, MaxDelay: 20 * time.Second},
	credentials.PlatformYouTube:   {MaxRetries: 2, BaseDelay: 2 * time.Second, MaxDelay: 20 * time.Second},
	credentials.PlatformInstagram: {MaxRetries: 2, BaseDelay: time.Second, MaxDelay: 20 * time.Second},
	credentials.PlatformGoogle:    {MaxRetries: 2, BaseDelay: time.Second, MaxDelay: 10 * time.Second},
}

func (p Policy) retryable(err error) bool {
	if p.Retryable != nil {
		return p.Retryable(err)
	}
	return DefaultRetryable(err)
}

// delay computes the wait before retry number attempt+1:
// min(BaseDelay·2^attempt + random(0,1s), MaxDelay). A provider-supplied
// Retry-After takes precedence when it is longer.
func (p Policy) delay(attempt int, lastErr error) time.Duration {
	backoff := p.BaseDelay << uint(attempt)
	backoff += time.Duration(rand.Int63n(int64(jitterMax)))
	if backoff > p.MaxDelay {
		backoff = p.MaxDelay
	}

	var rateLimitErr *errors.RateLimitError
	if errors.As(lastErr, &rateLimitErr) && rateLimitErr.RetryAfter > backoff {
		return rateLimitErr.RetryAfter
	}
	return backoff
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
