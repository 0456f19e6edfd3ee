package resilience

import (
	"context"
	"errors"
	"strings"

	infraerrors "github.com/jonesrussell/north-cloud/insights/infrastructure/errors"
	"github.com/jonesrussell/north-cloud/insights/infrastructure/retry"
	"github.com/jonesrussell/north-cloud/insights/internal/upstream"
)

var quotaPatterns = []string{
	"quota",
	"rate limit",
	"ratelimit",
	"too many requests",
	"resource_exhausted",
	"exhausted",
	"backend error",
}

// IsRetryable classifies upstream failures. HTTP 408, 429 and 5xx, quota
// messages and transient network errors are retried. Other 4xx, malformed
// responses and cancellations are not.
func IsRetryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, upstream.ErrMalformedResponse) {
		return false
	}

	if herr, ok := infraerrors.AsHTTPError(err); ok {
		if herr.Temporary() {
			return true
		}
		return matchesQuota(herr.Reason) || matchesQuota(herr.Message)
	}

	if matchesQuota(err.Error()) {
		return true
	}
	return retry.DefaultIsRetryable(err)
}

func matchesQuota(s string) bool {
	if s == "" {
		return false
	}
	lower := strings.ToLower(s)
	for _, p := range quotaPatterns {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}
