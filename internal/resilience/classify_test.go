package resilience

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	infraerrors "github.com/jonesrussell/north-cloud/insights/infrastructure/errors"
	"github.com/jonesrussell/north-cloud/insights/internal/upstream"
)

func TestIsRetryable(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"429", &infraerrors.HTTPError{StatusCode: http.StatusTooManyRequests}, true},
		{"500", &infraerrors.HTTPError{StatusCode: http.StatusInternalServerError}, true},
		{"503 wrapped", fmt.Errorf("run report: %w", &infraerrors.HTTPError{StatusCode: http.StatusServiceUnavailable}), true},
		{"400", &infraerrors.HTTPError{StatusCode: http.StatusBadRequest}, false},
		{"401", &infraerrors.HTTPError{StatusCode: http.StatusUnauthorized, Message: "invalid credentials"}, false},
		{"403 quota", &infraerrors.HTTPError{StatusCode: http.StatusForbidden, Reason: "RESOURCE_EXHAUSTED"}, true},
		{"quota message", errors.New("Exhausted concurrent requests quota"), true},
		{"connection reset", errors.New("read tcp: connection reset by peer"), true},
		{"cancelled", fmt.Errorf("run report: %w", context.Canceled), false},
		{"malformed", fmt.Errorf("%w: eof", upstream.ErrMalformedResponse), false},
		{"other", errors.New("invalid argument"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}
