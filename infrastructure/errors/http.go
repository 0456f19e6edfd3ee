// Package errors holds error types shared by the insights transports.
package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// MinErrorStatusCode is the lowest status treated as a failure.
const MinErrorStatusCode = 400

// maxBodyBytes bounds how much of an error body is kept.
const maxBodyBytes = 64 << 10

// HTTPError is a non-2xx response from an upstream API.
type HTTPError struct {
	StatusCode int
	Status     string
	Body       string
	Message    string
	// Reason is the machine-readable status string, e.g. RESOURCE_EXHAUSTED.
	Reason string
}

func (e *HTTPError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("HTTP error (%d %s): %s", e.StatusCode, e.Status, e.Message)
	}
	return fmt.Sprintf("HTTP error: %d %s", e.StatusCode, e.Status)
}

// Temporary reports whether the status is worth retrying: 408, 429 and 5xx.
func (e *HTTPError) Temporary() bool {
	switch {
	case e.StatusCode == http.StatusRequestTimeout, e.StatusCode == http.StatusTooManyRequests:
		return true
	case e.StatusCode >= http.StatusInternalServerError:
		return true
	default:
		return false
	}
}

// errorEnvelope covers the shapes seen in practice: {"error":"..."},
// {"message":"..."}, Google's {"error":{"code","message","status"}} and
// JSON:API {"errors":[...]}.
type errorEnvelope struct {
	Error   json.RawMessage `json:"error"`
	Message string          `json:"message"`
	Errors  []struct {
		Title  string `json:"title"`
		Detail string `json:"detail"`
	} `json:"errors"`
}

type googleError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status"`
}

// ParseHTTPError converts a failed response into *HTTPError. It returns nil
// for statuses below MinErrorStatusCode. The body is consumed but not closed.
func ParseHTTPError(resp *http.Response) error {
	if resp.StatusCode < MinErrorStatusCode {
		return nil
	}

	herr := &HTTPError{StatusCode: resp.StatusCode, Status: resp.Status}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		herr.Message = fmt.Sprintf("read error body: %v", err)
		return herr
	}
	herr.Body = string(raw)
	herr.Message = strings.TrimSpace(herr.Body)

	var env errorEnvelope
	if json.Unmarshal(raw, &env) != nil {
		return herr
	}

	var ge googleError
	var plain string
	switch {
	case len(env.Error) > 0 && json.Unmarshal(env.Error, &ge) == nil && ge.Message != "":
		herr.Message = ge.Message
		herr.Reason = ge.Status
	case len(env.Error) > 0 && json.Unmarshal(env.Error, &plain) == nil && plain != "":
		herr.Message = plain
	case env.Message != "":
		herr.Message = env.Message
	case len(env.Errors) > 0:
		parts := make([]string, 0, len(env.Errors))
		for _, e := range env.Errors {
			if e.Detail != "" {
				parts = append(parts, e.Title+": "+e.Detail)
				continue
			}
			parts = append(parts, e.Title)
		}
		herr.Message = strings.Join(parts, "; ")
	}
	return herr
}

// AsHTTPError unwraps err to an *HTTPError.
func AsHTTPError(err error) (*HTTPError, bool) {
	var herr *HTTPError
	if errors.As(err, &herr) {
		return herr, true
	}
	return nil, false
}

// GetHTTPStatusCode returns the status carried by err, if any.
func GetHTTPStatusCode(err error) (int, bool) {
	if herr, ok := AsHTTPError(err); ok {
		return herr.StatusCode, true
	}
	return 0, false
}
