package xnat

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
)

// ConfigError reports a credential that could not be resolved for a server.
type ConfigError struct {
	Credential string
	URL        string
	Err        error
}

func (e *ConfigError) Error() string {
	msg := fmt.Sprintf("authorization required for %s, cannot find token for credential %q", e.URL, e.Credential)
	if e.Err == nil {
		return msg
	}
	return fmt.Sprintf("%s: %v", msg, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// ConnectionError reports a transport failure (DNS, TLS, refused connection)
// before any HTTP response was received.
type ConnectionError struct {
	URL string
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connect to XNAT server %s: %v", e.URL, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// RequestError reports a non-2xx response from the server.
type RequestError struct {
	Method     string
	URL        string
	StatusCode int
	Reason     string
}

func (e *RequestError) Error() string {
	return "request to XNAT server failed: " + e.Reason
}

// AmbiguousResultError reports a query for a unique identifier that matched
// more than one record.
type AmbiguousResultError struct {
	Kind  string
	ID    string
	Count int
}

func (e *AmbiguousResultError) Error() string {
	return fmt.Sprintf("non-unique %s identifier %q (%d matches)", e.Kind, e.ID, e.Count)
}

// reasonPhrase prefers the phrase sent by the server and falls back to the
// standard text for the status code.
func reasonPhrase(resp *http.Response) string {
	code := strconv.Itoa(resp.StatusCode)
	reason := strings.TrimSpace(strings.TrimPrefix(resp.Status, code))
	if reason != "" {
		return reason
	}
	if text := http.StatusText(resp.StatusCode); text != "" {
		return text
	}
	return "status " + code
}
