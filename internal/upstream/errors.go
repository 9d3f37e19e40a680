// Package upstream dispatches encoded requests to provider endpoints,
// synthesizing candidate URLs, generating tolerant request variants, and
// retrying around the quirks real gateways exhibit.
package upstream

import "fmt"

// ErrorMessage carries an upstream failure across layers together with the
// HTTP status the boundary should echo. Body preserves the first upstream
// error body observed, which is usually the most truthful one.
type ErrorMessage struct {
	StatusCode int
	Body       string
	Err        error

	// echo marks the status as worth surfacing verbatim; retryable failures
	// fold into a 502 at the boundary instead.
	echo bool
}

func (e *ErrorMessage) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Body != "" {
		return e.Body
	}
	return fmt.Sprintf("upstream error: status %d", e.StatusCode)
}

// NewError builds an ErrorMessage from a status and message.
func NewError(statusCode int, format string, args ...interface{}) *ErrorMessage {
	return &ErrorMessage{StatusCode: statusCode, Err: fmt.Errorf(format, args...)}
}
