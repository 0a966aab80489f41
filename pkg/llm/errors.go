package llm

import (
	"context"
	"errors"
	"net"
	"regexp"
	"strings"
)

// ErrEmptyResponse is returned when the model answers with no text.
var ErrEmptyResponse = errors.New("empty response from model")

// TransientError marks a failure the caller may retry.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string { return "transient: " + e.Err.Error() }
func (e *TransientError) Unwrap() error { return e.Err }

// PermanentError marks a failure that will not succeed on retry.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return "permanent: " + e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

func IsTransient(err error) bool {
	var t *TransientError
	return errors.As(err, &t)
}

func IsPermanent(err error) bool {
	var p *PermanentError
	return errors.As(err, &p)
}

// transientPattern matches backend messages worth retrying. Status codes and
// "eof" must stand alone so "1500 tokens" or "geofence" do not qualify.
var transientPattern = regexp.MustCompile(
	`\b(?:429|500|502|503|504)\b|rate limit|too many requests|overloaded|timeout|connection refused|connection reset|\beof\b`)

// classify wraps a raw backend error in the transport's failure taxonomy.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if IsTransient(err) || IsPermanent(err) {
		return err
	}
	if errors.Is(err, context.Canceled) {
		return &PermanentError{Err: err}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &TransientError{Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return &TransientError{Err: err}
	}

	if transientPattern.MatchString(strings.ToLower(err.Error())) {
		return &TransientError{Err: err}
	}
	return &PermanentError{Err: err}
}
