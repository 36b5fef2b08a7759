package intelliclima

import (
	"errors"
	"fmt"
	"strings"
)

// AuthError means the backend rejected the credentials or the cached
// token. The client invalidates its session before returning it.
type AuthError struct {
	Op  string
	Err error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("intelliclima: auth failed during %s: %s", e.Op, e.Err)
	}
	return fmt.Sprintf("intelliclima: auth failed during %s", e.Op)
}

func (e *AuthError) Unwrap() error { return e.Err }

// TransportError wraps network-level failures, including timeouts.
type TransportError struct {
	Op      string
	URL     string
	Timeout bool
	Err     error
}

func (e *TransportError) Error() string {
	kind := "transport error"
	if e.Timeout {
		kind = "timeout"
	}
	return fmt.Sprintf("intelliclima: %s during %s (%s): %s", kind, e.Op, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ProfileAttempt records why one endpoint profile was discarded during
// resolution.
type ProfileAttempt struct {
	Profile EndpointProfile
	Err     error
}

// EndpointResolutionError means every known endpoint profile failed for
// an operation. It is fatal for the session: no profile stays pinned.
type EndpointResolutionError struct {
	Op       string
	Attempts []ProfileAttempt
}

func (e *EndpointResolutionError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "intelliclima: no endpoint profile works for %s (%d tried)", e.Op, len(e.Attempts))
	for _, a := range e.Attempts {
		fmt.Fprintf(&b, "; %s: %s", a.Profile, a.Err)
	}
	return b.String()
}

// MalformedFrameError is returned when an ECO frame does not match the
// fixed layout (length, markers or checksum).
type MalformedFrameError struct {
	Reason string
	Frame  []byte
}

func (e *MalformedFrameError) Error() string {
	if len(e.Frame) > 0 {
		return fmt.Sprintf("intelliclima: malformed ECO frame (%s): %X", e.Reason, e.Frame)
	}
	return fmt.Sprintf("intelliclima: malformed ECO frame (%s)", e.Reason)
}

// UnrecognizedStateError is returned when a raw speed or mode value is
// outside the known tables. Callers should treat the device state as
// unknown instead of defaulting.
type UnrecognizedStateError struct {
	Field string
	Value int
}

func (e *UnrecognizedStateError) Error() string {
	return fmt.Sprintf("intelliclima: unrecognized ECO %s value %d", e.Field, e.Value)
}

// WriteAckMismatchError means the backend accepted an ECO write but
// echoed a different serial or frame than the one sent. The write must
// be treated as failed.
type WriteAckMismatchError struct {
	Serial        string
	ExpectedTrama string
	GotSerial     string
	GotTrama      string
}

func (e *WriteAckMismatchError) Error() string {
	return fmt.Sprintf("intelliclima: ECO write ack mismatch for serial %s: expected trama %s, got serial=%q trama=%q",
		e.Serial, e.ExpectedTrama, e.GotSerial, e.GotTrama)
}

// IsAuthError reports whether err is (or wraps) an AuthError.
func IsAuthError(err error) bool {
	var ae *AuthError
	return errors.As(err, &ae)
}

// IsTimeout reports whether err is a transport timeout.
func IsTimeout(err error) bool {
	var te *TransportError
	return errors.As(err, &te) && te.Timeout
}
