package oai

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a failed ListRecords call.
type ErrorKind int

const (
	// Exhausted: every retry attempt for a physical request failed.
	Exhausted ErrorKind = iota + 1
	// Rejected: the endpoint answered with a non-retryable HTTP status.
	Rejected
	// ProtocolError: the endpoint returned a structured OAI error code
	// other than the empty-result signal.
	ProtocolError
	// ProtocolAnomaly: pagination did not terminate within the defensive
	// page bound.
	ProtocolAnomaly
)

func (k ErrorKind) String() string {
	switch k {
	case Exhausted:
		return "exhausted"
	case Rejected:
		return "rejected"
	case ProtocolError:
		return "protocol-error"
	case ProtocolAnomaly:
		return "protocol-anomaly"
	}
	return fmt.Sprintf("ErrorKind(%d)", int(k))
}

var ErrTooManyPages = errors.New("resumption loop exceeded page bound")

// Error is the failure of one logical ListRecords call. Code carries the OAI
// error code, Status the HTTP status, whichever applies.
type Error struct {
	Kind    ErrorKind
	Code    string
	Message string
	Status  int
	Err     error
}

func (e *Error) Error() string {
	switch {
	case e.Code != "":
		return fmt.Sprintf("oai: %s: %s %s", e.Kind, e.Code, e.Message)
	case e.Status != 0:
		return fmt.Sprintf("oai: %s: status %d", e.Kind, e.Status)
	case e.Err != nil:
		return fmt.Sprintf("oai: %s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("oai: %s", e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf extracts the ErrorKind from err, or zero when err is not an *Error.
func KindOf(err error) ErrorKind {
	var oe *Error
	if errors.As(err, &oe) {
		return oe.Kind
	}
	return 0
}
