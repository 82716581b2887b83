package negotiation

import "errors"

var (
	// ErrInvalidSession is returned when required session fields are missing.
	ErrInvalidSession = errors.New("negotiation: invalid session")
	// ErrNotFound is returned when a session does not exist.
	ErrNotFound = errors.New("negotiation: session not found")
	// ErrUnauthorizedActor is returned when the caller is not one of the
	// session's two parties.
	ErrUnauthorizedActor = errors.New("negotiation: unauthorized actor")
	// ErrInvalidState is returned when an operation does not apply to the
	// session's current state, e.g. agreeing before any terms exist.
	ErrInvalidState = errors.New("negotiation: invalid state")
	// ErrStaleTerms is returned when an agreement references a superseded
	// terms version.
	ErrStaleTerms = errors.New("negotiation: stale terms version")
	// ErrInvalidTerms is returned when proposed terms are not positive.
	ErrInvalidTerms = errors.New("negotiation: invalid terms")
)
