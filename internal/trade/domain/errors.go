package trade

import "errors"

var (
	// ErrInvalidTransition is returned when a status change is not in the
	// transition table.
	ErrInvalidTransition = errors.New("trade: invalid transition")
	// ErrUnauthorizedActor is returned when the caller is not the party or
	// role the operation belongs to.
	ErrUnauthorizedActor = errors.New("trade: unauthorized actor")
	// ErrPreconditionFailed is returned when a document gate is not
	// satisfied.
	ErrPreconditionFailed = errors.New("trade: precondition failed")
	// ErrAlreadyExists is surfaced by create-if-absent when the trade is
	// already materialized; callers treat it as success.
	ErrAlreadyExists = errors.New("trade: already exists")
	// ErrInvalidTerms is returned when terms are not positive.
	ErrInvalidTerms = errors.New("trade: invalid terms")
	// ErrNotFound is returned when a trade does not exist.
	ErrNotFound = errors.New("trade: not found")
	// ErrNilTrade is returned when persisting a nil trade.
	ErrNilTrade = errors.New("trade: nil trade")
)
