// Provides common automerge errors definitions.
package automerge_errors

import "errors"

var (
	ErrInvalidChangeResult = errors.New("automerge: change block must return the root it was given")
	ErrMissingDependency   = errors.New("automerge: change depends on an unseen change")
	ErrMalformedEncoding   = errors.New("automerge: malformed encoding")

	ErrUnknownObject   = errors.New("automerge: unknown object")
	ErrUnknownElement  = errors.New("automerge: unknown list element")
	ErrIndexOutOfRange = errors.New("automerge: list index out of range")
	ErrNotCounter      = errors.New("automerge: value is not a counter")
	ErrBadValue        = errors.New("automerge: unsupported value type")
	ErrBadActor        = errors.New("automerge: bad actor id")
	ErrForkedActor     = errors.New("automerge: actor reused a sequence number with different content")
	ErrDuplicateChange = errors.New("automerge: change already applied")
	ErrProxyExpired    = errors.New("automerge: proxy used outside of its change block")
	ErrClosed          = errors.New("automerge: no replica open")
)
