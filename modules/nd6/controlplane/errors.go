package nd6

import "errors"

// API error taxonomy. NhAdd and NhDel return one of these (wrapped with
// context via fmt.Errorf's %w) on failure, so callers can branch with
// errors.Is. The Post* methods return ring.ErrAgain on a full ring, and
// Run returns the error that ended its context.
var (
	ErrInvalid     = errors.New("nd6: invalid argument")
	ErrNotFound    = errors.New("nd6: not found")
	ErrExists      = errors.New("nd6: already exists")
	ErrBusy        = errors.New("nd6: busy")
	ErrOverflow    = errors.New("nd6: overflow")
	ErrResource    = errors.New("nd6: resource exhausted")
	ErrUnreachable = errors.New("nd6: resolution failed")
)
