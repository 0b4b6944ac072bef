package sentinel

import "errors"

// Sentinel errors for storage facts. Stores return these (optionally wrapped)
// and the registry service translates them into domain errors:
//   - ErrNotFound: no record, token or cache entry under the key
//   - ErrAlreadyUsed: a permanent key (fingerprint, identifier) is already claimed
//   - ErrInvalidState: the row exists but cannot take the requested change
//   - ErrUnavailable: backing service temporarily unreachable
var (
	ErrNotFound     = errors.New("not found")
	ErrAlreadyUsed  = errors.New("already used")
	ErrInvalidState = errors.New("invalid state")
	ErrUnavailable  = errors.New("unavailable")
)
