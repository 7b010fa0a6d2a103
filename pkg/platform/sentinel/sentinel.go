package sentinel

import "errors"

// Sentinel errors for storage facts. Stores return these (optionally wrapped)
// and services translate them into domain error codes:
//   - ErrNotFound: the collection, token or registry row does not exist
//   - ErrAlreadyUsed: a single-use value (voucher nonce, login challenge) was consumed
//   - ErrConflict: a unique key (collection address) is taken
//   - ErrUnavailable: a backing service is temporarily unreachable
var (
	ErrNotFound    = errors.New("not found")
	ErrConflict    = errors.New("conflict")
	ErrAlreadyUsed = errors.New("already used")
	ErrUnavailable = errors.New("unavailable")
)
