package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Transport clients, stores and lock
// backends return these (optionally wrapped) so services can translate them
// into domain errors without knowing which backend produced them.
var (
	ErrNotFound    = errors.New("not found")
	ErrConflict    = errors.New("conflict")
	ErrUnavailable = errors.New("unavailable")
	ErrLockTimeout = errors.New("lock not acquired")
)
