package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores and infrastructure layers return
// these (optionally wrapped) so services can translate them into domain errors.
//
// These represent factual states about resources, not validation failures:
// - ErrNotFound: record or file does not exist in store
// - ErrUnusable: snapshot failed validation and could not be repaired
// - ErrCorrupt: artifact on disk is below the plausible-size floor
// - ErrUnavailable: storage or database temporarily unavailable
//
// Schema validation problems carry their own error lists and are reported
// through snapshot.Validate directly, not through sentinels.
var (
	ErrNotFound    = errors.New("not found")
	ErrUnusable    = errors.New("unusable")
	ErrCorrupt     = errors.New("corrupt")
	ErrUnavailable = errors.New("unavailable")
)
