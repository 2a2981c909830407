// Package services implements the identity-resolution business logic: the
// resolver state machine, the merge engine, directory refresh, and sync apply.
// This file centralizes the service-level error taxonomy so that callers can
// branch on stable sentinel values with errors.Is.
//
// Propagation policy: repo.ErrConstraintViolation is the only error recovered
// inside the resolver (by re-running classification, bounded retries). Every
// other value below propagates to the caller untouched. Translation into
// user-facing messages or HTTP status codes is performed at the handler layer.
package services

import "errors"

var (
	// ErrInvalidArgument is returned when a resolution is requested with
	// neither an account identifier nor a phone number. Fatal to the call;
	// never retried.
	ErrInvalidArgument = errors.New("at least one of aci/e164 is required")

	// ErrConflict is returned when the resolver exhausted its retries under
	// write contention. The caller decides whether to retry later.
	ErrConflict = errors.New("resolution retries exhausted under contention")

	// ErrMissingRecipient is returned when a lookup by RecipientID finds
	// neither a live row nor a remap-cache entry. It indicates a logic bug or
	// an evicted remap entry; callers should re-resolve from the original
	// identifier.
	ErrMissingRecipient = errors.New("recipient not found and no remap entry")

	// ErrMergeFailure wraps any error raised during the multi-table
	// re-keying of a merge. The enclosing transaction rolls back entirely;
	// no partial merge is ever visible.
	ErrMergeFailure = errors.New("recipient merge failed")
)
