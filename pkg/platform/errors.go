// Package platform holds the collaborators the attestation core consumes from
// the device it runs on: claim accessors, signing keys, caller identity and
// buffer access checks.
package platform

// Error is a typed error for platform collaborators.
type Error string

func (e Error) Error() string { return string(e) }

const (
	// ErrClaimUnavailable is returned by a ClaimProvider that cannot produce a claim.
	ErrClaimUnavailable = Error("claim unavailable")
	// ErrKeyNotFound is returned when no signing key is provisioned in a slot.
	ErrKeyNotFound = Error("signing key not found")
	// ErrUnsupportedKey is returned for keys that cannot sign attestation tokens.
	ErrUnsupportedKey = Error("unsupported key type")
	// ErrAccessDenied is returned when a caller buffer fails the access check.
	ErrAccessDenied = Error("memory access denied")
	// ErrNoCaller is returned when the caller of the in-flight request is unknown.
	ErrNoCaller = Error("caller identity unavailable")
)
