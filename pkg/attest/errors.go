package attest

import "errors"

// Error is an attestation error kind. Detail errors wrap exactly one kind.
type Error string

func (e Error) Error() string { return string(e) }

const (
	// ErrInvalidInput is returned for bad challenge sizes, empty buffers and
	// buffers failing the access check.
	ErrInvalidInput = Error("invalid input")
	// ErrClaimUnavailable is returned when a mandatory claim cannot be resolved.
	ErrClaimUnavailable = Error("claim unavailable")
	// ErrTokenBufferOverflow is returned when the token does not fit the caller buffer.
	ErrTokenBufferOverflow = Error("token buffer overflow")
	// ErrInitFailed is returned when the boot data fails validation on first load.
	ErrInitFailed = Error("attestation init failed")
	// ErrGeneral covers encoder and signer failures.
	ErrGeneral = Error("attestation failure")

	// ErrInvalidLifecycleValue is wrapped with ErrClaimUnavailable when the
	// security lifecycle is outside the PSA states.
	ErrInvalidLifecycleValue = Error("invalid security lifecycle value")
)

// Kind returns the kind an error belongs to. A nil error has no kind and
// unclassified errors are ErrGeneral.
func Kind(err error) Error {
	if err == nil {
		return ""
	}
	for _, kind := range []Error{
		ErrInvalidInput,
		ErrTokenBufferOverflow,
		ErrInitFailed,
		ErrClaimUnavailable,
		ErrGeneral,
	} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return ErrGeneral
}
