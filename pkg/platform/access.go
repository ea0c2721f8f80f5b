package platform

import "fmt"

// Access is the kind of access requested on a caller buffer.
type Access int

const (
	AccessRead Access = iota + 1
	AccessWrite
)

func (a Access) String() string {
	switch a {
	case AccessRead:
		return "read"
	case AccessWrite:
		return "write"
	}
	return fmt.Sprintf("access(%d)", int(a))
}

// AccessChecker checks a caller buffer before the service touches it.
type AccessChecker interface {
	CheckMemoryAccess(buf []byte, access Access) error
}

// BufferChecker rejects nil and empty buffers, and buffers larger than MaxLen
// when MaxLen is set.
type BufferChecker struct {
	MaxLen int
}

// CheckMemoryAccess implements AccessChecker.
func (b BufferChecker) CheckMemoryAccess(buf []byte, access Access) error {
	if len(buf) == 0 {
		return fmt.Errorf("%w: empty buffer for %s", ErrAccessDenied, access)
	}
	if b.MaxLen > 0 && len(buf) > b.MaxLen {
		return fmt.Errorf("%w: %s of %d bytes exceeds %d", ErrAccessDenied, access, len(buf), b.MaxLen)
	}
	return nil
}
