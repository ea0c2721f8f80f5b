package iat

import "fmt"

// Lifecycle is the security lifecycle state of the device. The high nibble of
// the low 16 bits carries the PSA state, the low byte an implementation defined
// sub-state.
type Lifecycle uint32

// PSA security lifecycle states.
const (
	LifecycleUnknown                Lifecycle = 0x0000
	LifecycleAssemblyAndTest        Lifecycle = 0x1000
	LifecyclePSARoTProvisioning     Lifecycle = 0x2000
	LifecycleSecured                Lifecycle = 0x3000
	LifecycleNonPSARoTDebug         Lifecycle = 0x4000
	LifecycleRecoverablePSARoTDebug Lifecycle = 0x5000
	LifecycleDecommissioned         Lifecycle = 0x6000
)

const (
	lifecycleStateMask    Lifecycle = 0xff00
	lifecycleSubStateMask Lifecycle = 0x00ff
)

// State returns the lifecycle with the implementation defined sub-state cleared.
func (l Lifecycle) State() Lifecycle {
	return l & lifecycleStateMask
}

// Valid reports whether l is one of the PSA lifecycle states, with an
// optional sub-state in the low byte.
func (l Lifecycle) Valid() bool {
	if l&^(lifecycleStateMask|lifecycleSubStateMask) != 0 {
		return false
	}
	switch l.State() {
	case LifecycleUnknown,
		LifecycleAssemblyAndTest,
		LifecyclePSARoTProvisioning,
		LifecycleSecured,
		LifecycleNonPSARoTDebug,
		LifecycleRecoverablePSARoTDebug,
		LifecycleDecommissioned:
		return true
	}
	return false
}

func (l Lifecycle) String() string {
	var name string
	switch l.State() {
	case LifecycleUnknown:
		name = "unknown"
	case LifecycleAssemblyAndTest:
		name = "assembly-and-test"
	case LifecyclePSARoTProvisioning:
		name = "psa-rot-provisioning"
	case LifecycleSecured:
		name = "secured"
	case LifecycleNonPSARoTDebug:
		name = "non-psa-rot-debug"
	case LifecycleRecoverablePSARoTDebug:
		name = "recoverable-psa-rot-debug"
	case LifecycleDecommissioned:
		name = "decommissioned"
	default:
		return fmt.Sprintf("invalid(%#x)", uint32(l))
	}
	if sub := l & lifecycleSubStateMask; sub != 0 {
		return fmt.Sprintf("%s+%#02x", name, uint32(sub))
	}
	return name
}

// ParseLifecycle maps a lifecycle name, as printed by String without a
// sub-state, to its value.
func ParseLifecycle(name string) (Lifecycle, error) {
	for _, l := range []Lifecycle{
		LifecycleUnknown,
		LifecycleAssemblyAndTest,
		LifecyclePSARoTProvisioning,
		LifecycleSecured,
		LifecycleNonPSARoTDebug,
		LifecycleRecoverablePSARoTDebug,
		LifecycleDecommissioned,
	} {
		if l.String() == name {
			return l, nil
		}
	}
	return 0, fmt.Errorf("unknown security lifecycle %q", name)
}
