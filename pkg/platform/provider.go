package platform

import (
	"context"
	"fmt"

	"github.com/DIMO-Network/initial-attestation/pkg/iat"
)

// ClaimProvider resolves the claims a bootloader did not supply. Every method
// returns an error wrapping ErrClaimUnavailable when the platform cannot
// produce the claim.
type ClaimProvider interface {
	BootSeed(ctx context.Context) ([]byte, error)
	ImplementationID(ctx context.Context) ([]byte, error)
	HardwareVersion(ctx context.Context) (string, error)
	SecurityLifecycle(ctx context.Context) (iat.Lifecycle, error)
	VerificationServiceURL(ctx context.Context) (string, error)
	ProfileDefinition(ctx context.Context) (string, error)
}

// StaticProvider serves claims fixed at provisioning time. Empty values are
// reported as unavailable.
type StaticProvider struct {
	Seed                []byte
	Implementation      []byte
	HWVersion           string
	Lifecycle           iat.Lifecycle
	VerificationService string
	Profile             string
}

var _ ClaimProvider = (*StaticProvider)(nil)

// BootSeed implements ClaimProvider.
func (s *StaticProvider) BootSeed(context.Context) ([]byte, error) {
	return nonEmpty("boot seed", s.Seed)
}

// ImplementationID implements ClaimProvider.
func (s *StaticProvider) ImplementationID(context.Context) ([]byte, error) {
	return nonEmpty("implementation id", s.Implementation)
}

// HardwareVersion implements ClaimProvider.
func (s *StaticProvider) HardwareVersion(context.Context) (string, error) {
	return nonEmptyString("hardware version", s.HWVersion)
}

// SecurityLifecycle implements ClaimProvider.
func (s *StaticProvider) SecurityLifecycle(context.Context) (iat.Lifecycle, error) {
	return s.Lifecycle, nil
}

// VerificationServiceURL implements ClaimProvider.
func (s *StaticProvider) VerificationServiceURL(context.Context) (string, error) {
	return nonEmptyString("verification service", s.VerificationService)
}

// ProfileDefinition implements ClaimProvider.
func (s *StaticProvider) ProfileDefinition(context.Context) (string, error) {
	return nonEmptyString("profile definition", s.Profile)
}

func nonEmpty(name string, v []byte) ([]byte, error) {
	if len(v) == 0 {
		return nil, fmt.Errorf("%w: %s not provisioned", ErrClaimUnavailable, name)
	}
	return v, nil
}

func nonEmptyString(name, v string) (string, error) {
	if v == "" {
		return "", fmt.Errorf("%w: %s not provisioned", ErrClaimUnavailable, name)
	}
	return v, nil
}
