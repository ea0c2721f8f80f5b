package attest

import (
	"context"
	"crypto"
	"encoding/binary"
	"fmt"

	"github.com/DIMO-Network/initial-attestation/pkg/bootdata"
	"github.com/DIMO-Network/initial-attestation/pkg/iat"
	"github.com/DIMO-Network/initial-attestation/pkg/platform"
	"github.com/rs/zerolog"
)

// generalClaim returns the payload of a module 0 claim supplied by the
// bootloader. A malformed chain counts as no boot data for the lookup.
func (c *Context) generalClaim(ctx context.Context, claim uint8) ([]byte, bool) {
	if c.shared == nil {
		return nil, false
	}
	rec, ok, err := c.shared.FindByClaim(bootdata.ModuleGeneral, claim)
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Uint8("claim", claim).Msg("Malformed boot data, falling back to platform claim.")
		return nil, false
	}
	if ok {
		zerolog.Ctx(ctx).Debug().Uint8("claim", claim).Msg("Claim supplied by boot data.")
	}
	return rec.Payload, ok
}

func (c *Context) bootSeed(ctx context.Context) ([]byte, error) {
	if seed, ok := c.generalClaim(ctx, bootdata.ClaimBootSeed); ok {
		if len(seed) != iat.BootSeedSize {
			return nil, fmt.Errorf("%w: boot seed record of %d bytes", ErrClaimUnavailable, len(seed))
		}
		return seed, nil
	}
	seed, err := c.provider.BootSeed(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: boot seed: %w", ErrClaimUnavailable, err)
	}
	return seed, nil
}

func (c *Context) hardwareVersion(ctx context.Context) (string, bool) {
	if v, ok := c.generalClaim(ctx, bootdata.ClaimHardwareVersion); ok {
		return string(v), true
	}
	return optional(ctx, "hardware version", c.provider.HardwareVersion)
}

func (c *Context) verificationService(ctx context.Context) (string, bool) {
	return optional(ctx, "verification service", c.provider.VerificationServiceURL)
}

func (c *Context) profileDefinition(ctx context.Context) (string, bool) {
	return optional(ctx, "profile definition", c.provider.ProfileDefinition)
}

// optional resolves a claim whose absence is not an error.
func optional(ctx context.Context, name string, get func(context.Context) (string, error)) (string, bool) {
	v, err := get(ctx)
	if err != nil || v == "" {
		zerolog.Ctx(ctx).Debug().Err(err).Str("claim", name).Msg("Optional claim absent.")
		return "", false
	}
	return v, true
}

func (c *Context) implementationID(ctx context.Context) ([]byte, error) {
	id, err := c.provider.ImplementationID(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: implementation id: %w", ErrClaimUnavailable, err)
	}
	return id, nil
}

func (c *Context) securityLifecycle(ctx context.Context) (iat.Lifecycle, error) {
	var lifecycle iat.Lifecycle
	if payload, ok := c.generalClaim(ctx, bootdata.ClaimSecurityLifecycle); ok {
		if len(payload) != 4 {
			return 0, fmt.Errorf("%w: security lifecycle record of %d bytes", ErrClaimUnavailable, len(payload))
		}
		lifecycle = iat.Lifecycle(binary.LittleEndian.Uint32(payload))
	} else {
		var err error
		if lifecycle, err = c.provider.SecurityLifecycle(ctx); err != nil {
			return 0, fmt.Errorf("%w: security lifecycle: %w", ErrClaimUnavailable, err)
		}
	}
	if !lifecycle.Valid() {
		return 0, fmt.Errorf("%w: %w: %#x", ErrClaimUnavailable, ErrInvalidLifecycleValue, uint32(lifecycle))
	}
	return lifecycle, nil
}

// clientID resolves the caller of the in-flight request. Zero does not
// identify any caller and is rejected.
func (c *Context) clientID(ctx context.Context) (int32, error) {
	id, err := c.caller.CallerID(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: client id: %w", ErrClaimUnavailable, err)
	}
	if id == 0 {
		return 0, fmt.Errorf("%w: client id 0 is not a valid caller", ErrClaimUnavailable)
	}
	return id, nil
}

// instanceID is the UEID type byte followed by the hash of the raw public key.
func (c *Context) instanceID(pub crypto.PublicKey) ([]byte, error) {
	digest, err := c.keyHash(pub)
	if err != nil {
		return nil, fmt.Errorf("%w: instance id: %w", ErrClaimUnavailable, err)
	}
	return append([]byte{iat.UEIDTypeRandom}, digest...), nil
}

// keyHash hashes the raw public key with the configured hash.
func (c *Context) keyHash(pub crypto.PublicKey) ([]byte, error) {
	raw, err := platform.RawPublicKey(pub)
	if err != nil {
		return nil, err
	}
	h := c.cfg.Hash.New()
	h.Write(raw)
	return h.Sum(nil), nil
}
