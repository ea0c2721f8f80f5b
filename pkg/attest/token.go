package attest

import (
	"context"
	"crypto"
	"fmt"

	"github.com/DIMO-Network/initial-attestation/pkg/iat"
	"github.com/DIMO-Network/initial-attestation/pkg/platform"
	"github.com/rs/zerolog"
	"github.com/veraison/go-cose"
)

// Mode selects whether a build produces a token or only its size.
type Mode int

const (
	// ModeSizeOnly walks every claim but never signs or writes a token.
	ModeSizeOnly Mode = iota
	// ModeMaterialize signs the token and copies it to the caller buffer.
	ModeMaterialize
)

func (m Mode) String() string {
	if m == ModeSizeOnly {
		return "size-only"
	}
	return "materialize"
}

// GetTokenSize returns the length of the token GetToken would produce for a
// challenge of challengeLen bytes and opts.
func (c *Context) GetTokenSize(ctx context.Context, challengeLen uint32, opts Options) (uint32, error) {
	if err := ValidateChallengeSize(int(challengeLen)); err != nil {
		return 0, err
	}
	if c.cfg.LegacyOptionPacking && challengeLen == iat.ChallengeSizeWithOptions {
		challengeLen = iat.ChallengeSize32
	}
	token, err := c.build(ctx, ModeSizeOnly, make([]byte, challengeLen), opts)
	if err != nil {
		return 0, err
	}
	return uint32(len(token)), nil
}

// GetToken builds a signed token over challenge into out and returns its
// length. Nothing is written to out on failure.
func (c *Context) GetToken(ctx context.Context, challenge, out []byte, opts Options) (uint32, error) {
	if err := ValidateChallengeSize(len(challenge)); err != nil {
		return 0, err
	}
	if err := c.access.CheckMemoryAccess(challenge, platform.AccessRead); err != nil {
		return 0, fmt.Errorf("%w: challenge: %w", ErrInvalidInput, err)
	}
	if err := c.access.CheckMemoryAccess(out, platform.AccessWrite); err != nil {
		return 0, fmt.Errorf("%w: token buffer: %w", ErrInvalidInput, err)
	}
	challenge, opts = unpackChallenge(challenge, c.cfg.LegacyOptionPacking, opts)
	token, err := c.build(ctx, ModeMaterialize, challenge, opts)
	if err != nil {
		return 0, err
	}
	if len(token) > len(out) {
		return 0, fmt.Errorf("%w: token of %d bytes, buffer of %d", ErrTokenBufferOverflow, len(token), len(out))
	}
	return uint32(copy(out, token)), nil
}

// build runs the single claim pass shared by both modes.
func (c *Context) build(ctx context.Context, mode Mode, challenge []byte, opts Options) ([]byte, error) {
	if err := c.Init(ctx); err != nil {
		return nil, err
	}
	if opts.KeySelect >= platform.MaxKeySlots {
		return nil, fmt.Errorf("%w: key slot %d", ErrInvalidInput, opts.KeySelect)
	}
	logger := zerolog.Ctx(ctx).With().Str("mode", mode.String()).Uint8("keySelect", opts.KeySelect).Logger()
	ctx = logger.WithContext(ctx)

	key, err := c.keys.SigningKey(opts.KeySelect)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrGeneral, err)
	}
	pub := key.Public()
	alg, err := Algorithm(pub)
	if err != nil {
		return nil, err
	}
	kid, err := c.keyHash(pub)
	if err != nil {
		return nil, fmt.Errorf("%w: key id: %w", ErrGeneral, err)
	}

	claims := newClaimMap()
	if err := claims.add(iat.LabelChallenge, challenge); err != nil {
		return nil, err
	}
	if !opts.OmitClaims {
		if err := c.addClaims(ctx, claims, pub); err != nil {
			logger.Debug().Err(err).Msg("Token build aborted.")
			return nil, err
		}
	}
	payload, err := claims.appendTo(nil)
	if err != nil {
		return nil, err
	}

	signer, err := c.signer(mode, opts, alg, key)
	if err != nil {
		return nil, err
	}
	msg := cose.NewSign1Message()
	msg.Headers.Protected.SetAlgorithm(alg)
	msg.Headers.Unprotected[cose.HeaderLabelKeyID] = kid
	msg.Payload = payload
	if err := msg.Sign(c.rand, nil, signer); err != nil {
		return nil, fmt.Errorf("%w: failed to sign token: %w", ErrGeneral, err)
	}
	token, err := msg.MarshalCBOR()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to encode token: %w", ErrGeneral, err)
	}
	logger.Debug().Int("claims", claims.len()).Int("size", len(token)).Msg("Token built.")
	return token, nil
}

// addClaims adds every claim after the challenge, in token order.
func (c *Context) addClaims(ctx context.Context, claims *claimMap, pub crypto.PublicKey) error {
	seed, err := c.bootSeed(ctx)
	if err != nil {
		return err
	}
	if err := claims.add(iat.LabelBootSeed, seed); err != nil {
		return err
	}
	if url, ok := c.verificationService(ctx); ok {
		if err := claims.add(iat.LabelVerificationService, url); err != nil {
			return err
		}
	}
	if profile, ok := c.profileDefinition(ctx); ok {
		if err := claims.add(iat.LabelProfileDefinition, profile); err != nil {
			return err
		}
	}
	instanceID, err := c.instanceID(pub)
	if err != nil {
		return err
	}
	if err := claims.add(iat.LabelInstanceID, instanceID); err != nil {
		return err
	}
	if hwVersion, ok := c.hardwareVersion(ctx); ok {
		if err := claims.add(iat.LabelHardwareVersion, hwVersion); err != nil {
			return err
		}
	}
	implID, err := c.implementationID(ctx)
	if err != nil {
		return err
	}
	if err := claims.add(iat.LabelImplementationID, implID); err != nil {
		return err
	}
	clientID, err := c.clientID(ctx)
	if err != nil {
		return err
	}
	if err := claims.add(iat.LabelClientID, clientID); err != nil {
		return err
	}
	lifecycle, err := c.securityLifecycle(ctx)
	if err != nil {
		return err
	}
	if err := claims.add(iat.LabelSecurityLifecycle, uint32(lifecycle)); err != nil {
		return err
	}
	return c.addSoftwareComponents(ctx, claims)
}

func (c *Context) signer(mode Mode, opts Options, alg cose.Algorithm, key crypto.Signer) (cose.Signer, error) {
	size, err := SignatureSize(alg)
	if err != nil {
		return nil, err
	}
	switch {
	case mode == ModeSizeOnly:
		return sizingSigner{alg: alg, size: size}, nil
	case opts.ShortCircuitSign:
		return shortCircuitSigner{alg: alg, size: size, hash: c.cfg.Hash}, nil
	}
	signer, err := cose.NewSigner(alg, key)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create signer: %w", ErrGeneral, err)
	}
	return signer, nil
}

// PublicKey returns the public key of a signing key slot and the key ID
// tokens signed with it carry.
func (c *Context) PublicKey(slot uint8) (crypto.PublicKey, []byte, error) {
	key, err := c.keys.SigningKey(slot)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	pub := key.Public()
	kid, err := c.keyHash(pub)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: key id: %w", ErrGeneral, err)
	}
	return pub, kid, nil
}
