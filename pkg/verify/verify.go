// Package verify checks initial attestation tokens: the COSE envelope, the
// claim set and the signature.
package verify

import (
	"bytes"
	"crypto"
	_ "crypto/sha256" // default key hash
	"fmt"

	"github.com/DIMO-Network/initial-attestation/pkg/attest"
	"github.com/DIMO-Network/initial-attestation/pkg/iat"
	"github.com/DIMO-Network/initial-attestation/pkg/platform"
	"github.com/fxamacker/cbor/v2"
	"github.com/veraison/go-cose"
)

// Error is a typed error for token verification failures.
type Error string

func (e Error) Error() string { return string(e) }

const (
	// ErrSyntactic is returned when the envelope is malformed.
	ErrSyntactic = Error("syntactic validation failed")
	// ErrSemantic is returned when the claim set is incomplete or invalid.
	ErrSemantic = Error("semantic validation failed")
	// ErrCryptographic is returned when the signature does not verify.
	ErrCryptographic = Error("cryptographic validation failed")
)

// Options tune verification.
type Options struct {
	// Challenge, when set, must equal the challenge claim.
	Challenge []byte
	// Hash derives the expected key ID and instance ID. Defaults to SHA-256.
	Hash crypto.Hash
	// ShortCircuit accepts the repeated digest signature of short-circuit
	// signed tokens instead of a real signature.
	ShortCircuit bool
}

// Result is a verified token.
type Result struct {
	Claims    iat.Claims
	Algorithm cose.Algorithm
	KeyID     []byte
	// ChallengeOnly is set for tokens built with all claims but the challenge
	// omitted.
	ChallengeOnly bool
}

var decMode = func() cbor.DecMode {
	dm, err := cbor.DecOptions{DupMapKey: cbor.DupMapKeyEnforcedAPF}.DecMode()
	if err != nil {
		panic(err)
	}
	return dm
}()

// Token performs syntactic, semantic and cryptographic validation of token
// against pub.
func Token(token []byte, pub crypto.PublicKey, opts Options) (*Result, error) {
	if opts.Hash == 0 {
		opts.Hash = crypto.SHA256
	}
	keyHash, err := hashKey(opts.Hash, pub)
	if err != nil {
		return nil, err
	}

	var msg cose.Sign1Message
	if err := msg.UnmarshalCBOR(token); err != nil {
		return nil, fmt.Errorf("%w: failed to decode COSE_Sign1: %w", ErrSyntactic, err)
	}
	res, err := validateSyntactic(&msg, pub, keyHash)
	if err != nil {
		return nil, err
	}
	if err := validateSemantic(msg.Payload, keyHash, opts, res); err != nil {
		return nil, err
	}
	if err := validateCryptographic(&msg, pub, opts, res.Algorithm); err != nil {
		return nil, err
	}
	return res, nil
}

func hashKey(hash crypto.Hash, pub crypto.PublicKey) ([]byte, error) {
	if !hash.Available() {
		return nil, fmt.Errorf("hash %s is not linked in", hash)
	}
	raw, err := platform.RawPublicKey(pub)
	if err != nil {
		return nil, err
	}
	h := hash.New()
	h.Write(raw)
	return h.Sum(nil), nil
}

// validateSyntactic checks the headers of the envelope.
func validateSyntactic(msg *cose.Sign1Message, pub crypto.PublicKey, keyHash []byte) (*Result, error) {
	alg, err := msg.Headers.Protected.Algorithm()
	if err != nil {
		return nil, fmt.Errorf("%w: missing algorithm in protected header: %w", ErrSyntactic, err)
	}
	want, err := attest.Algorithm(pub)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSyntactic, err)
	}
	if alg != want {
		return nil, fmt.Errorf("%w: invalid algorithm: expected %s, got %s", ErrSyntactic, want, alg)
	}
	kid, ok := msg.Headers.Unprotected[cose.HeaderLabelKeyID].([]byte)
	if !ok {
		return nil, fmt.Errorf("%w: missing key id in unprotected header", ErrSyntactic)
	}
	if !bytes.Equal(kid, keyHash) {
		return nil, fmt.Errorf("%w: key id does not match the public key", ErrSyntactic)
	}
	if len(msg.Payload) == 0 {
		return nil, fmt.Errorf("%w: payload is empty", ErrSyntactic)
	}
	return &Result{Algorithm: alg, KeyID: kid}, nil
}

// validateSemantic decodes the claim set and checks the mandatory claims.
func validateSemantic(payload, keyHash []byte, opts Options, res *Result) error {
	var present map[int64]cbor.RawMessage
	if err := decMode.Unmarshal(payload, &present); err != nil {
		return fmt.Errorf("%w: failed to parse claims: %w", ErrSemantic, err)
	}
	if err := decMode.Unmarshal(payload, &res.Claims); err != nil {
		return fmt.Errorf("%w: failed to parse claims: %w", ErrSemantic, err)
	}
	claims := &res.Claims

	if _, ok := present[iat.LabelChallenge]; !ok {
		return fmt.Errorf("%w: missing challenge", ErrSemantic)
	}
	if err := attest.ValidateChallengeSize(len(claims.Challenge)); err != nil {
		return fmt.Errorf("%w: %w", ErrSemantic, err)
	}
	if opts.Challenge != nil && !bytes.Equal(opts.Challenge, claims.Challenge) {
		return fmt.Errorf("%w: challenge mismatch", ErrSemantic)
	}
	if len(present) == 1 {
		res.ChallengeOnly = true
		return nil
	}

	for _, label := range []int64{
		iat.LabelBootSeed,
		iat.LabelInstanceID,
		iat.LabelImplementationID,
		iat.LabelClientID,
		iat.LabelSecurityLifecycle,
	} {
		if _, ok := present[label]; !ok {
			return fmt.Errorf("%w: missing %s", ErrSemantic, iat.LabelName(label))
		}
	}
	if claims.ClientID == 0 {
		return fmt.Errorf("%w: client id 0", ErrSemantic)
	}
	if !claims.SecurityLifecycle.Valid() {
		return fmt.Errorf("%w: invalid security lifecycle %s", ErrSemantic, claims.SecurityLifecycle)
	}
	wantInstance := append([]byte{iat.UEIDTypeRandom}, keyHash...)
	if !bytes.Equal(claims.InstanceID, wantInstance) {
		return fmt.Errorf("%w: instance id does not match the signing key", ErrSemantic)
	}

	_, hasComponents := present[iat.LabelSoftwareComponents]
	_, hasMarker := present[iat.LabelNoSoftwareComponents]
	switch {
	case hasComponents && hasMarker:
		return fmt.Errorf("%w: both software components and no-software-measurements present", ErrSemantic)
	case hasMarker:
		if claims.NoSoftwareMeasurements == nil || *claims.NoSoftwareMeasurements != iat.NoSoftwareMeasurements {
			return fmt.Errorf("%w: invalid no-software-measurements value", ErrSemantic)
		}
	case hasComponents:
		if len(claims.SoftwareComponents) == 0 {
			return fmt.Errorf("%w: empty software components", ErrSemantic)
		}
	default:
		return fmt.Errorf("%w: missing software components", ErrSemantic)
	}
	return nil
}

// validateCryptographic checks the signature over the Sig_structure.
func validateCryptographic(msg *cose.Sign1Message, pub crypto.PublicKey, opts Options, alg cose.Algorithm) error {
	if opts.ShortCircuit {
		sigStructure := []any{
			"Signature1",
			msg.Headers.RawProtected,
			[]byte{},
			msg.Payload,
		}
		toBeSigned, err := cbor.Marshal(sigStructure)
		if err != nil {
			return fmt.Errorf("%w: failed to serialize signature structure: %w", ErrCryptographic, err)
		}
		want, err := attest.ShortCircuitSignature(alg, opts.Hash, toBeSigned)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrCryptographic, err)
		}
		if !bytes.Equal(want, msg.Signature) {
			return fmt.Errorf("%w: short-circuit signature mismatch", ErrCryptographic)
		}
		return nil
	}
	verifier, err := cose.NewVerifier(alg, pub)
	if err != nil {
		return fmt.Errorf("%w: failed to create verifier: %w", ErrCryptographic, err)
	}
	if err := msg.Verify(nil, verifier); err != nil {
		return fmt.Errorf("%w: %w", ErrCryptographic, err)
	}
	return nil
}
