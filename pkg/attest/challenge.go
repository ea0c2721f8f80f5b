package attest

import (
	"encoding/binary"
	"fmt"

	"github.com/DIMO-Network/initial-attestation/pkg/iat"
)

// ValidateChallengeSize accepts the challenge sizes a token can carry.
func ValidateChallengeSize(n int) error {
	switch n {
	case iat.ChallengeSize32, iat.ChallengeSize48, iat.ChallengeSize64, iat.ChallengeSizeWithOptions:
		return nil
	}
	return fmt.Errorf("%w: challenge of %d bytes", ErrInvalidInput, n)
}

// Bits of the option word packed behind a 32 byte challenge.
const (
	OptionKeySelectMask    uint32 = 0x00000007
	OptionShortCircuitSign uint32 = 0x20000000
	OptionOmitClaims       uint32 = 0x40000000
)

// Options select how a token is built.
type Options struct {
	// KeySelect is the signing key slot.
	KeySelect uint8
	// OmitClaims builds a token carrying only the challenge.
	OmitClaims bool
	// ShortCircuitSign replaces the signature with the repeated digest of the
	// signed content, which makes tokens reproducible. For tests only.
	ShortCircuitSign bool
}

// Word packs the options into the legacy option word.
func (o Options) Word() uint32 {
	w := uint32(o.KeySelect) & OptionKeySelectMask
	if o.OmitClaims {
		w |= OptionOmitClaims
	}
	if o.ShortCircuitSign {
		w |= OptionShortCircuitSign
	}
	return w
}

// OptionsFromWord unpacks a legacy option word.
func OptionsFromWord(w uint32) Options {
	return Options{
		KeySelect:        uint8(w & OptionKeySelectMask),
		OmitClaims:       w&OptionOmitClaims != 0,
		ShortCircuitSign: w&OptionShortCircuitSign != 0,
	}
}

// PackChallenge appends the option word to a 32 byte challenge, producing the
// legacy 36 byte form.
func PackChallenge(challenge []byte, opts Options) ([]byte, error) {
	if len(challenge) != iat.ChallengeSize32 {
		return nil, fmt.Errorf("%w: only 32 byte challenges carry options, got %d", ErrInvalidInput, len(challenge))
	}
	packed := make([]byte, iat.ChallengeSizeWithOptions)
	copy(packed, challenge)
	binary.LittleEndian.PutUint32(packed[iat.ChallengeSize32:], opts.Word())
	return packed, nil
}

// unpackChallenge splits a legacy 36 byte challenge into the challenge and the
// options it carries. Other challenges are returned unchanged with opts.
func unpackChallenge(challenge []byte, legacy bool, opts Options) ([]byte, Options) {
	if !legacy || len(challenge) != iat.ChallengeSizeWithOptions {
		return challenge, opts
	}
	word := binary.LittleEndian.Uint32(challenge[iat.ChallengeSize32:])
	return challenge[:iat.ChallengeSize32], OptionsFromWord(word)
}
