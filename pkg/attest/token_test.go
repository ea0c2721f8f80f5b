package attest_test

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"strings"
	"testing"

	"github.com/DIMO-Network/initial-attestation/pkg/attest"
	"github.com/DIMO-Network/initial-attestation/pkg/bootdata"
	"github.com/DIMO-Network/initial-attestation/pkg/iat"
	"github.com/DIMO-Network/initial-attestation/pkg/platform"
	"github.com/DIMO-Network/initial-attestation/pkg/verify"
	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/require"
)

func TestGetTokenSizeIdempotent(t *testing.T) {
	t.Parallel()
	f := newFixture(t, attest.Config{}, bootdata.MemorySource{Region: twoComponentRegion(t)})
	first, err := f.ctx.GetTokenSize(f.reqCtx, iat.ChallengeSize32, attest.Options{})
	require.NoError(t, err)
	second, err := f.ctx.GetTokenSize(f.reqCtx, iat.ChallengeSize32, attest.Options{})
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestSizeMatchesToken(t *testing.T) {
	t.Parallel()
	for _, nested := range []bool{false, true} {
		for _, size := range []int{iat.ChallengeSize32, iat.ChallengeSize48, iat.ChallengeSize64} {
			f := newFixture(t, attest.Config{Nested: nested}, bootdata.MemorySource{Region: twoComponentRegion(t)})
			expected, err := f.ctx.GetTokenSize(f.reqCtx, uint32(size), attest.Options{})
			require.NoError(t, err)

			out := make([]byte, 4096)
			n, err := f.ctx.GetToken(f.reqCtx, challenge(size), out, attest.Options{})
			require.NoError(t, err)
			require.Equal(t, expected, n, "nested=%v size=%d", nested, size)
		}
	}
}

func TestSizeMatchesTokenPerAlgorithm(t *testing.T) {
	t.Parallel()
	_, edKey, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	keys := platform.Keys{
		0: newKey(t, elliptic.P256()),
		1: newKey(t, elliptic.P384()),
		2: newKey(t, elliptic.P521()),
		3: edKey,
	}
	c, err := attest.NewContext(attest.Config{}, attest.Collaborators{
		Source:   bootdata.MemorySource{Region: twoComponentRegion(t)},
		Provider: testProvider(),
		Keys:     keys,
	})
	require.NoError(t, err)
	ctx := platform.WithCallerID(context.Background(), testClientID)

	for slot := range keys {
		opts := attest.Options{KeySelect: slot}
		size, err := c.GetTokenSize(ctx, iat.ChallengeSize64, opts)
		require.NoError(t, err)
		out := make([]byte, size)
		n, err := c.GetToken(ctx, challenge(iat.ChallengeSize64), out, opts)
		require.NoError(t, err)
		require.Equal(t, size, n)

		pub, _, err := c.PublicKey(slot)
		require.NoError(t, err)
		_, err = verify.Token(out, pub, verify.Options{Challenge: challenge(iat.ChallengeSize64)})
		require.NoError(t, err, "slot %d", slot)
	}
}

func TestInvalidChallengeSize(t *testing.T) {
	t.Parallel()
	f := newFixture(t, attest.Config{}, bootdata.MemorySource{Region: twoComponentRegion(t)})
	for _, size := range []int{0, 1, 16, 31, 33, 35, 37, 47, 63, 65, 128} {
		_, err := f.ctx.GetTokenSize(f.reqCtx, uint32(size), attest.Options{})
		require.ErrorIs(t, err, attest.ErrInvalidInput, "size %d", size)

		out := make([]byte, 4096)
		_, err = f.ctx.GetToken(f.reqCtx, make([]byte, size), out, attest.Options{})
		require.ErrorIs(t, err, attest.ErrInvalidInput, "size %d", size)
		require.Equal(t, make([]byte, len(out)), out)
	}
}

func TestEmptyBuffersRejected(t *testing.T) {
	t.Parallel()
	f := newFixture(t, attest.Config{}, nil)
	_, err := f.ctx.GetToken(f.reqCtx, challenge(iat.ChallengeSize32), nil, attest.Options{})
	require.ErrorIs(t, err, attest.ErrInvalidInput)
	require.ErrorIs(t, err, platform.ErrAccessDenied)
}

func TestClaimOrderDeterminism(t *testing.T) {
	t.Parallel()
	f := newFixture(t, attest.Config{}, bootdata.MemorySource{Region: twoComponentRegion(t)})
	ch := challenge(iat.ChallengeSize48)

	t.Run("short-circuit signing", func(t *testing.T) {
		opts := attest.Options{ShortCircuitSign: true}
		first := f.getToken(t, ch, opts)
		second := f.getToken(t, ch, opts)
		require.Equal(t, first, second)

		res, err := verify.Token(first, f.key.Public(), verify.Options{ShortCircuit: true})
		require.NoError(t, err)
		require.Equal(t, ch, res.Claims.Challenge)
	})

	t.Run("real signing", func(t *testing.T) {
		first := decodeToken(t, f.getToken(t, ch, attest.Options{}))
		second := decodeToken(t, f.getToken(t, ch, attest.Options{}))
		require.Equal(t, first.Payload, second.Payload)
	})
}

func TestClaimOrder(t *testing.T) {
	t.Parallel()
	f := newFixture(t, attest.Config{}, bootdata.MemorySource{Region: generalOnlyRegion(t)})
	msg := decodeToken(t, f.getToken(t, challenge(iat.ChallengeSize32), attest.Options{}))

	diag, err := cbor.Diagnose(msg.Payload)
	require.NoError(t, err)
	order := []int64{
		iat.LabelChallenge,
		iat.LabelBootSeed,
		iat.LabelVerificationService,
		iat.LabelProfileDefinition,
		iat.LabelInstanceID,
		iat.LabelImplementationID,
		iat.LabelClientID,
		iat.LabelSecurityLifecycle,
		iat.LabelNoSoftwareComponents,
	}
	last := -1
	for _, label := range order {
		idx := strings.Index(diag, labelKey(label))
		require.Greater(t, idx, last, "claim %s out of order in %s", iat.LabelName(label), diag)
		last = idx
	}
}

func labelKey(label int64) string {
	return fmt.Sprintf("%d:", label)
}

func TestNoSoftwareMeasurementsFallback(t *testing.T) {
	t.Parallel()
	f := newFixture(t, attest.Config{}, bootdata.MemorySource{Region: generalOnlyRegion(t)})
	token := f.getToken(t, challenge(iat.ChallengeSize32), attest.Options{})

	res, err := verify.Token(token, f.key.Public(), verify.Options{})
	require.NoError(t, err)
	require.Nil(t, res.Claims.SoftwareComponents)
	require.NotNil(t, res.Claims.NoSoftwareMeasurements)
	require.Equal(t, uint64(iat.NoSoftwareMeasurements), *res.Claims.NoSoftwareMeasurements)

	var present map[int64]cbor.RawMessage
	require.NoError(t, cbor.Unmarshal(decodeToken(t, token).Payload, &present))
	require.NotContains(t, present, iat.LabelSoftwareComponents)
}

func TestMultiComponentGrouping(t *testing.T) {
	t.Parallel()
	f := newFixture(t, attest.Config{}, bootdata.MemorySource{Region: twoComponentRegion(t)})
	token := f.getToken(t, challenge(iat.ChallengeSize32), attest.Options{})

	res, err := verify.Token(token, f.key.Public(), verify.Options{})
	require.NoError(t, err)
	require.Nil(t, res.Claims.NoSoftwareMeasurements)
	require.Len(t, res.Claims.SoftwareComponents, 2)

	bl2 := res.Claims.SoftwareComponents[0]
	require.Equal(t, bytes.Repeat([]byte{0x11}, 32), bl2.Value())
	require.Equal(t, "1.0.0", bl2.Version)
	require.Empty(t, bl2.SignerID)

	prot := res.Claims.SoftwareComponents[1]
	require.Equal(t, bytes.Repeat([]byte{0x22}, 32), prot.Value())
	require.Equal(t, bytes.Repeat([]byte{0x33}, 32), prot.SignerID)
	require.Empty(t, prot.Version)

	// Within a component, claims follow boot data order.
	var components []cbor.RawMessage
	var payload map[int64]cbor.RawMessage
	require.NoError(t, cbor.Unmarshal(decodeToken(t, token).Payload, &payload))
	require.NoError(t, cbor.Unmarshal(payload[iat.LabelSoftwareComponents], &components))
	diag, err := cbor.Diagnose(components[0])
	require.NoError(t, err)
	require.Less(t, strings.Index(diag, "2:"), strings.Index(diag, "4:"), diag)
}

func TestNestedMeasurements(t *testing.T) {
	t.Parallel()
	region, err := bootdata.NewBuilder().
		AddText(bootdata.ModuleBL2, bootdata.ClaimType, "BL").
		AddIAS(bootdata.ModuleBL2, bootdata.ClaimMeasurementValue, []byte{0x01, 0x02}).
		AddText(bootdata.ModuleBL2, bootdata.ClaimMeasurementType, "sha-256").
		AddText(bootdata.ModuleBL2, bootdata.ClaimMeasurementDesc, "bootloader").
		AddIAS(bootdata.ModuleBL2, bootdata.ClaimEpoch, []byte{0x07}).
		Bytes()
	require.NoError(t, err)

	t.Run("nested", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, attest.Config{Nested: true}, bootdata.MemorySource{Region: region})
		res, err := verify.Token(f.getToken(t, challenge(32), attest.Options{}), f.key.Public(), verify.Options{})
		require.NoError(t, err)
		require.Len(t, res.Claims.SoftwareComponents, 1)
		component := res.Claims.SoftwareComponents[0]
		require.Equal(t, "BL", component.MeasurementType)
		require.Empty(t, component.MeasurementValue)
		require.NotNil(t, component.Measurement)
		require.Equal(t, []byte{0x01, 0x02}, component.Measurement.Value)
		require.Equal(t, "sha-256", component.Measurement.Type)
		require.Equal(t, "bootloader", component.Measurement.Description)
		require.NotNil(t, component.Epoch)
		require.Equal(t, uint64(7), *component.Epoch)
	})

	t.Run("flat", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, attest.Config{}, bootdata.MemorySource{Region: region})
		res, err := verify.Token(f.getToken(t, challenge(32), attest.Options{}), f.key.Public(), verify.Options{})
		require.NoError(t, err)
		component := res.Claims.SoftwareComponents[0]
		require.Nil(t, component.Measurement)
		require.Equal(t, "BL", component.MeasurementType)
		require.Equal(t, []byte{0x01, 0x02}, component.MeasurementValue)
		require.Equal(t, "sha-256", component.MeasurementDesc)
	})
}

func TestNestedMeasurementRunEndsAtOtherClaim(t *testing.T) {
	t.Parallel()
	region, err := bootdata.NewBuilder().
		AddIAS(bootdata.ModuleBL2, bootdata.ClaimMeasurementValue, []byte{0x01}).
		AddText(bootdata.ModuleBL2, bootdata.ClaimVersion, "1.0").
		AddText(bootdata.ModuleBL2, bootdata.ClaimMeasurementDesc, "late").
		Bytes()
	require.NoError(t, err)
	f := newFixture(t, attest.Config{Nested: true}, bootdata.MemorySource{Region: region})
	token := f.getToken(t, challenge(32), attest.Options{})

	require.Equal(t, `{7: {2: h'01'}, 4: "1.0", 6: "late"}`, componentDiag(t, token, 0))

	res, err := verify.Token(token, f.key.Public(), verify.Options{})
	require.NoError(t, err)
	component := res.Claims.SoftwareComponents[0]
	require.Equal(t, []byte{0x01}, component.Value())
	require.NotNil(t, component.Measurement)
	require.Empty(t, component.Measurement.Description)
	require.Equal(t, "late", component.MeasurementDesc)
}

func TestRepeatedComponentRecord(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		nested bool
		claim  uint8
	}{
		{name: "version", claim: bootdata.ClaimVersion},
		{name: "flat measurement value", claim: bootdata.ClaimMeasurementValue},
		{name: "nested measurement value", nested: true, claim: bootdata.ClaimMeasurementValue},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			region, err := bootdata.NewBuilder().
				AddIAS(bootdata.ModuleBL2, tt.claim, []byte("a")).
				AddIAS(bootdata.ModuleBL2, tt.claim, []byte("b")).
				Bytes()
			require.NoError(t, err)
			f := newFixture(t, attest.Config{Nested: tt.nested}, bootdata.MemorySource{Region: region})
			_, err = f.ctx.GetTokenSize(f.reqCtx, 32, attest.Options{})
			require.ErrorIs(t, err, attest.ErrClaimUnavailable)
			require.NotErrorIs(t, err, attest.ErrGeneral)
			require.Equal(t, attest.ErrClaimUnavailable, attest.Kind(err))
		})
	}
}

func TestBootRecordReplacesComponent(t *testing.T) {
	t.Parallel()
	record, err := cbor.Marshal(iat.SoftwareComponent{
		MeasurementType:  "SPE",
		MeasurementValue: []byte{0xde, 0xad},
		Version:          "2.1.0",
	})
	require.NoError(t, err)
	region, err := bootdata.NewBuilder().
		AddText(bootdata.ModuleSPE, bootdata.ClaimVersion, "ignored").
		AddIAS(bootdata.ModuleSPE, bootdata.ClaimBootRecord, record).
		Bytes()
	require.NoError(t, err)

	f := newFixture(t, attest.Config{}, bootdata.MemorySource{Region: region})
	res, err := verify.Token(f.getToken(t, challenge(32), attest.Options{}), f.key.Public(), verify.Options{})
	require.NoError(t, err)
	require.Len(t, res.Claims.SoftwareComponents, 1)
	require.Equal(t, "2.1.0", res.Claims.SoftwareComponents[0].Version)
	require.Equal(t, "SPE", res.Claims.SoftwareComponents[0].MeasurementType)

	bad, err := bootdata.NewBuilder().AddIAS(bootdata.ModuleSPE, bootdata.ClaimBootRecord, []byte{0x01}).Bytes()
	require.NoError(t, err)
	f = newFixture(t, attest.Config{}, bootdata.MemorySource{Region: bad})
	_, err = f.ctx.GetTokenSize(f.reqCtx, 32, attest.Options{})
	require.ErrorIs(t, err, attest.ErrClaimUnavailable)
}

func TestTruncatedBootData(t *testing.T) {
	t.Parallel()
	region := twoComponentRegion(t)
	// The declared length cuts the last record while its bytes remain in
	// the region handed to the service.
	binary.LittleEndian.PutUint16(region[2:4], uint16(len(region)-8))
	f := newFixture(t, attest.Config{}, bootdata.MemorySource{Region: region})
	require.NoError(t, f.ctx.Init(context.Background()))

	_, err := f.ctx.GetTokenSize(f.reqCtx, iat.ChallengeSize32, attest.Options{})
	require.ErrorIs(t, err, attest.ErrClaimUnavailable)
	require.ErrorIs(t, err, bootdata.ErrMalformedRecord)

	out := make([]byte, 4096)
	_, err = f.ctx.GetToken(f.reqCtx, challenge(iat.ChallengeSize32), out, attest.Options{})
	require.ErrorIs(t, err, attest.ErrClaimUnavailable)
	require.Equal(t, make([]byte, len(out)), out)

	// Tokens that carry no boot data claims are still issued.
	token := f.getToken(t, challenge(iat.ChallengeSize32), attest.Options{OmitClaims: true})
	res, err := verify.Token(token, f.key.Public(), verify.Options{})
	require.NoError(t, err)
	require.True(t, res.ChallengeOnly)
}

func TestBufferOneByteShort(t *testing.T) {
	t.Parallel()
	f := newFixture(t, attest.Config{}, bootdata.MemorySource{Region: twoComponentRegion(t)})
	for _, size := range []int{iat.ChallengeSize32, iat.ChallengeSize48, iat.ChallengeSize64} {
		expected, err := f.ctx.GetTokenSize(f.reqCtx, uint32(size), attest.Options{})
		require.NoError(t, err)
		out := make([]byte, expected-1)
		_, err = f.ctx.GetToken(f.reqCtx, challenge(size), out, attest.Options{})
		require.ErrorIs(t, err, attest.ErrTokenBufferOverflow)
		require.Equal(t, make([]byte, len(out)), out)
	}
}

func TestInitBootData(t *testing.T) {
	t.Parallel()
	region := twoComponentRegion(t)
	region[0] ^= 0xff

	t.Run("bad magic fails init", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, attest.Config{}, bootdata.MemorySource{Region: region})
		require.ErrorIs(t, f.ctx.Init(context.Background()), attest.ErrInitFailed)
		_, err := f.ctx.GetTokenSize(f.reqCtx, 32, attest.Options{})
		require.ErrorIs(t, err, attest.ErrInitFailed)
	})

	t.Run("bad magic allowed", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, attest.Config{AllowMissingBootData: true}, bootdata.MemorySource{Region: region})
		require.NoError(t, f.ctx.Init(context.Background()))
		require.Nil(t, f.ctx.BootData())
		res, err := verify.Token(f.getToken(t, challenge(32), attest.Options{}), f.key.Public(), verify.Options{})
		require.NoError(t, err)
		require.NotNil(t, res.Claims.NoSoftwareMeasurements)
	})

	t.Run("no boot data", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, attest.Config{}, bootdata.MemorySource{})
		require.NoError(t, f.ctx.Init(context.Background()))
		require.Nil(t, f.ctx.BootData())
	})
}

func TestBootDataOverridesProvider(t *testing.T) {
	t.Parallel()
	seed := bytes.Repeat([]byte{0x77}, 32)
	region, err := bootdata.NewBuilder().
		AddIAS(bootdata.ModuleGeneral, bootdata.ClaimBootSeed, seed).
		AddText(bootdata.ModuleGeneral, bootdata.ClaimHardwareVersion, "0604565272829").
		AddUint32(bootdata.ModuleGeneral, bootdata.ClaimSecurityLifecycle, uint32(iat.LifecycleNonPSARoTDebug|0x01)).
		Bytes()
	require.NoError(t, err)
	f := newFixture(t, attest.Config{}, bootdata.MemorySource{Region: region})

	res, err := verify.Token(f.getToken(t, challenge(32), attest.Options{}), f.key.Public(), verify.Options{})
	require.NoError(t, err)
	require.Equal(t, seed, res.Claims.BootSeed)
	require.NotNil(t, res.Claims.HardwareVersion)
	require.Equal(t, "0604565272829", *res.Claims.HardwareVersion)
	require.Equal(t, iat.LifecycleNonPSARoTDebug|0x01, res.Claims.SecurityLifecycle)
	require.Equal(t, testClientID, res.Claims.ClientID)
	require.Equal(t, iat.DefaultProfile, *res.Claims.Profile)
	require.Equal(t, testProvider().Implementation, res.Claims.ImplementationID)
}

func TestBootSeedRecordLength(t *testing.T) {
	t.Parallel()
	region, err := bootdata.NewBuilder().
		AddIAS(bootdata.ModuleGeneral, bootdata.ClaimBootSeed, bytes.Repeat([]byte{0x77}, 16)).
		Bytes()
	require.NoError(t, err)
	f := newFixture(t, attest.Config{}, bootdata.MemorySource{Region: region})
	_, err = f.ctx.GetTokenSize(f.reqCtx, 32, attest.Options{})
	require.ErrorIs(t, err, attest.ErrClaimUnavailable)
}

func TestInvalidLifecycle(t *testing.T) {
	t.Parallel()
	region, err := bootdata.NewBuilder().
		AddUint32(bootdata.ModuleGeneral, bootdata.ClaimSecurityLifecycle, 0x7000).
		Bytes()
	require.NoError(t, err)
	f := newFixture(t, attest.Config{}, bootdata.MemorySource{Region: region})
	_, err = f.ctx.GetTokenSize(f.reqCtx, 32, attest.Options{})
	require.ErrorIs(t, err, attest.ErrClaimUnavailable)
	require.ErrorIs(t, err, attest.ErrInvalidLifecycleValue)
}

func TestClientID(t *testing.T) {
	t.Parallel()
	f := newFixture(t, attest.Config{}, nil)

	_, err := f.ctx.GetTokenSize(platform.WithCallerID(context.Background(), 0), 32, attest.Options{})
	require.ErrorIs(t, err, attest.ErrClaimUnavailable)

	_, err = f.ctx.GetTokenSize(context.Background(), 32, attest.Options{})
	require.ErrorIs(t, err, attest.ErrClaimUnavailable)
	require.ErrorIs(t, err, platform.ErrNoCaller)

	// Only the challenge is needed when claims are omitted.
	_, err = f.ctx.GetTokenSize(context.Background(), 32, attest.Options{OmitClaims: true})
	require.NoError(t, err)
}

func TestMandatoryClaimUnavailable(t *testing.T) {
	t.Parallel()
	provider := testProvider()
	provider.Implementation = nil
	c, err := attest.NewContext(attest.Config{}, attest.Collaborators{
		Provider: provider,
		Keys:     platform.Keys{0: newKey(t, elliptic.P256())},
	})
	require.NoError(t, err)
	_, err = c.GetTokenSize(platform.WithCallerID(context.Background(), 5), 32, attest.Options{})
	require.ErrorIs(t, err, attest.ErrClaimUnavailable)
	require.ErrorIs(t, err, platform.ErrClaimUnavailable)
}

func TestOptionalClaimsAbsent(t *testing.T) {
	t.Parallel()
	provider := testProvider()
	provider.VerificationService = ""
	provider.Profile = ""
	key := newKey(t, elliptic.P256())
	c, err := attest.NewContext(attest.Config{}, attest.Collaborators{
		Provider: provider,
		Keys:     platform.Keys{0: key},
	})
	require.NoError(t, err)
	out := make([]byte, 4096)
	n, err := c.GetToken(platform.WithCallerID(context.Background(), 5), challenge(32), out, attest.Options{})
	require.NoError(t, err)
	res, err := verify.Token(out[:n], key.Public(), verify.Options{})
	require.NoError(t, err)
	require.Nil(t, res.Claims.VerificationService)
	require.Nil(t, res.Claims.Profile)
	require.Nil(t, res.Claims.HardwareVersion)
}

func TestOmitClaims(t *testing.T) {
	t.Parallel()
	f := newFixture(t, attest.Config{}, bootdata.MemorySource{Region: twoComponentRegion(t)})
	token := f.getToken(t, challenge(64), attest.Options{OmitClaims: true})
	res, err := verify.Token(token, f.key.Public(), verify.Options{Challenge: challenge(64)})
	require.NoError(t, err)
	require.True(t, res.ChallengeOnly)
	require.Empty(t, res.Claims.BootSeed)
}

func TestLegacyOptionPacking(t *testing.T) {
	t.Parallel()
	ch := challenge(iat.ChallengeSize32)
	packed, err := attest.PackChallenge(ch, attest.Options{OmitClaims: true, ShortCircuitSign: true})
	require.NoError(t, err)
	require.Len(t, packed, iat.ChallengeSizeWithOptions)

	t.Run("enabled", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, attest.Config{LegacyOptionPacking: true}, nil)
		out := make([]byte, 1024)
		n, err := f.ctx.GetToken(f.reqCtx, packed, out, attest.Options{})
		require.NoError(t, err)
		res, err := verify.Token(out[:n], f.key.Public(), verify.Options{ShortCircuit: true})
		require.NoError(t, err)
		require.True(t, res.ChallengeOnly)
		require.Equal(t, ch, res.Claims.Challenge)
	})

	t.Run("disabled", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, attest.Config{}, nil)
		token := f.getToken(t, packed, attest.Options{})
		res, err := verify.Token(token, f.key.Public(), verify.Options{})
		require.NoError(t, err)
		require.False(t, res.ChallengeOnly)
		require.Equal(t, packed, res.Claims.Challenge)
	})

	require.Equal(t, attest.Options{KeySelect: 5, OmitClaims: true}, attest.OptionsFromWord(attest.Options{KeySelect: 5, OmitClaims: true}.Word()))
	_, err = attest.PackChallenge(challenge(48), attest.Options{})
	require.ErrorIs(t, err, attest.ErrInvalidInput)
}

func TestKeySelect(t *testing.T) {
	t.Parallel()
	f := newFixture(t, attest.Config{}, nil)
	_, err := f.ctx.GetTokenSize(f.reqCtx, 32, attest.Options{KeySelect: 1})
	require.ErrorIs(t, err, attest.ErrGeneral)
	require.ErrorIs(t, err, platform.ErrKeyNotFound)

	_, err = f.ctx.GetTokenSize(f.reqCtx, 32, attest.Options{KeySelect: platform.MaxKeySlots})
	require.ErrorIs(t, err, attest.ErrInvalidInput)
}

func TestInstanceIDUsesSelectedKey(t *testing.T) {
	t.Parallel()
	f := newFixture(t, attest.Config{}, nil)
	_, kid, err := f.ctx.PublicKey(0)
	require.NoError(t, err)
	res, err := verify.Token(f.getToken(t, challenge(32), attest.Options{}), f.key.Public(), verify.Options{})
	require.NoError(t, err)
	require.Equal(t, append([]byte{iat.UEIDTypeRandom}, kid...), res.Claims.InstanceID)
	require.Equal(t, kid, res.KeyID)
}

func TestNewContextRequiresCollaborators(t *testing.T) {
	t.Parallel()
	_, err := attest.NewContext(attest.Config{}, attest.Collaborators{Keys: platform.Keys{}})
	require.ErrorIs(t, err, attest.ErrInitFailed)
	_, err = attest.NewContext(attest.Config{}, attest.Collaborators{Provider: testProvider()})
	require.ErrorIs(t, err, attest.ErrInitFailed)
}
