package attest_test

import (
	"bytes"
	"context"
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"testing"

	"github.com/DIMO-Network/initial-attestation/pkg/attest"
	"github.com/DIMO-Network/initial-attestation/pkg/bootdata"
	"github.com/DIMO-Network/initial-attestation/pkg/iat"
	"github.com/DIMO-Network/initial-attestation/pkg/platform"
	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/require"
	"github.com/veraison/go-cose"
)

const testClientID int32 = -1

func newKey(t *testing.T, curve elliptic.Curve) crypto.Signer {
	t.Helper()
	key, err := ecdsa.GenerateKey(curve, rand.Reader)
	require.NoError(t, err)
	return key
}

func testProvider() *platform.StaticProvider {
	return &platform.StaticProvider{
		Seed:                bytes.Repeat([]byte{0x5a}, 32),
		Implementation:      bytes.Repeat([]byte{0xa5}, 32),
		Lifecycle:           iat.LifecycleSecured,
		VerificationService: "https://veraison.example/.well-known/veraison/verification",
		Profile:             iat.DefaultProfile,
	}
}

type fixture struct {
	ctx    *attest.Context
	key    crypto.Signer
	reqCtx context.Context
}

func newFixture(t *testing.T, cfg attest.Config, source bootdata.Source) *fixture {
	t.Helper()
	key := newKey(t, elliptic.P256())
	c, err := attest.NewContext(cfg, attest.Collaborators{
		Source:   source,
		Provider: testProvider(),
		Keys:     platform.Keys{0: key},
	})
	require.NoError(t, err)
	return &fixture{
		ctx:    c,
		key:    key,
		reqCtx: platform.WithCallerID(context.Background(), testClientID),
	}
}

// twoComponentRegion holds general claims and records for two software
// modules.
func twoComponentRegion(t *testing.T) []byte {
	t.Helper()
	region, err := bootdata.NewBuilder().
		AddUint32(bootdata.ModuleGeneral, bootdata.ClaimSecurityLifecycle, uint32(iat.LifecycleSecured)).
		AddIAS(bootdata.ModuleBL2, bootdata.ClaimMeasurementValue, bytes.Repeat([]byte{0x11}, 32)).
		AddText(bootdata.ModuleBL2, bootdata.ClaimVersion, "1.0.0").
		AddIAS(bootdata.ModulePRoT, bootdata.ClaimMeasurementValue, bytes.Repeat([]byte{0x22}, 32)).
		AddIAS(bootdata.ModulePRoT, bootdata.ClaimSignerID, bytes.Repeat([]byte{0x33}, 32)).
		Bytes()
	require.NoError(t, err)
	return region
}

func generalOnlyRegion(t *testing.T) []byte {
	t.Helper()
	region, err := bootdata.NewBuilder().
		AddUint32(bootdata.ModuleGeneral, bootdata.ClaimSecurityLifecycle, uint32(iat.LifecycleSecured)).
		Bytes()
	require.NoError(t, err)
	return region
}

func challenge(n int) []byte {
	c := make([]byte, n)
	for i := range c {
		c[i] = byte(i)
	}
	return c
}

// getToken sizes and then builds a token the way a caller does.
func (f *fixture) getToken(t *testing.T, ch []byte, opts attest.Options) []byte {
	t.Helper()
	size, err := f.ctx.GetTokenSize(f.reqCtx, uint32(len(ch)), opts)
	require.NoError(t, err)
	out := make([]byte, size)
	n, err := f.ctx.GetToken(f.reqCtx, ch, out, opts)
	require.NoError(t, err)
	require.Equal(t, size, n)
	return out[:n]
}

func decodeToken(t *testing.T, token []byte) *cose.Sign1Message {
	t.Helper()
	var msg cose.Sign1Message
	require.NoError(t, msg.UnmarshalCBOR(token))
	return &msg
}

// componentDiag returns the diagnostic notation of the i-th software
// component of a token.
func componentDiag(t *testing.T, token []byte, i int) string {
	t.Helper()
	var payload map[int64]cbor.RawMessage
	require.NoError(t, cbor.Unmarshal(decodeToken(t, token).Payload, &payload))
	var components []cbor.RawMessage
	require.NoError(t, cbor.Unmarshal(payload[iat.LabelSoftwareComponents], &components))
	require.Greater(t, len(components), i)
	diag, err := cbor.Diagnose(components[i])
	require.NoError(t, err)
	return diag
}
