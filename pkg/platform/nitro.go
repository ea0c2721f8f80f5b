package platform

import (
	"context"
	"fmt"
	"sync"

	"github.com/DIMO-Network/initial-attestation/pkg/iat"
	"github.com/hf/nsm"
	"github.com/hf/nsm/request"
	"github.com/hf/nsm/response"
	"github.com/rs/zerolog"
)

const bootSeedSize = 32

type nsmSession interface {
	Send(req request.Request) (response.Response, error)
	Close() error
}

// NitroProvider resolves claims from the Nitro Security Module of the enclave
// the service runs in. The boot seed is drawn from the module once and reused
// for the lifetime of the process, the implementation ID is PCR0 and the
// hardware version is the module ID. Claims the module cannot describe come
// from Fallback.
type NitroProvider struct {
	Fallback *StaticProvider

	open     func() (nsmSession, error)
	seedOnce sync.Once
	seed     []byte
	seedErr  error
}

var _ ClaimProvider = (*NitroProvider)(nil)

// NewNitroProvider creates a NitroProvider using the default NSM session.
func NewNitroProvider(fallback *StaticProvider) *NitroProvider {
	if fallback == nil {
		fallback = &StaticProvider{}
	}
	return &NitroProvider{
		Fallback: fallback,
		open: func() (nsmSession, error) {
			return nsm.OpenDefaultSession()
		},
	}
}

func (n *NitroProvider) send(ctx context.Context, req request.Request) (response.Response, error) {
	session, err := n.open()
	if err != nil {
		return response.Response{}, fmt.Errorf("failed to open NSM session: %w", err)
	}
	defer session.Close() //nolint:errcheck

	res, err := session.Send(req)
	if err != nil {
		return response.Response{}, fmt.Errorf("failed to send NSM request: %w", err)
	}
	if res.Error != "" {
		zerolog.Ctx(ctx).Debug().Str("nsmError", string(res.Error)).Msg("NSM rejected request")
		return response.Response{}, fmt.Errorf("NSM returned error: %s", res.Error)
	}
	return res, nil
}

// BootSeed implements ClaimProvider.
func (n *NitroProvider) BootSeed(ctx context.Context) ([]byte, error) {
	n.seedOnce.Do(func() {
		res, err := n.send(ctx, &request.GetRandom{})
		if err != nil {
			n.seedErr = err
			return
		}
		if res.GetRandom == nil || len(res.GetRandom.Random) < bootSeedSize {
			n.seedErr = fmt.Errorf("NSM returned too little randomness")
			return
		}
		n.seed = append([]byte(nil), res.GetRandom.Random[:bootSeedSize]...)
	})
	if n.seedErr != nil {
		return nil, fmt.Errorf("%w: boot seed: %w", ErrClaimUnavailable, n.seedErr)
	}
	return n.seed, nil
}

// ImplementationID implements ClaimProvider.
func (n *NitroProvider) ImplementationID(ctx context.Context) ([]byte, error) {
	res, err := n.send(ctx, &request.DescribePCR{Index: 0})
	if err != nil {
		if id, ferr := n.Fallback.ImplementationID(ctx); ferr == nil {
			return id, nil
		}
		return nil, fmt.Errorf("%w: implementation id: %w", ErrClaimUnavailable, err)
	}
	if res.DescribePCR == nil || len(res.DescribePCR.Data) == 0 {
		return nil, fmt.Errorf("%w: PCR0 is empty", ErrClaimUnavailable)
	}
	return res.DescribePCR.Data, nil
}

// HardwareVersion implements ClaimProvider. A provisioned value wins over the
// module ID.
func (n *NitroProvider) HardwareVersion(ctx context.Context) (string, error) {
	if v, err := n.Fallback.HardwareVersion(ctx); err == nil {
		return v, nil
	}
	res, err := n.send(ctx, &request.DescribeNSM{})
	if err != nil {
		return "", fmt.Errorf("%w: hardware version: %w", ErrClaimUnavailable, err)
	}
	if res.DescribeNSM == nil || res.DescribeNSM.ModuleID == "" {
		return "", fmt.Errorf("%w: NSM has no module id", ErrClaimUnavailable)
	}
	return res.DescribeNSM.ModuleID, nil
}

// SecurityLifecycle implements ClaimProvider.
func (n *NitroProvider) SecurityLifecycle(ctx context.Context) (iat.Lifecycle, error) {
	return n.Fallback.SecurityLifecycle(ctx)
}

// VerificationServiceURL implements ClaimProvider.
func (n *NitroProvider) VerificationServiceURL(ctx context.Context) (string, error) {
	return n.Fallback.VerificationServiceURL(ctx)
}

// ProfileDefinition implements ClaimProvider.
func (n *NitroProvider) ProfileDefinition(ctx context.Context) (string, error) {
	return n.Fallback.ProfileDefinition(ctx)
}
