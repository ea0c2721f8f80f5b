// Package attest builds PSA initial attestation tokens: a CBOR claim map
// assembled from bootloader boot data and platform claims, signed into a
// COSE_Sign1 envelope.
package attest

import (
	"context"
	"crypto"
	"crypto/rand"
	_ "crypto/sha256" // default claim hash
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/DIMO-Network/initial-attestation/pkg/bootdata"
	"github.com/DIMO-Network/initial-attestation/pkg/platform"
	"github.com/rs/zerolog"
)

// Config holds the build knobs of a Context.
type Config struct {
	// Nested groups the measurement claims of a software component in a
	// nested measurement map instead of the component map itself.
	Nested bool
	// LegacyOptionPacking reads token options from the last four bytes of a
	// 36 byte challenge.
	LegacyOptionPacking bool
	// AllowMissingBootData treats boot data failing validation as absent
	// instead of failing Init.
	AllowMissingBootData bool
	// Hash derives the instance ID and key ID from the public key. Defaults to
	// SHA-256.
	Hash crypto.Hash
}

// Collaborators are the platform services a Context consumes.
type Collaborators struct {
	// Source provides the boot data. A nil Source means there is none.
	Source   bootdata.Source
	Provider platform.ClaimProvider
	Keys     platform.KeyStore
	// Access defaults to platform.BufferChecker.
	Access platform.AccessChecker
	// Caller defaults to platform.ContextCaller.
	Caller platform.CallerIdentifier
	// Rand feeds the signer. Defaults to crypto/rand.
	Rand io.Reader
}

// Context is the attestation state of a process. The boot data is loaded once
// and never changes afterwards.
type Context struct {
	cfg      Config
	source   bootdata.Source
	provider platform.ClaimProvider
	keys     platform.KeyStore
	access   platform.AccessChecker
	caller   platform.CallerIdentifier
	rand     io.Reader

	initOnce sync.Once
	initErr  error
	shared   *bootdata.SharedData
}

// NewContext creates a Context. Boot data is loaded by Init or by the first
// token request.
func NewContext(cfg Config, c Collaborators) (*Context, error) {
	if c.Provider == nil {
		return nil, fmt.Errorf("%w: claim provider is required", ErrInitFailed)
	}
	if c.Keys == nil {
		return nil, fmt.Errorf("%w: key store is required", ErrInitFailed)
	}
	if cfg.Hash == 0 {
		cfg.Hash = crypto.SHA256
	}
	if !cfg.Hash.Available() {
		return nil, fmt.Errorf("%w: hash %s is not linked in", ErrInitFailed, cfg.Hash)
	}
	if c.Access == nil {
		c.Access = platform.BufferChecker{}
	}
	if c.Caller == nil {
		c.Caller = platform.ContextCaller{}
	}
	if c.Rand == nil {
		c.Rand = rand.Reader
	}
	return &Context{
		cfg:      cfg,
		source:   c.Source,
		provider: c.Provider,
		keys:     c.Keys,
		access:   c.Access,
		caller:   c.Caller,
		rand:     c.Rand,
	}, nil
}

// Config returns the configuration of the context.
func (c *Context) Config() Config {
	return c.cfg
}

// Init loads the boot data. Only the first call does any work; later calls
// return its result.
func (c *Context) Init(ctx context.Context) error {
	c.initOnce.Do(func() {
		c.initErr = c.loadBootData(ctx)
	})
	return c.initErr
}

func (c *Context) loadBootData(ctx context.Context) error {
	logger := zerolog.Ctx(ctx)
	if c.source == nil {
		logger.Debug().Msg("No boot data source, claims come from the platform.")
		return nil
	}
	buf := make([]byte, bootdata.MaxRegionSize)
	n, err := c.source.ReadBootData(bootdata.MajorIAS, buf)
	if err == nil {
		c.shared, err = bootdata.Load(buf[:n])
	}
	switch {
	case err == nil:
		logger.Debug().Int("totalLength", c.shared.TotalLen()).Msg("Loaded boot data.")
		return nil
	case errors.Is(err, bootdata.ErrNoBootData):
		logger.Debug().Err(err).Msg("No boot data, claims come from the platform.")
		return nil
	case c.cfg.AllowMissingBootData:
		logger.Warn().Err(err).Msg("Ignoring invalid boot data.")
		c.shared = nil
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInitFailed, err)
}

// BootData returns the loaded boot data, or nil if there is none.
func (c *Context) BootData() *bootdata.SharedData {
	return c.shared
}
