package attest

import (
	"context"
	"crypto"
	"sync"

	"github.com/rs/zerolog"
)

// Service serializes token requests over a Context, as the secure partition
// dispatch loop does for its callers.
type Service struct {
	mu     sync.Mutex
	attest *Context
	logger zerolog.Logger
}

// NewService creates a Service over c.
func NewService(c *Context, logger zerolog.Logger) *Service {
	return &Service{
		attest: c,
		logger: logger.With().Str("component", "attestation").Logger(),
	}
}

// Init loads the boot data of the underlying Context.
func (s *Service) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attest.Init(s.withLogger(ctx))
}

// GetTokenSize implements the token size request.
func (s *Service) GetTokenSize(ctx context.Context, challengeLen uint32, opts Options) (uint32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	size, err := s.attest.GetTokenSize(s.withLogger(ctx), challengeLen, opts)
	if err != nil {
		s.logger.Debug().Err(err).Uint32("challengeSize", challengeLen).Msg("Token size request failed.")
	}
	return size, err
}

// GetToken implements the token request.
func (s *Service) GetToken(ctx context.Context, challenge, out []byte, opts Options) (uint32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, err := s.attest.GetToken(s.withLogger(ctx), challenge, out, opts)
	if err != nil {
		s.logger.Debug().Err(err).Int("challengeSize", len(challenge)).Msg("Token request failed.")
	}
	return n, err
}

// PublicKey returns the public key and key ID of a signing key slot.
func (s *Service) PublicKey(slot uint8) (crypto.PublicKey, []byte, error) {
	return s.attest.PublicKey(slot)
}

// Config returns the configuration of the underlying Context.
func (s *Service) Config() Config {
	return s.attest.Config()
}

// withLogger attaches the service logger unless the request carries its own.
func (s *Service) withLogger(ctx context.Context) context.Context {
	if l := zerolog.Ctx(ctx); l.GetLevel() != zerolog.Disabled {
		return ctx
	}
	return s.logger.WithContext(ctx)
}
