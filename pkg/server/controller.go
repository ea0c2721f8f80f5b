package server

import (
	"context"
	"crypto"
	"crypto/x509"
	"encoding/hex"

	"github.com/DIMO-Network/initial-attestation/pkg/attest"
	"github.com/DIMO-Network/initial-attestation/pkg/platform"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
)

// MaxTokenBufferSize bounds the token buffer a caller can request.
const MaxTokenBufferSize = 0x1000

// TokenService is the attestation service behind the controller.
type TokenService interface {
	GetTokenSize(ctx context.Context, challengeLen uint32, opts attest.Options) (uint32, error)
	GetToken(ctx context.Context, challenge, out []byte, opts attest.Options) (uint32, error)
	PublicKey(slot uint8) (crypto.PublicKey, []byte, error)
}

// SizeResponse is the response of the token size request.
type SizeResponse struct {
	Status Status `json:"status"`
	Size   uint32 `json:"size"`
}

// TokenRequest is the body of the token request.
type TokenRequest struct {
	Challenge        []byte `json:"challenge"`
	KeySelect        uint8  `json:"keySelect"`
	OmitClaims       bool   `json:"omitClaims"`
	ShortCircuitSign bool   `json:"shortCircuitSign"`
	// BufferSize is the size of the caller token buffer. Zero sizes the
	// buffer to fit the token.
	BufferSize uint32 `json:"bufferSize"`
}

// TokenResponse is the response of the token request.
type TokenResponse struct {
	Status Status `json:"status"`
	Token  []byte `json:"token"`
}

// KeyResponse describes a signing key.
type KeyResponse struct {
	Slot      uint8  `json:"slot"`
	PublicKey []byte `json:"publicKey"`
	KeyID     string `json:"kid"`
	Algorithm string `json:"algorithm"`
}

// ErrorResponse is returned for failed attestation requests.
type ErrorResponse struct {
	Status  Status `json:"status"`
	Message string `json:"message"`
}

// Controller exposes the attestation service over HTTP.
type Controller struct {
	service TokenService
}

// NewController creates a new Controller.
func NewController(service TokenService) *Controller {
	return &Controller{service: service}
}

// RegisterRoutes adds the attestation routes to a fiber app.
func RegisterRoutes(app *fiber.App, controller *Controller) {
	group := app.Group("/iat")
	group.Get("/size", controller.GetTokenSize)
	group.Post("/token", controller.GetToken)
	group.Get("/keys/:slot", controller.GetKey)
}

// GetTokenSize godoc
// @Summary Get token size
// @Description Get the size of the token issued for a challenge size
// @Tags attestation
// @Produce json
// @Param challengeSize query int true "Challenge size in bytes"
// @Param keySelect query int false "Signing key slot"
// @Param omitClaims query bool false "Size a challenge only token"
// @Success 200 {object} SizeResponse
// @Failure 400 {object} ErrorResponse
// @Router /iat/size [get]
func (c *Controller) GetTokenSize(ctx *fiber.Ctx) error {
	challengeSize := ctx.QueryInt("challengeSize", 0)
	keySelect := ctx.QueryInt("keySelect", 0)
	if challengeSize < 0 || keySelect < 0 || keySelect >= platform.MaxKeySlots {
		observe("size", StatusInvalidArgument)
		return ctx.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Status: StatusInvalidArgument, Message: "invalid query"})
	}
	opts := attest.Options{
		KeySelect:  uint8(keySelect),
		OmitClaims: ctx.QueryBool("omitClaims", false),
	}
	size, err := c.service.GetTokenSize(ctx.UserContext(), uint32(challengeSize), opts)
	if err != nil {
		return attestationError(ctx, "size", err)
	}
	observe("size", StatusSuccess)
	return ctx.JSON(SizeResponse{Status: StatusSuccess, Size: size})
}

// GetToken godoc
// @Summary Get token
// @Description Issue a signed initial attestation token over a challenge
// @Tags attestation
// @Accept json
// @Produce json
// @Param request body TokenRequest true "Token request"
// @Success 200 {object} TokenResponse
// @Failure 400 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Router /iat/token [post]
func (c *Controller) GetToken(ctx *fiber.Ctx) error {
	var req TokenRequest
	if err := ctx.BodyParser(&req); err != nil {
		observe("token", StatusInvalidArgument)
		return ctx.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Status: StatusInvalidArgument, Message: "invalid request body"})
	}
	if req.BufferSize > MaxTokenBufferSize {
		observe("token", StatusInvalidArgument)
		return ctx.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Status: StatusInvalidArgument, Message: "buffer size too large"})
	}
	opts := attest.Options{
		KeySelect:        req.KeySelect,
		OmitClaims:       req.OmitClaims,
		ShortCircuitSign: req.ShortCircuitSign,
	}
	bufferSize := req.BufferSize
	if bufferSize == 0 {
		size, err := c.service.GetTokenSize(ctx.UserContext(), uint32(len(req.Challenge)), opts)
		if err != nil {
			return attestationError(ctx, "token", err)
		}
		bufferSize = size
	}
	out := make([]byte, bufferSize)
	n, err := c.service.GetToken(ctx.UserContext(), req.Challenge, out, opts)
	if err != nil {
		return attestationError(ctx, "token", err)
	}
	observe("token", StatusSuccess)
	tokenSize.Observe(float64(n))
	return ctx.JSON(TokenResponse{Status: StatusSuccess, Token: out[:n]})
}

// GetKey godoc
// @Summary Get signing key
// @Description Get the public key and key ID of a signing key slot
// @Tags keys
// @Produce json
// @Param slot path int true "Signing key slot"
// @Success 200 {object} KeyResponse
// @Failure 400 {object} ErrorResponse
// @Router /iat/keys/{slot} [get]
func (c *Controller) GetKey(ctx *fiber.Ctx) error {
	slot, err := ctx.ParamsInt("slot")
	if err != nil || slot < 0 || slot >= platform.MaxKeySlots {
		return fiber.NewError(fiber.StatusBadRequest, "invalid key slot")
	}
	pub, kid, err := c.service.PublicKey(uint8(slot))
	if err != nil {
		return attestationError(ctx, "key", err)
	}
	alg, err := attest.Algorithm(pub)
	if err != nil {
		return attestationError(ctx, "key", err)
	}
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		zerolog.Ctx(ctx.UserContext()).Error().Err(err).Msg("Failed to marshal public key.")
		return fiber.NewError(fiber.StatusInternalServerError, "Failed to marshal public key")
	}
	return ctx.JSON(KeyResponse{
		Slot:      uint8(slot),
		PublicKey: der,
		KeyID:     hex.EncodeToString(kid),
		Algorithm: alg.String(),
	})
}

func attestationError(ctx *fiber.Ctx, operation string, err error) error {
	status := StatusFromError(err)
	observe(operation, status)
	logger := zerolog.Ctx(ctx.UserContext())
	if status == StatusGeneral || status == StatusInitFailed {
		logger.Error().Err(err).Str("operation", operation).Msg("Attestation request failed.")
	} else {
		logger.Debug().Err(err).Str("operation", operation).Msg("Attestation request rejected.")
	}
	return ctx.Status(status.HTTPStatus()).JSON(ErrorResponse{Status: status, Message: err.Error()})
}
