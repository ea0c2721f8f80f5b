// Package wellknown provides fiber controllers for well-known endpoints.
package wellknown

import (
	"crypto"
	"crypto/x509"
	"encoding/hex"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/DIMO-Network/initial-attestation/pkg/attest"
	"github.com/DIMO-Network/initial-attestation/pkg/iat"
	"github.com/DIMO-Network/initial-attestation/pkg/platform"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
)

// KeySource returns the public key and key ID of a signing key slot.
type KeySource interface {
	PublicKey(slot uint8) (crypto.PublicKey, []byte, error)
}

// Key is a provisioned attestation key as a verifier needs it.
type Key struct {
	Slot       uint8  `json:"slot"`
	PublicKey  []byte `json:"publicKey"`
	KeyID      string `json:"kid"`
	InstanceID string `json:"instanceId"`
	Algorithm  string `json:"algorithm"`
}

// KeysResponse is the response for the keys endpoint.
type KeysResponse struct {
	Keys []Key `json:"keys"`
}

// RegisterRoutes adds the well-known routes for the attestation service to a
// fiber app.
func RegisterRoutes(app *fiber.App, controller *Controller) {
	wellKnown := app.Group("/.well-known")
	wellKnown.Get("iat-keys", controller.GetKeys)
}

// Controller is a controller for well-known endpoints.
type Controller struct {
	keys       KeySource
	cachedResp atomic.Pointer[KeysResponse]
}

// NewController creates a new Controller.
func NewController(keys KeySource) *Controller {
	return &Controller{keys: keys}
}

// GetKeys godoc
// @Summary Get attestation keys
// @Description Get the public key, key ID and instance ID of every provisioned key slot
// @Tags keys
// @Produce json
// @Success 200 {object} KeysResponse
// @Router /.well-known/iat-keys [get]
func (c *Controller) GetKeys(ctx *fiber.Ctx) error {
	if cached := c.cachedResp.Load(); cached != nil {
		return ctx.JSON(*cached)
	}
	resp, err := c.collectKeys()
	if err != nil {
		zerolog.Ctx(ctx.UserContext()).Error().Err(err).Msg("Failed to list attestation keys.")
		return fiber.NewError(fiber.StatusInternalServerError, "Failed to list attestation keys")
	}
	c.cachedResp.Store(resp)
	return ctx.JSON(*resp)
}

func (c *Controller) collectKeys() (*KeysResponse, error) {
	resp := &KeysResponse{Keys: []Key{}}
	for slot := uint8(0); slot < platform.MaxKeySlots; slot++ {
		pub, kid, err := c.keys.PublicKey(slot)
		if errors.Is(err, platform.ErrKeyNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("slot %d: %w", slot, err)
		}
		alg, err := attest.Algorithm(pub)
		if err != nil {
			return nil, fmt.Errorf("slot %d: %w", slot, err)
		}
		der, err := x509.MarshalPKIXPublicKey(pub)
		if err != nil {
			return nil, fmt.Errorf("slot %d: failed to marshal public key: %w", slot, err)
		}
		resp.Keys = append(resp.Keys, Key{
			Slot:       slot,
			PublicKey:  der,
			KeyID:      hex.EncodeToString(kid),
			InstanceID: hex.EncodeToString(append([]byte{iat.UEIDTypeRandom}, kid...)),
			Algorithm:  alg.String(),
		})
	}
	return resp, nil
}
