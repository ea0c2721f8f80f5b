package server

import (
	"fmt"

	"github.com/DIMO-Network/initial-attestation/pkg/attest"
	"github.com/gofiber/fiber/v2"
)

// Status is a PSA initial attestation status code.
type Status int32

const (
	StatusSuccess          Status = 0
	StatusInitFailed       Status = 1
	StatusBufferOverflow   Status = 2
	StatusClaimUnavailable Status = 3
	StatusInvalidArgument  Status = 4
	StatusGeneral          Status = 5
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusInitFailed:
		return "init-failed"
	case StatusBufferOverflow:
		return "buffer-overflow"
	case StatusClaimUnavailable:
		return "claim-unavailable"
	case StatusInvalidArgument:
		return "invalid-argument"
	case StatusGeneral:
		return "general"
	}
	return fmt.Sprintf("status(%d)", int32(s))
}

// StatusFromError translates an attestation error into its status code.
func StatusFromError(err error) Status {
	switch attest.Kind(err) {
	case "":
		return StatusSuccess
	case attest.ErrInitFailed:
		return StatusInitFailed
	case attest.ErrTokenBufferOverflow:
		return StatusBufferOverflow
	case attest.ErrClaimUnavailable:
		return StatusClaimUnavailable
	case attest.ErrInvalidInput:
		return StatusInvalidArgument
	}
	return StatusGeneral
}

// HTTPStatus returns the HTTP status code a status is reported with.
func (s Status) HTTPStatus() int {
	switch s {
	case StatusSuccess:
		return fiber.StatusOK
	case StatusInvalidArgument:
		return fiber.StatusBadRequest
	case StatusBufferOverflow:
		return fiber.StatusUnprocessableEntity
	case StatusClaimUnavailable, StatusInitFailed:
		return fiber.StatusServiceUnavailable
	}
	return fiber.StatusInternalServerError
}
