package server

import (
	"errors"
	"strings"

	"github.com/DIMO-Network/initial-attestation/pkg/platform"
	"github.com/DIMO-Network/initial-attestation/pkg/wellknown"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// CreateWebServer creates the attestation web server. Every request is
// attributed to callerID, the client ID of whoever can reach the listener.
func CreateWebServer(logger *zerolog.Logger, service TokenService, callerID int32) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return ErrorHandler(c, err, logger)
		},
		DisableStartupMessage: true,
	})
	app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
	}))
	app.Use(LoggerMiddleware(logger))
	app.Use(CallerMiddleware(callerID))
	app.Get("/", HealthCheck)
	RegisterRoutes(app, NewController(service))
	wellknown.RegisterRoutes(app, wellknown.NewController(service))
	return app
}

// CallerMiddleware attributes every request to the given client ID.
func CallerMiddleware(callerID int32) fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.SetUserContext(platform.WithCallerID(c.UserContext(), callerID))
		return c.Next()
	}
}

// CreateMonitoringServer creates the server exposing prometheus metrics.
func CreateMonitoringServer() *fiber.App {
	monApp := fiber.New(fiber.Config{DisableStartupMessage: true})
	monApp.Get("/", func(*fiber.Ctx) error { return nil })
	monApp.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))
	return monApp
}

// HealthCheck godoc
// @Summary Show the status of server.
// @Description get the status of server.
// @Tags root
// @Accept */*
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router / [get]
func HealthCheck(ctx *fiber.Ctx) error {
	res := map[string]any{
		"data": "Server is up and running",
	}
	return ctx.JSON(res)
}

// ErrorHandler custom handler to log recovered errors using our logger and return json instead of string.
func ErrorHandler(ctx *fiber.Ctx, err error, logger *zerolog.Logger) error {
	code := fiber.StatusInternalServerError
	message := "Internal error."

	var e *fiber.Error
	if errors.As(err, &e) {
		code = e.Code
		message = e.Message
	}

	// don't log not found errors
	if code != fiber.StatusNotFound {
		logger.Err(err).Int("httpStatusCode", code).
			Str("httpPath", strings.TrimPrefix(ctx.Path(), "/")).
			Str("httpMethod", ctx.Method()).
			Msg("caught an error from http request")
	}

	return ctx.Status(code).JSON(codeResp{Code: code, Message: message})
}

type codeResp struct {
	Message string `json:"message"`
	Code    int    `json:"code"`
}
