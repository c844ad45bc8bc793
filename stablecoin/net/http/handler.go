package http

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/LerianStudio/lib-stablecoin/stablecoin"
	constant "github.com/LerianStudio/lib-stablecoin/stablecoin/constants"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/log"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/runtime"
	"github.com/gofiber/fiber/v2"
)

// Ping returns HTTP Status 200 with response "pong".
func Ping(c *fiber.Ctx) error {
	return c.SendString("pong")
}

// Version returns HTTP Status 200 with the VERSION of the running build.
func Version(c *fiber.Ctx) error {
	return OK(c, fiber.Map{
		"version":     stablecoin.GetenvOrDefault("VERSION", "0.0.0"),
		"requestDate": time.Now().UTC(),
	})
}

// RenderError maps domain errors onto HTTP replies.
func RenderError(c *fiber.Ctx, err error) error {
	var (
		fe         *fiber.Error
		validation *stablecoin.ValidationError
		violation  *stablecoin.BusinessRuleViolation
		signing    *stablecoin.SigningError
		ledgerErr  *stablecoin.TransactionResponseError
	)

	switch {
	case errors.As(err, &fe):
		return WriteError(c, fe.Code, "request_error", fe.Message)
	case errors.As(err, &validation):
		return Respond(c, fiber.StatusBadRequest, ErrorResponse{
			Code:    strconv.Itoa(fiber.StatusBadRequest),
			Title:   "invalid_request",
			Message: validation.Error(),
			Fields:  validation.Fields,
		})
	case errors.As(err, &violation):
		return Respond(c, fiber.StatusUnprocessableEntity, stablecoin.ValidateBusinessError(err, ""))
	case errors.Is(err, constant.ErrNotFound):
		return NotFoundError(c, "not_found", err.Error())
	case errors.As(err, &signing):
		if errors.Is(err, constant.ErrSignatureTimeout) {
			return WriteError(c, fiber.StatusGatewayTimeout, "signature_timeout", signing.Error())
		}

		return ConflictError(c, "signing_failed", signing.Error())
	case errors.As(err, &ledgerErr):
		return WriteError(c, fiber.StatusBadGateway, "transaction_failed", ledgerErr.Error())
	default:
		return SimpleInternalServerError(c)
	}
}

// FiberErrorHandler logs unexpected handler errors with the request logger
// and renders them.
func FiberErrorHandler(c *fiber.Ctx, err error) error {
	ctx := c.UserContext()
	if ctx == nil {
		ctx = context.Background()
	}

	var fe *fiber.Error
	if !errors.As(err, &fe) {
		logger := stablecoin.NewLoggerFromContext(ctx).With(
			log.String("method", c.Method()),
			log.String("path", c.Path()))

		log.SafeError(logger, ctx, "handler error", err, runtime.IsProductionMode())
	}

	return RenderError(c, err)
}
