package http

import (
	"strconv"

	"github.com/LerianStudio/lib-stablecoin/stablecoin"
	"github.com/gofiber/fiber/v2"
)

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Code    string                  `json:"code"`
	Title   string                  `json:"title"`
	Message string                  `json:"message"`
	Fields  []stablecoin.FieldError `json:"fields,omitempty"`
}

// Respond sends status with body as JSON.
func Respond(c *fiber.Ctx, status int, body any) error {
	return c.Status(status).JSON(body)
}

// OK sends an HTTP 200 OK response with a custom body.
func OK(c *fiber.Ctx, s any) error {
	return Respond(c, fiber.StatusOK, s)
}

// Created sends an HTTP 201 Created response with a custom body.
func Created(c *fiber.Ctx, s any) error {
	return Respond(c, fiber.StatusCreated, s)
}

// Accepted sends an HTTP 202 Accepted response with a custom body.
func Accepted(c *fiber.Ctx, s any) error {
	return Respond(c, fiber.StatusAccepted, s)
}

// NoContent sends an HTTP 204 No Content response.
func NoContent(c *fiber.Ctx) error {
	return c.SendStatus(fiber.StatusNoContent)
}

// WriteError writes a structured error response.
func WriteError(c *fiber.Ctx, status int, title, message string) error {
	return Respond(c, status, ErrorResponse{
		Code:    strconv.Itoa(status),
		Title:   title,
		Message: message,
	})
}

// BadRequestError writes a 400 Bad Request error response.
func BadRequestError(c *fiber.Ctx, title, message string) error {
	return WriteError(c, fiber.StatusBadRequest, title, message)
}

// NotFoundError writes a 404 Not Found error response.
func NotFoundError(c *fiber.Ctx, title, message string) error {
	return WriteError(c, fiber.StatusNotFound, title, message)
}

// ConflictError writes a 409 Conflict error response.
func ConflictError(c *fiber.Ctx, title, message string) error {
	return WriteError(c, fiber.StatusConflict, title, message)
}

// SimpleInternalServerError writes a 500 with a generic message so internal
// details never leak.
func SimpleInternalServerError(c *fiber.Ctx) error {
	return WriteError(c, fiber.StatusInternalServerError, "internal_error", "internal server error")
}
