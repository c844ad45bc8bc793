package multisig

import (
	"errors"

	libHTTP "github.com/LerianStudio/lib-stablecoin/stablecoin/net/http"
	"github.com/gofiber/fiber/v2"
)

// Created is the reply to a create request.
type Created struct {
	TransactionID string `json:"transactionId"`
}

// Handler exposes a Service over HTTP.
type Handler struct {
	service *Service
}

// NewHandler returns a Handler for service.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes mounts the transaction endpoints on router.
func (h *Handler) RegisterRoutes(router fiber.Router) {
	v1 := router.Group("/v1/transactions")
	v1.Post("/", h.create)
	v1.Get("/", h.list)
	v1.Get("/:id", h.get)
	v1.Put("/:id", h.sign)
	v1.Delete("/:id", h.delete)
}

func (h *Handler) create(c *fiber.Ctx) error {
	var in CreateInput
	if err := c.BodyParser(&in); err != nil {
		return libHTTP.BadRequestError(c, "invalid_request", "malformed transaction")
	}

	t, err := h.service.Create(c.UserContext(), in)
	if err != nil {
		return renderError(c, err)
	}

	return libHTTP.Created(c, Created{TransactionID: t.ID})
}

func (h *Handler) sign(c *fiber.Ctx) error {
	var in SignInput
	if err := c.BodyParser(&in); err != nil {
		return libHTTP.BadRequestError(c, "invalid_request", "malformed signature")
	}

	if _, err := h.service.Sign(c.UserContext(), c.Params("id"), in); err != nil {
		return renderError(c, err)
	}

	return libHTTP.NoContent(c)
}

func (h *Handler) delete(c *fiber.Ctx) error {
	if err := h.service.Delete(c.UserContext(), c.Params("id")); err != nil {
		return renderError(c, err)
	}

	return libHTTP.OK(c, fiber.Map{"deleted": c.Params("id")})
}

func (h *Handler) get(c *fiber.Ctx) error {
	t, err := h.service.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return renderError(c, err)
	}

	return libHTTP.OK(c, t)
}

func (h *Handler) list(c *fiber.Ctx) error {
	page, limit, err := libHTTP.ParsePagination(c)
	if err != nil {
		return libHTTP.BadRequestError(c, "invalid_pagination", err.Error())
	}

	f := Filter{PublicKey: c.Query("publicKey"), Network: c.Query("network"), Page: page, Limit: limit}

	if s := c.Query("status"); s != "" {
		if f.Status, err = ParseStatus(s); err != nil {
			return renderError(c, err)
		}
	}

	result, err := h.service.List(c.UserContext(), f)
	if err != nil {
		return renderError(c, err)
	}

	return libHTTP.OK(c, result)
}

func renderError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, ErrInvalidID), errors.Is(err, ErrInvalidStatus), errors.Is(err, ErrInvalidNetwork):
		return libHTTP.BadRequestError(c, "invalid_request", err.Error())
	case errors.Is(err, ErrAlreadySigned):
		return libHTTP.ConflictError(c, "already_signed", err.Error())
	case errors.Is(err, ErrUnauthorizedKey):
		return libHTTP.WriteError(c, fiber.StatusForbidden, "unauthorized_key", err.Error())
	case errors.Is(err, ErrInvalidSignature):
		return libHTTP.WriteError(c, fiber.StatusNotAcceptable, "invalid_signature", err.Error())
	default:
		return libHTTP.RenderError(c, err)
	}
}
