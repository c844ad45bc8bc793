package extension

import (
	"encoding/json"

	"github.com/LerianStudio/lib-stablecoin/stablecoin"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/ledger"
	libHTTP "github.com/LerianStudio/lib-stablecoin/stablecoin/net/http"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/validation"
	"github.com/gofiber/fiber/v2"
)

// PairRequest is the body of POST /v1/pair.
type PairRequest struct {
	Account ledger.Account `json:"account"`
	Network string         `json:"network"`
}

// ResolveRequest is the body of POST /v1/requests/:id/response. Either
// Response carries the wallet envelope or Rejected is set.
type ResolveRequest struct {
	Response json.RawMessage `json:"response,omitempty"`
	Rejected bool            `json:"rejected,omitempty"`
	Reason   string          `json:"reason,omitempty"`
}

// RegisterRoutes mounts the bridge endpoints on router.
func (b *Bridge) RegisterRoutes(router fiber.Router) {
	v1 := router.Group("/v1")
	v1.Post("/pair", b.handlePair)
	v1.Delete("/pair", b.handleDisconnect)
	v1.Get("/pair", b.handlePairing)
	v1.Get("/requests", b.handlePoll)
	v1.Post("/requests/:id/response", b.handleResolve)
}

func (b *Bridge) handlePair(c *fiber.Ctx) error {
	var req PairRequest
	if err := c.BodyParser(&req); err != nil {
		return libHTTP.BadRequestError(c, "invalid_request", "malformed pairing request")
	}

	var publicKey string
	if req.Account.PublicKey != nil {
		publicKey = req.Account.PublicKey.Key
	}

	if err := validation.Fields("Pair",
		validation.On("account.id", req.Account.ID, validation.ID),
		validation.On("account.publicKey", publicKey, validation.Required),
		validation.On("network", req.Network, validation.Required),
	); err != nil {
		return libHTTP.RenderError(c, err)
	}

	req.Account.PrivateKey = nil

	return libHTTP.Created(c, b.Pair(c.UserContext(), req.Account, req.Network))
}

func (b *Bridge) handleDisconnect(c *fiber.Ctx) error {
	if !b.Disconnect(c.UserContext()) {
		return libHTTP.NotFoundError(c, "not_paired", "no wallet is paired")
	}

	return libHTTP.NoContent(c)
}

func (b *Bridge) handlePairing(c *fiber.Ctx) error {
	b.mu.Lock()
	pairing := b.pairing
	b.mu.Unlock()

	if pairing == nil {
		return libHTTP.NotFoundError(c, "not_paired", "no wallet is paired")
	}

	return libHTTP.OK(c, pairing)
}

func (b *Bridge) handlePoll(c *fiber.Ctx) error {
	requests := b.Poll(c.UserContext())
	if len(requests) == 0 {
		return libHTTP.NoContent(c)
	}

	return libHTTP.OK(c, requests)
}

func (b *Bridge) handleResolve(c *fiber.Ctx) error {
	var req ResolveRequest
	if err := c.BodyParser(&req); err != nil {
		return libHTTP.BadRequestError(c, "invalid_request", "malformed response")
	}

	if !req.Rejected && len(req.Response) == 0 {
		return libHTTP.RenderError(c, &stablecoin.ValidationError{
			Request: "Resolve",
			Fields:  []stablecoin.FieldError{{Field: "response", Rule: "required", Message: "response or rejected is required"}},
		})
	}

	reason := ""
	if req.Rejected {
		reason = req.Reason
		if reason == "" {
			reason = "rejected by wallet"
		}

		req.Response = nil
	}

	if !b.Resolve(c.Params("id"), req.Response, reason) {
		return libHTTP.NotFoundError(c, "unknown_request", "no pending request with this id")
	}

	return libHTTP.NoContent(c)
}
