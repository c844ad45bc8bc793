package main

import (
	"github.com/LerianStudio/lib-stablecoin/stablecoin/adapter"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/bigdecimal"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/capability"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/ledger"
	libHTTP "github.com/LerianStudio/lib-stablecoin/stablecoin/net/http"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/query"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/session"
	"github.com/gofiber/fiber/v2"
)

// queryAPI serves the query bus and the active wallet switch over HTTP.
type queryAPI struct {
	session *session.Session
}

func newQueryAPI(s *session.Session) *queryAPI {
	return &queryAPI{session: s}
}

type useWalletRequest struct {
	Kind string `json:"kind"`
}

func (a *queryAPI) RegisterRoutes(router fiber.Router) {
	v1 := router.Group("/v1")
	v1.Put("/wallet", a.useWallet)
	v1.Get("/tokens/:tokenId/capabilities", a.capabilities)
	v1.Get("/tokens/:tokenId/balances/:accountId", a.balance)
}

func (a *queryAPI) useWallet(c *fiber.Ctx) error {
	var req useWalletRequest
	if err := c.BodyParser(&req); err != nil {
		return libHTTP.BadRequestError(c, "invalid_request", "malformed wallet request")
	}

	kind, err := adapter.ParseWalletKind(req.Kind)
	if err != nil {
		return libHTTP.BadRequestError(c, "invalid_request", err.Error())
	}

	if err := a.session.Use(c.UserContext(), kind); err != nil {
		return libHTTP.RenderError(c, err)
	}

	return libHTTP.NoContent(c)
}

// capabilities resolves for ?accountId= when given, and for the active
// wallet's account otherwise.
func (a *queryAPI) capabilities(c *fiber.Ctx) error {
	tokenID, err := ledger.ParseID(c.Params("tokenId"))
	if err != nil {
		return libHTTP.BadRequestError(c, "invalid_request", "invalid token id")
	}

	var account ledger.Account

	if raw := c.Query("accountId"); raw != "" {
		if account.ID, err = ledger.ParseID(raw); err != nil {
			return libHTTP.BadRequestError(c, "invalid_request", "invalid account id")
		}
	} else {
		wallet, err := a.session.Registry().Active()
		if err != nil {
			return libHTTP.RenderError(c, err)
		}

		account = wallet.Account()
	}

	tc, err := session.Query[capability.TokenCapabilities](c.UserContext(), a.session, query.GetCapabilities{Account: account, TokenID: tokenID})
	if err != nil {
		return libHTTP.RenderError(c, err)
	}

	return libHTTP.OK(c, tc)
}

func (a *queryAPI) balance(c *fiber.Ctx) error {
	tokenID, err := ledger.ParseID(c.Params("tokenId"))
	if err != nil {
		return libHTTP.BadRequestError(c, "invalid_request", "invalid token id")
	}

	accountID, err := ledger.ParseID(c.Params("accountId"))
	if err != nil {
		return libHTTP.BadRequestError(c, "invalid_request", "invalid account id")
	}

	b, err := session.Query[bigdecimal.BigDecimal](c.UserContext(), a.session, query.GetBalance{TokenID: tokenID, AccountID: accountID})
	if err != nil {
		return libHTTP.RenderError(c, err)
	}

	return libHTTP.OK(c, fiber.Map{"tokenId": tokenID.String(), "accountId": accountID.String(), "balance": b})
}
