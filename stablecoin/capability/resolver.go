package capability

import (
	"context"
	"fmt"

	"github.com/LerianStudio/lib-stablecoin/stablecoin"
	constant "github.com/LerianStudio/lib-stablecoin/stablecoin/constants"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/ledger"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/log"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/opentelemetry"
	"go.opentelemetry.io/otel/attribute"
)

// TokenReader loads the ledger view of a token.
type TokenReader interface {
	Token(ctx context.Context, tokenID ledger.ID) (ledger.Token, error)
}

// Resolver builds TokenCapabilities from live token state.
type Resolver struct {
	reader TokenReader
	logger log.Logger
}

// NewResolver returns a Resolver reading tokens through reader.
func NewResolver(reader TokenReader, logger log.Logger) *Resolver {
	return &Resolver{reader: reader, logger: log.OrNop(logger)}
}

// Resolve reads the token and computes the capabilities of account. Reader
// errors are returned unchanged.
func (r *Resolver) Resolve(ctx context.Context, account ledger.Account, tokenID ledger.ID) (TokenCapabilities, error) {
	_, tracer, _ := stablecoin.NewTrackingFromContext(ctx)

	ctx, span := tracer.Start(ctx, "capability.resolve")
	defer span.End()

	span.SetAttributes(
		attribute.String(constant.AttrTokenID, tokenID.String()),
		attribute.String(constant.AttrAccountID, account.ID.String()),
	)

	token, err := r.reader.Token(ctx, tokenID)
	if err != nil {
		opentelemetry.HandleSpanError(&span, "failed to read token", err)
		r.logger.Log(ctx, log.LevelError, "failed to read token", log.String("token_id", tokenID.String()), log.Err(err))

		return TokenCapabilities{}, err
	}

	tc := Compute(token, account)

	r.logger.Log(ctx, log.LevelDebug, "capabilities resolved",
		log.String("token_id", tokenID.String()),
		log.String("account_id", account.ID.String()),
		log.Int("count", len(tc.Capabilities)))

	return tc, nil
}

// Compute derives the capabilities of account on token without any I/O.
func Compute(token ledger.Token, account ledger.Account) TokenCapabilities {
	operable := token.Operable()
	caps := make([]Capability, 0, 16)

	add := func(access Access, ops ...Operation) {
		for _, op := range ops {
			caps = append(caps, Capability{Operation: op, Access: access})
		}
	}

	// keyed resolves a key to CONTRACT when it is the proxy and to NATIVE
	// when it is a public key of the acting account.
	keyed := func(enabled bool, key *ledger.Key, ops ...Operation) {
		if !enabled || key == nil {
			return
		}

		switch {
		case token.IsProxyKey(key):
			add(Contract, ops...)
		case key.IsPublicKey() && account.PublicKey != nil && key.PublicKey.Equal(*account.PublicKey):
			add(Native, ops...)
		}
	}

	if operable && token.ProxyAddress != nil && token.Treasury == *token.ProxyAddress {
		add(Contract, Rescue, RescueHBAR)
	}

	keyed(operable, token.Keys.Supply, CashIn, Burn)
	keyed(operable, token.Keys.Wipe, Wipe)
	keyed(!token.Deleted, token.Keys.Pause, Pause, Unpause)
	keyed(operable, token.Keys.Freeze, Freeze, Unfreeze)
	keyed(operable, token.Keys.Kyc, GrantKyc, RevokeKyc)
	keyed(operable, token.Keys.FeeSchedule, UpdateCustomFees)
	keyed(operable, token.Keys.Admin, Delete)

	if operable && token.IsProxyKey(token.Keys.Supply) && token.IsProxyKey(token.Keys.Wipe) {
		add(Contract, CreateHold, ControllerCreateHold, ExecuteHold, ReleaseHold, ReclaimHold)
	}

	if operable {
		add(Native, Transfers)
	}

	for _, c := range caps {
		if c.Access == Contract {
			add(Contract, RoleManagement)
			break
		}
	}

	if token.AutoRenewAccount != nil && *token.AutoRenewAccount == account.ID && token.Memo != "" {
		add(Contract, RoleAdminManagement, ReserveManagement)
	}

	return TokenCapabilities{Token: token, Capabilities: caps, Account: account}
}

// Decide returns the access path of op, or an OperationNotAllowed violation
// when op is not in tc.
func Decide(tc TokenCapabilities, op Operation) (Access, error) {
	access, ok := tc.Access(op)
	if !ok {
		return "", stablecoin.NewBusinessRuleViolation(constant.ErrOperationNotAllowed, "operation",
			fmt.Sprintf("operation %s is not allowed for account %s on token %s", op, tc.Account.ID, tc.Token.ID))
	}

	return access, nil
}
