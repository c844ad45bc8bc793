package adapter

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/LerianStudio/lib-stablecoin/stablecoin"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/bigdecimal"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/capability"
	constant "github.com/LerianStudio/lib-stablecoin/stablecoin/constants"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/event"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/ledger"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/log"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/opentelemetry"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/response"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/tx"
	"github.com/ethereum/go-ethereum/common"
	"go.opentelemetry.io/otel/attribute"
)

// AddressResolver maps a ledger account to the EVM address contracts see.
type AddressResolver interface {
	EVMAddress(ctx context.Context, account ledger.ID) (common.Address, error)
}

// LongZeroAddresses resolves every account to its long-zero address.
type LongZeroAddresses struct{}

// EVMAddress implements AddressResolver.
func (LongZeroAddresses) EVMAddress(_ context.Context, account ledger.ID) (common.Address, error) {
	return account.ToEVMAddress(), nil
}

// HoldParams describes a hold to create. A zero Target lets the escrow pick
// the destination on execution.
type HoldParams struct {
	Amount     bigdecimal.BigDecimal
	Escrow     common.Address
	Target     common.Address
	Expiration time.Time
	Data       []byte
}

// Operator performs token operations through the active wallet.
type Operator struct {
	registry  *Registry
	builder   *tx.Builder
	addresses AddressResolver
	publisher event.Publisher
	logger    log.Logger
}

// OperatorOption configures an Operator.
type OperatorOption func(*Operator)

// WithAddressResolver sets how account ids become contract arguments.
func WithAddressResolver(r AddressResolver) OperatorOption {
	return func(o *Operator) {
		if r != nil {
			o.addresses = r
		}
	}
}

// WithPublisher sets where TransactionSubmitted events go.
func WithPublisher(p event.Publisher) OperatorOption {
	return func(o *Operator) { o.publisher = event.OrNop(p) }
}

// WithLogger sets the logger.
func WithLogger(l log.Logger) OperatorOption {
	return func(o *Operator) { o.logger = log.OrNop(l) }
}

// NewOperator returns an Operator sending through registry.
func NewOperator(registry *Registry, builder *tx.Builder, opts ...OperatorOption) *Operator {
	o := &Operator{
		registry:  registry,
		builder:   builder,
		addresses: LongZeroAddresses{},
		publisher: event.Nop{},
		logger:    log.NewNop(),
	}

	for _, opt := range opts {
		opt(o)
	}

	return o
}

// Registry returns the adapter registry.
func (o *Operator) Registry() *Registry { return o.registry }

type contractCall struct {
	function string
	gas      uint64
	args     func(ctx context.Context) ([]any, error)
}

type operation struct {
	op       capability.Operation
	native   func(ctx context.Context) ([]*tx.Transaction, error)
	contract *contractCall
	kind     response.Kind
	spec     *response.DecodeSpec
}

// perform decides the access path, builds the transaction(s) and sends them
// through the active wallet. Native operations may expand to several
// transactions; the response of the last one is returned.
func (o *Operator) perform(ctx context.Context, tc capability.TokenCapabilities, p operation) (response.TransactionResponse, error) {
	_, tracer, _ := stablecoin.NewTrackingFromContext(ctx)

	ctx, span := tracer.Start(ctx, "operator."+string(p.op))
	defer span.End()

	span.SetAttributes(
		attribute.String(constant.AttrOperation, string(p.op)),
		attribute.String(constant.AttrTokenID, tc.Token.ID.String()),
		attribute.String(constant.AttrAccountID, tc.Account.ID.String()),
	)

	access, err := capability.Decide(tc, p.op)
	if err != nil {
		opentelemetry.HandleSpanBusinessErrorEvent(&span, "operation not allowed", err)

		return response.TransactionResponse{}, err
	}

	span.SetAttributes(attribute.String(constant.AttrAccess, string(access)))

	transactions, err := o.build(ctx, tc, access, p)
	if err != nil {
		opentelemetry.HandleSpanError(&span, "failed to build transaction", err)

		return response.TransactionResponse{}, err
	}

	wallet, err := o.registry.Active()
	if err != nil {
		opentelemetry.HandleSpanError(&span, "no active wallet", err)

		return response.TransactionResponse{}, err
	}

	network := NetworkOf(wallet)
	span.SetAttributes(
		attribute.String(constant.AttrWalletKind, wallet.Kind().String()),
		attribute.String(constant.AttrNetwork, network),
	)

	var res response.TransactionResponse

	for i, t := range transactions {
		kind, spec := response.Receipt, (*response.DecodeSpec)(nil)
		if i == len(transactions)-1 {
			kind, spec = p.kind, p.spec
		}

		res, err = wallet.SignAndSend(ctx, t, kind, spec)
		if err != nil {
			wrapped := wrapSendError(err, string(p.op), network, t.TransactionID())

			opentelemetry.HandleSpanError(&span, "failed to sign and send", wrapped)
			o.logger.Log(ctx, log.LevelError, "operation failed",
				log.String("operation", string(p.op)),
				log.String("wallet", wallet.Kind().String()),
				log.String("transaction_id", t.TransactionID()),
				log.Err(wrapped))

			return res, wrapped
		}

		span.SetAttributes(attribute.String(constant.AttrTransactionID, res.TransactionID))

		ev := event.New(event.TransactionSubmitted)
		ev.Wallet = wallet.Kind().String()
		ev.AccountID = tc.Account.ID.String()
		ev.TokenID = tc.Token.ID.String()
		ev.Operation = string(p.op)
		ev.TransactionID = res.TransactionID
		ev.Network = res.Network
		event.Emit(ctx, o.logger, o.publisher, ev)
	}

	o.logger.Log(ctx, log.LevelInfo, "operation sent",
		log.String("operation", string(p.op)),
		log.String("access", string(access)),
		log.String("transaction_id", res.TransactionID))

	return res, nil
}

func (o *Operator) build(ctx context.Context, tc capability.TokenCapabilities, access capability.Access, p operation) ([]*tx.Transaction, error) {
	switch access {
	case capability.Contract:
		proxy := tc.Token.ProxyAddress
		if p.contract == nil || proxy == nil || proxy.IsZero() {
			return nil, notAllowed(tc, p.op, "contract access requires a proxy")
		}

		var args []any

		if p.contract.args != nil {
			var err error
			if args, err = p.contract.args(ctx); err != nil {
				return nil, err
			}
		}

		t, err := o.builder.ContractCall(*proxy, p.contract.function, p.contract.gas, args...)
		if err != nil {
			return nil, err
		}

		return []*tx.Transaction{t}, nil
	case capability.Native:
		if p.native == nil {
			return nil, notAllowed(tc, p.op, "no native form")
		}

		return p.native(ctx)
	default:
		return nil, notAllowed(tc, p.op, "unknown access "+string(access))
	}
}

func notAllowed(tc capability.TokenCapabilities, op capability.Operation, reason string) error {
	return stablecoin.NewBusinessRuleViolation(constant.ErrOperationNotAllowed, "operation",
		fmt.Sprintf("operation %s on token %s: %s", op, tc.Token.ID, reason))
}

// wrapSendError attaches operation and network to adapter failures.
// Business and configuration errors are returned as they are.
func wrapSendError(err error, operation, network, transactionID string) error {
	var (
		violation *stablecoin.BusinessRuleViolation
		config    *stablecoin.ConfigurationError
		resp      *stablecoin.TransactionResponseError
	)

	switch {
	case errors.As(err, &violation), errors.As(err, &config):
		return err
	case errors.As(err, &resp):
		if resp.Operation == "" {
			resp.Operation = operation
		}

		if resp.Network == "" {
			resp.Network = network
		}

		if resp.TransactionID == "" {
			resp.TransactionID = transactionID
		}

		return err
	default:
		return &stablecoin.TransactionResponseError{
			Message:       err.Error(),
			TransactionID: transactionID,
			Network:       network,
			Operation:     operation,
			Err:           err,
		}
	}
}

func (o *Operator) address(ctx context.Context, id ledger.ID) (common.Address, error) {
	addr, err := o.addresses.EVMAddress(ctx, id)
	if err != nil {
		return common.Address{}, fmt.Errorf("resolving address of %s: %w", id, err)
	}

	return addr, nil
}

func units(operation string, amount bigdecimal.BigDecimal, decimals int32) (int64, error) {
	u, err := tx.Units(amount, decimals)
	if err != nil {
		return 0, &stablecoin.TransactionBuildingError{Operation: operation, Err: err}
	}

	return u, nil
}

func bigUnits(operation string, amount bigdecimal.BigDecimal, decimals int32) (*big.Int, error) {
	u, err := tx.BigUnits(amount, decimals)
	if err != nil {
		return nil, &stablecoin.TransactionBuildingError{Operation: operation, Err: err}
	}

	return u, nil
}

func single(t *tx.Transaction, err error) ([]*tx.Transaction, error) {
	if err != nil {
		return nil, err
	}

	return []*tx.Transaction{t}, nil
}
