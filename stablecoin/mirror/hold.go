package mirror

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/LerianStudio/lib-stablecoin/stablecoin/bigdecimal"
	constant "github.com/LerianStudio/lib-stablecoin/stablecoin/constants"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/ledger"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/tx"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

const holdIDsPageLength = 50

// ErrNoProxy is returned for hold reads on tokens without a proxy contract.
var ErrNoProxy = errors.New("token has no proxy contract")

type callRequest struct {
	Block    string `json:"block"`
	Data     string `json:"data"`
	To       string `json:"to"`
	Estimate bool   `json:"estimate"`
}

type callReply struct {
	Result string `json:"result"`
}

// Call runs a read-only contract call of function against token's proxy and
// returns the decoded outputs.
func (m *Client) Call(ctx context.Context, token ledger.Token, function string, args ...any) ([]any, error) {
	if token.ProxyAddress == nil || token.ProxyAddress.IsZero() {
		return nil, fmt.Errorf("%w: %s", ErrNoProxy, token.ID)
	}

	data, err := tx.Pack(function, args...)
	if err != nil {
		return nil, fmt.Errorf("packing %s: %w", function, err)
	}

	var reply callReply

	err = m.postJSON(ctx, "/contracts/call", callRequest{
		Block: "latest",
		Data:  hexutil.Encode(data),
		To:    token.ProxyAddress.ToEVMAddress().Hex(),
	}, &reply)
	if err != nil {
		return nil, err
	}

	raw, err := hexutil.Decode(reply.Result)
	if err != nil {
		return nil, fmt.Errorf("decoding %s result: %w", function, err)
	}

	return tx.Unpack(function, raw)
}

// Hold implements hold.Reader.
func (m *Client) Hold(ctx context.Context, token ledger.Token, source ledger.ID, id int64) (ledger.Hold, error) {
	holder, err := m.EVMAddress(ctx, source)
	if err != nil {
		return ledger.Hold{}, err
	}

	out, err := m.Call(ctx, token, "getHoldFor", tx.HoldIdentifierArg{TokenHolder: holder, HoldId: big.NewInt(id)})
	if err != nil {
		return ledger.Hold{}, err
	}

	if len(out) < 5 {
		return ledger.Hold{}, fmt.Errorf("getHoldFor returned %d values", len(out))
	}

	amount, _ := out[0].(*big.Int)
	expiration, _ := out[1].(*big.Int)
	escrow, _ := out[2].(common.Address)
	target, _ := out[3].(common.Address)
	data, _ := out[4].([]byte)

	if (amount == nil || amount.Sign() == 0) && escrow == (common.Address{}) {
		return ledger.Hold{}, fmt.Errorf("hold %d of %s: %w", id, source, constant.ErrNotFound)
	}

	h := ledger.Hold{
		ID:     id,
		Source: source,
		Amount: bigdecimal.FromUnits(amount, token.Decimals),
		Escrow: escrow,
		Target: target,
		Data:   hexutil.Encode(data),
	}

	if expiration != nil && expiration.IsInt64() {
		h.Expiration = time.Unix(expiration.Int64(), 0).UTC()
	}

	return h, nil
}

// HoldIDs implements hold.Reader. It pages through every hold of source.
func (m *Client) HoldIDs(ctx context.Context, token ledger.Token, source ledger.ID) ([]int64, error) {
	holder, err := m.EVMAddress(ctx, source)
	if err != nil {
		return nil, err
	}

	var ids []int64

	for page := int64(0); ; page++ {
		out, err := m.Call(ctx, token, "getHoldsIdFor", holder, big.NewInt(page), big.NewInt(holdIDsPageLength))
		if err != nil {
			return nil, err
		}

		if len(out) == 0 {
			return ids, nil
		}

		batch, _ := out[0].([]*big.Int)
		for _, id := range batch {
			ids = append(ids, id.Int64())
		}

		if len(batch) < holdIDsPageLength {
			return ids, nil
		}
	}
}

// HeldAmount returns the total amount source has on hold.
func (m *Client) HeldAmount(ctx context.Context, token ledger.Token, source ledger.ID) (bigdecimal.BigDecimal, error) {
	holder, err := m.EVMAddress(ctx, source)
	if err != nil {
		return bigdecimal.BigDecimal{}, err
	}

	out, err := m.Call(ctx, token, "getHeldAmountFor", holder)
	if err != nil {
		return bigdecimal.BigDecimal{}, err
	}

	if len(out) == 0 {
		return bigdecimal.Zero(token.Decimals), nil
	}

	amount, _ := out[0].(*big.Int)

	return bigdecimal.FromUnits(amount, token.Decimals), nil
}
