package tx

import (
	_ "embed"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

//go:embed stablecoin.abi.json
var stableCoinABIJSON string

var parsedABI = sync.OnceValues(func() (abi.ABI, error) {
	return abi.JSON(strings.NewReader(stableCoinABIJSON))
})

// StableCoinABI returns the parsed ABI of the stable coin proxy.
func StableCoinABI() (abi.ABI, error) {
	return parsedABI()
}

// HoldArg is the ABI form of a hold request.
type HoldArg struct {
	Amount              *big.Int       `abi:"amount"`
	ExpirationTimestamp *big.Int       `abi:"expirationTimestamp"`
	Escrow              common.Address `abi:"escrow"`
	To                  common.Address `abi:"to"`
	Data                []byte         `abi:"data"`
}

// HoldIdentifierArg identifies a hold by holder and id.
type HoldIdentifierArg struct {
	TokenHolder common.Address `abi:"tokenHolder"`
	HoldId      *big.Int       `abi:"holdId"` //nolint:revive
}

// FixedFeeArg is the ABI form of a fixed fee.
type FixedFeeArg struct {
	Amount                    int64          `abi:"amount"`
	TokenId                   common.Address `abi:"tokenId"` //nolint:revive
	UseHbarsForPayment        bool           `abi:"useHbarsForPayment"`
	UseCurrentTokenForPayment bool           `abi:"useCurrentTokenForPayment"`
	FeeCollector              common.Address `abi:"feeCollector"`
}

// FractionalFeeArg is the ABI form of a fractional fee.
type FractionalFeeArg struct {
	Numerator      int64          `abi:"numerator"`
	Denominator    int64          `abi:"denominator"`
	MinimumAmount  int64          `abi:"minimumAmount"`
	MaximumAmount  int64          `abi:"maximumAmount"`
	NetOfTransfers bool           `abi:"netOfTransfers"`
	FeeCollector   common.Address `abi:"feeCollector"`
}

// Pack encodes a call to function with args.
func Pack(function string, args ...any) ([]byte, error) {
	parsed, err := StableCoinABI()
	if err != nil {
		return nil, fmt.Errorf("parsing stable coin abi: %w", err)
	}

	return parsed.Pack(function, args...)
}

// Unpack decodes the outputs of function from a contract call result.
func Unpack(function string, data []byte) ([]any, error) {
	parsed, err := StableCoinABI()
	if err != nil {
		return nil, fmt.Errorf("parsing stable coin abi: %w", err)
	}

	return parsed.Unpack(function, data)
}

// PackOutputs encodes return values of function. Ledger simulators and tests
// use it to produce call results.
func PackOutputs(function string, values ...any) ([]byte, error) {
	parsed, err := StableCoinABI()
	if err != nil {
		return nil, fmt.Errorf("parsing stable coin abi: %w", err)
	}

	method, ok := parsed.Methods[function]
	if !ok {
		return nil, fmt.Errorf("method %q not found", function)
	}

	return method.Outputs.Pack(values...)
}
