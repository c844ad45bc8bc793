// Package response normalizes the outcome of a submitted transaction,
// whatever wallet backend sent it.
package response

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"

	"github.com/LerianStudio/lib-stablecoin/stablecoin"
	constant "github.com/LerianStudio/lib-stablecoin/stablecoin/constants"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/log"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/tx"
	"github.com/ethereum/go-ethereum/common"
)

// Kind selects how much of the outcome is fetched.
type Kind string

// Response kinds.
const (
	Receipt Kind = "RECEIPT"
	Record  Kind = "RECORD"
)

var (
	// ErrInvalidResponse is wrapped when a record has no contract result to decode.
	ErrInvalidResponse = errors.New("invalid response type")
	// ErrEmptyEnvelope is wrapped when a wallet response names neither a
	// transaction nor a status.
	ErrEmptyEnvelope = errors.New("wallet response has no transaction id and no status")
	// ErrUnsupportedRaw is returned for raw submissions of an unknown shape.
	ErrUnsupportedRaw = errors.New("unsupported raw response")
	// ErrUnknownKind is returned for a kind other than RECEIPT and RECORD.
	ErrUnknownKind = errors.New("the response type is neither RECORD nor RECEIPT")
)

// DecodeSpec names the contract function whose outputs a RECORD decodes.
type DecodeSpec struct {
	Function string
}

// TransactionResponse is the normalized outcome.
type TransactionResponse struct {
	TransactionID string    `json:"transactionId"`
	Network       string    `json:"network"`
	Kind          Kind      `json:"kind"`
	Status        tx.Status `json:"status"`
	Outputs       []any     `json:"outputs,omitempty"`
	// Reference identifies a transaction parked outside the ledger, such as
	// a pending multi-signature transaction.
	Reference string `json:"reference,omitempty"`
}

// BigInt returns output i as a *big.Int.
func (r TransactionResponse) BigInt(i int) (*big.Int, bool) {
	if i < 0 || i >= len(r.Outputs) {
		return nil, false
	}

	v, ok := r.Outputs[i].(*big.Int)

	return v, ok
}

// Bool returns output i as a bool.
func (r TransactionResponse) Bool(i int) (bool, bool) {
	if i < 0 || i >= len(r.Outputs) {
		return false, false
	}

	v, ok := r.Outputs[i].(bool)

	return v, ok
}

// EnvelopeError is the failure reported by an out-of-process wallet.
type EnvelopeError struct {
	Message       string `json:"message"`
	Name          string `json:"name,omitempty"`
	Status        string `json:"status,omitempty"`
	TransactionID string `json:"transactionId,omitempty"`
}

// Envelope is the JSON response of extension and relay wallets.
type Envelope struct {
	TransactionID  string         `json:"transactionId,omitempty"`
	Network        string         `json:"network,omitempty"`
	Status         string         `json:"status,omitempty"`
	ContractResult string         `json:"contractResult,omitempty"`
	Error          *EnvelopeError `json:"error,omitempty"`
}

// Decoder turns raw submissions into TransactionResponse values.
type Decoder struct {
	client tx.Client
	logger log.Logger
}

// NewDecoder returns a Decoder. client may be nil when every raw response is
// a complete envelope.
func NewDecoder(client tx.Client, logger log.Logger) *Decoder {
	return &Decoder{client: client, logger: log.OrNop(logger)}
}

// Decode normalizes raw, which is a tx.SubmitResult or a JSON Envelope.
// Ledger failures, including an envelope's embedded error, are returned as
// *stablecoin.TransactionResponseError.
func (d *Decoder) Decode(ctx context.Context, raw any, kind Kind, spec *DecodeSpec) (TransactionResponse, error) {
	if kind != Receipt && kind != Record {
		return TransactionResponse{}, &stablecoin.TransactionResponseError{Message: ErrUnknownKind.Error(), Err: ErrUnknownKind}
	}

	switch r := raw.(type) {
	case tx.SubmitResult:
		return d.fromSubmission(ctx, r, kind, spec)
	case *tx.SubmitResult:
		return d.fromSubmission(ctx, *r, kind, spec)
	case []byte:
		return d.fromEnvelope(ctx, r, kind, spec)
	case json.RawMessage:
		return d.fromEnvelope(ctx, r, kind, spec)
	default:
		return TransactionResponse{}, &stablecoin.TransactionResponseError{
			Message: fmt.Sprintf("%v: %T", ErrUnsupportedRaw, raw),
			Err:     ErrUnsupportedRaw,
		}
	}
}

func (d *Decoder) fromSubmission(ctx context.Context, sub tx.SubmitResult, kind Kind, spec *DecodeSpec) (TransactionResponse, error) {
	res := TransactionResponse{TransactionID: sub.TransactionID, Network: sub.Network, Kind: kind}

	if d.client == nil {
		return res, &stablecoin.TransactionResponseError{
			Message: "no ledger client to fetch the outcome", TransactionID: sub.TransactionID, Network: sub.Network,
		}
	}

	if kind == Receipt {
		receipt, err := d.client.Receipt(ctx, sub.TransactionID)
		if err != nil {
			return res, d.fetchErr(sub.TransactionID, sub.Network, "receipt", err)
		}

		res.Status = receipt.Status

		return res, checkStatus(res)
	}

	record, err := d.client.Record(ctx, sub.TransactionID)
	if err != nil {
		return res, d.fetchErr(sub.TransactionID, sub.Network, "record", err)
	}

	res.Status = record.Status
	if err := checkStatus(res); err != nil {
		return res, err
	}

	return d.decodeOutputs(ctx, res, record.ContractResult, spec)
}

func (d *Decoder) fromEnvelope(ctx context.Context, raw []byte, kind Kind, spec *DecodeSpec) (TransactionResponse, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return TransactionResponse{}, &stablecoin.TransactionResponseError{Message: "malformed wallet response", Err: err}
	}

	if env.Error != nil {
		txID := env.Error.TransactionID
		if txID == "" {
			txID = env.TransactionID
		}

		return TransactionResponse{}, &stablecoin.TransactionResponseError{
			Message:       env.Error.Message,
			TransactionID: txID,
			Network:       env.Network,
			Status:        env.Error.Status,
			Err:           errors.New(env.Error.Name),
		}
	}

	if env.Status == "" && env.TransactionID == "" {
		return TransactionResponse{}, &stablecoin.TransactionResponseError{
			Message: ErrEmptyEnvelope.Error(), Network: env.Network, Err: ErrEmptyEnvelope,
		}
	}

	if env.Status == "" && d.client != nil && env.TransactionID != "" {
		return d.fromSubmission(ctx, tx.SubmitResult{TransactionID: env.TransactionID, Network: env.Network}, kind, spec)
	}

	res := TransactionResponse{TransactionID: env.TransactionID, Network: env.Network, Kind: kind, Status: tx.Status(env.Status)}
	if err := checkStatus(res); err != nil {
		return res, err
	}

	if kind == Receipt {
		return res, nil
	}

	return d.decodeOutputs(ctx, res, common.FromHex(env.ContractResult), spec)
}

func (d *Decoder) decodeOutputs(ctx context.Context, res TransactionResponse, result []byte, spec *DecodeSpec) (TransactionResponse, error) {
	if spec == nil || spec.Function == "" {
		return res, nil
	}

	if len(result) == 0 {
		return res, &stablecoin.TransactionResponseError{
			Message: ErrInvalidResponse.Error(), TransactionID: res.TransactionID, Network: res.Network,
			Status: string(res.Status), Operation: spec.Function, Err: ErrInvalidResponse,
		}
	}

	outputs, err := tx.Unpack(spec.Function, result)
	if err != nil {
		d.logger.Log(ctx, log.LevelError, "failed to decode contract result",
			log.String("function", spec.Function), log.String("transaction_id", res.TransactionID), log.Err(err))

		return res, &stablecoin.TransactionResponseError{
			Message: "cannot decode " + spec.Function + " result", TransactionID: res.TransactionID,
			Network: res.Network, Operation: spec.Function, Err: err,
		}
	}

	res.Outputs = outputs

	return res, nil
}

func (d *Decoder) fetchErr(txID, network, what string, err error) error {
	return &stablecoin.TransactionResponseError{
		Message:       "fetching " + what + " failed",
		TransactionID: txID,
		Network:       network,
		Err:           err,
	}
}

func checkStatus(res TransactionResponse) error {
	if res.Status == tx.StatusSuccess || res.Status == tx.StatusPending || res.Status == "" {
		return nil
	}

	return &stablecoin.TransactionResponseError{
		Message:       "receipt status is " + string(res.Status),
		TransactionID: res.TransactionID,
		Network:       res.Network,
		Status:        string(res.Status),
		Err:           constant.ErrReceiptNotSuccess,
	}
}
