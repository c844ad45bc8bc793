package tx

import (
	"errors"
	"fmt"
	"sync"
	"time"

	constant "github.com/LerianStudio/lib-stablecoin/stablecoin/constants"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/ledger"
	"github.com/fxamacker/cbor/v2"
)

var (
	// ErrFrozen is returned when a frozen transaction is modified.
	ErrFrozen = errors.New("transaction is frozen")
	// ErrNotFrozen is returned when a transaction is signed or sent before Freeze.
	ErrNotFrozen = errors.New("transaction is not frozen")
	// ErrUnknownKind is returned when decoding a body of an unknown kind.
	ErrUnknownKind = errors.New("unknown transaction kind")
)

var codec = sync.OnceValues(func() (cbor.EncMode, error) {
	return cbor.CoreDetEncOptions().EncMode()
})

func marshal(v any) ([]byte, error) {
	em, err := codec()
	if err != nil {
		return nil, err
	}

	return em.Marshal(v)
}

// Signature is a signature over the body bytes by one key.
type Signature struct {
	PublicKey ledger.PublicKey `cbor:"1,keyasint" json:"publicKey"`
	Bytes     []byte           `cbor:"2,keyasint" json:"signature"`
}

// envelope is the signed part of a transaction.
type envelope struct {
	Kind          Kind            `cbor:"1,keyasint"`
	TransactionID string          `cbor:"2,keyasint"`
	Payer         ledger.ID       `cbor:"3,keyasint"`
	ValidStart    int64           `cbor:"4,keyasint"`
	ValidDuration int64           `cbor:"5,keyasint"`
	Memo          string          `cbor:"6,keyasint,omitempty"`
	Payload       cbor.RawMessage `cbor:"7,keyasint"`
}

// signed is the wire form of a frozen transaction and its signatures.
type signed struct {
	Body       []byte      `cbor:"1,keyasint"`
	Signatures []Signature `cbor:"2,keyasint"`
	Operation  string      `cbor:"3,keyasint,omitempty"`
}

// Transaction is an unsigned, then frozen, then signed ledger transaction.
type Transaction struct {
	Kind      Kind
	Operation string
	Body      any
	Memo      string

	transactionID string
	payer         ledger.ID
	validStart    time.Time
	bodyBytes     []byte
	signatures    []Signature
}

// New returns an unfrozen transaction.
func New(kind Kind, operation string, body any) *Transaction {
	return &Transaction{Kind: kind, Operation: operation, Body: body}
}

// FormatTransactionID renders payer@seconds.nanos.
func FormatTransactionID(payer ledger.ID, validStart time.Time) string {
	return fmt.Sprintf("%s@%d.%09d", payer, validStart.Unix(), validStart.Nanosecond())
}

// Freeze assigns the transaction id and fixes the body bytes.
func (t *Transaction) Freeze(payer ledger.ID, validStart time.Time) error {
	if t.Frozen() {
		return ErrFrozen
	}

	payload, err := marshal(t.Body)
	if err != nil {
		return fmt.Errorf("encoding %s body: %w", t.Kind, err)
	}

	id := FormatTransactionID(payer, validStart)

	body, err := marshal(envelope{
		Kind:          t.Kind,
		TransactionID: id,
		Payer:         payer,
		ValidStart:    validStart.UnixNano(),
		ValidDuration: int64(constant.TransactionValidDuration / time.Second),
		Memo:          t.Memo,
		Payload:       payload,
	})
	if err != nil {
		return fmt.Errorf("encoding %s envelope: %w", t.Kind, err)
	}

	t.transactionID = id
	t.payer = payer
	t.validStart = validStart
	t.bodyBytes = body

	return nil
}

// Frozen reports whether Freeze succeeded.
func (t *Transaction) Frozen() bool { return t.bodyBytes != nil }

// TransactionID is empty until the transaction is frozen.
func (t *Transaction) TransactionID() string { return t.transactionID }

// Payer returns the fee payer set by Freeze.
func (t *Transaction) Payer() ledger.ID { return t.payer }

// ValidStart returns the start of the validity window set by Freeze.
func (t *Transaction) ValidStart() time.Time { return t.validStart }

// BodyBytes returns the canonical bytes to sign.
func (t *Transaction) BodyBytes() []byte { return t.bodyBytes }

// AddSignature attaches a signature. Signing twice with the same key
// replaces the earlier signature.
func (t *Transaction) AddSignature(pk ledger.PublicKey, sig []byte) error {
	if !t.Frozen() {
		return ErrNotFrozen
	}

	for i, s := range t.signatures {
		if s.PublicKey.Equal(pk) {
			t.signatures[i].Bytes = sig
			return nil
		}
	}

	t.signatures = append(t.signatures, Signature{PublicKey: pk, Bytes: sig})

	return nil
}

// Signatures returns a copy of the attached signatures.
func (t *Transaction) Signatures() []Signature {
	out := make([]Signature, len(t.signatures))
	copy(out, t.signatures)

	return out
}

// Function returns the contract function name of a contract call.
func (t *Transaction) Function() string {
	if call, ok := t.Body.(*ContractCallBody); ok {
		return call.Function
	}

	return ""
}

// MarshalBinary encodes a frozen transaction with its signatures.
func (t *Transaction) MarshalBinary() ([]byte, error) {
	if !t.Frozen() {
		return nil, ErrNotFrozen
	}

	return marshal(signed{Body: t.bodyBytes, Signatures: t.signatures, Operation: t.Operation})
}

// UnmarshalBinary restores a transaction encoded by MarshalBinary.
func (t *Transaction) UnmarshalBinary(data []byte) error {
	var s signed
	if err := cbor.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("decoding transaction: %w", err)
	}

	restored, err := FromBodyBytes(s.Body)
	if err != nil {
		return err
	}

	restored.Operation = s.Operation
	restored.signatures = s.Signatures
	*t = *restored

	return nil
}

// FromBodyBytes rebuilds a frozen, unsigned transaction from signed body bytes.
func FromBodyBytes(body []byte) (*Transaction, error) {
	var env envelope
	if err := cbor.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("decoding transaction body: %w", err)
	}

	typed := newBody(env.Kind)
	if typed == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, env.Kind)
	}

	if err := cbor.Unmarshal(env.Payload, typed); err != nil {
		return nil, fmt.Errorf("decoding %s payload: %w", env.Kind, err)
	}

	return &Transaction{
		Kind:          env.Kind,
		Body:          typed,
		Memo:          env.Memo,
		transactionID: env.TransactionID,
		payer:         env.Payer,
		validStart:    time.Unix(0, env.ValidStart),
		bodyBytes:     body,
	}, nil
}
