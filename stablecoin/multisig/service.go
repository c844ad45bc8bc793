package multisig

import (
	"context"
	"encoding/hex"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/LerianStudio/lib-stablecoin/stablecoin"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/crypto"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/ledger"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/log"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/opentelemetry"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/validation"
	"github.com/google/uuid"
)

// Store is the part of the backend a wallet adapter needs. Both *Service and
// *Client implement it.
type Store interface {
	Create(ctx context.Context, in CreateInput) (Transaction, error)
	Get(ctx context.Context, id string) (Transaction, error)
}

// Service implements the backend operations over a Repository.
type Service struct {
	repo   Repository
	logger log.Logger
	now    func() time.Time
}

var _ Store = (*Service)(nil)

// NewService returns a Service over repo.
func NewService(repo Repository, logger log.Logger) *Service {
	return &Service{repo: repo, logger: log.OrNop(logger), now: time.Now}
}

var hexRule = validation.NewRule("hex", "must be hex encoded", func(v any) bool {
	s, ok := v.(string)
	if !ok {
		return false
	}

	_, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))

	return err == nil
})

var (
	nonEmptyKeys = validation.NewRule("required", "must not be empty", func(v any) bool {
		keys, ok := v.([]string)
		return ok && len(keys) > 0
	})
	nonNegative  = validation.Tag("min=0", "must not be negative")
	knownNetwork = validation.Tag("oneof="+strings.Join(Networks, " "), "must be one of "+strings.Join(Networks, ", "))
)

func validateCreate(in CreateInput) error {
	groups := [][]validation.Check{
		validation.On("transaction_message", in.Message, validation.Required, hexRule),
		validation.On("description", in.Description, validation.Max(200)),
		validation.On("hedera_account_id", in.AccountID, validation.AccountID),
		validation.On("key_list", in.KeyList, nonEmptyKeys),
		validation.On("threshold", in.Threshold, nonNegative),
		validation.On("network", strings.ToLower(in.Network), validation.Required, knownNetwork),
	}

	for i, k := range in.KeyList {
		groups = append(groups, validation.On(fmt.Sprintf("key_list[%d]", i), k, validation.Required, hexRule))
	}

	return validation.Fields("CreateTransaction", groups...)
}

// Create stores a PENDING transaction. Duplicate keys are dropped; a
// threshold of zero or above the key count requires every key.
func (s *Service) Create(ctx context.Context, in CreateInput) (Transaction, error) {
	_, tracer, _ := stablecoin.NewTrackingFromContext(ctx)

	ctx, span := tracer.Start(ctx, "multisig.create")
	defer span.End()

	if err := validateCreate(in); err != nil {
		opentelemetry.HandleSpanBusinessErrorEvent(&span, "invalid create request", err)
		return Transaction{}, err
	}

	keys := dedupeKeys(in.KeyList)

	threshold := in.Threshold
	if threshold == 0 || threshold > len(keys) {
		threshold = len(keys)
	}

	now := s.now().UTC()

	start := in.StartDate.UTC()
	if in.StartDate.IsZero() {
		start = now
	}

	t := Transaction{
		ID:          uuid.NewString(),
		Message:     normalizeKey(in.Message),
		Description: in.Description,
		Status:      StatusPending,
		Threshold:   threshold,
		AccountID:   in.AccountID,
		KeyList:     keys,
		SignedKeys:  []string{},
		Signatures:  []string{},
		Network:     strings.ToLower(in.Network),
		StartDate:   start,
		CreatedAt:   now,
	}

	if err := s.repo.Create(ctx, t); err != nil {
		opentelemetry.HandleSpanError(&span, "failed to store transaction", err)
		return Transaction{}, err
	}

	s.logger.Log(ctx, log.LevelInfo, "multisig transaction created",
		log.String("id", t.ID), log.Int("threshold", threshold), log.Int("keys", len(keys)))

	return t, nil
}

// Sign adds a signature from in.PublicKey and moves the transaction to
// SIGNED once the threshold is reached.
func (s *Service) Sign(ctx context.Context, id string, in SignInput) (Transaction, error) {
	_, tracer, _ := stablecoin.NewTrackingFromContext(ctx)

	ctx, span := tracer.Start(ctx, "multisig.sign")
	defer span.End()

	if err := uuid.Validate(id); err != nil {
		return Transaction{}, ErrInvalidID
	}

	if err := validation.Fields("SignTransaction", validation.On("public_key", in.PublicKey, validation.Required, hexRule), validation.On("signature", in.Signature, validation.Required, hexRule)); err != nil {
		return Transaction{}, err
	}

	t, err := s.repo.Get(ctx, id)
	if err != nil {
		return Transaction{}, err
	}

	if t.HasSigned(in.PublicKey) {
		return Transaction{}, ErrAlreadySigned
	}

	if !t.Authorizes(in.PublicKey) {
		return Transaction{}, ErrUnauthorizedKey
	}

	if err := verify(in.PublicKey, t.Message, in.Signature); err != nil {
		opentelemetry.HandleSpanBusinessErrorEvent(&span, "invalid signature", err)
		return Transaction{}, err
	}

	t.SignedKeys = append(t.SignedKeys, normalizeKey(in.PublicKey))
	t.Signatures = append(t.Signatures, normalizeKey(in.Signature))

	if len(t.SignedKeys) >= t.Threshold {
		t.Status = StatusSigned
	}

	if err := s.repo.Update(ctx, t); err != nil {
		return Transaction{}, err
	}

	return t, nil
}

func verify(key, message, signature string) error {
	msg, err := hex.DecodeString(normalizeKey(message))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	sig, err := hex.DecodeString(normalizeKey(signature))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	if err := crypto.Verify(publicKey(key), msg, sig); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	return nil
}

// Delete removes a transaction.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := uuid.Validate(id); err != nil {
		return ErrInvalidID
	}

	return s.repo.Delete(ctx, id)
}

// Get returns a transaction.
func (s *Service) Get(ctx context.Context, id string) (Transaction, error) {
	if err := uuid.Validate(id); err != nil {
		return Transaction{}, ErrInvalidID
	}

	return s.repo.Get(ctx, id)
}

// List returns one page of transactions matching f.
func (s *Service) List(ctx context.Context, f Filter) (Page, error) {
	if f.Network != "" {
		f.Network = strings.ToLower(f.Network)
		if !slices.Contains(Networks, f.Network) {
			return Page{}, fmt.Errorf("%w: %q", ErrInvalidNetwork, f.Network)
		}
	}

	if f.Page < 1 {
		f.Page = 1
	}

	items, total, err := s.repo.List(ctx, f)
	if err != nil {
		return Page{}, err
	}

	pages := 1
	if f.Limit > 0 {
		pages = max((total+f.Limit-1)/f.Limit, 1)
	}

	if items == nil {
		items = []Transaction{}
	}

	return Page{Items: items, Page: f.Page, Limit: f.Limit, TotalItems: total, TotalPages: pages}, nil
}

// SubmissionKeys returns the parsed signer keys of t in signing order.
func SubmissionKeys(t Transaction) []ledger.PublicKey {
	out := make([]ledger.PublicKey, len(t.SignedKeys))
	for i, k := range t.SignedKeys {
		out[i] = publicKey(k)
	}

	return out
}
