package mirror

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/LerianStudio/lib-stablecoin/stablecoin/bigdecimal"
	constant "github.com/LerianStudio/lib-stablecoin/stablecoin/constants"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/ledger"
	"google.golang.org/protobuf/encoding/protowire"
)

const keyTypeProtobuf = "ProtobufEncoded"

// ErrUnsupportedKey is returned for protobuf keys that are neither a plain
// key nor a contract id.
var ErrUnsupportedKey = errors.New("unsupported protobuf key")

type apiKey struct {
	Type string `json:"_type"`
	Key  string `json:"key"`
}

type fraction struct {
	Numerator   int64 `json:"numerator"`
	Denominator int64 `json:"denominator"`
}

type fixedFee struct {
	Amount              int64  `json:"amount"`
	CollectorAccountID  string `json:"collector_account_id"`
	DenominatingTokenID string `json:"denominating_token_id"`
	AllCollectorsExempt bool   `json:"all_collectors_are_exempt"`
}

type fractionalFee struct {
	Amount              fraction `json:"amount"`
	CollectorAccountID  string   `json:"collector_account_id"`
	Minimum             int64    `json:"minimum"`
	Maximum             int64    `json:"maximum"`
	NetOfTransfers      bool     `json:"net_of_transfers"`
	AllCollectorsExempt bool     `json:"all_collectors_are_exempt"`
}

type customFees struct {
	FixedFees      []fixedFee      `json:"fixed_fees"`
	FractionalFees []fractionalFee `json:"fractional_fees"`
}

type tokenInfo struct {
	TokenID          string      `json:"token_id"`
	Name             string      `json:"name"`
	Symbol           string      `json:"symbol"`
	Decimals         string      `json:"decimals"`
	TotalSupply      string      `json:"total_supply"`
	MaxSupply        string      `json:"max_supply"`
	SupplyType       string      `json:"supply_type"`
	TreasuryID       string      `json:"treasury_account_id"`
	AutoRenewAccount string      `json:"auto_renew_account"`
	Memo             string      `json:"memo"`
	PauseStatus      string      `json:"pause_status"`
	Deleted          bool        `json:"deleted"`
	AdminKey         *apiKey     `json:"admin_key"`
	SupplyKey        *apiKey     `json:"supply_key"`
	WipeKey          *apiKey     `json:"wipe_key"`
	FreezeKey        *apiKey     `json:"freeze_key"`
	KycKey           *apiKey     `json:"kyc_key"`
	PauseKey         *apiKey     `json:"pause_key"`
	FeeScheduleKey   *apiKey     `json:"fee_schedule_key"`
	CustomFees       *customFees `json:"custom_fees"`
}

// memo is the JSON memo stable coins carry. Older tokens store the bare
// proxy id instead.
type memo struct {
	ProxyContract string `json:"proxyContract"`
}

// Token implements capability.TokenReader.
func (m *Client) Token(ctx context.Context, tokenID ledger.ID) (ledger.Token, error) {
	var info tokenInfo
	if err := m.getJSON(ctx, "/tokens/"+url.PathEscape(tokenID.String()), &info); err != nil {
		return ledger.Token{}, err
	}

	return info.toToken()
}

func (info tokenInfo) toToken() (ledger.Token, error) {
	id, err := ledger.ParseID(info.TokenID)
	if err != nil {
		return ledger.Token{}, err
	}

	decimals, err := strconv.ParseInt(defaultString(info.Decimals, "0"), 10, 32)
	if err != nil {
		return ledger.Token{}, fmt.Errorf("token %s decimals: %w", info.TokenID, err)
	}

	t := ledger.Token{
		ID:       id,
		Name:     info.Name,
		Symbol:   info.Symbol,
		Decimals: int32(decimals),
		Memo:     info.Memo,
		Paused:   info.PauseStatus == "PAUSED",
		Deleted:  info.Deleted,
	}

	if t.TotalSupply, err = units(info.TotalSupply, t.Decimals); err != nil {
		return ledger.Token{}, err
	}

	if t.MaxSupply, err = units(info.MaxSupply, t.Decimals); err != nil {
		return ledger.Token{}, err
	}

	t.InfiniteSupply = info.SupplyType == "INFINITE" || t.MaxSupply.IsZero()

	if t.Treasury, err = ledger.ParseID(info.TreasuryID); err != nil {
		return ledger.Token{}, err
	}

	if info.AutoRenewAccount != "" {
		auto, err := ledger.ParseID(info.AutoRenewAccount)
		if err != nil {
			return ledger.Token{}, err
		}

		t.AutoRenewAccount = &auto
	}

	t.ProxyAddress = proxyFromMemo(info.Memo)

	keys := []struct {
		raw *apiKey
		dst **ledger.Key
	}{
		{info.AdminKey, &t.Keys.Admin},
		{info.SupplyKey, &t.Keys.Supply},
		{info.WipeKey, &t.Keys.Wipe},
		{info.FreezeKey, &t.Keys.Freeze},
		{info.KycKey, &t.Keys.Kyc},
		{info.PauseKey, &t.Keys.Pause},
		{info.FeeScheduleKey, &t.Keys.FeeSchedule},
	}

	for _, k := range keys {
		if *k.dst, err = toKey(k.raw); err != nil {
			return ledger.Token{}, fmt.Errorf("token %s: %w", info.TokenID, err)
		}
	}

	if t.CustomFees, err = info.CustomFees.toFees(t.Decimals); err != nil {
		return ledger.Token{}, fmt.Errorf("token %s custom fees: %w", info.TokenID, err)
	}

	return t, nil
}

func proxyFromMemo(raw string) *ledger.ID {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}

	candidate := raw

	var m memo
	if json.Unmarshal([]byte(raw), &m) == nil {
		candidate = m.ProxyContract
	}

	id, err := ledger.ParseID(candidate)
	if err != nil || id.IsZero() {
		return nil
	}

	return &id
}

func toKey(k *apiKey) (*ledger.Key, error) {
	if k == nil || k.Key == "" {
		return nil, nil
	}

	switch ledger.KeyType(k.Type) {
	case ledger.KeyTypeED25519, ledger.KeyTypeSECP256K1:
		return ledger.PublicKeyOf(ledger.PublicKey{Key: k.Key, Type: ledger.KeyType(k.Type)}), nil
	}

	if k.Type != keyTypeProtobuf {
		return nil, fmt.Errorf("%w: type %q", ErrUnsupportedKey, k.Type)
	}

	contract, err := contractFromProtobufKey(k.Key)
	if err != nil {
		return nil, err
	}

	return ledger.ContractKeyOf(contract), nil
}

// contractFromProtobufKey decodes a serialized Key whose contractID (field 1)
// holds shard, realm and contract numbers (fields 1, 2 and 3).
func contractFromProtobufKey(hexKey string) (ledger.ID, error) {
	raw, err := hex.DecodeString(strings.TrimPrefix(hexKey, "0x"))
	if err != nil {
		return ledger.ID{}, fmt.Errorf("%w: %v", ErrUnsupportedKey, err)
	}

	num, typ, n := protowire.ConsumeTag(raw)
	if n < 0 || num != 1 || typ != protowire.BytesType {
		return ledger.ID{}, fmt.Errorf("%w: not a contract id", ErrUnsupportedKey)
	}

	inner, m := protowire.ConsumeBytes(raw[n:])
	if m < 0 {
		return ledger.ID{}, fmt.Errorf("%w: %v", ErrUnsupportedKey, protowire.ParseError(m))
	}

	var id ledger.ID

	for len(inner) > 0 {
		field, wt, n := protowire.ConsumeTag(inner)
		if n < 0 || wt != protowire.VarintType {
			return ledger.ID{}, fmt.Errorf("%w: malformed contract id", ErrUnsupportedKey)
		}

		v, m := protowire.ConsumeVarint(inner[n:])
		if m < 0 {
			return ledger.ID{}, fmt.Errorf("%w: %v", ErrUnsupportedKey, protowire.ParseError(m))
		}

		switch field {
		case 1:
			id.Shard = int64(v)
		case 2:
			id.Realm = int64(v)
		case 3:
			id.Num = int64(v)
		}

		inner = inner[n+m:]
	}

	return id, nil
}

func (f *customFees) toFees(decimals int32) ([]ledger.CustomFee, error) {
	if f == nil {
		return nil, nil
	}

	out := make([]ledger.CustomFee, 0, len(f.FixedFees)+len(f.FractionalFees))

	for _, fee := range f.FixedFees {
		collector, err := ledger.ParseID(fee.CollectorAccountID)
		if err != nil {
			return nil, err
		}

		fixed := &ledger.FixedFee{CollectorID: collector, CollectorsExempt: fee.AllCollectorsExempt}

		feeDecimals := int32(constant.HbarDecimals)

		if fee.DenominatingTokenID != "" {
			denom, err := ledger.ParseID(fee.DenominatingTokenID)
			if err != nil {
				return nil, err
			}

			fixed.DenominatingTokenID = &denom
			feeDecimals = decimals
		}

		fixed.Amount = bigdecimal.FromInt64Units(fee.Amount, feeDecimals)
		out = append(out, fixed)
	}

	for _, fee := range f.FractionalFees {
		collector, err := ledger.ParseID(fee.CollectorAccountID)
		if err != nil {
			return nil, err
		}

		out = append(out, &ledger.FractionalFee{
			CollectorID:      collector,
			CollectorsExempt: fee.AllCollectorsExempt,
			Numerator:        fee.Amount.Numerator,
			Denominator:      fee.Amount.Denominator,
			Min:              bigdecimal.FromInt64Units(fee.Minimum, decimals),
			Max:              bigdecimal.FromInt64Units(fee.Maximum, decimals),
			Net:              fee.NetOfTransfers,
		})
	}

	return out, nil
}

func units(raw string, decimals int32) (bigdecimal.BigDecimal, error) {
	if raw == "" {
		return bigdecimal.Zero(decimals), nil
	}

	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return bigdecimal.BigDecimal{}, fmt.Errorf("invalid amount %q: %w", raw, err)
	}

	return bigdecimal.FromInt64Units(n, decimals), nil
}

func defaultString(s, def string) string {
	if s == "" {
		return def
	}

	return s
}
