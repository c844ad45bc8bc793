package mirror

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/LerianStudio/lib-stablecoin/stablecoin/bigdecimal"
	constant "github.com/LerianStudio/lib-stablecoin/stablecoin/constants"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/ledger"
	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// AccountInfo is the mirror node view of an account.
type AccountInfo struct {
	ID         ledger.ID
	EVMAddress common.Address
	PublicKey  *ledger.PublicKey
	Balance    bigdecimal.BigDecimal
}

type accountReply struct {
	Account    string  `json:"account"`
	EVMAddress string  `json:"evm_address"`
	Key        *apiKey `json:"key"`
	Balance    struct {
		Balance int64 `json:"balance"`
	} `json:"balance"`
}

type relationshipReply struct {
	Tokens []struct {
		TokenID      string `json:"token_id"`
		Balance      int64  `json:"balance"`
		Decimals     *int32 `json:"decimals"`
		KycStatus    string `json:"kyc_status"`
		FreezeStatus string `json:"freeze_status"`
	} `json:"tokens"`
}

// AccountInfo returns account details, including its native balance.
func (m *Client) AccountInfo(ctx context.Context, account ledger.ID) (AccountInfo, error) {
	var reply accountReply
	if err := m.getJSON(ctx, "/accounts/"+url.PathEscape(account.String()), &reply); err != nil {
		return AccountInfo{}, err
	}

	info := AccountInfo{
		ID:      account,
		Balance: bigdecimal.FromInt64Units(reply.Balance.Balance, constant.HbarDecimals),
	}

	if reply.Account != "" {
		id, err := ledger.ParseID(reply.Account)
		if err != nil {
			return AccountInfo{}, err
		}

		info.ID = id
	}

	if reply.Key != nil && reply.Key.Key != "" && reply.Key.Type != keyTypeProtobuf {
		info.PublicKey = &ledger.PublicKey{Key: reply.Key.Key, Type: ledger.KeyType(reply.Key.Type)}
	}

	addr, err := evmAddress(info.ID, reply.EVMAddress, info.PublicKey)
	if err != nil {
		return AccountInfo{}, err
	}

	info.EVMAddress = addr

	return info, nil
}

// evmAddress prefers the alias the mirror reports, then the address derived
// from an ECDSA key, then the long-zero address.
func evmAddress(id ledger.ID, reported string, key *ledger.PublicKey) (common.Address, error) {
	if reported != "" {
		if !common.IsHexAddress(reported) {
			return common.Address{}, fmt.Errorf("invalid evm address %q for %s", reported, id)
		}

		return common.HexToAddress(reported), nil
	}

	if key != nil && key.Type == ledger.KeyTypeSECP256K1 {
		raw, err := key.Bytes()
		if err != nil {
			return common.Address{}, err
		}

		pub, err := ethcrypto.DecompressPubkey(raw)
		if err != nil {
			return common.Address{}, fmt.Errorf("account %s key: %w", id, err)
		}

		return ethcrypto.PubkeyToAddress(*pub), nil
	}

	return id.ToEVMAddress(), nil
}

// EVMAddress implements adapter.AddressResolver.
func (m *Client) EVMAddress(ctx context.Context, account ledger.ID) (common.Address, error) {
	info, err := m.AccountInfo(ctx, account)
	if err != nil {
		return common.Address{}, err
	}

	return info.EVMAddress, nil
}

// HbarBalance returns the native balance of account.
func (m *Client) HbarBalance(ctx context.Context, account ledger.ID) (bigdecimal.BigDecimal, error) {
	info, err := m.AccountInfo(ctx, account)
	if err != nil {
		return bigdecimal.BigDecimal{}, err
	}

	return info.Balance, nil
}

// Relationship implements validation.StateReader. It returns nil when the
// account is not associated with token.
func (m *Client) Relationship(ctx context.Context, account, token ledger.ID) (*ledger.Relationship, error) {
	path := "/accounts/" + url.PathEscape(account.String()) + "/tokens?token.id=" + url.QueryEscape(token.String())

	var reply relationshipReply
	if err := m.getJSON(ctx, path, &reply); err != nil {
		if errors.Is(err, constant.ErrNotFound) {
			return nil, nil
		}

		return nil, err
	}

	for _, rel := range reply.Tokens {
		if rel.TokenID != token.String() {
			continue
		}

		var decimals int32

		if rel.Decimals != nil {
			decimals = *rel.Decimals
		} else {
			t, err := m.Token(ctx, token)
			if err != nil {
				return nil, err
			}

			decimals = t.Decimals
		}

		return &ledger.Relationship{
			TokenID:      token,
			AccountID:    account,
			Balance:      bigdecimal.FromInt64Units(rel.Balance, decimals),
			KycStatus:    ledger.KycStatus(strings.ToUpper(defaultString(rel.KycStatus, string(ledger.KycNotApplicable)))),
			FreezeStatus: ledger.FreezeStatus(strings.ToUpper(defaultString(rel.FreezeStatus, string(ledger.FreezeNotApplicable)))),
		}, nil
	}

	return nil, nil
}

// Balance implements validation.StateReader. An account that is not
// associated holds nothing.
func (m *Client) Balance(ctx context.Context, account, token ledger.ID) (bigdecimal.BigDecimal, error) {
	rel, err := m.Relationship(ctx, account, token)
	if err != nil {
		return bigdecimal.BigDecimal{}, err
	}

	if rel == nil {
		return bigdecimal.Zero(0), nil
	}

	return rel.Balance, nil
}
