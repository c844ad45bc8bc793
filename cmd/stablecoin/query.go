package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/LerianStudio/lib-stablecoin/stablecoin/adapter"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/bigdecimal"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/capability"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/ledger"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/log"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/mirror"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/query"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/session"
	"github.com/spf13/cobra"
)

// readOnlySession is a session over the mirror node with no wallet. Only
// queries can run on it.
func readOnlySession() (*session.Session, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	ledgerReads, err := mirror.New(cfg.Mirror)
	if err != nil {
		return nil, err
	}

	return session.New(session.Options{
		Registry: adapter.NewRegistry(),
		Ledger:   ledgerReads,
		Logger:   log.NewNop(),
	})
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")

	return enc.Encode(v)
}

func newCapabilitiesCommand() *cobra.Command {
	var tokenFlag, accountFlag, publicKeyFlag string

	cmd := &cobra.Command{
		Use:   "capabilities",
		Short: "Prints what an account may do on a token and through which path",
		RunE: func(cmd *cobra.Command, _ []string) error {
			tokenID, err := ledger.ParseID(tokenFlag)
			if err != nil {
				return fmt.Errorf("--token: %w", err)
			}

			accountID, err := ledger.ParseID(accountFlag)
			if err != nil {
				return fmt.Errorf("--account: %w", err)
			}

			account := ledger.Account{ID: accountID}

			if publicKeyFlag != "" {
				cfg, err := loadConfig()
				if err != nil {
					return err
				}

				account.PublicKey = &ledger.PublicKey{Key: publicKeyFlag, Type: cfg.keyType()}
			}

			s, err := readOnlySession()
			if err != nil {
				return err
			}

			tc, err := session.Query[capability.TokenCapabilities](contextOf(cmd), s, query.GetCapabilities{Account: account, TokenID: tokenID})
			if err != nil {
				return err
			}

			return printJSON(cmd, tc)
		},
	}

	cmd.Flags().StringVar(&tokenFlag, "token", "", "token id, shard.realm.num")
	cmd.Flags().StringVar(&accountFlag, "account", "", "account id, shard.realm.num")
	cmd.Flags().StringVar(&publicKeyFlag, "public-key", "", "hex public key of the account")
	_ = cmd.MarkFlagRequired("token")
	_ = cmd.MarkFlagRequired("account")

	return cmd
}

func newBalanceCommand() *cobra.Command {
	var tokenFlag, accountFlag string

	cmd := &cobra.Command{
		Use:   "balance",
		Short: "Prints the token balance of an account",
		RunE: func(cmd *cobra.Command, _ []string) error {
			tokenID, err := ledger.ParseID(tokenFlag)
			if err != nil {
				return fmt.Errorf("--token: %w", err)
			}

			accountID, err := ledger.ParseID(accountFlag)
			if err != nil {
				return fmt.Errorf("--account: %w", err)
			}

			s, err := readOnlySession()
			if err != nil {
				return err
			}

			b, err := session.Query[bigdecimal.BigDecimal](contextOf(cmd), s, query.GetBalance{TokenID: tokenID, AccountID: accountID})
			if err != nil {
				return err
			}

			_, err = fmt.Fprintln(cmd.OutOrStdout(), b.String())

			return err
		},
	}

	cmd.Flags().StringVar(&tokenFlag, "token", "", "token id, shard.realm.num")
	cmd.Flags().StringVar(&accountFlag, "account", "", "account id, shard.realm.num")
	_ = cmd.MarkFlagRequired("token")
	_ = cmd.MarkFlagRequired("account")

	return cmd
}

func contextOf(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}

	return context.Background()
}
