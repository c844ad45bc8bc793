package main

import (
	"github.com/LerianStudio/lib-stablecoin/stablecoin"
	"github.com/spf13/cobra"
)

const moduleName = "stablecoin"

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:     moduleName,
		Short:   "Stablecoin operation services",
		Version: stablecoin.GetenvOrDefault("VERSION", "0.0.0"),
		Long: `Stablecoin operation services.

Runs the wallet bridge, the multi-signature backend and its auto-submit job,
and resolves token capabilities against a mirror node.
Requires configuration through ENV.`,
		SilenceUsage: true,
	}

	root.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	root.AddCommand(
		newServeCommand(),
		newCapabilitiesCommand(),
		newBalanceCommand(),
	)

	return root
}
