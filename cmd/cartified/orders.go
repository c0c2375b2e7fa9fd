package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/dmehra2102/Cartified/internal/order/domain"
	"github.com/dmehra2102/Cartified/internal/order/infrastructure/chain"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/spf13/cobra"
)

type ordersOptions struct {
	*rootOptions
	JSON        bool
	PendingOnly bool
}

func newOrdersCommand(rootOpts *rootOptions) *cobra.Command {
	opts := &ordersOptions{rootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "orders <address>",
		Short: "List the order tokens held by an address",
		Example: `  cartified orders 0x8ba1f109551bD432803012645Ac136ddd64DBA72
  cartified orders --pending --json 0x8ba1f109551bD432803012645Ac136ddd64DBA72`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return listOrders(cmd, opts, args[0])
		},
	}
	cmd.Flags().BoolVar(&opts.JSON, "json", false, "print JSON instead of a table")
	cmd.Flags().BoolVar(&opts.PendingOnly, "pending", false, "only orders awaiting delivery")
	return cmd
}

func listOrders(cmd *cobra.Command, opts *ordersOptions, address string) error {
	if !common.IsHexAddress(address) {
		return fmt.Errorf("invalid address %q", address)
	}
	ctx := cmd.Context()

	eth, err := ethclient.DialContext(ctx, opts.cfg.Chain.RPCURL)
	if err != nil {
		return err
	}
	defer eth.Close()

	svc := chain.NewService(opts.logger(), eth, nil, nil, chain.Config{
		Address:     opts.cfg.Chain.ContractAddress,
		DeployBlock: opts.cfg.Chain.DeployBlock,
	})
	records, err := svc.ListOwned(ctx, common.HexToAddress(address))
	if err != nil {
		return err
	}
	if opts.PendingOnly {
		records = domain.Pending(records)
	}

	out := cmd.OutOrStdout()
	if opts.JSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(records)
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TOKEN\tAMOUNT\tDELIVERED\tBURNED\tURI")
	for _, r := range records {
		fmt.Fprintf(tw, "%d\t%s\t%t\t%t\t%s\n", r.TokenID, r.Amount.String(), r.Delivered, r.Burned, r.URI)
	}
	return tw.Flush()
}
