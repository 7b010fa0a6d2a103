package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	registryhandler "chronostamp/internal/registry/handler"
)

func (a *app) registryCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "registry",
		Short: "Inspect and administer the collection registry",
	}
	cmd.AddCommand(
		a.registryInfoCommand(),
		a.registryCreateCommand(),
		a.registryListCommand(),
		a.registryTransferCommand(),
	)
	return cmd
}

func (a *app) registryInfoCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show the registry address, owner and badge count",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var resp registryhandler.RegistryResponse
			if err := a.client().get(cmd.Context(), "/registry", &resp); err != nil {
				return err
			}
			return a.printer().print(resp)
		},
	}
}

func (a *app) registryCreateCommand() *cobra.Command {
	var req registryhandler.CreateBadgeRequest
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new badge collection (registry owner only)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var resp registryhandler.CreateBadgeResponse
			if err := a.client().post(cmd.Context(), "/registry/badges", req, &resp); err != nil {
				return err
			}
			return a.printer().print(resp)
		},
	}
	cmd.Flags().StringVar(&req.Name, "name", "", "collection name")
	cmd.Flags().StringVar(&req.Symbol, "symbol", "", "collection symbol")
	cmd.Flags().StringVar(&req.BaseURI, "base-uri", "", "base token URI")
	cmd.Flags().StringVar(&req.TrustedSigner, "signer", "", "address whose vouchers are accepted")
	return cmd
}

func (a *app) registryListCommand() *cobra.Command {
	var offset, limit uint64
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List collections in creation order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var resp registryhandler.PageResponse
			path := fmt.Sprintf("/registry/badges?offset=%d&limit=%d", offset, limit)
			if err := a.client().get(cmd.Context(), path, &resp); err != nil {
				return err
			}
			return a.printer().print(resp)
		},
	}
	cmd.Flags().Uint64Var(&offset, "offset", 0, "index of the first collection")
	cmd.Flags().Uint64Var(&limit, "limit", registryhandler.DefaultPageLimit, "maximum collections to return")
	return cmd
}

func (a *app) registryTransferCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "transfer-ownership <new-owner>",
		Short: "Hand registry ownership to another address",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp registryhandler.OwnershipResponse
			req := registryhandler.TransferOwnershipRequest{NewOwner: args[0]}
			if err := a.client().post(cmd.Context(), "/registry/ownership", req, &resp); err != nil {
				return err
			}
			return a.printer().print(resp)
		},
	}
}
