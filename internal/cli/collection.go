package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	collectionhandler "chronostamp/internal/collection/handler"
	"chronostamp/internal/collection/models"
	dErrors "chronostamp/pkg/domain-errors"
)

func (a *app) collectionCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "collection",
		Short: "Read collections and claim badges",
	}
	cmd.AddCommand(
		a.collectionInfoCommand(),
		a.collectionTokensCommand(),
		a.collectionClaimCommand(),
		a.collectionTransferCommand(),
	)
	return cmd
}

func (a *app) collectionInfoCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "info <address>",
		Short: "Show a collection's name, symbol, owner, signer and supply",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp collectionhandler.CollectionResponse
			if err := a.client().get(cmd.Context(), "/collections/"+args[0], &resp); err != nil {
				return err
			}
			return a.printer().print(resp)
		},
	}
}

type tokenList struct {
	Collection string                            `json:"collection"`
	Tokens     []collectionhandler.TokenResponse `json:"tokens"`
}

func (a *app) collectionTokensCommand() *cobra.Command {
	var maxTokens uint64
	cmd := &cobra.Command{
		Use:   "tokens <address>",
		Short: "List minted tokens, walking IDs from 1 until the first missing one",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tokens, err := walkTokens(cmd.Context(), a.client(), args[0], maxTokens)
			if err != nil {
				return err
			}
			return a.printer().print(tokenList{Collection: args[0], Tokens: tokens})
		},
	}
	cmd.Flags().Uint64Var(&maxTokens, "max", 0, "stop after this many tokens (0 = no limit)")
	return cmd
}

// walkTokens fetches token IDs in order until the service reports a
// nonexistent token. IDs are sequential, so the first gap is the end.
func walkTokens(ctx context.Context, c *Client, collection string, maxTokens uint64) ([]collectionhandler.TokenResponse, error) {
	tokens := []collectionhandler.TokenResponse{}
	for id := models.FirstTokenID; maxTokens == 0 || uint64(len(tokens)) < maxTokens; id++ {
		var tok collectionhandler.TokenResponse
		err := c.get(ctx, fmt.Sprintf("/collections/%s/tokens/%d", collection, id), &tok)
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound &&
			apiErr.Code == string(dErrors.CodeNonexistentToken) {
			break
		}
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, tok)
	}
	return tokens, nil
}

func (a *app) collectionClaimCommand() *cobra.Command {
	var req collectionhandler.ClaimRequest
	cmd := &cobra.Command{
		Use:   "claim <address>",
		Short: "Redeem a signed voucher for the logged-in caller",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp collectionhandler.ClaimResponse
			if err := a.client().post(cmd.Context(), "/collections/"+args[0]+"/claim", req, &resp); err != nil {
				return err
			}
			return a.printer().print(resp)
		},
	}
	cmd.Flags().StringVar(&req.Signature, "signature", "", "0x-prefixed voucher signature")
	cmd.Flags().StringVar(&req.Nonce, "nonce", "", "0x-prefixed 32-byte voucher nonce")
	_ = cmd.MarkFlagRequired("signature")
	_ = cmd.MarkFlagRequired("nonce")
	return cmd
}

func (a *app) collectionTransferCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "transfer-ownership <address> <new-owner>",
		Short: "Hand collection ownership to another address",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp collectionhandler.OwnershipResponse
			req := collectionhandler.TransferOwnershipRequest{NewOwner: args[1]}
			if err := a.client().post(cmd.Context(), "/collections/"+args[0]+"/ownership", req, &resp); err != nil {
				return err
			}
			return a.printer().print(resp)
		},
	}
}
