package cli

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/spf13/cobra"

	authhandler "chronostamp/internal/auth/handler"
	"chronostamp/internal/voucher"
)

func (a *app) loginCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Sign a login challenge and print an access token",
		Long: `login requests a challenge for the key's address, signs it locally and
exchanges the signature for an access token. Export the token as
BADGECTL_TOKEN for commands that need a caller.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			key, err := a.privateKey()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			c := a.client()
			addr := crypto.PubkeyToAddress(key.PublicKey)

			var challenge authhandler.ChallengeResponse
			if err := c.post(ctx, "/auth/challenge", authhandler.ChallengeRequest{Address: addr.Hex()}, &challenge); err != nil {
				return err
			}
			sig, err := voucher.SignMessage(key, []byte(challenge.Message))
			if err != nil {
				return fmt.Errorf("sign challenge: %w", err)
			}

			var session authhandler.TokenResponse
			if err := c.post(ctx, "/auth/token", authhandler.TokenRequest{
				ChallengeID: challenge.ChallengeID,
				Signature:   hexutil.Encode(sig),
			}, &session); err != nil {
				return err
			}
			return a.printer().print(session)
		},
	}
}
