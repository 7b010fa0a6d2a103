package cli

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/spf13/cobra"

	"chronostamp/internal/voucher"
	"chronostamp/pkg/domain"
)

type signedVoucher struct {
	Signer    string `json:"signer"`
	Recipient string `json:"recipient"`
	Nonce     string `json:"nonce"`
	Signature string `json:"signature"`
}

func (a *app) voucherCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "voucher",
		Short: "Issuer-side voucher tools",
	}
	cmd.AddCommand(a.voucherSignCommand())
	return cmd
}

func (a *app) voucherSignCommand() *cobra.Command {
	var recipient, nonceHex string
	cmd := &cobra.Command{
		Use:   "sign",
		Short: "Sign a claim voucher for a recipient with the issuer key",
		Long: `sign produces the signature a trusted signer hands to a recipient. The
nonce is random unless --nonce is given. Nothing is sent to the service.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			key, err := a.privateKey()
			if err != nil {
				return err
			}
			to, err := domain.ParseAddress(recipient)
			if err != nil {
				return fmt.Errorf("recipient: %w", err)
			}

			nonce, err := domain.RandomNonce()
			if err != nil {
				return err
			}
			if nonceHex != "" {
				if nonce, err = domain.ParseNonce(nonceHex); err != nil {
					return fmt.Errorf("nonce: %w", err)
				}
			}

			sig, err := voucher.Sign(key, to, nonce)
			if err != nil {
				return fmt.Errorf("sign voucher: %w", err)
			}
			return a.printer().print(signedVoucher{
				Signer:    crypto.PubkeyToAddress(key.PublicKey).Hex(),
				Recipient: to.Hex(),
				Nonce:     nonce.Hex(),
				Signature: hexutil.Encode(sig),
			})
		},
	}
	cmd.Flags().StringVar(&recipient, "recipient", "", "address allowed to redeem the voucher")
	cmd.Flags().StringVar(&nonceHex, "nonce", "", "0x-prefixed 32-byte nonce (random if empty)")
	_ = cmd.MarkFlagRequired("recipient")
	return cmd
}
