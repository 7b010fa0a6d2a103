// Package cli implements badgectl, the operator and holder command line for
// the badge service.
package cli

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// app carries per-invocation state shared by subcommands.
type app struct {
	v          *viper.Viper
	out        io.Writer
	httpClient *http.Client
	cfgFile    string
}

// Execute runs badgectl with the process arguments.
func Execute(ctx context.Context) error {
	return NewRootCommand(os.Stdout, nil).ExecuteContext(ctx)
}

// NewRootCommand builds the command tree. httpClient may be nil.
func NewRootCommand(out io.Writer, httpClient *http.Client) *cobra.Command {
	a := &app{v: viper.New(), out: out, httpClient: httpClient}

	root := &cobra.Command{
		Use:   "badgectl",
		Short: "Manage ChronoStamp badge collections and claims",
		Long: `badgectl talks to the ChronoStamp badge service.

Configuration (highest to lowest priority):
1. CLI flags
2. Environment variables (BADGECTL_*)
3. Config file (~/.badgectl/config.yaml)`,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.initConfig()
		},
	}
	root.SetOut(out)

	flags := root.PersistentFlags()
	flags.StringVar(&a.cfgFile, "config", "", "config file (default: $HOME/.badgectl/config.yaml)")
	flags.String("server", "http://localhost:8080", "badge service base URL")
	flags.String("token", "", "access token from `badgectl login`")
	flags.StringP("output", "o", "yaml", "output format: yaml or json")
	flags.String("key", "", "hex private key for login and voucher signing")
	_ = a.v.BindPFlag("server", flags.Lookup("server"))
	_ = a.v.BindPFlag("token", flags.Lookup("token"))
	_ = a.v.BindPFlag("output", flags.Lookup("output"))
	_ = a.v.BindPFlag("key", flags.Lookup("key"))

	root.AddCommand(
		a.loginCommand(),
		a.registryCommand(),
		a.collectionCommand(),
		a.voucherCommand(),
	)
	return root
}

func (a *app) initConfig() error {
	a.v.SetEnvPrefix("BADGECTL")
	a.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	a.v.AutomaticEnv()

	if a.cfgFile != "" {
		a.v.SetConfigFile(a.cfgFile)
		if err := a.v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config %s: %w", a.cfgFile, err)
		}
		return nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return nil
	}
	a.v.AddConfigPath(filepath.Join(home, ".badgectl"))
	a.v.SetConfigType("yaml")
	a.v.SetConfigName("config")
	if err := a.v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("read config: %w", err)
		}
	}
	return nil
}

func (a *app) client() *Client {
	return NewClient(a.v.GetString("server"), a.v.GetString("token"), a.httpClient)
}

func (a *app) printer() printer {
	return printer{out: a.out, format: a.v.GetString("output")}
}

// privateKey reads the signing key from --key or BADGECTL_KEY.
func (a *app) privateKey() (*ecdsa.PrivateKey, error) {
	hexKey := strings.TrimPrefix(strings.TrimSpace(a.v.GetString("key")), "0x")
	if hexKey == "" {
		return nil, fmt.Errorf("a private key is required (--key or BADGECTL_KEY)")
	}
	key, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}
	return key, nil
}
