// Command authx issues and checks tokens and password records with the process key material.
package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/bionicotaku/lingo-utils-authx"
)

type rootOptions struct {
	keyFile   string
	publicKey string
	verbose   bool
}

func main() {
	envPath := defaultEnvPath()
	if err := loadEnvFile(envPath); err != nil {
		slog.Warn("load env file", "path", envPath, "error", err)
	}

	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "authx",
		Short:         "Issue and verify signed bearer tokens and password records",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := slog.LevelInfo
			if opts.verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})))
		},
	}
	cmd.PersistentFlags().StringVar(&opts.keyFile, "key-file", envOr("AUTHX_KEY_FILE", ""), "EC P-256 JWK file (env AUTHX_KEY_FILE)")
	cmd.PersistentFlags().StringVar(&opts.publicKey, "public-key", envOr("AUTHX_PUBLIC_KEY", ""), "hex SEC1 public key for verify-only use (env AUTHX_PUBLIC_KEY)")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "debug logging")

	cmd.AddCommand(
		newTokenCommand(opts),
		newPasswordCommand(),
		newJWKSCommand(opts),
		newFederateCommand(opts),
	)
	return cmd
}

func (o *rootOptions) keys() (*authx.KeyMaterial, error) {
	if o.keyFile == "" {
		if o.publicKey != "" {
			return authx.ParsePublicKeyHex(o.publicKey)
		}
		return nil, errors.New("--key-file or AUTHX_KEY_FILE is required")
	}
	data, err := os.ReadFile(o.keyFile)
	if err != nil {
		return nil, fmt.Errorf("read key file: %w", err)
	}
	return authx.ParseKeyMaterial(data)
}
