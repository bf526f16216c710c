package main

import (
	"fmt"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
)

func newJWKSCommand(root *rootOptions) *cobra.Command {
	var asHex bool
	cmd := &cobra.Command{
		Use:   "jwks",
		Short: "Print the public key as a JWK Set for verifiers",
		Long: "Prints the public key as a JWK Set. With --hex it prints the compressed SEC1 point\n" +
			"accepted by --public-key and AUTHX_PUBLIC_KEY instead.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			keys, err := root.keys()
			if err != nil {
				return err
			}
			if asHex {
				fmt.Fprintln(cmd.OutOrStdout(), keys.PublicHex())
				return nil
			}
			set, err := keys.PublicKeySet()
			if err != nil {
				return err
			}
			out, err := json.MarshalIndent(set, "", "  ")
			if err != nil {
				return fmt.Errorf("marshal jwks: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asHex, "hex", false, "print the public key as SEC1 hex")
	return cmd
}
