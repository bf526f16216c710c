package main

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/spf13/cobra"

	"github.com/bionicotaku/lingo-utils-authx"
)

var errNoMatch = errors.New("password does not match")

func newPasswordCommand() *cobra.Command {
	var saltLength int
	cmd := &cobra.Command{
		Use:   "password",
		Short: "Hash and check password records",
	}
	cmd.PersistentFlags().IntVar(&saltLength, "salt-length", authx.DefaultSaltLength, "salt width in bytes")

	var salt string
	hash := &cobra.Command{
		Use:   "hash <password>",
		Short: "Print the \"<hex-digest> <decimal-salt>\" record for a password",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hasher := authx.NewPasswordHasher(authx.WithSaltLength(saltLength))
			var (
				rec authx.PasswordRecord
				err error
			)
			if salt != "" {
				s, ok := new(big.Int).SetString(salt, 10)
				if !ok {
					return fmt.Errorf("salt %q is not a decimal integer", salt)
				}
				rec, err = hasher.CreateWithSalt(args[0], s)
			} else {
				rec, err = hasher.Create(args[0])
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), rec.String())
			return nil
		},
	}
	hash.Flags().StringVar(&salt, "salt", "", "use this decimal salt instead of a random one")

	check := &cobra.Command{
		Use:   "check <password> <record>",
		Short: "Check a password against a stored record",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ok, err := authx.NewPasswordHasher(authx.WithSaltLength(saltLength)).CheckEncoded(args[0], args[1])
			if err != nil {
				return err
			}
			if !ok {
				return errNoMatch
			}
			fmt.Fprintln(cmd.OutOrStdout(), "match")
			return nil
		},
	}

	cmd.AddCommand(hash, check)
	return cmd
}
