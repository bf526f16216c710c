package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"google.golang.org/api/idtoken"

	"github.com/bionicotaku/lingo-utils-authx"
)

func newFederateCommand(root *rootOptions) *cobra.Command {
	var (
		audience string
		issuer   string
		level    string
		timeout  time.Duration
		duration time.Duration
	)
	cmd := &cobra.Command{
		Use:   "federate [google-id-token]",
		Short: "Exchange a Google ID token for a session token",
		Long: "Validates a Google ID token and signs a session token whose subject is the Google\n" +
			"account id. The token may also come from GOOGLE_ID_TOKEN.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			idToken := envOr("GOOGLE_ID_TOKEN", "")
			if len(args) == 1 {
				idToken = args[0]
			}
			if audience == "" {
				return errors.New("--audience or GOOGLE_AUDIENCE is required")
			}
			lvl, err := authx.ParseLevel(level)
			if err != nil {
				return err
			}

			keys, err := root.keys()
			if err != nil {
				return err
			}
			lookup := func(_ context.Context, payload *idtoken.Payload) (authx.Claims, error) {
				claims := authx.NewClaims(payload.Subject, lvl)
				if email, ok := payload.Claims["email"].(string); ok {
					claims["email"] = email
				}
				return claims, nil
			}
			fed, err := authx.NewFederation(authx.FederationConfig{
				Audience: audience,
				Issuer:   issuer,
				Timeout:  timeout,
				Duration: duration,
			}, authx.NewTokenService(keys), lookup)
			if err != nil {
				return err
			}

			token, claims, err := fed.Exchange(cmd.Context(), idToken)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "subject : %s\n", claims.Subject())
			if email, ok := claims.String("email"); ok {
				fmt.Fprintf(out, "email   : %s\n", email)
			}
			fmt.Fprintf(out, "token   : %s\n", token)
			return nil
		},
	}
	cmd.Flags().StringVar(&audience, "audience", envOr("GOOGLE_AUDIENCE", ""), "expected audience (env GOOGLE_AUDIENCE)")
	cmd.Flags().StringVar(&issuer, "issuer", envOr("GOOGLE_ISSUER", ""), "expected issuer (env GOOGLE_ISSUER)")
	cmd.Flags().StringVar(&level, "level", authx.LevelDefault.String(), "level granted to the federated principal")
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "timeout for Google validation")
	cmd.Flags().DurationVar(&duration, "duration", 24*time.Hour, "session token lifetime")
	return cmd
}
