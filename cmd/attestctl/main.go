// Command attestctl is the operator CLI: it computes document fingerprints,
// applies the registry schema and signs local test tokens.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/spf13/cobra"

	jwttoken "attest/internal/jwt_token"
	"attest/internal/platform/postgres"
	"attest/internal/platform/postgres/migrations"
	id "attest/pkg/domain"
	"attest/pkg/fingerprint"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "attestctl",
		Short:        "Operator tooling for the attest proof registry",
		SilenceUsage: true,
	}
	root.AddCommand(newFingerprintCmd(), newMigrateCmd(), newTokenCmd())
	return root
}

func newFingerprintCmd() *cobra.Command {
	var alg string
	cmd := &cobra.Command{
		Use:   "fingerprint <file|->",
		Short: "Print the fingerprint of a document",
		Long: "Digest a document the way clients should before minting. Use - to read stdin.\n" +
			"Supported algorithms: " + strings.Join(fingerprint.Algorithms(), ", "),
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			parsed, err := fingerprint.ParseAlgorithm(alg)
			if err != nil {
				return err
			}
			var in io.Reader = cmd.InOrStdin()
			if args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return fmt.Errorf("open document: %w", err)
				}
				defer f.Close()
				in = f
			}
			sum, err := fingerprint.SumReader(parsed, in)
			if err != nil {
				return fmt.Errorf("read document: %w", err)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), sum)
			return err
		},
	}
	cmd.Flags().StringVar(&alg, "alg", string(fingerprint.Default), "digest algorithm")
	return cmd
}

func newMigrateCmd() *cobra.Command {
	var (
		dsn    string
		dryRun bool
	)
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply the embedded registry schema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if dryRun {
				files, err := migrations.Files()
				if err != nil {
					return err
				}
				for _, f := range files {
					fmt.Fprintln(cmd.OutOrStdout(), f)
				}
				return nil
			}
			if dsn == "" {
				dsn = os.Getenv("ATTEST_DATABASE_URL")
			}
			if dsn == "" {
				return fmt.Errorf("--dsn or ATTEST_DATABASE_URL is required")
			}
			db, err := postgres.Open(cmd.Context(), dsn, postgres.Options{MaxOpenConns: 1})
			if err != nil {
				return err
			}
			defer db.Close()
			if err := migrations.Apply(cmd.Context(), db); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "schema applied")
			return nil
		},
	}
	cmd.Flags().StringVar(&dsn, "dsn", "", "Postgres connection string (defaults to ATTEST_DATABASE_URL)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "list migrations without applying them")
	return cmd
}

func newTokenCmd() *cobra.Command {
	var (
		key      string
		subject  string
		issuer   string
		audience string
		ttl      time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Sign a caller bearer token for local testing",
		RunE: func(cmd *cobra.Command, _ []string) error {
			caller, err := id.ParseIdentity(subject)
			if err != nil {
				return fmt.Errorf("invalid subject: %w", err)
			}
			token, err := jwttoken.NewJWTService(key, issuer, audience).GenerateToken(caller, ttl)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}
	cmd.Flags().StringVar(&key, "key", "", "HS256 signing key (ATTEST_JWT_SIGNING_KEY of the server)")
	cmd.Flags().StringVar(&subject, "subject", "", "caller identity the token is issued for")
	cmd.Flags().StringVar(&issuer, "issuer", "attest", "token issuer")
	cmd.Flags().StringVar(&audience, "audience", "attest-api", "token audience")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	_ = cmd.MarkFlagRequired("key")
	_ = cmd.MarkFlagRequired("subject")
	return cmd
}
