package main

import (
	"fmt"
	"math/big"
	"time"

	"github.com/spf13/cobra"

	"github.com/radieske/pari-mutuel-escrow/internal/escrow"
	"github.com/radieske/pari-mutuel-escrow/internal/shared/auth"
)

// rootCmd monta a CLI de operação; defaultSecret vem do JWT_SECRET e walletSecret do WALLET_JWT_SECRET
func rootCmd(defaultSecret, walletSecret string) *cobra.Command {
	root := &cobra.Command{
		Use:          "escrowctl",
		Short:        "Operator tools for the pari-mutuel escrow",
		SilenceUsage: true,
	}
	root.AddCommand(
		gameIDCmd(),
		tokenCmd(defaultSecret, walletSecret),
		quantityCmd(),
	)
	return root
}

func gameIDCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "game-id",
		Short: "Compute the deterministic id of a game",
		RunE: func(cmd *cobra.Command, args []string) error {
			teamA, _ := cmd.Flags().GetString("team-a")
			teamB, _ := cmd.Flags().GetString("team-b")
			date, _ := cmd.Flags().GetString("date")
			asset, _ := cmd.Flags().GetString("asset")
			fmt.Fprintln(cmd.OutOrStdout(), escrow.ComputeGameID(teamA, teamB, date, asset))
			return nil
		},
	}
	cmd.Flags().String("team-a", "", "first team")
	cmd.MarkFlagRequired("team-a")
	cmd.Flags().String("team-b", "", "second team")
	cmd.MarkFlagRequired("team-b")
	cmd.Flags().String("date", "", "game date, as registered")
	cmd.MarkFlagRequired("date")
	cmd.Flags().String("asset", "", "asset reference")
	cmd.MarkFlagRequired("asset")
	return cmd
}

func tokenCmd(defaultSecret, walletSecret string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token for a caller identity",
		RunE: func(cmd *cobra.Command, args []string) error {
			sub, _ := cmd.Flags().GetString("sub")
			secret, _ := cmd.Flags().GetString("secret")
			ttl, _ := cmd.Flags().GetDuration("ttl")
			if wallet, _ := cmd.Flags().GetBool("wallet"); wallet && !cmd.Flags().Changed("secret") {
				secret = walletSecret
			}
			tok, err := auth.Issue(secret, sub, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	cmd.Flags().StringP("sub", "s", "", "caller identity (registrar or bettor)")
	cmd.MarkFlagRequired("sub")
	cmd.Flags().String("secret", defaultSecret, "HS256 signing secret")
	cmd.Flags().Duration("ttl", 24*time.Hour, "token lifetime, 0 for no expiry")
	cmd.Flags().Bool("wallet", false, "sign a wallet-service credential (sub must be listed in WALLET_SERVICES)")
	return cmd
}

func quantityCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "quantity",
		Short: "Convert between display quantities and base units",
	}
	cmd.PersistentFlags().Int32P("decimals", "d", 18, "asset decimals")

	cmd.AddCommand(&cobra.Command{
		Use:   "parse <amount>",
		Short: "Display amount (6.111) to base units",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			decimals, _ := cmd.Flags().GetInt32("decimals")
			v, err := escrow.ParseQuantity(args[0], decimals)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), v)
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "format <base-units>",
		Short: "Base units to display amount",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			decimals, _ := cmd.Flags().GetInt32("decimals")
			v, ok := new(big.Int).SetString(args[0], 10)
			if !ok {
				return fmt.Errorf("not an integer: %q", args[0])
			}
			fmt.Fprintln(cmd.OutOrStdout(), escrow.FormatQuantity(v, decimals))
			return nil
		},
	})
	return cmd
}
