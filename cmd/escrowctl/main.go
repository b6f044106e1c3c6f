package main

import (
	"fmt"
	"os"

	"github.com/radieske/pari-mutuel-escrow/internal/shared/config"
)

func main() {
	cfg := config.LoadFor("escrowctl")
	if err := rootCmd(cfg.JWTSecret, cfg.WalletJWTSecret).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
