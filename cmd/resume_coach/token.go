package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jonathan/resume-coach/internal/server"
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue an API access token",
	Long:  "Signs a bearer token for --owner with server.jwt.secret, for use against the HTTP API.",
	RunE:  runToken,
}

var tokenOwner string

func init() {
	tokenCmd.Flags().StringVar(&tokenOwner, "owner", "", "owner ID the token identifies (required)")
	if err := tokenCmd.MarkFlagRequired("owner"); err != nil {
		panic(fmt.Sprintf("failed to mark owner flag as required: %v", err))
	}

	rootCmd.AddCommand(tokenCmd)
}

func runToken(cmd *cobra.Command, _ []string) error {
	owner := strings.TrimSpace(tokenOwner)
	if owner == "" {
		return errors.New("owner must not be empty")
	}
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()
	if !cfg.Server.JWT.Enabled() {
		return errors.New("server.jwt.secret is not set (set JWT_SECRET)")
	}

	token, err := server.NewJWTService(cfg.Server.JWT).GenerateToken(owner)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), token)
	return nil
}
