package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ashwinyue/tracesmith/internal/middleware"
)

func runToken(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	token, err := middleware.IssueToken(cfg.Server.JWTSecret, tokenOpts.subject, tokenOpts.ttl)
	if err != nil {
		return fmt.Errorf("failed to issue token (is server.jwtSecret set?): %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), token)
	return nil
}
