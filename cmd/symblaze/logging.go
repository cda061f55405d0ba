package main

import (
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/symblaze/symblaze/internal/logging"
)

func loggerFromCmd(cmd *cobra.Command) zerolog.Logger {
	level, _ := cmd.Flags().GetString("log-level")
	pretty, _ := cmd.Flags().GetBool("log-pretty")
	cfg := logging.DefaultConfig()
	cfg.Level = level
	cfg.Pretty = pretty
	return logging.New(cfg)
}
