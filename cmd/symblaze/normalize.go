package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/symblaze/symblaze/internal/symbolize/normalize"
)

func newNormalizeCmd() *cobra.Command {
	var pid int

	cmd := &cobra.Command{
		Use:   "normalize ADDR [ADDR...]",
		Short: "Normalize runtime addresses of a process into file-local addresses plus binary metadata",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			addrs, err := parseAddrs(args)
			if err != nil {
				return err
			}

			logger := loggerFromCmd(cmd)
			result, err := normalize.UserAddrs(addrs, pid, logger)
			if err != nil {
				return fmt.Errorf("normalize failed: %w", err)
			}

			for _, am := range result.Addrs {
				switch meta := result.Meta[am.MetaIndex].(type) {
				case normalize.Binary:
					cmd.Printf("0x%x: %s (build-id=%x)\n", am.Addr, meta.Path, meta.BuildID)
				case normalize.Unknown:
					cmd.Printf("0x%x: <unknown>\n", am.Addr)
				}
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&pid, "pid", 0, "target process ID (0 for the calling process)")

	return cmd
}
