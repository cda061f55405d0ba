package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/symblaze/symblaze/internal/symbolize/elf"
	"github.com/symblaze/symblaze/internal/symbolize/kernel"
)

func newKallsymsCmd() *cobra.Command {
	var (
		path  string
		image string
	)

	cmd := &cobra.Command{
		Use:   "kallsyms ADDR [ADDR...]",
		Short: "Resolve kernel addresses against /proc/kallsyms",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			addrs, err := parseAddrs(args)
			if err != nil {
				return err
			}

			logger := loggerFromCmd(cmd)
			symbols, zero, err := kernel.ReadKallsyms(path, logger)
			if err != nil {
				return fmt.Errorf("failed to read kallsyms: %w", err)
			}
			if zero > 0 {
				cmd.PrintErrf("warning: %d kallsyms entries reported a zero address (kptr_restrict?)\n", zero)
			}

			var kimg *elf.Parser
			if image != "" {
				kimg, err = elf.Open(image, logger)
				if err != nil {
					return fmt.Errorf("failed to open kernel image: %w", err)
				}
				defer func() { _ = kimg.Close() }()
			}

			resolver := kernel.NewResolver(symbols, kimg)

			for _, addr := range addrs {
				name, start, err := resolver.FindSymbol(addr)
				if err != nil {
					cmd.Printf("0x%x: ??\n", addr)
					continue
				}
				cmd.Printf("0x%x: %s+0x%x\n", addr, name, addr-start)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&path, "path", "", "path to the kallsyms file (default /proc/kallsyms)")
	cmd.Flags().StringVar(&image, "image", "", "optional kernel image ELF, for symbol sizes")

	return cmd
}
