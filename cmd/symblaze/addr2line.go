package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/symblaze/symblaze/internal/symbolize/symbolizer"
)

func newAddr2LineCmd() *cobra.Command {
	var (
		elfPath string
		base    string
	)

	cmd := &cobra.Command{
		Use:   "addr2line ADDR [ADDR...]",
		Short: "Resolve addresses within an ELF object to symbol names",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := loggerFromCmd(cmd)

			baseAddr, err := parseAddr(base)
			if err != nil {
				return fmt.Errorf("invalid --base: %w", err)
			}

			addrs, err := parseAddrs(args)
			if err != nil {
				return err
			}

			sym, err := symbolizer.New(symbolizer.Config{
				Sources: []symbolizer.Source{
					symbolizer.ElfSource{Path: elfPath, Base: baseAddr},
				},
				Logger: logger,
			})
			if err != nil {
				return fmt.Errorf("failed to initialize symbolizer: %w", err)
			}

			results, err := sym.Symbolize(context.Background(), addrs)
			if err != nil {
				return fmt.Errorf("symbolize failed: %w", err)
			}

			for i, addr := range addrs {
				if len(results[i]) == 0 {
					cmd.Printf("0x%x: ??\n", addr)
					continue
				}
				r := results[i][0]
				if r.Line > 0 {
					cmd.Printf("0x%x: %s+0x%x (%s:%d)\n", addr, r.Symbol, addr-r.StartAddress, r.Path, r.Line)
				} else {
					cmd.Printf("0x%x: %s+0x%x\n", addr, r.Symbol, addr-r.StartAddress)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&elfPath, "elf", "", "path to the ELF object (required)")
	cmd.Flags().StringVar(&base, "base", "0", "runtime load base address (hex or decimal)")
	_ = cmd.MarkFlagRequired("elf")

	return cmd
}

// parseAddr accepts both hex ("0x1000") and decimal ("4096") address
// literals, per Go's usual 0x/0/decimal base-prefix convention.
func parseAddr(s string) (uint64, error) {
	return strconv.ParseUint(s, 0, 64)
}

func parseAddrs(args []string) ([]uint64, error) {
	addrs := make([]uint64, len(args))
	for i, a := range args {
		v, err := parseAddr(a)
		if err != nil {
			return nil, fmt.Errorf("invalid address %q: %w", a, err)
		}
		addrs[i] = v
	}
	return addrs, nil
}
