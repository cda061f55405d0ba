// Command symblaze is a thin CLI driver over the symbolizer facade: it
// exists as an example/debugging program, not the module's core API
// surface.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "symblaze",
		Short:         "Resolve addresses to symbols across ELF, kernel and process backends",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-pretty", true, "use human-readable console log output")

	rootCmd.AddCommand(newAddr2LineCmd())
	rootCmd.AddCommand(newKallsymsCmd())
	rootCmd.AddCommand(newNormalizeCmd())
	rootCmd.AddCommand(newVersionCmd())

	if err := rootCmd.Execute(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Println("symblaze (development build)")
		},
	}
}
