// Package cmd provides the CLI commands for goh3 using Cobra.
package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "goh3",
	Short: "QPACK (RFC 9204) header compression tools",
	Long: `goh3 encodes and decodes QPACK header blocks offline, using the
stream-framed capture format from the QPACK interop effort: each
record is an 8-byte big-endian stream ID, a 4-byte big-endian length,
and that many bytes of payload. Stream 0 carries encoder stream
instructions; every other stream carries one header block.

Examples:
  goh3 decode fb-req-hq.out.0.0.0        # print decoded header lists
  goh3 encode -o out.bin requests.txt    # encode header lists`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(decodeCmd)
	rootCmd.AddCommand(encodeCmd)
}
