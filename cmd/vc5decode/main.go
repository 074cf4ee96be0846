// Command vc5decode decodes VC-5 payloads to 16-bit grayscale images and
// inspects their headers.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rcarmo/go-vc5/internal/logging"
)

const appVersion = "v1.0.0"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var logLevel string

	root := &cobra.Command{
		Use:           "vc5decode",
		Short:         "Decode VC-5 wavelet payloads",
		Version:       appVersion,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			logging.SetLevelFromString(logLevel)
		},
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level (debug, info, warn, error)")

	root.AddCommand(newDecodeCmd(), newHeaderCmd())
	return root
}
