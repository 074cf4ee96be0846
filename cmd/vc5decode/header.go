package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/rcarmo/go-vc5/internal/codec/vc5"
)

func newHeaderCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "header <payload>",
		Short: "Print the parsed payload header as YAML",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHeader(cmd.OutOrStdout(), args[0])
		},
	}
}

func runHeader(stdout io.Writer, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	h, err := vc5.ParseHeader(data)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}

	enc := yaml.NewEncoder(stdout)
	enc.SetIndent(2)
	if err := enc.Encode(h); err != nil {
		return err
	}
	return enc.Close()
}
