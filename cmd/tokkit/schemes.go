package main

import (
	"fmt"

	"github.com/example/go-tokkit/internal/engine"
	"github.com/spf13/cobra"
)

func newSchemesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schemes",
		Short: "List supported tokenization schemes",
		RunE: func(cmd *cobra.Command, _ []string) error {
			for _, scheme := range engine.Schemes() {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), scheme.String())
			}
			return nil
		},
	}
}
