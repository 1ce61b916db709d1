package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newVocabCmd() *cobra.Command {
	var add []string
	var lookup int

	cmd := &cobra.Command{
		Use:   "vocab",
		Short: "Inspect the loaded vocabulary",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			in, err := newInstance(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = in.Close() }()

			out := cmd.OutOrStdout()

			if len(add) > 0 {
				ids, err := in.AddSpecialTokens(add)
				if err != nil {
					return err
				}
				for i, id := range ids {
					_, _ = fmt.Fprintf(out, "added %q as %d\n", add[i], id)
				}
			}

			if lookup >= 0 {
				text, err := in.VocabText(lookup)
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintf(out, "%d\t%q\n", lookup, text)
				return nil
			}

			size, err := in.VocabSize()
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(out, "size: %d\n", size)
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&add, "add", nil, "Add a special token before inspecting (repeatable)")
	cmd.Flags().IntVar(&lookup, "id", -1, "Print the token text for this ID")

	return cmd
}
