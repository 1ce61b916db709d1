package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func newDecodeCmd() *cobra.Command {
	var specials bool

	cmd := &cobra.Command{
		Use:   "decode [id...]",
		Short: "Decode token IDs back to text",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			ids, err := parseIDArgs(args)
			if err != nil {
				return err
			}

			in, err := newInstance(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = in.Close() }()

			text, err := in.Decode(ids, specials)
			if err != nil {
				return err
			}

			_, _ = fmt.Fprintln(cmd.OutOrStdout(), text)
			return nil
		},
	}

	cmd.Flags().BoolVar(&specials, "specials", false, "Keep special tokens in the output")

	return cmd
}

func parseIDArgs(args []string) ([]int, error) {
	ids := make([]int, 0, len(args))
	for _, a := range args {
		id, err := strconv.Atoi(a)
		if err != nil {
			return nil, fmt.Errorf("invalid token ID %q", a)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
