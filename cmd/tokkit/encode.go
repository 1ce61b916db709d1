package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

func newEncodeCmd() *cobra.Command {
	var text string
	var specials bool
	var alignment bool

	cmd := &cobra.Command{
		Use:   "encode",
		Short: "Encode text to token IDs",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			input, err := readInputText(text, os.Stdin)
			if err != nil {
				return err
			}

			in, err := newInstance(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = in.Close() }()

			enc, err := in.Encode(input, specials)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for i, tok := range enc.Tokens {
				if i > 0 {
					_, _ = fmt.Fprint(out, " ")
				}
				_, _ = fmt.Fprintf(out, "%d", tok.ID)
			}
			_, _ = fmt.Fprintln(out)

			if alignment {
				if !enc.Aligned {
					return fmt.Errorf("scheme %s does not track alignment", in.Scheme())
				}
				for _, tok := range enc.Tokens {
					_, _ = fmt.Fprintf(out, "id=%d word=%d span=[%d,%d)\n", tok.ID, tok.WordID, tok.CharStart, tok.CharEnd)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&text, "text", "", "Text to encode (if empty, read from stdin)")
	cmd.Flags().BoolVar(&specials, "specials", false, "Match special tokens atomically")
	cmd.Flags().BoolVar(&alignment, "alignment", false, "Print per-token word IDs and codepoint spans")

	return cmd
}

func readInputText(text string, stdin io.Reader) (string, error) {
	if text != "" {
		return text, nil
	}

	b, err := io.ReadAll(stdin)
	if err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	input := strings.TrimRight(string(b), "\n")
	if input == "" {
		return "", fmt.Errorf("either provide --text or pipe text on stdin")
	}
	return input, nil
}
