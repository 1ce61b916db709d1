package artifact

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ParseVocabJSON parses a GPT-2 style vocab.json object mapping token text
// to non-negative token IDs.
func ParseVocabJSON(data []byte) (map[string]int, error) {
	var vocab map[string]int
	if err := json.Unmarshal(data, &vocab); err != nil {
		return nil, fmt.Errorf("%w: parse vocab JSON: %v", ErrMalformed, err)
	}
	for text, id := range vocab {
		if id < 0 {
			return nil, fmt.Errorf("%w: token %q has negative ID %d", ErrMalformed, text, id)
		}
	}
	return vocab, nil
}

// ParseVocabList parses a WordPiece vocab.txt: one token per line, the line
// number being the token ID. Blank trailing lines are ignored; blank lines in
// the middle would shift every following ID and are rejected.
func ParseVocabList(data []byte) ([]string, error) {
	raw := strings.ReplaceAll(string(data), "\r\n", "\n")
	lines := strings.Split(raw, "\n")
	for len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	if len(lines) == 0 {
		return nil, fmt.Errorf("%w: vocab list is empty", ErrMalformed)
	}
	for i, line := range lines {
		if line == "" {
			return nil, fmt.Errorf("%w: blank vocab entry at line %d", ErrMalformed, i+1)
		}
	}
	return lines, nil
}

// ParseAddedTokens parses an added_tokens.json object mapping token text to
// token IDs. Every entry it yields is treated as a special token.
func ParseAddedTokens(data []byte) (map[string]int, error) {
	var added map[string]int
	if err := json.Unmarshal(data, &added); err != nil {
		return nil, fmt.Errorf("%w: parse added tokens JSON: %v", ErrMalformed, err)
	}
	for text, id := range added {
		if id < 0 {
			return nil, fmt.Errorf("%w: added token %q has negative ID %d", ErrMalformed, text, id)
		}
	}
	return added, nil
}

// TokenizerConfig is the subset of tokenizer_config.json the engine acts on.
type TokenizerConfig struct {
	DoLowerCase          bool
	TokenizeChineseChars bool
	UnkToken             string
	ClsToken             string
	SepToken             string
	PadToken             string
	MaskToken            string
	ModelMaxLength       int
}

// DefaultTokenizerConfig returns the values assumed when no config artifact
// has been loaded (the uncased BERT defaults).
func DefaultTokenizerConfig() TokenizerConfig {
	return TokenizerConfig{
		DoLowerCase:          true,
		TokenizeChineseChars: true,
		UnkToken:             "[UNK]",
		ClsToken:             "[CLS]",
		SepToken:             "[SEP]",
		PadToken:             "[PAD]",
		MaskToken:            "[MASK]",
		ModelMaxLength:       512,
	}
}

// SpecialTokenTexts returns the configured special token texts, skipping
// empty ones.
func (c TokenizerConfig) SpecialTokenTexts() []string {
	var out []string
	for _, t := range []string{c.UnkToken, c.ClsToken, c.SepToken, c.PadToken, c.MaskToken} {
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// ParseTokenizerConfig parses tokenizer_config.json. Absent fields keep
// their defaults; token fields accept both the plain-string and the
// {"content": ...} added-token object forms.
func ParseTokenizerConfig(data []byte) (TokenizerConfig, error) {
	var raw struct {
		DoLowerCase          *bool           `json:"do_lower_case"`
		TokenizeChineseChars *bool           `json:"tokenize_chinese_chars"`
		UnkToken             json.RawMessage `json:"unk_token"`
		ClsToken             json.RawMessage `json:"cls_token"`
		SepToken             json.RawMessage `json:"sep_token"`
		PadToken             json.RawMessage `json:"pad_token"`
		MaskToken            json.RawMessage `json:"mask_token"`
		ModelMaxLength       *int            `json:"model_max_length"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return TokenizerConfig{}, fmt.Errorf("%w: parse tokenizer config: %v", ErrMalformed, err)
	}

	cfg := DefaultTokenizerConfig()
	if raw.DoLowerCase != nil {
		cfg.DoLowerCase = *raw.DoLowerCase
	}
	if raw.TokenizeChineseChars != nil {
		cfg.TokenizeChineseChars = *raw.TokenizeChineseChars
	}
	if raw.ModelMaxLength != nil {
		cfg.ModelMaxLength = *raw.ModelMaxLength
	}

	for _, f := range []struct {
		raw json.RawMessage
		dst *string
	}{
		{raw.UnkToken, &cfg.UnkToken},
		{raw.ClsToken, &cfg.ClsToken},
		{raw.SepToken, &cfg.SepToken},
		{raw.PadToken, &cfg.PadToken},
		{raw.MaskToken, &cfg.MaskToken},
	} {
		if f.raw == nil {
			continue
		}
		text, err := tokenText(f.raw)
		if err != nil {
			return TokenizerConfig{}, err
		}
		*f.dst = text
	}

	return cfg, nil
}

func tokenText(raw json.RawMessage) (string, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}
	var obj struct {
		Content string `json:"content"`
	}
	if err := json.Unmarshal(raw, &obj); err != nil || obj.Content == "" {
		return "", fmt.Errorf("%w: token field is neither a string nor an added-token object", ErrMalformed)
	}
	return obj.Content, nil
}
