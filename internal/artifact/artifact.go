// Package artifact parses the external model files a tokenizer instance is
// built from: JSON vocabularies, BPE merge rules, added-token lists,
// tokenizer configs, SentencePiece models and Mecab-style dictionaries.
// Parsers validate structural well-formedness fully before returning, so a
// failed parse never leaves partially applied state behind.
package artifact

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMalformed is wrapped by every parser when artifact content does not
// match the expected schema for its kind.
var ErrMalformed = errors.New("artifact: malformed content")

// Kind tags the format of an artifact slot.
type Kind int

const (
	KindModel Kind = iota
	KindDictionary
	KindVocab
	KindMerges
	KindAddedTokens
	KindConfig
)

var kindNames = [...]string{
	KindModel:       "model",
	KindDictionary:  "dictionary",
	KindVocab:       "vocab",
	KindMerges:      "merges",
	KindAddedTokens: "added-tokens",
	KindConfig:      "config",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("kind(%d)", int(k))
	}
	return kindNames[k]
}

// ParseKind converts a case-insensitive kind name back to its Kind tag.
func ParseKind(s string) (Kind, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for k, n := range kindNames {
		if name == n {
			return Kind(k), nil
		}
	}
	return 0, fmt.Errorf("unknown artifact kind %q (want model|dictionary|vocab|merges|added-tokens|config)", s)
}
