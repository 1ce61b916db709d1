package engine

import (
	"fmt"
	"strings"

	"github.com/example/go-tokkit/internal/artifact"
)

// Scheme selects the tokenization algorithm family and the artifact kinds an
// instance accepts. It is fixed at creation.
type Scheme int

const (
	SchemeWhisper Scheme = iota
	SchemeClip
	SchemeXlmRoberta
	SchemeMarian
	SchemeBertJapaneseWordpiece
	SchemeBertJapaneseCharacter
	SchemeT5
	SchemeRoberta
	SchemeBert
	SchemeGpt2
	SchemeLlama
	schemeCount
)

var schemeNames = [...]string{
	SchemeWhisper:               "whisper",
	SchemeClip:                  "clip",
	SchemeXlmRoberta:            "xlm-roberta",
	SchemeMarian:                "marian",
	SchemeBertJapaneseWordpiece: "bert-japanese-wordpiece",
	SchemeBertJapaneseCharacter: "bert-japanese-character",
	SchemeT5:                    "t5",
	SchemeRoberta:               "roberta",
	SchemeBert:                  "bert",
	SchemeGpt2:                  "gpt2",
	SchemeLlama:                 "llama",
}

func (s Scheme) valid() bool {
	return s >= 0 && s < schemeCount
}

func (s Scheme) String() string {
	if !s.valid() {
		return fmt.Sprintf("scheme(%d)", int(s))
	}
	return schemeNames[s]
}

// ParseScheme converts a case-insensitive scheme name to its Scheme value.
func ParseScheme(name string) (Scheme, error) {
	want := strings.ToLower(strings.TrimSpace(name))
	for s, n := range schemeNames {
		if want == n {
			return Scheme(s), nil
		}
	}
	return 0, fmt.Errorf("%w: unknown scheme %q", ErrInvalidArgument, name)
}

// Schemes returns all valid schemes in declaration order.
func Schemes() []Scheme {
	out := make([]Scheme, schemeCount)
	for i := range out {
		out[i] = Scheme(i)
	}
	return out
}

// isByteBPE reports the GPT-2 byte-level BPE family (Clip included, with its
// lowercasing and end-of-word variant).
func (s Scheme) isByteBPE() bool {
	switch s {
	case SchemeGpt2, SchemeRoberta, SchemeWhisper, SchemeClip:
		return true
	}
	return false
}

// isUnigram reports the SentencePiece unigram family.
func (s Scheme) isUnigram() bool {
	switch s {
	case SchemeXlmRoberta, SchemeMarian, SchemeT5, SchemeLlama:
		return true
	}
	return false
}

// isWordLevel reports the WordPiece/character family that segments input
// into words before sub-tokenizing.
func (s Scheme) isWordLevel() bool {
	switch s {
	case SchemeBert, SchemeBertJapaneseWordpiece, SchemeBertJapaneseCharacter:
		return true
	}
	return false
}

// tracksAlignment reports whether encode results carry word IDs and
// codepoint spans.
func (s Scheme) tracksAlignment() bool {
	switch s {
	case SchemeRoberta, SchemeBert, SchemeBertJapaneseWordpiece, SchemeBertJapaneseCharacter:
		return true
	}
	return false
}

// supportsDynamicSpecials reports whether AddSpecialTokens is accepted
// (the Roberta and GPT-2 families).
func (s Scheme) supportsDynamicSpecials() bool {
	switch s {
	case SchemeRoberta, SchemeGpt2, SchemeWhisper:
		return true
	}
	return false
}

var acceptedKinds = map[Scheme][]artifact.Kind{
	SchemeGpt2:                  {artifact.KindVocab, artifact.KindMerges, artifact.KindAddedTokens},
	SchemeRoberta:               {artifact.KindVocab, artifact.KindMerges, artifact.KindAddedTokens},
	SchemeWhisper:               {artifact.KindVocab, artifact.KindMerges, artifact.KindAddedTokens},
	SchemeClip:                  {artifact.KindMerges},
	SchemeBert:                  {artifact.KindVocab, artifact.KindConfig},
	SchemeBertJapaneseWordpiece: {artifact.KindDictionary, artifact.KindVocab},
	SchemeBertJapaneseCharacter: {artifact.KindDictionary, artifact.KindVocab},
	SchemeXlmRoberta:            {artifact.KindModel},
	SchemeMarian:                {artifact.KindModel},
	SchemeT5:                    {artifact.KindModel},
	SchemeLlama:                 {artifact.KindModel},
}

func (s Scheme) acceptsKind(k artifact.Kind) bool {
	for _, accepted := range acceptedKinds[s] {
		if k == accepted {
			return true
		}
	}
	return false
}
