// Package engine implements the multi-scheme tokenizer core: artifact-driven
// vocabulary construction and per-scheme encode/decode with special-token
// handling.
//
// An Instance is single-threaded-affine: it keeps the most recent encode and
// decode results buffered for the accessor methods and performs no internal
// locking, so concurrent calls on one instance must be serialized by the
// caller. Independent instances are fully isolated.
package engine

import (
	"errors"
	"fmt"
	"os"
	"regexp"

	"github.com/example/go-tokkit/internal/artifact"
	"github.com/example/go-tokkit/internal/utf"
	"github.com/example/go-tokkit/internal/vocab"
)

// Flags is the creation-time option bit set.
type Flags uint32

const (
	// FlagUTF8Safe filters decode output down to valid standalone UTF-8,
	// dropping byte sequences that do not form whole scalar values.
	FlagUTF8Safe Flags = 1 << 0
)

// Token is one element of an encode result. WordID, CharStart and CharEnd
// are populated only for schemes that track alignment (see
// Scheme.tracksAlignment); CharStart/CharEnd are UTF-32 codepoint offsets
// into the original input.
type Token struct {
	ID        int
	WordID    int
	CharStart int
	CharEnd   int
}

// Encoding is the result of one Encode call. Aligned reports whether the
// per-token word IDs and codepoint spans are meaningful.
type Encoding struct {
	Tokens  []Token
	Aligned bool
}

// Instance owns one scheme's loaded artifacts, its vocabulary store and the
// buffered results of the most recent Encode and Decode calls.
type Instance struct {
	scheme Scheme
	flags  Flags
	store  *vocab.Store

	// Parsed artifact slots; reloading a kind replaces its slot and the
	// store is rebuilt from whatever is currently loaded.
	vocabJSON  map[string]int
	vocabList  []string
	mergePairs []artifact.MergePair
	mergeRanks map[string]int
	added      map[string]int
	cfg        artifact.TokenizerConfig
	model      *artifact.Model
	dict       *artifact.Dictionary

	// Specials appended at runtime survive artifact reloads.
	runtimeSpecials []string

	// Unigram lookup tables derived from model on rebuild.
	pieceIDs      map[string]int
	maxPieceRunes int
	unkID         int
	minScore      float64

	pretok *regexp.Regexp

	encoded *Encoding
	decoded []byte // NUL-terminated UTF-8
	closed  bool
}

// New creates an instance in the initial state: no artifacts loaded, no
// buffered results. Flags are stored verbatim.
func New(scheme Scheme, flags Flags) (*Instance, error) {
	if !scheme.valid() {
		return nil, fmt.Errorf("%w: scheme value %d outside the enumerated set", ErrInvalidArgument, int(scheme))
	}

	in := &Instance{
		scheme: scheme,
		flags:  flags,
		store:  vocab.NewStore(),
		cfg:    artifact.DefaultTokenizerConfig(),
		unkID:  -1,
	}

	switch scheme {
	case SchemeClip:
		in.pretok = clipPretokenizer
	default:
		if scheme.isByteBPE() {
			in.pretok = gpt2Pretokenizer
		}
	}

	return in, nil
}

// Scheme returns the scheme the instance was created with.
func (in *Instance) Scheme() Scheme { return in.scheme }

// Flags returns the flags the instance was created with.
func (in *Instance) Flags() Flags { return in.flags }

// Close releases all owned state. Every call after Close, including a second
// Close, fails with ErrInvalidState.
func (in *Instance) Close() error {
	if in.closed {
		return fmt.Errorf("%w: instance already closed", ErrInvalidState)
	}
	in.closed = true
	in.store = nil
	in.vocabJSON = nil
	in.vocabList = nil
	in.mergePairs = nil
	in.mergeRanks = nil
	in.added = nil
	in.model = nil
	in.dict = nil
	in.pieceIDs = nil
	in.runtimeSpecials = nil
	in.encoded = nil
	in.decoded = nil
	return nil
}

// LoadArtifactFile reads and loads one artifact from the filesystem.
func (in *Instance) LoadArtifactFile(kind artifact.Kind, path string) error {
	if in.closed {
		return fmt.Errorf("%w: instance closed", ErrInvalidState)
	}
	if !in.scheme.acceptsKind(kind) {
		return fmt.Errorf("%w: scheme %s does not accept %s artifacts", ErrUnsupportedForScheme, in.scheme, kind)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("%w: read %s artifact %q: %v", ErrIO, kind, path, err)
	}
	return in.LoadArtifactBytes(kind, data)
}

// LoadArtifactBytes parses one artifact according to kind and the instance's
// scheme, then rebuilds the vocabulary store. A parse failure leaves all
// previously loaded artifacts intact; a reload of the same kind replaces its
// prior content.
func (in *Instance) LoadArtifactBytes(kind artifact.Kind, data []byte) error {
	if in.closed {
		return fmt.Errorf("%w: instance closed", ErrInvalidState)
	}
	if !in.scheme.acceptsKind(kind) {
		return fmt.Errorf("%w: scheme %s does not accept %s artifacts", ErrUnsupportedForScheme, in.scheme, kind)
	}

	// Parse fully before mutating any slot.
	switch kind {
	case artifact.KindVocab:
		if in.scheme.isByteBPE() {
			parsed, err := artifact.ParseVocabJSON(data)
			if err != nil {
				return formatErr(err)
			}
			in.vocabJSON = parsed
		} else {
			parsed, err := artifact.ParseVocabList(data)
			if err != nil {
				return formatErr(err)
			}
			in.vocabList = parsed
		}
	case artifact.KindMerges:
		parsed, err := artifact.ParseMerges(data)
		if err != nil {
			return formatErr(err)
		}
		in.mergePairs = parsed
		in.mergeRanks = artifact.RankMap(parsed)
	case artifact.KindAddedTokens:
		parsed, err := artifact.ParseAddedTokens(data)
		if err != nil {
			return formatErr(err)
		}
		in.added = parsed
	case artifact.KindConfig:
		parsed, err := artifact.ParseTokenizerConfig(data)
		if err != nil {
			return formatErr(err)
		}
		in.cfg = parsed
	case artifact.KindModel:
		parsed, err := artifact.ParseSentencePieceModel(data)
		if err != nil {
			return formatErr(err)
		}
		in.model = parsed
	case artifact.KindDictionary:
		parsed, err := artifact.ParseDictionary(data)
		if err != nil {
			return formatErr(err)
		}
		in.dict = parsed
	default:
		return fmt.Errorf("%w: artifact kind %s", ErrInvalidArgument, kind)
	}

	in.rebuildStore()
	return nil
}

func formatErr(err error) error {
	if errors.Is(err, artifact.ErrMalformed) {
		return fmt.Errorf("%w: %v", ErrFormat, err)
	}
	return err
}

// rebuildStore derives the vocabulary store from the currently loaded
// artifact slots, then re-appends runtime-added special tokens so they keep
// their IDs' relative order across reloads.
func (in *Instance) rebuildStore() {
	st := vocab.NewStore()

	switch {
	case in.scheme == SchemeClip:
		if in.mergePairs != nil {
			buildClipVocab(st, in.mergePairs)
		}
	case in.scheme.isByteBPE():
		for text, id := range in.vocabJSON {
			st.Set(id, text, false)
		}
		for text, id := range in.added {
			st.Set(id, text, true)
		}
	case in.scheme.isWordLevel():
		special := make(map[string]bool)
		for _, text := range in.cfg.SpecialTokenTexts() {
			special[text] = true
		}
		for id, text := range in.vocabList {
			st.Set(id, text, special[text])
		}
	case in.scheme.isUnigram():
		if in.model != nil {
			for id, p := range in.model.Pieces {
				markSpecial := p.Type == artifact.PieceControl || p.Type == artifact.PieceUserDefined
				st.Set(id, p.Text, markSpecial)
			}
		}
	}

	for _, text := range in.runtimeSpecials {
		st.Append(text, true)
	}

	in.store = st
	if in.scheme.isUnigram() {
		in.rebuildUnigramTables()
	}
}

// ready reports whether the scheme's required artifacts are loaded.
func (in *Instance) ready() bool {
	switch {
	case in.scheme == SchemeClip:
		return in.mergePairs != nil
	case in.scheme.isByteBPE():
		return in.vocabJSON != nil && in.mergeRanks != nil
	case in.scheme == SchemeBert:
		return in.vocabList != nil
	case in.scheme.isWordLevel():
		return in.dict != nil && in.vocabList != nil
	default:
		return in.model != nil
	}
}

// Encode tokenizes text. With includeSpecialTokens the store's special
// entries are matched first as atomic tokens (greedy longest match at each
// position, leftmost first); without it special strings are segmented as
// ordinary text. The result is returned and also buffered for the token
// accessors, replacing any prior encode result.
func (in *Instance) Encode(text string, includeSpecialTokens bool) (*Encoding, error) {
	if in.closed {
		return nil, fmt.Errorf("%w: instance closed", ErrInvalidState)
	}
	if !in.ready() {
		return nil, fmt.Errorf("%w: encode requires loaded artifacts for scheme %s", ErrInvalidState, in.scheme)
	}

	var segs []segment
	if includeSpecialTokens {
		segs = splitSpecials(text, in.store.SpecialTexts())
	} else {
		segs = []segment{{text: text}}
	}

	enc := &Encoding{Aligned: in.scheme.tracksAlignment()}
	runeBase := 0
	wordID := 0

	for _, seg := range segs {
		segRunes := 0
		if enc.Aligned {
			runes, err := utf.DecodeString(seg.text)
			if err != nil {
				return nil, fmt.Errorf("%w: encode input: %v", ErrFormat, err)
			}
			segRunes = len(runes)
		}

		if seg.special {
			// The segment always advances the codepoint cursor, whether
			// or not the lookup succeeds.
			if id, ok := in.store.ID(seg.text); ok {
				tok := Token{ID: id}
				if enc.Aligned {
					tok.WordID = wordID
					tok.CharStart = runeBase
					tok.CharEnd = runeBase + segRunes
					wordID++
				}
				enc.Tokens = append(enc.Tokens, tok)
			}
			runeBase += segRunes
			continue
		}

		var (
			toks  []Token
			words int
			err   error
		)
		switch {
		case in.scheme.isByteBPE():
			toks, words = in.encodeByteBPE(seg.text, runeBase, wordID, enc.Aligned)
		case in.scheme.isWordLevel():
			toks, words, err = in.encodeWordLevel(seg.text, runeBase, wordID)
		default:
			toks, err = in.encodeUnigram(seg.text)
		}
		if err != nil {
			return nil, err
		}

		enc.Tokens = append(enc.Tokens, toks...)
		wordID += words
		runeBase += segRunes
	}

	in.encoded = enc
	return enc, nil
}

// Decode maps token IDs back to text per the scheme's detokenization rule.
// Without includeSpecialTokens, special-flagged IDs are omitted from the
// output. The text is returned and buffered for the text accessors; on
// failure the previously buffered result is left untouched.
func (in *Instance) Decode(ids []int, includeSpecialTokens bool) (string, error) {
	if in.closed {
		return "", fmt.Errorf("%w: instance closed", ErrInvalidState)
	}
	if !in.ready() {
		return "", fmt.Errorf("%w: decode requires loaded artifacts for scheme %s", ErrInvalidState, in.scheme)
	}

	// Validate everything before touching the buffered result.
	for _, id := range ids {
		if _, ok := in.store.Text(id); !ok {
			return "", fmt.Errorf("%w: token ID %d outside vocabulary of size %d", ErrInvalidArgument, id, in.store.Size())
		}
	}

	var raw []byte
	switch {
	case in.scheme.isByteBPE():
		raw = in.decodeByteBPE(ids, includeSpecialTokens)
	case in.scheme.isWordLevel():
		raw = in.decodeWordLevel(ids, includeSpecialTokens)
	default:
		raw = in.decodeUnigram(ids, includeSpecialTokens)
	}

	if in.flags&FlagUTF8Safe != 0 {
		raw = filterValidUTF8(raw)
	}

	in.decoded = append(raw, 0)
	return string(raw), nil
}

// filterValidUTF8 drops bytes that do not participate in a well-formed
// scalar encoding.
func filterValidUTF8(b []byte) []byte {
	out := make([]byte, 0, len(b))
	for off := 0; off < len(b); {
		_, size, err := utf.DecodeScalar(b, off)
		if err != nil {
			off++
			continue
		}
		out = append(out, b[off:off+size]...)
		off += size
	}
	return out
}
