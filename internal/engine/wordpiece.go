package engine

import (
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"github.com/example/go-tokkit/internal/utf"
	"github.com/example/go-tokkit/internal/vocab"
)

// maxWordpieceChars caps WordPiece matching per word; longer words collapse
// to the unknown token, as in the reference BERT tokenizer.
const maxWordpieceChars = 100

// word is one pre-segmented unit of a word-level scheme, with its rune span
// in the segment and its normalized form.
type word struct {
	start int
	end   int
	// norm is the normalized rune sequence sub-tokenization runs on;
	// normToOrig maps each normalized rune back to its source rune offset
	// relative to start, so spans survive lowercasing and accent
	// stripping.
	norm       []rune
	normToOrig []int
}

// isBertPunct matches the reference BERT punctuation class: the ASCII
// symbol ranges plus anything Unicode classifies as punctuation.
func isBertPunct(r rune) bool {
	if (r >= 33 && r <= 47) || (r >= 58 && r <= 64) || (r >= 91 && r <= 96) || (r >= 123 && r <= 126) {
		return true
	}
	return unicode.IsPunct(r)
}

// isCJK matches the CJK ideograph blocks the reference BERT tokenizer
// isolates into single-character words.
func isCJK(r rune) bool {
	switch {
	case r >= 0x4E00 && r <= 0x9FFF,
		r >= 0x3400 && r <= 0x4DBF,
		r >= 0x20000 && r <= 0x2A6DF,
		r >= 0x2A700 && r <= 0x2B73F,
		r >= 0x2B740 && r <= 0x2B81F,
		r >= 0x2B820 && r <= 0x2CEAF,
		r >= 0xF900 && r <= 0xFAFF,
		r >= 0x2F800 && r <= 0x2FA1F:
		return true
	}
	return false
}

// normalizeWord lowercases and strips combining marks rune by rune, keeping
// a map from normalized offsets back to source offsets.
func normalizeWord(runes []rune, lower bool) ([]rune, []int) {
	if !lower {
		out := make([]rune, len(runes))
		idx := make([]int, len(runes))
		for i, r := range runes {
			out[i] = r
			idx[i] = i
		}
		return out, idx
	}

	var out []rune
	var idx []int
	for i, r := range runes {
		for _, d := range norm.NFD.String(string(r)) {
			if unicode.Is(unicode.Mn, d) {
				continue
			}
			out = append(out, unicode.ToLower(d))
			idx = append(idx, i)
		}
	}
	return out, idx
}

// basicWords splits a rune sequence the way BERT's basic tokenizer does:
// whitespace separates, punctuation and CJK ideographs become their own
// words, control characters are dropped.
func (in *Instance) basicWords(runes []rune) []word {
	var words []word
	cur := -1

	flush := func(end int) {
		if cur < 0 {
			return
		}
		n, idx := normalizeWord(runes[cur:end], in.cfg.DoLowerCase)
		words = append(words, word{start: cur, end: end, norm: n, normToOrig: idx})
		cur = -1
	}

	for i, r := range runes {
		switch {
		case unicode.IsSpace(r):
			flush(i)
		case isBertPunct(r) || (in.cfg.TokenizeChineseChars && isCJK(r)):
			flush(i)
			n, idx := normalizeWord(runes[i:i+1], in.cfg.DoLowerCase)
			words = append(words, word{start: i, end: i + 1, norm: n, normToOrig: idx})
		case unicode.IsControl(r):
			flush(i)
		default:
			if cur < 0 {
				cur = i
			}
		}
	}
	flush(len(runes))
	return words
}

// latticeWords splits on whitespace and then runs the dictionary lattice
// over each run, yielding dictionary-segmented words with exact spans.
func (in *Instance) latticeWords(runes []rune) []word {
	var words []word

	runStart := -1
	flushRun := func(end int) {
		if runStart < 0 {
			return
		}
		for _, span := range latticeSegment(runes[runStart:end], in.dict) {
			s := runStart + span[0]
			e := runStart + span[1]
			n, idx := normalizeWord(runes[s:e], false)
			words = append(words, word{start: s, end: e, norm: n, normToOrig: idx})
		}
		runStart = -1
	}

	for i, r := range runes {
		if unicode.IsSpace(r) {
			flushRun(i)
			continue
		}
		if runStart < 0 {
			runStart = i
		}
	}
	flushRun(len(runes))
	return words
}

type wordpiecePart struct {
	normStart int
	normEnd   int
	id        int
}

// wordpieceMatch runs greedy longest-match segmentation with the ##
// continuation convention. Reports ok=false when any position has no match,
// in which case the whole word becomes the unknown token.
func wordpieceMatch(normRunes []rune, store *vocab.Store) ([]wordpiecePart, bool) {
	if len(normRunes) == 0 {
		return nil, true
	}
	if len(normRunes) > maxWordpieceChars {
		return nil, false
	}

	var out []wordpiecePart
	start := 0
	for start < len(normRunes) {
		matched := false
		for end := len(normRunes); end > start; end-- {
			sub := string(normRunes[start:end])
			if start > 0 {
				sub = "##" + sub
			}
			if id, ok := store.NonSpecialID(sub); ok {
				out = append(out, wordpiecePart{normStart: start, normEnd: end, id: id})
				start = end
				matched = true
				break
			}
		}
		if !matched {
			return nil, false
		}
	}
	return out, true
}

// encodeWordLevel tokenizes one plain segment for the Bert family: word
// segmentation, then WordPiece or per-character sub-tokenization with exact
// codepoint spans. Returns tokens and the number of words consumed.
func (in *Instance) encodeWordLevel(seg string, runeBase, wordStart int) ([]Token, int, error) {
	runes, err := utf.DecodeString(seg)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: encode input: %v", ErrFormat, err)
	}

	var words []word
	if in.scheme == SchemeBert {
		words = in.basicWords(runes)
	} else {
		words = in.latticeWords(runes)
	}

	unkID, hasUnk := in.store.ID(in.cfg.UnkToken)

	var toks []Token
	for wi, w := range words {
		wordID := wordStart + wi

		// charEnd for a sub-token ending at normalized offset b.
		endOffset := func(b int) int {
			if b >= len(w.norm) {
				return runeBase + w.end
			}
			return runeBase + w.start + w.normToOrig[b]
		}

		if in.scheme == SchemeBertJapaneseCharacter {
			for j := range w.norm {
				id, ok := in.store.NonSpecialID(string(w.norm[j]))
				if !ok {
					if !hasUnk {
						continue
					}
					id = unkID
				}
				toks = append(toks, Token{
					ID:        id,
					WordID:    wordID,
					CharStart: runeBase + w.start + w.normToOrig[j],
					CharEnd:   endOffset(j + 1),
				})
			}
			continue
		}

		parts, ok := wordpieceMatch(w.norm, in.store)
		if !ok {
			if hasUnk {
				toks = append(toks, Token{
					ID:        unkID,
					WordID:    wordID,
					CharStart: runeBase + w.start,
					CharEnd:   runeBase + w.end,
				})
			}
			continue
		}
		for _, p := range parts {
			toks = append(toks, Token{
				ID:        p.id,
				WordID:    wordID,
				CharStart: runeBase + w.start + w.normToOrig[p.normStart],
				CharEnd:   endOffset(p.normEnd),
			})
		}
	}

	return toks, len(words), nil
}

// decodeWordLevel joins tokens with spaces, gluing ## continuations to the
// previous token. A skipped special token still consumes its position, so a
// continuation never glues across the gap it leaves.
func (in *Instance) decodeWordLevel(ids []int, includeSpecial bool) []byte {
	var sb strings.Builder
	gap := false

	for _, id := range ids {
		if !includeSpecial && in.store.IsSpecial(id) {
			gap = sb.Len() > 0
			continue
		}
		text, _ := in.store.Text(id)

		if rest, ok := strings.CutPrefix(text, "##"); ok && sb.Len() > 0 && !gap {
			sb.WriteString(rest)
			continue
		}
		if sb.Len() > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(strings.TrimPrefix(text, "##"))
		gap = false
	}

	return []byte(sb.String())
}
