package engine

import (
	"bytes"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/example/go-tokkit/internal/artifact"
	"github.com/example/go-tokkit/internal/vocab"
)

// byteRune is the GPT-2 byte-level mapping: every byte becomes a printable
// rune so arbitrary byte sequences can live in a text vocabulary. Printable
// Latin-1 bytes map to themselves; the rest are shifted into unused BMP
// slots.
var byteRune [256]rune

// runeByte inverts byteRune for decode.
var runeByte map[rune]byte

func init() {
	runeByte = make(map[rune]byte, 256)
	for b := 0; b < 256; b++ {
		r := rune(b)
		switch {
		case r == 0x00AD:
			r = 0x0143
		case r <= 0x0020:
			r += 0x0100
		case r >= 0x007F && r <= 0x00A0:
			r += 0x00A2
		}
		byteRune[b] = r
		runeByte[r] = byte(b)
	}
}

// GPT-2 pretokenizer pattern with the PCRE lookahead and inline
// case-insensitive group rewritten for RE2; the lookahead's whitespace
// boundary behavior is restored by fixWhitespaceBoundaries.
var gpt2Pretokenizer = regexp.MustCompile(
	`(?:'[sS]|'[tT]|'[rR][eE]|'[vV][eE]|'[mM]|'[lL][lL]|'[dD])| ?\p{L}+| ?\p{N}+| ?[^\s\p{L}\p{N}]+|\s+`)

// CLIP pretokenizer; input is lowercased and whitespace-cleaned first.
var clipPretokenizer = regexp.MustCompile(
	`'s|'t|'re|'ve|'m|'ll|'d|\p{L}+|\p{N}|[^\s\p{L}\p{N}]+`)

func isSpaceOnly(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsSpace(r) {
			return false
		}
	}
	return true
}

// pretokenize splits text into chunk byte ranges. Because the RE2-safe
// pattern matches whitespace runs greedily, a run followed by a word keeps
// one trailing space attached to the word, matching the reference pattern's
// negative lookahead.
func pretokenize(re *regexp.Regexp, text string) [][]int {
	matches := re.FindAllStringIndex(text, -1)

	for i := 0; i < len(matches)-1; i++ {
		m := text[matches[i][0]:matches[i][1]]
		if !isSpaceOnly(m) {
			continue
		}
		next := text[matches[i+1][0]:matches[i+1][1]]
		r, _ := utf8.DecodeRuneInString(next)
		if !unicode.IsLetter(r) {
			continue
		}
		_, lastSize := utf8.DecodeLastRuneInString(m)
		cut := matches[i][1] - lastSize
		matches[i][1] = cut
		matches[i+1][0] = cut
	}

	out := matches[:0]
	for _, m := range matches {
		if m[1] > m[0] {
			out = append(out, m)
		}
	}
	return out
}

func whitespaceClean(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// mapBytesToRunes applies the byte-level encoding to a chunk.
func mapBytesToRunes(chunk string) string {
	var sb strings.Builder
	sb.Grow(len(chunk) * 2)
	for i := 0; i < len(chunk); i++ {
		sb.WriteRune(byteRune[chunk[i]])
	}
	return sb.String()
}

// mergeParts repeatedly merges the adjacent pair with the lowest rank until
// no rule applies.
func mergeParts(parts []string, ranks map[string]int) []string {
	for len(parts) > 1 {
		minRank := -1
		minIdx := -1
		for i := 0; i < len(parts)-1; i++ {
			rank, ok := ranks[parts[i]+" "+parts[i+1]]
			if ok && (minRank < 0 || rank < minRank) {
				minRank = rank
				minIdx = i
			}
		}
		if minIdx < 0 {
			break
		}
		parts[minIdx] += parts[minIdx+1]
		parts = append(parts[:minIdx+1], parts[minIdx+2:]...)
	}
	return parts
}

// bpeParts segments one pretokenizer chunk into merged symbol strings.
func (in *Instance) bpeParts(chunk string) []string {
	mapped := mapBytesToRunes(chunk)

	if in.scheme == SchemeClip {
		runes := []rune(mapped)
		parts := make([]string, len(runes))
		for i, r := range runes {
			parts[i] = string(r)
		}
		parts[len(parts)-1] += "</w>"
		return mergeParts(parts, in.mergeRanks)
	}

	// Fast path: the whole chunk is a single non-special vocabulary entry.
	if _, ok := in.store.NonSpecialID(mapped); ok {
		return []string{mapped}
	}

	runes := []rune(mapped)
	parts := make([]string, len(runes))
	for i, r := range runes {
		parts[i] = string(r)
	}
	return mergeParts(parts, in.mergeRanks)
}

// buildByteRuneIndex maps every byte offset of text (inclusive of the end)
// to its codepoint index, for span reporting.
func buildByteRuneIndex(text string) []int {
	idx := make([]int, len(text)+1)
	runeCount := 0
	for off := 0; off < len(text); {
		_, size := utf8.DecodeRuneInString(text[off:])
		if size == 0 {
			size = 1
		}
		for i := 0; i < size; i++ {
			idx[off+i] = runeCount
		}
		off += size
		runeCount++
	}
	idx[len(text)] = runeCount
	return idx
}

// encodeByteBPE tokenizes one plain segment with the byte-level BPE
// algorithm. For aligned schemes each pretokenizer chunk with non-space
// content is one source word; whitespace-only chunks attach to the word
// that follows them. Returns the tokens and the number of words consumed.
func (in *Instance) encodeByteBPE(seg string, runeBase, wordStart int, aligned bool) ([]Token, int) {
	text := seg
	if in.scheme == SchemeClip {
		text = whitespaceClean(strings.ToLower(seg))
	}
	if text == "" {
		return nil, 0
	}

	matches := pretokenize(in.pretok, text)

	var byteRuneIdx []int
	if aligned {
		byteRuneIdx = buildByteRuneIndex(text)
	}

	var toks []Token
	word := wordStart

	for _, m := range matches {
		chunk := text[m[0]:m[1]]
		parts := in.bpeParts(chunk)

		chunkWord := word
		if !isSpaceOnly(chunk) {
			word++
		}

		partStart := m[0]
		for _, part := range parts {
			partBytes := utf8.RuneCountInString(part)
			partEnd := partStart + partBytes

			id, ok := in.store.NonSpecialID(part)
			if ok {
				tok := Token{ID: id}
				if aligned {
					tok.WordID = chunkWord
					tok.CharStart = runeBase + byteRuneIdx[partStart]
					tok.CharEnd = runeBase + byteRuneIdx[partEnd]
				}
				toks = append(toks, tok)
			}
			partStart = partEnd
		}
	}

	return toks, word - wordStart
}

// decodeByteBPE reverses the byte-level mapping. CLIP's end-of-word marker
// becomes a trailing space.
func (in *Instance) decodeByteBPE(ids []int, includeSpecial bool) []byte {
	var buf bytes.Buffer

	for _, id := range ids {
		if !includeSpecial && in.store.IsSpecial(id) {
			continue
		}
		text, _ := in.store.Text(id)

		if in.scheme == SchemeClip {
			if rest, ok := strings.CutSuffix(text, "</w>"); ok {
				writeMappedRunes(&buf, rest)
				buf.WriteByte(' ')
				continue
			}
		}
		writeMappedRunes(&buf, text)
	}

	out := buf.Bytes()
	if in.scheme == SchemeClip {
		out = bytes.TrimRight(out, " ")
	}
	return out
}

func writeMappedRunes(buf *bytes.Buffer, text string) {
	for _, r := range text {
		if b, ok := runeByte[r]; ok {
			buf.WriteByte(b)
		} else {
			buf.WriteRune(r)
		}
	}
}

// buildClipVocab derives the CLIP vocabulary from its merges: the 256 byte
// symbols, their end-of-word forms, one entry per merge rule, then the two
// control tokens.
func buildClipVocab(st *vocab.Store, pairs []artifact.MergePair) {
	id := 0
	for b := 0; b < 256; b++ {
		st.Set(id, string(byteRune[b]), false)
		id++
	}
	for b := 0; b < 256; b++ {
		st.Set(id, string(byteRune[b])+"</w>", false)
		id++
	}
	for _, p := range pairs {
		st.Set(id, p.Left+p.Right, false)
		id++
	}
	st.Set(id, "<|startoftext|>", true)
	st.Set(id+1, "<|endoftext|>", true)
}
