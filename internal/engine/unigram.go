package engine

import (
	"bytes"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/example/go-tokkit/internal/artifact"
	"github.com/example/go-tokkit/internal/utf"
)

// spaceMarker is the SentencePiece whitespace symbol.
const spaceMarker = '▁'

// unknownScorePenalty is subtracted from the lowest piece score for the
// single-rune unknown fallback edge, matching the SentencePiece default of
// keeping unknowns strictly worse than any real segmentation.
const unknownScorePenalty = 10.0

// rebuildUnigramTables derives the Viterbi lookup tables from the loaded
// model: segmentable pieces by text (specials excluded; they are matched
// atomically before segmentation or not at all), the unknown piece ID and
// the score floor.
func (in *Instance) rebuildUnigramTables() {
	in.pieceIDs = make(map[string]int)
	in.maxPieceRunes = 0
	in.unkID = -1
	in.minScore = 0

	if in.model == nil {
		return
	}

	for id, p := range in.model.Pieces {
		if float64(p.Score) < in.minScore {
			in.minScore = float64(p.Score)
		}
		switch p.Type {
		case artifact.PieceUnknown:
			if in.unkID < 0 {
				in.unkID = id
			}
			continue
		case artifact.PieceControl, artifact.PieceUserDefined, artifact.PieceUnused:
			continue
		}

		in.pieceIDs[p.Text] = id
		if n := utf8.RuneCountInString(p.Text); n > in.maxPieceRunes {
			in.maxPieceRunes = n
		}
	}
}

// encodeUnigram runs the SentencePiece unigram Viterbi over one plain
// segment: spaces become the ▁ marker, a dummy ▁ prefix is prepended, and
// the maximum-score piece cover is selected.
func (in *Instance) encodeUnigram(seg string) ([]Token, error) {
	if seg == "" {
		return nil, nil
	}

	runes, err := utf.DecodeString(seg)
	if err != nil {
		return nil, fmt.Errorf("%w: encode input: %v", ErrFormat, err)
	}

	normRunes := make([]rune, 0, len(runes)+1)
	normRunes = append(normRunes, spaceMarker)
	for _, r := range runes {
		if r == ' ' {
			normRunes = append(normRunes, spaceMarker)
		} else {
			normRunes = append(normRunes, r)
		}
	}

	n := len(normRunes)
	unkScore := in.minScore - unknownScorePenalty

	best := make([]float64, n+1)
	prev := make([]int, n+1)
	piece := make([]int, n+1)
	for i := 1; i <= n; i++ {
		best[i] = math.Inf(-1)
		prev[i] = -1
	}

	for i := 0; i < n; i++ {
		if math.IsInf(best[i], -1) {
			continue
		}

		limit := in.maxPieceRunes
		if n-i < limit {
			limit = n - i
		}
		for l := 1; l <= limit; l++ {
			id, ok := in.pieceIDs[string(normRunes[i:i+l])]
			if !ok {
				continue
			}
			if score := best[i] + float64(in.model.Pieces[id].Score); score > best[i+l] {
				best[i+l] = score
				prev[i+l] = i
				piece[i+l] = id
			}
		}

		// Unknown single-rune fallback keeps the lattice connected.
		if in.unkID >= 0 {
			if score := best[i] + unkScore; score > best[i+1] {
				best[i+1] = score
				prev[i+1] = i
				piece[i+1] = in.unkID
			}
		}
	}

	if math.IsInf(best[n], -1) {
		return nil, fmt.Errorf("%w: input not segmentable and model has no unknown piece", ErrInvalidState)
	}

	var ids []int
	for end := n; end > 0; end = prev[end] {
		ids = append(ids, piece[end])
	}

	toks := make([]Token, len(ids))
	for i := range ids {
		toks[i] = Token{ID: ids[len(ids)-1-i]}
	}
	return toks, nil
}

// decodeUnigram concatenates piece texts, turning the ▁ marker back into
// spaces and expanding <0xNN> byte-fallback pieces into raw bytes. The
// dummy-prefix space is stripped.
func (in *Instance) decodeUnigram(ids []int, includeSpecial bool) []byte {
	var buf bytes.Buffer

	for _, id := range ids {
		if !includeSpecial && in.store.IsSpecial(id) {
			continue
		}
		text, _ := in.store.Text(id)

		if in.model != nil && id < len(in.model.Pieces) && in.model.Pieces[id].Type == artifact.PieceByte {
			if b, ok := byteFallback(text); ok {
				buf.WriteByte(b)
				continue
			}
		}
		buf.WriteString(text)
	}

	out := strings.ReplaceAll(buf.String(), string(spaceMarker), " ")
	out = strings.TrimPrefix(out, " ")
	return []byte(out)
}

// byteFallback parses a SentencePiece byte piece of the form <0xNN>.
func byteFallback(text string) (byte, bool) {
	if len(text) != 6 || !strings.HasPrefix(text, "<0x") || text[5] != '>' {
		return 0, false
	}
	v, err := strconv.ParseUint(text[3:5], 16, 8)
	if err != nil {
		return 0, false
	}
	return byte(v), true
}
