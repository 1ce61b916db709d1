package engine

import (
	"strings"
	"unicode/utf8"
)

// segment is a special-token split of the encode input: either a literal
// special-token occurrence or a plain run to hand to the scheme's algorithm.
type segment struct {
	text    string
	special bool
}

// splitSpecials splits text around special-token occurrences. specials must
// be ordered longest first; matching is greedy at each byte position and
// non-overlapping, so the leftmost candidate wins ties.
func splitSpecials(text string, specials []string) []segment {
	if len(specials) == 0 {
		return []segment{{text: text}}
	}

	var segs []segment
	plainStart := 0

	for i := 0; i < len(text); {
		matched := ""
		for _, sp := range specials {
			if sp == "" {
				continue
			}
			if strings.HasPrefix(text[i:], sp) {
				matched = sp
				break
			}
		}

		if matched == "" {
			_, size := utf8.DecodeRuneInString(text[i:])
			if size == 0 {
				size = 1
			}
			i += size
			continue
		}

		if i > plainStart {
			segs = append(segs, segment{text: text[plainStart:i]})
		}
		segs = append(segs, segment{text: matched, special: true})
		i += len(matched)
		plainStart = i
	}

	if plainStart < len(text) {
		segs = append(segs, segment{text: text[plainStart:]})
	}
	return segs
}
