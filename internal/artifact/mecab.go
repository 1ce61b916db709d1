package artifact

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Dictionary is a Mecab-style segmentation lexicon: surface forms with
// connection costs. Segmentation picks the minimum-cost cover of the input,
// with a fixed penalty for runes unknown to the lexicon.
type Dictionary struct {
	costs    map[string]int
	maxRunes int
}

// ParseDictionary parses a lexicon with one "surface<TAB>cost" entry per
// line. Lines starting with "#" are comments. Duplicate surfaces keep the
// cheapest cost.
func ParseDictionary(data []byte) (*Dictionary, error) {
	raw := strings.ReplaceAll(string(data), "\r\n", "\n")
	dict := &Dictionary{costs: make(map[string]int)}

	for i, line := range strings.Split(raw, "\n") {
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		surface, costStr, ok := strings.Cut(line, "\t")
		if !ok || surface == "" {
			return nil, fmt.Errorf("%w: dictionary line %d: want \"surface<TAB>cost\", got %q", ErrMalformed, i+1, line)
		}
		cost, err := strconv.Atoi(strings.TrimSpace(costStr))
		if err != nil {
			return nil, fmt.Errorf("%w: dictionary line %d: bad cost %q", ErrMalformed, i+1, costStr)
		}

		if prev, exists := dict.costs[surface]; !exists || cost < prev {
			dict.costs[surface] = cost
		}
		if n := utf8.RuneCountInString(surface); n > dict.maxRunes {
			dict.maxRunes = n
		}
	}

	if len(dict.costs) == 0 {
		return nil, fmt.Errorf("%w: dictionary contains no entries", ErrMalformed)
	}
	return dict, nil
}

// Lookup returns the connection cost for a surface form.
func (d *Dictionary) Lookup(surface string) (int, bool) {
	cost, ok := d.costs[surface]
	return cost, ok
}

// MaxSurfaceRunes returns the longest surface form length in runes, bounding
// the lattice lookahead.
func (d *Dictionary) MaxSurfaceRunes() int {
	return d.maxRunes
}

// Len returns the number of lexicon entries.
func (d *Dictionary) Len() int {
	return len(d.costs)
}
