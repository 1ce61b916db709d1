package artifact

import (
	"fmt"
	"strings"
)

// MergePair is one BPE merge rule. Rank is implied by position in the
// parsed slice: earlier pairs merge first.
type MergePair struct {
	Left  string
	Right string
}

// ParseMerges parses a merges.txt file: an optional "#version" header
// followed by one space-separated symbol pair per line.
func ParseMerges(data []byte) ([]MergePair, error) {
	raw := strings.ReplaceAll(string(data), "\r\n", "\n")
	lines := strings.Split(raw, "\n")

	var pairs []MergePair
	for i, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Split(line, " ")
		if len(fields) != 2 || fields[0] == "" || fields[1] == "" {
			return nil, fmt.Errorf("%w: merges line %d: want exactly two symbols, got %q", ErrMalformed, i+1, line)
		}
		pairs = append(pairs, MergePair{Left: fields[0], Right: fields[1]})
	}

	if len(pairs) == 0 {
		return nil, fmt.Errorf("%w: merges file contains no rules", ErrMalformed)
	}
	return pairs, nil
}

// RankMap converts merge pairs to the "left right" → rank lookup the BPE
// merge loop uses.
func RankMap(pairs []MergePair) map[string]int {
	ranks := make(map[string]int, len(pairs))
	for i, p := range pairs {
		key := p.Left + " " + p.Right
		if _, ok := ranks[key]; !ok {
			ranks[key] = i
		}
	}
	return ranks
}
