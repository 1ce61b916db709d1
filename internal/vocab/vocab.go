// Package vocab implements the token-ID ↔ token-text store shared by every
// tokenizer scheme. Growth is append-only: entries are never removed and IDs
// are never reused within one store.
package vocab

import "sort"

type entry struct {
	text    string
	present bool
	special bool
}

// Store is a bidirectional token mapping. Lookup by ID is O(1); reverse
// lookup resolves duplicate text to the most recently added entry, so special
// tokens added later shadow ordinary vocabulary entries with the same text.
// A Store is not safe for concurrent mutation.
type Store struct {
	entries []entry
	reverse map[string]int
	// reversePlain tracks non-special entries only, so segmentation can
	// look up text without resolving to a special token.
	reversePlain map[string]int
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		reverse:      make(map[string]int),
		reversePlain: make(map[string]int),
	}
}

// Set assigns text to the given ID, growing the store as needed. IDs may be
// sparse; unassigned slots in between stay absent.
func (s *Store) Set(id int, text string, special bool) {
	if id < 0 {
		return
	}
	for len(s.entries) <= id {
		s.entries = append(s.entries, entry{})
	}
	s.entries[id] = entry{text: text, present: true, special: special}
	s.reverse[text] = id
	if !special {
		s.reversePlain[text] = id
	}
}

// Append adds text under the next free ID and returns that ID.
func (s *Store) Append(text string, special bool) int {
	id := len(s.entries)
	s.Set(id, text, special)
	return id
}

// Size returns the ID range of the store: one past the highest assigned ID.
func (s *Store) Size() int {
	return len(s.entries)
}

// Text returns the token text for an ID, and whether the ID is assigned.
func (s *Store) Text(id int) (string, bool) {
	if id < 0 || id >= len(s.entries) || !s.entries[id].present {
		return "", false
	}
	return s.entries[id].text, true
}

// ID returns the token ID for a text. With duplicate text the most recently
// added entry wins.
func (s *Store) ID(text string) (int, bool) {
	id, ok := s.reverse[text]
	return id, ok
}

// NonSpecialID returns the token ID for a text, considering only non-special
// entries. Normal segmentation resolves through this lookup so text that
// happens to equal a special token's string is never emitted as that special.
func (s *Store) NonSpecialID(text string) (int, bool) {
	id, ok := s.reversePlain[text]
	return id, ok
}

// IsSpecial reports whether the ID is assigned and flagged special.
func (s *Store) IsSpecial(id int) bool {
	if id < 0 || id >= len(s.entries) {
		return false
	}
	return s.entries[id].present && s.entries[id].special
}

// SpecialTexts returns the distinct texts of all special entries, longest
// first, which is the order the greedy special-token matcher probes them in.
func (s *Store) SpecialTexts() []string {
	seen := make(map[string]bool)
	var out []string
	for _, e := range s.entries {
		if !e.present || !e.special || seen[e.text] {
			continue
		}
		seen[e.text] = true
		out = append(out, e.text)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return len(out[i]) > len(out[j])
	})
	return out
}
