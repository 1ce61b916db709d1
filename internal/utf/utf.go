// Package utf implements single-scalar UTF-8 ↔ UTF-32 conversion with
// explicit consumed/produced byte counts. Unlike the unicode/utf8 helpers
// it reports malformed input as an error instead of substituting U+FFFD,
// which the engine needs to distinguish bad artifacts from bad arguments.
package utf

import (
	"errors"
	"fmt"
)

// MaxScalar is the highest valid Unicode scalar value.
const MaxScalar = 0x10FFFF

// ErrInvalidSequence is returned when a byte slice does not start with a
// well-formed UTF-8 encoding of a single scalar value.
var ErrInvalidSequence = errors.New("utf: invalid UTF-8 sequence")

// ErrInvalidScalar is returned when a codepoint is outside the Unicode
// scalar range (surrogates, negative, or above U+10FFFF).
var ErrInvalidScalar = errors.New("utf: invalid scalar value")

// DecodeScalar decodes one UTF-8 scalar starting at offset and returns the
// codepoint plus the number of bytes consumed. Overlong encodings, surrogate
// codepoints, truncated sequences and stray continuation bytes are rejected.
func DecodeScalar(b []byte, offset int) (rune, int, error) {
	if offset < 0 || offset >= len(b) {
		return 0, 0, fmt.Errorf("%w: offset %d outside input of %d bytes", ErrInvalidSequence, offset, len(b))
	}

	b0 := b[offset]
	if b0 < 0x80 {
		return rune(b0), 1, nil
	}

	var size int
	var cp rune
	switch {
	case b0 >= 0xC2 && b0 <= 0xDF:
		size = 2
		cp = rune(b0 & 0x1F)
	case b0 >= 0xE0 && b0 <= 0xEF:
		size = 3
		cp = rune(b0 & 0x0F)
	case b0 >= 0xF0 && b0 <= 0xF4:
		size = 4
		cp = rune(b0 & 0x07)
	default:
		// 0x80..0xBF are stray continuations, 0xC0/0xC1 are overlong
		// leads, 0xF5..0xFF exceed the scalar range.
		return 0, 0, fmt.Errorf("%w: invalid leading byte 0x%02X at offset %d", ErrInvalidSequence, b0, offset)
	}

	if offset+size > len(b) {
		return 0, 0, fmt.Errorf("%w: truncated %d-byte sequence at offset %d", ErrInvalidSequence, size, offset)
	}

	for i := 1; i < size; i++ {
		c := b[offset+i]
		if c < 0x80 || c > 0xBF {
			return 0, 0, fmt.Errorf("%w: invalid continuation byte 0x%02X at offset %d", ErrInvalidSequence, c, offset+i)
		}
		cp = cp<<6 | rune(c&0x3F)
	}

	// Reject overlong forms and surrogates that survived the bit math.
	switch size {
	case 2:
		if cp < 0x80 {
			return 0, 0, fmt.Errorf("%w: overlong 2-byte sequence at offset %d", ErrInvalidSequence, offset)
		}
	case 3:
		if cp < 0x800 {
			return 0, 0, fmt.Errorf("%w: overlong 3-byte sequence at offset %d", ErrInvalidSequence, offset)
		}
		if cp >= 0xD800 && cp <= 0xDFFF {
			return 0, 0, fmt.Errorf("%w: surrogate U+%04X at offset %d", ErrInvalidSequence, cp, offset)
		}
	case 4:
		if cp < 0x10000 || cp > MaxScalar {
			return 0, 0, fmt.Errorf("%w: out-of-range 4-byte sequence at offset %d", ErrInvalidSequence, offset)
		}
	}

	return cp, size, nil
}

// EncodeScalar encodes one scalar value into its 1–4 byte UTF-8 form.
func EncodeScalar(cp rune) ([]byte, error) {
	switch {
	case cp < 0:
		return nil, fmt.Errorf("%w: negative codepoint %d", ErrInvalidScalar, cp)
	case cp >= 0xD800 && cp <= 0xDFFF:
		return nil, fmt.Errorf("%w: surrogate U+%04X", ErrInvalidScalar, cp)
	case cp > MaxScalar:
		return nil, fmt.Errorf("%w: codepoint 0x%X above U+10FFFF", ErrInvalidScalar, cp)
	}

	switch {
	case cp < 0x80:
		return []byte{byte(cp)}, nil
	case cp < 0x800:
		return []byte{
			0xC0 | byte(cp>>6),
			0x80 | byte(cp&0x3F),
		}, nil
	case cp < 0x10000:
		return []byte{
			0xE0 | byte(cp>>12),
			0x80 | byte(cp>>6&0x3F),
			0x80 | byte(cp&0x3F),
		}, nil
	default:
		return []byte{
			0xF0 | byte(cp>>18),
			0x80 | byte(cp>>12&0x3F),
			0x80 | byte(cp>>6&0x3F),
			0x80 | byte(cp&0x3F),
		}, nil
	}
}

// DecodeString converts a UTF-8 string into a scalar slice, rejecting
// malformed input. It is the strict counterpart of []rune(s).
func DecodeString(s string) ([]rune, error) {
	b := []byte(s)
	out := make([]rune, 0, len(s))

	for off := 0; off < len(b); {
		cp, size, err := DecodeScalar(b, off)
		if err != nil {
			return nil, err
		}
		out = append(out, cp)
		off += size
	}

	return out, nil
}
