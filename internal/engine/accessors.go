package engine

import "fmt"

// The accessor methods read the buffered result of the most recent Encode or
// Decode. Returned slices are fresh copies, so they stay valid across later
// calls on the instance.

func (in *Instance) requireEncoded() (*Encoding, error) {
	if in.closed {
		return nil, fmt.Errorf("%w: instance closed", ErrInvalidState)
	}
	if in.encoded == nil {
		return nil, fmt.Errorf("%w: no successful encode on this instance", ErrInvalidState)
	}
	return in.encoded, nil
}

func (in *Instance) requireAligned() (*Encoding, error) {
	enc, err := in.requireEncoded()
	if err != nil {
		return nil, err
	}
	if !enc.Aligned {
		return nil, fmt.Errorf("%w: scheme %s does not track word IDs or char spans", ErrUnsupportedForScheme, in.scheme)
	}
	return enc, nil
}

// TokenCount returns the number of tokens in the buffered encode result.
func (in *Instance) TokenCount() (int, error) {
	enc, err := in.requireEncoded()
	if err != nil {
		return 0, err
	}
	return len(enc.Tokens), nil
}

// TokenIDs returns the token IDs of the buffered encode result.
func (in *Instance) TokenIDs() ([]int, error) {
	enc, err := in.requireEncoded()
	if err != nil {
		return nil, err
	}
	out := make([]int, len(enc.Tokens))
	for i, t := range enc.Tokens {
		out[i] = t.ID
	}
	return out, nil
}

// WordIDs returns per-token source word indices. Fails with
// ErrUnsupportedForScheme when the scheme does not track alignment.
func (in *Instance) WordIDs() ([]int, error) {
	enc, err := in.requireAligned()
	if err != nil {
		return nil, err
	}
	out := make([]int, len(enc.Tokens))
	for i, t := range enc.Tokens {
		out[i] = t.WordID
	}
	return out, nil
}

// CharStarts returns per-token codepoint start offsets into the encoded
// input.
func (in *Instance) CharStarts() ([]int, error) {
	enc, err := in.requireAligned()
	if err != nil {
		return nil, err
	}
	out := make([]int, len(enc.Tokens))
	for i, t := range enc.Tokens {
		out[i] = t.CharStart
	}
	return out, nil
}

// CharEnds returns per-token codepoint end offsets into the encoded input.
func (in *Instance) CharEnds() ([]int, error) {
	enc, err := in.requireAligned()
	if err != nil {
		return nil, err
	}
	out := make([]int, len(enc.Tokens))
	for i, t := range enc.Tokens {
		out[i] = t.CharEnd
	}
	return out, nil
}

func (in *Instance) requireDecoded() ([]byte, error) {
	if in.closed {
		return nil, fmt.Errorf("%w: instance closed", ErrInvalidState)
	}
	if in.decoded == nil {
		return nil, fmt.Errorf("%w: no successful decode on this instance", ErrInvalidState)
	}
	return in.decoded, nil
}

// TextLength returns the byte length of the buffered decode result,
// including the NUL terminator.
func (in *Instance) TextLength() (int, error) {
	buf, err := in.requireDecoded()
	if err != nil {
		return 0, err
	}
	return len(buf), nil
}

// Text returns the buffered decode result without its NUL terminator.
func (in *Instance) Text() (string, error) {
	buf, err := in.requireDecoded()
	if err != nil {
		return "", err
	}
	return string(buf[:len(buf)-1]), nil
}

// VocabSize returns the vocabulary ID range: one past the highest assigned
// token ID.
func (in *Instance) VocabSize() (int, error) {
	if in.closed {
		return 0, fmt.Errorf("%w: instance closed", ErrInvalidState)
	}
	return in.store.Size(), nil
}

// VocabText returns the token text for an ID.
func (in *Instance) VocabText(id int) (string, error) {
	if in.closed {
		return "", fmt.Errorf("%w: instance closed", ErrInvalidState)
	}
	text, ok := in.store.Text(id)
	if !ok {
		return "", fmt.Errorf("%w: token ID %d not assigned", ErrInvalidArgument, id)
	}
	return text, nil
}

// AddSpecialTokens appends each text as a new special vocabulary entry with
// a freshly assigned ID and returns the IDs in input order. Duplicate texts
// receive distinct IDs. Only the Roberta and GPT-2 scheme families accept
// dynamic special tokens.
func (in *Instance) AddSpecialTokens(texts []string) ([]int, error) {
	if in.closed {
		return nil, fmt.Errorf("%w: instance closed", ErrInvalidState)
	}
	if !in.scheme.supportsDynamicSpecials() {
		return nil, fmt.Errorf("%w: scheme %s does not support dynamic special tokens", ErrUnsupportedForScheme, in.scheme)
	}

	ids := make([]int, len(texts))
	for i, text := range texts {
		in.runtimeSpecials = append(in.runtimeSpecials, text)
		ids[i] = in.store.Append(text, true)
	}
	return ids, nil
}
