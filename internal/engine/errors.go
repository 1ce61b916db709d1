package engine

import "errors"

// Failure taxonomy. Every operation reports its outcome through one of
// these sentinels (wrapped with context); callers classify with errors.Is.
// The engine never logs and never retries; surfacing the failure is the
// caller's concern.
var (
	// ErrInvalidArgument covers bad schemes, token IDs outside the
	// vocabulary range and codepoints outside the scalar range.
	ErrInvalidArgument = errors.New("tokenizer: invalid argument")

	// ErrIO covers unreadable artifact files.
	ErrIO = errors.New("tokenizer: artifact unreadable")

	// ErrFormat covers artifact content that does not parse per its kind's
	// schema, and invalid UTF-8 input where conversion is required.
	ErrFormat = errors.New("tokenizer: malformed content")

	// ErrUnsupportedForScheme covers operations and artifact kinds not
	// applicable to the instance's scheme.
	ErrUnsupportedForScheme = errors.New("tokenizer: not supported for scheme")

	// ErrInvalidState covers operations that require a prior successful
	// step (load before encode, encode before token accessors, decode
	// before text accessors) and any call on a closed instance.
	ErrInvalidState = errors.New("tokenizer: invalid state")
)
