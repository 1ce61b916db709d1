package engine

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/example/go-tokkit/internal/artifact"
)

// newGpt2Family builds an instance of a byte-level BPE scheme with the tiny
// two-word vocabulary used across these tests.
func newGpt2Family(t *testing.T, scheme Scheme, flags Flags) *Instance {
	t.Helper()
	in, err := New(scheme, flags)
	if err != nil {
		t.Fatalf("New(%v) error = %v", scheme, err)
	}
	t.Cleanup(func() { _ = in.Close() })

	mustLoad(t, in, artifact.KindVocab, `{"hello": 0, "world": 1, "Ġworld": 2}`)
	mustLoad(t, in, artifact.KindMerges, "#version: 0.2\nh e\nl l\n")
	return in
}

func mustLoad(t *testing.T, in *Instance, kind artifact.Kind, content string) {
	t.Helper()
	if err := in.LoadArtifactBytes(kind, []byte(content)); err != nil {
		t.Fatalf("LoadArtifactBytes(%s) error = %v", kind, err)
	}
}

func TestNew_AllSchemes(t *testing.T) {
	for _, scheme := range Schemes() {
		in, err := New(scheme, 0)
		if err != nil {
			t.Errorf("New(%v) error = %v", scheme, err)
			continue
		}
		if got := in.Scheme(); got != scheme {
			t.Errorf("Scheme() = %v; want %v", got, scheme)
		}
		if err := in.Close(); err != nil {
			t.Errorf("Close() after New(%v) error = %v", scheme, err)
		}
	}
}

func TestNew_InvalidScheme(t *testing.T) {
	for _, s := range []Scheme{-1, schemeCount, 99} {
		if _, err := New(s, 0); !errors.Is(err, ErrInvalidArgument) {
			t.Errorf("New(%d) error = %v; want ErrInvalidArgument", int(s), err)
		}
	}
}

func TestNew_FlagsStoredVerbatim(t *testing.T) {
	// Undefined bits are stored, not validated.
	in, err := New(SchemeGpt2, FlagUTF8Safe|Flags(1<<7))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer func() { _ = in.Close() }()

	if got := in.Flags(); got != FlagUTF8Safe|Flags(1<<7) {
		t.Errorf("Flags() = %#x", got)
	}
}

func TestClose_AllCallsFailAfterwards(t *testing.T) {
	in, err := New(SchemeGpt2, 0)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := in.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	if err := in.Close(); !errors.Is(err, ErrInvalidState) {
		t.Errorf("second Close() error = %v; want ErrInvalidState", err)
	}
	if _, err := in.Encode("x", false); !errors.Is(err, ErrInvalidState) {
		t.Errorf("Encode after Close error = %v; want ErrInvalidState", err)
	}
	if _, err := in.Decode([]int{0}, false); !errors.Is(err, ErrInvalidState) {
		t.Errorf("Decode after Close error = %v; want ErrInvalidState", err)
	}
	if err := in.LoadArtifactBytes(artifact.KindVocab, []byte("{}")); !errors.Is(err, ErrInvalidState) {
		t.Errorf("LoadArtifactBytes after Close error = %v; want ErrInvalidState", err)
	}
	if _, err := in.VocabSize(); !errors.Is(err, ErrInvalidState) {
		t.Errorf("VocabSize after Close error = %v; want ErrInvalidState", err)
	}
	if _, err := in.AddSpecialTokens([]string{"<x>"}); !errors.Is(err, ErrInvalidState) {
		t.Errorf("AddSpecialTokens after Close error = %v; want ErrInvalidState", err)
	}
}

func TestLoadArtifact_KindNotAcceptedByScheme(t *testing.T) {
	tests := []struct {
		scheme Scheme
		kind   artifact.Kind
	}{
		{SchemeGpt2, artifact.KindModel},
		{SchemeGpt2, artifact.KindDictionary},
		{SchemeBert, artifact.KindMerges},
		{SchemeXlmRoberta, artifact.KindVocab},
		{SchemeClip, artifact.KindVocab},
		{SchemeBertJapaneseWordpiece, artifact.KindConfig},
	}
	for _, tt := range tests {
		in, err := New(tt.scheme, 0)
		if err != nil {
			t.Fatalf("New(%v) error = %v", tt.scheme, err)
		}
		if err := in.LoadArtifactBytes(tt.kind, []byte("x")); !errors.Is(err, ErrUnsupportedForScheme) {
			t.Errorf("%v.Load(%s) error = %v; want ErrUnsupportedForScheme", tt.scheme, tt.kind, err)
		}
		_ = in.Close()
	}
}

func TestLoadArtifactFile_Unreadable(t *testing.T) {
	in, err := New(SchemeGpt2, 0)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer func() { _ = in.Close() }()

	err = in.LoadArtifactFile(artifact.KindVocab, filepath.Join(t.TempDir(), "missing.json"))
	if !errors.Is(err, ErrIO) {
		t.Errorf("LoadArtifactFile(missing) error = %v; want ErrIO", err)
	}
}

func TestLoadArtifactFile_RoundTripThroughDisk(t *testing.T) {
	dir := t.TempDir()
	vocabPath := filepath.Join(dir, "vocab.json")
	if err := os.WriteFile(vocabPath, []byte(`{"hello": 0}`), 0o600); err != nil {
		t.Fatal(err)
	}

	in, err := New(SchemeGpt2, 0)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer func() { _ = in.Close() }()

	if err := in.LoadArtifactFile(artifact.KindVocab, vocabPath); err != nil {
		t.Fatalf("LoadArtifactFile() error = %v", err)
	}
	size, err := in.VocabSize()
	if err != nil {
		t.Fatalf("VocabSize() error = %v", err)
	}
	if size != 1 {
		t.Errorf("VocabSize() = %d; want 1", size)
	}
}

func TestLoadArtifact_MalformedContent(t *testing.T) {
	in, err := New(SchemeGpt2, 0)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer func() { _ = in.Close() }()

	if err := in.LoadArtifactBytes(artifact.KindVocab, []byte("not json")); !errors.Is(err, ErrFormat) {
		t.Errorf("malformed vocab error = %v; want ErrFormat", err)
	}
}

func TestLoadArtifact_FailureKeepsPriorArtifacts(t *testing.T) {
	in := newGpt2Family(t, SchemeGpt2, 0)

	if err := in.LoadArtifactBytes(artifact.KindMerges, []byte("a b c\n")); !errors.Is(err, ErrFormat) {
		t.Fatalf("malformed merges error = %v; want ErrFormat", err)
	}

	// Prior vocab and merges still serve encode.
	enc, err := in.Encode("hello", false)
	if err != nil {
		t.Fatalf("Encode after failed reload error = %v", err)
	}
	if len(enc.Tokens) != 1 || enc.Tokens[0].ID != 0 {
		t.Errorf("Encode() = %+v; want single token 0", enc.Tokens)
	}
}

func TestLoadArtifact_ReloadReplacesAndIsIdempotent(t *testing.T) {
	in := newGpt2Family(t, SchemeGpt2, 0)

	before, err := in.Encode("hello world", false)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	// Loading identical content again must not change behavior.
	mustLoad(t, in, artifact.KindVocab, `{"hello": 0, "world": 1, "Ġworld": 2}`)
	after, err := in.Encode("hello world", false)
	if err != nil {
		t.Fatalf("Encode() after reload error = %v", err)
	}
	if len(before.Tokens) != len(after.Tokens) {
		t.Fatalf("token counts differ after idempotent reload: %d vs %d", len(before.Tokens), len(after.Tokens))
	}
	for i := range before.Tokens {
		if before.Tokens[i].ID != after.Tokens[i].ID {
			t.Errorf("token[%d] = %d after reload; want %d", i, after.Tokens[i].ID, before.Tokens[i].ID)
		}
	}

	// A replacement vocab takes effect for subsequent calls.
	mustLoad(t, in, artifact.KindVocab, `{"hello": 5}`)
	enc, err := in.Encode("hello", false)
	if err != nil {
		t.Fatalf("Encode() after replacement error = %v", err)
	}
	if len(enc.Tokens) != 1 || enc.Tokens[0].ID != 5 {
		t.Errorf("Encode() after replacement = %+v; want single token 5", enc.Tokens)
	}
}

func TestEncode_BeforeArtifacts(t *testing.T) {
	for _, scheme := range Schemes() {
		in, err := New(scheme, 0)
		if err != nil {
			t.Fatalf("New(%v) error = %v", scheme, err)
		}
		if _, err := in.Encode("hello", false); !errors.Is(err, ErrInvalidState) {
			t.Errorf("%v: Encode before artifacts error = %v; want ErrInvalidState", scheme, err)
		}
		if _, err := in.Decode([]int{0}, false); !errors.Is(err, ErrInvalidState) {
			t.Errorf("%v: Decode before artifacts error = %v; want ErrInvalidState", scheme, err)
		}
		_ = in.Close()
	}
}

func TestAccessors_BeforeAnyEncodeOrDecode(t *testing.T) {
	in := newGpt2Family(t, SchemeGpt2, 0)

	if _, err := in.TokenCount(); !errors.Is(err, ErrInvalidState) {
		t.Errorf("TokenCount error = %v; want ErrInvalidState", err)
	}
	if _, err := in.TokenIDs(); !errors.Is(err, ErrInvalidState) {
		t.Errorf("TokenIDs error = %v; want ErrInvalidState", err)
	}
	if _, err := in.TextLength(); !errors.Is(err, ErrInvalidState) {
		t.Errorf("TextLength error = %v; want ErrInvalidState", err)
	}
	if _, err := in.Text(); !errors.Is(err, ErrInvalidState) {
		t.Errorf("Text error = %v; want ErrInvalidState", err)
	}
}

func TestAccessors_AlignmentUnsupportedForScheme(t *testing.T) {
	in := newGpt2Family(t, SchemeGpt2, 0)

	if _, err := in.Encode("hello", false); err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	if _, err := in.WordIDs(); !errors.Is(err, ErrUnsupportedForScheme) {
		t.Errorf("WordIDs on gpt2 error = %v; want ErrUnsupportedForScheme", err)
	}
	if _, err := in.CharStarts(); !errors.Is(err, ErrUnsupportedForScheme) {
		t.Errorf("CharStarts on gpt2 error = %v; want ErrUnsupportedForScheme", err)
	}
	if _, err := in.CharEnds(); !errors.Is(err, ErrUnsupportedForScheme) {
		t.Errorf("CharEnds on gpt2 error = %v; want ErrUnsupportedForScheme", err)
	}
}

func TestDecode_OutOfRangeLeavesBufferIntact(t *testing.T) {
	in := newGpt2Family(t, SchemeGpt2, 0)

	if _, err := in.Decode([]int{0}, false); err != nil {
		t.Fatalf("Decode() error = %v", err)
	}

	if _, err := in.Decode([]int{999999}, false); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("Decode(out of range) error = %v; want ErrInvalidArgument", err)
	}
	if _, err := in.Decode([]int{-1}, false); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("Decode(-1) error = %v; want ErrInvalidArgument", err)
	}

	text, err := in.Text()
	if err != nil {
		t.Fatalf("Text() error = %v", err)
	}
	if text != "hello" {
		t.Errorf("buffered text after failed decode = %q; want %q", text, "hello")
	}
}

func TestDecode_TextLengthIncludesTerminator(t *testing.T) {
	in := newGpt2Family(t, SchemeGpt2, 0)

	if _, err := in.Decode([]int{0, 2}, false); err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	n, err := in.TextLength()
	if err != nil {
		t.Fatalf("TextLength() error = %v", err)
	}
	if want := len("hello world") + 1; n != want {
		t.Errorf("TextLength() = %d; want %d", n, want)
	}
	text, err := in.Text()
	if err != nil {
		t.Fatalf("Text() error = %v", err)
	}
	if text != "hello world" {
		t.Errorf("Text() = %q; want %q", text, "hello world")
	}
}

func TestVocabAccessors(t *testing.T) {
	in := newGpt2Family(t, SchemeGpt2, 0)

	size, err := in.VocabSize()
	if err != nil {
		t.Fatalf("VocabSize() error = %v", err)
	}
	if size != 3 {
		t.Errorf("VocabSize() = %d; want 3", size)
	}

	text, err := in.VocabText(1)
	if err != nil {
		t.Fatalf("VocabText(1) error = %v", err)
	}
	if text != "world" {
		t.Errorf("VocabText(1) = %q; want %q", text, "world")
	}

	if _, err := in.VocabText(3); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("VocabText(3) error = %v; want ErrInvalidArgument", err)
	}
	if _, err := in.VocabText(-1); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("VocabText(-1) error = %v; want ErrInvalidArgument", err)
	}
}

func TestAddSpecialTokens(t *testing.T) {
	in := newGpt2Family(t, SchemeRoberta, 0)

	before, err := in.VocabSize()
	if err != nil {
		t.Fatalf("VocabSize() error = %v", err)
	}

	ids, err := in.AddSpecialTokens([]string{"<pad>", "<eos>"})
	if err != nil {
		t.Fatalf("AddSpecialTokens() error = %v", err)
	}
	if len(ids) != 2 || ids[1] != ids[0]+1 {
		t.Errorf("AddSpecialTokens() = %v; want two strictly increasing IDs", ids)
	}

	after, err := in.VocabSize()
	if err != nil {
		t.Fatalf("VocabSize() error = %v", err)
	}
	if after != before+2 {
		t.Errorf("VocabSize() grew by %d; want 2", after-before)
	}

	// Duplicate text mints a fresh ID.
	dup, err := in.AddSpecialTokens([]string{"<pad>"})
	if err != nil {
		t.Fatalf("AddSpecialTokens(duplicate) error = %v", err)
	}
	if dup[0] == ids[0] {
		t.Errorf("duplicate <pad> reused ID %d; want a fresh one", dup[0])
	}
}

func TestAddSpecialTokens_UnsupportedSchemes(t *testing.T) {
	for _, scheme := range []Scheme{SchemeBert, SchemeClip, SchemeXlmRoberta, SchemeMarian, SchemeT5, SchemeLlama, SchemeBertJapaneseWordpiece, SchemeBertJapaneseCharacter} {
		in, err := New(scheme, 0)
		if err != nil {
			t.Fatalf("New(%v) error = %v", scheme, err)
		}
		if _, err := in.AddSpecialTokens([]string{"<pad>"}); !errors.Is(err, ErrUnsupportedForScheme) {
			t.Errorf("%v: AddSpecialTokens error = %v; want ErrUnsupportedForScheme", scheme, err)
		}
		_ = in.Close()
	}
}

func TestAddSpecialTokens_SurviveArtifactReload(t *testing.T) {
	in := newGpt2Family(t, SchemeGpt2, 0)

	ids, err := in.AddSpecialTokens([]string{"<eos>"})
	if err != nil {
		t.Fatalf("AddSpecialTokens() error = %v", err)
	}

	mustLoad(t, in, artifact.KindVocab, `{"hello": 0, "world": 1, "Ġworld": 2}`)

	text, err := in.VocabText(ids[0])
	if err != nil {
		t.Fatalf("VocabText(%d) after reload error = %v", ids[0], err)
	}
	if text != "<eos>" {
		t.Errorf("VocabText(%d) = %q; want %q", ids[0], text, "<eos>")
	}
}
