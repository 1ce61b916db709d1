package artifact

import (
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protowire"
)

// PieceType mirrors the SentencePiece ModelProto piece type enum.
type PieceType int

const (
	PieceNormal      PieceType = 1
	PieceUnknown     PieceType = 2
	PieceControl     PieceType = 3
	PieceUserDefined PieceType = 4
	PieceUnused      PieceType = 5
	PieceByte        PieceType = 6
)

// Piece is one vocabulary entry of a SentencePiece model. The slice index in
// Model.Pieces is the token ID.
type Piece struct {
	Text  string
	Score float32
	Type  PieceType
}

// Model holds the parsed subset of a SentencePiece ModelProto the unigram
// engine needs: the pieces with their scores and types.
type Model struct {
	Pieces []Piece
}

// Proto field numbers, from sentencepiece_model.proto.
const (
	fieldModelPieces = 1
	fieldPieceText   = 1
	fieldPieceScore  = 2
	fieldPieceType   = 3
)

// ParseSentencePieceModel walks the protobuf wire format of a serialized
// ModelProto directly, without generated code. Unknown fields (normalizer
// spec, trainer spec, ...) are skipped.
func ParseSentencePieceModel(data []byte) (*Model, error) {
	model := &Model{}

	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return nil, fmt.Errorf("%w: sentencepiece model: bad tag", ErrMalformed)
		}
		data = data[n:]

		if num == fieldModelPieces && typ == protowire.BytesType {
			msg, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return nil, fmt.Errorf("%w: sentencepiece model: truncated piece message", ErrMalformed)
			}
			data = data[n:]

			piece, err := parsePiece(msg)
			if err != nil {
				return nil, err
			}
			model.Pieces = append(model.Pieces, piece)
			continue
		}

		n = protowire.ConsumeFieldValue(num, typ, data)
		if n < 0 {
			return nil, fmt.Errorf("%w: sentencepiece model: truncated field %d", ErrMalformed, num)
		}
		data = data[n:]
	}

	if len(model.Pieces) == 0 {
		return nil, fmt.Errorf("%w: sentencepiece model contains no pieces", ErrMalformed)
	}
	return model, nil
}

func parsePiece(msg []byte) (Piece, error) {
	piece := Piece{Type: PieceNormal}

	for len(msg) > 0 {
		num, typ, n := protowire.ConsumeTag(msg)
		if n < 0 {
			return Piece{}, fmt.Errorf("%w: sentencepiece piece: bad tag", ErrMalformed)
		}
		msg = msg[n:]

		switch {
		case num == fieldPieceText && typ == protowire.BytesType:
			b, n := protowire.ConsumeBytes(msg)
			if n < 0 {
				return Piece{}, fmt.Errorf("%w: sentencepiece piece: truncated text", ErrMalformed)
			}
			piece.Text = string(b)
			msg = msg[n:]
		case num == fieldPieceScore && typ == protowire.Fixed32Type:
			bits, n := protowire.ConsumeFixed32(msg)
			if n < 0 {
				return Piece{}, fmt.Errorf("%w: sentencepiece piece: truncated score", ErrMalformed)
			}
			piece.Score = math.Float32frombits(bits)
			msg = msg[n:]
		case num == fieldPieceType && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(msg)
			if n < 0 {
				return Piece{}, fmt.Errorf("%w: sentencepiece piece: truncated type", ErrMalformed)
			}
			piece.Type = PieceType(v)
			msg = msg[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, msg)
			if n < 0 {
				return Piece{}, fmt.Errorf("%w: sentencepiece piece: truncated field %d", ErrMalformed, num)
			}
			msg = msg[n:]
		}
	}

	return piece, nil
}
