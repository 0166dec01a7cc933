package classifier

import (
	"fmt"

	"github.com/sugarme/tokenizer"
	"github.com/sugarme/tokenizer/pretrained"
)

// Batch is a padded, row-major encoding of Size texts of SeqLen tokens each.
type Batch struct {
	Size          int
	SeqLen        int
	InputIDs      []int64
	AttentionMask []int64
	TypeIDs       []int64
}

type encodedRow struct {
	ids   []int
	mask  []int
	types []int
}

// Encoder turns text into the fixed-shape input the ONNX model consumes:
// each text is truncated to maxLen tokens and the batch is right-padded to
// its longest row.
type Encoder struct {
	tk     *tokenizer.Tokenizer
	maxLen int
	padID  int
}

func NewEncoder(tokenizerPath string, maxLen int) (*Encoder, error) {
	tk, err := pretrained.FromFile(tokenizerPath)
	if err != nil {
		return nil, fmt.Errorf("load tokenizer %s: %w", tokenizerPath, err)
	}

	tk.WithTruncation(&tokenizer.TruncationParams{
		MaxLength: maxLen,
		Strategy:  tokenizer.LongestFirst,
		Stride:    0,
	})

	padID := 0
	if id, ok := tk.TokenToId("[PAD]"); ok {
		padID = id
	}

	return &Encoder{tk: tk, maxLen: maxLen, padID: padID}, nil
}

func (e *Encoder) EncodeBatch(texts []string) (Batch, error) {
	rows := make([]encodedRow, len(texts))
	for i, text := range texts {
		en, err := e.tk.EncodeSingle(text, true)
		if err != nil {
			return Batch{}, fmt.Errorf("encode text %d: %w", i, err)
		}
		rows[i] = clip(encodedRow{ids: en.Ids, mask: en.AttentionMask, types: en.TypeIds}, e.maxLen)
	}
	return padBatch(rows, e.padID), nil
}

// clip enforces maxLen on a row, keeping the trailing special token.
func clip(row encodedRow, maxLen int) encodedRow {
	if maxLen <= 0 || len(row.ids) <= maxLen {
		return row
	}
	cut := func(s []int) []int {
		if len(s) <= maxLen {
			return s
		}
		out := make([]int, 0, maxLen)
		out = append(out, s[:maxLen-1]...)
		return append(out, s[len(s)-1])
	}
	return encodedRow{ids: cut(row.ids), mask: cut(row.mask), types: cut(row.types)}
}

func padBatch(rows []encodedRow, padID int) Batch {
	seqLen := 0
	for _, row := range rows {
		if len(row.ids) > seqLen {
			seqLen = len(row.ids)
		}
	}

	b := Batch{
		Size:          len(rows),
		SeqLen:        seqLen,
		InputIDs:      make([]int64, len(rows)*seqLen),
		AttentionMask: make([]int64, len(rows)*seqLen),
		TypeIDs:       make([]int64, len(rows)*seqLen),
	}

	for i, row := range rows {
		offset := i * seqLen
		for j := 0; j < seqLen; j++ {
			if j >= len(row.ids) {
				b.InputIDs[offset+j] = int64(padID)
				continue
			}
			b.InputIDs[offset+j] = int64(row.ids[j])
			if j < len(row.mask) {
				b.AttentionMask[offset+j] = int64(row.mask[j])
			} else {
				b.AttentionMask[offset+j] = 1
			}
			if j < len(row.types) {
				b.TypeIDs[offset+j] = int64(row.types[j])
			}
		}
	}
	return b
}
