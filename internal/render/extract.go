package render

import (
	"errors"
	"fmt"
	"strings"
)

// ErrEmptyDelimiter is returned by NewDelimiters when either tag is empty.
var ErrEmptyDelimiter = errors.New("script delimiters must be non-empty")

// Delimiters are the literal opening and closing tags of a script block.
// Matching is case-sensitive.
type Delimiters struct {
	Open  string
	Close string
}

// DefaultDelimiters returns the <script>...</script> pair.
func DefaultDelimiters() Delimiters {
	return Delimiters{Open: "<script>", Close: "</script>"}
}

// NewDelimiters validates and returns a delimiter pair.
func NewDelimiters(open, close string) (Delimiters, error) {
	if open == "" || close == "" {
		return Delimiters{}, ErrEmptyDelimiter
	}
	return Delimiters{Open: open, Close: close}, nil
}

// Block is one script region of a document. Start and End are byte offsets
// of the half-open range [Start, End) covering both delimiters.
type Block struct {
	Index int
	Start int
	End   int
	Tag   string
	Code  string

	// ResidualOffset is where the block was elided from the residual markup.
	ResidualOffset int
}

// MalformedBlock reports an opening delimiter with no closing delimiter
// before the end of the document.
type MalformedBlock struct {
	Offset int
	Tag    string
}

func (m *MalformedBlock) Error() string {
	return fmt.Sprintf("unterminated %s at byte %d", m.Tag, m.Offset)
}

// Extraction is the result of scanning a document.
type Extraction struct {
	Delimiters Delimiters
	Blocks     []Block
	Residual   string
	Malformed  *MalformedBlock
}

// Extract scans text left to right for delimited script blocks. The first
// closing delimiter after an opening delimiter ends the block. An
// unterminated opening delimiter is reported and left, with everything after
// it, in the residual markup.
func Extract(text string, d Delimiters) Extraction {
	out := Extraction{Delimiters: d}
	if d.Open == "" || d.Close == "" {
		out.Residual = text
		return out
	}

	var residual strings.Builder
	residual.Grow(len(text))

	pos := 0
	for {
		rel := strings.Index(text[pos:], d.Open)
		if rel < 0 {
			break
		}
		start := pos + rel
		codeStart := start + len(d.Open)

		relClose := strings.Index(text[codeStart:], d.Close)
		if relClose < 0 {
			out.Malformed = &MalformedBlock{Offset: start, Tag: d.Open}
			break
		}
		codeEnd := codeStart + relClose
		end := codeEnd + len(d.Close)

		residual.WriteString(text[pos:start])
		out.Blocks = append(out.Blocks, Block{
			Index:          len(out.Blocks),
			Start:          start,
			End:            end,
			Tag:            d.Open,
			Code:           text[codeStart:codeEnd],
			ResidualOffset: residual.Len(),
		})
		pos = end
	}

	residual.WriteString(text[pos:])
	out.Residual = residual.String()
	return out
}

// Reconstruct puts every block's raw text back into the residual markup,
// yielding the original document.
func (e Extraction) Reconstruct() string {
	var b strings.Builder
	prev := 0
	for _, block := range e.Blocks {
		b.WriteString(e.Residual[prev:block.ResidualOffset])
		b.WriteString(e.Delimiters.Open)
		b.WriteString(block.Code)
		b.WriteString(e.Delimiters.Close)
		prev = block.ResidualOffset
	}
	b.WriteString(e.Residual[prev:])
	return b.String()
}
