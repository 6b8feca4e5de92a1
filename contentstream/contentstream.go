// Package contentstream parses page content streams into operations that keep
// their byte spans, and interprets the graphics and text state they set up.
package contentstream

import (
	"errors"
	"fmt"
	"io"

	"github.com/wudi/pdfedit/ir/raw"
	"github.com/wudi/pdfedit/scanner"
)

const maxOperands = 1024

var ErrTooManyOperands = errors.New("too many operands")

// Operation is one operator with its operands. Start and End delimit the
// operation in the parsed content, from its first operand to the end of the
// operator keyword.
type Operation struct {
	Operator string
	Operands []raw.Object
	Start    int64
	End      int64
	// Data holds inline image samples for BI operations.
	Data []byte
}

func (op Operation) Number(i int) (float64, bool) {
	if i < 0 || i >= len(op.Operands) {
		return 0, false
	}
	n, ok := op.Operands[i].(raw.NumberObj)
	return n.Float(), ok
}

func (op Operation) Name(i int) (string, bool) {
	if i < 0 || i >= len(op.Operands) {
		return "", false
	}
	n, ok := op.Operands[i].(raw.NameObj)
	return n.Val, ok
}

// Parse splits content into operations. Operands left dangling at the end of
// the stream are dropped.
func Parse(data []byte) ([]Operation, error) {
	cfg := scanner.DefaultConfig()
	cfg.ContentStream = true
	rd := raw.NewReader(scanner.New(data, cfg))

	var (
		ops      []Operation
		operands []raw.Object
		start    int64 = -1
	)
	for {
		tok, err := rd.Next()
		if err == io.EOF {
			return ops, nil
		}
		if err != nil {
			return nil, err
		}
		if tok.Type == scanner.TokenKeyword && isStrayDelimiter(tok.Str) {
			continue
		}
		if start < 0 {
			start = tok.Pos
		}
		if tok.Type == scanner.TokenKeyword {
			op := Operation{Operator: tok.Str, Operands: operands, Start: start, End: tok.End}
			if tok.Str == "BI" {
				if err := readInlineImage(rd, &op); err != nil {
					return nil, err
				}
			}
			ops = append(ops, op)
			operands = nil
			start = -1
			continue
		}
		obj, err := rd.FromToken(tok)
		if err != nil {
			return nil, fmt.Errorf("operand at offset %d: %w", tok.Pos, err)
		}
		if len(operands) >= maxOperands {
			return nil, fmt.Errorf("offset %d: %w", tok.Pos, ErrTooManyOperands)
		}
		operands = append(operands, obj)
	}
}

func isStrayDelimiter(s string) bool {
	switch s {
	case "]", ">>", ">", ")", "{", "}":
		return true
	}
	return false
}

// readInlineImage consumes "key value ... ID <data> EI" after BI.
func readInlineImage(rd *raw.Reader, op *Operation) error {
	dict := raw.Dict()
	for {
		tok, err := rd.Next()
		if err != nil {
			return fmt.Errorf("inline image: %w", err)
		}
		if tok.Type == scanner.TokenInlineImage {
			op.Operands = []raw.Object{dict}
			op.Data = tok.Bytes
			op.End = tok.End
			return nil
		}
		if tok.Type != scanner.TokenName {
			return fmt.Errorf("inline image key at offset %d: %w", tok.Pos, raw.ErrUnexpectedToken)
		}
		val, err := rd.ReadObject()
		if err != nil {
			return fmt.Errorf("inline image /%s: %w", tok.Str, err)
		}
		dict.Set(tok.Str, val)
	}
}
