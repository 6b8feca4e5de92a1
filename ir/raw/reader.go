package raw

import (
	"errors"
	"fmt"
	"io"

	"github.com/wudi/pdfedit/scanner"
)

const maxNesting = 256

var ErrUnexpectedToken = errors.New("unexpected token")

// LengthResolver returns the value of an indirect /Length.
type LengthResolver func(ref ObjectRef) (int64, bool)

// Reader turns scanner tokens into objects. It supports one-token pushback,
// which stream detection after a dictionary needs.
type Reader struct {
	s       *scanner.Scanner
	pending []scanner.Token
	Lengths LengthResolver
}

func NewReader(s *scanner.Scanner) *Reader { return &Reader{s: s} }

func (r *Reader) Scanner() *scanner.Scanner { return r.s }

func (r *Reader) Next() (scanner.Token, error) {
	if n := len(r.pending); n > 0 {
		tok := r.pending[n-1]
		r.pending = r.pending[:n-1]
		return tok, nil
	}
	return r.s.Next()
}

func (r *Reader) Unread(tok scanner.Token) { r.pending = append(r.pending, tok) }

// ReadObject reads one complete object. A dictionary followed by the
// "stream" keyword yields a *StreamObj.
func (r *Reader) ReadObject() (Object, error) {
	tok, err := r.Next()
	if err != nil {
		return nil, err
	}
	return r.fromToken(tok, 0)
}

// FromToken builds an object whose first token has already been consumed.
func (r *Reader) FromToken(tok scanner.Token) (Object, error) {
	return r.fromToken(tok, 0)
}

func (r *Reader) fromToken(tok scanner.Token, depth int) (Object, error) {
	if depth > maxNesting {
		return nil, fmt.Errorf("offset %d: nesting too deep", tok.Pos)
	}
	switch tok.Type {
	case scanner.TokenName:
		return NameObj{Val: tok.Str}, nil
	case scanner.TokenNumber:
		if tok.IsInt {
			return NumberInt(tok.Int), nil
		}
		return NumberFloat(tok.Float), nil
	case scanner.TokenString:
		return StringObj{Bytes: tok.Bytes, Hex: tok.Hex}, nil
	case scanner.TokenBoolean:
		return BoolObj{V: tok.Bool}, nil
	case scanner.TokenNull:
		return NullObj{}, nil
	case scanner.TokenRef:
		return Ref(int(tok.Int), tok.Gen), nil
	case scanner.TokenArray:
		return r.readArray(depth)
	case scanner.TokenDict:
		return r.readDict(depth)
	}
	return nil, fmt.Errorf("offset %d: %w %s %q", tok.Pos, ErrUnexpectedToken, tok.Type, tok.Str)
}

func (r *Reader) readArray(depth int) (Object, error) {
	arr := NewArray()
	for {
		tok, err := r.Next()
		if err != nil {
			if err == io.EOF {
				return nil, fmt.Errorf("unterminated array: %w", io.ErrUnexpectedEOF)
			}
			return nil, err
		}
		if tok.Type == scanner.TokenKeyword && tok.Str == "]" {
			return arr, nil
		}
		obj, err := r.fromToken(tok, depth+1)
		if err != nil {
			return nil, err
		}
		arr.Append(obj)
	}
}

func (r *Reader) readDict(depth int) (Object, error) {
	dict := Dict()
	for {
		tok, err := r.Next()
		if err != nil {
			if err == io.EOF {
				return nil, fmt.Errorf("unterminated dictionary: %w", io.ErrUnexpectedEOF)
			}
			return nil, err
		}
		if tok.Type == scanner.TokenKeyword && tok.Str == ">>" {
			break
		}
		if tok.Type != scanner.TokenName {
			// Missing ">>" usually shows up as "endobj" or "stream" here.
			if tok.Type == scanner.TokenKeyword && (tok.Str == "endobj" || tok.Str == "obj") {
				return nil, fmt.Errorf("offset %d: dictionary not closed before %q", tok.Pos, tok.Str)
			}
			return nil, fmt.Errorf("offset %d: %w: dictionary key %s", tok.Pos, ErrUnexpectedToken, tok.Type)
		}
		key := tok.Str
		valTok, err := r.Next()
		if err != nil {
			return nil, err
		}
		if valTok.Type == scanner.TokenKeyword && valTok.Str == ">>" {
			// Key without value; treat as null and close.
			dict.Set(key, NullObj{})
			break
		}
		val, err := r.fromToken(valTok, depth+1)
		if err != nil {
			return nil, err
		}
		dict.Set(key, val)
	}
	return r.maybeStream(dict)
}

func (r *Reader) maybeStream(dict *DictObj) (Object, error) {
	r.s.SetNextStreamLength(r.streamLength(dict))
	tok, err := r.Next()
	if err != nil {
		r.s.SetNextStreamLength(-1)
		if err == io.EOF {
			return dict, nil
		}
		return nil, err
	}
	if tok.Type == scanner.TokenStream {
		return &StreamObj{Dict: dict, Data: tok.Bytes}, nil
	}
	r.s.SetNextStreamLength(-1)
	r.Unread(tok)
	return dict, nil
}

func (r *Reader) streamLength(dict *DictObj) int64 {
	v, ok := dict.Get("Length")
	if !ok {
		return -1
	}
	switch l := v.(type) {
	case NumberObj:
		return l.Int()
	case RefObj:
		if r.Lengths != nil {
			if n, ok := r.Lengths(l.R); ok {
				return n
			}
		}
	}
	return -1
}
