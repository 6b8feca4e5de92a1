package scanner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/wudi/pdfedit/recovery"
)

type TokenType int

const (
	TokenDict        TokenType = iota // '<<'
	TokenArray                        // '['
	TokenName                         // '/Name'
	TokenString                       // literal or hex string
	TokenNumber                       // numeric value
	TokenBoolean                      // true/false
	TokenNull                         // null
	TokenRef                          // indirect ref '5 0 R'
	TokenStream                       // 'stream' keyword plus its payload
	TokenInlineImage                  // inline image data following ID ... EI (content stream only)
	TokenKeyword                      // other keywords (obj, endobj, >>, ], operators)
)

func (t TokenType) String() string {
	switch t {
	case TokenDict:
		return "dict"
	case TokenArray:
		return "array"
	case TokenName:
		return "name"
	case TokenString:
		return "string"
	case TokenNumber:
		return "number"
	case TokenBoolean:
		return "boolean"
	case TokenNull:
		return "null"
	case TokenRef:
		return "ref"
	case TokenStream:
		return "stream"
	case TokenInlineImage:
		return "inline-image"
	default:
		return "keyword"
	}
}

// Token is a lexical unit. Only the fields relevant to Type are populated.
type Token struct {
	Type  TokenType
	Pos   int64 // offset of the first byte
	End   int64 // offset just past the last byte
	Str   string
	Bytes []byte
	Int   int64
	Float float64
	IsInt bool
	Bool  bool
	Gen   int // generation for TokenRef; Int carries the object number
	Hex   bool
}

// Number returns the numeric value of a TokenNumber regardless of its kind.
func (t Token) Number() float64 {
	if t.IsInt {
		return float64(t.Int)
	}
	return t.Float
}

type Config struct {
	MaxStringLength int64
	MaxStreamLength int64
	MaxInlineImage  int64
	// ContentStream disables "N G R" reference folding and enables inline images.
	ContentStream bool
	Recovery      recovery.Strategy
}

func DefaultConfig() Config {
	return Config{
		MaxStringLength: 16 << 20,
		MaxStreamLength: 256 << 20,
		MaxInlineImage:  8 << 20,
	}
}

var (
	ErrUnterminated = errors.New("unterminated token")
	ErrLimit        = errors.New("token exceeds configured limit")
)

// Scanner tokenizes an in-memory PDF buffer.
type Scanner struct {
	data          []byte
	pos           int
	cfg           Config
	nextStreamLen int64
}

func New(data []byte, cfg Config) *Scanner {
	return &Scanner{data: data, cfg: cfg, nextStreamLen: -1}
}

func (s *Scanner) Position() int64 { return int64(s.pos) }

func (s *Scanner) Seek(offset int64) error {
	if offset < 0 || offset > int64(len(s.data)) {
		return fmt.Errorf("seek %d: out of range", offset)
	}
	s.pos = int(offset)
	return nil
}

// SetNextStreamLength hints the /Length of the next stream payload. A negative
// value makes the scanner search for "endstream".
func (s *Scanner) SetNextStreamLength(n int64) { s.nextStreamLen = n }

func (s *Scanner) Next() (Token, error) {
	s.skipSpaceAndComments()
	if s.pos >= len(s.data) {
		return Token{}, io.EOF
	}
	start := s.pos
	c := s.data[s.pos]
	switch {
	case c == '/':
		return s.scanName()
	case c == '(':
		return s.scanLiteralString()
	case c == '<':
		if s.peek(1) == '<' {
			s.pos += 2
			return Token{Type: TokenDict, Pos: int64(start), End: int64(s.pos)}, nil
		}
		return s.scanHexString()
	case c == '>':
		if s.peek(1) == '>' {
			s.pos += 2
			return Token{Type: TokenKeyword, Str: ">>", Pos: int64(start), End: int64(s.pos)}, nil
		}
		s.pos++
		return Token{Type: TokenKeyword, Str: ">", Pos: int64(start), End: int64(s.pos)}, nil
	case c == '[':
		s.pos++
		return Token{Type: TokenArray, Pos: int64(start), End: int64(s.pos)}, nil
	case c == ']':
		s.pos++
		return Token{Type: TokenKeyword, Str: "]", Pos: int64(start), End: int64(s.pos)}, nil
	case c == '{' || c == '}':
		s.pos++
		return Token{Type: TokenKeyword, Str: string(c), Pos: int64(start), End: int64(s.pos)}, nil
	case c == '+' || c == '-' || c == '.' || isDigit(c):
		return s.scanNumberOrRef()
	case c == ')':
		// stray delimiter; surface as keyword so callers can decide
		s.pos++
		return Token{Type: TokenKeyword, Str: ")", Pos: int64(start), End: int64(s.pos)}, nil
	}
	return s.scanKeyword()
}

func (s *Scanner) peek(n int) byte {
	if s.pos+n < len(s.data) {
		return s.data[s.pos+n]
	}
	return 0
}

func (s *Scanner) skipSpaceAndComments() {
	for s.pos < len(s.data) {
		c := s.data[s.pos]
		if IsWhitespace(c) {
			s.pos++
			continue
		}
		if c == '%' {
			for s.pos < len(s.data) && s.data[s.pos] != '\n' && s.data[s.pos] != '\r' {
				s.pos++
			}
			continue
		}
		return
	}
}

func (s *Scanner) scanName() (Token, error) {
	start := s.pos
	s.pos++ // '/'
	var buf []byte
	for s.pos < len(s.data) {
		c := s.data[s.pos]
		if IsWhitespace(c) || IsDelimiter(c) {
			break
		}
		if c == '#' && s.pos+2 < len(s.data) && isHex(s.data[s.pos+1]) && isHex(s.data[s.pos+2]) {
			buf = append(buf, unhex(s.data[s.pos+1])<<4|unhex(s.data[s.pos+2]))
			s.pos += 3
			continue
		}
		buf = append(buf, c)
		s.pos++
	}
	return Token{Type: TokenName, Str: string(buf), Pos: int64(start), End: int64(s.pos)}, nil
}

func (s *Scanner) scanLiteralString() (Token, error) {
	start := s.pos
	s.pos++ // '('
	depth := 1
	var buf []byte
	for s.pos < len(s.data) {
		if s.cfg.MaxStringLength > 0 && int64(len(buf)) > s.cfg.MaxStringLength {
			return Token{}, s.fail(ErrLimit, start)
		}
		c := s.data[s.pos]
		switch c {
		case '\\':
			s.pos++
			if s.pos >= len(s.data) {
				break
			}
			e := s.data[s.pos]
			switch e {
			case 'n':
				buf = append(buf, '\n')
			case 'r':
				buf = append(buf, '\r')
			case 't':
				buf = append(buf, '\t')
			case 'b':
				buf = append(buf, '\b')
			case 'f':
				buf = append(buf, '\f')
			case '(', ')', '\\':
				buf = append(buf, e)
			case '\r':
				if s.peek(1) == '\n' {
					s.pos++
				}
			case '\n':
			default:
				if e >= '0' && e <= '7' {
					v := int(e - '0')
					for i := 0; i < 2 && s.pos+1 < len(s.data); i++ {
						n := s.data[s.pos+1]
						if n < '0' || n > '7' {
							break
						}
						v = v*8 + int(n-'0')
						s.pos++
					}
					buf = append(buf, byte(v))
				} else {
					buf = append(buf, e)
				}
			}
			s.pos++
		case '(':
			depth++
			buf = append(buf, c)
			s.pos++
		case ')':
			depth--
			s.pos++
			if depth == 0 {
				return Token{Type: TokenString, Bytes: buf, Pos: int64(start), End: int64(s.pos)}, nil
			}
			buf = append(buf, c)
		case '\r':
			// EOL in a literal string is read as a single LF
			buf = append(buf, '\n')
			s.pos++
			if s.pos < len(s.data) && s.data[s.pos] == '\n' {
				s.pos++
			}
		default:
			buf = append(buf, c)
			s.pos++
		}
	}
	return Token{}, s.fail(ErrUnterminated, start)
}

func (s *Scanner) scanHexString() (Token, error) {
	start := s.pos
	s.pos++ // '<'
	var buf []byte
	var hi byte
	half := false
	for s.pos < len(s.data) {
		c := s.data[s.pos]
		s.pos++
		if c == '>' {
			if half {
				buf = append(buf, hi<<4)
			}
			return Token{Type: TokenString, Bytes: buf, Hex: true, Pos: int64(start), End: int64(s.pos)}, nil
		}
		if IsWhitespace(c) || !isHex(c) {
			continue
		}
		if half {
			buf = append(buf, hi<<4|unhex(c))
			half = false
		} else {
			hi = unhex(c)
			half = true
		}
	}
	return Token{}, s.fail(ErrUnterminated, start)
}

func (s *Scanner) scanNumberOrRef() (Token, error) {
	tok := s.scanNumber()
	if s.cfg.ContentStream || !tok.IsInt || tok.Int < 0 {
		return tok, nil
	}
	// Look ahead for "G R".
	save := s.pos
	s.skipSpaceAndComments()
	if s.pos < len(s.data) && isDigit(s.data[s.pos]) {
		gen := s.scanNumber()
		s.skipSpaceAndComments()
		if gen.IsInt && s.pos < len(s.data) && s.data[s.pos] == 'R' && (s.pos+1 >= len(s.data) || IsWhitespace(s.data[s.pos+1]) || IsDelimiter(s.data[s.pos+1])) {
			s.pos++
			return Token{Type: TokenRef, Int: tok.Int, Gen: int(gen.Int), Pos: tok.Pos, End: int64(s.pos)}, nil
		}
	}
	s.pos = save
	return tok, nil
}

func (s *Scanner) scanNumber() Token {
	start := s.pos
	for s.pos < len(s.data) {
		c := s.data[s.pos]
		if isDigit(c) || c == '.' || c == '+' || c == '-' {
			s.pos++
			continue
		}
		break
	}
	raw := string(s.data[start:s.pos])
	tok := Token{Type: TokenNumber, Pos: int64(start), End: int64(s.pos)}
	// Tolerate producer quirks such as "--5" or "5-".
	clean := raw
	for len(clean) > 1 && (clean[0] == '+' || clean[0] == '-') && (clean[1] == '+' || clean[1] == '-') {
		clean = clean[1:]
	}
	if i := bytes.IndexAny([]byte(clean[1:]), "+-"); i >= 0 {
		clean = clean[:i+1]
	}
	if v, err := strconv.ParseInt(clean, 10, 64); err == nil {
		tok.Int = v
		tok.IsInt = true
		return tok
	}
	if v, err := strconv.ParseFloat(clean, 64); err == nil {
		tok.Float = v
		return tok
	}
	// Lone sign or dot reads as zero.
	tok.IsInt = true
	return tok
}

func (s *Scanner) scanKeyword() (Token, error) {
	start := s.pos
	for s.pos < len(s.data) {
		c := s.data[s.pos]
		if IsWhitespace(c) || IsDelimiter(c) {
			break
		}
		s.pos++
	}
	if s.pos == start {
		// A delimiter we do not otherwise handle; consume it to guarantee progress.
		s.pos++
	}
	word := string(s.data[start:s.pos])
	tok := Token{Type: TokenKeyword, Str: word, Pos: int64(start), End: int64(s.pos)}
	switch word {
	case "true", "false":
		tok.Type = TokenBoolean
		tok.Bool = word == "true"
	case "null":
		tok.Type = TokenNull
	case "stream":
		return s.scanStream(start)
	case "ID":
		if s.cfg.ContentStream {
			return s.scanInlineImage(start)
		}
	}
	return tok, nil
}

func (s *Scanner) scanStream(start int) (Token, error) {
	// The keyword is followed by CRLF or LF (some writers emit a bare CR).
	if s.pos < len(s.data) && s.data[s.pos] == '\r' {
		s.pos++
	}
	if s.pos < len(s.data) && s.data[s.pos] == '\n' {
		s.pos++
	}
	dataStart := s.pos
	length := s.nextStreamLen
	s.nextStreamLen = -1
	if s.cfg.MaxStreamLength > 0 && length > s.cfg.MaxStreamLength {
		return Token{}, s.fail(ErrLimit, start)
	}
	if length >= 0 && dataStart+int(length) <= len(s.data) {
		end := dataStart + int(length)
		rest := s.data[end:]
		trimmed := bytes.TrimLeft(rest, " \t\r\n\f\x00")
		if bytes.HasPrefix(trimmed, []byte("endstream")) {
			s.pos = end + (len(rest) - len(trimmed)) + len("endstream")
			return Token{Type: TokenStream, Bytes: s.data[dataStart:end], Pos: int64(start), End: int64(s.pos)}, nil
		}
	}
	// Length missing or wrong: search for the terminator.
	idx := bytes.Index(s.data[dataStart:], []byte("endstream"))
	if idx < 0 {
		return Token{}, s.fail(ErrUnterminated, start)
	}
	end := dataStart + idx
	payloadEnd := end
	if payloadEnd > dataStart && s.data[payloadEnd-1] == '\n' {
		payloadEnd--
		if payloadEnd > dataStart && s.data[payloadEnd-1] == '\r' {
			payloadEnd--
		}
	} else if payloadEnd > dataStart && s.data[payloadEnd-1] == '\r' {
		payloadEnd--
	}
	s.pos = end + len("endstream")
	return Token{Type: TokenStream, Bytes: s.data[dataStart:payloadEnd], Pos: int64(start), End: int64(s.pos)}, nil
}

func (s *Scanner) scanInlineImage(start int) (Token, error) {
	// A single whitespace byte separates ID from the data.
	if s.pos < len(s.data) && IsWhitespace(s.data[s.pos]) {
		s.pos++
	}
	dataStart := s.pos
	for i := dataStart; i+1 < len(s.data); i++ {
		if s.cfg.MaxInlineImage > 0 && int64(i-dataStart) > s.cfg.MaxInlineImage {
			return Token{}, s.fail(ErrLimit, start)
		}
		if s.data[i] != 'E' || s.data[i+1] != 'I' {
			continue
		}
		before := i == dataStart || IsWhitespace(s.data[i-1])
		after := i+2 >= len(s.data) || IsWhitespace(s.data[i+2]) || IsDelimiter(s.data[i+2])
		if before && after {
			end := i
			if end > dataStart && IsWhitespace(s.data[end-1]) {
				end--
			}
			s.pos = i + 2
			return Token{Type: TokenInlineImage, Bytes: s.data[dataStart:end], Pos: int64(start), End: int64(s.pos)}, nil
		}
	}
	return Token{}, s.fail(ErrUnterminated, start)
}

func (s *Scanner) fail(err error, at int) error {
	if s.cfg.Recovery != nil {
		s.cfg.Recovery.OnError(context.Background(), err, recovery.Location{ByteOffset: int64(at), Component: "scanner"})
	}
	return fmt.Errorf("offset %d: %w", at, err)
}

// IsWhitespace reports PDF whitespace characters (ISO 32000-1 Table 1).
func IsWhitespace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\r' || c == '\n' || c == '\f' || c == 0
}

// IsDelimiter reports PDF delimiter characters (ISO 32000-1 Table 2).
func IsDelimiter(c byte) bool {
	switch c {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	}
	return false
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isHex(c byte) bool {
	return isDigit(c) || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

func unhex(c byte) byte {
	switch {
	case isDigit(c):
		return c - '0'
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10
	default:
		return c - 'A' + 10
	}
}
