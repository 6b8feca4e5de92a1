package xref

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/wudi/pdfedit/filters"
	"github.com/wudi/pdfedit/ir/raw"
	"github.com/wudi/pdfedit/recovery"
	"github.com/wudi/pdfedit/scanner"
)

var ErrNoXRef = errors.New("startxref not found")

type EntryKind int

const (
	EntryFree EntryKind = iota
	EntryInUse
	EntryCompressed // stored inside an object stream
)

// Entry locates one object. For compressed entries StreamNum/Index name the
// containing object stream and the position inside it.
type Entry struct {
	Kind      EntryKind
	Offset    int64
	Gen       int
	StreamNum int
	Index     int
}

// Table is the merged view of every cross-reference section reachable from
// the last startxref. Newer sections shadow older ones.
type Table struct {
	entries   map[int]Entry
	Trailer   *raw.DictObj
	StartXRef int64
	IsStream  bool
	Repaired  bool
	Sections  int
}

func newTable() *Table { return &Table{entries: make(map[int]Entry)} }

func (t *Table) Lookup(objNum int) (Entry, bool) {
	e, ok := t.entries[objNum]
	return e, ok
}

// Objects returns the in-use and compressed object numbers in ascending order.
func (t *Table) Objects() []int {
	out := make([]int, 0, len(t.entries))
	for k, e := range t.entries {
		if e.Kind != EntryFree {
			out = append(out, k)
		}
	}
	sort.Ints(out)
	return out
}

// Size is one greater than the highest object number known to the table or
// declared by the trailer.
func (t *Table) Size() int {
	size := 0
	for k := range t.entries {
		if k+1 > size {
			size = k + 1
		}
	}
	if t.Trailer != nil {
		if v, ok := t.Trailer.IntValue("Size"); ok && int(v) > size {
			size = int(v)
		}
	}
	return size
}

// set records e unless a newer section already described objNum.
func (t *Table) set(objNum int, e Entry) {
	if _, seen := t.entries[objNum]; !seen {
		t.entries[objNum] = e
	}
}

type ResolverConfig struct {
	MaxXRefDepth int
	Recovery     recovery.Strategy
}

// Resolver locates and parses xref information in a PDF.
type Resolver struct {
	cfg      ResolverConfig
	pipeline *filters.Pipeline
}

func NewResolver(cfg ResolverConfig) *Resolver {
	if cfg.MaxXRefDepth <= 0 {
		cfg.MaxXRefDepth = 64
	}
	return &Resolver{cfg: cfg, pipeline: filters.NewDefaultPipeline()}
}

// Resolve reads the xref chain. When the chain is unusable it falls back to
// scanning the whole file for "N G obj" headers.
func (r *Resolver) Resolve(ctx context.Context, data []byte) (*Table, error) {
	t, err := r.resolveChain(ctx, data)
	if err == nil && len(t.entries) > 0 && t.Trailer != nil {
		return t, nil
	}
	if err == nil {
		err = errors.New("empty cross-reference table")
	}
	if r.cfg.Recovery != nil {
		if r.cfg.Recovery.OnError(ctx, err, recovery.Location{Component: "xref"}) == recovery.ActionFail {
			return nil, err
		}
	}
	repaired, rerr := Repair(ctx, data)
	if rerr != nil {
		return nil, fmt.Errorf("%w (repair: %v)", err, rerr)
	}
	return repaired, nil
}

func (r *Resolver) resolveChain(ctx context.Context, data []byte) (*Table, error) {
	start, err := findStartXRef(data)
	if err != nil {
		return nil, err
	}
	t := newTable()
	t.StartXRef = start
	visited := make(map[int64]bool)
	offset := start
	for depth := 0; ; depth++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if depth >= r.cfg.MaxXRefDepth {
			return nil, fmt.Errorf("xref chain deeper than %d", r.cfg.MaxXRefDepth)
		}
		if visited[offset] {
			break
		}
		visited[offset] = true
		if offset < 0 || offset >= int64(len(data)) {
			return nil, fmt.Errorf("xref offset out of range: %d", offset)
		}

		trailer, isStream, err := r.readSection(ctx, data, offset, t)
		if err != nil {
			return nil, err
		}
		t.Sections++
		if depth == 0 {
			t.Trailer = trailer
			t.IsStream = isStream
		}
		// Hybrid files point at an xref stream from the classic trailer.
		if stm, ok := trailer.IntValue("XRefStm"); ok && !visited[stm] {
			visited[stm] = true
			if _, _, err := r.readSection(ctx, data, stm, t); err != nil {
				return nil, fmt.Errorf("XRefStm: %w", err)
			}
		}
		prev, ok := trailer.IntValue("Prev")
		if !ok || prev <= 0 {
			break
		}
		offset = prev
	}
	return t, nil
}

func (r *Resolver) readSection(ctx context.Context, data []byte, offset int64, t *Table) (*raw.DictObj, bool, error) {
	pos := int(offset)
	for pos < len(data) && scanner.IsWhitespace(data[pos]) {
		pos++
	}
	if bytes.HasPrefix(data[pos:], []byte("xref")) {
		trailer, err := readClassic(data, pos, t)
		return trailer, false, err
	}
	trailer, err := r.readStream(ctx, data, int64(pos), t)
	return trailer, true, err
}

func findStartXRef(data []byte) (int64, error) {
	idx := bytes.LastIndex(data, []byte("startxref"))
	if idx < 0 {
		return 0, ErrNoXRef
	}
	s := scanner.New(data[idx+len("startxref"):], scanner.DefaultConfig())
	tok, err := s.Next()
	if err != nil || tok.Type != scanner.TokenNumber || !tok.IsInt {
		return 0, fmt.Errorf("parse startxref: missing offset")
	}
	return tok.Int, nil
}

func readClassic(data []byte, pos int, t *Table) (*raw.DictObj, error) {
	pos += len("xref")
	line := func() []byte {
		for pos < len(data) && (data[pos] == '\r' || data[pos] == '\n' || data[pos] == ' ' || data[pos] == '\t') {
			pos++
		}
		start := pos
		for pos < len(data) && data[pos] != '\r' && data[pos] != '\n' {
			pos++
		}
		return bytes.TrimSpace(data[start:pos])
	}
	for {
		if pos >= len(data) {
			return nil, errors.New("unexpected end of xref section")
		}
		save := pos
		header := line()
		if bytes.HasPrefix(header, []byte("trailer")) {
			pos = save
			for pos < len(data) && !bytes.HasPrefix(data[pos:], []byte("trailer")) {
				pos++
			}
			pos += len("trailer")
			break
		}
		parts := bytes.Fields(header)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid xref subsection header: %q", header)
		}
		first, err1 := strconv.Atoi(string(parts[0]))
		count, err2 := strconv.Atoi(string(parts[1]))
		if err1 != nil || err2 != nil || count < 0 {
			return nil, fmt.Errorf("invalid xref subsection header: %q", header)
		}
		for i := 0; i < count; i++ {
			fields := bytes.Fields(line())
			if len(fields) < 3 {
				return nil, fmt.Errorf("invalid xref entry for object %d", first+i)
			}
			off, err := strconv.ParseInt(string(fields[0]), 10, 64)
			if err != nil {
				return nil, fmt.Errorf("parse xref offset: %w", err)
			}
			gen, err := strconv.Atoi(string(fields[1]))
			if err != nil {
				return nil, fmt.Errorf("parse xref gen: %w", err)
			}
			kind := EntryInUse
			if fields[2][0] != 'n' {
				kind = EntryFree
			}
			// A zero-based numbering bug makes some writers start at 1 with
			// object 0's free entry; the free-list head is never in use.
			if first+i == 0 && kind == EntryInUse && off == 0 {
				kind = EntryFree
			}
			t.set(first+i, Entry{Kind: kind, Offset: off, Gen: gen})
		}
	}

	rd := raw.NewReader(scanner.New(data[pos:], scanner.DefaultConfig()))
	obj, err := rd.ReadObject()
	if err != nil {
		return nil, fmt.Errorf("read trailer: %w", err)
	}
	trailer, ok := obj.(*raw.DictObj)
	if !ok {
		return nil, fmt.Errorf("trailer is %s, not a dictionary", obj.Type())
	}
	return trailer, nil
}

func (r *Resolver) readStream(ctx context.Context, data []byte, offset int64, t *Table) (*raw.DictObj, error) {
	s := scanner.New(data, scanner.DefaultConfig())
	if err := s.Seek(offset); err != nil {
		return nil, err
	}
	rd := raw.NewReader(s)
	for i := 0; i < 3; i++ { // "N G obj"
		tok, err := rd.Next()
		if err != nil {
			return nil, fmt.Errorf("read xref stream header: %w", err)
		}
		if i == 2 && (tok.Type != scanner.TokenKeyword || tok.Str != "obj") {
			return nil, fmt.Errorf("no xref table or stream at offset %d", offset)
		}
	}
	obj, err := rd.ReadObject()
	if err != nil {
		return nil, fmt.Errorf("read xref stream: %w", err)
	}
	st, ok := obj.(*raw.StreamObj)
	if !ok {
		return nil, fmt.Errorf("object at %d is not an xref stream", offset)
	}
	if typ, _ := st.Dict.NameValue("Type"); typ != "XRef" {
		return nil, fmt.Errorf("stream at %d has /Type %q, want XRef", offset, typ)
	}
	decoded, err := r.pipeline.DecodeStream(ctx, nil, st)
	if err != nil {
		return nil, fmt.Errorf("decode xref stream: %w", err)
	}
	if err := readStreamEntries(st.Dict, decoded, t); err != nil {
		return nil, err
	}
	return st.Dict, nil
}

func readStreamEntries(dict *raw.DictObj, decoded []byte, t *Table) error {
	wObj, _ := dict.Get("W")
	wArr, ok := wObj.(*raw.ArrayObj)
	if !ok || wArr.Len() < 3 {
		return errors.New("xref stream missing /W")
	}
	var w [3]int
	rowLen := 0
	for i := 0; i < 3; i++ {
		n, _ := wArr.Items[i].(raw.NumberObj)
		w[i] = int(n.Int())
		if w[i] < 0 || w[i] > 8 {
			return fmt.Errorf("invalid /W entry %d", w[i])
		}
		rowLen += w[i]
	}
	if rowLen == 0 {
		return errors.New("xref stream /W is all zero")
	}

	var index []int
	if idxObj, ok := dict.Get("Index"); ok {
		if arr, ok := idxObj.(*raw.ArrayObj); ok {
			for _, it := range arr.Items {
				n, _ := it.(raw.NumberObj)
				index = append(index, int(n.Int()))
			}
		}
	}
	if len(index) < 2 {
		size, _ := dict.IntValue("Size")
		index = []int{0, int(size)}
	}

	pos := 0
	for i := 0; i+1 < len(index); i += 2 {
		first, count := index[i], index[i+1]
		for j := 0; j < count; j++ {
			if pos+rowLen > len(decoded) {
				return nil
			}
			row := decoded[pos : pos+rowLen]
			pos += rowLen
			typ := 1 // default when w[0] == 0
			if w[0] > 0 {
				typ = int(field(row[:w[0]]))
			}
			f2 := field(row[w[0] : w[0]+w[1]])
			f3 := field(row[w[0]+w[1]:])
			switch typ {
			case 0:
				t.set(first+j, Entry{Kind: EntryFree})
			case 1:
				t.set(first+j, Entry{Kind: EntryInUse, Offset: f2, Gen: int(f3)})
			case 2:
				t.set(first+j, Entry{Kind: EntryCompressed, StreamNum: int(f2), Index: int(f3)})
			}
		}
	}
	return nil
}

func field(b []byte) int64 {
	var v int64
	for _, c := range b {
		v = v<<8 | int64(c)
	}
	return v
}
