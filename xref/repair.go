package xref

import (
	"context"
	"errors"
	"io"

	"github.com/wudi/pdfedit/ir/raw"
	"github.com/wudi/pdfedit/scanner"
)

// Repair scans the entire file to reconstruct the xref table from
// "<num> <gen> obj" headers and the last "trailer" dictionary.
func Repair(ctx context.Context, data []byte) (*Table, error) {
	s := scanner.New(data, scanner.DefaultConfig())
	t := newTable()
	t.Repaired = true
	found := make(map[int]Entry)
	var lastTrailer *raw.DictObj

	for i := 0; ; i++ {
		if i%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		before := s.Position()
		tok, err := s.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			// Skip past the bad byte and keep scanning.
			if serr := s.Seek(before + 1); serr != nil {
				break
			}
			continue
		}
		switch {
		case tok.Type == scanner.TokenNumber && tok.IsInt:
			genTok, err := s.Next()
			if err != nil {
				continue
			}
			if genTok.Type != scanner.TokenNumber || !genTok.IsInt {
				_ = s.Seek(genTok.Pos)
				continue
			}
			objTok, err := s.Next()
			if err != nil {
				continue
			}
			if objTok.Type == scanner.TokenKeyword && objTok.Str == "obj" {
				// Later definitions win, matching incremental updates.
				found[int(tok.Int)] = Entry{Kind: EntryInUse, Offset: tok.Pos, Gen: int(genTok.Int)}
				continue
			}
			_ = s.Seek(genTok.Pos)
		case tok.Type == scanner.TokenKeyword && tok.Str == "trailer":
			obj, err := raw.NewReader(s).ReadObject()
			if err == nil {
				if dict, ok := obj.(*raw.DictObj); ok {
					lastTrailer = dict
				}
			}
		}
	}

	if len(found) == 0 {
		return nil, errors.New("repair failed: no objects found")
	}
	for num, e := range found {
		t.entries[num] = e
	}
	if lastTrailer == nil {
		lastTrailer = raw.Dict()
	}
	t.Trailer = lastTrailer.Clone()
	t.Trailer.Set("Size", raw.NumberInt(int64(t.Size())))
	delete(t.Trailer.KV, "Prev")
	delete(t.Trailer.KV, "XRefStm")
	return t, nil
}
