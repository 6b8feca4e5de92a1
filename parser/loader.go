package parser

import (
	"context"
	"fmt"
	"sync"

	"github.com/wudi/pdfedit/filters"
	"github.com/wudi/pdfedit/ir/raw"
	"github.com/wudi/pdfedit/scanner"
	"github.com/wudi/pdfedit/security"
	"github.com/wudi/pdfedit/xref"
)

// objectLoader materialises indirect objects on demand, including objects
// packed in object streams.
type objectLoader struct {
	data       []byte
	table      *xref.Table
	cfg        Config
	pipeline   *filters.Pipeline
	security   security.Handler
	encryptRef *raw.ObjectRef

	mu        sync.Mutex
	cache     map[raw.ObjectRef]raw.Object
	objStms   map[int]*objectStream
	loading   map[raw.ObjectRef]bool
	repaired  *xref.Table
	repairErr error
}

type objectStream struct {
	data    []byte
	first   int
	offsets []int // object number, offset pairs flattened
}

func newObjectLoader(data []byte, table *xref.Table, cfg Config) *objectLoader {
	return &objectLoader{
		data:     data,
		table:    table,
		cfg:      cfg,
		pipeline: filters.NewDefaultPipeline(),
		cache:    make(map[raw.ObjectRef]raw.Object),
		objStms:  make(map[int]*objectStream),
		loading:  make(map[raw.ObjectRef]bool),
	}
}

func (o *objectLoader) Load(ctx context.Context, ref raw.ObjectRef) (raw.Object, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.load(ctx, ref)
}

func (o *objectLoader) load(ctx context.Context, ref raw.ObjectRef) (raw.Object, error) {
	if obj, ok := o.cache[ref]; ok {
		return obj, nil
	}
	if o.loading[ref] {
		return nil, fmt.Errorf("object %s references itself while loading", ref)
	}
	o.loading[ref] = true
	defer delete(o.loading, ref)

	e, ok := o.table.Lookup(ref.Num)
	if !ok || e.Kind == xref.EntryFree {
		return raw.NullObj{}, nil
	}
	var (
		obj raw.Object
		err error
	)
	if e.Kind == xref.EntryCompressed {
		obj, err = o.loadFromObjectStream(ctx, ref, e)
	} else {
		obj, err = o.loadAtOffset(ctx, ref, e.Offset)
		if err != nil {
			if alt, ok := o.repairedOffset(ctx, ref.Num); ok && alt != e.Offset {
				obj, err = o.loadAtOffset(ctx, ref, alt)
			}
		}
		if err == nil && o.security != nil && (o.encryptRef == nil || *o.encryptRef != ref) {
			obj, err = o.decrypt(ref, obj)
		}
	}
	if err != nil {
		return nil, err
	}
	o.cache[ref] = obj
	return obj, nil
}

func (o *objectLoader) loadAtOffset(ctx context.Context, ref raw.ObjectRef, offset int64) (raw.Object, error) {
	s := scanner.New(o.data, o.cfg.Scanner)
	if err := s.Seek(offset); err != nil {
		return nil, err
	}
	rd := raw.NewReader(s)
	rd.Lengths = func(lref raw.ObjectRef) (int64, bool) {
		if lref == ref {
			return 0, false
		}
		obj, err := o.load(ctx, lref)
		if err != nil {
			return 0, false
		}
		n, ok := obj.(raw.NumberObj)
		return n.Int(), ok
	}
	num, err := rd.Next()
	if err != nil {
		return nil, err
	}
	gen, err := rd.Next()
	if err != nil {
		return nil, err
	}
	kw, err := rd.Next()
	if err != nil {
		return nil, err
	}
	if num.Type != scanner.TokenNumber || gen.Type != scanner.TokenNumber || kw.Type != scanner.TokenKeyword || kw.Str != "obj" {
		return nil, fmt.Errorf("no object header at offset %d", offset)
	}
	if int(num.Int) != ref.Num {
		return nil, fmt.Errorf("offset %d holds object %d, want %d", offset, num.Int, ref.Num)
	}
	obj, err := rd.ReadObject()
	if err != nil {
		return nil, fmt.Errorf("object %d: %w", ref.Num, err)
	}
	return obj, nil
}

func (o *objectLoader) repairedOffset(ctx context.Context, num int) (int64, bool) {
	if o.repaired == nil && o.repairErr == nil {
		o.repaired, o.repairErr = xref.Repair(ctx, o.data)
	}
	if o.repaired == nil {
		return 0, false
	}
	e, ok := o.repaired.Lookup(num)
	return e.Offset, ok
}

func (o *objectLoader) loadFromObjectStream(ctx context.Context, ref raw.ObjectRef, e xref.Entry) (raw.Object, error) {
	stm, err := o.objectStream(ctx, e.StreamNum)
	if err != nil {
		return nil, err
	}
	// Prefer the index from the xref; fall back to searching the header.
	idx := -1
	if 2*e.Index+1 < len(stm.offsets) && stm.offsets[2*e.Index] == ref.Num {
		idx = e.Index
	} else {
		for i := 0; 2*i+1 < len(stm.offsets); i++ {
			if stm.offsets[2*i] == ref.Num {
				idx = i
				break
			}
		}
	}
	if idx < 0 {
		return nil, fmt.Errorf("object %d not found in object stream %d", ref.Num, e.StreamNum)
	}
	start := stm.first + stm.offsets[2*idx+1]
	if start < 0 || start > len(stm.data) {
		return nil, fmt.Errorf("object %d offset outside object stream %d", ref.Num, e.StreamNum)
	}
	rd := raw.NewReader(scanner.New(stm.data[start:], o.cfg.Scanner))
	return rd.ReadObject()
}

func (o *objectLoader) objectStream(ctx context.Context, num int) (*objectStream, error) {
	if stm, ok := o.objStms[num]; ok {
		return stm, nil
	}
	e, ok := o.table.Lookup(num)
	if !ok {
		return nil, fmt.Errorf("object stream %d missing from xref", num)
	}
	obj, err := o.load(ctx, raw.ObjectRef{Num: num, Gen: e.Gen})
	if err != nil {
		return nil, err
	}
	st, ok := obj.(*raw.StreamObj)
	if !ok {
		return nil, fmt.Errorf("object stream %d is %s", num, obj.Type())
	}
	decoded, err := o.pipeline.DecodeStream(ctx, nil, st)
	if err != nil {
		return nil, fmt.Errorf("decode object stream %d: %w", num, err)
	}
	n, _ := st.Dict.IntValue("N")
	first, _ := st.Dict.IntValue("First")
	stm := &objectStream{data: decoded, first: int(first)}
	s := scanner.New(decoded, o.cfg.Scanner)
	for i := int64(0); i < 2*n; i++ {
		tok, err := s.Next()
		if err != nil || tok.Type != scanner.TokenNumber {
			break
		}
		stm.offsets = append(stm.offsets, int(tok.Int))
	}
	o.objStms[num] = stm
	return stm, nil
}

func (o *objectLoader) decrypt(ref raw.ObjectRef, obj raw.Object) (raw.Object, error) {
	switch v := obj.(type) {
	case raw.StringObj:
		out, err := o.security.Decrypt(ref, v.Bytes, security.DataClassString)
		if err != nil {
			return nil, err
		}
		return raw.StringObj{Bytes: out, Hex: v.Hex}, nil
	case *raw.ArrayObj:
		out := raw.NewArray()
		for _, it := range v.Items {
			d, err := o.decrypt(ref, it)
			if err != nil {
				return nil, err
			}
			out.Append(d)
		}
		return out, nil
	case *raw.DictObj:
		out := raw.Dict()
		for k, it := range v.KV {
			d, err := o.decrypt(ref, it)
			if err != nil {
				return nil, err
			}
			out.Set(k, d)
		}
		return out, nil
	case *raw.StreamObj:
		dict, err := o.decrypt(ref, v.Dict)
		if err != nil {
			return nil, err
		}
		typ, _ := v.Dict.NameValue("Type")
		if typ == "XRef" || (typ == "Metadata" && !o.security.EncryptMetadata()) {
			return &raw.StreamObj{Dict: dict.(*raw.DictObj), Data: v.Data}, nil
		}
		data, err := o.security.Decrypt(ref, v.Data, security.DataClassStream)
		if err != nil {
			return nil, err
		}
		// The payload is now plaintext; /Length keeps describing the stored bytes.
		return &raw.StreamObj{Dict: dict.(*raw.DictObj), Data: data}, nil
	}
	return obj, nil
}
