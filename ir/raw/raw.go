package raw

import (
	"fmt"
)

// ObjectRef uniquely identifies an indirect PDF object.
type ObjectRef struct {
	Num int
	Gen int
}

func (r ObjectRef) String() string { return fmt.Sprintf("%d %d R", r.Num, r.Gen) }

// Object is the base interface for all raw PDF objects.
type Object interface {
	Type() string
}

// DocumentMetadata contains common PDF info fields.
type DocumentMetadata struct {
	Producer string
	Creator  string
	Title    string
	Author   string
}

// Document is the root container for raw PDF objects.
type Document struct {
	Objects  map[ObjectRef]Object
	Trailer  *DictObj
	Version  string // e.g., "1.7"
	Metadata DocumentMetadata

	Encrypted bool
	// StartXRef is the offset of the newest cross-reference section; an
	// incremental update chains to it through /Prev.
	StartXRef int64
	// XRefStream reports whether the newest section was a cross-reference stream.
	XRefStream bool
	// Size is one greater than the highest object number in use.
	Size int
	// Repaired is set when the cross-reference data was rebuilt by scanning
	// the file; offsets in the trailer chain are then unreliable.
	Repaired bool
}

func NewDocument() *Document {
	return &Document{Objects: make(map[ObjectRef]Object), Trailer: Dict()}
}

// Resolve follows indirect references until a direct object is reached.
// Dangling references resolve to NullObj.
func (d *Document) Resolve(obj Object) Object {
	if d == nil {
		if _, ok := obj.(RefObj); ok {
			return NullObj{}
		}
		return obj
	}
	for i := 0; i < 32; i++ {
		ref, ok := obj.(RefObj)
		if !ok {
			return obj
		}
		next, ok := d.Objects[ref.R]
		if !ok {
			return NullObj{}
		}
		obj = next
	}
	return NullObj{}
}

// Get returns the object stored under ref, resolved.
func (d *Document) Get(ref ObjectRef) Object {
	return d.Resolve(RefObj{R: ref})
}

// DictValue resolves dict[key] and returns it when it is a dictionary. Streams
// yield their dictionary.
func (d *Document) DictValue(dict *DictObj, key string) (*DictObj, bool) {
	if dict == nil {
		return nil, false
	}
	v, ok := dict.KV[key]
	if !ok {
		return nil, false
	}
	return d.AsDict(v)
}

// AsDict resolves obj and unwraps dictionaries and stream dictionaries.
func (d *Document) AsDict(obj Object) (*DictObj, bool) {
	switch v := d.Resolve(obj).(type) {
	case *DictObj:
		return v, true
	case *StreamObj:
		return v.Dict, true
	}
	return nil, false
}

// AsArray resolves obj as an array.
func (d *Document) AsArray(obj Object) (*ArrayObj, bool) {
	a, ok := d.Resolve(obj).(*ArrayObj)
	return a, ok
}

// AsNumber resolves obj as a number.
func (d *Document) AsNumber(obj Object) (float64, bool) {
	n, ok := d.Resolve(obj).(NumberObj)
	if !ok {
		return 0, false
	}
	return n.Float(), true
}

// AsName resolves obj as a name.
func (d *Document) AsName(obj Object) (string, bool) {
	n, ok := d.Resolve(obj).(NameObj)
	return n.Val, ok
}

// Root returns the document catalog.
func (d *Document) Root() (*DictObj, bool) {
	return d.DictValue(d.Trailer, "Root")
}
