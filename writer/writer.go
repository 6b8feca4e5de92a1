// Package writer emits PDF files from a parsed object graph, either as an
// incremental update appended to the original bytes or as a full rewrite.
package writer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"

	"golang.org/x/crypto/blake2b"

	"github.com/wudi/pdfedit/ir/raw"
)

var (
	ErrNoCatalog = errors.New("trailer has no /Root")
	ErrNoPrev    = errors.New("source has no usable startxref")
)

type Mode int

const (
	// ModeIncremental keeps every original byte and appends the changes.
	ModeIncremental Mode = iota
	// ModeRewrite writes every object again, without encryption.
	ModeRewrite
)

func (m Mode) String() string {
	if m == ModeRewrite {
		return "rewrite"
	}
	return "incremental"
}

type Config struct {
	Mode Mode
	// XRefStream writes the cross-reference section as a stream. Incremental
	// updates of files whose newest section is a stream always use one.
	XRefStream bool
}

// Changes collects objects to replace or add on top of a document.
type Changes struct {
	next    int
	objects map[raw.ObjectRef]raw.Object
}

// NewChanges starts an empty change set. New objects are numbered after the
// highest number used by doc.
func NewChanges(doc *raw.Document) *Changes {
	next := max(doc.Size, 1)
	for ref := range doc.Objects {
		if ref.Num >= next {
			next = ref.Num + 1
		}
	}
	return &Changes{next: next, objects: make(map[raw.ObjectRef]raw.Object)}
}

// Add stores obj under a fresh object number.
func (c *Changes) Add(obj raw.Object) raw.ObjectRef {
	ref := raw.ObjectRef{Num: c.next}
	c.next++
	c.objects[ref] = obj
	return ref
}

// Replace stores obj under an existing reference.
func (c *Changes) Replace(ref raw.ObjectRef, obj raw.Object) {
	c.objects[ref] = obj
	if ref.Num >= c.next {
		c.next = ref.Num + 1
	}
}

func (c *Changes) Len() int { return len(c.objects) }

// Size is the trailer /Size once the changes are written.
func (c *Changes) Size() int { return c.next }

func (c *Changes) refs() []raw.ObjectRef {
	refs := make([]raw.ObjectRef, 0, len(c.objects))
	for ref := range c.objects {
		refs = append(refs, ref)
	}
	sortRefs(refs)
	return refs
}

func sortRefs(refs []raw.ObjectRef) {
	sort.Slice(refs, func(i, j int) bool { return refs[i].Num < refs[j].Num })
}

type Writer struct {
	cfg Config
}

func New(cfg Config) *Writer { return &Writer{cfg: cfg} }

// Write emits source plus changes to out. source is the file doc was parsed
// from; it is only read in incremental mode.
func (w *Writer) Write(ctx context.Context, out io.Writer, source []byte, doc *raw.Document, changes *Changes) error {
	if _, ok := doc.Trailer.Get("Root"); !ok {
		return ErrNoCatalog
	}
	var (
		buf bytes.Buffer
		err error
	)
	switch w.cfg.Mode {
	case ModeRewrite:
		err = w.rewrite(ctx, &buf, doc, changes)
	default:
		err = w.appendUpdate(ctx, &buf, source, doc, changes)
	}
	if err != nil {
		return err
	}
	_, err = out.Write(buf.Bytes())
	return err
}

// Bytes is Write into a fresh buffer.
func (w *Writer) Bytes(ctx context.Context, source []byte, doc *raw.Document, changes *Changes) ([]byte, error) {
	var buf bytes.Buffer
	if err := w.Write(ctx, &buf, source, doc, changes); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (w *Writer) appendUpdate(ctx context.Context, buf *bytes.Buffer, source []byte, doc *raw.Document, changes *Changes) error {
	if doc.StartXRef <= 0 || doc.Repaired {
		return ErrNoPrev
	}
	buf.Write(source)
	if len(source) > 0 && source[len(source)-1] != '\n' && source[len(source)-1] != '\r' {
		buf.WriteByte('\n')
	}
	entries := make(map[int]entry, changes.Len()+1)
	for _, ref := range changes.refs() {
		if err := ctx.Err(); err != nil {
			return err
		}
		entries[ref.Num] = entry{offset: int64(buf.Len()), gen: ref.Gen}
		writeIndirect(buf, ref, changes.objects[ref])
	}

	trailer := trailerFrom(doc.Trailer)
	trailer.Set("Prev", raw.NumberInt(doc.StartXRef))
	trailer.Set("ID", fileID(doc.Trailer, buf.Bytes()))
	if doc.XRefStream || w.cfg.XRefStream {
		return writeXRefStream(buf, changes.Add, trailer, entries, 0)
	}
	trailer.Set("Size", raw.NumberInt(int64(changes.Size())))
	writeXRefTable(buf, trailer, entries, 0)
	return nil
}

func (w *Writer) rewrite(ctx context.Context, buf *bytes.Buffer, doc *raw.Document, changes *Changes) error {
	version := doc.Version
	if version == "" {
		version = "1.7"
	}
	fmt.Fprintf(buf, "%%PDF-%s\n%%\xE2\xE3\xCF\xD3\n", version)

	var encrypt raw.ObjectRef
	if r, ok := doc.Trailer.KV["Encrypt"].(raw.RefObj); ok {
		encrypt = r.R
	}
	objects := make(map[raw.ObjectRef]raw.Object, len(doc.Objects)+changes.Len())
	for ref, obj := range doc.Objects {
		if ref == encrypt && encrypt.Num > 0 {
			continue
		}
		if st, ok := obj.(*raw.StreamObj); ok {
			if typ, _ := st.Dict.NameValue("Type"); typ == "XRef" || typ == "ObjStm" {
				continue
			}
		}
		objects[ref] = obj
	}
	for ref, obj := range changes.objects {
		objects[ref] = obj
	}
	refs := make([]raw.ObjectRef, 0, len(objects))
	for ref := range objects {
		refs = append(refs, ref)
	}
	sortRefs(refs)

	entries := make(map[int]entry, len(refs)+1)
	for _, ref := range refs {
		if err := ctx.Err(); err != nil {
			return err
		}
		entries[ref.Num] = entry{offset: int64(buf.Len()), gen: ref.Gen}
		writeIndirect(buf, ref, objects[ref])
	}

	trailer := trailerFrom(doc.Trailer)
	trailer.Set("ID", fileID(doc.Trailer, buf.Bytes()))
	if w.cfg.XRefStream {
		return writeXRefStream(buf, changes.Add, trailer, entries, changes.Size())
	}
	trailer.Set("Size", raw.NumberInt(int64(changes.Size())))
	writeXRefTable(buf, trailer, entries, changes.Size())
	return nil
}

// trailerFrom keeps the entries of the source trailer that stay valid
// across a save.
func trailerFrom(src *raw.DictObj) *raw.DictObj {
	t := raw.Dict()
	for _, key := range []string{"Root", "Info"} {
		if v, ok := src.Get(key); ok {
			t.Set(key, v)
		}
	}
	return t
}

func writeIndirect(buf *bytes.Buffer, ref raw.ObjectRef, obj raw.Object) {
	fmt.Fprintf(buf, "%d %d obj\n", ref.Num, ref.Gen)
	writeObject(buf, obj)
	buf.WriteString("\nendobj\n")
}

// fileID keeps the first half of an existing /ID and derives the second
// from the bytes written.
func fileID(srcTrailer *raw.DictObj, body []byte) *raw.ArrayObj {
	sum := blake2b.Sum256(body)
	changing := raw.StringObj{Bytes: sum[:16], Hex: true}
	permanent := changing
	if arr, ok := srcTrailer.KV["ID"].(*raw.ArrayObj); ok && arr.Len() > 0 {
		if s, ok := arr.Items[0].(raw.StringObj); ok && len(s.Bytes) > 0 {
			permanent = raw.StringObj{Bytes: s.Bytes, Hex: true}
		}
	}
	return raw.NewArray(permanent, changing)
}

type entry struct {
	offset int64
	gen    int
}

type subsection struct {
	first int
	nums  []int
}

// subsections splits object numbers into runs of consecutive numbers.
func subsections(entries map[int]entry) []subsection {
	nums := make([]int, 0, len(entries))
	for n := range entries {
		nums = append(nums, n)
	}
	sort.Ints(nums)
	var out []subsection
	for _, n := range nums {
		if len(out) > 0 {
			last := &out[len(out)-1]
			if last.first+len(last.nums) == n {
				last.nums = append(last.nums, n)
				continue
			}
		}
		out = append(out, subsection{first: n, nums: []int{n}})
	}
	return out
}

// writeXRefTable writes a classic section. A positive size writes one
// subsection covering every number below it, with gaps marked free;
// otherwise only the given entries are listed.
func writeXRefTable(buf *bytes.Buffer, trailer *raw.DictObj, entries map[int]entry, size int) {
	start := buf.Len()
	buf.WriteString("xref\n")
	if size > 0 {
		fmt.Fprintf(buf, "0 %d\n", size)
		buf.WriteString("0000000000 65535 f\r\n")
		for n := 1; n < size; n++ {
			e, ok := entries[n]
			if !ok {
				buf.WriteString("0000000000 00000 f\r\n")
				continue
			}
			fmt.Fprintf(buf, "%010d %05d n\r\n", e.offset, e.gen)
		}
	} else {
		for _, sub := range subsections(entries) {
			fmt.Fprintf(buf, "%d %d\n", sub.first, len(sub.nums))
			for _, n := range sub.nums {
				fmt.Fprintf(buf, "%010d %05d n\r\n", entries[n].offset, entries[n].gen)
			}
		}
	}
	buf.WriteString("trailer\n")
	writeDict(buf, trailer)
	fmt.Fprintf(buf, "\nstartxref\n%d\n%%%%EOF\n", start)
}

// writeXRefStream appends a cross-reference stream object whose dictionary
// is trailer. alloc reserves the stream's own object number. A positive
// size works as in writeXRefTable.
func writeXRefStream(buf *bytes.Buffer, alloc func(raw.Object) raw.ObjectRef, trailer *raw.DictObj, entries map[int]entry, size int) error {
	st := raw.NewStream(trailer, nil)
	ref := alloc(st)
	start := int64(buf.Len())
	if start > 0xFFFFFFFF {
		return fmt.Errorf("offset %d does not fit the cross-reference stream", start)
	}
	entries[ref.Num] = entry{offset: start}

	var index []raw.Object
	var data []byte
	if size > 0 {
		size = max(size, ref.Num+1)
		index = append(index, raw.NumberInt(0), raw.NumberInt(int64(size)))
		data = appendXRefStreamEntry(data, 0, 0, 0xFF)
		for n := 1; n < size; n++ {
			if e, ok := entries[n]; ok {
				data = appendXRefStreamEntry(data, 1, e.offset, e.gen)
			} else {
				data = appendXRefStreamEntry(data, 0, 0, 0)
			}
		}
	} else {
		for _, sub := range subsections(entries) {
			index = append(index, raw.NumberInt(int64(sub.first)), raw.NumberInt(int64(len(sub.nums))))
			for _, n := range sub.nums {
				data = appendXRefStreamEntry(data, 1, entries[n].offset, entries[n].gen)
			}
		}
		size = ref.Num + 1
	}

	st.Dict.Set("Type", raw.Name("XRef"))
	st.Dict.Set("Size", raw.NumberInt(int64(size)))
	st.Dict.Set("W", raw.NewArray(raw.NumberInt(1), raw.NumberInt(4), raw.NumberInt(1)))
	st.Dict.Set("Index", raw.NewArray(index...))
	st.Data = data
	writeIndirect(buf, ref, st)
	fmt.Fprintf(buf, "startxref\n%d\n%%%%EOF\n", start)
	return nil
}

func appendXRefStreamEntry(buf []byte, typ int, field2 int64, gen int) []byte {
	buf = append(buf, byte(typ))
	offset := uint32(field2)
	buf = append(buf, byte(offset>>24), byte(offset>>16), byte(offset>>8), byte(offset))
	buf = append(buf, byte(gen))
	return buf
}
