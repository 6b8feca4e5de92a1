package filters

import (
	"bytes"
	"compress/flate"
	"context"
	"errors"
	"testing"

	"github.com/wudi/pdfedit/ir/raw"
)

func TestFlateDecode(t *testing.T) {
	enc, err := EncodeFlate([]byte("hello world"))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	out, err := NewFlateDecoder().Decode(context.Background(), enc, nil)
	if err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if string(out) != "hello world" {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestFlateDecodeWithoutZlibHeader(t *testing.T) {
	var buf bytes.Buffer
	w, _ := flate.NewWriter(&buf, flate.BestSpeed)
	w.Write([]byte("raw deflate"))
	w.Close()

	out, err := NewFlateDecoder().Decode(context.Background(), buf.Bytes(), nil)
	if err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if string(out) != "raw deflate" {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestFlateDecodeWithPNGPredictor(t *testing.T) {
	// Two rows of three bytes: Sub filter then Up filter.
	enc, _ := EncodeFlate([]byte{1, 10, 2, 3, 2, 1, 1, 1})
	params := raw.Dict()
	params.Set("Predictor", raw.NumberInt(12))
	params.Set("Columns", raw.NumberInt(3))

	out, err := NewFlateDecoder().Decode(context.Background(), enc, params)
	if err != nil {
		t.Fatalf("decode error: %v", err)
	}
	want := []byte{10, 12, 15, 11, 13, 16}
	if !bytes.Equal(out, want) {
		t.Fatalf("expected %v, got %v", want, out)
	}
}

func TestASCIIDecoders(t *testing.T) {
	out, err := NewASCIIHexDecoder().Decode(context.Background(), []byte("48 65 6C 6C 6F 2>"), nil)
	if err != nil {
		t.Fatalf("hex: %v", err)
	}
	if string(out) != "Hello " {
		t.Fatalf("unexpected hex output %q", out)
	}

	out, err = NewASCII85Decoder().Decode(context.Background(), []byte("<~87cURD]i,\"Ebo80~>"), nil)
	if err != nil {
		t.Fatalf("a85: %v", err)
	}
	if string(out) != "Hello World" {
		t.Fatalf("unexpected a85 output %q", out)
	}
}

func TestRunLengthDecode(t *testing.T) {
	in := []byte{2, 'a', 'b', 'c', 254, 'z', 128}
	out, err := NewRunLengthDecoder().Decode(context.Background(), in, nil)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if string(out) != "abczzz" {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestLZWDecode(t *testing.T) {
	// Example from ISO 32000-1 7.4.4.2: 45 45 45 45 45 65 45 45 45 66
	in := []byte{0x80, 0x0B, 0x60, 0x50, 0x22, 0x0C, 0x0C, 0x85, 0x01}
	out, err := NewLZWDecoder().Decode(context.Background(), in, nil)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := []byte{45, 45, 45, 45, 45, 65, 45, 45, 45, 66}
	if !bytes.Equal(out, want) {
		t.Fatalf("expected %v, got %v", want, out)
	}
}

func TestPipelineChainsAndAbbreviations(t *testing.T) {
	enc, _ := EncodeFlate([]byte("chained"))
	hexed := []byte{}
	for _, b := range enc {
		hexed = append(hexed, "0123456789ABCDEF"[b>>4], "0123456789ABCDEF"[b&15])
	}
	hexed = append(hexed, '>')

	p := NewDefaultPipeline()
	out, err := p.Decode(context.Background(), hexed, []string{"AHx", "Fl"}, nil)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if string(out) != "chained" {
		t.Fatalf("unexpected output %q", out)
	}
	if _, err := p.Decode(context.Background(), hexed, []string{"JBIG2Decode"}, nil); !errors.Is(err, ErrUnknownFilter) {
		t.Fatalf("expected ErrUnknownFilter, got %v", err)
	}
}

func TestDecodeStreamResolvesFilterNames(t *testing.T) {
	enc, _ := EncodeFlate([]byte("BT ET"))
	doc := raw.NewDocument()
	doc.Objects[raw.ObjectRef{Num: 4}] = raw.Name("FlateDecode")
	dict := raw.Dict()
	dict.Set("Filter", raw.Ref(4, 0))
	out, err := NewDefaultPipeline().DecodeStream(context.Background(), doc, raw.NewStream(dict, enc))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if string(out) != "BT ET" {
		t.Fatalf("unexpected output %q", out)
	}
}
