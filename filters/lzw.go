package filters

import (
	"context"

	"github.com/wudi/pdfedit/ir/raw"
)

// compress/lzw cannot be used: PDF LZW is MSB-first with an optional
// "early change" code-width switch that the standard package lacks.
type lzwDecoder struct{}

func (lzwDecoder) Name() string { return "LZWDecode" }
func NewLZWDecoder() Decoder    { return lzwDecoder{} }

func (lzwDecoder) Decode(ctx context.Context, in []byte, params *raw.DictObj) ([]byte, error) {
	early := 1
	if params != nil {
		if v, ok := params.IntValue("EarlyChange"); ok {
			early = int(v)
		}
	}
	const (
		clearCode = 256
		eodCode   = 257
	)
	table := make([][]byte, 0, 4096)
	width := 9
	var prev []byte
	reset := func() {
		table = table[:0]
		for i := 0; i < 256; i++ {
			table = append(table, []byte{byte(i)})
		}
		table = append(table, nil, nil)
		width = 9
		prev = nil
	}
	reset()

	var (
		out    []byte
		bitBuf uint32
		bitCnt int
	)
	for i := 0; i < len(in); i++ {
		bitBuf = bitBuf<<8 | uint32(in[i])
		bitCnt += 8
		for bitCnt >= width {
			code := int(bitBuf>>(bitCnt-width)) & (1<<width - 1)
			bitCnt -= width
			switch {
			case code == clearCode:
				reset()
				continue
			case code == eodCode:
				return applyPredictor(out, params)
			}
			var entry []byte
			if code < len(table) && table[code] != nil {
				entry = table[code]
			} else if code == len(table) && prev != nil {
				entry = append(append([]byte{}, prev...), prev[0])
			} else {
				return applyPredictor(out, params)
			}
			out = append(out, entry...)
			if prev != nil && len(table) < 4096 {
				next := append(append(make([]byte, 0, len(prev)+1), prev...), entry[0])
				table = append(table, next)
			}
			prev = entry
			if len(table)+early >= 1<<width && width < 12 {
				width++
			}
		}
	}
	return applyPredictor(out, params)
}
