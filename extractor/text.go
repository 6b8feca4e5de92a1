package extractor

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"unicode"

	"github.com/wudi/pdfedit/contentstream"
	"github.com/wudi/pdfedit/coords"
	"github.com/wudi/pdfedit/ir/raw"
	"github.com/wudi/pdfedit/model"
	"github.com/wudi/pdfedit/parser"
)

// spaceAdjust is the TJ displacement, in thousandths of an em, past which a
// gap inside one operation is read as a word break.
const spaceAdjust = 200

type pageBuilder struct {
	ctx    context.Context
	doc    *raw.Document
	info   parser.PageInfo
	fc     *fontCatalog
	ex     *Extractor
	interp *contentstream.Interpreter
	res    []*raw.DictObj // resource stack, innermost last
	forms  []*raw.StreamObj
	runs   []model.TextRun
	seq    int
}

func (e *Extractor) page(ctx context.Context, doc *raw.Document, info parser.PageInfo, fc *fontCatalog) (model.Page, error) {
	page := model.Page{
		Index:    info.Index,
		Width:    info.MediaBox.Width(),
		Height:   info.MediaBox.Height(),
		Rotation: info.Rotate,
	}
	content, err := parser.PageContents(ctx, doc, info, e.pipeline)
	if err != nil {
		return page, fmt.Errorf("%w: %w", ErrCorruptContentStream, err)
	}
	ops, err := contentstream.Parse(content)
	if err != nil {
		return page, fmt.Errorf("%w: page %d: %w", ErrCorruptContentStream, info.Index+1, err)
	}

	b := &pageBuilder{ctx: ctx, doc: doc, info: info, fc: fc, ex: e, res: []*raw.DictObj{info.Resources}}
	b.interp = &contentstream.Interpreter{OnText: b.onText, OnXObject: b.onXObject}
	if err := b.interp.Run(ops, contentstream.NewState(coords.Identity())); err != nil {
		return page, fmt.Errorf("%w: page %d: %w", ErrCorruptContentStream, info.Index+1, err)
	}
	page.TextRuns = orderRuns(b.runs, e.cfg.RowTolerance)
	return page, nil
}

func (b *pageBuilder) resources() *raw.DictObj { return b.res[len(b.res)-1] }

func (b *pageBuilder) onText(st *contentstream.State, show contentstream.TextShow) float64 {
	font := b.fc.lookup(b.resources(), st.Font)
	size, hs := st.FontSize, st.HScale

	var (
		sb strings.Builder
		tx float64
	)
	for _, seg := range show.Segments {
		if seg.IsAdjust {
			tx -= seg.Adjust / 1000 * size * hs
			if -seg.Adjust > spaceAdjust && sb.Len() > 0 && !strings.HasSuffix(sb.String(), " ") {
				sb.WriteByte(' ')
			}
			continue
		}
		for _, g := range font.Decode(seg.Bytes) {
			sb.WriteString(g.Text)
			adv := g.Width/1000*size + st.CharSpacing
			if g.WordSpace {
				adv += st.WordSpacing
			}
			tx += adv * hs
		}
	}

	text := strings.TrimRightFunc(sb.String(), unicode.IsSpace)
	if strings.TrimSpace(text) == "" || !st.RenderMode.Visible() {
		return tx
	}

	base := st.BaselineMatrix()
	origin := base.Transform(coords.Point{})
	fontSize := round(size*base.ScaleY(), 4)
	width := math.Abs(tx) * base.ScaleX()
	if width == 0 {
		width = coords.HeuristicWidth(text, fontSize)
	}

	b.fc.note(font)
	pdfName := font.BaseFont
	if pdfName == "" {
		pdfName = font.ResourceName
	}
	run := model.TextRun{
		ID:           fmt.Sprintf("p%d-r%d", b.info.Index, b.seq),
		PageIndex:    b.info.Index,
		Seq:          b.seq,
		Text:         text,
		PDFX:         round(origin.X, 4),
		PDFBaselineY: round(origin.Y, 4),
		Transform:    st.TextRenderingMatrix(),
		FontSize:     fontSize,
		FontFamily:   font.Family,
		PDFFontName:  pdfName,
		FontWeight:   weightOf(font.Bold),
		FontStyle:    styleOf(font.Italic),
		Color:        hexColor(st.FillColor),
		Source: model.RunSource{
			Start:    show.Op.Start,
			End:      show.Op.End,
			Advance:  tx,
			TextSize: size,
			HScale:   hs,
			InForm:   len(b.forms) > 0,
		},
	}
	b.seq++
	run.X = run.PDFX
	run.Y = coords.UIY(b.info.MediaBox.Height(), run.PDFBaselineY, run.FontSize)
	run.Width = round(width, 4)
	run.Height = run.FontSize
	b.runs = append(b.runs, run)
	return tx
}

// onXObject descends into form XObjects so text they draw is extracted.
func (b *pageBuilder) onXObject(st *contentstream.State, name string) error {
	xobjs, ok := b.doc.DictValue(b.resources(), "XObject")
	if !ok {
		return nil
	}
	form, ok := b.doc.Resolve(xobjs.KV[name]).(*raw.StreamObj)
	if !ok {
		return nil
	}
	if subtype, _ := b.doc.AsName(form.Dict.KV["Subtype"]); subtype != "Form" {
		return nil
	}
	if len(b.forms) >= b.ex.cfg.MaxFormDepth {
		return nil
	}
	for _, f := range b.forms {
		if f == form {
			return nil
		}
	}

	data, err := b.ex.pipeline.DecodeStream(b.ctx, b.doc, form)
	if err != nil {
		return fmt.Errorf("form %s: %w", name, err)
	}
	ops, err := contentstream.Parse(data)
	if err != nil {
		return fmt.Errorf("form %s: %w", name, err)
	}

	matrix := coords.Identity()
	if arr, ok := b.doc.AsArray(form.Dict.KV["Matrix"]); ok && arr.Len() == 6 {
		for i := range matrix {
			matrix[i], _ = b.doc.AsNumber(arr.Items[i])
		}
	}
	res, ok := b.doc.DictValue(form.Dict, "Resources")
	if !ok {
		res = b.resources()
	}

	b.res = append(b.res, res)
	b.forms = append(b.forms, form)
	defer func() {
		b.res = b.res[:len(b.res)-1]
		b.forms = b.forms[:len(b.forms)-1]
	}()
	return b.interp.RunForm(ops, matrix, st)
}

// orderRuns sorts runs into rows, top to bottom, then left to right within
// a row. Runs whose tops are within tolerance of the row's first run share
// the row.
func orderRuns(runs []model.TextRun, tolerance float64) []model.TextRun {
	if len(runs) == 0 {
		return []model.TextRun{}
	}
	out := append([]model.TextRun(nil), runs...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Y != out[j].Y {
			return out[i].Y < out[j].Y
		}
		return out[i].Seq < out[j].Seq
	})
	for start := 0; start < len(out); {
		end := start + 1
		for end < len(out) && out[end].Y-out[start].Y <= tolerance {
			end++
		}
		row := out[start:end]
		sort.SliceStable(row, func(i, j int) bool {
			if row[i].X != row[j].X {
				return row[i].X < row[j].X
			}
			return row[i].Seq < row[j].Seq
		})
		start = end
	}
	return out
}

func hexColor(c contentstream.RGB) string {
	return fmt.Sprintf("#%02x%02x%02x", channel(c[0]), channel(c[1]), channel(c[2]))
}

func channel(v float64) int {
	return int(math.Round(math.Max(0, math.Min(1, v)) * 255))
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
