package sections

import (
	"math"
	"sort"
	"strings"

	"github.com/wudi/pdfedit/model"
)

// baselineTolerance is the baseline distance under which consecutive runs
// share a visual line.
const baselineTolerance = 5

type line struct {
	page int
	runs []model.TextRun
	text string
}

func (l line) runIDs() []string {
	ids := make([]string, len(l.runs))
	for i, r := range l.runs {
		ids[i] = r.ID
	}
	return ids
}

func (l line) leadingX() float64 { return l.runs[0].X }

type pageRuns struct {
	index int
	runs  []model.TextRun
}

// groupPages partitions runs by page in ascending page order.
func groupPages(runs []model.TextRun) []pageRuns {
	byPage := make(map[int][]model.TextRun)
	var indexes []int
	for _, r := range runs {
		if _, ok := byPage[r.PageIndex]; !ok {
			indexes = append(indexes, r.PageIndex)
		}
		byPage[r.PageIndex] = append(byPage[r.PageIndex], r)
	}
	sort.Ints(indexes)
	out := make([]pageRuns, len(indexes))
	for i, idx := range indexes {
		out[i] = pageRuns{index: idx, runs: byPage[idx]}
	}
	return out
}

// groupLines sorts a page's runs by baseline, top first, and sweeps them
// into lines read left to right.
func groupLines(page int, runs []model.TextRun) []line {
	sorted := append([]model.TextRun(nil), runs...)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.PDFBaselineY != b.PDFBaselineY {
			return a.PDFBaselineY > b.PDFBaselineY
		}
		if a.PDFX != b.PDFX {
			return a.PDFX < b.PDFX
		}
		return a.Seq < b.Seq
	})

	var lines []line
	var cur []model.TextRun
	flush := func() {
		if len(cur) == 0 {
			return
		}
		sort.SliceStable(cur, func(i, j int) bool { return cur[i].PDFX < cur[j].PDFX })
		lines = append(lines, line{page: page, runs: cur, text: joinRuns(cur)})
		cur = nil
	}
	for i, r := range sorted {
		if i > 0 && math.Abs(sorted[i-1].PDFBaselineY-r.PDFBaselineY) >= baselineTolerance {
			flush()
		}
		cur = append(cur, r)
	}
	flush()
	return lines
}

// joinRuns concatenates run texts with single spaces.
func joinRuns(runs []model.TextRun) string {
	parts := make([]string, len(runs))
	for i, r := range runs {
		parts[i] = r.Text
	}
	return strings.Join(strings.Fields(strings.Join(parts, " ")), " ")
}

func meanFontSize(runs []model.TextRun) float64 {
	if len(runs) == 0 {
		return 0
	}
	var sum float64
	for _, r := range runs {
		sum += r.FontSize
	}
	return sum / float64(len(runs))
}
