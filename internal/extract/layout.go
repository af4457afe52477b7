package extract

import (
	"math"
	"sort"

	"github.com/joseph-ayodele/statements-tracker/internal/amount"
	"github.com/joseph-ayodele/statements-tracker/internal/entity"
)

// layoutPage groups one page's fragments into columns and visual lines and
// returns them in reading order: columns left to right, lines top to bottom,
// fragments left to right.
func layoutPage(frags []entity.Block, cfg Config) []entity.Block {
	if len(frags) == 0 {
		return nil
	}
	splits := columnSplits(frags, cfg.GutterWidth)
	cols := make([][]entity.Block, len(splits)+1)
	for _, f := range frags {
		c := columnOf(f.Box.X+f.Box.W/2, splits)
		f.Column = c
		cols[c] = append(cols[c], f)
	}

	out := make([]entity.Block, 0, len(frags))
	line := 0
	for _, col := range cols {
		for _, ln := range groupLines(col, cfg.LineTolerance) {
			for _, b := range mergeLine(ln, cfg.WordGap) {
				b.Line = line
				out = append(out, b)
			}
			line++
		}
	}
	return out
}

type span struct{ lo, hi float64 }

// columnSplits finds vertical whitespace strips at least gutter wide. A strip
// only separates columns when the region to its right carries labels of its
// own; a strip between labels and their amounts does not.
func columnSplits(frags []entity.Block, gutter float64) []float64 {
	spans := make([]span, 0, len(frags))
	for _, f := range frags {
		spans = append(spans, span{f.Box.X, f.Box.X + f.Box.W})
	}
	sort.Slice(spans, func(i, j int) bool { return spans[i].lo < spans[j].lo })

	merged := []span{spans[0]}
	for _, sp := range spans[1:] {
		cur := &merged[len(merged)-1]
		if sp.lo-cur.hi < gutter {
			cur.hi = math.Max(cur.hi, sp.hi)
			continue
		}
		merged = append(merged, sp)
	}
	if len(merged) < 2 {
		return nil
	}

	candidates := make([]float64, 0, len(merged)-1)
	for i := 1; i < len(merged); i++ {
		candidates = append(candidates, (merged[i-1].hi+merged[i].lo)/2)
	}

	var splits []float64
	for k, c := range candidates {
		hi := math.Inf(1)
		if k+1 < len(candidates) {
			hi = candidates[k+1]
		}
		var seg []entity.Block
		for _, f := range frags {
			if mid := f.Box.X + f.Box.W/2; mid > c && mid < hi {
				seg = append(seg, f)
			}
		}
		if textual(seg) {
			splits = append(splits, c)
		}
	}
	return splits
}

// textual reports whether a region holds labels on at least two lines.
func textual(seg []entity.Block) bool {
	if len(seg) == 0 {
		return false
	}
	text := 0
	lines := map[int]struct{}{}
	for _, f := range seg {
		if !amount.LooksNumeric(f.Text) {
			text++
			lines[int(math.Round(f.Box.Y))] = struct{}{}
		}
	}
	return text >= 2 && len(lines) >= 2 && float64(text)/float64(len(seg)) >= 0.4
}

func columnOf(x float64, splits []float64) int {
	c := 0
	for _, s := range splits {
		if x > s {
			c++
		}
	}
	return c
}

// groupLines clusters fragments whose baselines lie within tol of the first
// fragment of the line.
func groupLines(frags []entity.Block, tol float64) [][]entity.Block {
	if len(frags) == 0 {
		return nil
	}
	sorted := append([]entity.Block(nil), frags...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Box.Y != sorted[j].Box.Y {
			return sorted[i].Box.Y < sorted[j].Box.Y
		}
		return sorted[i].Box.X < sorted[j].Box.X
	})

	var (
		lines [][]entity.Block
		cur   []entity.Block
		y     float64
	)
	for _, f := range sorted {
		if len(cur) > 0 && math.Abs(f.Box.Y-y) > tol {
			lines = append(lines, cur)
			cur = nil
		}
		if len(cur) == 0 {
			y = f.Box.Y
		}
		cur = append(cur, f)
	}
	lines = append(lines, cur)

	for _, ln := range lines {
		sort.SliceStable(ln, func(i, j int) bool { return ln[i].Box.X < ln[j].Box.X })
	}
	return lines
}

// mergeLine joins adjacent label fragments closer than gap. Amounts are never
// merged with each other or with labels.
func mergeLine(ln []entity.Block, gap float64) []entity.Block {
	out := make([]entity.Block, 0, len(ln))
	for _, f := range ln {
		if n := len(out); n > 0 {
			prev := &out[n-1]
			d := f.Box.X - (prev.Box.X + prev.Box.W)
			if d <= gap && !amount.LooksNumeric(prev.Text) && !amount.LooksNumeric(f.Text) {
				prev.Text += " " + f.Text
				prev.Box.W = math.Max(prev.Box.W, f.Box.X+f.Box.W-prev.Box.X)
				prev.Box.H = math.Max(prev.Box.H, f.Box.H)
				continue
			}
		}
		out = append(out, f)
	}
	return out
}
