package entity

import "strings"

// Line is a run of blocks sharing one visual line (text) or one row (cells).
type Line struct {
	Page   int
	Sheet  string
	Blocks []Block
}

// FirstSeq is the Seq of the line's first block.
func (l Line) FirstSeq() int { return l.Blocks[0].Seq }

// LastSeq is the Seq of the line's last block.
func (l Line) LastSeq() int { return l.Blocks[len(l.Blocks)-1].Seq }

// Text joins the line's block texts with single spaces.
func (l Line) Text() string {
	parts := make([]string, len(l.Blocks))
	for i, b := range l.Blocks {
		parts[i] = b.Text
	}
	return strings.Join(parts, " ")
}

// GroupLines splits blocks, already in reading order, into lines. Consecutive
// blocks with the same page, sheet, layout column and line share a line.
func GroupLines(blocks []Block) []Line {
	var out []Line
	for _, b := range blocks {
		if n := len(out); n > 0 {
			prev := out[n-1].Blocks[len(out[n-1].Blocks)-1]
			if prev.Page == b.Page && prev.Sheet == b.Sheet && prev.Column == b.Column && prev.Line == b.Line {
				out[n-1].Blocks = append(out[n-1].Blocks, b)
				continue
			}
		}
		out = append(out, Line{Page: b.Page, Sheet: b.Sheet, Blocks: []Block{b}})
	}
	return out
}
