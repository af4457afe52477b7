package extract

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/joseph-ayodele/statements-tracker/internal/amount"
	"github.com/joseph-ayodele/statements-tracker/internal/entity"
)

// Plain text has no geometry; positions are synthesized from a monospace grid.
const (
	charWidth  = 6.0
	lineHeight = 12.0
)

// fieldRun matches words separated by single spaces; runs of two or more
// spaces separate fields.
var fieldRun = regexp.MustCompile(`\S+(?: \S+)*`)

// extractText treats form feeds as page breaks.
func (s *Service) extractText(data []byte) []entity.Block {
	text := strings.ReplaceAll(string(trimBOM(data)), "\r\n", "\n")
	var blocks []entity.Block
	for p, page := range strings.Split(text, "\f") {
		var frags []entity.Block
		for i, line := range strings.Split(page, "\n") {
			line = strings.ReplaceAll(line, "\t", "        ")
			for _, loc := range fieldRun.FindAllStringIndex(line, -1) {
				col := utf8.RuneCountInString(line[:loc[0]])
				frags = append(frags, splitField(line[loc[0]:loc[1]], col, i, p+1)...)
			}
		}
		blocks = append(blocks, layoutPage(frags, s.cfg)...)
	}
	return blocks
}

// splitField peels trailing amounts off a field so "Total assets 1,000"
// yields a label fragment and an amount fragment.
func splitField(field string, col, line, page int) []entity.Block {
	words := strings.Split(field, " ")
	j := len(words)
	for j > 0 && !strings.HasSuffix(words[j-1], ",") && amount.LooksNumeric(words[j-1]) {
		j--
	}

	var out []entity.Block
	frag := func(text string, at int) {
		out = append(out, entity.Block{
			Kind: entity.TextBlock,
			Page: page,
			Box: entity.Box{
				X: float64(at) * charWidth,
				Y: float64(line) * lineHeight,
				W: float64(utf8.RuneCountInString(text)) * charWidth,
				H: lineHeight,
			},
			Text: text,
			Row:  -1,
			Col:  -1,
		})
	}
	if j > 0 {
		frag(strings.Join(words[:j], " "), col)
	}
	at := col
	for k, w := range words {
		if k >= j {
			frag(w, at)
		}
		at += utf8.RuneCountInString(w) + 1
	}
	return out
}
