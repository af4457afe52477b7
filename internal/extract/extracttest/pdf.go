// Package extracttest builds small documents for tests.
package extracttest

import (
	"fmt"
	"strings"
)

// Text is one string drawn at (X, Y) in PDF user space (origin bottom-left).
type Text struct {
	X, Y float64
	S    string
}

// Row draws a label at x=72 and its amounts in columns from x=400, 80pt apart.
func Row(y float64, label string, amounts ...string) []Text {
	out := []Text{{X: 72, Y: y, S: label}}
	for i, a := range amounts {
		out = append(out, Text{X: 400 + float64(i)*80, Y: y, S: a})
	}
	return out
}

// PDF returns an uncompressed PDF with one page per argument, using Helvetica
// at 10pt and a correct cross-reference table.
func PDF(pages ...[]Text) []byte {
	n := len(pages)
	total := 3 + 2*n
	offsets := make([]int, total+1)

	var b strings.Builder
	b.WriteString("%PDF-1.4\n")

	offsets[1] = b.Len()
	b.WriteString("1 0 obj\n<< /Type /Catalog /Pages 2 0 R >>\nendobj\n")

	kids := make([]string, n)
	for i := range pages {
		kids[i] = fmt.Sprintf("%d 0 R", 4+2*i)
	}
	offsets[2] = b.Len()
	fmt.Fprintf(&b, "2 0 obj\n<< /Type /Pages /Kids [%s] /Count %d >>\nendobj\n", strings.Join(kids, " "), n)

	offsets[3] = b.Len()
	b.WriteString("3 0 obj\n<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>\nendobj\n")

	for i, texts := range pages {
		pageObj, contentObj := 4+2*i, 5+2*i

		offsets[pageObj] = b.Len()
		fmt.Fprintf(&b, "%d 0 obj\n<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Contents %d 0 R /Resources << /Font << /F1 3 0 R >> >> >>\nendobj\n", pageObj, contentObj)

		var s strings.Builder
		for _, t := range texts {
			fmt.Fprintf(&s, "BT\n/F1 10 Tf\n%g %g Td\n(%s) Tj\nET\n", t.X, t.Y, escape(t.S))
		}
		stream := s.String()
		offsets[contentObj] = b.Len()
		fmt.Fprintf(&b, "%d 0 obj\n<< /Length %d >>\nstream\n%s\nendstream\nendobj\n", contentObj, len(stream), stream)
	}

	xref := b.Len()
	fmt.Fprintf(&b, "xref\n0 %d\n", total+1)
	b.WriteString("0000000000 65535 f \n")
	for i := 1; i <= total; i++ {
		fmt.Fprintf(&b, "%010d 00000 n \n", offsets[i])
	}
	fmt.Fprintf(&b, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", total+1, xref)
	return []byte(b.String())
}

func escape(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, "(", `\(`)
	return strings.ReplaceAll(s, ")", `\)`)
}
