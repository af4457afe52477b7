package extract

import (
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/joseph-ayodele/statements-tracker/internal/entity"
)

type tokKind int

const (
	tokNumber tokKind = iota
	tokString
	tokName
	tokOp
	tokArray
)

type token struct {
	kind  tokKind
	num   float64
	str   string
	items []token
}

// lexer tokenizes a decoded page content stream.
type lexer struct {
	data []byte
	pos  int
}

func isWhite(c byte) bool {
	return c == ' ' || c == '\n' || c == '\r' || c == '\t' || c == '\f' || c == 0
}

func isDelim(c byte) bool {
	return strings.IndexByte("()<>[]{}/%", c) >= 0
}

func (l *lexer) skipSpace() {
	for l.pos < len(l.data) {
		c := l.data[l.pos]
		switch {
		case isWhite(c):
			l.pos++
		case c == '%':
			for l.pos < len(l.data) && l.data[l.pos] != '\n' && l.data[l.pos] != '\r' {
				l.pos++
			}
		default:
			return
		}
	}
}

func (l *lexer) next() (token, bool) {
	l.skipSpace()
	if l.pos >= len(l.data) {
		return token{}, false
	}
	c := l.data[l.pos]
	switch {
	case c == '(':
		l.pos++
		return token{kind: tokString, str: l.literal()}, true
	case c == '<' && l.pos+1 < len(l.data) && l.data[l.pos+1] == '<':
		l.pos += 2
		return token{kind: tokOp, str: "<<"}, true
	case c == '>' && l.pos+1 < len(l.data) && l.data[l.pos+1] == '>':
		l.pos += 2
		return token{kind: tokOp, str: ">>"}, true
	case c == '<':
		l.pos++
		return token{kind: tokString, str: l.hex()}, true
	case c == '[':
		l.pos++
		var items []token
		for {
			l.skipSpace()
			if l.pos >= len(l.data) {
				break
			}
			if l.data[l.pos] == ']' {
				l.pos++
				break
			}
			t, ok := l.next()
			if !ok {
				break
			}
			items = append(items, t)
		}
		return token{kind: tokArray, items: items}, true
	case c == '/':
		l.pos++
		start := l.pos
		for l.pos < len(l.data) && !isWhite(l.data[l.pos]) && !isDelim(l.data[l.pos]) {
			l.pos++
		}
		return token{kind: tokName, str: string(l.data[start:l.pos])}, true
	case c == ']' || c == ')' || c == '>' || c == '{' || c == '}':
		l.pos++
		return token{kind: tokOp, str: string(c)}, true
	}

	start := l.pos
	for l.pos < len(l.data) && !isWhite(l.data[l.pos]) && !isDelim(l.data[l.pos]) {
		l.pos++
	}
	word := string(l.data[start:l.pos])
	if f, err := strconv.ParseFloat(word, 64); err == nil {
		return token{kind: tokNumber, num: f}, true
	}
	return token{kind: tokOp, str: word}, true
}

// literal reads a (...) string; the opening paren is already consumed.
func (l *lexer) literal() string {
	var sb strings.Builder
	depth := 1
	for l.pos < len(l.data) {
		c := l.data[l.pos]
		l.pos++
		switch c {
		case '(':
			depth++
			sb.WriteByte(c)
		case ')':
			depth--
			if depth == 0 {
				return latin1(sb.String())
			}
			sb.WriteByte(c)
		case '\\':
			if l.pos >= len(l.data) {
				continue
			}
			e := l.data[l.pos]
			l.pos++
			switch e {
			case 'n':
				sb.WriteByte('\n')
			case 'r':
				sb.WriteByte('\r')
			case 't':
				sb.WriteByte('\t')
			case 'b', 'f':
			case '\r', '\n':
				// line continuation
				if e == '\r' && l.pos < len(l.data) && l.data[l.pos] == '\n' {
					l.pos++
				}
			default:
				if e >= '0' && e <= '7' {
					val := int(e - '0')
					for i := 0; i < 2 && l.pos < len(l.data) && l.data[l.pos] >= '0' && l.data[l.pos] <= '7'; i++ {
						val = val*8 + int(l.data[l.pos]-'0')
						l.pos++
					}
					sb.WriteByte(byte(val))
				} else {
					sb.WriteByte(e)
				}
			}
		default:
			sb.WriteByte(c)
		}
	}
	return latin1(sb.String())
}

// hex reads a <...> string; the opening bracket is already consumed.
func (l *lexer) hex() string {
	var digits []byte
	for l.pos < len(l.data) && l.data[l.pos] != '>' {
		c := l.data[l.pos]
		if (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F') {
			digits = append(digits, c)
		}
		l.pos++
	}
	l.pos++ // '>'
	if len(digits)%2 == 1 {
		digits = append(digits, '0')
	}
	raw := make([]byte, 0, len(digits)/2)
	for i := 0; i < len(digits); i += 2 {
		v, _ := strconv.ParseUint(string(digits[i:i+2]), 16, 8)
		raw = append(raw, byte(v))
	}
	// Two-byte strings with a UTF-16 BOM are decoded, anything else is single-byte.
	if len(raw) >= 2 && raw[0] == 0xfe && raw[1] == 0xff {
		var sb strings.Builder
		for i := 2; i+1 < len(raw); i += 2 {
			sb.WriteRune(rune(raw[i])<<8 | rune(raw[i+1]))
		}
		return sb.String()
	}
	return latin1(string(raw))
}

// latin1 maps single-byte text onto runes.
func latin1(s string) string {
	if utf8.ValidString(s) {
		return s
	}
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		sb.WriteRune(rune(s[i]))
	}
	return sb.String()
}

// skipInlineImage advances past binary inline image data up to EI.
func (l *lexer) skipInlineImage() {
	for l.pos+2 < len(l.data) {
		if isWhite(l.data[l.pos]) && l.data[l.pos+1] == 'E' && l.data[l.pos+2] == 'I' &&
			(l.pos+3 >= len(l.data) || isWhite(l.data[l.pos+3])) {
			l.pos += 3
			return
		}
		l.pos++
	}
	l.pos = len(l.data)
}

// matrix is an affine transform [a b c d e f].
type matrix [6]float64

var identity = matrix{1, 0, 0, 1, 0, 0}

// mul returns m × n.
func (m matrix) mul(n matrix) matrix {
	return matrix{
		m[0]*n[0] + m[1]*n[2],
		m[0]*n[1] + m[1]*n[3],
		m[2]*n[0] + m[3]*n[2],
		m[2]*n[1] + m[3]*n[3],
		m[4]*n[0] + m[5]*n[2] + n[4],
		m[4]*n[1] + m[5]*n[3] + n[5],
	}
}

func translate(tx, ty float64) matrix { return matrix{1, 0, 0, 1, tx, ty} }

// glyphWidth approximates an average glyph advance as a fraction of the font size.
const glyphWidth = 0.5

type textState struct {
	ctm      matrix
	stack    []matrix
	tm, tlm  matrix
	fontSize float64
	leading  float64
}

// parseContentStream interprets text operators and returns one positioned
// fragment per shown string. Y is negated so that it grows downward.
func parseContentStream(data []byte, page int) []entity.Block {
	lx := &lexer{data: data}
	st := textState{ctm: identity, tm: identity, tlm: identity, fontSize: 12}
	var (
		operands []token
		out      []entity.Block
	)

	show := func(text string) {
		n := utf8.RuneCountInString(text)
		trm := st.tm.mul(st.ctm)
		size := st.fontSize * math.Hypot(trm[2], trm[3])
		if size == 0 {
			size = st.fontSize
		}
		if strings.TrimSpace(text) != "" {
			out = append(out, entity.Block{
				Kind: entity.TextBlock,
				Page: page,
				Box: entity.Box{
					X: trm[4],
					Y: -trm[5],
					W: float64(n) * size * glyphWidth,
					H: size,
				},
				Text: strings.TrimSpace(text),
				Row:  -1,
				Col:  -1,
			})
		}
		st.tm = translate(float64(n)*st.fontSize*glyphWidth, 0).mul(st.tm)
	}
	nextLine := func() {
		st.tlm = translate(0, -st.leading).mul(st.tlm)
		st.tm = st.tlm
	}
	num := func(i int) float64 {
		if i < len(operands) && operands[i].kind == tokNumber {
			return operands[i].num
		}
		return 0
	}
	lastString := func() (string, bool) {
		for i := len(operands) - 1; i >= 0; i-- {
			if operands[i].kind == tokString {
				return operands[i].str, true
			}
		}
		return "", false
	}

	for {
		t, ok := lx.next()
		if !ok {
			break
		}
		if t.kind != tokOp {
			operands = append(operands, t)
			continue
		}
		switch t.str {
		case "q":
			st.stack = append(st.stack, st.ctm)
		case "Q":
			if n := len(st.stack); n > 0 {
				st.ctm = st.stack[n-1]
				st.stack = st.stack[:n-1]
			}
		case "cm":
			if len(operands) >= 6 {
				st.ctm = matrix{num(0), num(1), num(2), num(3), num(4), num(5)}.mul(st.ctm)
			}
		case "BT":
			st.tm, st.tlm = identity, identity
		case "Tf":
			if s := num(1); s != 0 {
				st.fontSize = math.Abs(s)
			}
		case "TL":
			st.leading = num(0)
		case "Td", "TD":
			if t.str == "TD" {
				st.leading = -num(1)
			}
			st.tlm = translate(num(0), num(1)).mul(st.tlm)
			st.tm = st.tlm
		case "Tm":
			if len(operands) >= 6 {
				st.tlm = matrix{num(0), num(1), num(2), num(3), num(4), num(5)}
				st.tm = st.tlm
			}
		case "T*":
			nextLine()
		case "Tj":
			if s, ok := lastString(); ok {
				show(s)
			}
		case "'", "\"":
			nextLine()
			if s, ok := lastString(); ok {
				show(s)
			}
		case "TJ":
			if len(operands) > 0 && operands[len(operands)-1].kind == tokArray {
				show(joinTJ(operands[len(operands)-1].items))
			}
		case "ID":
			lx.skipInlineImage()
		}
		operands = operands[:0]
	}
	return out
}

// joinTJ concatenates a TJ array, turning large negative kerning into spaces.
func joinTJ(items []token) string {
	var sb strings.Builder
	for _, it := range items {
		switch it.kind {
		case tokString:
			sb.WriteString(it.str)
		case tokNumber:
			if it.num < -200 {
				sb.WriteByte(' ')
			}
		}
	}
	return sb.String()
}
