package matchexpr

import (
	"strconv"
	"strings"
)

type elemKind int

const (
	elemLiteral  elemKind = iota
	elemAnyNoDot          // *
	elemAny               // **
	elemOne               // ?
	elemSet               // {a-z}
	elemRange             // {10..20}
)

type patternElem struct {
	kind      elemKind
	literal   string
	set       []runeRange
	negate    bool
	low, high int64
	hasLow    bool
	hasHigh   bool
}

type runeRange struct{ lo, hi rune }

// Pattern is a compiled glob pattern. "*" matches any run of characters
// except '.', "**" matches anything, "?" matches one character other than
// '.', "{a-z_}" matches one character of a set ("{^a-z}" negates it) and
// "{10..20}" matches a decimal integer in the inclusive range; either bound
// may be omitted. A backslash escapes the next character.
type Pattern struct {
	src   string
	elems []patternElem
}

// CompilePattern parses a glob pattern.
func CompilePattern(src string) (*Pattern, error) {
	p := &Pattern{src: src}
	var lit strings.Builder
	flush := func() {
		if lit.Len() > 0 {
			p.elems = append(p.elems, patternElem{kind: elemLiteral, literal: lit.String()})
			lit.Reset()
		}
	}
	rs := []rune(src)
	for i := 0; i < len(rs); i++ {
		switch c := rs[i]; c {
		case '\\':
			if i+1 >= len(rs) {
				return nil, &SyntaxError{Expr: src, Pos: i, Msg: "dangling escape"}
			}
			i++
			lit.WriteRune(rs[i])
		case '*':
			flush()
			if i+1 < len(rs) && rs[i+1] == '*' {
				i++
				p.elems = append(p.elems, patternElem{kind: elemAny})
			} else {
				p.elems = append(p.elems, patternElem{kind: elemAnyNoDot})
			}
		case '?':
			flush()
			p.elems = append(p.elems, patternElem{kind: elemOne})
		case '{':
			flush()
			end := i + 1
			for end < len(rs) && rs[end] != '}' {
				end++
			}
			if end >= len(rs) {
				return nil, &SyntaxError{Expr: src, Pos: i, Msg: "unterminated '{'"}
			}
			elem, err := parseBraces(src, i, string(rs[i+1:end]))
			if err != nil {
				return nil, err
			}
			p.elems = append(p.elems, elem)
			i = end
		default:
			lit.WriteRune(c)
		}
	}
	flush()
	return p, nil
}

func parseBraces(src string, pos int, body string) (patternElem, error) {
	if lo, hi, ok := strings.Cut(body, ".."); ok {
		e := patternElem{kind: elemRange}
		if lo != "" {
			v, err := strconv.ParseInt(lo, 10, 64)
			if err != nil {
				return e, &SyntaxError{Expr: src, Pos: pos, Msg: "invalid range bound " + strconv.Quote(lo)}
			}
			e.low, e.hasLow = v, true
		}
		if hi != "" {
			v, err := strconv.ParseInt(hi, 10, 64)
			if err != nil {
				return e, &SyntaxError{Expr: src, Pos: pos, Msg: "invalid range bound " + strconv.Quote(hi)}
			}
			e.high, e.hasHigh = v, true
		}
		return e, nil
	}
	e := patternElem{kind: elemSet}
	rs := []rune(body)
	if len(rs) > 0 && rs[0] == '^' {
		e.negate = true
		rs = rs[1:]
	}
	if len(rs) == 0 {
		return e, &SyntaxError{Expr: src, Pos: pos, Msg: "empty character set"}
	}
	for i := 0; i < len(rs); i++ {
		if i+2 < len(rs) && rs[i+1] == '-' {
			e.set = append(e.set, runeRange{lo: rs[i], hi: rs[i+2]})
			i += 2
			continue
		}
		e.set = append(e.set, runeRange{lo: rs[i], hi: rs[i]})
	}
	return e, nil
}

// String returns the pattern source.
func (p *Pattern) String() string {
	return p.src
}

// Match reports whether s matches the whole pattern.
func (p *Pattern) Match(s string) bool {
	m := matcher{elems: p.elems, s: []rune(s)}
	return m.match(0, 0)
}

// matcher memoizes failed (element, position) pairs, so a pattern with many
// stars runs in time proportional to elements times input length.
type matcher struct {
	elems  []patternElem
	s      []rune
	failed map[[2]int]bool
}

func (m *matcher) match(ei, si int) bool {
	if ei == len(m.elems) {
		return si == len(m.s)
	}
	key := [2]int{ei, si}
	if m.failed[key] {
		return false
	}
	if m.step(ei, si) {
		return true
	}
	if m.failed == nil {
		m.failed = make(map[[2]int]bool)
	}
	m.failed[key] = true
	return false
}

func (m *matcher) step(ei, si int) bool {
	e := m.elems[ei]
	rest := m.s[si:]
	switch e.kind {
	case elemLiteral:
		lit := []rune(e.literal)
		if len(rest) < len(lit) || string(rest[:len(lit)]) != e.literal {
			return false
		}
		return m.match(ei+1, si+len(lit))
	case elemOne:
		if len(rest) == 0 || rest[0] == '.' {
			return false
		}
		return m.match(ei+1, si+1)
	case elemSet:
		if len(rest) == 0 || !e.inSet(rest[0]) {
			return false
		}
		return m.match(ei+1, si+1)
	case elemAny, elemAnyNoDot:
		for i := 0; i <= len(rest); i++ {
			if m.match(ei+1, si+i) {
				return true
			}
			if i < len(rest) && e.kind == elemAnyNoDot && rest[i] == '.' {
				return false
			}
		}
		return false
	case elemRange:
		end := 0
		for end < len(rest) && rest[end] >= '0' && rest[end] <= '9' {
			end++
		}
		// Try the longest digit run first, then shorter prefixes.
		for n := end; n > 0; n-- {
			v, err := strconv.ParseInt(string(rest[:n]), 10, 64)
			if err != nil {
				continue
			}
			if (e.hasLow && v < e.low) || (e.hasHigh && v > e.high) {
				continue
			}
			if m.match(ei+1, si+n) {
				return true
			}
		}
		return false
	}
	return false
}

func (e patternElem) inSet(r rune) bool {
	in := false
	for _, rr := range e.set {
		if r >= rr.lo && r <= rr.hi {
			in = true
			break
		}
	}
	return in != e.negate
}
