// Package matchexpr implements the boolean filter expression language used
// by event log filters, e.g.
//
//	className(cPacket) AND NOT name("ping*")
//	fullname =~ net.host{0..3}.app OR type(inet.**)
//
// A bare pattern is matched against the object's default attribute.
// Keywords AND, OR and NOT are case-insensitive; NOT binds tightest, then
// AND, then OR.
package matchexpr

import (
	"errors"
	"strings"
	"unicode"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

// Matchable is anything an Expression can be evaluated against.
type Matchable interface {
	// DefaultAttribute is matched by bare patterns.
	DefaultAttribute() string
	// Attribute returns the named attribute and whether the object has it.
	Attribute(name string) (string, bool)
}

// Expression is a parsed, immutable filter expression.
type Expression struct {
	src  string
	root node
}

var exprLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "String", Pattern: `"(?:\\.|[^"\\])*"`},
	{Name: "MatchOp", Pattern: `=~`},
	{Name: "Paren", Pattern: `[()]`},
	{Name: "Word", Pattern: `[^\s()"=]+`},
	{Name: "Whitespace", Pattern: `\s+`},
})

var exprParser = participle.MustBuild[orExpr](
	participle.Lexer(exprLexer),
	participle.Elide("Whitespace"),
	participle.CaseInsensitive("Word"),
)

// The grammar below mirrors the precedence levels; toNode turns it into the
// evaluation tree.

type orExpr struct {
	Terms []*andExpr `parser:"@@ ( \"OR\" @@ )*"`
}

type andExpr struct {
	Factors []*unaryExpr `parser:"@@ ( \"AND\" @@ )*"`
}

type unaryExpr struct {
	Not     *unaryExpr   `parser:"  \"NOT\" @@"`
	Primary *primaryExpr `parser:"| @@"`
}

type primaryExpr struct {
	Group  *orExpr   `parser:"  \"(\" @@ \")\""`
	Term   *termExpr `parser:"| @@"`
	Quoted *argExpr  `parser:"| @@"`
}

// termExpr is a bare pattern, a field call "name(pattern)" or a match
// "name =~ pattern".
type termExpr struct {
	Pos   lexer.Position
	Word  string    `parser:"@Word"`
	Call  *callExpr `parser:"( @@"`
	Match *argExpr  `parser:"| \"=~\" @@ )?"`
}

type callExpr struct {
	Pos lexer.Position
	Arg *argExpr `parser:"\"(\" @@ \")\""`
}

type argExpr struct {
	Pos    lexer.Position
	Word   *string `parser:"  @Word"`
	Quoted *string `parser:"| @String"`
}

type node interface {
	eval(m Matchable) bool
}

type andNode struct{ left, right node }
type orNode struct{ left, right node }
type notNode struct{ child node }

type patternNode struct {
	field   string
	pattern *Pattern
}

func (n andNode) eval(m Matchable) bool { return n.left.eval(m) && n.right.eval(m) }
func (n orNode) eval(m Matchable) bool  { return n.left.eval(m) || n.right.eval(m) }
func (n notNode) eval(m Matchable) bool { return !n.child.eval(m) }

func (n patternNode) eval(m Matchable) bool {
	if n.field == "" {
		return n.pattern.Match(m.DefaultAttribute())
	}
	v, ok := m.Attribute(n.field)
	return ok && n.pattern.Match(v)
}

// Parse compiles an expression. Malformed input yields a *SyntaxError.
func Parse(src string) (*Expression, error) {
	if strings.TrimSpace(src) == "" {
		return nil, &SyntaxError{Expr: src, Pos: 0, Msg: "empty expression"}
	}
	tree, err := exprParser.ParseString("", src)
	if err != nil {
		var perr participle.Error
		if errors.As(err, &perr) {
			return nil, &SyntaxError{Expr: src, Pos: perr.Position().Offset, Msg: perr.Message()}
		}
		return nil, &SyntaxError{Expr: src, Pos: 0, Msg: err.Error()}
	}
	b := builder{src: src}
	root, err := b.or(tree)
	if err != nil {
		return nil, err
	}
	return &Expression{src: src, root: root}, nil
}

// MustParse is like Parse but panics on error.
func MustParse(src string) *Expression {
	e, err := Parse(src)
	if err != nil {
		panic(err)
	}
	return e
}

// Matches evaluates the expression against m.
func (e *Expression) Matches(m Matchable) bool {
	return e.root.eval(m)
}

// String returns the expression source.
func (e *Expression) String() string {
	return e.src
}

type builder struct {
	src string
}

func (b builder) errorf(pos int, msg string) error {
	return &SyntaxError{Expr: b.src, Pos: pos, Msg: msg}
}

func (b builder) or(x *orExpr) (node, error) {
	var out node
	for _, t := range x.Terms {
		n, err := b.and(t)
		if err != nil {
			return nil, err
		}
		if out == nil {
			out = n
		} else {
			out = orNode{left: out, right: n}
		}
	}
	return out, nil
}

func (b builder) and(x *andExpr) (node, error) {
	var out node
	for _, f := range x.Factors {
		n, err := b.unary(f)
		if err != nil {
			return nil, err
		}
		if out == nil {
			out = n
		} else {
			out = andNode{left: out, right: n}
		}
	}
	return out, nil
}

func (b builder) unary(x *unaryExpr) (node, error) {
	if x.Not != nil {
		child, err := b.unary(x.Not)
		if err != nil {
			return nil, err
		}
		return notNode{child: child}, nil
	}
	p := x.Primary
	switch {
	case p.Group != nil:
		return b.or(p.Group)
	case p.Term != nil:
		return b.term(p.Term)
	default:
		pat, err := b.compile(p.Quoted)
		if err != nil {
			return nil, err
		}
		return patternNode{pattern: pat}, nil
	}
}

func (b builder) term(t *termExpr) (node, error) {
	start := t.Pos.Offset
	switch {
	case t.Call != nil:
		// A field call needs the name glued to its parenthesis.
		paren := t.Call.Pos.Offset
		if paren != start+len(t.Word) || !isIdentifier(t.Word) {
			return nil, b.errorf(paren, "unexpected '('")
		}
		pat, err := b.compile(t.Call.Arg)
		if err != nil {
			return nil, err
		}
		return patternNode{field: t.Word, pattern: pat}, nil
	case t.Match != nil:
		if !isIdentifier(t.Word) {
			return nil, b.errorf(start, "invalid field name '"+t.Word+"'")
		}
		pat, err := b.compile(t.Match)
		if err != nil {
			return nil, err
		}
		return patternNode{field: t.Word, pattern: pat}, nil
	}
	if isKeyword(t.Word) {
		return nil, b.errorf(start, "expected pattern but found '"+t.Word+"'")
	}
	pat, err := b.compileAt(t.Word, start)
	if err != nil {
		return nil, err
	}
	return patternNode{pattern: pat}, nil
}

func (b builder) compile(a *argExpr) (*Pattern, error) {
	if a.Quoted != nil {
		// Escapes stay in place so the pattern compiler treats the next
		// character literally.
		q := *a.Quoted
		return b.compileAt(q[1:len(q)-1], a.Pos.Offset+1)
	}
	return b.compileAt(*a.Word, a.Pos.Offset)
}

func (b builder) compileAt(src string, offset int) (*Pattern, error) {
	pat, err := CompilePattern(src)
	if err != nil {
		var se *SyntaxError
		if errors.As(err, &se) {
			return nil, b.errorf(offset+se.Pos, se.Msg)
		}
		return nil, err
	}
	return pat, nil
}

func isKeyword(word string) bool {
	switch strings.ToUpper(word) {
	case "AND", "OR", "NOT":
		return true
	}
	return false
}

func isIdentifier(s string) bool {
	for i, r := range s {
		if !(unicode.IsLetter(r) || r == '_' || (i > 0 && unicode.IsDigit(r))) {
			return false
		}
	}
	return s != ""
}
