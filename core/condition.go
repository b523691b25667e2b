package core

import (
	"fmt"
	"strconv"
	"strings"
)

// Condition is a compiled boolean expression over a stats snapshot.
//
// Quest and badge conditions are written as strings in the catalog
// ("thisWeek.moodLogs >= 5 && streaks.current >= 3") and compiled once at
// configuration load. Field names are resolved against a fixed schema at
// compile time, so a typo is a load-time error instead of a silently-false
// rule. Evaluation cannot fail: unknown runtime values read as zero.
type Condition struct {
	src  string
	root node
}

// Supported operators, loosest to tightest binding:
//
//	||  &&  ==  !=  >=  <=  >  <  +  -  *  /  !  unary-
//
// Operands are numbers and schema fields. Comparisons yield 1 or 0; any
// non-zero result is "condition met".

// CompileCondition parses src and resolves every field reference against the
// stats schema. It returns an error for malformed syntax or unknown fields.
func CompileCondition(src string) (*Condition, error) {
	p := &condParser{src: src}
	p.lex()
	if p.err != nil {
		return nil, fmt.Errorf("condition %q: %w", src, p.err)
	}
	root := p.parseOr()
	if p.err != nil {
		return nil, fmt.Errorf("condition %q: %w", src, p.err)
	}
	if p.pos != len(p.toks) {
		return nil, fmt.Errorf("condition %q: unexpected %q", src, p.toks[p.pos].text)
	}
	return &Condition{src: src, root: root}, nil
}

// MustCompileCondition is CompileCondition for static defaults.
func MustCompileCondition(src string) *Condition {
	c, err := CompileCondition(src)
	if err != nil {
		panic(err)
	}
	return c
}

// Eval evaluates the condition against a stats snapshot.
func (c *Condition) Eval(s Stats) bool {
	return c.root.eval(BuildConditionContext(s)) != 0
}

// EvalContext evaluates against a prebuilt context, letting callers share one
// context across a rule batch.
func (c *Condition) EvalContext(ctx map[string]float64) bool {
	return c.root.eval(ctx) != 0
}

// String returns the original expression source.
func (c *Condition) String() string { return c.src }

// Fields returns every schema field the expression references.
func (c *Condition) Fields() []string {
	var out []string
	collectFields(c.root, &out)
	return out
}

func collectFields(n node, out *[]string) {
	switch v := n.(type) {
	case fieldNode:
		*out = append(*out, string(v))
	case unaryNode:
		collectFields(v.x, out)
	case binaryNode:
		collectFields(v.l, out)
		collectFields(v.r, out)
	}
}

// MarshalJSON round-trips the condition as its source string.
func (c *Condition) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(c.src)), nil
}

// UnmarshalJSON compiles the condition from its source string.
func (c *Condition) UnmarshalJSON(b []byte) error {
	src, err := strconv.Unquote(string(b))
	if err != nil {
		return err
	}
	compiled, err := CompileCondition(src)
	if err != nil {
		return err
	}
	*c = *compiled
	return nil
}

// ConditionFields returns every field name valid in a condition: scoped
// counters (totals.*, thisWeek.*, today.*), streak fields, and the flat
// aliases kept for catalog compatibility.
func ConditionFields() map[string]struct{} {
	fields := make(map[string]struct{})
	for _, k := range StatKeys() {
		fields["totals."+string(k)] = struct{}{}
		fields["thisWeek."+string(k)] = struct{}{}
		fields["today."+string(k)] = struct{}{}
		// flat alias resolves to the lifetime total
		fields[string(k)] = struct{}{}
	}
	fields["streaks.current"] = struct{}{}
	fields["streaks.longest"] = struct{}{}
	fields["streakDays"] = struct{}{}
	fields["longestStreak"] = struct{}{}
	fields["totalNovaCoins"] = struct{}{}
	return fields
}

// BuildConditionContext flattens a stats snapshot into the evaluation context.
// Every schema field is present, so lookups never miss.
func BuildConditionContext(s Stats) map[string]float64 {
	ctx := make(map[string]float64, 4*len(StatKeys())+5)
	for _, k := range StatKeys() {
		ctx["totals."+string(k)] = float64(s.Totals[k])
		ctx["thisWeek."+string(k)] = float64(s.ThisWeek[k])
		ctx["today."+string(k)] = float64(s.Today[k])
		ctx[string(k)] = float64(s.Totals[k])
	}
	ctx["streaks.current"] = float64(s.Streak.Current)
	ctx["streaks.longest"] = float64(s.Streak.Longest)
	ctx["streakDays"] = float64(s.Streak.Current)
	ctx["longestStreak"] = float64(s.Streak.Longest)
	ctx["totalNovaCoins"] = float64(s.Totals[StatCoinsEarned])
	return ctx
}

// LookupStatField resolves a dotted statField reference ("totals.workoutLogs",
// "streaks.current") against a snapshot, for threshold-style badges. Unknown
// fields resolve to 0 with ok=false.
func LookupStatField(s Stats, field string) (float64, bool) {
	ctx := BuildConditionContext(s)
	v, ok := ctx[field]
	return v, ok
}

// expression tree

type node interface {
	eval(ctx map[string]float64) float64
}

type numNode float64

func (n numNode) eval(map[string]float64) float64 { return float64(n) }

type fieldNode string

func (n fieldNode) eval(ctx map[string]float64) float64 { return ctx[string(n)] }

type unaryNode struct {
	op byte // '!' or '-'
	x  node
}

func (n unaryNode) eval(ctx map[string]float64) float64 {
	v := n.x.eval(ctx)
	if n.op == '!' {
		if v == 0 {
			return 1
		}
		return 0
	}
	return -v
}

type binaryNode struct {
	op   string
	l, r node
}

func (n binaryNode) eval(ctx map[string]float64) float64 {
	l := n.l.eval(ctx)
	switch n.op {
	case "||":
		if l != 0 {
			return 1
		}
		return boolVal(n.r.eval(ctx) != 0)
	case "&&":
		if l == 0 {
			return 0
		}
		return boolVal(n.r.eval(ctx) != 0)
	}
	r := n.r.eval(ctx)
	switch n.op {
	case "==":
		return boolVal(l == r)
	case "!=":
		return boolVal(l != r)
	case ">=":
		return boolVal(l >= r)
	case "<=":
		return boolVal(l <= r)
	case ">":
		return boolVal(l > r)
	case "<":
		return boolVal(l < r)
	case "+":
		return l + r
	case "-":
		return l - r
	case "*":
		return l * r
	case "/":
		if r == 0 {
			return 0
		}
		return l / r
	}
	return 0
}

func boolVal(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// lexer and parser

type condToken struct {
	kind byte // 'n' number, 'f' field, 'o' operator
	text string
	num  float64
}

type condParser struct {
	src  string
	toks []condToken
	pos  int
	err  error
}

func (p *condParser) lex() {
	s := p.src
	i := 0
	for i < len(s) {
		c := s[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n':
			i++
		case c >= '0' && c <= '9' || c == '.' && i+1 < len(s) && s[i+1] >= '0' && s[i+1] <= '9':
			j := i
			for j < len(s) && (s[j] >= '0' && s[j] <= '9' || s[j] == '.') {
				j++
			}
			v, err := strconv.ParseFloat(s[i:j], 64)
			if err != nil {
				p.err = fmt.Errorf("bad number %q", s[i:j])
				return
			}
			p.toks = append(p.toks, condToken{kind: 'n', text: s[i:j], num: v})
			i = j
		case isIdentStart(c):
			j := i
			for j < len(s) && (isIdentStart(s[j]) || s[j] >= '0' && s[j] <= '9' || s[j] == '.') {
				j++
			}
			p.toks = append(p.toks, condToken{kind: 'f', text: s[i:j]})
			i = j
		default:
			op := matchOperator(s[i:])
			if op == "" {
				p.err = fmt.Errorf("unexpected character %q", string(c))
				return
			}
			p.toks = append(p.toks, condToken{kind: 'o', text: op})
			i += len(op)
		}
	}
}

func matchOperator(s string) string {
	for _, op := range [...]string{"||", "&&", "==", "!=", ">=", "<="} {
		if strings.HasPrefix(s, op) {
			return op
		}
	}
	switch s[0] {
	case '>', '<', '+', '-', '*', '/', '!', '(', ')':
		return s[:1]
	}
	return ""
}

func isIdentStart(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c == '_'
}

func (p *condParser) peek() (condToken, bool) {
	if p.err != nil || p.pos >= len(p.toks) {
		return condToken{}, false
	}
	return p.toks[p.pos], true
}

func (p *condParser) acceptOp(ops ...string) (string, bool) {
	t, ok := p.peek()
	if !ok || t.kind != 'o' {
		return "", false
	}
	for _, op := range ops {
		if t.text == op {
			p.pos++
			return op, true
		}
	}
	return "", false
}

func (p *condParser) parseOr() node {
	l := p.parseAnd()
	for {
		if _, ok := p.acceptOp("||"); !ok {
			return l
		}
		l = binaryNode{op: "||", l: l, r: p.parseAnd()}
	}
}

func (p *condParser) parseAnd() node {
	l := p.parseCompare()
	for {
		if _, ok := p.acceptOp("&&"); !ok {
			return l
		}
		l = binaryNode{op: "&&", l: l, r: p.parseCompare()}
	}
}

func (p *condParser) parseCompare() node {
	l := p.parseAdd()
	if op, ok := p.acceptOp("==", "!=", ">=", "<=", ">", "<"); ok {
		return binaryNode{op: op, l: l, r: p.parseAdd()}
	}
	return l
}

func (p *condParser) parseAdd() node {
	l := p.parseMul()
	for {
		op, ok := p.acceptOp("+", "-")
		if !ok {
			return l
		}
		l = binaryNode{op: op, l: l, r: p.parseMul()}
	}
}

func (p *condParser) parseMul() node {
	l := p.parseUnary()
	for {
		op, ok := p.acceptOp("*", "/")
		if !ok {
			return l
		}
		l = binaryNode{op: op, l: l, r: p.parseUnary()}
	}
}

func (p *condParser) parseUnary() node {
	if op, ok := p.acceptOp("!", "-"); ok {
		return unaryNode{op: op[0], x: p.parseUnary()}
	}
	return p.parsePrimary()
}

func (p *condParser) parsePrimary() node {
	t, ok := p.peek()
	if !ok {
		if p.err == nil {
			p.err = fmt.Errorf("unexpected end of expression")
		}
		return numNode(0)
	}
	switch t.kind {
	case 'n':
		p.pos++
		return numNode(t.num)
	case 'f':
		p.pos++
		if _, known := ConditionFields()[t.text]; !known {
			p.err = fmt.Errorf("unknown field %q", t.text)
			return numNode(0)
		}
		return fieldNode(t.text)
	case 'o':
		if t.text == "(" {
			p.pos++
			inner := p.parseOr()
			if _, ok := p.acceptOp(")"); !ok && p.err == nil {
				p.err = fmt.Errorf("missing closing parenthesis")
			}
			return inner
		}
	}
	p.err = fmt.Errorf("unexpected token %q", t.text)
	return numNode(0)
}
