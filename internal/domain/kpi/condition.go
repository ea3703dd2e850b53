package kpi

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

const maxConditionDepth = 8

// Condition is a boolean expression over normalized metric values. A node is
// either a comparison (Metric, Operator, Value) or a composite with exactly
// one of All (AND) or Any (OR) populated.
type Condition struct {
	Metric   MetricKey   `json:"metric,omitempty" yaml:"metric,omitempty"`
	Operator Operator    `json:"operator,omitempty" yaml:"operator,omitempty"`
	Value    float64     `json:"value,omitempty" yaml:"value,omitempty"`
	All      []Condition `json:"and,omitempty" yaml:"and,omitempty"`
	Any      []Condition `json:"or,omitempty" yaml:"or,omitempty"`
}

func (c Condition) isComparison() bool {
	return c.Metric != ""
}

func (c Condition) Validate() error {
	return c.validate(0)
}

func (c Condition) validate(depth int) error {
	if depth > maxConditionDepth {
		return fmt.Errorf("%w: nesting deeper than %d", ErrMalformedRule, maxConditionDepth)
	}
	if c.isComparison() {
		if len(c.All) > 0 || len(c.Any) > 0 {
			return fmt.Errorf("%w: comparison on %s cannot also hold and/or", ErrMalformedRule, c.Metric)
		}
		if !c.Metric.Valid() {
			return fmt.Errorf("%w: unknown metric %q", ErrMalformedRule, c.Metric)
		}
		if !c.Operator.Valid() {
			return fmt.Errorf("%w: unknown operator %q on %s", ErrMalformedRule, c.Operator, c.Metric)
		}
		return nil
	}
	if c.Operator != "" {
		return fmt.Errorf("%w: operator without metric", ErrMalformedRule)
	}
	switch {
	case len(c.All) > 0 && len(c.Any) > 0:
		return fmt.Errorf("%w: node has both and/or", ErrMalformedRule)
	case len(c.All) == 0 && len(c.Any) == 0:
		return fmt.Errorf("%w: empty expression", ErrMalformedRule)
	}
	for _, child := range c.children() {
		if err := child.validate(depth + 1); err != nil {
			return err
		}
	}
	return nil
}

func (c Condition) children() []Condition {
	if len(c.All) > 0 {
		return c.All
	}
	return c.Any
}

// Eval assumes a validated tree. Metrics missing from the record compare as 0,
// the same sentinel the normalizer uses.
func (c Condition) Eval(metrics map[MetricKey]float64) bool {
	if c.isComparison() {
		return c.Operator.Apply(metrics[c.Metric], c.Value)
	}
	if len(c.All) > 0 {
		for _, child := range c.All {
			if !child.Eval(metrics) {
				return false
			}
		}
		return true
	}
	for _, child := range c.Any {
		if child.Eval(metrics) {
			return true
		}
	}
	return false
}

func (c Condition) String() string {
	if c.isComparison() {
		return fmt.Sprintf("%s %s %s", c.Metric.Label(), c.Operator.Symbol(), strconv.FormatFloat(c.Value, 'f', -1, 64))
	}
	joiner := " AND "
	if len(c.Any) > 0 {
		joiner = " OR "
	}
	parts := make([]string, 0, len(c.children()))
	for _, child := range c.children() {
		text := child.String()
		if !child.isComparison() {
			text = "(" + text + ")"
		}
		parts = append(parts, text)
	}
	return strings.Join(parts, joiner)
}

// ParseCondition turns the dashboard's free-text form, for example
// "Major Negativity > 0% AND General Negativity < 25%", into a tree.
// AND binds tighter than OR; parentheses group.
func ParseCondition(text string) (Condition, error) {
	p := &conditionParser{src: []rune(text)}
	p.skipSpace()
	if p.eof() {
		return Condition{}, fmt.Errorf("%w: empty expression", ErrMalformedRule)
	}
	cond, err := p.parseOr(0)
	if err != nil {
		return Condition{}, err
	}
	p.skipSpace()
	if !p.eof() {
		return Condition{}, fmt.Errorf("%w: unexpected %q at %d", ErrMalformedRule, string(p.src[p.pos:]), p.pos)
	}
	if err := cond.Validate(); err != nil {
		return Condition{}, err
	}
	return cond, nil
}

type conditionParser struct {
	src []rune
	pos int
}

func (p *conditionParser) eof() bool {
	return p.pos >= len(p.src)
}

func (p *conditionParser) skipSpace() {
	for !p.eof() && unicode.IsSpace(p.src[p.pos]) {
		p.pos++
	}
}

func (p *conditionParser) parseOr(depth int) (Condition, error) {
	first, err := p.parseAnd(depth)
	if err != nil {
		return Condition{}, err
	}
	terms := []Condition{first}
	for p.keyword("or", "||") {
		next, err := p.parseAnd(depth)
		if err != nil {
			return Condition{}, err
		}
		terms = append(terms, next)
	}
	if len(terms) == 1 {
		return first, nil
	}
	return Condition{Any: terms}, nil
}

func (p *conditionParser) parseAnd(depth int) (Condition, error) {
	first, err := p.parsePrimary(depth)
	if err != nil {
		return Condition{}, err
	}
	terms := []Condition{first}
	for p.keyword("and", "&&") {
		next, err := p.parsePrimary(depth)
		if err != nil {
			return Condition{}, err
		}
		terms = append(terms, next)
	}
	if len(terms) == 1 {
		return first, nil
	}
	return Condition{All: terms}, nil
}

func (p *conditionParser) parsePrimary(depth int) (Condition, error) {
	if depth > maxConditionDepth {
		return Condition{}, fmt.Errorf("%w: nesting deeper than %d", ErrMalformedRule, maxConditionDepth)
	}
	p.skipSpace()
	if p.eof() {
		return Condition{}, fmt.Errorf("%w: expected comparison", ErrMalformedRule)
	}
	if p.src[p.pos] == '(' {
		p.pos++
		inner, err := p.parseOr(depth + 1)
		if err != nil {
			return Condition{}, err
		}
		p.skipSpace()
		if p.eof() || p.src[p.pos] != ')' {
			return Condition{}, fmt.Errorf("%w: missing closing parenthesis", ErrMalformedRule)
		}
		p.pos++
		return inner, nil
	}
	return p.parseComparison()
}

func (p *conditionParser) parseComparison() (Condition, error) {
	start := p.pos
	for !p.eof() && !strings.ContainsRune("<>=≥≤!()", p.src[p.pos]) {
		p.pos++
	}
	name := strings.TrimSpace(string(p.src[start:p.pos]))
	if name == "" {
		return Condition{}, fmt.Errorf("%w: missing metric name at %d", ErrMalformedRule, start)
	}
	metric, ok := LookupMetric(name)
	if !ok {
		return Condition{}, fmt.Errorf("%w: unknown metric %q", ErrMalformedRule, name)
	}

	opStart := p.pos
	for !p.eof() && strings.ContainsRune("<>=≥≤", p.src[p.pos]) {
		p.pos++
	}
	op, err := ParseOperator(string(p.src[opStart:p.pos]))
	if err != nil {
		return Condition{}, fmt.Errorf("%w: %v", ErrMalformedRule, err)
	}

	p.skipSpace()
	numStart := p.pos
	for !p.eof() && (unicode.IsDigit(p.src[p.pos]) || p.src[p.pos] == '.' || p.src[p.pos] == '-') {
		p.pos++
	}
	value, err := strconv.ParseFloat(string(p.src[numStart:p.pos]), 64)
	if err != nil {
		return Condition{}, fmt.Errorf("%w: invalid number for %s", ErrMalformedRule, name)
	}
	mark := p.pos
	p.skipSpace()
	if !p.eof() && p.src[p.pos] == '%' {
		p.pos++
	} else {
		p.pos = mark
	}
	return Condition{Metric: metric, Operator: op, Value: value}, nil
}

// keyword consumes a logical connective if one follows.
func (p *conditionParser) keyword(word, symbol string) bool {
	p.skipSpace()
	rest := p.src[p.pos:]
	if strings.HasPrefix(string(rest), symbol) {
		p.pos += len([]rune(symbol))
		return true
	}
	w := []rune(word)
	if len(rest) < len(w) || !strings.EqualFold(string(rest[:len(w)]), word) {
		return false
	}
	if len(rest) > len(w) && !unicode.IsSpace(rest[len(w)]) && rest[len(w)] != '(' {
		return false
	}
	p.pos += len(w)
	return true
}
