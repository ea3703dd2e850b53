package kpi

import (
	"fmt"
	"math"
	"strings"
)

type Operator string

const (
	OpGTE Operator = "gte"
	OpGT  Operator = "gt"
	OpLTE Operator = "lte"
	OpLT  Operator = "lt"
	OpEQ  Operator = "eq"
)

// eqTolerance absorbs float noise from percentage parsing.
const eqTolerance = 1e-9

func (o Operator) Valid() bool {
	switch o {
	case OpGTE, OpGT, OpLTE, OpLT, OpEQ:
		return true
	}
	return false
}

func (o Operator) Apply(value, threshold float64) bool {
	switch o {
	case OpGTE:
		return value >= threshold
	case OpGT:
		return value > threshold
	case OpLTE:
		return value <= threshold
	case OpLT:
		return value < threshold
	case OpEQ:
		return math.Abs(value-threshold) <= eqTolerance
	}
	return false
}

func (o Operator) Symbol() string {
	switch o {
	case OpGTE:
		return ">="
	case OpGT:
		return ">"
	case OpLTE:
		return "<="
	case OpLT:
		return "<"
	case OpEQ:
		return "="
	}
	return string(o)
}

// ParseOperator accepts both the enumerated names and comparison symbols.
func ParseOperator(raw string) (Operator, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "gte", ">=", "≥":
		return OpGTE, nil
	case "gt", ">":
		return OpGT, nil
	case "lte", "<=", "≤":
		return OpLTE, nil
	case "lt", "<":
		return OpLT, nil
	case "eq", "=", "==":
		return OpEQ, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownOperator, raw)
}

// UnmarshalText lets configuration files use symbols such as ">=".
func (o *Operator) UnmarshalText(text []byte) error {
	parsed, err := ParseOperator(string(text))
	if err != nil {
		return err
	}
	*o = parsed
	return nil
}

// ascending reports whether a band list using this operator must be sorted
// low-to-high so that the first match is also the tightest one.
func (o Operator) ascending() bool {
	return o == OpLTE || o == OpLT
}

func (o Operator) descending() bool {
	return o == OpGTE || o == OpGT
}
