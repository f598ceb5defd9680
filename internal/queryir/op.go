package queryir

import (
	"fmt"
	"slices"

	"github.com/roach88/typewriter/internal/ir"
)

// Op is a constraint operator.
type Op uint8

const (
	OpInvalid Op = iota
	OpEq
	OpNe
	OpGt
	OpGte
	OpLt
	OpLte
	OpBetween
	OpIn
	OpIsNull
	OpIsNotNull
	OpLike
	OpStartsWith
	OpContains
	OpRegex
	OpLengthLt
	OpLengthLte
	OpLengthGt
	OpLengthGte
	OpListContains
	OpSizeEq
	OpSizeGt
)

// arity describes the operands an operator takes.
type arity uint8

const (
	arityNone    arity = iota // no operands
	arityOne                  // one operand of the field domain
	arityTwo                  // lower and upper bound of the field domain
	arityMany                 // one or more operands of the field domain
	arityPattern              // one string pattern
	arityCount                // one non-negative integer
	arityElem                 // one operand of the list element domain
)

type opInfo struct {
	name  string
	arity arity
}

var opTable = map[Op]opInfo{
	OpEq:           {"eq", arityOne},
	OpNe:           {"ne", arityOne},
	OpGt:           {"gt", arityOne},
	OpGte:          {"gte", arityOne},
	OpLt:           {"lt", arityOne},
	OpLte:          {"lte", arityOne},
	OpBetween:      {"between", arityTwo},
	OpIn:           {"in", arityMany},
	OpIsNull:       {"isNull", arityNone},
	OpIsNotNull:    {"isNotNull", arityNone},
	OpLike:         {"like", arityPattern},
	OpStartsWith:   {"startsWith", arityPattern},
	OpContains:     {"contains", arityPattern},
	OpRegex:        {"regex", arityPattern},
	OpLengthLt:     {"lengthLt", arityCount},
	OpLengthLte:    {"lengthLte", arityCount},
	OpLengthGt:     {"lengthGt", arityCount},
	OpLengthGte:    {"lengthGte", arityCount},
	OpListContains: {"listContains", arityElem},
	OpSizeEq:       {"sizeEq", arityCount},
	OpSizeGt:       {"sizeGt", arityCount},
}

// String returns the operator name used in plan files and logs.
func (o Op) String() string {
	if info, ok := opTable[o]; ok {
		return info.name
	}
	return fmt.Sprintf("Op(%d)", uint8(o))
}

// ParseOp resolves an operator name.
func ParseOp(s string) (Op, error) {
	for op, info := range opTable {
		if info.name == s {
			return op, nil
		}
	}
	return OpInvalid, fmt.Errorf("unknown operator %q", s)
}

var (
	comparisonOps = []Op{OpEq, OpNe, OpGt, OpGte, OpLt, OpLte, OpBetween}
	nullOps       = []Op{OpIsNull, OpIsNotNull}
)

func concatOps(groups ...[]Op) []Op {
	return slices.Concat(groups...)
}

// LegalOps is the closed table of operators each value domain allows.
var LegalOps = map[ir.Domain][]Op{
	ir.DomainNumeric: concatOps(comparisonOps, []Op{OpIn}, nullOps),
	ir.DomainString: concatOps(
		[]Op{OpEq, OpNe, OpIn, OpLike, OpStartsWith, OpContains, OpRegex},
		[]Op{OpLengthLt, OpLengthLte, OpLengthGt, OpLengthGte},
		nullOps,
	),
	ir.DomainBool:           concatOps([]Op{OpEq, OpNe}, nullOps),
	ir.DomainChar:           concatOps([]Op{OpEq, OpNe, OpIn}, nullOps),
	ir.DomainList:           concatOps([]Op{OpListContains, OpSizeEq, OpSizeGt}, nullOps),
	ir.DomainDate:           concatOps(comparisonOps, nullOps),
	ir.DomainLocalDate:      concatOps(comparisonOps, nullOps),
	ir.DomainLocalTime:      concatOps(comparisonOps, nullOps),
	ir.DomainLocalDateTime:  concatOps(comparisonOps, nullOps),
	ir.DomainOffsetDateTime: concatOps(comparisonOps, nullOps),
	ir.DomainZonedDateTime:  concatOps(comparisonOps, nullOps),
}

// IsLegal reports whether op is allowed on domain d.
func IsLegal(d ir.Domain, op Op) bool {
	return slices.Contains(LegalOps[d], op)
}
