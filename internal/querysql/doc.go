// Package querysql compiles query plans to parameterized SQL.
//
// One Coder serves every backend: all dialect differences come from the
// dialect.Dialect descriptor. The constraint tree is traversed once, depth
// first and left to right; parameters are appended in that order, so the
// same (plan, dialect) pair always yields byte-identical text and the same
// parameter order.
//
// CRITICAL: operand values are never interpolated into statement text. The
// only literals a statement may contain are pagination values on dialects
// that declare Pagination.Inline, and those are integers.
package querysql
