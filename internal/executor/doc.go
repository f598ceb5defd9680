// Package executor runs query plans against a pooled backend and decodes
// the results into records.
//
// An Executor pairs a field.Model with one backend: a SQL dialect, or a
// document store. Every call holds exactly one pooled connection and
// returns it on every path. Once a connection is held, the call runs on a
// context detached from cancellation; only the acquire honors ctx.
//
// Results are equivalent across backends:
//   - a plan without projection or accumulation selects the model fields
//   - SUM over no non-null values is 0
//   - an ungrouped accumulation over no records yields one row
//     (0 for COUNT and SUM, null otherwise)
//   - a zero limit yields no records
package executor
