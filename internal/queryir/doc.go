// Package queryir provides the backend-neutral query representation shared by
// the SQL coder and the document compiler.
//
// ARCHITECTURE:
//
//	[typed fields] → [Constraint tree] → [Builder] → [Plan] → [querysql Coder]
//	                                                         → [querydoc Compiler]
//
// A Constraint is either a Leaf {field, operator, operands} or a Composite
// {AND|OR|NOT, children}. Both are sealed: only this package implements
// Constraint, so compilers switch over the node types exhaustively.
//
// OPERATORS:
//
// The legal operators of every value domain are listed in LegalOps. The
// typed field package only exposes methods for those pairs, so illegal
// combinations do not compile. NewLeaf is the dynamic entry point used by
// plan files and the CLI; it checks the same table at construction and
// rejects mismatches with fault.InvalidQueryError.
//
// PLANS:
//
// Builder collects source, filter, sort, pagination, accumulation and
// projection and produces an immutable Plan. Errors are deferred to Build,
// the only place a Plan can come from.
//
// COMMON SUBSET:
//
// Not every operator is expressible with the same semantics everywhere.
// Subset names the operators a backend family supports; Validate reports any
// constraint outside it as fault.UnsupportedConstraintError before a backend
// is touched. DocumentSubset is the policy for document stores.
//
// Example:
//
//	plan, err := queryir.From("person").
//	    Filter(age.Gt(15)).
//	    SortBy(name, queryir.Asc).
//	    Limit(10).
//	    Build()
package queryir
