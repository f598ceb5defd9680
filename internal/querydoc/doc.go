// Package querydoc compiles query plans into document-store commands: a
// bson filter with find options, or an aggregation pipeline.
//
// Only plans inside queryir.DocumentSubset compile. Filters reproduce SQL
// three-valued logic: a negated leaf never matches a record whose field is
// null or missing, the same way NOT over an unknown comparison rejects the
// row in SQL.
package querydoc
