// Package ir provides the value domains and typed values shared by every
// layer of typewriter.
//
// This package contains type definitions only. All other internal packages
// import ir; ir imports nothing internal. This keeps ir the foundational
// layer with no circular dependencies.
//
// Key design constraints:
//   - Domain is a closed enum. Every switch over it is exhaustive.
//   - IRValue is sealed. Only the types declared here implement it.
//   - Temporal values carry their calendar kind so a LocalDate can never be
//     compared against a ZonedDateTime.
//   - Canonical encoding (MarshalCanonical) is the only serialization used
//     for plan fingerprints.
package ir
