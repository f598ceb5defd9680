package ir

// Version constants for the plan encoding and the library.
const (
	// PlanVersion is the canonical plan encoding version.
	// Bump it when MarshalCanonical output for a plan changes shape.
	PlanVersion = "1"

	// LibraryVersion is the typewriter library version.
	LibraryVersion = "0.3.0"
)
