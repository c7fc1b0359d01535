//go:build invariants || race
// +build invariants race

package invariants

// Enabled is true if the module was built with the "invariants" or "race"
// build tags. Precondition violations (negative byte counts, requests
// larger than the configured burst) panic when Enabled; otherwise negative
// byte counts are clamped to zero and over-burst requests proceed
// unchanged, matching the "undefined behavior if disabled" language of the
// originating C++ assertion macros.
const Enabled = true
