// Package bridge converts between the three data representations used across
// the reconstruction pipeline:
//
//   - compartment-indexed identifiers (solver side, "rxn00148_c0") and bare
//     template identifiers ("rxn00148_c");
//   - human-facing media (compound id -> signed bound pair) and solver-facing
//     media (exchange reaction id -> positive uptake rate);
//   - symbolic gapfilling directions (">", "<", "=") and concrete bound pairs.
//
// All functions are pure and safe for concurrent use.
package bridge
