// Package pipeline implements the preprocessing and aggregation pipeline
// that turns raw monthly per-product measurements into the dense,
// hierarchically aggregated dataset the reporting dashboard consumes.
//
// The pipeline is a single-pass batch job. Stages run strictly in sequence;
// each stage consumes one immutable dataset and returns a new one:
//
//	Normalize -> Categorize -> (track lifecycles) -> Expand -> Truncate ->
//	Aggregate -> Averages -> Diffs
//
// Fatal integrity violations (unknown product, malformed grid, broken
// aggregation invariant) abort the run before anything is published.
package pipeline
