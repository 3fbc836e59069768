// Package quality grades produced summaries on a small set of
// heuristic dimensions and folds them into a single overall score.
//
// Models occasionally self-report dimension scores alongside the
// completion; anything they omit falls back to a neutral default so a
// sparse report never drags the overall down.
package quality

// DefaultScore is assumed for any dimension the model did not report.
const DefaultScore = 0.8

// Dimension names as they appear in model self-reports and in the
// persisted summary row.
const (
	DimCoherence = "coherence"
	DimCoverage  = "coverage"
	DimStyle     = "style"
	DimLength    = "length"
)

// Scores holds the per-dimension grades and their aggregate.
type Scores struct {
	Coherence float64 `json:"coherence"`
	Coverage  float64 `json:"coverage"`
	Style     float64 `json:"style"`
	Length    float64 `json:"length"`
	Overall   float64 `json:"overall"`
}

// clamp bounds a grade to [0, 1].
func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Score normalizes a raw per-dimension report into a full Scores.
//
// Supplied dimensions are clamped to [0, 1]; missing ones take
// DefaultScore. Overall is the mean of the dimensions that were
// actually supplied, so a model reporting only coherence=0.9 yields
// Overall 0.9, not an average diluted by defaults. An empty or nil
// report yields DefaultScore across the board.
func Score(raw map[string]float64) Scores {
	s := Scores{
		Coherence: DefaultScore,
		Coverage:  DefaultScore,
		Style:     DefaultScore,
		Length:    DefaultScore,
	}

	var sum float64
	var n int
	take := func(dim string, dst *float64) {
		v, ok := raw[dim]
		if !ok {
			return
		}
		*dst = clamp(v)
		sum += *dst
		n++
	}
	take(DimCoherence, &s.Coherence)
	take(DimCoverage, &s.Coverage)
	take(DimStyle, &s.Style)
	take(DimLength, &s.Length)

	if n == 0 {
		s.Overall = DefaultScore
		return s
	}
	s.Overall = sum / float64(n)
	return s
}
