package spinup

// Stability bounds on the ratio between consecutive slow-pool totals.
const (
	stableLow  = 0.999
	stableHigh = 1.001
)

// IsStable reports whether the slow-pool total has stopped changing between
// rotations: 0.999 < current/previous < 1.001. A zero previous total is
// never stable.
func IsStable(previous, current float64) bool {
	if previous == 0 {
		return false
	}
	ratio := current / previous
	return ratio > stableLow && ratio < stableHigh
}
