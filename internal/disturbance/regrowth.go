package disturbance

// Curve is a cumulative stock-by-age table; Stock[a] is the stock at age a.
type Curve struct {
	ID    int
	Stock []float64
}

// RegrowthAge returns the oldest age whose cumulative stock does not exceed
// remaining. With no such age it returns 0.
func (c Curve) RegrowthAge(remaining float64) int {
	age := 0
	for a, s := range c.Stock {
		if s <= remaining {
			age = a
		}
	}
	return age
}

// RegrowthCurves looks up curves by id.
type RegrowthCurves interface {
	Curve(id int) (Curve, bool)
}

// CurveSet is an in-memory RegrowthCurves.
type CurveSet map[int]Curve

// Curve implements RegrowthCurves.
func (s CurveSet) Curve(id int) (Curve, bool) {
	c, ok := s[id]
	return c, ok
}
