package landunit

// Timing is the annual simulation clock.
//
// Only whole-year stepping is supported. The spin-up sequencer drives its own
// synthetic clock through AdvanceYear; the regular simulation sets CurYear
// directly from its loop.
type Timing struct {
	Step      int
	StartYear int
	EndYear   int
	CurYear   int
	PrevYear  int
}

// Reset positions the clock at start with step zero.
func (t *Timing) Reset(start, end int) {
	t.Step = 0
	t.StartYear = start
	t.EndYear = end
	t.CurYear = start
	t.PrevYear = start
}

// AdvanceYear moves the clock forward by one step and one year.
func (t *Timing) AdvanceYear() {
	t.Step++
	t.PrevYear = t.CurYear
	t.CurYear++
}
