// Package render produces a deterministic Graphviz DOT document describing
// a control-flow graph, with node colors derived from relative visit
// frequency.
package render

// pickColor chooses a blues9 palette index (1..9) for a node with the
// given visit count, relative to the graph's maximum. It also reports
// whether the chosen index needs a white font for contrast.
//
// [0, 100] is partitioned into 9 half-open intervals of width 100/9 each
// (the 9th interval's upper end is clamped to 99, never 100). p ≤ 100/9
// maps to index 1; p ≥ 8*(100/9) maps to index 9; otherwise the interval
// containing p picks between its own index and the next one based on
// which half of the interval p falls in.
func pickColor(maxVisits, visits uint64) (index int, fontWhite bool) {
	if maxVisits == 1 && visits == 1 {
		return 1, false
	}

	const n = 9
	width := 100.0 / float64(n)
	lo := func(i int) float64 { return width * float64(i-1) }
	hi := func(i int) float64 {
		if i == n {
			return 99
		}
		return width * float64(i)
	}

	var p float64
	if maxVisits > 0 {
		p = 100.0 * float64(visits) / float64(maxVisits)
	}

	pick := func(i int) (int, bool) {
		return i, i >= 7
	}

	if p <= hi(1) {
		return pick(1)
	}
	if p >= lo(n) {
		return pick(n)
	}
	for i := 1; i < n; i++ {
		if p >= lo(i) && p <= hi(i) {
			half := (lo(i) + hi(i)) / 2.0
			if p <= half {
				return pick(i)
			}
			return pick(i + 1)
		}
	}
	return pick(1)
}
