// Package shard splits index spaces into contiguous ranges for workers.
package shard

// Range is the half-open index interval [Start, End).
type Range struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Len returns the number of indices in the range.
func (r Range) Len() int {
	return r.End - r.Start
}

// Split partitions [0, n) into w contiguous, disjoint ranges as evenly as
// possible: every range gets n/w indices and the first n%w ranges get one
// extra. Workers beyond n receive empty ranges. w < 1 is treated as 1.
func Split(n, w int) []Range {
	if w < 1 {
		w = 1
	}
	if n < 0 {
		n = 0
	}
	base, extra := n/w, n%w
	ranges := make([]Range, w)
	start := 0
	for i := 0; i < w; i++ {
		size := base
		if i < extra {
			size++
		}
		ranges[i] = Range{Start: start, End: start + size}
		start += size
	}
	return ranges
}
