package timespan

import (
	"sort"
	"time"
)

// mergeTolerance is the largest gap between two spans that still counts as
// contiguous. Minute-granularity slot generation ends each slot one second
// before the next one starts, so adjacent slots carry a 1s hole.
const mergeTolerance = time.Second

// Span is a start/end pair. Start must be before End.
type Span struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Duration returns the length of the span.
func (s Span) Duration() time.Duration {
	return s.End.Sub(s.Start)
}

// Overlaps reports whether the two intervals share at least one instant.
// Endpoints are inclusive: a span ending at 08:00 overlaps one starting at
// 08:00. Exclusivity checks rely on this.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	if !bStart.After(aStart) && !aStart.After(bEnd) {
		return true
	}
	if !aStart.After(bStart) && !bStart.After(aEnd) {
		return true
	}
	return false
}

// Merge fuses an unordered set of spans belonging to one allocation into the
// minimal set of maximal contiguous spans, ordered by start. Two spans are
// fused when the gap between them is at most one second.
func Merge(spans []Span) []Span {
	if len(spans) == 0 {
		return nil
	}

	sorted := make([]Span, len(spans))
	copy(sorted, spans)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Start.Before(sorted[j].Start)
	})

	merged := []Span{sorted[0]}
	for _, next := range sorted[1:] {
		last := &merged[len(merged)-1]
		if !next.Start.After(last.End.Add(mergeTolerance)) {
			if next.End.After(last.End) {
				last.End = next.End
			}
			continue
		}
		merged = append(merged, next)
	}
	return merged
}

// Subtract removes the covered spans from [start, end) and returns what
// remains unreserved. Covered spans may overlap each other and may extend
// beyond the requested range.
func Subtract(start, end time.Time, covered []Span) []Span {
	free := []Span{{Start: start, End: end}}

	for _, c := range Merge(covered) {
		var next []Span
		for _, f := range free {
			if !c.Start.Before(f.End) || !c.End.After(f.Start) {
				next = append(next, f)
				continue
			}
			if c.Start.After(f.Start) {
				next = append(next, Span{Start: f.Start, End: c.Start})
			}
			if c.End.Before(f.End) {
				next = append(next, Span{Start: c.End, End: f.End})
			}
		}
		free = next
	}
	return free
}
