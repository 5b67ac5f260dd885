package spatial

// Span is a half-open range [Start, End) of item positions.
type Span struct {
	Start int
	End   int
}

// Partition splits n items into at most parts contiguous, disjoint spans of
// near-equal size. Empty spans are never returned.
func Partition(n, parts int) []Span {
	if n <= 0 {
		return nil
	}
	if parts < 1 {
		parts = 1
	}
	if parts > n {
		parts = n
	}

	spans := make([]Span, 0, parts)
	size, rem := n/parts, n%parts
	start := 0
	for i := 0; i < parts; i++ {
		end := start + size
		if i < rem {
			end++
		}
		spans = append(spans, Span{Start: start, End: end})
		start = end
	}
	return spans
}
