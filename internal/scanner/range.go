package scanner

import "fmt"

// BlockRange represents an inclusive block range.
type BlockRange struct {
	From uint64
	To   uint64
}

// SplitRange splits [from, to] into contiguous windows [start, min(start+window, to)].
// A range with from > to yields no windows.
func SplitRange(from, to, window uint64) ([]BlockRange, error) {
	if window == 0 {
		return nil, fmt.Errorf("window size must be greater than zero")
	}

	ranges := make([]BlockRange, 0)
	start := from
	for start <= to {
		end := to
		if to-start > window {
			end = start + window
		}
		ranges = append(ranges, BlockRange{From: start, To: end})
		if end == to {
			break
		}
		start = end + 1
	}

	return ranges, nil
}
