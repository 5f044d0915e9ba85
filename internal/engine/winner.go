package engine

// SelectWinner picks the index with the strictly largest total. Ties go to the
// lowest index. A maximum of zero, or no candidates at all, means no winner.
func SelectWinner(totals []int64) (int, bool) {
	best := -1
	var bestTotal int64
	for i, t := range totals {
		if t > bestTotal {
			best, bestTotal = i, t
		}
	}
	if best < 0 {
		return 0, false
	}
	return best, true
}
