package detection

import "sort"

// suppress runs greedy non-maximum suppression over rows of one class.
// Rows are [ymin, xmin, ymax, xmax, score] and are returned in descending
// score order.
func suppress(rows [][]float64, iouThreshold float64) [][]float64 {
	if len(rows) < 2 || iouThreshold <= 0 {
		return rows
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i][4] > rows[j][4] })

	kept := make([][]float64, 0, len(rows))
	for _, r := range rows {
		box := BBox{X1: r[1], Y1: r[0], X2: r[3], Y2: r[2]}
		overlaps := false
		for _, k := range kept {
			if box.IoU(BBox{X1: k[1], Y1: k[0], X2: k[3], Y2: k[2]}) > iouThreshold {
				overlaps = true
				break
			}
		}
		if !overlaps {
			kept = append(kept, r)
		}
	}
	return kept
}
