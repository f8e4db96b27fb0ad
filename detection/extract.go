package detection

// Extraction is the thresholded detection list for one frame
type Extraction struct {
	Records   []Record
	Malformed int // rows with fewer than five values
}

// Count returns the number of records that passed the threshold
func (e Extraction) Count() int {
	return len(e.Records)
}

// Extract converts raw per-class rows into pixel-space records for a frame of
// height h and width w. Rows scoring below threshold are dropped. The axis
// permutation x1=b1*w, y1=b0*h, x2=b3*w, y2=b2*h is fixed; placement and
// nudge calibration depend on it. Output is ordered by class index, then by
// row order within the class.
func Extract(raw RawOutput, h, w int, threshold float64) Extraction {
	var out Extraction
	fh, fw := float64(h), float64(w)

	for classID, rows := range raw {
		for _, row := range rows {
			if len(row) < 5 {
				out.Malformed++
				continue
			}
			score := row[4]
			if score < threshold {
				continue
			}
			out.Records = append(out.Records, Record{
				BBox: BBox{
					X1: row[1] * fw,
					Y1: row[0] * fh,
					X2: row[3] * fw,
					Y2: row[2] * fh,
				},
				Confidence: score,
				ClassID:    classID,
			})
		}
	}

	if out.Malformed > 0 {
		log.Debugf("Skipped %d malformed detection rows", out.Malformed)
	}
	return out
}
