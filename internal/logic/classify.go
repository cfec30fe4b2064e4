package logic

// Qualifies reports whether a single detection carries label with a
// confidence strictly greater than threshold. NaN never qualifies and
// out-of-range values are not clamped.
func Qualifies(d Detection, label string, threshold float64) bool {
	return d.Label == label && d.Confidence > threshold
}

// Classify reports whether any detection qualifies. A detection exactly at
// the threshold does not count.
func Classify(dets []Detection, label string, threshold float64) bool {
	for _, d := range dets {
		if Qualifies(d, label, threshold) {
			return true
		}
	}
	return false
}

// ClassifyPerson is Classify with the label fixed to PersonLabel.
func ClassifyPerson(dets []Detection, threshold float64) bool {
	return Classify(dets, PersonLabel, threshold)
}

// Qualifying returns the detections that would make Classify true.
// Used for drawing overlays on the alert snapshot.
func Qualifying(dets []Detection, label string, threshold float64) []Detection {
	var out []Detection
	for _, d := range dets {
		if Qualifies(d, label, threshold) {
			out = append(out, d)
		}
	}
	return out
}
