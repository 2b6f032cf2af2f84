package dsp

// MeanAbs returns the mean absolute amplitude of data, or 0 for empty input.
func MeanAbs(data []float32) float32 {
	if len(data) == 0 {
		return 0
	}
	var sum float64
	for _, v := range data {
		if v < 0 {
			v = -v
		}
		sum += float64(v)
	}
	return float32(sum / float64(len(data)))
}
