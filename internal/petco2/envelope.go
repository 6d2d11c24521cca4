package petco2

import "gonum.org/v1/gonum/floats"

// windowPeaks splits signal into consecutive windows of size samples and
// returns the position and value of the first maximum in each. A trailing
// partial window is ignored.
func windowPeaks(signal []float64, size int) ([]int, []float64) {
	if size < 1 {
		return nil, nil
	}
	windows := len(signal) / size
	pos := make([]int, windows)
	val := make([]float64, windows)
	for i := 0; i < windows; i++ {
		win := signal[i*size : (i+1)*size]
		j := floats.MaxIdx(win)
		pos[i] = i*size + j
		val[i] = win[j]
	}
	return pos, val
}

// reconstructEnvelope draws straight lines between consecutive peaks over a
// signal of length n and holds the first and last peak values out to the edges.
// pos must be strictly increasing and non-empty.
func reconstructEnvelope(n int, pos []int, val []float64) []float64 {
	env := make([]float64, n)
	for x := 0; x < len(pos)-1; x++ {
		dist := pos[x+1] - pos[x]
		ramp := (val[x+1] - val[x]) / float64(dist)
		for g := 0; g <= dist; g++ {
			env[pos[x]+g] = val[x] + ramp*float64(g)
		}
	}

	for i := 0; i < pos[0]; i++ {
		env[i] = val[0]
	}
	last := len(pos) - 1
	for i := pos[last]; i < n; i++ {
		env[i] = val[last]
	}
	return env
}
