package cms

import "math"

// CompareBackends runs the same payload through two Transforms built for
// the same Kind and reports the largest per-sample absolute difference
// across n synthetic samples spanning [0,1], for validating one transform
// against another.
func CompareBackends(a, b Transform, samples int) float64 {
	channels := a.Channels()
	if b.Channels() != channels {
		return math.Inf(1)
	}
	src := make([]float32, samples*channels)
	for i := range src {
		src[i] = float32(i%samples) / float32(samples)
	}
	outA := make([]float32, len(src))
	outB := make([]float32, len(src))
	a.ToSRGB(outA, src)
	b.ToSRGB(outB, src)
	var maxDiff float64
	for i := range outA {
		d := math.Abs(float64(outA[i] - outB[i]))
		if d > maxDiff {
			maxDiff = d
		}
	}
	return maxDiff
}
