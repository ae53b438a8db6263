package resample

import "github.com/klauspost/cpuid/v2"

// wideAccumulate selects a manually 4-wide unrolled inner loop on CPUs that
// report AVX2 support (a reasonable proxy for "the compiler's auto-vectorizer
// will actually pack this"), instead of the teacher's build-tag-gated
// cpuid_amd64.go/cpuid_noamd64.go split — this is a runtime branch, decided
// once at package init by the real cpuid library rather than at compile
// time by GOARCH.
var wideAccumulate = cpuid.CPU.Supports(cpuid.AVX2)

// accumulateWeighted sums src[(left+k)*stride+off] * weights[k] for k in
// range, dispatching to a 4-wide unrolled accumulator when wideAccumulate
// is set.
func accumulateWeighted(src []float32, startIdx, stride int, w []float32) float32 {
	if !wideAccumulate || len(w) < 4 {
		var sum float32
		for k, wgt := range w {
			sum += src[startIdx+k*stride] * wgt
		}
		return sum
	}
	var s0, s1, s2, s3 float32
	n := len(w)
	k := 0
	for ; k+4 <= n; k += 4 {
		s0 += src[startIdx+(k+0)*stride] * w[k+0]
		s1 += src[startIdx+(k+1)*stride] * w[k+1]
		s2 += src[startIdx+(k+2)*stride] * w[k+2]
		s3 += src[startIdx+(k+3)*stride] * w[k+3]
	}
	sum := s0 + s1 + s2 + s3
	for ; k < n; k++ {
		sum += src[startIdx+k*stride] * w[k]
	}
	return sum
}
