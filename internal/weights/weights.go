package weights

import (
	"math"

	"github.com/imageflow/imageflow/internal/ferror"
)

// PixelWeights holds the contribution window for a single output pixel:
// Weights[k] is the contribution of source pixel Left+k.
type PixelWeights struct {
	Weights []float32
	Left    int
	Right   int
}

// Table holds one axis's complete set of per-output-pixel weights.
type Table struct {
	Row             []PixelWeights
	WindowSize      int
	LineLength      int
	PercentNegative float64
}

// Build constructs the weight table for resampling a line of length
// inputLineSize to outputLineSize using the given filter, blur and sharpen
// percent. It implements imageflow's populate_weights exactly (see
// SPEC_FULL.md "Supplemented Features").
func Build(filter Filter, sharpenPercent float64, outputLineSize, inputLineSize int) (*Table, error) {
	if outputLineSize <= 0 || inputLineSize <= 0 {
		return nil, ferror.New(ferror.KindInvalidNodeParams,
			"weights.Build requires positive line sizes, got out=%d in=%d", outputLineSize, inputLineSize)
	}
	d := newDetails(filter, sharpenPercent)

	sharpenRatio := d.calculatePercentNegativeWeight()
	desiredSharpenRatio := math.Min(1.0, math.Max(sharpenRatio, d.sharpenPercentGoal/100.0))

	scaleFactor := float64(outputLineSize) / float64(inputLineSize)
	downscaleFactor := math.Min(1.0, scaleFactor)
	halfSourceWindow := (d.window + 0.5) / downscaleFactor
	allocatedWindowSize := int(math.Ceil(2*(halfSourceWindow-0.00001))) + 1

	table := &Table{
		Row:        make([]PixelWeights, outputLineSize),
		WindowSize: allocatedWindowSize,
		LineLength: outputLineSize,
	}

	var totalNegativeArea, totalPositiveArea float64

	weightBuf := make([]float64, 0, allocatedWindowSize)
	for u := 0; u < outputLineSize; u++ {
		weightBuf = weightBuf[:0]
		centerSrcPixel := (float64(u)+0.5)/scaleFactor - 0.5
		leftEdge := int(math.Ceil(centerSrcPixel - d.window/downscaleFactor - 0.0001))
		rightEdge := int(math.Floor(centerSrcPixel + d.window/downscaleFactor + 0.0001))
		leftSrcPixel := max(0, leftEdge)
		rightSrcPixel := min(rightEdge, inputLineSize-1)

		sourcePixelCount := rightSrcPixel - leftSrcPixel + 1
		if sourcePixelCount > allocatedWindowSize {
			return nil, ferror.New(ferror.KindInternal,
				"weights.Build: window overflow (%d > %d) at output pixel %d", sourcePixelCount, allocatedWindowSize, u)
		}

		var totalWeight, totalNegativeWeight, totalPositiveWeight float64
		for ix := leftSrcPixel; ix <= rightSrcPixel; ix++ {
			add := d.fn(&d, downscaleFactor*(float64(ix)-centerSrcPixel))
			if math.Abs(add) <= 2e-8 {
				add = 0
			}
			weightBuf = append(weightBuf, add)
			totalWeight += add
			totalNegativeWeight += math.Min(0, add)
			totalPositiveWeight += math.Max(0, add)
		}

		negFactor := 1.0 / totalWeight
		posFactor := negFactor
		if totalWeight <= 0.0 || desiredSharpenRatio > sharpenRatio {
			if totalNegativeWeight < 0.0 {
				if desiredSharpenRatio < 1.0 {
					targetPositiveWeight := 1.0 / (1.0 - desiredSharpenRatio)
					targetNegativeWeight := desiredSharpenRatio * -targetPositiveWeight
					posFactor = targetPositiveWeight / totalPositiveWeight
					negFactor = targetNegativeWeight / totalNegativeWeight
					if totalNegativeWeight == 0 {
						negFactor = 1.0
					}
				}
			}
		}

		out := make([]float32, len(weightBuf))
		for i, v := range weightBuf {
			if v < 0 {
				v *= negFactor
				totalNegativeArea -= v
			} else {
				v *= posFactor
				totalPositiveArea += v
			}
			out[i] = float32(v)
		}

		// Shrink the window by trimming trailing/leading zeros (spec §4.2
		// step 5: "window is minimal after trimming").
		shrunkRight := rightSrcPixel
		for len(out) > 0 && out[len(out)-1] == 0 {
			out = out[:len(out)-1]
			shrunkRight--
		}
		shrunkLeft := leftSrcPixel
		for len(out) > 0 && out[0] == 0 {
			out = out[1:]
			shrunkLeft++
		}

		table.Row[u] = PixelWeights{Weights: out, Left: shrunkLeft, Right: shrunkRight}
	}
	if totalPositiveArea != 0 {
		table.PercentNegative = totalNegativeArea / totalPositiveArea
	}
	return table, nil
}
