package layout

import "github.com/imageflow/imageflow/internal/ferror"

// BoxTarget names one of a Layout's tracked boxes.
type BoxTarget int

const (
	BoxTargetTarget BoxTarget = iota
	BoxTargetCurrentCanvas
	BoxTargetCurrentImage
)

// BoxParam resolves to an AspectRatio either directly (Exact) or as a
// BoxOf computation between two of a Layout's tracked boxes.
type BoxParam struct {
	exact       bool
	target      BoxTarget // Exact: which box; BoxOf: the box to fit against
	kind        BoxKind
	ratioSource BoxTarget
}

func ExactBox(which BoxTarget) BoxParam { return BoxParam{exact: true, target: which} }

func BoxOfParam(target BoxTarget, kind BoxKind, ratioSource BoxTarget) BoxParam {
	return BoxParam{target: target, kind: kind, ratioSource: ratioSource}
}

// Step1D is a single-axis variant of Step, resolved against the other axis
// via Layout.ExecuteAxis.
type Step1D int

const (
	Step1DPad Step1D = iota
	Step1DCrop
	Step1DPartialCrop
	Step1DVirtualCanvas
	Step1DDistort
	Step1DScaleProportional
)

// Step is one operation in a sizing sequence (spec §4.11's sizing
// primitives, generalized per sizing.rs).
type Step struct {
	kind     stepKind
	cond     Cond
	param    BoxParam
	axisStep Step1D
}

type stepKind int

const (
	stepNone stepKind = iota
	stepBeginSequence
	stepSkipIf
	stepSkipUnless
	stepScaleToOuter
	stepScaleToInner
	stepDistort
	stepPad
	stepPadAspect
	stepCrop
	stepCropToIntersection
	stepCropAspect
	stepFillCrop
	stepPartialCrop
	stepPartialCropAspect
	stepVirtualCanvas
	stepX
	stepY
)

func StepNone() Step                { return Step{kind: stepNone} }
func StepBeginSequence() Step       { return Step{kind: stepBeginSequence} }
func StepSkipIf(c Cond) Step        { return Step{kind: stepSkipIf, cond: c} }
func StepSkipUnless(c Cond) Step    { return Step{kind: stepSkipUnless, cond: c} }
func StepScaleToOuter() Step        { return Step{kind: stepScaleToOuter} }
func StepScaleToInner() Step        { return Step{kind: stepScaleToInner} }
func StepDistort(p BoxParam) Step   { return Step{kind: stepDistort, param: p} }
func StepPad() Step                 { return Step{kind: stepPad} }
func StepPadAspect() Step           { return Step{kind: stepPadAspect} }
func StepCrop() Step                { return Step{kind: stepCrop} }
func StepCropToIntersection() Step  { return Step{kind: stepCropToIntersection} }
func StepCropAspect() Step          { return Step{kind: stepCropAspect} }
func StepFillCrop() Step            { return Step{kind: stepFillCrop} }
func StepPartialCrop() Step         { return Step{kind: stepPartialCrop} }
func StepPartialCropAspect() Step   { return Step{kind: stepPartialCropAspect} }
func StepVirtualCanvas(p BoxParam) Step { return Step{kind: stepVirtualCanvas, param: p} }
func StepX(s Step1D) Step           { return Step{kind: stepX, axisStep: s} }
func StepY(s Step1D) Step           { return Step{kind: stepY, axisStep: s} }

// PartialCropProvider lets a caller do less than a full crop to reach the
// target box (e.g. face/region-of-interest aware cropping); Layout itself
// only knows sizes, never pixel content.
type PartialCropProvider interface {
	CropSize(lay Layout, target AspectRatio) (Layout, error)
}

// IdentityCropProvider always crops fully, same as a regular Crop step.
type IdentityCropProvider struct{}

func (IdentityCropProvider) CropSize(lay Layout, target AspectRatio) (Layout, error) {
	return lay.Crop(target)
}

// Layout tracks the source crop, source's original bound, target box, final
// canvas, and the image rectangle drawn within the canvas — all as sizes,
// never positions (spec §4.11: sizing determines output size; alignment is
// a separate concern).
type Layout struct {
	SourceMax AspectRatio
	Source    AspectRatio
	Target    AspectRatio
	Canvas    AspectRatio
	Image     AspectRatio
}

// NewLayout seeds a Layout from the original image size and a target box.
func NewLayout(original, target AspectRatio) Layout {
	return Layout{SourceMax: original, Source: original, Target: target, Canvas: original, Image: original}
}

func (l Layout) ScaleCanvas(target AspectRatio, kind BoxKind) (Layout, error) {
	newCanvas, err := l.Canvas.BoxOf(target, kind)
	if err != nil {
		return Layout{}, err
	}
	image, err := l.Image.DistortWith(l.Canvas, newCanvas)
	if err != nil {
		return Layout{}, err
	}
	l.Image, l.Canvas = image, newCanvas
	return l, nil
}

func (l Layout) FillCrop(target AspectRatio) (Layout, error) {
	newSource, err := target.BoxOf(l.Source, BoxInner)
	if err != nil {
		return Layout{}, err
	}
	l.Source, l.Image, l.Canvas = newSource, target, target
	return l, nil
}

func (l Layout) DistortCanvas(target AspectRatio) (Layout, error) {
	image, err := l.Image.DistortWith(l.Canvas, target)
	if err != nil {
		return Layout{}, err
	}
	l.Image, l.Canvas = image, target
	return l, nil
}

func (l Layout) VirtualCanvas(target AspectRatio) (Layout, error) {
	newImage, err := l.Image.Intersection(target)
	if err != nil {
		return Layout{}, err
	}
	newSource, err := newImage.BoxOf(l.Source, BoxInner)
	if err != nil {
		return Layout{}, err
	}
	l.Source, l.Image, l.Canvas = newSource, newImage, target
	return l, nil
}

func (l Layout) PadCanvas(target AspectRatio) (Layout, error) {
	if l.Canvas.ExceedsAny(target) {
		return Layout{}, ferror.New(ferror.KindInvalidNodeParams, "layout: cannot pad %v down to %v", l.Canvas, target)
	}
	l.Canvas = target
	return l, nil
}

func (l Layout) Crop(target AspectRatio) (Layout, error) {
	if target.ExceedsAny(l.Canvas) {
		return Layout{}, ferror.New(ferror.KindInvalidNodeParams, "layout: cannot crop %v up to %v", l.Canvas, target)
	}
	newImage, err := l.Image.Intersection(target)
	if err != nil {
		return Layout{}, err
	}
	newSource, err := newImage.BoxOf(l.Source, BoxInner)
	if err != nil {
		return Layout{}, err
	}
	l.Source, l.Image, l.Canvas = newSource, newImage, target
	return l, nil
}

func (l Layout) box(which BoxTarget) AspectRatio {
	switch which {
	case BoxTargetTarget:
		return l.Target
	case BoxTargetCurrentCanvas:
		return l.Canvas
	default:
		return l.Image
	}
}

func (l Layout) resolveBoxParam(p BoxParam) (AspectRatio, error) {
	if p.exact {
		return l.box(p.target), nil
	}
	return l.box(p.ratioSource).BoxOf(l.box(p.target), p.kind)
}

func (l Layout) evaluateCondition(c Cond) bool {
	w, h := l.Canvas.CmpSize(l.Target)
	return c.Matches([2]Ordering{w, h})
}

// ExecuteAxis runs a Step1D against a single axis, holding the other axis's
// target fixed at the current canvas size so the 1-D step doesn't disturb
// it (sizing.rs's execute_1d).
func (l Layout) ExecuteAxis(horizontal bool, step Step1D, cropper PartialCropProvider) (Layout, error) {
	target2D := l.Target
	var target1D AspectRatio
	var err error
	if horizontal {
		target1D, err = NewAspectRatio(l.Target.W, l.Canvas.H)
	} else {
		target1D, err = NewAspectRatio(l.Canvas.W, l.Target.H)
	}
	if err != nil {
		return Layout{}, err
	}
	canvas := l.Canvas
	lay1D := l
	lay1D.Target = target1D

	var step2D Step
	switch {
	case step == Step1DScaleProportional && canvas.AspectWiderThan(target1D) && horizontal:
		step2D = StepScaleToInner()
	case step == Step1DScaleProportional && canvas.AspectWiderThan(target1D) && !horizontal:
		step2D = StepScaleToOuter()
	case step == Step1DScaleProportional && target1D.AspectWiderThan(canvas) && horizontal:
		step2D = StepScaleToInner()
	case step == Step1DScaleProportional && target1D.AspectWiderThan(canvas) && !horizontal:
		step2D = StepScaleToOuter()
	case step == Step1DScaleProportional:
		step2D = StepScaleToInner()
	case step == Step1DCrop:
		step2D = StepCrop()
	case step == Step1DPartialCrop:
		step2D = StepPartialCrop()
	case step == Step1DPad:
		step2D = StepPad()
	case step == Step1DDistort:
		step2D = StepDistort(ExactBox(BoxTargetTarget))
	case step == Step1DVirtualCanvas:
		step2D = StepVirtualCanvas(ExactBox(BoxTargetTarget))
	}

	modified, err := lay1D.ExecuteStep(step2D, cropper)
	if err != nil {
		return Layout{}, err
	}
	modified.Target = target2D
	return modified, nil
}

// ExecuteStep applies one Step to the layout, returning the resulting
// Layout.
func (l Layout) ExecuteStep(step Step, cropper PartialCropProvider) (Layout, error) {
	switch step.kind {
	case stepNone, stepBeginSequence, stepSkipIf, stepSkipUnless:
		return l, nil
	case stepScaleToOuter:
		return l.ScaleCanvas(l.Target, BoxOuter)
	case stepFillCrop:
		return l.FillCrop(l.Target)
	case stepScaleToInner:
		return l.ScaleCanvas(l.Target, BoxInner)
	case stepPadAspect:
		box, err := l.Target.BoxOf(l.Canvas, BoxOuter)
		if err != nil {
			return Layout{}, err
		}
		return l.PadCanvas(box)
	case stepPad:
		return l.PadCanvas(l.Target)
	case stepCropAspect:
		box, err := l.Target.BoxOf(l.Canvas, BoxInner)
		if err != nil {
			return Layout{}, err
		}
		return l.Crop(box)
	case stepCrop:
		return l.Crop(l.Target)
	case stepCropToIntersection:
		box, err := l.Image.Intersection(l.Target)
		if err != nil {
			return Layout{}, err
		}
		return l.Crop(box)
	case stepVirtualCanvas:
		box, err := l.resolveBoxParam(step.param)
		if err != nil {
			return Layout{}, err
		}
		return l.VirtualCanvas(box)
	case stepDistort:
		box, err := l.resolveBoxParam(step.param)
		if err != nil {
			return Layout{}, err
		}
		return l.DistortCanvas(box)
	case stepPartialCropAspect:
		box, err := l.Target.BoxOf(l.Canvas, BoxInner)
		if err != nil {
			return Layout{}, err
		}
		return cropper.CropSize(l, box)
	case stepPartialCrop:
		return cropper.CropSize(l, l.Target)
	case stepX:
		return l.ExecuteAxis(true, step.axisStep, cropper)
	case stepY:
		return l.ExecuteAxis(false, step.axisStep, cropper)
	default:
		return l, nil
	}
}

// ExecuteAll runs a sequence of steps, honoring SkipIf/SkipUnless blocks
// delimited by BeginSequence markers (sizing.rs's execute_all).
func (l Layout) ExecuteAll(steps []Step, cropper PartialCropProvider) (Layout, error) {
	lay := l
	skipping := false
	for _, step := range steps {
		switch step.kind {
		case stepSkipIf:
			if lay.evaluateCondition(step.cond) {
				skipping = true
			}
		case stepSkipUnless:
			if !lay.evaluateCondition(step.cond) {
				skipping = true
			}
		case stepBeginSequence:
			skipping = false
		}
		if !skipping {
			var err error
			lay, err = lay.ExecuteStep(step, cropper)
			if err != nil {
				return Layout{}, err
			}
		}
	}
	return lay, nil
}
