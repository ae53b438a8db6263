package graph

import (
	"github.com/imageflow/imageflow/internal/arena"
	"github.com/imageflow/imageflow/internal/ferror"
	"github.com/imageflow/imageflow/internal/layout"
)

// CommandStringExpanderFunc expands a TypeCommandString node's query into
// an equivalent subgraph, returning the ID of the node that now stands in
// for its output. Set by internal/ir4's init() — the same function-pointer
// wiring the teacher uses between animation.go and webp.go
// (animation.FrameDecoderFunc) to let two packages collaborate without an
// import cycle (graph cannot import ir4, since ir4 must import graph to
// build the subgraph it returns).
var CommandStringExpanderFunc func(g *Graph, query string, input ID) (ID, error)

const defaultMaxPasses = 30

// Rewrite runs the six-stage fixed-point loop from job_execute: populate
// dimensions, pre-flatten (expand command-strings/expanders), optimize,
// post-flatten, populate dimensions again, execute whatever is now
// certain — repeated until the graph is fully executed or maxPasses is
// exceeded.
func Rewrite(g *Graph, execCtx *ExecContext, maxPasses int) error {
	if maxPasses <= 0 {
		maxPasses = defaultMaxPasses
	}
	passes := 0
	for !g.FullyExecuted() {
		if passes >= maxPasses {
			return ferror.New(ferror.KindMaxPasses, "graph: exceeded %d calc/flatten/execute passes", maxPasses)
		}
		if err := populateDimensions(g); err != nil {
			return err
		}
		if err := preFlatten(g); err != nil {
			return err
		}
		optimize(g)
		if err := populateDimensions(g); err != nil {
			return err
		}
		if err := postFlatten(g); err != nil {
			return err
		}
		if err := populateDimensions(g); err != nil {
			return err
		}
		if err := executeWhereCertain(g, execCtx); err != nil {
			return err
		}
		passes++
	}
	return nil
}

// preFlatten expands CategoryCommandString and CategoryExpander nodes that
// have everything they need (their input's dimensions, for Constrain) into
// concrete subgraphs.
func preFlatten(g *Graph) error {
	for _, n := range snapshotNodes(g) {
		switch n.Type.Category() {
		case CategoryCommandString:
			if err := expandCommandString(g, n); err != nil {
				return err
			}
		case CategoryExpander:
			if err := expandConstrain(g, n); err != nil {
				return err
			}
		}
	}
	return nil
}

// postFlatten re-runs the same expansion pass: an expander can itself
// produce another expander (Constrain does not, since it lowers to
// Crop/Scale/CopyRectToCanvas which are already flattened — but a more
// elaborate expander might), so the rewriter gives flattening two
// chances per outer pass, mirroring graph_pre_optimize_flatten and
// graph_post_optimize_flatten both calling the same node_visitor_flatten.
func postFlatten(g *Graph) error {
	return preFlatten(g)
}

// optimize is the fusion pass (spec §4.9 Non-goals: "node fusion/rewriting
// beyond command-string and Constrain expansion is out of scope"); kept as
// an explicit, currently empty stage so the six-stage shape matches
// job_execute exactly and a future fusion pass has an obvious home.
func optimize(*Graph) {}

func snapshotNodes(g *Graph) []*Node {
	out := make([]*Node, 0, len(g.Nodes))
	for _, n := range g.Nodes {
		out = append(out, n)
	}
	return out
}

func expandCommandString(g *Graph, n *Node) error {
	if n.HasOutput {
		return nil
	}
	params, ok := n.Params.(*CommandStringParams)
	if !ok {
		return ferror.New(ferror.KindInvalidNodeParams, "graph: node %d has wrong params type for CommandString", n.ID)
	}
	if CommandStringExpanderFunc == nil {
		return ferror.New(ferror.KindInvalidOperation, "graph: no CommandString expander registered (internal/ir4 not linked)")
	}
	in, ok := g.InputOf(n.ID)
	if !ok {
		return ferror.New(ferror.KindInvalidNodeConnections, "graph: CommandString node %d has no input", n.ID)
	}
	replacement, err := CommandStringExpanderFunc(g, params.Query, in)
	if err != nil {
		return err
	}
	retarget(g, n.ID, replacement)
	delete(g.Nodes, n.ID)
	return nil
}

// expandConstrain lowers a Constrain node to a concrete subgraph once its
// input's dimensions are known, running the IR4 mode's layout.Step
// sequence (spec §4.11) against the input's actual AspectRatio to get an
// exact crop/scale/canvas plan, then materializing that plan as
// Crop?+Scale+CreateCanvas?+CopyRectToCanvas? nodes.
func expandConstrain(g *Graph, n *Node) error {
	if n.HasOutput {
		return nil
	}
	params, ok := n.Params.(*ConstrainParams)
	if !ok {
		return ferror.New(ferror.KindInvalidNodeParams, "graph: node %d has wrong params type for Constrain", n.ID)
	}
	in, ok := g.InputOf(n.ID)
	if !ok {
		return ferror.New(ferror.KindInvalidNodeConnections, "graph: Constrain node %d has no input", n.ID)
	}
	inputNode := g.Nodes[in]
	if !inputNode.DimsKnown {
		return nil // not enough information yet; try again next pass
	}

	source, err := layout.NewAspectRatio(inputNode.Width, inputNode.Height)
	if err != nil {
		return err
	}
	target, err := resolveConstrainTarget(source, params)
	if err != nil {
		return err
	}
	if params.NoUpscale && (target.W > source.W || target.H > source.H) {
		target, err = layout.NewAspectRatio(min(target.W, source.W), min(target.H, source.H))
		if err != nil {
			return err
		}
	}

	lay, err := runConstrainMode(layout.NewLayout(source, target), params.Mode)
	if err != nil {
		return err
	}

	last := in
	if lay.Source != source {
		x1, y1, x2, y2 := centeredRect(source, lay.Source)
		cropID := g.AddNode(TypeCropMutate, &CropParams{X1: x1, Y1: y1, X2: x2, Y2: y2})
		if err := g.Connect(last, cropID, EdgeInput); err != nil {
			return err
		}
		last = cropID
	}

	scaleID := g.AddNode(TypeScale, &ScaleParams{
		Filter: params.Filter, SharpenPercent: params.SharpenPercent,
		TargetWidth: lay.Image.W, TargetHeight: lay.Image.H,
	})
	if err := g.Connect(last, scaleID, EdgeInput); err != nil {
		return err
	}
	last = scaleID

	if lay.Canvas != lay.Image {
		canvasID := g.AddNode(TypeCreateCanvas, &CreateCanvasParams{
			Width: lay.Canvas.W, Height: lay.Canvas.H,
			Layout: arena.LayoutBGRA32, Alpha: true, Color: params.BgColor,
		})
		offsetX := (lay.Canvas.W - lay.Image.W) / 2
		offsetY := (lay.Canvas.H - lay.Image.H) / 2
		copyID := g.AddNode(TypeCopyRectToCanvas, &CopyRectToCanvasParams{X: offsetX, Y: offsetY})
		if err := g.Connect(last, copyID, EdgeInput); err != nil {
			return err
		}
		if err := g.Connect(canvasID, copyID, EdgeCanvas); err != nil {
			return err
		}
		last = copyID
	}

	retarget(g, n.ID, last)
	delete(g.Nodes, n.ID)
	return nil
}

// resolveConstrainTarget fills in whichever of TargetWidth/TargetHeight is
// 0 using the input's own aspect ratio, so "w=200" alone behaves like
// "w=200&h=<proportional>".
func resolveConstrainTarget(source layout.AspectRatio, params *ConstrainParams) (layout.AspectRatio, error) {
	w, h := params.TargetWidth, params.TargetHeight
	switch {
	case w > 0 && h > 0:
		return layout.NewAspectRatio(w, h)
	case w > 0:
		hh, err := source.HeightFor(w, nil)
		if err != nil {
			return layout.AspectRatio{}, err
		}
		return layout.NewAspectRatio(w, hh)
	case h > 0:
		ww, err := source.WidthFor(h, nil)
		if err != nil {
			return layout.AspectRatio{}, err
		}
		return layout.NewAspectRatio(ww, h)
	default:
		return source, nil
	}
}

func runConstrainMode(lay layout.Layout, mode ConstrainMode) (layout.Layout, error) {
	cropper := layout.IdentityCropProvider{}
	switch mode {
	case ConstrainModeMax:
		return lay.ExecuteStep(layout.StepScaleToInner(), cropper)
	case ConstrainModePad:
		lay, err := lay.ExecuteStep(layout.StepScaleToInner(), cropper)
		if err != nil {
			return layout.Layout{}, err
		}
		return lay.ExecuteStep(layout.StepPad(), cropper)
	case ConstrainModeCrop:
		lay, err := lay.ExecuteStep(layout.StepScaleToOuter(), cropper)
		if err != nil {
			return layout.Layout{}, err
		}
		return lay.ExecuteStep(layout.StepCrop(), cropper)
	case ConstrainModeDistort:
		return lay.ExecuteStep(layout.StepDistort(layout.ExactBox(layout.BoxTargetTarget)), cropper)
	default:
		return layout.Layout{}, ferror.New(ferror.KindInvalidNodeParams, "graph: unknown constrain mode %v", mode)
	}
}

// centeredRect returns the pixel crop box of size cropSize, centered
// within an original image of size full (Layout only tracks sizes, never
// positions, so centering is the graph's own alignment convention).
func centeredRect(full, cropSize layout.AspectRatio) (x1, y1, x2, y2 int) {
	x1 = (full.W - cropSize.W) / 2
	y1 = (full.H - cropSize.H) / 2
	return x1, y1, x1 + cropSize.W, y1 + cropSize.H
}

// retarget rewires every edge that pointed at `old` (as either an input or
// canvas source) to point at `replacement` instead.
func retarget(g *Graph, old, replacement ID) {
	for i := range g.Edges {
		if g.Edges[i].From == old {
			g.Edges[i].From = replacement
		}
	}
}
