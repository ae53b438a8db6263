package graph

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"io"
	"testing"

	"github.com/imageflow/imageflow/internal/arena"
	"github.com/imageflow/imageflow/internal/codecs"
	"github.com/imageflow/imageflow/internal/ferror"
)

func encodeTestPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(x * 10), G: uint8(y * 10), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode test png: %v", err)
	}
	return buf.Bytes()
}

func TestDecodeScaleEncodePipeline(t *testing.T) {
	pngBytes := encodeTestPNG(t, 20, 10)
	var out bytes.Buffer

	g := New()
	decodeID := g.AddNode(TypeDecode, &DecodeParams{IoID: "png", Frame: 0})
	scaleID := g.AddNode(TypeScale, &ScaleParams{TargetWidth: 10, TargetHeight: 5})
	if err := g.Connect(decodeID, scaleID, EdgeInput); err != nil {
		t.Fatal(err)
	}
	encodeID := g.AddNode(TypeEncode, &EncodeParams{IoID: "png"})
	if err := g.Connect(scaleID, encodeID, EdgeInput); err != nil {
		t.Fatal(err)
	}

	ex := &ExecContext{
		Arena:    arena.New(),
		Registry: codecs.NewDefaultRegistry(),
		Sources:  map[string]io.Reader{"png": bytes.NewReader(pngBytes)},
		Sinks:    map[string]io.Writer{"png": &out},
	}

	if err := Rewrite(g, ex, 0); err != nil {
		t.Fatalf("Rewrite: %v", err)
	}
	if !g.FullyExecuted() {
		t.Fatal("graph did not reach fully executed state")
	}
	if out.Len() == 0 {
		t.Fatal("encoder produced no output bytes")
	}
	if g.Nodes[scaleID].Width != 10 || g.Nodes[scaleID].Height != 5 {
		t.Fatalf("scale node dims = %dx%d, want 10x5", g.Nodes[scaleID].Width, g.Nodes[scaleID].Height)
	}
}

func TestConstrainExpandsToCreateCanvasScaleCopy(t *testing.T) {
	pngBytes := encodeTestPNG(t, 40, 20)
	var out bytes.Buffer

	g := New()
	decodeID := g.AddNode(TypeDecode, &DecodeParams{IoID: "png", Frame: 0})
	constrainID := g.AddNode(TypeConstrain, &ConstrainParams{TargetWidth: 20, TargetHeight: 20, Mode: ConstrainModePad})
	if err := g.Connect(decodeID, constrainID, EdgeInput); err != nil {
		t.Fatal(err)
	}
	encodeID := g.AddNode(TypeEncode, &EncodeParams{IoID: "png"})
	if err := g.Connect(constrainID, encodeID, EdgeInput); err != nil {
		t.Fatal(err)
	}

	ex := &ExecContext{
		Arena:    arena.New(),
		Registry: codecs.NewDefaultRegistry(),
		Sources:  map[string]io.Reader{"png": bytes.NewReader(pngBytes)},
		Sinks:    map[string]io.Writer{"png": &out},
	}

	if err := Rewrite(g, ex, 0); err != nil {
		t.Fatalf("Rewrite: %v", err)
	}
	if !g.FullyExecuted() {
		t.Fatal("graph did not reach fully executed state")
	}
	if _, ok := g.Nodes[constrainID]; ok {
		t.Fatal("Constrain node should have been deleted after expansion")
	}
	foundCanvas, foundScale, foundCopy := false, false, false
	for _, n := range g.Nodes {
		switch n.Type {
		case TypeCreateCanvas:
			foundCanvas = true
		case TypeScale:
			foundScale = true
		case TypeCopyRectToCanvas:
			foundCopy = true
		}
	}
	if !foundCanvas || !foundScale || !foundCopy {
		t.Fatalf("expansion missing nodes: canvas=%v scale=%v copy=%v", foundCanvas, foundScale, foundCopy)
	}
}

func TestTopoOrderDetectsCycle(t *testing.T) {
	g := New()
	a := g.AddNode(TypeFlipHInPlace, nil)
	b := g.AddNode(TypeFlipVInPlace, nil)
	if err := g.Connect(a, b, EdgeInput); err != nil {
		t.Fatal(err)
	}
	if err := g.Connect(b, a, EdgeInput); err != nil {
		t.Fatal(err)
	}
	if _, err := g.TopoOrder(); err == nil {
		t.Fatal("expected cycle detection error, got nil")
	} else if ferror.KindOf(err) != ferror.KindInvalidNodeConnections {
		t.Fatalf("unexpected error kind: %v", err)
	}
}

func TestRewriteWithoutExpanderReportsInvalidOperation(t *testing.T) {
	pngBytes := encodeTestPNG(t, 4, 4)

	g := New()
	decodeID := g.AddNode(TypeDecode, &DecodeParams{IoID: "png", Frame: 0})
	csID := g.AddNode(TypeCommandString, &CommandStringParams{Query: "width=10"})
	if err := g.Connect(decodeID, csID, EdgeInput); err != nil {
		t.Fatal(err)
	}

	prevExpander := CommandStringExpanderFunc
	CommandStringExpanderFunc = nil
	defer func() { CommandStringExpanderFunc = prevExpander }()

	ex := &ExecContext{
		Arena:    arena.New(),
		Registry: codecs.NewDefaultRegistry(),
		Sources:  map[string]io.Reader{"png": bytes.NewReader(pngBytes)},
	}
	err := Rewrite(g, ex, 2)
	if err == nil {
		t.Fatal("expected an error from an unresolvable CommandString node")
	}
	if ferror.KindOf(err) != ferror.KindInvalidOperation {
		t.Fatalf("unexpected error kind: %v (%v)", ferror.KindOf(err), err)
	}
}

func TestRewriteExceedsMaxPasses(t *testing.T) {
	pngBytes := encodeTestPNG(t, 4, 4)

	g := New()
	decodeID := g.AddNode(TypeDecode, &DecodeParams{IoID: "png", Frame: 0})
	csID := g.AddNode(TypeCommandString, &CommandStringParams{Query: "width=10"})
	if err := g.Connect(decodeID, csID, EdgeInput); err != nil {
		t.Fatal(err)
	}

	// An expander that always replaces a CommandString node with another,
	// equally unresolved, CommandString node never converges, so the loop
	// must exhaust maxPasses and report KindMaxPasses.
	prevExpander := CommandStringExpanderFunc
	CommandStringExpanderFunc = func(g *Graph, query string, input ID) (ID, error) {
		next := g.AddNode(TypeCommandString, &CommandStringParams{Query: query})
		if err := g.Connect(input, next, EdgeInput); err != nil {
			return 0, err
		}
		return next, nil
	}
	defer func() { CommandStringExpanderFunc = prevExpander }()

	ex := &ExecContext{
		Arena:    arena.New(),
		Registry: codecs.NewDefaultRegistry(),
		Sources:  map[string]io.Reader{"png": bytes.NewReader(pngBytes)},
	}
	err := Rewrite(g, ex, 3)
	if err == nil {
		t.Fatal("expected KindMaxPasses error")
	}
	if ferror.KindOf(err) != ferror.KindMaxPasses {
		t.Fatalf("unexpected error kind: %v (%v)", ferror.KindOf(err), err)
	}
}

func runConstrainPipeline(t *testing.T, srcW, srcH int, params *ConstrainParams) (*Graph, ID) {
	t.Helper()
	pngBytes := encodeTestPNG(t, srcW, srcH)
	var out bytes.Buffer

	g := New()
	decodeID := g.AddNode(TypeDecode, &DecodeParams{IoID: "png", Frame: 0})
	constrainID := g.AddNode(TypeConstrain, params)
	if err := g.Connect(decodeID, constrainID, EdgeInput); err != nil {
		t.Fatal(err)
	}
	encodeID := g.AddNode(TypeEncode, &EncodeParams{IoID: "png"})
	if err := g.Connect(constrainID, encodeID, EdgeInput); err != nil {
		t.Fatal(err)
	}

	ex := &ExecContext{
		Arena:    arena.New(),
		Registry: codecs.NewDefaultRegistry(),
		Sources:  map[string]io.Reader{"png": bytes.NewReader(pngBytes)},
		Sinks:    map[string]io.Writer{"png": &out},
	}
	if err := Rewrite(g, ex, 0); err != nil {
		t.Fatalf("Rewrite: %v", err)
	}
	if !g.FullyExecuted() {
		t.Fatal("graph did not reach fully executed state")
	}
	if out.Len() == 0 {
		t.Fatal("encoder produced no output bytes")
	}
	return g, encodeID
}

func TestConstrainModeMaxFitsWithoutCanvas(t *testing.T) {
	g, encodeID := runConstrainPipeline(t, 40, 20, &ConstrainParams{TargetWidth: 20, TargetHeight: 20, Mode: ConstrainModeMax})
	if g.Nodes[encodeID].Width != 20 || g.Nodes[encodeID].Height != 10 {
		t.Fatalf("Max mode output = %dx%d, want 20x10", g.Nodes[encodeID].Width, g.Nodes[encodeID].Height)
	}
	for _, n := range g.Nodes {
		if n.Type == TypeCreateCanvas {
			t.Fatal("Max mode should never need a padding canvas when it already fits")
		}
	}
}

func TestConstrainModePadCentersOnCanvas(t *testing.T) {
	g, encodeID := runConstrainPipeline(t, 40, 20, &ConstrainParams{TargetWidth: 20, TargetHeight: 20, Mode: ConstrainModePad})
	if g.Nodes[encodeID].Width != 20 || g.Nodes[encodeID].Height != 20 {
		t.Fatalf("Pad mode output = %dx%d, want exactly the requested 20x20 box", g.Nodes[encodeID].Width, g.Nodes[encodeID].Height)
	}
	foundCanvas, foundCopy := false, false
	for _, n := range g.Nodes {
		switch n.Type {
		case TypeCreateCanvas:
			foundCanvas = true
		case TypeCopyRectToCanvas:
			foundCopy = true
		}
	}
	if !foundCanvas || !foundCopy {
		t.Fatalf("Pad mode should produce a canvas+copy pair: canvas=%v copy=%v", foundCanvas, foundCopy)
	}
}

func TestConstrainModeCropCoversAndCrops(t *testing.T) {
	g, encodeID := runConstrainPipeline(t, 40, 20, &ConstrainParams{TargetWidth: 20, TargetHeight: 20, Mode: ConstrainModeCrop})
	if g.Nodes[encodeID].Width != 20 || g.Nodes[encodeID].Height != 20 {
		t.Fatalf("Crop mode output = %dx%d, want exactly 20x20", g.Nodes[encodeID].Width, g.Nodes[encodeID].Height)
	}
	foundCrop := false
	for _, n := range g.Nodes {
		if n.Type == TypeCropMutate {
			foundCrop = true
		}
	}
	if !foundCrop {
		t.Fatal("Crop mode should crop the source to match the target aspect ratio")
	}
}

func TestConstrainModeDistortStretchesExactly(t *testing.T) {
	g, encodeID := runConstrainPipeline(t, 40, 20, &ConstrainParams{TargetWidth: 15, TargetHeight: 15, Mode: ConstrainModeDistort})
	if g.Nodes[encodeID].Width != 15 || g.Nodes[encodeID].Height != 15 {
		t.Fatalf("Distort mode output = %dx%d, want exactly 15x15", g.Nodes[encodeID].Width, g.Nodes[encodeID].Height)
	}
	for _, n := range g.Nodes {
		if n.Type == TypeCropMutate {
			t.Fatal("Distort mode should never crop the source")
		}
	}
}

func TestConstrainDerivesMissingDimensionFromAspect(t *testing.T) {
	g, encodeID := runConstrainPipeline(t, 40, 20, &ConstrainParams{TargetWidth: 10, Mode: ConstrainModeMax})
	if g.Nodes[encodeID].Width != 10 || g.Nodes[encodeID].Height != 5 {
		t.Fatalf("height-omitted constrain = %dx%d, want 10x5 (derived from 2:1 source aspect)", g.Nodes[encodeID].Width, g.Nodes[encodeID].Height)
	}
}
