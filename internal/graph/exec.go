package graph

import (
	"io"

	"github.com/imageflow/imageflow/internal/arena"
	"github.com/imageflow/imageflow/internal/codecs"
	"github.com/imageflow/imageflow/internal/ferror"
	"github.com/imageflow/imageflow/internal/resample"
	"github.com/imageflow/imageflow/internal/security"
	"github.com/imageflow/imageflow/internal/weights"
)

// ExecContext bundles everything the executor needs to turn a Node into
// bitmap operations: the job's arena, the codec registry, the security caps
// checked before each allocation, and the IoProxy-backed sources/sinks a
// Decode/Encode node's io_id resolves to.
type ExecContext struct {
	Arena    *arena.Arena
	Registry *codecs.Registry
	Caps     security.Caps
	Sources  map[string]io.Reader
	Sinks    map[string]io.Writer
}

// executeWhereCertain runs every node whose inputs are executed and whose
// own output has not yet been produced (job_execute_where_certain).
func executeWhereCertain(g *Graph, ex *ExecContext) error {
	order, err := g.TopoOrder()
	if err != nil {
		return err
	}
	for _, id := range order {
		n := g.Nodes[id]
		if n.HasOutput {
			continue
		}
		if !inputsReady(g, n) {
			continue
		}
		if err := execNode(g, n, ex); err != nil {
			return err
		}
	}
	return nil
}

func inputsReady(g *Graph, n *Node) bool {
	if in, ok := g.InputOf(n.ID); ok && !g.Nodes[in].HasOutput {
		return false
	}
	if cv, ok := g.CanvasOf(n.ID); ok && !g.Nodes[cv].HasOutput {
		return false
	}
	return true
}

func execNode(g *Graph, n *Node, ex *ExecContext) error {
	switch n.Type {
	case TypeDecode:
		return execDecode(n, ex)
	case TypeCreateCanvas:
		return execCreateCanvas(n, ex)
	case TypeFlipHInPlace:
		return execFlip(g, n, ex, resample.FlipHInplace)
	case TypeFlipVInPlace:
		return execFlip(g, n, ex, resample.FlipVInplace)
	case TypeCropMutate:
		return execCrop(g, n, ex)
	case TypeRotate90:
		return execRotate(g, n, ex, 90)
	case TypeRotate180:
		return execRotate(g, n, ex, 180)
	case TypeRotate270:
		return execRotate(g, n, ex, 270)
	case TypeScale:
		return execScale(g, n, ex)
	case TypeCopyRectToCanvas:
		return execCopyRectToCanvas(g, n, ex)
	case TypeEncode:
		return execEncode(g, n, ex)
	default:
		return ferror.New(ferror.KindInvalidOperation, "graph: no executor for node type %v", n.Type)
	}
}

func execDecode(n *Node, ex *ExecContext) error {
	p := n.Params.(*DecodeParams)
	src, ok := ex.Sources[p.IoID]
	if !ok {
		return ferror.New(ferror.KindIO, "graph: no source registered for io_id %q", p.IoID)
	}
	dec, err := ex.Registry.OpenDecoder(p.IoID, src)
	if err != nil {
		return err
	}
	info, err := dec.Info()
	if err != nil {
		return err
	}
	if err := ex.Caps.CheckDecodeSize(p.IoID, info.Width, info.Height); err != nil {
		return err
	}
	frame, err := dec.ReadFrame(p.Frame)
	if err != nil {
		return err
	}
	if err := ex.Caps.CheckFrameSize(p.IoID, frame.Width, frame.Height); err != nil {
		return err
	}
	key, err := bitmapFromFrame(ex.Arena, frame)
	if err != nil {
		return err
	}
	n.OutputKey = key
	n.HasOutput = true
	n.Width, n.Height, n.DimsKnown = info.Width, info.Height, true
	return nil
}

// bitmapFromFrame copies a codec's BGRA32 frame into a new arena bitmap.
func bitmapFromFrame(a *arena.Arena, frame codecs.DecodedFrame) (arena.Key, error) {
	key, err := a.Create(frame.Width, frame.Height, arena.LayoutBGRA32, false, frame.HasAlpha, arena.ColorSpaceSRGB, arena.CompositingBlendWithSelf)
	if err != nil {
		return 0, err
	}
	win, release, err := a.BorrowMut(key)
	if err != nil {
		return 0, err
	}
	defer release()
	for y := 0; y < frame.Height; y++ {
		row := win.RowMut(y)
		copy(row, frame.BGRA[y*frame.Stride:y*frame.Stride+frame.Width*4])
	}
	return key, nil
}

func execCreateCanvas(n *Node, ex *ExecContext) error {
	p := n.Params.(*CreateCanvasParams)
	if err := ex.Caps.CheckFrameSize("canvas", p.Width, p.Height); err != nil {
		return err
	}
	key, err := ex.Arena.Create(p.Width, p.Height, p.Layout, true, p.Alpha, arena.ColorSpaceSRGB, arena.CompositingBlendWithSelf)
	if err != nil {
		return err
	}
	if p.Color != ([4]byte{}) {
		if err := fillCanvas(ex.Arena, key, p.Layout, p.Color); err != nil {
			return err
		}
	}
	n.OutputKey, n.HasOutput = key, true
	n.Width, n.Height, n.DimsKnown = p.Width, p.Height, true
	return nil
}

// fillCanvas paints every pixel of key with color (spec §4.9's Canvas
// category contract: "Execute allocates a bitmap filled with a color").
// Only BGRA32/BGR32 match color's 4-byte width; narrower layouts (BGR24,
// Gray8) fall back to the zeroed buffer Create already produced.
func fillCanvas(a *arena.Arena, key arena.Key, layout arena.PixelLayout, color [4]byte) error {
	if layout != arena.LayoutBGRA32 && layout != arena.LayoutBGR32 {
		return nil
	}
	win, release, err := a.BorrowMut(key)
	if err != nil {
		return err
	}
	defer release()
	win.Fill(color[:])
	return nil
}

func execFlip(g *Graph, n *Node, ex *ExecContext, flip func(arena.WindowMut)) error {
	in := g.Nodes[mustInput(g, n)]
	win, release, err := ex.Arena.BorrowMut(in.OutputKey)
	if err != nil {
		return err
	}
	defer release()
	flip(win)
	n.OutputKey, n.HasOutput = in.OutputKey, true
	n.Width, n.Height, n.DimsKnown = in.Width, in.Height, true
	return nil
}

func execCrop(g *Graph, n *Node, ex *ExecContext) error {
	p := n.Params.(*CropParams)
	in := g.Nodes[mustInput(g, n)]
	srcWin, releaseSrc, err := ex.Arena.Borrow(in.OutputKey)
	if err != nil {
		return err
	}
	defer releaseSrc()
	sub, err := srcWin.SubWindow(p.X1, p.Y1, p.X2-p.X1, p.Y2-p.Y1)
	if err != nil {
		return err
	}
	key, err := ex.Arena.Create(sub.Width(), sub.Height(), sub.Layout(), false, sub.AlphaMeaningful(), sub.ColorSpace(), sub.Compositing())
	if err != nil {
		return err
	}
	dstWin, releaseDst, err := ex.Arena.BorrowMut(key)
	if err != nil {
		return err
	}
	defer releaseDst()
	for y := 0; y < sub.Height(); y++ {
		copy(dstWin.RowMut(y), sub.Row(y))
	}
	n.OutputKey, n.HasOutput = key, true
	n.Width, n.Height, n.DimsKnown = sub.Width(), sub.Height(), true
	return nil
}

func execRotate(g *Graph, n *Node, ex *ExecContext, degrees int) error {
	in := g.Nodes[mustInput(g, n)]
	if degrees == 180 {
		win, release, err := ex.Arena.BorrowMut(in.OutputKey)
		if err != nil {
			return err
		}
		defer release()
		resample.FlipHInplace(win)
		resample.FlipVInplace(win)
		n.OutputKey, n.HasOutput = in.OutputKey, true
		n.Width, n.Height, n.DimsKnown = in.Width, in.Height, true
		return nil
	}
	srcWin, release, err := ex.Arena.Borrow(in.OutputKey)
	if err != nil {
		return err
	}
	defer release()
	transposed, err := resample.Transpose(srcWin)
	if err != nil {
		return err
	}
	key := ex.Arena.Adopt(transposed)
	win, releaseT, err := ex.Arena.BorrowMut(key)
	if err != nil {
		return err
	}
	defer releaseT()
	if degrees == 90 {
		resample.FlipHInplace(win)
	} else {
		resample.FlipVInplace(win)
	}
	n.OutputKey, n.HasOutput = key, true
	n.Width, n.Height, n.DimsKnown = transposed.Width, transposed.Height, true
	return nil
}

func execScale(g *Graph, n *Node, ex *ExecContext) error {
	p := n.Params.(*ScaleParams)
	in := g.Nodes[mustInput(g, n)]
	srcWin, release, err := ex.Arena.Borrow(in.OutputKey)
	if err != nil {
		return err
	}
	defer release()
	out, err := resample.Scale2D(srcWin, resample.Scale2DOptions{
		Filter: weights.Filter(p.Filter), SharpenPercent: p.SharpenPercent,
		OutWidth: p.TargetWidth, OutHeight: p.TargetHeight,
		Compositing: srcWin.Compositing(),
	})
	if err != nil {
		return err
	}
	key := ex.Arena.Adopt(out)
	n.OutputKey, n.HasOutput = key, true
	n.Width, n.Height, n.DimsKnown = out.Width, out.Height, true
	return nil
}

func execCopyRectToCanvas(g *Graph, n *Node, ex *ExecContext) error {
	p := n.Params.(*CopyRectToCanvasParams)
	inID, ok := g.InputOf(n.ID)
	if !ok {
		return ferror.New(ferror.KindInvalidNodeConnections, "graph: CopyRectToCanvas node %d has no input", n.ID)
	}
	cvID, ok := g.CanvasOf(n.ID)
	if !ok {
		return ferror.New(ferror.KindInvalidNodeConnections, "graph: CopyRectToCanvas node %d has no canvas", n.ID)
	}
	srcWin, releaseSrc, err := ex.Arena.Borrow(g.Nodes[inID].OutputKey)
	if err != nil {
		return err
	}
	defer releaseSrc()
	dstWin, releaseDst, err := ex.Arena.BorrowMut(g.Nodes[cvID].OutputKey)
	if err != nil {
		return err
	}
	defer releaseDst()
	sub, err := dstWin.SubWindowMut(p.X, p.Y, srcWin.Width(), srcWin.Height())
	if err != nil {
		return err
	}
	for y := 0; y < srcWin.Height(); y++ {
		copy(sub.RowMut(y), srcWin.Row(y))
	}
	n.OutputKey, n.HasOutput = g.Nodes[cvID].OutputKey, true
	n.Width, n.Height, n.DimsKnown = dstWin.Width(), dstWin.Height(), true
	return nil
}

func execEncode(g *Graph, n *Node, ex *ExecContext) error {
	p := n.Params.(*EncodeParams)
	in := g.Nodes[mustInput(g, n)]
	srcWin, release, err := ex.Arena.Borrow(in.OutputKey)
	if err != nil {
		return err
	}
	defer release()
	if err := ex.Caps.CheckEncodeSize(p.IoID, srcWin.Width(), srcWin.Height()); err != nil {
		return err
	}
	frame := codecs.DecodedFrame{
		Width: srcWin.Width(), Height: srcWin.Height(),
		Stride: srcWin.Width() * srcWin.Layout().BytesPerPixel(),
		HasAlpha: srcWin.AlphaMeaningful(),
	}
	frame.BGRA = make([]byte, frame.Stride*frame.Height)
	for y := 0; y < srcWin.Height(); y++ {
		copy(frame.BGRA[y*frame.Stride:(y+1)*frame.Stride], srcWin.Row(y))
	}
	encoderKey := p.IoID
	if p.Format != "" {
		encoderKey = p.Format
	}
	enc, err := ex.Registry.Encoder(encoderKey)
	if err != nil {
		return err
	}
	sink, ok := ex.Sinks[p.IoID]
	if !ok {
		return ferror.New(ferror.KindIO, "graph: no sink registered for io_id %q", p.IoID)
	}
	if err := enc.Encode(sink, frame, codecs.EncodeOptions{Quality: p.Quality}); err != nil {
		return err
	}
	n.OutputKey, n.HasOutput = in.OutputKey, true
	n.Width, n.Height, n.DimsKnown = in.Width, in.Height, true
	return nil
}

func mustInput(g *Graph, n *Node) ID {
	id, _ := g.InputOf(n.ID)
	return id
}
