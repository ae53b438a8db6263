package graph

// populateDimensions walks every node and fills in Width/Height/DimsKnown
// wherever enough upstream information is now available (spec §4.8:
// "frame estimate states... derived bottom-up, never guessed"). It is
// idempotent and safe to call repeatedly as the graph is rewritten.
func populateDimensions(g *Graph) error {
	order, err := g.TopoOrder()
	if err != nil {
		return err
	}
	for _, id := range order {
		n := g.Nodes[id]
		if n.DimsKnown {
			continue
		}
		switch n.Type {
		case TypeDecode:
			// Dimensions for a decode node come from the codec's Info();
			// the executor fills them in in executeWhereCertain the first
			// time it runs the decode, since only the registry knows the
			// source's real size. Until then, dims stay unknown.
		case TypeCreateCanvas:
			p := n.Params.(*CreateCanvasParams)
			n.Width, n.Height, n.DimsKnown = p.Width, p.Height, true
		case TypeFlipHInPlace, TypeFlipVInPlace, TypeCropMutate:
			if in, ok := g.InputOf(id); ok && g.Nodes[in].DimsKnown {
				inNode := g.Nodes[in]
				w, h := inNode.Width, inNode.Height
				if n.Type == TypeCropMutate {
					p := n.Params.(*CropParams)
					w, h = p.X2-p.X1, p.Y2-p.Y1
				}
				n.Width, n.Height, n.DimsKnown = w, h, true
			}
		case TypeRotate90, TypeRotate270:
			if in, ok := g.InputOf(id); ok && g.Nodes[in].DimsKnown {
				inNode := g.Nodes[in]
				n.Width, n.Height, n.DimsKnown = inNode.Height, inNode.Width, true
			}
		case TypeRotate180:
			if in, ok := g.InputOf(id); ok && g.Nodes[in].DimsKnown {
				inNode := g.Nodes[in]
				n.Width, n.Height, n.DimsKnown = inNode.Width, inNode.Height, true
			}
		case TypeScale:
			p := n.Params.(*ScaleParams)
			if p.TargetWidth > 0 && p.TargetHeight > 0 {
				n.Width, n.Height, n.DimsKnown = p.TargetWidth, p.TargetHeight, true
			}
		case TypeCopyRectToCanvas:
			if cv, ok := g.CanvasOf(id); ok && g.Nodes[cv].DimsKnown {
				cvNode := g.Nodes[cv]
				n.Width, n.Height, n.DimsKnown = cvNode.Width, cvNode.Height, true
			}
		case TypeEncode:
			if in, ok := g.InputOf(id); ok && g.Nodes[in].DimsKnown {
				inNode := g.Nodes[in]
				n.Width, n.Height, n.DimsKnown = inNode.Width, inNode.Height, true
			}
		}
	}
	return nil
}
