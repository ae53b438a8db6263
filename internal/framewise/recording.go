package framewise

import (
	"encoding/json"
	"strconv"

	"github.com/imageflow/imageflow/internal/ferror"
	"github.com/imageflow/imageflow/internal/graph"
)

// nodeSnapshot is the serialized shape of one Node for graph_recording: a
// flat object with the node's type name, size and executed flag, carrying
// just enough to see what ran and at what size. Params are not recorded,
// so a node cannot be re-submitted from its snapshot.
type nodeSnapshot struct {
	Type      string `json:"type"`
	Width     int    `json:"w,omitempty"`
	Height    int    `json:"h,omitempty"`
	DimsKnown bool   `json:"dims_known"`
	HasOutput bool   `json:"executed"`
}

type edgeSnapshot struct {
	From string `json:"from"`
	To   string `json:"to"`
	Kind string `json:"kind"`
}

type graphSnapshot struct {
	Nodes map[string]nodeSnapshot `json:"nodes"`
	Edges []edgeSnapshot          `json:"edges"`
}

var typeNames = map[graph.Type]string{
	graph.TypeDecode: "decode", graph.TypeCreateCanvas: "create_canvas",
	graph.TypeFlipHInPlace: "flip_h", graph.TypeFlipVInPlace: "flip_v",
	graph.TypeCropMutate: "crop", graph.TypeScale: "resample_2d",
	graph.TypeCopyRectToCanvas: "copy_rect_to_canvas", graph.TypeRotate90: "rotate_90",
	graph.TypeRotate180: "rotate_180", graph.TypeRotate270: "rotate_270",
	graph.TypeConstrain: "constrain", graph.TypeCommandString: "command_string",
	graph.TypeEncode: "encode",
}

// Record serializes a Graph's current state into the graph_recording shape
// (spec §4.12 names the field; the exact schema of its contents is left to
// the implementation). It keeps the {nodes, edges} layout of a Graph
// document, but each node is a nodeSnapshot summary, so a recording is
// not a document parseGraph accepts.
func Record(g *graph.Graph) ([]byte, error) {
	snap := graphSnapshot{Nodes: make(map[string]nodeSnapshot, len(g.Nodes))}
	for id, n := range g.Nodes {
		name, ok := typeNames[n.Type]
		if !ok {
			return nil, ferror.New(ferror.KindInternal, "framewise: no type name for graph.Type %v", n.Type)
		}
		snap.Nodes[strconv.Itoa(int(id))] = nodeSnapshot{
			Type: name, Width: n.Width, Height: n.Height,
			DimsKnown: n.DimsKnown, HasOutput: n.HasOutput,
		}
	}
	for _, e := range g.Edges {
		kind := "input"
		if e.Kind == graph.EdgeCanvas {
			kind = "canvas"
		}
		snap.Edges = append(snap.Edges, edgeSnapshot{
			From: strconv.Itoa(int(e.From)), To: strconv.Itoa(int(e.To)), Kind: kind,
		})
	}
	return json.Marshal(snap)
}
