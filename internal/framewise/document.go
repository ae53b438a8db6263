// Package framewise parses the JSON recipe format a job is submitted with
// (spec §4.12, §6): a top-level {framewise, security?, graph_recording?}
// document whose framewise field is either a Steps array (implicit linear
// pipeline) or a Graph object ({nodes, edges}), and whose nodes are
// single-key tagged objects like {"decode":{"io_id":0}}.
//
// Grounded on the teacher's container/parser.go (a single entry point that
// dispatches on a discriminator read from the stream) for the dispatch-on-
// tag shape, generalized from chunk-FourCC dispatch to JSON-key dispatch.
package framewise

import (
	"encoding/json"

	"github.com/imageflow/imageflow/internal/ferror"
	"github.com/imageflow/imageflow/internal/graph"
	"github.com/imageflow/imageflow/internal/security"
)

// Document is the top-level shape a job is submitted with.
type Document struct {
	Framewise      json.RawMessage `json:"framewise"`
	Security       *securityDoc    `json:"security,omitempty"`
	GraphRecording json.RawMessage `json:"graph_recording,omitempty"`
}

type securityDoc struct {
	MaxDecodeSize *sizeCapDoc `json:"max_decode_size,omitempty"`
	MaxFrameSize  *sizeCapDoc `json:"max_frame_size,omitempty"`
	MaxEncodeSize *sizeCapDoc `json:"max_encode_size,omitempty"`
}

type sizeCapDoc struct {
	W          int     `json:"w,omitempty"`
	H          int     `json:"h,omitempty"`
	Megapixels float64 `json:"megapixels,omitempty"`
}

func (d *sizeCapDoc) toCap() *security.SizeCap {
	if d == nil {
		return nil
	}
	return &security.SizeCap{MaxWidth: d.W, MaxHeight: d.H, MaxMegapixels: d.Megapixels}
}

// ParsedJob is the result of parsing a Document: a ready-to-rewrite Graph
// plus the security caps it was submitted with.
type ParsedJob struct {
	Graph *graph.Graph
	Caps  security.Caps
}

// Parse decodes a framewise Document and builds the Graph it describes.
func Parse(data []byte) (*ParsedJob, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, ferror.Wrap(err, ferror.KindInvalidNodeParams, "framewise: invalid document")
	}
	if len(doc.Framewise) == 0 {
		return nil, ferror.New(ferror.KindInvalidNodeParams, "framewise: missing framewise field")
	}

	g := graph.New()
	if err := parseFramewise(g, doc.Framewise); err != nil {
		return nil, err
	}

	caps := security.Caps{}
	if doc.Security != nil {
		caps.MaxDecodeSize = doc.Security.MaxDecodeSize.toCap()
		caps.MaxFrameSize = doc.Security.MaxFrameSize.toCap()
		caps.MaxEncodeSize = doc.Security.MaxEncodeSize.toCap()
	}
	return &ParsedJob{Graph: g, Caps: caps}, nil
}

// parseFramewise dispatches on whether framewise is a JSON array (Steps)
// or object (Graph).
func parseFramewise(g *graph.Graph, raw json.RawMessage) error {
	trimmed := skipWhitespace(raw)
	if len(trimmed) == 0 {
		return ferror.New(ferror.KindInvalidNodeParams, "framewise: empty framewise value")
	}
	switch trimmed[0] {
	case '[':
		return parseSteps(g, raw)
	case '{':
		return parseGraph(g, raw)
	default:
		return ferror.New(ferror.KindInvalidNodeParams, "framewise: framewise must be an array (Steps) or object (Graph)")
	}
}

func skipWhitespace(b []byte) []byte {
	i := 0
	for i < len(b) {
		switch b[i] {
		case ' ', '\t', '\n', '\r':
			i++
			continue
		}
		break
	}
	return b[i:]
}

// parseSteps builds a linear pipeline: each Node's output feeds the next
// Node's primary input (spec §4.12: "Steps: [Node,...]; edges implicit").
func parseSteps(g *graph.Graph, raw json.RawMessage) error {
	var rawNodes []json.RawMessage
	if err := json.Unmarshal(raw, &rawNodes); err != nil {
		return ferror.Wrap(err, ferror.KindInvalidNodeParams, "framewise: invalid Steps array")
	}
	var prev graph.ID
	havePrev := false
	for i, rn := range rawNodes {
		id, err := addNode(g, rn)
		if err != nil {
			return ferror.Wrap(err, ferror.KindInvalidNodeParams, "framewise: step %d", i)
		}
		if havePrev {
			if err := g.Connect(prev, id, graph.EdgeInput); err != nil {
				return err
			}
		}
		prev, havePrev = id, true
	}
	return nil
}

type graphDoc struct {
	Nodes map[string]json.RawMessage `json:"nodes"`
	Edges []edgeDoc                  `json:"edges"`
}

type edgeDoc struct {
	From string `json:"from"`
	To   string `json:"to"`
	Kind string `json:"kind"`
}

// parseGraph builds an explicit graph: {nodes: {id: Node}, edges:
// [{from,to,kind}]} (spec §4.12). The document's own node ids are strings
// (object keys) and are remapped to the Graph's own graph.ID space.
func parseGraph(g *graph.Graph, raw json.RawMessage) error {
	var gd graphDoc
	if err := json.Unmarshal(raw, &gd); err != nil {
		return ferror.Wrap(err, ferror.KindInvalidNodeParams, "framewise: invalid Graph object")
	}
	ids := make(map[string]graph.ID, len(gd.Nodes))
	for key, rn := range gd.Nodes {
		id, err := addNode(g, rn)
		if err != nil {
			return ferror.Wrap(err, ferror.KindInvalidNodeParams, "framewise: node %q", key)
		}
		ids[key] = id
	}
	for _, e := range gd.Edges {
		from, ok := ids[e.From]
		if !ok {
			return ferror.New(ferror.KindInvalidNodeConnections, "framewise: edge references unknown node %q", e.From)
		}
		to, ok := ids[e.To]
		if !ok {
			return ferror.New(ferror.KindInvalidNodeConnections, "framewise: edge references unknown node %q", e.To)
		}
		kind, err := parseEdgeKind(e.Kind)
		if err != nil {
			return err
		}
		if err := g.Connect(from, to, kind); err != nil {
			return err
		}
	}
	return nil
}

func parseEdgeKind(s string) (graph.EdgeKind, error) {
	switch s {
	case "input", "":
		return graph.EdgeInput, nil
	case "canvas":
		return graph.EdgeCanvas, nil
	default:
		return 0, ferror.New(ferror.KindInvalidNodeParams, "framewise: unknown edge kind %q", s)
	}
}
