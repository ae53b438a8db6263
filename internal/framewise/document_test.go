package framewise

import (
	"encoding/json"
	"testing"

	"github.com/imageflow/imageflow/internal/graph"
)

func TestParseStepsBuildsLinearPipeline(t *testing.T) {
	doc := []byte(`{
		"framewise": [
			{"decode": {"io_id": 0}},
			{"resample_2d": {"w": 100, "h": 50, "filter": "robidoux"}},
			{"encode": {"io_id": 1, "quality": 90}}
		]
	}`)
	job, err := Parse(doc)
	if err != nil {
		t.Fatal(err)
	}
	if len(job.Graph.Nodes) != 3 {
		t.Fatalf("expected 3 nodes, got %d", len(job.Graph.Nodes))
	}
	var decodeID, scaleID, encodeID graph.ID
	for id, n := range job.Graph.Nodes {
		switch n.Type {
		case graph.TypeDecode:
			decodeID = id
		case graph.TypeScale:
			scaleID = id
		case graph.TypeEncode:
			encodeID = id
		}
	}
	if decodeID == 0 || scaleID == 0 || encodeID == 0 {
		t.Fatalf("missing a node type: decode=%d scale=%d encode=%d", decodeID, scaleID, encodeID)
	}
	in, ok := job.Graph.InputOf(scaleID)
	if !ok || in != decodeID {
		t.Fatalf("scale node input = %v, want decode node %v", in, decodeID)
	}
	in, ok = job.Graph.InputOf(encodeID)
	if !ok || in != scaleID {
		t.Fatalf("encode node input = %v, want scale node %v", in, scaleID)
	}
}

func TestParseGraphWiresCanvasEdge(t *testing.T) {
	doc := []byte(`{
		"framewise": {
			"nodes": {
				"0": {"decode": {"io_id": 0}},
				"1": {"create_canvas": {"w": 10, "h": 10, "format": "bgra32"}},
				"2": {"copy_rect_to_canvas": {"x": 0, "y": 0}}
			},
			"edges": [
				{"from": "0", "to": "2", "kind": "input"},
				{"from": "1", "to": "2", "kind": "canvas"}
			]
		}
	}`)
	job, err := Parse(doc)
	if err != nil {
		t.Fatal(err)
	}
	var copyID, canvasID, decodeID graph.ID
	for id, n := range job.Graph.Nodes {
		switch n.Type {
		case graph.TypeCopyRectToCanvas:
			copyID = id
		case graph.TypeCreateCanvas:
			canvasID = id
		case graph.TypeDecode:
			decodeID = id
		}
	}
	cv, ok := job.Graph.CanvasOf(copyID)
	if !ok || cv != canvasID {
		t.Fatalf("copy node canvas = %v, want %v", cv, canvasID)
	}
	in, ok := job.Graph.InputOf(copyID)
	if !ok || in != decodeID {
		t.Fatalf("copy node input = %v, want %v", in, decodeID)
	}
}

func TestParseSecurityCaps(t *testing.T) {
	doc := []byte(`{
		"framewise": [{"decode": {"io_id": 0}}],
		"security": {"max_decode_size": {"w": 4000, "h": 4000, "megapixels": 40}}
	}`)
	job, err := Parse(doc)
	if err != nil {
		t.Fatal(err)
	}
	if job.Caps.MaxDecodeSize == nil || job.Caps.MaxDecodeSize.MaxWidth != 4000 {
		t.Fatalf("security caps not parsed: %+v", job.Caps.MaxDecodeSize)
	}
}

func TestParseRejectsMultiKeyNode(t *testing.T) {
	doc := []byte(`{"framewise": [{"decode": {"io_id": 0}, "encode": {"io_id": 1}}]}`)
	if _, err := Parse(doc); err == nil {
		t.Fatal("expected an error for a two-key tagged node")
	}
}

func TestParseRejectsUnknownNodeType(t *testing.T) {
	doc := []byte(`{"framewise": [{"frobnicate": {}}]}`)
	if _, err := Parse(doc); err == nil {
		t.Fatal("expected an error for an unrecognized node tag")
	}
}

func TestRecordRoundTripsShape(t *testing.T) {
	g := graph.New()
	g.AddNode(graph.TypeDecode, &graph.DecodeParams{IoID: "0"})
	data, err := Record(g)
	if err != nil {
		t.Fatal(err)
	}
	var snap graphSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		t.Fatal(err)
	}
	if len(snap.Nodes) != 1 {
		t.Fatalf("expected 1 recorded node, got %d", len(snap.Nodes))
	}
}
