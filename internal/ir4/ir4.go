// Package ir4 translates the IR4 query-string command surface (spec §6)
// into the operation-graph subgraph a CommandString node expands to. It
// registers itself into graph.CommandStringExpanderFunc at init time —
// the same function-pointer collaboration the teacher uses between
// animation.go and webp.go (animation.FrameDecoderFunc) to let two
// packages cooperate without an import cycle, since internal/graph
// cannot import internal/ir4 (ir4 must import graph to build the
// subgraph it returns).
//
// Out of scope per spec §1's Non-goals list (the query-string translator
// is named explicitly as an external collaborator characterized only by
// the graph it produces): encoder-family tuning keys (webp-70, jxl-d1,
// ...), watermark presets, color filters (s.invert, s.sepia, ...), and
// EXIF autorotate — none of these have a corresponding node type in
// internal/graph, so Parse ignores them and they produce no graph nodes;
// see the IR4 section of DESIGN.md.
package ir4

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/imageflow/imageflow/internal/ferror"
	"github.com/imageflow/imageflow/internal/graph"
)

func init() {
	graph.CommandStringExpanderFunc = Expand
}

// Warning records a query parameter imageflow recognized but could not
// apply as given (spec §6: "parser warnings are a vector of (rule,
// offending value)").
type Warning struct {
	Rule  string
	Value string
}

// Command is the parsed form of an IR4 query string, limited to the
// sizing- and cropping-relevant subset internal/graph can execute.
type Command struct {
	W, H           int // 0 means unset
	Mode           string
	ScaleDown      bool // query key "scale"; "down" (default) vs "both"/"canvas"
	SharpenPercent float64
	BgColor        string
	Crop           [4]float64 // x1,y1,x2,y2
	HasCrop        bool
	CropXUnits     float64 // 0 = pixels, else crop values are a fraction of this
	CropYUnits     float64

	Warnings []Warning
}

// Parse reads an IR4 query string (the part after '?', or a bare
// ampersand-joined key=value list) into a Command.
func Parse(query string) (*Command, error) {
	values, err := url.ParseQuery(query)
	if err != nil {
		return nil, ferror.Wrap(err, ferror.KindInvalidNodeParams, "ir4: invalid query string")
	}
	cmd := &Command{ScaleDown: true}

	if v := values.Get("w"); v != "" {
		cmd.W = parseIntOrWarn(cmd, "w", v)
	} else if v := values.Get("width"); v != "" {
		cmd.W = parseIntOrWarn(cmd, "width", v)
	}
	if v := values.Get("h"); v != "" {
		cmd.H = parseIntOrWarn(cmd, "h", v)
	} else if v := values.Get("height"); v != "" {
		cmd.H = parseIntOrWarn(cmd, "height", v)
	}

	cmd.Mode = strings.ToLower(values.Get("mode"))
	if cmd.Mode == "" {
		cmd.Mode = strings.ToLower(values.Get("fit"))
	}

	switch strings.ToLower(values.Get("scale")) {
	case "both", "canvas":
		cmd.ScaleDown = false
	case "", "down":
		cmd.ScaleDown = true
	default:
		cmd.Warnings = append(cmd.Warnings, Warning{Rule: "scale", Value: values.Get("scale")})
	}

	if v := values.Get("f.sharpen"); v != "" {
		cmd.SharpenPercent = parseFloatOrWarn(cmd, "f.sharpen", v)
	} else if v := values.Get("sharpen"); v != "" {
		cmd.SharpenPercent = parseFloatOrWarn(cmd, "sharpen", v)
	}

	cmd.BgColor = values.Get("bgcolor")
	if cmd.BgColor == "" {
		cmd.BgColor = values.Get("paddingcolor")
	}

	if v := values.Get("crop"); v != "" {
		parts := strings.Split(v, ",")
		if len(parts) != 4 {
			cmd.Warnings = append(cmd.Warnings, Warning{Rule: "crop", Value: v})
		} else {
			cmd.HasCrop = true
			for i, p := range parts {
				cmd.Crop[i] = parseFloatOrWarn(cmd, "crop", strings.TrimSpace(p))
			}
		}
	}
	cmd.CropXUnits = parseFloatOrWarn(cmd, "cropxunits", values.Get("cropxunits"))
	cmd.CropYUnits = parseFloatOrWarn(cmd, "cropyunits", values.Get("cropyunits"))

	return cmd, nil
}

func parseIntOrWarn(cmd *Command, rule, v string) int {
	n, err := strconv.Atoi(v)
	if err != nil {
		cmd.Warnings = append(cmd.Warnings, Warning{Rule: rule, Value: v})
		return 0
	}
	return n
}

func parseFloatOrWarn(cmd *Command, rule, v string) float64 {
	if v == "" {
		return 0
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		cmd.Warnings = append(cmd.Warnings, Warning{Rule: rule, Value: v})
		return 0
	}
	return f
}

// Expand is the graph.CommandStringExpanderFunc implementation: it parses
// query, optionally inserts a pixel-space Crop node, optionally inserts a
// Constrain node for w/h/mode/scale/sharpen/bgcolor, and returns the id of
// whichever node now stands in for the CommandString node's output (the
// original input, if the query requested no operations at all).
func Expand(g *graph.Graph, query string, input graph.ID) (graph.ID, error) {
	cmd, err := Parse(query)
	if err != nil {
		return 0, err
	}

	last := input
	if cmd.HasCrop {
		x1, y1, x2, y2, err := cropPixelBounds(cmd)
		if err != nil {
			return 0, err
		}
		cropID := g.AddNode(graph.TypeCropMutate, &graph.CropParams{X1: x1, Y1: y1, X2: x2, Y2: y2})
		if err := g.Connect(last, cropID, graph.EdgeInput); err != nil {
			return 0, err
		}
		last = cropID
	}

	if cmd.W > 0 || cmd.H > 0 {
		mode, err := constrainMode(cmd.Mode)
		if err != nil {
			return 0, err
		}
		bgColor, err := parseIR4Color(cmd.BgColor)
		if err != nil {
			return 0, err
		}
		constrainID := g.AddNode(graph.TypeConstrain, &graph.ConstrainParams{
			TargetWidth: cmd.W, TargetHeight: cmd.H, Mode: mode,
			SharpenPercent: cmd.SharpenPercent, BgColor: bgColor, NoUpscale: cmd.ScaleDown,
		})
		if err := g.Connect(last, constrainID, graph.EdgeInput); err != nil {
			return 0, err
		}
		last = constrainID
	}

	return last, nil
}

func constrainMode(mode string) (graph.ConstrainMode, error) {
	switch mode {
	case "", "max":
		return graph.ConstrainModeMax, nil
	case "pad":
		return graph.ConstrainModePad, nil
	case "crop":
		return graph.ConstrainModeCrop, nil
	case "stretch", "distort":
		return graph.ConstrainModeDistort, nil
	default:
		return 0, ferror.New(ferror.KindInvalidNodeParams, "ir4: unknown mode %q", mode)
	}
}

// cropPixelBounds resolves cmd.Crop to absolute pixel coordinates.
// Percentage-unit crops (cropxunits/cropyunits set) would need the
// source's dimensions, which are not yet known at CommandString-expand
// time (populateDimensions only learns a Decode node's size once it has
// executed, and a CommandString node is expanded and deleted in the very
// first pass) — see DESIGN.md's Open Questions. Until the rewriter can
// defer a CommandString expansion the way it defers Constrain, only
// pixel-unit crops are supported; percentage units produce a warning-
// worthy error rather than a silently wrong crop.
func cropPixelBounds(cmd *Command) (x1, y1, x2, y2 int, err error) {
	if cmd.CropXUnits != 0 || cmd.CropYUnits != 0 {
		return 0, 0, 0, 0, ferror.New(ferror.KindInvalidOperation, "ir4: percentage-unit crop (cropxunits/cropyunits) is not yet supported")
	}
	return int(cmd.Crop[0]), int(cmd.Crop[1]), int(cmd.Crop[2]), int(cmd.Crop[3]), nil
}

func parseIR4Color(hex string) ([4]byte, error) {
	if hex == "" {
		return [4]byte{}, nil
	}
	hex = strings.TrimPrefix(hex, "#")
	if len(hex) != 6 && len(hex) != 8 {
		return [4]byte{}, ferror.New(ferror.KindInvalidNodeParams, "ir4: color %q must be 6 or 8 hex digits", hex)
	}
	var out [4]byte // b,g,r,a
	rgb, err := strconv.ParseUint(hex[:6], 16, 32)
	if err != nil {
		return [4]byte{}, ferror.Wrap(err, ferror.KindInvalidNodeParams, "ir4: invalid color %q", hex)
	}
	out[2] = byte(rgb >> 16)
	out[1] = byte(rgb >> 8)
	out[0] = byte(rgb)
	out[3] = 0xff
	if len(hex) == 8 {
		a, err := strconv.ParseUint(hex[6:8], 16, 8)
		if err != nil {
			return [4]byte{}, ferror.Wrap(err, ferror.KindInvalidNodeParams, "ir4: invalid alpha in color %q", hex)
		}
		out[3] = byte(a)
	}
	return out, nil
}
