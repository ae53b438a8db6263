package framewise

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/imageflow/imageflow/internal/arena"
	"github.com/imageflow/imageflow/internal/ferror"
	"github.com/imageflow/imageflow/internal/graph"
	"github.com/imageflow/imageflow/internal/weights"
)

// addNode unmarshals one tagged-object Node ({"decode":{...}}) and adds
// the corresponding graph.Node, returning its ID.
func addNode(g *graph.Graph, raw json.RawMessage) (graph.ID, error) {
	var tagged map[string]json.RawMessage
	if err := json.Unmarshal(raw, &tagged); err != nil {
		return 0, ferror.Wrap(err, ferror.KindInvalidNodeParams, "framewise: node must be a single-key tagged object")
	}
	if len(tagged) != 1 {
		return 0, ferror.New(ferror.KindInvalidNodeParams, "framewise: node object must have exactly one key, got %d", len(tagged))
	}
	var tag string
	var body json.RawMessage
	for k, v := range tagged {
		tag, body = k, v
	}

	switch tag {
	case "decode":
		var b struct {
			IoID     json.Number       `json:"io_id"`
			Frame    int               `json:"frame"`
			Commands []json.RawMessage `json:"commands,omitempty"`
		}
		if err := json.Unmarshal(body, &b); err != nil {
			return 0, ferror.Wrap(err, ferror.KindInvalidNodeParams, "framewise: decode")
		}
		return g.AddNode(graph.TypeDecode, &graph.DecodeParams{IoID: b.IoID.String(), Frame: b.Frame}), nil

	case "create_canvas":
		var b struct {
			W      int    `json:"w"`
			H      int    `json:"h"`
			Format string `json:"format,omitempty"`
			Color  string `json:"color,omitempty"`
		}
		if err := json.Unmarshal(body, &b); err != nil {
			return 0, ferror.Wrap(err, ferror.KindInvalidNodeParams, "framewise: create_canvas")
		}
		layout, alpha, err := parsePixelFormat(b.Format)
		if err != nil {
			return 0, err
		}
		color, err := parseColor(b.Color)
		if err != nil {
			return 0, err
		}
		return g.AddNode(graph.TypeCreateCanvas, &graph.CreateCanvasParams{Width: b.W, Height: b.H, Layout: layout, Alpha: alpha, Color: color}), nil

	case "flip_h":
		return g.AddNode(graph.TypeFlipHInPlace, &struct{}{}), nil
	case "flip_v":
		return g.AddNode(graph.TypeFlipVInPlace, &struct{}{}), nil

	case "crop":
		var b struct {
			X1 int `json:"x1"`
			Y1 int `json:"y1"`
			X2 int `json:"x2"`
			Y2 int `json:"y2"`
		}
		if err := json.Unmarshal(body, &b); err != nil {
			return 0, ferror.Wrap(err, ferror.KindInvalidNodeParams, "framewise: crop")
		}
		return g.AddNode(graph.TypeCropMutate, &graph.CropParams{X1: b.X1, Y1: b.Y1, X2: b.X2, Y2: b.Y2}), nil

	case "rotate_90":
		return g.AddNode(graph.TypeRotate90, &struct{}{}), nil
	case "rotate_180":
		return g.AddNode(graph.TypeRotate180, &struct{}{}), nil
	case "rotate_270":
		return g.AddNode(graph.TypeRotate270, &struct{}{}), nil

	case "resample_2d", "scale":
		var b struct {
			W              int     `json:"w"`
			H              int     `json:"h"`
			Filter         string  `json:"filter,omitempty"`
			SharpenPercent float64 `json:"sharpen_percent,omitempty"`
		}
		if err := json.Unmarshal(body, &b); err != nil {
			return 0, ferror.Wrap(err, ferror.KindInvalidNodeParams, "framewise: %s", tag)
		}
		filter, err := parseFilter(b.Filter)
		if err != nil {
			return 0, err
		}
		return g.AddNode(graph.TypeScale, &graph.ScaleParams{
			Filter: int(filter), SharpenPercent: b.SharpenPercent,
			TargetWidth: b.W, TargetHeight: b.H,
		}), nil

	case "copy_rect_to_canvas":
		var b struct{ X, Y int }
		if err := json.Unmarshal(body, &b); err != nil {
			return 0, ferror.Wrap(err, ferror.KindInvalidNodeParams, "framewise: copy_rect_to_canvas")
		}
		return g.AddNode(graph.TypeCopyRectToCanvas, &graph.CopyRectToCanvasParams{X: b.X, Y: b.Y}), nil

	case "constrain":
		var b struct {
			W              int     `json:"w"`
			H              int     `json:"h"`
			Mode           string  `json:"mode,omitempty"`
			Filter         string  `json:"filter,omitempty"`
			BgColor        string  `json:"bgcolor,omitempty"`
			SharpenPercent float64 `json:"sharpen_percent,omitempty"`
			NoUpscale      bool    `json:"no_upscale,omitempty"`
		}
		if err := json.Unmarshal(body, &b); err != nil {
			return 0, ferror.Wrap(err, ferror.KindInvalidNodeParams, "framewise: constrain")
		}
		filter, err := parseFilter(b.Filter)
		if err != nil {
			return 0, err
		}
		mode, err := parseConstrainMode(b.Mode)
		if err != nil {
			return 0, err
		}
		bgColor, err := parseColor(b.BgColor)
		if err != nil {
			return 0, err
		}
		return g.AddNode(graph.TypeConstrain, &graph.ConstrainParams{
			TargetWidth: b.W, TargetHeight: b.H, Mode: mode, Filter: int(filter),
			SharpenPercent: b.SharpenPercent, BgColor: bgColor, NoUpscale: b.NoUpscale,
		}), nil

	case "command_string":
		var b struct {
			Kind  string `json:"kind,omitempty"`
			Value string `json:"value"`
		}
		if err := json.Unmarshal(body, &b); err != nil {
			return 0, ferror.Wrap(err, ferror.KindInvalidNodeParams, "framewise: command_string")
		}
		return g.AddNode(graph.TypeCommandString, &graph.CommandStringParams{Query: b.Value}), nil

	case "encode":
		var b struct {
			IoID    json.Number     `json:"io_id"`
			Quality int             `json:"quality,omitempty"`
			Format  string          `json:"format,omitempty"`
			Preset  json.RawMessage `json:"preset,omitempty"`
		}
		if err := json.Unmarshal(body, &b); err != nil {
			return 0, ferror.Wrap(err, ferror.KindInvalidNodeParams, "framewise: encode")
		}
		format := b.Format
		if format == "" && len(b.Preset) > 0 {
			format = presetFormat(b.Preset)
		}
		return g.AddNode(graph.TypeEncode, &graph.EncodeParams{IoID: b.IoID.String(), Format: format, Quality: b.Quality}), nil

	default:
		return 0, ferror.New(ferror.KindInvalidNodeParams, "framewise: unknown node type %q", tag)
	}
}

// presetFormat extracts a codec key from an encode node's "preset" object
// (spec §6 example: `{"libpng":{"depth":"Png32"}}` or
// `{"format":{"format":"Avif","quality_profile":"High"}}`). Preset-specific
// tuning fields (depth, quality_profile, ...) beyond the format name itself
// are not yet threaded through to the encoder.
func presetFormat(raw json.RawMessage) string {
	var tagged map[string]json.RawMessage
	if err := json.Unmarshal(raw, &tagged); err != nil {
		return ""
	}
	for key, body := range tagged {
		switch key {
		case "libpng", "png":
			return "png"
		case "libjpeg", "mozjpeg", "jpeg":
			return "jpeg"
		case "gif":
			return "gif"
		case "webp":
			return "webp"
		case "avif":
			return "avif"
		case "format":
			var inner struct {
				Format string `json:"format"`
			}
			if err := json.Unmarshal(body, &inner); err == nil {
				return strings.ToLower(inner.Format)
			}
		}
	}
	return ""
}

func parsePixelFormat(format string) (arena.PixelLayout, bool, error) {
	switch format {
	case "", "bgra32":
		return arena.LayoutBGRA32, true, nil
	case "bgr32":
		return arena.LayoutBGR32, false, nil
	case "bgr24":
		return arena.LayoutBGR24, false, nil
	case "gray8":
		return arena.LayoutGray8, false, nil
	default:
		return 0, false, ferror.New(ferror.KindInvalidNodeParams, "framewise: unknown pixel format %q", format)
	}
}

// parseColor accepts a "rrggbb" or "rrggbbaa" hex string (spec §6's
// bgcolor/paddingcolor surface) and returns it in the arena's b,g,r,a
// byte order. An empty string is transparent black.
func parseColor(hex string) ([4]byte, error) {
	if hex == "" {
		return [4]byte{}, nil
	}
	if len(hex) != 6 && len(hex) != 8 {
		return [4]byte{}, ferror.New(ferror.KindInvalidNodeParams, "framewise: color %q must be 6 or 8 hex digits", hex)
	}
	var rgba [4]byte
	n, err := fmt.Sscanf(hex[:6], "%02x%02x%02x", &rgba[0], &rgba[1], &rgba[2])
	if err != nil || n != 3 {
		return [4]byte{}, ferror.Wrap(err, ferror.KindInvalidNodeParams, "framewise: invalid color %q", hex)
	}
	rgba[3] = 0xff
	if len(hex) == 8 {
		if _, err := fmt.Sscanf(hex[6:8], "%02x", &rgba[3]); err != nil {
			return [4]byte{}, ferror.Wrap(err, ferror.KindInvalidNodeParams, "framewise: invalid alpha in color %q", hex)
		}
	}
	// arena bitmaps store channels in b,g,r,a order.
	return [4]byte{rgba[2], rgba[1], rgba[0], rgba[3]}, nil
}

// filterNames maps the IR4/framewise filter name surface onto
// weights.Filter (spec §6: encoder-family tuning keys are preserved
// bit-for-bit; resampling filter names likewise name a fixed kernel set).
var filterNames = map[string]weights.Filter{
	"box": weights.FilterBox, "triangle": weights.FilterTriangle,
	"linear": weights.FilterLinear, "lanczos2": weights.FilterLanczos2,
	"lanczos": weights.FilterLanczos, "lanczos2_sharp": weights.FilterLanczos2Sharp,
	"lanczos_sharp": weights.FilterLanczosSharp, "cubic_fast": weights.FilterCubicFast,
	"ginseng": weights.FilterGinseng, "ginseng_sharp": weights.FilterGinsengSharp,
	"jinc": weights.FilterJinc, "cubic_b_spline": weights.FilterCubicBSpline,
	"cubic": weights.FilterCubic, "cubic_sharp": weights.FilterCubicSharp,
	"catmull_rom": weights.FilterCatmullRom, "catmull_rom_fast": weights.FilterCatmullRomFast,
	"catmull_rom_fast_sharp": weights.FilterCatmullRomFastSharp, "mitchell": weights.FilterMitchell,
	"mitchell_fast": weights.FilterMitchellFast, "n_cubic": weights.FilterNCubic,
	"n_cubic_sharp": weights.FilterNCubicSharp, "robidoux": weights.FilterRobidoux,
	"fastest": weights.FilterFastest, "robidoux_fast": weights.FilterRobidouxFast,
	"robidoux_sharp": weights.FilterRobidouxSharp, "hermite": weights.FilterHermite,
}

// parseConstrainMode maps the IR4 "mode" values (spec §6: max|pad|crop|
// stretch) onto graph.ConstrainMode.
func parseConstrainMode(mode string) (graph.ConstrainMode, error) {
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
		return 0, ferror.New(ferror.KindInvalidNodeParams, "framewise: unknown constrain mode %q", mode)
	}
}

func parseFilter(name string) (weights.Filter, error) {
	if name == "" {
		return weights.FilterRobidoux, nil
	}
	f, ok := filterNames[name]
	if !ok {
		return 0, ferror.New(ferror.KindInvalidNodeParams, "framewise: unknown filter %q", name)
	}
	return f, nil
}
