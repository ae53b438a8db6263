// Package graph implements the operation graph (spec §4.7-4.9): a typed
// Node/Edge DAG, a multi-pass fixed-point rewriter, and the executor that
// walks it to completion.
//
// Grounded on original_source/imageflow_core/src/flow/mod.rs's job_execute
// or its six-stage loop (populate-dimensions -> pre-flatten -> optimize ->
// post-flatten -> execute, repeated until every node reports Executed or
// max_calc_flatten_execute_passes is hit) and original_source/.../graph.rs
// for the node/edge storage shape.
package graph

import "github.com/imageflow/imageflow/internal/arena"

// ID identifies a node within a Graph.
type ID int

// Category groups node types by how the rewriter and executor must treat
// them (spec §4.9).
type Category int

const (
	// CategoryLeafDecoder nodes have no inputs and produce a bitmap from a
	// registered codec.
	CategoryLeafDecoder Category = iota
	// CategoryCanvas nodes have no inputs and allocate a new, blank bitmap.
	CategoryCanvas
	// CategoryDestructive1Input nodes mutate their single input's bitmap
	// in place (e.g. a brightness adjustment).
	CategoryDestructive1Input
	// CategoryClonable1Input nodes transform their single input; an input
	// with other consumers is not cloned first.
	CategoryClonable1Input
	// Category1Input1Canvas nodes draw a transformed version of their
	// input onto a separate canvas input (e.g. CopyRectToCanvas).
	Category1Input1Canvas
	// CategoryExpander nodes are rewritten by the optimizer into a
	// subgraph of simpler nodes before ever executing directly.
	CategoryExpander
	// CategoryCommandString nodes parse a query-string-shaped parameter
	// into an equivalent subgraph.
	CategoryCommandString
	// CategorySinkEncoder nodes have one input and no outputs; they write
	// to an IoProxy via a registered codec.
	CategorySinkEncoder
)

// Type identifies a specific node behavior within a Category.
type Type int

const (
	TypeDecode Type = iota
	TypeCreateCanvas
	TypeFlipHInPlace
	TypeFlipVInPlace
	TypeCropMutate
	TypeScale
	TypeCopyRectToCanvas
	TypeRotate90
	TypeRotate180
	TypeRotate270
	TypeConstrain // expander: rewrites to Crop? + Scale + (CreateCanvas + CopyRectToCanvas)?
	TypeCommandString
	TypeEncode
)

func (t Type) Category() Category {
	switch t {
	case TypeDecode:
		return CategoryLeafDecoder
	case TypeCreateCanvas:
		return CategoryCanvas
	case TypeFlipHInPlace, TypeFlipVInPlace:
		return CategoryDestructive1Input
	case TypeCropMutate, TypeRotate90, TypeRotate180, TypeRotate270:
		return CategoryClonable1Input
	case TypeScale, TypeCopyRectToCanvas:
		return Category1Input1Canvas
	case TypeConstrain:
		return CategoryExpander
	case TypeCommandString:
		return CategoryCommandString
	case TypeEncode:
		return CategorySinkEncoder
	default:
		return CategoryLeafDecoder
	}
}

// execState is derived, never stored directly: a node is "executed" once
// its OutputKey is set (spec §4.8: "node lifecycle states are derived from
// what data is present, not tracked as a separate enum").
type execState int

const (
	stateNew execState = iota
	stateDimensionsKnown
	stateFlattened
	stateExecuted
)

// Node is one vertex of the operation graph. Params carries the
// type-specific configuration (e.g. *ScaleParams, *DecodeParams);
// OutputKey is set once the node has produced (or mutated) a bitmap.
type Node struct {
	ID        ID
	Type      Type
	Params    any
	OutputKey arena.Key
	HasOutput bool
	Width     int
	Height    int
	DimsKnown bool
}

func (n *Node) state() execState {
	switch {
	case n.HasOutput:
		return stateExecuted
	case flattenedTypes[n.Type]:
		return stateFlattened
	case n.DimsKnown:
		return stateDimensionsKnown
	default:
		return stateNew
	}
}

// flattenedTypes marks the concrete (non-expander, non-command-string)
// types that the rewriter produces; a node of one of these types is
// already "flattened" the moment it exists.
var flattenedTypes = map[Type]bool{
	TypeDecode: true, TypeCreateCanvas: true, TypeFlipHInPlace: true,
	TypeFlipVInPlace: true, TypeCropMutate: true, TypeScale: true,
	TypeCopyRectToCanvas: true, TypeRotate90: true, TypeRotate180: true,
	TypeRotate270: true, TypeEncode: true,
}

// DecodeParams configures a TypeDecode node.
type DecodeParams struct {
	IoID  string
	Frame int
}

// CreateCanvasParams configures a TypeCreateCanvas node. Color is the
// fill (b,g,r,a order, matching arena.Bitmap.MatteColor's convention);
// the zero value is transparent/opaque black, matching a zeroed buffer.
type CreateCanvasParams struct {
	Width, Height int
	Layout        arena.PixelLayout
	Alpha         bool
	Color         [4]byte
}

// CropParams configures a TypeCropMutate node.
type CropParams struct {
	X1, Y1, X2, Y2 int
}

// ScaleParams configures a TypeScale node, grounded on weights.Filter.
type ScaleParams struct {
	Filter                    int // a weights.Filter value, stored as int
	SharpenPercent            float64
	TargetWidth, TargetHeight int
}

// CopyRectToCanvasParams configures a TypeCopyRectToCanvas node: where on
// the canvas input the source input is composited.
type CopyRectToCanvasParams struct {
	X, Y int
}

// ConstrainParams configures a TypeConstrain expander node (spec §4.9:
// "Expander... rewritten by the optimizer into a subgraph of simpler
// nodes"); it is a thin wrapper over the layout solver's output (spec
// §4.11). TargetWidth/TargetHeight may be 0 to mean "derive from the
// other axis, preserving the input's aspect ratio".
type ConstrainParams struct {
	TargetWidth, TargetHeight int
	Mode                      ConstrainMode
	Filter                    int
	SharpenPercent            float64
	BgColor                   [4]byte
	// NoUpscale mirrors the IR4 "scale=down" default (spec §6): the
	// target box is clamped to the input's own size on whichever axis
	// it would otherwise enlarge.
	NoUpscale bool
}

// ConstrainMode selects which layout.Step sequence a Constrain node lowers
// to (spec §6's IR4 "mode" key: max|pad|crop|distort).
type ConstrainMode int

const (
	// ConstrainModeMax scales down to fit within the box, preserving
	// aspect ratio; never upscales beyond the box, never crops or pads.
	ConstrainModeMax ConstrainMode = iota
	// ConstrainModePad scales to fit within the box, then pads the
	// canvas out to the box's exact dimensions.
	ConstrainModePad
	// ConstrainModeCrop scales to cover the box, then crops the canvas
	// down to the box's exact dimensions.
	ConstrainModeCrop
	// ConstrainModeDistort stretches to the box's exact dimensions,
	// ignoring the input's aspect ratio.
	ConstrainModeDistort
)

// CommandStringParams configures a TypeCommandString node: an IR4-style
// query string to be translated into a subgraph by internal/ir4.
type CommandStringParams struct {
	Query string
}

// EncodeParams configures a TypeEncode sink node. Format names the codec
// key the encoder is bound under in the registry (e.g. "png", "webp");
// left empty, the executor uses whatever the registry has aliased for
// IoID (spec §6's "preferred mime/extension are chosen by the encoder").
type EncodeParams struct {
	IoID    string
	Format  string
	Quality int
}
