// Package codecs is the decoder/encoder registry (spec §4.6): a narrow
// interface boundary keyed by io_id string, so that individual format
// implementations (PNG/GIF/JPEG via the standard library, WebP via the
// adapted teacher codec, AVIF container-only) are swappable external
// collaborators the graph executor never imports directly.
//
// Grounded on the teacher's top-level webp.go, which registers itself with
// image.RegisterFormat behind a narrow Decode/Encode/DecodeConfig surface;
// Registry generalizes that one-format registration into an explicit
// multi-format table instead of relying on stdlib's global side-effect
// registry, since the graph needs to look codecs up by io_id rather than
// sniff magic bytes alone.
package codecs

import (
	"io"

	"github.com/imageflow/imageflow/internal/ferror"
)

// Info describes a decoded image's static properties, available without
// decoding full pixel data.
type Info struct {
	Width, Height int
	HasAlpha      bool
	FrameCount    int
	IccProfile    []byte // raw embedded ICC profile, if any
	Gamma         []byte // raw PNG gAMA chunk payload, if any
	Cicp          []byte // raw CICP triple, if any
}

// DecodedFrame is one decoded frame's raw samples plus layout, handed to
// the arena by the decoder's ReadFrame.
type DecodedFrame struct {
	Width, Height int
	Stride        int
	BGRA          []byte // always normalized to 32-bit BGRA for the arena
	HasAlpha      bool
}

// Decoder is the narrow interface every format implementation presents to
// the graph's leaf decoder nodes.
type Decoder interface {
	Info() (Info, error)
	ReadFrame(index int) (DecodedFrame, error)
}

// EncodeOptions carries the format-agnostic knobs an encoder may use;
// format-specific fields are carried in a type switch on the concrete
// codec's own options type, passed through Params.
type EncodeOptions struct {
	Quality int // 0-100, meaning is format-specific
	Params  any
}

// Encoder is the narrow interface every format implementation presents to
// the graph's sink encoder nodes.
type Encoder interface {
	Encode(w io.Writer, frame DecodedFrame, opts EncodeOptions) error
}

// DecoderFactory opens a Decoder over r. Implementations may read a
// header's worth of bytes eagerly but must not decode full frames until
// ReadFrame is called.
type DecoderFactory func(r io.Reader) (Decoder, error)

// Registry binds io_id strings to codec factories (spec §4.6: "decoders and
// encoders are bound by io_id, not sniffed").
type Registry struct {
	decoders map[string]DecoderFactory
	encoders map[string]Encoder
}

// NewRegistry returns an empty Registry. Use RegisterDecoder/RegisterEncoder
// or NewDefaultRegistry for the standard codec set.
func NewRegistry() *Registry {
	return &Registry{decoders: make(map[string]DecoderFactory), encoders: make(map[string]Encoder)}
}

// RegisterDecoder binds a DecoderFactory to an io_id (e.g. "png", "webp").
func (r *Registry) RegisterDecoder(ioID string, f DecoderFactory) {
	r.decoders[ioID] = f
}

// RegisterEncoder binds an Encoder to an io_id.
func (r *Registry) RegisterEncoder(ioID string, e Encoder) {
	r.encoders[ioID] = e
}

// AliasDecoder binds an additional io_id to whatever DecoderFactory is
// already bound under an existing one (e.g. a format name like "png"),
// letting a caller that only knows the format name at startup (the
// default registry) and the job's real numeric io_ids (known only once a
// recipe is parsed, or after sniffing magic bytes) share one factory
// table instead of rebuilding it per job.
func (r *Registry) AliasDecoder(newIoID, existingIoID string) error {
	f, ok := r.decoders[existingIoID]
	if !ok {
		return ferror.New(ferror.KindCodecDisabled, "codecs: no decoder registered for io_id %q to alias from", existingIoID)
	}
	r.decoders[newIoID] = f
	return nil
}

// AliasEncoder binds an additional io_id to whatever Encoder is already
// bound under an existing one. See AliasDecoder.
func (r *Registry) AliasEncoder(newIoID, existingIoID string) error {
	e, ok := r.encoders[existingIoID]
	if !ok {
		return ferror.New(ferror.KindCodecDisabled, "codecs: no encoder registered for io_id %q to alias from", existingIoID)
	}
	r.encoders[newIoID] = e
	return nil
}

// OpenDecoder looks up and invokes the DecoderFactory bound to ioID.
func (r *Registry) OpenDecoder(ioID string, src io.Reader) (Decoder, error) {
	f, ok := r.decoders[ioID]
	if !ok {
		return nil, ferror.New(ferror.KindCodecDisabled, "codecs: no decoder registered for io_id %q", ioID)
	}
	return f(src)
}

// Encoder looks up the Encoder bound to ioID.
func (r *Registry) Encoder(ioID string) (Encoder, error) {
	e, ok := r.encoders[ioID]
	if !ok {
		return nil, ferror.New(ferror.KindCodecDisabled, "codecs: no encoder registered for io_id %q", ioID)
	}
	return e, nil
}

// NewDefaultRegistry returns a Registry with every codec this module ships
// pre-registered under its conventional io_id.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	RegisterPNG(r)
	RegisterGIF(r)
	RegisterJPEG(r)
	RegisterWebP(r)
	RegisterAVIF(r)
	return r
}
