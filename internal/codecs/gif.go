package codecs

import (
	"image/gif"
	"io"

	"github.com/imageflow/imageflow/internal/ferror"
)

type gifDecoder struct {
	frames *gif.GIF
}

// RegisterGIF binds the stdlib image/gif codec under io_id "gif", exposing
// every animation frame via ReadFrame(index) (spec §4.9's Leaf decoder
// nodes are expected to report FrameCount > 1 for animated sources).
func RegisterGIF(r *Registry) {
	r.RegisterDecoder("gif", func(src io.Reader) (Decoder, error) {
		g, err := gif.DecodeAll(src)
		if err != nil {
			return nil, ferror.Wrap(err, ferror.KindGifDecoding, "codecs/gif: decode")
		}
		return &gifDecoder{frames: g}, nil
	})
	r.RegisterEncoder("gif", gifEncoder{})
}

func (d *gifDecoder) Info() (Info, error) {
	if len(d.frames.Image) == 0 {
		return Info{}, ferror.New(ferror.KindGifDecoding, "codecs/gif: no frames")
	}
	b := d.frames.Image[0].Bounds()
	return Info{Width: b.Dx(), Height: b.Dy(), FrameCount: len(d.frames.Image), HasAlpha: true}, nil
}

func (d *gifDecoder) ReadFrame(index int) (DecodedFrame, error) {
	if index < 0 || index >= len(d.frames.Image) {
		return DecodedFrame{}, ferror.New(ferror.KindInvalidNodeParams, "codecs/gif: frame index %d out of range (have %d)", index, len(d.frames.Image))
	}
	return toDecodedFrame(d.frames.Image[index]), nil
}

type gifEncoder struct{}

// Encode hands the frame to image/gif as a plain NRGBA image; with no
// Quantizer set, gif.Encode maps a non-Paletted source onto the 256-color
// Plan 9 palette with Floyd-Steinberg dithering.
func (gifEncoder) Encode(w io.Writer, frame DecodedFrame, _ EncodeOptions) error {
	src := fromDecodedFrameNRGBA(frame)
	if err := gif.Encode(w, src, &gif.Options{NumColors: 256}); err != nil {
		return ferror.Wrap(err, ferror.KindImageEncoding, "codecs/gif: encode")
	}
	return nil
}
