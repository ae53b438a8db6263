package codecs

import (
	"bytes"
	"image"
	"io"

	"github.com/imageflow/imageflow/internal/codecs/webpcodec/animation"
	"github.com/imageflow/imageflow/internal/codecs/webpcodec"
	"github.com/imageflow/imageflow/internal/ferror"
)

type webpDecoder struct {
	data     []byte
	features *webpcodec.Features
	anim     *animation.Animation
}

// RegisterWebP binds the adapted teacher codec (internal/codecs/webpcodec)
// under io_id "webp", including animation frame access via the animation
// package's AnimDecoder.
func RegisterWebP(r *Registry) {
	r.RegisterDecoder("webp", func(src io.Reader) (Decoder, error) {
		data, err := io.ReadAll(src)
		if err != nil {
			return nil, ferror.Wrap(err, ferror.KindIO, "codecs/webp: read")
		}
		feat, err := webpcodec.GetFeatures(bytes.NewReader(data))
		if err != nil {
			return nil, ferror.Wrap(err, ferror.KindImageDecoding, "codecs/webp: parse features")
		}
		return &webpDecoder{data: data, features: feat}, nil
	})
	r.RegisterEncoder("webp", webpEncoder{})
}

func (d *webpDecoder) Info() (Info, error) {
	return Info{
		Width:      d.features.Width,
		Height:     d.features.Height,
		HasAlpha:   d.features.HasAlpha,
		FrameCount: maxInt(1, d.features.FrameCount),
	}, nil
}

func (d *webpDecoder) ReadFrame(index int) (DecodedFrame, error) {
	if d.features.FrameCount <= 1 {
		if index != 0 {
			return DecodedFrame{}, ferror.New(ferror.KindInvalidNodeParams, "codecs/webp: frame index %d out of range", index)
		}
		img, err := webpcodec.Decode(bytes.NewReader(d.data))
		if err != nil {
			return DecodedFrame{}, ferror.Wrap(err, ferror.KindImageDecoding, "codecs/webp: decode")
		}
		return toDecodedFrame(img), nil
	}

	if d.anim == nil {
		anim, err := animation.DecodeBytes(d.data)
		if err != nil {
			return DecodedFrame{}, ferror.Wrap(err, ferror.KindImageDecoding, "codecs/webp: decode animation")
		}
		d.anim = anim
	}
	dec := animation.NewAnimDecoder(d.anim)
	var frame image.Image
	for i := 0; dec.HasNext(); i++ {
		img, _, err := dec.NextFrame()
		if err != nil {
			return DecodedFrame{}, ferror.Wrap(err, ferror.KindImageDecoding, "codecs/webp: decode frame %d", i)
		}
		if i == index {
			frame = img
			break
		}
	}
	if frame == nil {
		return DecodedFrame{}, ferror.New(ferror.KindInvalidNodeParams, "codecs/webp: frame index %d out of range", index)
	}
	return toDecodedFrame(frame), nil
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

type webpEncoder struct{}

func (webpEncoder) Encode(w io.Writer, frame DecodedFrame, opts EncodeOptions) error {
	img := fromDecodedFrameNRGBA(frame)
	webpOpts := webpcodec.DefaultOptions()
	if wo, ok := opts.Params.(*webpcodec.EncoderOptions); ok && wo != nil {
		webpOpts = wo
	} else if opts.Quality > 0 {
		webpOpts.Quality = float32(opts.Quality)
	}
	if err := webpcodec.Encode(w, img, webpOpts); err != nil {
		return ferror.Wrap(err, ferror.KindImageEncoding, "codecs/webp: encode")
	}
	return nil
}
