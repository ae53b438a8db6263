package codecs

import (
	"bytes"
	"image"
	"image/jpeg"
	"io"

	"github.com/imageflow/imageflow/internal/ferror"
)

type jpegDecoder struct {
	data []byte
	img  image.Image
}

// RegisterJPEG binds the stdlib image/jpeg codec under io_id "jpeg". CMYK
// JPEGs decode to *image.CMYK; toDecodedFrame's draw.Draw conversion
// already honors CMYK->NRGBA via the standard library's color model
// conversion, so no separate path is needed here (the internal/cms CMYK
// transform is reserved for callers that want the non-default conversion).
func RegisterJPEG(r *Registry) {
	r.RegisterDecoder("jpeg", func(src io.Reader) (Decoder, error) {
		data, err := io.ReadAll(src)
		if err != nil {
			return nil, ferror.Wrap(err, ferror.KindIO, "codecs/jpeg: read")
		}
		return &jpegDecoder{data: data}, nil
	})
	r.RegisterEncoder("jpeg", jpegEncoder{})
}

func (d *jpegDecoder) ensureDecoded() error {
	if d.img != nil {
		return nil
	}
	img, err := jpeg.Decode(bytes.NewReader(d.data))
	if err != nil {
		return ferror.Wrap(err, ferror.KindJpegDecoding, "codecs/jpeg: decode")
	}
	d.img = img
	return nil
}

func (d *jpegDecoder) Info() (Info, error) {
	if err := d.ensureDecoded(); err != nil {
		return Info{}, err
	}
	b := d.img.Bounds()
	info := Info{Width: b.Dx(), Height: b.Dy(), FrameCount: 1}
	if icc := findJPEGICCProfile(d.data); icc != nil {
		info.IccProfile = icc
	}
	return info, nil
}

func (d *jpegDecoder) ReadFrame(index int) (DecodedFrame, error) {
	if index != 0 {
		return DecodedFrame{}, ferror.New(ferror.KindInvalidNodeParams, "codecs/jpeg: frame index %d out of range", index)
	}
	if err := d.ensureDecoded(); err != nil {
		return DecodedFrame{}, err
	}
	return toDecodedFrame(d.img), nil
}

// findJPEGICCProfile scans APP2 markers for an ICC_PROFILE segment and
// reassembles it from its (possibly multi-segment) chunks, per the ICC.1
// "Embedding ICC Profiles in JFIF Files" convention.
func findJPEGICCProfile(data []byte) []byte {
	const iccSig = "ICC_PROFILE\x00"
	type chunk struct {
		seq, total int
		payload    []byte
	}
	var chunks []chunk
	pos := 2 // skip SOI
	for pos+4 <= len(data) {
		if data[pos] != 0xFF {
			break
		}
		marker := data[pos+1]
		if marker == 0xD8 || marker == 0xD9 {
			pos += 2
			continue
		}
		if marker == 0x01 || (marker >= 0xD0 && marker <= 0xD7) {
			pos += 2
			continue
		}
		if pos+4 > len(data) {
			break
		}
		segLen := int(data[pos+2])<<8 | int(data[pos+3])
		segStart := pos + 4
		segEnd := segStart + segLen - 2
		if segEnd > len(data) || segEnd < segStart {
			break
		}
		if marker == 0xE2 && segEnd-segStart > len(iccSig)+2 && string(data[segStart:segStart+len(iccSig)]) == iccSig {
			rest := data[segStart+len(iccSig) : segEnd]
			seq, total := int(rest[0]), int(rest[1])
			chunks = append(chunks, chunk{seq: seq, total: total, payload: rest[2:]})
		}
		if marker == 0xDA { // start of scan: entropy-coded data follows, stop scanning
			break
		}
		pos = segEnd
	}
	if len(chunks) == 0 {
		return nil
	}
	total := chunks[0].total
	ordered := make([][]byte, total+1)
	for _, c := range chunks {
		if c.seq >= 1 && c.seq <= total {
			ordered[c.seq] = c.payload
		}
	}
	var out []byte
	for _, p := range ordered[1:] {
		out = append(out, p...)
	}
	return out
}

type jpegEncoder struct{}

func (jpegEncoder) Encode(w io.Writer, frame DecodedFrame, opts EncodeOptions) error {
	img := fromDecodedFrameNRGBA(frame)
	q := opts.Quality
	if q <= 0 {
		q = 90
	}
	if err := jpeg.Encode(w, img, &jpeg.Options{Quality: q}); err != nil {
		return ferror.Wrap(err, ferror.KindImageEncoding, "codecs/jpeg: encode")
	}
	return nil
}
