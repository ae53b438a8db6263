package codecs

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/png"
	"io"

	"github.com/imageflow/imageflow/internal/ferror"
)

type pngDecoder struct {
	data []byte
	img  image.Image
}

// RegisterPNG binds the stdlib image/png codec under io_id "png". Ancillary
// color chunks (gAMA, iCCP) are not exposed by image/png, so Info scans the
// raw chunk stream directly for them — the same "read the container
// ourselves, decode pixels via the trusted library" split the teacher uses
// between internal/container (RIFF framing) and internal/lossy/lossless
// (pixel decode).
func RegisterPNG(r *Registry) {
	r.RegisterDecoder("png", func(src io.Reader) (Decoder, error) {
		data, err := io.ReadAll(src)
		if err != nil {
			return nil, ferror.Wrap(err, ferror.KindIO, "codecs/png: read")
		}
		return &pngDecoder{data: data}, nil
	})
	r.RegisterEncoder("png", pngEncoder{})
}

func (d *pngDecoder) ensureDecoded() error {
	if d.img != nil {
		return nil
	}
	img, err := png.Decode(bytes.NewReader(d.data))
	if err != nil {
		return ferror.Wrap(err, ferror.KindImageDecoding, "codecs/png: decode")
	}
	d.img = img
	return nil
}

func (d *pngDecoder) Info() (Info, error) {
	if err := d.ensureDecoded(); err != nil {
		return Info{}, err
	}
	b := d.img.Bounds()
	info := Info{Width: b.Dx(), Height: b.Dy(), FrameCount: 1}
	if gama := findPNGChunk(d.data, "gAMA"); gama != nil {
		info.Gamma = gama
	}
	if iccp := findPNGChunk(d.data, "iCCP"); iccp != nil {
		info.IccProfile = extractICCPProfile(iccp)
	}
	if _, hasAlpha := d.img.(*image.NRGBA); hasAlpha {
		info.HasAlpha = true
	}
	return info, nil
}

func (d *pngDecoder) ReadFrame(index int) (DecodedFrame, error) {
	if index != 0 {
		return DecodedFrame{}, ferror.New(ferror.KindInvalidNodeParams, "codecs/png: frame index %d out of range", index)
	}
	if err := d.ensureDecoded(); err != nil {
		return DecodedFrame{}, err
	}
	return toDecodedFrame(d.img), nil
}

// findPNGChunk scans the raw PNG byte stream for the first chunk with the
// given 4-byte type, returning its data payload or nil.
func findPNGChunk(data []byte, chunkType string) []byte {
	const sigLen = 8
	if len(data) < sigLen+8 {
		return nil
	}
	pos := sigLen
	for pos+8 <= len(data) {
		length := binary.BigEndian.Uint32(data[pos : pos+4])
		typ := string(data[pos+4 : pos+8])
		dataStart := pos + 8
		dataEnd := dataStart + int(length)
		if dataEnd+4 > len(data) {
			break
		}
		if typ == chunkType {
			return data[dataStart:dataEnd]
		}
		if typ == "IDAT" {
			break // ancillary color chunks must precede IDAT per the PNG spec
		}
		pos = dataEnd + 4 // skip CRC
	}
	return nil
}

// extractICCPProfile strips the iCCP chunk's profile-name + compression
// byte header, leaving the raw (still zlib-compressed) ICC payload. Callers
// needing the decompressed profile run it through compress/zlib.
func extractICCPProfile(iccp []byte) []byte {
	nul := bytes.IndexByte(iccp, 0)
	if nul < 0 || nul+2 > len(iccp) {
		return nil
	}
	return iccp[nul+2:]
}

type pngEncoder struct{}

func (pngEncoder) Encode(w io.Writer, frame DecodedFrame, _ EncodeOptions) error {
	img := fromDecodedFrameNRGBA(frame)
	if err := png.Encode(w, img); err != nil {
		return ferror.Wrap(err, ferror.KindImageEncoding, "codecs/png: encode")
	}
	return nil
}
