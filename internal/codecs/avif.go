package codecs

import (
	"encoding/binary"
	"io"

	"github.com/imageflow/imageflow/internal/ferror"
)

// AVIF support is container-structure-only (spec §4.6 Non-goals: "AV1
// bitstream decode/encode is out of scope — no AV1 entropy coder exists
// anywhere in the retrieved corpus, and hand-rolling one is disproportionate
// to this module's scope"). Info() parses the ISOBMFF box tree far enough
// to report declared dimensions from the "ispe" item property; ReadFrame
// always fails with ErrCodecDisabled, matching PNG/GIF/JPEG/WebP's shared
// Decoder interface so the graph's leaf decoder node can still report a
// clear, typed error instead of a generic "unsupported format".
type avifDecoder struct {
	width, height int
}

func RegisterAVIF(r *Registry) {
	r.RegisterDecoder("avif", func(src io.Reader) (Decoder, error) {
		data, err := io.ReadAll(src)
		if err != nil {
			return nil, ferror.Wrap(err, ferror.KindIO, "codecs/avif: read")
		}
		w, h, err := parseISOBMFFIspe(data)
		if err != nil {
			return nil, err
		}
		return &avifDecoder{width: w, height: h}, nil
	})
	// No encoder registered: AVIF write support is fully out of scope, not
	// just the payload; NewDefaultRegistry leaves "avif" unbound for
	// Encoder lookups, which report ErrCodecDisabled via Registry.Encoder.
}

func (d *avifDecoder) Info() (Info, error) {
	return Info{Width: d.width, Height: d.height, FrameCount: 1}, nil
}

func (d *avifDecoder) ReadFrame(int) (DecodedFrame, error) {
	return DecodedFrame{}, ferror.New(ferror.KindCodecDisabled, "codecs/avif: AV1 payload decode is not implemented")
}

// parseISOBMFFIspe walks the top-level ISOBMFF box list looking for
// meta/iprp/ipco/ispe, the box that declares an AVIF item's pixel
// dimensions, without attempting to parse the AV1 payload itself.
func parseISOBMFFIspe(data []byte) (int, int, error) {
	meta, err := findBox(data, "meta")
	if err != nil {
		return 0, 0, err
	}
	// meta's payload starts with a 4-byte FullBox version/flags field.
	if len(meta) < 4 {
		return 0, 0, ferror.New(ferror.KindImageDecoding, "codecs/avif: truncated meta box")
	}
	iprp, err := findBox(meta[4:], "iprp")
	if err != nil {
		return 0, 0, err
	}
	ipco, err := findBox(iprp, "ipco")
	if err != nil {
		return 0, 0, err
	}
	ispe, err := findBox(ipco, "ispe")
	if err != nil {
		return 0, 0, err
	}
	if len(ispe) < 12 {
		return 0, 0, ferror.New(ferror.KindImageDecoding, "codecs/avif: truncated ispe box")
	}
	w := binary.BigEndian.Uint32(ispe[4:8])
	h := binary.BigEndian.Uint32(ispe[8:12])
	return int(w), int(h), nil
}

// findBox returns the payload (content after the 8-byte size+type header)
// of the first top-level box with the given 4-byte type.
func findBox(data []byte, boxType string) ([]byte, error) {
	pos := 0
	for pos+8 <= len(data) {
		size := int(binary.BigEndian.Uint32(data[pos : pos+4]))
		typ := string(data[pos+4 : pos+8])
		if size < 8 || pos+size > len(data) {
			break
		}
		if typ == boxType {
			return data[pos+8 : pos+size], nil
		}
		pos += size
	}
	return nil, ferror.New(ferror.KindImageDecoding, "codecs/avif: box %q not found", boxType)
}
