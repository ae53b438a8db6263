package imageflow

import "bytes"

// sniffFormat identifies which codec key (spec §4.6/§6: the registry's
// io_id-shaped format key — "png", "gif", "jpeg", "webp", "avif") a
// decode input's magic bytes belong to. The core never trusts a caller's
// say-so about format (spec §4.12 describes io resources, not format
// hints), so every Decode node's input is sniffed once, here, rather than
// inferred from a file extension.
func sniffFormat(header []byte) (string, bool) {
	switch {
	case bytes.HasPrefix(header, []byte("\x89PNG\r\n\x1a\n")):
		return "png", true
	case bytes.HasPrefix(header, []byte("GIF87a")), bytes.HasPrefix(header, []byte("GIF89a")):
		return "gif", true
	case bytes.HasPrefix(header, []byte{0xFF, 0xD8, 0xFF}):
		return "jpeg", true
	case len(header) >= 12 && bytes.Equal(header[0:4], []byte("RIFF")) && bytes.Equal(header[8:12], []byte("WEBP")):
		return "webp", true
	case len(header) >= 12 && bytes.Equal(header[4:8], []byte("ftyp")) && isAVIFBrand(header[8:12]):
		return "avif", true
	default:
		return "", false
	}
}

func isAVIFBrand(brand []byte) bool {
	switch string(brand) {
	case "avif", "avis", "mif1", "msf1":
		return true
	default:
		return false
	}
}
