// Package webpcodec is the pure-Go WebP implementation that
// internal/codecs/webp.go wraps and registers under the "webp" io_id. It has
// no dependency on imageflow's Job/graph types — callers outside
// internal/codecs should not import it directly, the same way png.go and
// jpeg.go wrap stdlib image/png and image/jpeg rather than exposing them.
//
// It implements the WebP specification end to end without cgo:
//   - Lossy decode/encode (VP8), in the lossy subpackage
//   - Lossless decode/encode (VP8L), in the lossless subpackage
//   - Alpha channel, extended format (VP8X) with ICC/EXIF/XMP, in container/mux
//   - Animation (ANIM/ANMF), in the animation subpackage
//
// Basic usage, mirroring what internal/codecs/webp.go does at the registry
// boundary:
//
//	img, err := webpcodec.Decode(reader)
//	err = webpcodec.Encode(writer, img, webpcodec.DefaultOptions())
package webpcodec
