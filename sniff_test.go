package imageflow

import (
	"bytes"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"testing"
)

func encodeTestPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 4, 4))
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func TestSniffFormatPNG(t *testing.T) {
	format, ok := sniffFormat(encodeTestPNG(t))
	if !ok || format != "png" {
		t.Fatalf("sniffFormat(png) = %q, %v", format, ok)
	}
}

func TestSniffFormatGIF(t *testing.T) {
	img := image.NewPaletted(image.Rect(0, 0, 4, 4), color.Palette{color.Black, color.White})
	var buf bytes.Buffer
	if err := gif.Encode(&buf, img, nil); err != nil {
		t.Fatalf("encode gif: %v", err)
	}
	format, ok := sniffFormat(buf.Bytes())
	if !ok || format != "gif" {
		t.Fatalf("sniffFormat(gif) = %q, %v", format, ok)
	}
}

func TestSniffFormatJPEG(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatalf("encode jpeg: %v", err)
	}
	format, ok := sniffFormat(buf.Bytes())
	if !ok || format != "jpeg" {
		t.Fatalf("sniffFormat(jpeg) = %q, %v", format, ok)
	}
}

func TestSniffFormatWebP(t *testing.T) {
	header := append([]byte("RIFF\x00\x00\x00\x00WEBP"), []byte("VP8 ")...)
	format, ok := sniffFormat(header)
	if !ok || format != "webp" {
		t.Fatalf("sniffFormat(webp) = %q, %v", format, ok)
	}
}

func TestSniffFormatAVIF(t *testing.T) {
	header := []byte{0, 0, 0, 0x1c, 'f', 't', 'y', 'p', 'a', 'v', 'i', 'f'}
	format, ok := sniffFormat(header)
	if !ok || format != "avif" {
		t.Fatalf("sniffFormat(avif) = %q, %v", format, ok)
	}
}

func TestSniffFormatUnrecognized(t *testing.T) {
	if _, ok := sniffFormat([]byte("not an image")); ok {
		t.Fatal("expected sniffFormat to reject unrecognized header")
	}
}

func TestSniffFormatTooShort(t *testing.T) {
	if _, ok := sniffFormat([]byte{0, 1}); ok {
		t.Fatal("expected sniffFormat to reject a too-short header")
	}
}
