// Package ioproxy is the I/O adapter every decode/encode node reads from or
// writes to (spec §4.6's io_id bindings): a narrow seekable-read /
// buffered-write surface over a file, an in-memory slice, or a growable
// buffer, so the codec registry never has to care which backing a given
// io_id resolves to.
//
// Grounded on the teacher's two read styles: internal/container/parser.go
// parses directly over an in-memory []byte (the "slice" backing below),
// while internal/bitio/writer_lossless.go wraps a buffered writer behind a
// byte-oriented Write/Flush surface (the "buffer" backing's Finalize).
package ioproxy

import (
	"bufio"
	"bytes"
	"io"
	"os"

	"github.com/imageflow/imageflow/internal/ferror"
)

// IoProxy is the interface the graph's Decode/Encode executors see; a
// Decode node's Source and an Encode node's Sink both satisfy different
// halves of it (Source needs Read+Seek, Sink needs Write+Finalize), but a
// single concrete type may implement both directions for an in-place edit.
type IoProxy interface {
	io.Reader
	io.Seeker
	io.Writer

	// ReadToEnd reads every remaining byte from the current seek position.
	ReadToEnd() ([]byte, error)
	// Finalize flushes any buffered output and releases backing resources.
	// It is a no-op on proxies that were never written to.
	Finalize() error
}

// sliceProxy is a read-only IoProxy over an in-memory byte slice (the
// parser.go style: the whole payload is already resident).
type sliceProxy struct {
	data []byte
	pos  int64
}

// NewSliceProxy wraps an existing byte slice for reading. Writes are
// refused (spec §4.6: "decoders are read-only collaborators").
func NewSliceProxy(data []byte) IoProxy {
	return &sliceProxy{data: data}
}

func (p *sliceProxy) Read(buf []byte) (int, error) {
	if p.pos >= int64(len(p.data)) {
		return 0, io.EOF
	}
	n := copy(buf, p.data[p.pos:])
	p.pos += int64(n)
	return n, nil
}

func (p *sliceProxy) ReadToEnd() ([]byte, error) {
	rest := p.data[p.pos:]
	p.pos = int64(len(p.data))
	out := make([]byte, len(rest))
	copy(out, rest)
	return out, nil
}

func (p *sliceProxy) Seek(offset int64, whence int) (int64, error) {
	var base int64
	switch whence {
	case io.SeekStart:
		base = 0
	case io.SeekCurrent:
		base = p.pos
	case io.SeekEnd:
		base = int64(len(p.data))
	default:
		return 0, ferror.New(ferror.KindInvalidNodeParams, "ioproxy: invalid seek whence %d", whence)
	}
	next := base + offset
	if next < 0 || next > int64(len(p.data)) {
		return 0, ferror.New(ferror.KindIO, "ioproxy: seek %d out of range [0,%d]", next, len(p.data))
	}
	p.pos = next
	return p.pos, nil
}

func (p *sliceProxy) Write([]byte) (int, error) {
	return 0, ferror.New(ferror.KindIO, "ioproxy: slice proxy is read-only")
}

func (p *sliceProxy) Finalize() error { return nil }

// bufferProxy is a write-only, growable IoProxy backed by a bytes.Buffer —
// the common sink for an Encode node whose output is collected in memory
// rather than streamed straight to a file.
type bufferProxy struct {
	buf bytes.Buffer
}

// NewBufferProxy returns an empty, write-only, growable IoProxy.
func NewBufferProxy() IoProxy { return &bufferProxy{} }

func (p *bufferProxy) Read(buf []byte) (int, error) { return p.buf.Read(buf) }
func (p *bufferProxy) ReadToEnd() ([]byte, error) {
	out := make([]byte, p.buf.Len())
	copy(out, p.buf.Bytes())
	return out, nil
}
func (p *bufferProxy) Seek(int64, int) (int64, error) {
	return 0, ferror.New(ferror.KindIO, "ioproxy: buffer proxy is not seekable")
}
func (p *bufferProxy) Write(b []byte) (int, error) { return p.buf.Write(b) }
func (p *bufferProxy) Finalize() error              { return nil }

// Bytes returns the buffer's accumulated contents without copying.
func (p *bufferProxy) Bytes() []byte { return p.buf.Bytes() }

// BufferBytes extracts the accumulated bytes from an IoProxy created by
// NewBufferProxy. It panics if proxy is not a buffer proxy — a programmer
// error, since callers know which constructor produced their proxy.
func BufferBytes(proxy IoProxy) []byte {
	return proxy.(*bufferProxy).Bytes()
}

// fileProxy wraps an *os.File behind the IoProxy surface (the backing a
// CLI entry point uses for on-disk input/output), buffering writes the way
// internal/bitio/writer_lossless.go buffers its bit writer's byte output.
type fileProxy struct {
	f *os.File
	w *bufio.Writer
}

// NewFileProxy opens path with the given os.O_* flags for reading,
// writing, or both.
func NewFileProxy(path string, flag int, perm os.FileMode) (IoProxy, error) {
	f, err := os.OpenFile(path, flag, perm)
	if err != nil {
		return nil, ferror.Wrap(err, ferror.KindIO, "ioproxy: open %q", path)
	}
	return &fileProxy{f: f, w: bufio.NewWriter(f)}, nil
}

func (p *fileProxy) Read(buf []byte) (int, error) { return p.f.Read(buf) }

func (p *fileProxy) ReadToEnd() ([]byte, error) {
	data, err := io.ReadAll(p.f)
	if err != nil {
		return nil, ferror.Wrap(err, ferror.KindIO, "ioproxy: read_to_end")
	}
	return data, nil
}

func (p *fileProxy) Seek(offset int64, whence int) (int64, error) {
	n, err := p.f.Seek(offset, whence)
	if err != nil {
		return 0, ferror.Wrap(err, ferror.KindIO, "ioproxy: seek")
	}
	return n, nil
}

func (p *fileProxy) Write(b []byte) (int, error) { return p.w.Write(b) }

// Finalize flushes buffered writes and closes the file (spec §4.6: "into_io
// finalizes the output and surrenders the output backing").
func (p *fileProxy) Finalize() error {
	if err := p.w.Flush(); err != nil {
		return ferror.Wrap(err, ferror.KindIO, "ioproxy: flush")
	}
	if err := p.f.Close(); err != nil {
		return ferror.Wrap(err, ferror.KindIO, "ioproxy: close")
	}
	return nil
}
