package ioproxy

import (
	"io"
	"os"
	"path/filepath"
	"testing"
)

func TestSliceProxyReadAndSeek(t *testing.T) {
	p := NewSliceProxy([]byte("hello world"))
	buf := make([]byte, 5)
	n, err := p.Read(buf)
	if err != nil || n != 5 || string(buf) != "hello" {
		t.Fatalf("Read = %q, %d, %v", buf[:n], n, err)
	}
	if _, err := p.Seek(6, io.SeekStart); err != nil {
		t.Fatal(err)
	}
	rest, err := p.ReadToEnd()
	if err != nil {
		t.Fatal(err)
	}
	if string(rest) != "world" {
		t.Fatalf("ReadToEnd after seek = %q", rest)
	}
}

func TestSliceProxyRefusesWrite(t *testing.T) {
	p := NewSliceProxy([]byte("x"))
	if _, err := p.Write([]byte("y")); err == nil {
		t.Fatal("expected write to a slice proxy to fail")
	}
}

func TestBufferProxyAccumulatesWrites(t *testing.T) {
	p := NewBufferProxy()
	if _, err := p.Write([]byte("ab")); err != nil {
		t.Fatal(err)
	}
	if _, err := p.Write([]byte("cd")); err != nil {
		t.Fatal(err)
	}
	if err := p.Finalize(); err != nil {
		t.Fatal(err)
	}
	if got := string(BufferBytes(p)); got != "abcd" {
		t.Fatalf("BufferBytes = %q, want abcd", got)
	}
}

func TestFileProxyRoundtrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.bin")
	w, err := NewFileProxy(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := w.Write([]byte("payload")); err != nil {
		t.Fatal(err)
	}
	if err := w.Finalize(); err != nil {
		t.Fatal(err)
	}

	r, err := NewFileProxy(path, os.O_RDONLY, 0)
	if err != nil {
		t.Fatal(err)
	}
	data, err := r.ReadToEnd()
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "payload" {
		t.Fatalf("roundtrip got %q, want payload", data)
	}
	if err := r.Finalize(); err != nil {
		t.Fatal(err)
	}
}
