package mmapfile

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestOpen(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"small", []byte("PP20")},
		{"pages", bytes.Repeat([]byte{1, 2, 3}, 10000)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := filepath.Join(dir, tt.name)
			if err := os.WriteFile(p, tt.data, 0o644); err != nil {
				t.Fatal(err)
			}
			f, err := Open(p, 1<<20)
			if err != nil {
				t.Fatal(err)
			}
			if !bytes.Equal(f.Bytes(), tt.data) {
				t.Errorf("got %d bytes, want %d", f.Len(), len(tt.data))
			}
			if err := f.Close(); err != nil {
				t.Error(err)
			}
			if err := f.Close(); err != nil {
				t.Error("second close:", err)
			}
			if f.Bytes() != nil {
				t.Error("bytes survive close")
			}
		})
	}
}

func TestOpenLimit(t *testing.T) {
	p := filepath.Join(t.TempDir(), "big")
	if err := os.WriteFile(p, make([]byte, 100), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := Open(p, 99)
	if !errors.Is(err, ErrTooLarge) {
		t.Errorf("got %v, want ErrTooLarge", err)
	}
}

func TestOpenDirectory(t *testing.T) {
	if _, err := Open(t.TempDir(), 1<<20); err == nil {
		t.Error("directory opened")
	}
}
