package testsupport

import (
	"os"
	"path/filepath"
	"testing"
)

// WriteFile fills the target path with the requested number of bytes using a
// simple repeating pattern. A size <= 0 writes a single byte.
func WriteFile(t testing.TB, path string, size int64) {
	t.Helper()

	if size <= 0 {
		size = 1
	}
	writeWithHeader(t, path, nil, size)
}

// WriteAudio writes an MP3 file of the given size that starts with an ID3v2
// tag, so content sniffing reports audio/mpeg. The returned path is inside dir.
func WriteAudio(t testing.TB, dir, name string, size int64) string {
	t.Helper()

	header := []byte{'I', 'D', '3', 0x04, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00}
	if size < int64(len(header)) {
		size = int64(len(header))
	}
	path := filepath.Join(dir, name)
	writeWithHeader(t, path, header, size)
	return path
}

// WriteM4A writes a file with an MPEG-4 "M4A " brand header.
func WriteM4A(t testing.TB, dir, name string, size int64) string {
	t.Helper()

	header := []byte{0x00, 0x00, 0x00, 0x20, 'f', 't', 'y', 'p', 'M', '4', 'A', ' ', 0x00, 0x00, 0x00, 0x00}
	if size < int64(len(header)) {
		size = int64(len(header))
	}
	path := filepath.Join(dir, name)
	writeWithHeader(t, path, header, size)
	return path
}

func writeWithHeader(t testing.TB, path string, header []byte, size int64) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()

	if len(header) > 0 {
		if _, err := f.Write(header); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
	}

	const chunkSize = 32 * 1024
	buf := make([]byte, chunkSize)
	for i := range buf {
		buf[i] = 0x42
	}

	remaining := size - int64(len(header))
	for remaining > 0 {
		toWrite := int64(chunkSize)
		if remaining < toWrite {
			toWrite = remaining
		}
		if _, err := f.Write(buf[:toWrite]); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
		remaining -= toWrite
	}
}
