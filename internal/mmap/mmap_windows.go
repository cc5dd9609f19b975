//go:build windows

package mmap

import (
	"io"
	"os"
)

// Windows fallback: read the whole file into memory instead of mapping it.
// Blob reads on Windows trade memory for portability.
func mmap(f *os.File, size int) ([]byte, error) {
	data := make([]byte, size)
	if _, err := io.ReadFull(io.NewSectionReader(f, 0, int64(size)), data); err != nil {
		return nil, err
	}
	return data, nil
}

func munmap(data []byte) error {
	return nil
}
