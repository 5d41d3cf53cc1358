package sparsefp

import (
	"errors"
	"fmt"
	"io"
	"os"

	"golang.org/x/sys/unix"
)

const hexDigits = "0123456789abcdef"

// FileHandle is a read-only view of one open file with a known size.
// A handle belongs to a single goroutine and must be closed by its owner.
type FileHandle struct {
	path string
	file *os.File
	fd   int
	size int64
}

// OpenFileHandle opens path for sampling. The open never blocks, so a FIFO
// or device given by name is rejected by Size instead of stalling the run.
func OpenFileHandle(path string) (*FileHandle, error) {
	file, err := os.OpenFile(path, os.O_RDONLY|unix.O_NONBLOCK, 0)
	if err != nil {
		return nil, err
	}
	return &FileHandle{path: path, file: file, fd: int(file.Fd()), size: -1}, nil
}

// Path returns the path the handle was opened with
func (fh *FileHandle) Path() string {
	return fh.path
}

// Size returns the file size in bytes, reading it from the open descriptor on first use
func (fh *FileHandle) Size() (int64, error) {
	if fh.size >= 0 {
		return fh.size, nil
	}
	var st unix.Stat_t
	if err := unix.Fstat(fh.fd, &st); err != nil {
		return 0, fmt.Errorf("fstat: %w", err)
	}
	if st.Mode&unix.S_IFMT != unix.S_IFREG {
		return 0, fmt.Errorf("not a regular file")
	}
	fh.size = st.Size
	return fh.size, nil
}

// Close releases the descriptor; closing twice is harmless
func (fh *FileHandle) Close() error {
	if fh.file == nil {
		return nil
	}
	err := fh.file.Close()
	fh.file = nil
	fh.fd = -1
	return err
}

// ReadWindow reads exactly len(buf) bytes at offset
func (fh *FileHandle) ReadWindow(buf []byte, offset int64) error {
	if fh.file == nil {
		return os.ErrClosed
	}
	for read := 0; read < len(buf); {
		n, err := unix.Pread(fh.fd, buf[read:], offset+int64(read))
		if err != nil {
			if errors.Is(err, unix.EINTR) {
				continue
			}
			return fmt.Errorf("pread: %w", err)
		}
		if n == 0 {
			return fmt.Errorf("read %d of %d bytes: %w", read, len(buf), io.ErrUnexpectedEOF)
		}
		read += n
	}
	return nil
}

// Sample reads sampleSize bytes at offset and renders them as a token
func (fh *FileHandle) Sample(offset int64, sampleSize int, format TokenFormat) (string, error) {
	buf := make([]byte, sampleSize)
	if err := fh.ReadWindow(buf, offset); err != nil {
		return "", err
	}
	token := RenderToken(buf, format)
	DebugLog(DebugSample, "%s @%d: %s", fh.path, offset, token)
	return token, nil
}

// Prime reads the whole file once and discards it so later samples come from
// the page cache. The shutdown channel is checked between buffer reads.
func (fh *FileHandle) Prime(bufferSize int, shutdownChan <-chan struct{}) (int64, error) {
	if fh.file == nil {
		return 0, os.ErrClosed
	}
	if err := unix.Fadvise(fh.fd, 0, 0, unix.FADV_SEQUENTIAL); err != nil {
		VerboseLog(2, "fadvise on %s failed: %v", fh.path, err)
	}

	buffer := make([]byte, bufferSize)
	var total int64
	for {
		select {
		case <-shutdownChan:
			return total, ErrInterrupted
		default:
		}

		n, err := unix.Pread(fh.fd, buffer, total)
		if err != nil {
			if errors.Is(err, unix.EINTR) {
				continue
			}
			return total, fmt.Errorf("pread: %w", err)
		}
		if n == 0 {
			return total, nil
		}
		total += int64(n)
	}
}

// RenderToken renders a byte window as a string of hex digits in read order.
// TokenCompact drops the leading zero of bytes below 0x10, TokenPadded never does.
func RenderToken(window []byte, format TokenFormat) string {
	out := make([]byte, 0, 2*len(window))
	for _, b := range window {
		if format == TokenPadded || b >= 0x10 {
			out = append(out, hexDigits[b>>4])
		}
		out = append(out, hexDigits[b&0x0f])
	}
	return string(out)
}
