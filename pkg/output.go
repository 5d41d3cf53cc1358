package sparsefp

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"syscall"

	"github.com/google/vectorio"
	"github.com/mattn/go-isatty"
)

const (
	// maxPendingLines keeps a single writev under the common IOV_MAX of 1024
	maxPendingLines = 1024
	// maxPendingBytes bounds memory held between flushes
	maxPendingBytes = 256 * 1024
)

// RecordWriter writes fingerprint records as "<path>\t<tokens>\n" lines.
// Lines are batched and written with writev when the destination is a file or
// pipe; a terminal gets every line as soon as it is written.
type RecordWriter struct {
	out        io.Writer
	file       *os.File
	immediate  bool
	noFilename bool

	mu           sync.Mutex
	pending      [][]byte
	pendingBytes int
}

// NewRecordWriter creates a writer for out. With noFilename set only the
// fingerprint is written on each line.
func NewRecordWriter(out io.Writer, noFilename bool) *RecordWriter {
	rw := &RecordWriter{out: out, noFilename: noFilename}
	if f, ok := out.(*os.File); ok {
		rw.file = f
		rw.immediate = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return rw
}

// FormatRecord renders one output line, including the trailing newline
func FormatRecord(rec FingerprintRecord, noFilename bool) string {
	if noFilename {
		return rec.Fingerprint.String() + "\n"
	}
	return rec.Path + "\t" + rec.Fingerprint.String() + "\n"
}

// FormatTrailer renders the summary written after all records
func FormatTrailer(count int) string {
	return fmt.Sprintf("\n%d files read!\n", count)
}

// WriteRecord queues one record line
func (rw *RecordWriter) WriteRecord(rec FingerprintRecord) error {
	return rw.WriteLine(FormatRecord(rec, rw.noFilename))
}

// WriteTrailer writes the file count summary and flushes
func (rw *RecordWriter) WriteTrailer(count int) error {
	if err := rw.WriteLine(FormatTrailer(count)); err != nil {
		return err
	}
	return rw.Flush()
}

// WriteLine queues an arbitrary line; a missing newline is added
func (rw *RecordWriter) WriteLine(line string) error {
	if !strings.HasSuffix(line, "\n") {
		line += "\n"
	}

	rw.mu.Lock()
	rw.pending = append(rw.pending, []byte(line))
	rw.pendingBytes += len(line)
	flush := rw.immediate || len(rw.pending) >= maxPendingLines || rw.pendingBytes >= maxPendingBytes
	rw.mu.Unlock()

	if flush {
		return rw.Flush()
	}
	return nil
}

// Flush writes all queued lines
func (rw *RecordWriter) Flush() error {
	rw.mu.Lock()
	defer rw.mu.Unlock()

	if len(rw.pending) == 0 {
		return nil
	}
	lines, total := rw.pending, rw.pendingBytes
	rw.pending, rw.pendingBytes = nil, 0

	if rw.file == nil {
		for _, line := range lines {
			if _, err := rw.out.Write(line); err != nil {
				return fmt.Errorf("failed to write output: %w", err)
			}
		}
		return nil
	}

	DebugLog(DebugOutput, "writev of %d lines (%d bytes)", len(lines), total)
	return writeLinesVectored(rw.file, lines, total)
}

// writeLinesVectored writes lines with one writev call, finishing any short
// write with plain writes
func writeLinesVectored(file *os.File, lines [][]byte, total int) error {
	iovecs := make([]syscall.Iovec, 0, len(lines))
	for _, line := range lines {
		iov := syscall.Iovec{Base: &line[0]}
		iov.SetLen(len(line))
		iovecs = append(iovecs, iov)
	}

	nw, err := vectorio.WritevRaw(uintptr(file.Fd()), iovecs)
	if err != nil {
		return fmt.Errorf("failed to write output with vectorio: %w", err)
	}
	if nw == total {
		return nil
	}

	// Short writev: skip the bytes already written and write the rest directly
	for _, line := range lines {
		if nw >= len(line) {
			nw -= len(line)
			continue
		}
		if _, err := file.Write(line[nw:]); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
		nw = 0
	}
	return nil
}
