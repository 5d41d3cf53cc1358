package sparsefp

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"golang.org/x/sys/unix"
)

var sequential120 = Fingerprint{"1415161718", "28292a2b2c", "3c3d3e3f40", "5051525354", "6465666768"}

func TestEngine_Sampled(t *testing.T) {
	path := writeTestFile(t, t.TempDir(), "data.bin", sequentialBytes(120))
	engine := NewEngine(DefaultFingerprintConfig(), nil)

	fp, err := engine.Fingerprint(path)
	if err != nil {
		t.Fatalf("Fingerprint failed: %v", err)
	}
	if !fp.Equal(sequential120) {
		t.Errorf("Expected %v, got %v", sequential120, fp)
	}
	if fp.String() != "1415161718-28292a2b2c-3c3d3e3f40-5051525354-6465666768" {
		t.Errorf("Unexpected rendering %s", fp.String())
	}

	stats := engine.Stats()
	if stats.Files != 1 || stats.BytesSampled != 25 || stats.Sentinels != 0 {
		t.Errorf("Unexpected stats %+v", stats)
	}
}

func TestEngine_Deterministic(t *testing.T) {
	path := writeTestFile(t, t.TempDir(), "data.bin", sequentialBytes(5000))
	engine := NewEngine(mustConfig(t, 8, 16, ModeSampled), nil)

	first, err := engine.Fingerprint(path)
	if err != nil {
		t.Fatalf("Fingerprint failed: %v", err)
	}
	second, err := engine.Fingerprint(path)
	if err != nil {
		t.Fatalf("Fingerprint failed: %v", err)
	}
	if !first.Equal(second) {
		t.Errorf("Fingerprint not deterministic: %v vs %v", first, second)
	}
	if len(first) != 8 {
		t.Errorf("Expected 8 tokens, got %d", len(first))
	}
}

func TestEngine_PositionsOnly(t *testing.T) {
	path := writeTestFile(t, t.TempDir(), "data.bin", sequentialBytes(120))
	engine := NewEngine(mustConfig(t, 5, 5, ModePositionsOnly), nil)

	record, err := engine.FingerprintRecord(path)
	if err != nil {
		t.Fatalf("FingerprintRecord failed: %v", err)
	}
	want := Fingerprint{"20", "40", "60", "80", "100"}
	if !record.Fingerprint.Equal(want) {
		t.Errorf("Expected %v, got %v", want, record.Fingerprint)
	}
	if record.Size != 120 || record.Path != path {
		t.Errorf("Unexpected record %+v", record)
	}

	plan, _ := PlanOffsets(120, 5, 5)
	if !record.Fingerprint.Equal(Fingerprint(plan.Strings())) {
		t.Errorf("Positions output does not match the offset plan")
	}
	if engine.Stats().BytesSampled != 0 {
		t.Errorf("Positions mode must not read samples, stats %+v", engine.Stats())
	}
}

func TestEngine_FullReadMatchesSampled(t *testing.T) {
	path := writeTestFile(t, t.TempDir(), "data.bin", sequentialBytes(120))

	cfg, err := mustConfig(t, 5, 5, ModeFullRead).WithPrimeBuffer(16)
	if err != nil {
		t.Fatalf("WithPrimeBuffer failed: %v", err)
	}
	engine := NewEngine(cfg, nil)

	fp, err := engine.Fingerprint(path)
	if err != nil {
		t.Fatalf("Fingerprint failed: %v", err)
	}
	if !fp.Equal(sequential120) {
		t.Errorf("Expected %v, got %v", sequential120, fp)
	}
	if primed := engine.Stats().BytesPrimed; primed != 120 {
		t.Errorf("Expected 120 bytes primed, got %d", primed)
	}
}

func TestEngine_SmallFileSentinel(t *testing.T) {
	dir := t.TempDir()
	small := writeTestFile(t, dir, "small.bin", sequentialBytes(10))
	empty := writeTestFile(t, dir, "empty.bin", nil)

	for _, mode := range []Mode{ModeSampled, ModePositionsOnly, ModeFullRead} {
		engine := NewEngine(mustConfig(t, 5, 5, mode), nil)
		for _, path := range []string{small, empty} {
			fp, err := engine.Fingerprint(path)
			if err != nil {
				t.Fatalf("%s: Fingerprint(%s) failed: %v", mode, filepath.Base(path), err)
			}
			if !fp.IsSentinel() || fp.String() != "-1" {
				t.Errorf("%s: expected sentinel for %s, got %v", mode, filepath.Base(path), fp)
			}
		}
		if engine.Stats().Sentinels != 2 {
			t.Errorf("%s: expected 2 sentinels, got %d", mode, engine.Stats().Sentinels)
		}
	}
}

func TestEngine_TokenShape(t *testing.T) {
	path := writeTestFile(t, t.TempDir(), "data.bin", sequentialBytes(4096))
	hexToken := regexp.MustCompile(`^[0-9a-f]+$`)

	for _, format := range []TokenFormat{TokenCompact, TokenPadded} {
		cfg, err := mustConfig(t, 6, 7, ModeSampled).WithTokenFormat(format)
		if err != nil {
			t.Fatalf("WithTokenFormat failed: %v", err)
		}
		fp, err := NewEngine(cfg, nil).Fingerprint(path)
		if err != nil {
			t.Fatalf("Fingerprint failed: %v", err)
		}
		for _, token := range fp {
			if !hexToken.MatchString(token) {
				t.Errorf("%s: token %q is not lowercase hex", format, token)
			}
			if len(token) < 7 || len(token) > 14 {
				t.Errorf("%s: token %q has unexpected length", format, token)
			}
			if format == TokenPadded && len(token) != 14 {
				t.Errorf("padded token %q should have 14 digits", token)
			}
		}
	}
}

func TestEngine_ByteChangeDetection(t *testing.T) {
	dir := t.TempDir()
	original := sequentialBytes(120)
	modified := sequentialBytes(120)
	modified[41] ^= 0xff

	a := writeTestFile(t, dir, "a.bin", original)
	b := writeTestFile(t, dir, "b.bin", modified)

	sampled := NewEngine(DefaultFingerprintConfig(), nil)
	fpA, err := sampled.Fingerprint(a)
	if err != nil {
		t.Fatalf("Fingerprint failed: %v", err)
	}
	fpB, err := sampled.Fingerprint(b)
	if err != nil {
		t.Fatalf("Fingerprint failed: %v", err)
	}
	if fpA.Equal(fpB) {
		t.Error("A change inside a sampled window must change the fingerprint")
	}

	positions := NewEngine(mustConfig(t, 5, 5, ModePositionsOnly), nil)
	posA, _ := positions.Fingerprint(a)
	posB, _ := positions.Fingerprint(b)
	if !posA.Equal(posB) {
		t.Error("Positions depend only on file size")
	}
}

func TestEngine_MissingFile(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "missing.bin")

	tests := []struct {
		mode Mode
		op   string
	}{
		{ModeSampled, "open"},
		{ModeFullRead, "open"},
		{ModePositionsOnly, "size"},
	}
	for _, tt := range tests {
		engine := NewEngine(mustConfig(t, 5, 5, tt.mode), nil)
		fp, err := engine.Fingerprint(missing)
		if err == nil {
			t.Fatalf("%s: expected an error for a missing file", tt.mode)
		}
		if fp != nil {
			t.Errorf("%s: expected no partial fingerprint, got %v", tt.mode, fp)
		}
		var fre *FileReadError
		if !errors.As(err, &fre) {
			t.Fatalf("%s: expected *FileReadError, got %T", tt.mode, err)
		}
		if fre.Path != missing || fre.Op != tt.op {
			t.Errorf("%s: unexpected error fields %+v", tt.mode, fre)
		}
	}
}

func TestEngine_DirectoryArgument(t *testing.T) {
	dir := t.TempDir()
	for _, mode := range []Mode{ModeSampled, ModePositionsOnly} {
		_, err := NewEngine(mustConfig(t, 5, 5, mode), nil).Fingerprint(dir)
		var fre *FileReadError
		if !errors.As(err, &fre) || fre.Op != "size" {
			t.Errorf("%s: expected size FileReadError for a directory, got %v", mode, err)
		}
	}
}

func TestEngine_InvalidConfig(t *testing.T) {
	_, err := NewEngine(FingerprintConfig{}, nil).Fingerprint("whatever")
	if !IsConfigurationError(err) {
		t.Errorf("Expected ConfigurationError for zero config, got %v", err)
	}
}

func TestFingerprint_Equal(t *testing.T) {
	if !SentinelFingerprint().Equal(Fingerprint{"-1"}) {
		t.Error("Sentinel should equal {-1}")
	}
	if (Fingerprint{"a", "b"}).Equal(Fingerprint{"a"}) {
		t.Error("Fingerprints of different length must differ")
	}
	if (Fingerprint{"a", "b"}).Equal(Fingerprint{"a", "c"}) {
		t.Error("Fingerprints with different tokens must differ")
	}
	if (Fingerprint{"-1", "2"}).IsSentinel() {
		t.Error("Only the single -1 token is the sentinel")
	}
}

// fingerprintWithin fails the test if the engine call does not return in time
func fingerprintWithin(t *testing.T, engine *Engine, path string, limit time.Duration) (Fingerprint, error) {
	t.Helper()
	type outcome struct {
		fp  Fingerprint
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		fp, err := engine.Fingerprint(path)
		done <- outcome{fp, err}
	}()
	select {
	case res := <-done:
		return res.fp, res.err
	case <-time.After(limit):
		t.Fatalf("Fingerprint(%s) did not return within %v", path, limit)
		return nil, nil
	}
}

func TestEngine_FIFOArgument(t *testing.T) {
	fifo := filepath.Join(t.TempDir(), "pipe")
	if err := unix.Mkfifo(fifo, 0644); err != nil {
		t.Skipf("mkfifo not supported: %v", err)
	}

	for _, mode := range []Mode{ModeSampled, ModeFullRead, ModePositionsOnly} {
		fp, err := fingerprintWithin(t, NewEngine(mustConfig(t, 5, 5, mode), nil), fifo, 5*time.Second)
		var fre *FileReadError
		if !errors.As(err, &fre) {
			t.Fatalf("%s: expected *FileReadError for a FIFO, got %v", mode, err)
		}
		if fre.Op != "size" || fp != nil {
			t.Errorf("%s: expected size error and no fingerprint, got op=%s fp=%v", mode, fre.Op, fp)
		}
	}
}

func TestEngine_ReadFailureMidSampling(t *testing.T) {
	path := writeTestFile(t, t.TempDir(), "data.bin", sequentialBytes(120))

	// The file shrinks after its size is taken: the window at 20 still
	// reads, the one at 40 runs past the new end
	engine := NewEngine(DefaultFingerprintConfig(), nil)
	engine.beforeSample = func(*FileHandle) {
		if err := os.Truncate(path, 30); err != nil {
			t.Fatalf("Truncate failed: %v", err)
		}
	}

	fp, err := engine.Fingerprint(path)
	if fp != nil {
		t.Errorf("Expected no partial fingerprint, got %v", fp)
	}
	var fre *FileReadError
	if !errors.As(err, &fre) {
		t.Fatalf("Expected *FileReadError, got %v", err)
	}
	if fre.Op != "sample" || fre.Offset != 40 || fre.Path != path {
		t.Errorf("Unexpected error fields %+v", fre)
	}
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Errorf("Expected the cause to be io.ErrUnexpectedEOF, got %v", err)
	}
	if engine.Stats().Files != 0 {
		t.Errorf("A failed file is not counted, stats %+v", engine.Stats())
	}
}

func TestEngine_HandleClosedBeforeSampling(t *testing.T) {
	path := writeTestFile(t, t.TempDir(), "data.bin", sequentialBytes(120))

	engine := NewEngine(DefaultFingerprintConfig(), nil)
	engine.beforeSample = func(fh *FileHandle) {
		fh.Close()
	}

	fp, err := engine.Fingerprint(path)
	var fre *FileReadError
	if !errors.As(err, &fre) || fre.Op != "sample" || fre.Offset != 20 {
		t.Fatalf("Expected sample error at offset 20, got %v", err)
	}
	if !errors.Is(err, os.ErrClosed) || fp != nil {
		t.Errorf("Expected os.ErrClosed and no fingerprint, got %v, %v", err, fp)
	}
}
