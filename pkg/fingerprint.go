package sparsefp

import (
	"fmt"
	"os"
	"strings"
	"sync/atomic"

	"github.com/dustin/go-humanize"
)

// Fingerprint is the ordered token sequence identifying one file
type Fingerprint []string

// SentinelFingerprint is the fingerprint of a file too small to sample
func SentinelFingerprint() Fingerprint {
	return Fingerprint{SentinelToken}
}

// IsSentinel reports whether fp is the small-file sentinel
func (fp Fingerprint) IsSentinel() bool {
	return len(fp) == 1 && fp[0] == SentinelToken
}

// Equal compares two fingerprints token by token
func (fp Fingerprint) Equal(other Fingerprint) bool {
	if len(fp) != len(other) {
		return false
	}
	for i := range fp {
		if fp[i] != other[i] {
			return false
		}
	}
	return true
}

// String joins the tokens with TokenSeparator
func (fp Fingerprint) String() string {
	return strings.Join(fp, TokenSeparator)
}

// FingerprintRecord pairs a file path with its fingerprint
type FingerprintRecord struct {
	Path        string
	Size        int64
	Fingerprint Fingerprint
}

// EngineStats counts work done by an Engine
type EngineStats struct {
	Files        int64
	Sentinels    int64
	BytesSampled int64
	BytesPrimed  int64
}

// Engine fingerprints single files. It is safe for concurrent use: each call
// owns its own FileHandle.
type Engine struct {
	cfg          FingerprintConfig
	shutdownChan <-chan struct{}

	files        atomic.Int64
	sentinels    atomic.Int64
	bytesSampled atomic.Int64
	bytesPrimed  atomic.Int64

	// beforeSample runs after the size is known and before the first read
	beforeSample func(fh *FileHandle)
}

// NewEngine creates an engine for cfg. shutdownChan may be nil; it only
// interrupts full-read priming.
func NewEngine(cfg FingerprintConfig, shutdownChan <-chan struct{}) *Engine {
	return &Engine{cfg: cfg, shutdownChan: shutdownChan}
}

// Config returns the engine's configuration
func (e *Engine) Config() FingerprintConfig {
	return e.cfg
}

// Stats returns a snapshot of the engine counters
func (e *Engine) Stats() EngineStats {
	return EngineStats{
		Files:        e.files.Load(),
		Sentinels:    e.sentinels.Load(),
		BytesSampled: e.bytesSampled.Load(),
		BytesPrimed:  e.bytesPrimed.Load(),
	}
}

// Fingerprint computes the fingerprint of path. Failures are returned as
// *FileReadError and no partial fingerprint is returned.
func (e *Engine) Fingerprint(path string) (Fingerprint, error) {
	record, err := e.FingerprintRecord(path)
	if err != nil {
		return nil, err
	}
	return record.Fingerprint, nil
}

// FingerprintRecord computes the fingerprint of path together with its size
func (e *Engine) FingerprintRecord(path string) (FingerprintRecord, error) {
	if !e.cfg.IsValid() {
		return FingerprintRecord{}, &ConfigurationError{Field: "fingerprint config", Reason: "not initialised"}
	}

	var (
		fp   Fingerprint
		size int64
		err  error
	)
	if e.cfg.Mode() == ModePositionsOnly {
		fp, size, err = e.positions(path)
	} else {
		fp, size, err = e.sample(path)
	}
	if err != nil {
		return FingerprintRecord{}, err
	}

	e.files.Add(1)
	if fp.IsSentinel() {
		e.sentinels.Add(1)
	}
	return FingerprintRecord{Path: path, Size: size, Fingerprint: fp}, nil
}

// positions plans offsets from a stat without opening the file
func (e *Engine) positions(path string) (Fingerprint, int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, 0, newFileReadError(path, 0, "size", err)
	}
	if !info.Mode().IsRegular() {
		return nil, 0, newFileReadError(path, 0, "size", fmt.Errorf("not a regular file"))
	}

	plan, ok := PlanOffsets(info.Size(), int64(e.cfg.SampleCount()), int64(e.cfg.SampleSize()))
	if !ok {
		return SentinelFingerprint(), info.Size(), nil
	}
	return Fingerprint(plan.Strings()), info.Size(), nil
}

// sample runs open, size, prime, plan, sample with the handle closed on every path
func (e *Engine) sample(path string) (fp Fingerprint, size int64, err error) {
	fh, err := OpenFileHandle(path)
	if err != nil {
		return nil, 0, newFileReadError(path, 0, "open", err)
	}
	defer func() {
		if cerr := fh.Close(); cerr != nil && err == nil {
			err = newFileReadError(path, 0, "close", cerr)
		}
	}()

	// Size also rejects anything that is not a regular file, before any read
	size, err = fh.Size()
	if err != nil {
		return nil, 0, newFileReadError(path, 0, "size", err)
	}

	if e.cfg.Mode() == ModeFullRead {
		primed, perr := fh.Prime(e.cfg.PrimeBuffer(), e.shutdownChan)
		e.bytesPrimed.Add(primed)
		if perr != nil {
			return nil, 0, newFileReadError(path, primed, "prime", perr)
		}
		VerboseLog(2, "primed %s: %s", path, humanize.IBytes(uint64(primed)))
	}

	if e.beforeSample != nil {
		e.beforeSample(fh)
	}

	plan, ok := PlanOffsets(size, int64(e.cfg.SampleCount()), int64(e.cfg.SampleSize()))
	if !ok {
		return SentinelFingerprint(), size, nil
	}

	fp = make(Fingerprint, 0, len(plan))
	for _, offset := range plan {
		token, serr := fh.Sample(offset, e.cfg.SampleSize(), e.cfg.TokenFormat())
		if serr != nil {
			return nil, 0, newFileReadError(path, offset, "sample", serr)
		}
		e.bytesSampled.Add(int64(e.cfg.SampleSize()))
		fp = append(fp, token)
	}
	return fp, size, nil
}
