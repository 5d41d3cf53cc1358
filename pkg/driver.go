package sparsefp

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/dustin/go-humanize"
)

// RecordSink receives one record per successfully fingerprinted file, in discovery order
type RecordSink interface {
	WriteRecord(rec FingerprintRecord) error
}

// RunOptions holds the per-run policies that sit around the engine
type RunOptions struct {
	Walk        WalkOptions
	FailOnError bool // Stop at the first file that cannot be read
	Workers     int  // Files fingerprinted concurrently; 1 is fully sequential
}

// DefaultRunOptions continues past unreadable files and works sequentially
func DefaultRunOptions() RunOptions {
	return RunOptions{
		Walk:    DefaultWalkOptions(),
		Workers: DefaultWorkers,
	}
}

// RunResult summarises a run
type RunResult struct {
	Processed int // Records emitted
	Failed    int // Files that produced a FileReadError
}

// Runner walks path arguments, fingerprints every file found and hands the
// records to a sink
type Runner struct {
	cfg     FingerprintConfig
	opts    RunOptions
	walker  *Walker
	sink    RecordSink
	tracker *DuplicateTracker
	onError func(error)
	errMu   sync.Mutex
	stats   EngineStats
}

// NewRunner validates opts and creates a runner writing to sink
func NewRunner(cfg FingerprintConfig, opts RunOptions, sink RecordSink) (*Runner, error) {
	if !cfg.IsValid() {
		return nil, &ConfigurationError{Field: "fingerprint config", Reason: "not initialised"}
	}
	if opts.Workers == 0 {
		opts.Workers = DefaultWorkers
	}
	if err := ValidateWorkers(opts.Workers); err != nil {
		return nil, err
	}
	walker, err := NewWalker(opts.Walk)
	if err != nil {
		return nil, err
	}
	return &Runner{
		cfg:    cfg,
		opts:   opts,
		walker: walker,
		sink:   sink,
		onError: func(err error) {
			logLine("", "Error: %v", err)
		},
	}, nil
}

// SetErrorHandler replaces the handler called for every per-file error
func (r *Runner) SetErrorHandler(fn func(error)) {
	if fn != nil {
		r.onError = fn
	}
}

// SetDuplicateTracker makes the runner add every record to dt
func (r *Runner) SetDuplicateTracker(dt *DuplicateTracker) {
	r.tracker = dt
}

// Stats returns the engine counters of the last run
func (r *Runner) Stats() EngineStats {
	return r.stats
}

// reportError passes a per-file or per-directory error to the error handler,
// one at a time
func (r *Runner) reportError(err error) {
	r.errMu.Lock()
	defer r.errMu.Unlock()
	r.onError(err)
}

// fileResult is one engine outcome tagged with its discovery sequence number
type fileResult struct {
	seq    int
	record FingerprintRecord
	err    error
}

// runState is shared by the walk, the workers and the collector of one run
type runState struct {
	stop        chan struct{}
	stopOnce    sync.Once
	interrupted atomic.Bool
}

func (rs *runState) halt() {
	rs.stopOnce.Do(func() { close(rs.stop) })
}

func (rs *runState) stopped() bool {
	select {
	case <-rs.stop:
		return true
	default:
		return false
	}
}

// Run processes paths in order. It returns ErrInterrupted when shutdownChan
// closes, the first FileReadError when FailOnError is set, or a sink error.
// Per-file errors in continue mode are passed to the error handler and
// counted in RunResult.Failed.
func (r *Runner) Run(paths []string, shutdownChan <-chan struct{}) (RunResult, error) {
	defer VerboseEnter()()

	if isClosed(shutdownChan) {
		return RunResult{}, ErrInterrupted
	}

	state := &runState{stop: make(chan struct{})}
	defer state.halt()

	go func() {
		select {
		case <-shutdownChan:
			state.interrupted.Store(true)
			state.halt()
		case <-state.stop:
		}
	}()

	engine := NewEngine(r.cfg, state.stop)
	VerboseLog(1, "fingerprinting %d argument(s): %s, workers=%d", len(paths), r.cfg, r.opts.Workers)

	// Unreadable directories are reported from the walk goroutine
	var walkFailed atomic.Int64
	r.walker.SetErrorHandler(func(err error) error {
		walkFailed.Add(1)
		r.reportError(err)
		if r.opts.FailOnError {
			state.halt()
			return err
		}
		return nil
	})

	pathChan := make(chan string, 64)
	scanDone := make(chan error, 1)
	go func() {
		scanDone <- r.walker.Scan(paths, pathChan, state.stop)
	}()

	var result RunResult
	var abortErr error
	handle := func(res fileResult) {
		if abortErr != nil {
			return
		}
		if res.err != nil {
			if errors.Is(res.err, ErrInterrupted) {
				state.interrupted.Store(true)
				state.halt()
				return
			}
			result.Failed++
			r.reportError(res.err)
			if r.opts.FailOnError {
				abortErr = res.err
				state.halt()
			}
			return
		}
		if err := r.sink.WriteRecord(res.record); err != nil {
			abortErr = fmt.Errorf("failed to write record for %s: %w", res.record.Path, err)
			state.halt()
			return
		}
		if r.tracker != nil {
			r.tracker.Add(res.record)
		}
		VerboseLog(2, "%s: %s, %s", res.record.Path, humanize.IBytes(uint64(res.record.Size)), res.record.Fingerprint)
		result.Processed++
	}

	if r.opts.Workers <= 1 {
		for path := range pathChan {
			if state.stopped() {
				continue
			}
			record, err := engine.FingerprintRecord(path)
			handle(fileResult{record: record, err: err})
		}
	} else {
		r.runPool(engine, pathChan, state, handle)
	}

	scanErr := <-scanDone
	result.Failed += int(walkFailed.Load())
	if isClosed(shutdownChan) {
		state.interrupted.Store(true)
	}
	r.stats = engine.Stats()
	VerboseLog(1, "%s files fingerprinted (%s too small), %d failed, %s sampled, %s primed",
		humanize.Comma(int64(result.Processed)), humanize.Comma(r.stats.Sentinels), result.Failed,
		humanize.IBytes(uint64(r.stats.BytesSampled)), humanize.IBytes(uint64(r.stats.BytesPrimed)))

	switch {
	case abortErr != nil:
		return result, abortErr
	case state.interrupted.Load():
		return result, ErrInterrupted
	case scanErr != nil && !errors.Is(scanErr, ErrInterrupted):
		return result, fmt.Errorf("failed to walk paths: %w", scanErr)
	}
	return result, nil
}

// runPool fingerprints files on opts.Workers goroutines and hands results to
// handle in discovery order
func (r *Runner) runPool(engine *Engine, pathChan <-chan string, state *runState, handle func(fileResult)) {
	type job struct {
		seq  int
		path string
	}
	jobs := make(chan job, r.opts.Workers)
	results := make(chan fileResult, r.opts.Workers)

	go func() {
		defer close(jobs)
		seq := 0
		for path := range pathChan {
			select {
			case jobs <- job{seq: seq, path: path}:
				seq++
			case <-state.stop:
			}
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < r.opts.Workers; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for j := range jobs {
				if state.stopped() {
					continue
				}
				DebugLog(DebugWorkers, "worker %d: %s (job %d)", worker, j.path, j.seq)
				record, err := engine.FingerprintRecord(j.path)
				select {
				case results <- fileResult{seq: j.seq, record: record, err: err}:
				case <-state.stop:
				}
			}
		}(i)
	}
	go func() {
		wg.Wait()
		close(results)
	}()

	pending := make(map[int]fileResult)
	next := 0
	for res := range results {
		if state.stopped() {
			continue
		}
		pending[res.seq] = res
		for {
			ready, ok := pending[next]
			if !ok {
				break
			}
			delete(pending, next)
			next++
			handle(ready)
		}
	}
}

// isClosed reports whether ch is closed without blocking; a nil channel never is
func isClosed(ch <-chan struct{}) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}

// ValidateWorkers validates that the worker count is reasonable
func ValidateWorkers(workers int) error {
	if workers < 1 || workers > MaxWorkers {
		return &ConfigurationError{
			Field:  "workers",
			Value:  fmt.Sprintf("%d", workers),
			Reason: fmt.Sprintf("must be between 1 and %d", MaxWorkers),
		}
	}
	return nil
}
