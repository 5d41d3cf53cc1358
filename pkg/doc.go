// Package sparsefp computes cheap, approximate file fingerprints from a small
// number of byte samples taken at evenly spaced offsets, as a fast substitute
// for full-content hashing when looking for likely-identical files in large
// directory trees.
//
// # Core API
//
// A run is described by an immutable FingerprintConfig:
//
//	cfg, err := sparsefp.NewFingerprintConfig(5, 5, sparsefp.ModeSampled)
//	if err != nil {
//		// *ConfigurationError
//	}
//
// A single file is fingerprinted with an Engine:
//
//	fp, err := sparsefp.NewEngine(cfg, nil).Fingerprint("/media/a.mkv")
//	fmt.Println(fp) // e.g. "4f2a1-9ce00-..." or "-1" for small files
//
// Whole trees are processed by a Runner, which walks the arguments with a
// Walker, fingerprints each regular file and writes one record per file:
//
//	w := sparsefp.NewRecordWriter(os.Stdout, false)
//	r, err := sparsefp.NewRunner(cfg, sparsefp.DefaultRunOptions(), w)
//	result, err := r.Run([]string{"/media"}, shutdownChan)
//	w.WriteTrailer(result.Processed)
//
// Directory walks skip symlinks and dotfiles unless WalkOptions says
// otherwise, and an ExcludeFilter drops paths matching regular expressions.
//
// # Offsets
//
// For a file of N bytes and a sample count of n, samples start at
// k*floor(N/(n+1)) for k = 1..n. Files smaller than sampleCount*sampleSize
// get the sentinel fingerprint "-1".
//
// # Configuration
//
// Settings may be loaded from an ini file with LoadSettings and overridden
// with ApplyOverrides; debug output is controlled with SetVerboseLevel and
// SetDebugFlags.
package sparsefp
