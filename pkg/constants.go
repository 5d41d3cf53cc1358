package sparsefp

// Sampling defaults
const (
	DefaultSampleCount = 5 // Number of samples per file
	DefaultSampleSize  = 5 // Bytes per sample
)

// Sampling limits, checked when a FingerprintConfig is built
const (
	MaxSampleCount = 65535
	MaxSampleSize  = 1 << 20
)

// DefaultPrimeBuffer is the read buffer used when priming a file in full-read mode
const DefaultPrimeBuffer = "2M"

// Worker pool limits
const (
	DefaultWorkers = 1
	MaxWorkers     = 64
)

// SentinelToken is the only token of a fingerprint for a file too small to sample
const SentinelToken = "-1"

// TokenSeparator joins the tokens of a fingerprint on output
const TokenSeparator = "-"

// Symlink handling modes for directory walks
const (
	SymlinkNone      = "none"      // Skip symlinks found while walking
	SymlinkContained = "contained" // Follow symlinks resolving inside the walked root
	SymlinkAll       = "all"       // Follow every symlink
)

// Debug flag names understood by IsDebugEnabled
const (
	DebugWalk    = "walk"
	DebugPlan    = "plan"
	DebugSample  = "sample"
	DebugWorkers = "workers"
	DebugOutput  = "output"
)
