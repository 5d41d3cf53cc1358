package sparsefp

import (
	"fmt"
	"strings"
)

// Mode selects what the engine emits for each planned offset
type Mode int

const (
	ModeSampled       Mode = iota // Hex rendering of the sampled bytes
	ModePositionsOnly             // Decimal offsets only, no file reads
	ModeFullRead                  // Read the whole file once, then sample
)

func (m Mode) String() string {
	switch m {
	case ModeSampled:
		return "sampled"
	case ModePositionsOnly:
		return "positions"
	case ModeFullRead:
		return "full"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// ParseMode returns the mode for a name (case-insensitive)
func ParseMode(name string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "sampled", "sample":
		return ModeSampled, nil
	case "positions", "positions-only":
		return ModePositionsOnly, nil
	case "full", "full-read":
		return ModeFullRead, nil
	default:
		return ModeSampled, &ConfigurationError{Field: "mode", Value: name, Reason: "supported: sampled, positions, full"}
	}
}

// TokenFormat selects how a sampled byte window is rendered
type TokenFormat int

const (
	// TokenCompact writes each byte in hex without a leading zero (0x0a -> "a")
	TokenCompact TokenFormat = iota
	// TokenPadded writes each byte as two hex digits
	TokenPadded
)

func (f TokenFormat) String() string {
	if f == TokenPadded {
		return "padded"
	}
	return "compact"
}

// ParseTokenFormat returns the token format for a name (case-insensitive)
func ParseTokenFormat(name string) (TokenFormat, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "compact":
		return TokenCompact, nil
	case "padded":
		return TokenPadded, nil
	default:
		return TokenCompact, &ConfigurationError{Field: "token format", Value: name, Reason: "supported: compact, padded"}
	}
}

// FingerprintConfig is resolved once per run and never changes afterwards.
// The zero value is not valid; use NewFingerprintConfig or DefaultFingerprintConfig.
type FingerprintConfig struct {
	sampleCount int
	sampleSize  int
	mode        Mode
	tokenFormat TokenFormat
	primeBuffer int
}

// NewFingerprintConfig validates and builds a config with compact tokens and
// the default prime buffer
func NewFingerprintConfig(sampleCount, sampleSize int, mode Mode) (FingerprintConfig, error) {
	primeBuffer, err := ParseHumanSize(DefaultPrimeBuffer)
	if err != nil {
		return FingerprintConfig{}, err
	}
	return buildFingerprintConfig(sampleCount, sampleSize, mode, TokenCompact, primeBuffer)
}

// DefaultFingerprintConfig returns 5 samples of 5 bytes in sampled mode
func DefaultFingerprintConfig() FingerprintConfig {
	cfg, _ := NewFingerprintConfig(DefaultSampleCount, DefaultSampleSize, ModeSampled)
	return cfg
}

func buildFingerprintConfig(sampleCount, sampleSize int, mode Mode, format TokenFormat, primeBuffer int) (FingerprintConfig, error) {
	if sampleCount < 1 || sampleCount > MaxSampleCount {
		return FingerprintConfig{}, &ConfigurationError{
			Field:  "sample count",
			Value:  fmt.Sprintf("%d", sampleCount),
			Reason: fmt.Sprintf("must be between 1 and %d", MaxSampleCount),
		}
	}
	if sampleSize < 1 || sampleSize > MaxSampleSize {
		return FingerprintConfig{}, &ConfigurationError{
			Field:  "sample size",
			Value:  fmt.Sprintf("%d", sampleSize),
			Reason: fmt.Sprintf("must be between 1 and %d", MaxSampleSize),
		}
	}
	switch mode {
	case ModeSampled, ModePositionsOnly, ModeFullRead:
	default:
		return FingerprintConfig{}, &ConfigurationError{Field: "mode", Value: mode.String(), Reason: "unknown mode"}
	}
	switch format {
	case TokenCompact, TokenPadded:
	default:
		return FingerprintConfig{}, &ConfigurationError{Field: "token format", Value: format.String(), Reason: "unknown format"}
	}
	if primeBuffer < 1 {
		return FingerprintConfig{}, &ConfigurationError{
			Field:  "prime buffer",
			Value:  fmt.Sprintf("%d", primeBuffer),
			Reason: "must be positive",
		}
	}
	return FingerprintConfig{
		sampleCount: sampleCount,
		sampleSize:  sampleSize,
		mode:        mode,
		tokenFormat: format,
		primeBuffer: primeBuffer,
	}, nil
}

// WithTokenFormat returns a copy of c using format
func (c FingerprintConfig) WithTokenFormat(format TokenFormat) (FingerprintConfig, error) {
	return buildFingerprintConfig(c.sampleCount, c.sampleSize, c.mode, format, c.primeBuffer)
}

// WithPrimeBuffer returns a copy of c using a prime buffer of size bytes
func (c FingerprintConfig) WithPrimeBuffer(size int) (FingerprintConfig, error) {
	return buildFingerprintConfig(c.sampleCount, c.sampleSize, c.mode, c.tokenFormat, size)
}

func (c FingerprintConfig) SampleCount() int         { return c.sampleCount }
func (c FingerprintConfig) SampleSize() int          { return c.sampleSize }
func (c FingerprintConfig) Mode() Mode               { return c.mode }
func (c FingerprintConfig) TokenFormat() TokenFormat { return c.tokenFormat }
func (c FingerprintConfig) PrimeBuffer() int         { return c.primeBuffer }

// IsValid reports whether c was built through the validating constructors
func (c FingerprintConfig) IsValid() bool {
	return c.sampleCount >= 1 && c.sampleSize >= 1 && c.primeBuffer >= 1
}

func (c FingerprintConfig) String() string {
	return fmt.Sprintf("samples=%d size=%d mode=%s tokens=%s", c.sampleCount, c.sampleSize, c.mode, c.tokenFormat)
}
