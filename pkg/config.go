package sparsefp

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-ini/ini"
)

// Settings is the ini-backed settings file. Settings are only read; the
// tool never writes its settings back.
type Settings struct {
	path string
	ini  *ini.File
}

// SamplingConfig represents the [sampling] section
type SamplingConfig struct {
	Count int    // Samples per file (default: 5)
	Size  string // Bytes per sample, human size (default: "5")
	Mode  string // sampled, positions, full
	Token string // compact, padded
}

// WalkConfig represents the [walk] section
type WalkConfig struct {
	Symlinks string // none, contained, all
	Hidden   bool   // Include dotfiles found while walking
	Exclude  string // File of exclude patterns, one regular expression per line
}

// RunConfig represents the [run] section
type RunConfig struct {
	FailOnError bool // Abort the run on the first unreadable file
	Workers     int  // Concurrent fingerprint workers (default: 1)
}

// PerformanceConfig represents the [performance] section
type PerformanceConfig struct {
	PrimeBuffer string // Read buffer for full-read priming (default: "2M")
}

// VerboseConfig represents the [verbose] section
type VerboseConfig struct {
	Level int    // 0=quiet, 1=basic, 2=detailed, 3=trace
	Debug string // Comma-separated debug flags
}

// AllConfig represents all configuration options
type AllConfig struct {
	Sampling    *SamplingConfig
	Walk        *WalkConfig
	Run         *RunConfig
	Performance *PerformanceConfig
	Verbose     *VerboseConfig
}

// DefaultSettingsPath returns $XDG_CONFIG_HOME/sparsefp/config, falling back to ~/.config
func DefaultSettingsPath() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "sparsefp", "config")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "sparsefp", "config")
}

// DefaultSettings returns settings holding only built-in defaults
func DefaultSettings() *Settings {
	return &Settings{ini: ini.Empty()}
}

// LoadSettings loads an ini settings file; the file must exist
func LoadSettings(path string) (*Settings, error) {
	iniFile, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load settings file %s: %w", path, err)
	}
	return &Settings{path: path, ini: iniFile}, nil
}

// LoadDefaultSettings loads the settings file at DefaultSettingsPath when it
// exists, and built-in defaults otherwise
func LoadDefaultSettings() (*Settings, error) {
	path := DefaultSettingsPath()
	if path == "" {
		return DefaultSettings(), nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return DefaultSettings(), nil
	}
	return LoadSettings(path)
}

// Path returns the file the settings were loaded from, or "" for defaults
func (s *Settings) Path() string {
	return s.path
}

func (s *Settings) stringValue(section, key, fallback string) string {
	if !s.ini.HasSection(section) {
		return fallback
	}
	sec := s.ini.Section(section)
	if !sec.HasKey(key) {
		return fallback
	}
	if v := strings.TrimSpace(sec.Key(key).String()); v != "" {
		return v
	}
	return fallback
}

func (s *Settings) intValue(section, key string, fallback int) int {
	if !s.ini.HasSection(section) || !s.ini.Section(section).HasKey(key) {
		return fallback
	}
	if v, err := s.ini.Section(section).Key(key).Int(); err == nil {
		return v
	}
	return fallback
}

func (s *Settings) boolValue(section, key string, fallback bool) bool {
	if !s.ini.HasSection(section) || !s.ini.Section(section).HasKey(key) {
		return fallback
	}
	if v, err := s.ini.Section(section).Key(key).Bool(); err == nil {
		return v
	}
	return fallback
}

// GetSamplingConfig returns the sampling configuration
func (s *Settings) GetSamplingConfig() *SamplingConfig {
	return &SamplingConfig{
		Count: s.intValue("sampling", "count", DefaultSampleCount),
		Size:  s.stringValue("sampling", "size", strconv.Itoa(DefaultSampleSize)),
		Mode:  s.stringValue("sampling", "mode", ModeSampled.String()),
		Token: s.stringValue("sampling", "token", TokenCompact.String()),
	}
}

// GetWalkConfig returns the directory walk configuration
func (s *Settings) GetWalkConfig() *WalkConfig {
	return &WalkConfig{
		Symlinks: s.stringValue("walk", "symlinks", SymlinkNone),
		Hidden:   s.boolValue("walk", "hidden", false),
		Exclude:  s.stringValue("walk", "exclude", ""),
	}
}

// GetRunConfig returns the run policy configuration
func (s *Settings) GetRunConfig() *RunConfig {
	return &RunConfig{
		FailOnError: s.boolValue("run", "fail_on_error", false),
		Workers:     s.intValue("run", "workers", DefaultWorkers),
	}
}

// GetPerformanceConfig returns the performance configuration
func (s *Settings) GetPerformanceConfig() *PerformanceConfig {
	return &PerformanceConfig{
		PrimeBuffer: s.stringValue("performance", "prime_buffer", DefaultPrimeBuffer),
	}
}

// GetVerboseConfig returns the verbose configuration
func (s *Settings) GetVerboseConfig() *VerboseConfig {
	return &VerboseConfig{
		Level: s.intValue("verbose", "level", 0),
		Debug: s.stringValue("verbose", "debug", ""),
	}
}

// GetAllConfig returns all configuration options
func (s *Settings) GetAllConfig() *AllConfig {
	return &AllConfig{
		Sampling:    s.GetSamplingConfig(),
		Walk:        s.GetWalkConfig(),
		Run:         s.GetRunConfig(),
		Performance: s.GetPerformanceConfig(),
		Verbose:     s.GetVerboseConfig(),
	}
}

// overrideKeys maps override keys to their ini section
var overrideKeys = map[string]string{
	"count":         "sampling",
	"size":          "sampling",
	"mode":          "sampling",
	"token":         "sampling",
	"symlinks":      "walk",
	"hidden":        "walk",
	"exclude":       "walk",
	"fail_on_error": "run",
	"workers":       "run",
	"prime_buffer":  "performance",
	"level":         "verbose",
	"debug":         "verbose",
}

// ApplyOverrides applies command-line overrides to the in-memory settings.
// Accepts strings like "count:8", "mode:positions", "symlinks:all", "level:2".
func (s *Settings) ApplyOverrides(overrides []string) error {
	for _, override := range overrides {
		key, value, ok := strings.Cut(override, ":")
		if !ok {
			return &ConfigurationError{Field: "override", Value: override, Reason: "expected 'key:value'"}
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)

		section, known := overrideKeys[key]
		if !known {
			return &ConfigurationError{
				Field:  "override key",
				Value:  key,
				Reason: "supported: count, size, mode, token, symlinks, hidden, exclude, fail_on_error, workers, prime_buffer, level, debug",
			}
		}
		s.ini.Section(section).Key(key).SetValue(value)
	}
	return nil
}

// WriteTo writes the effective settings in ini format
func (s *Settings) WriteTo(w io.Writer) (int64, error) {
	all := s.GetAllConfig()
	out := ini.Empty()
	out.Section("sampling").Key("count").SetValue(strconv.Itoa(all.Sampling.Count))
	out.Section("sampling").Key("size").SetValue(all.Sampling.Size)
	out.Section("sampling").Key("mode").SetValue(all.Sampling.Mode)
	out.Section("sampling").Key("token").SetValue(all.Sampling.Token)
	out.Section("walk").Key("symlinks").SetValue(all.Walk.Symlinks)
	out.Section("walk").Key("hidden").SetValue(strconv.FormatBool(all.Walk.Hidden))
	out.Section("walk").Key("exclude").SetValue(all.Walk.Exclude)
	out.Section("run").Key("fail_on_error").SetValue(strconv.FormatBool(all.Run.FailOnError))
	out.Section("run").Key("workers").SetValue(strconv.Itoa(all.Run.Workers))
	out.Section("performance").Key("prime_buffer").SetValue(all.Performance.PrimeBuffer)
	out.Section("verbose").Key("level").SetValue(strconv.Itoa(all.Verbose.Level))
	out.Section("verbose").Key("debug").SetValue(all.Verbose.Debug)
	return out.WriteTo(w)
}

// Resolve validates the settings and builds the immutable fingerprint
// configuration and run options. Every problem is a *ConfigurationError.
func (s *Settings) Resolve() (FingerprintConfig, RunOptions, error) {
	if err := s.checkTypes(); err != nil {
		return FingerprintConfig{}, RunOptions{}, err
	}
	all := s.GetAllConfig()

	sampleSize, err := ParseHumanSize(all.Sampling.Size)
	if err != nil {
		return FingerprintConfig{}, RunOptions{}, &ConfigurationError{Field: "sample size", Value: all.Sampling.Size, Reason: err.Error()}
	}
	mode, err := ParseMode(all.Sampling.Mode)
	if err != nil {
		return FingerprintConfig{}, RunOptions{}, err
	}
	format, err := ParseTokenFormat(all.Sampling.Token)
	if err != nil {
		return FingerprintConfig{}, RunOptions{}, err
	}
	primeBuffer, err := ParseHumanSize(all.Performance.PrimeBuffer)
	if err != nil {
		return FingerprintConfig{}, RunOptions{}, &ConfigurationError{Field: "prime buffer", Value: all.Performance.PrimeBuffer, Reason: err.Error()}
	}

	cfg, err := buildFingerprintConfig(all.Sampling.Count, sampleSize, mode, format, primeBuffer)
	if err != nil {
		return FingerprintConfig{}, RunOptions{}, err
	}

	if err := ValidateSymlinkMode(all.Walk.Symlinks); err != nil {
		return FingerprintConfig{}, RunOptions{}, err
	}
	if err := ValidateWorkers(all.Run.Workers); err != nil {
		return FingerprintConfig{}, RunOptions{}, err
	}
	if err := ValidateVerboseLevel(all.Verbose.Level); err != nil {
		return FingerprintConfig{}, RunOptions{}, err
	}

	exclude := &ExcludeFilter{}
	if all.Walk.Exclude != "" {
		if err := exclude.LoadExcludeFile(all.Walk.Exclude); err != nil {
			if IsConfigurationError(err) {
				return FingerprintConfig{}, RunOptions{}, err
			}
			return FingerprintConfig{}, RunOptions{}, &ConfigurationError{Field: "exclude file", Value: all.Walk.Exclude, Reason: err.Error()}
		}
	}

	opts := RunOptions{
		Walk: WalkOptions{
			SymlinkMode:   strings.ToLower(all.Walk.Symlinks),
			IncludeHidden: all.Walk.Hidden,
			Exclude:       exclude,
		},
		FailOnError: all.Run.FailOnError,
		Workers:     all.Run.Workers,
	}
	return cfg, opts, nil
}

// checkTypes rejects integer and boolean keys that are present but unparsable,
// which the getters would otherwise replace with defaults
func (s *Settings) checkTypes() error {
	intKeys := [][2]string{{"sampling", "count"}, {"run", "workers"}, {"verbose", "level"}}
	for _, k := range intKeys {
		if s.ini.HasSection(k[0]) && s.ini.Section(k[0]).HasKey(k[1]) {
			key := s.ini.Section(k[0]).Key(k[1])
			if _, err := key.Int(); err != nil {
				return &ConfigurationError{Field: k[0] + "." + k[1], Value: key.String(), Reason: "not an integer"}
			}
		}
	}
	boolKeys := [][2]string{{"walk", "hidden"}, {"run", "fail_on_error"}}
	for _, k := range boolKeys {
		if s.ini.HasSection(k[0]) && s.ini.Section(k[0]).HasKey(k[1]) {
			key := s.ini.Section(k[0]).Key(k[1])
			if _, err := key.Bool(); err != nil {
				return &ConfigurationError{Field: k[0] + "." + k[1], Value: key.String(), Reason: "not a boolean"}
			}
		}
	}
	return nil
}

// ValidateVerboseLevel validates that a verbose level is valid
func ValidateVerboseLevel(level int) error {
	if level < 0 || level > 3 {
		return &ConfigurationError{Field: "verbose level", Value: strconv.Itoa(level), Reason: "supported: 0-3"}
	}
	return nil
}
