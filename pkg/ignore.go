package sparsefp

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// ExcludeFilter holds regular expressions matched against paths relative to
// the walked argument, always with forward slashes. A matching directory is
// not descended into.
type ExcludeFilter struct {
	patterns []*regexp.Regexp
}

// NewExcludeFilter compiles patterns
func NewExcludeFilter(patterns []string) (*ExcludeFilter, error) {
	ef := &ExcludeFilter{}
	for _, p := range patterns {
		if err := ef.AddPattern(p); err != nil {
			return nil, err
		}
	}
	return ef, nil
}

// LoadExcludeFile adds the patterns of an exclude file: one regular expression
// per line, blank lines and lines starting with # ignored
func (ef *ExcludeFilter) LoadExcludeFile(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open exclude file: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		pattern, err := regexp.Compile(line)
		if err != nil {
			return &ConfigurationError{
				Field:  "exclude pattern",
				Value:  line,
				Reason: fmt.Sprintf("%s line %d: %v", path, lineNum, err),
			}
		}
		ef.patterns = append(ef.patterns, pattern)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading exclude file: %w", err)
	}
	return nil
}

// AddPattern adds one pattern
func (ef *ExcludeFilter) AddPattern(patternStr string) error {
	pattern, err := regexp.Compile(patternStr)
	if err != nil {
		return &ConfigurationError{Field: "exclude pattern", Value: patternStr, Reason: err.Error()}
	}
	ef.patterns = append(ef.patterns, pattern)
	return nil
}

// HasPatterns reports whether any pattern is loaded
func (ef *ExcludeFilter) HasPatterns() bool {
	return ef != nil && len(ef.patterns) > 0
}

// Patterns returns the pattern sources in the order they were added
func (ef *ExcludeFilter) Patterns() []string {
	if ef == nil {
		return nil
	}
	out := make([]string, len(ef.patterns))
	for i, p := range ef.patterns {
		out[i] = p.String()
	}
	return out
}

// ShouldExclude checks a path relative to the walked argument
func (ef *ExcludeFilter) ShouldExclude(relativePath string) bool {
	if !ef.HasPatterns() {
		return false
	}
	normalised := filepath.ToSlash(relativePath)
	for _, pattern := range ef.patterns {
		if pattern.MatchString(normalised) {
			return true
		}
	}
	return false
}
