package sparsefp

import (
	"os"
	"path/filepath"
	"testing"
)

// sequentialBytes returns n bytes where byte i is i mod 256
func sequentialBytes(n int) []byte {
	data := make([]byte, n)
	for i := range data {
		data[i] = byte(i)
	}
	return data
}

// writeTestFile creates dir/name (and its parent directories) holding data
func writeTestFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("Failed to create directory for %s: %v", name, err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("Failed to write %s: %v", name, err)
	}
	return path
}

func mustConfig(t *testing.T, count, size int, mode Mode) FingerprintConfig {
	t.Helper()
	cfg, err := NewFingerprintConfig(count, size, mode)
	if err != nil {
		t.Fatalf("NewFingerprintConfig(%d, %d, %s) failed: %v", count, size, mode, err)
	}
	return cfg
}
