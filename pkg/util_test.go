package sparsefp

import "testing"

func TestParseHumanSize(t *testing.T) {
	tests := []struct {
		input   string
		want    int
		wantErr bool
	}{
		{"5", 5, false},
		{"5B", 5, false},
		{"1K", 1024, false},
		{"1kb", 1024, false},
		{" 512k ", 512 * 1024, false},
		{"2M", 2 * 1024 * 1024, false},
		{"1.5M", 1536 * 1024, false},
		{"1G", 1 << 30, false},
		{"", 0, true},
		{"K", 0, true},
		{"0", 0, true},
		{"0.5", 0, true},
		{"12X", 0, true},
		{"1.2.3", 0, true},
	}

	for _, tt := range tests {
		got, err := ParseHumanSize(tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseHumanSize(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && got != tt.want {
			t.Errorf("ParseHumanSize(%q) = %d, want %d", tt.input, got, tt.want)
		}
	}
}

func TestIsPathContained(t *testing.T) {
	tests := []struct {
		target, container string
		want              bool
	}{
		{"/a/b/c", "/a/b", true},
		{"/a/b", "/a/b", true},
		{"/a/bc", "/a/b", false},
		{"/x", "/a", false},
	}
	for _, tt := range tests {
		if got := isPathContained(tt.target, tt.container); got != tt.want {
			t.Errorf("isPathContained(%q, %q) = %v, want %v", tt.target, tt.container, got, tt.want)
		}
	}
}

func TestIsHiddenName(t *testing.T) {
	for name, want := range map[string]bool{".git": true, ".x": true, "a.b": false, ".": false, "..": false} {
		if got := isHiddenName(name); got != want {
			t.Errorf("isHiddenName(%q) = %v, want %v", name, got, want)
		}
	}
}
