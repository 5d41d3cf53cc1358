package sparsefp

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
)

// ParseHumanSize parses human-readable size strings (e.g., "5", "2M", "512k", "1G")
func ParseHumanSize(sizeStr string) (int, error) {
	sizeStr = strings.ToUpper(strings.TrimSpace(sizeStr))
	if sizeStr == "" {
		return 0, fmt.Errorf("empty size string")
	}

	split := strings.IndexFunc(sizeStr, func(r rune) bool {
		return (r < '0' || r > '9') && r != '.'
	})
	numPart, suffix := sizeStr, ""
	if split >= 0 {
		numPart, suffix = sizeStr[:split], strings.TrimSpace(sizeStr[split:])
	}
	if numPart == "" {
		return 0, fmt.Errorf("no numeric part in size string: %s", sizeStr)
	}

	num, err := strconv.ParseFloat(numPart, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid numeric part in size string %s: %w", sizeStr, err)
	}

	var multiplier float64
	switch suffix {
	case "", "B":
		multiplier = 1
	case "K", "KB":
		multiplier = 1 << 10
	case "M", "MB":
		multiplier = 1 << 20
	case "G", "GB":
		multiplier = 1 << 30
	default:
		return 0, fmt.Errorf("unknown size suffix: %s", suffix)
	}

	result := num * multiplier
	if result < 1 {
		return 0, fmt.Errorf("size must be positive: %s", sizeStr)
	}
	if result > float64(int(^uint(0)>>1)) {
		return 0, fmt.Errorf("size too large: %s", sizeStr)
	}
	return int(result), nil
}

// isPathContained checks if targetPath is containerPath or lies beneath it
func isPathContained(targetPath, containerPath string) bool {
	targetAbs, err := filepath.Abs(targetPath)
	if err != nil {
		return false
	}
	containerAbs, err := filepath.Abs(containerPath)
	if err != nil {
		return false
	}
	if targetAbs == containerAbs {
		return true
	}
	return strings.HasPrefix(targetAbs, containerAbs+string(filepath.Separator))
}

// isHiddenName reports whether a directory entry name is a dotfile
func isHiddenName(name string) bool {
	return strings.HasPrefix(name, ".") && name != "." && name != ".."
}
