package sparsefp

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sys/unix"
)

// errWalkStopped unwinds a walk whose consumer has gone away
var errWalkStopped = errors.New("walk stopped")

// WalkOptions controls which entries a Walker reports
type WalkOptions struct {
	SymlinkMode   string // SymlinkNone, SymlinkContained or SymlinkAll
	IncludeHidden bool   // Report dotfiles and descend into dot-directories
	Exclude       *ExcludeFilter
}

// DefaultWalkOptions skips symlinks and hidden entries found while walking
func DefaultWalkOptions() WalkOptions {
	return WalkOptions{SymlinkMode: SymlinkNone}
}

// Walker enumerates regular files beneath a list of path arguments.
//
// Arguments are handled in the order given. An argument is always resolved,
// even when it is a symlink or a dotfile; the symlink and hidden policies only
// apply to entries found inside directories. Directory entries are visited
// depth first in name order, so the same tree always yields the same sequence.
// Exclude patterns are matched against the path relative to the argument.
// A Walker holds no state between walks and can be reused.
type Walker struct {
	opts    WalkOptions
	onError func(error) error
	readDir func(string) ([]os.DirEntry, error)
}

// fileID identifies a directory for cycle detection when following symlinks
type fileID struct {
	dev uint64
	ino uint64
}

// NewWalker validates opts and returns a walker
func NewWalker(opts WalkOptions) (*Walker, error) {
	if opts.SymlinkMode == "" {
		opts.SymlinkMode = SymlinkNone
	}
	if err := ValidateSymlinkMode(opts.SymlinkMode); err != nil {
		return nil, err
	}
	opts.SymlinkMode = strings.ToLower(opts.SymlinkMode)
	return &Walker{opts: opts, readDir: os.ReadDir}, nil
}

// SetErrorHandler sets the handler for directories that cannot be read. A
// non-nil return stops the walk with that error. Without a handler the error
// is logged and the walk continues.
func (w *Walker) SetErrorHandler(fn func(error) error) {
	w.onError = fn
}

// reportError hands a walk error to the handler
func (w *Walker) reportError(err error) error {
	if w.onError == nil {
		logLine("", "Error: %v", err)
		return nil
	}
	return w.onError(err)
}

// Options returns the walker's options
func (w *Walker) Options() WalkOptions {
	return w.opts
}

// Scan streams file paths to resultChan as they are found and closes it when
// done. Arguments that cannot be stat'ed are passed through unchanged so the
// caller can report them. Closing stopChan ends the walk early with ErrInterrupted.
func (w *Walker) Scan(paths []string, resultChan chan<- string, stopChan <-chan struct{}) error {
	defer VerboseEnter()()
	defer close(resultChan)

	err := w.Walk(paths, func(path string) error {
		select {
		case resultChan <- path:
			return nil
		case <-stopChan:
			return errWalkStopped
		}
	})
	if errors.Is(err, errWalkStopped) {
		return ErrInterrupted
	}
	return err
}

// Walk calls fn for every file found, in discovery order. An error from fn
// stops the walk and is returned.
func (w *Walker) Walk(paths []string, fn func(path string) error) error {
	for _, arg := range paths {
		info, err := os.Stat(arg)
		if err != nil {
			DebugLog(DebugWalk, "cannot stat argument %s: %v", arg, err)
			if err := fn(arg); err != nil {
				return err
			}
			continue
		}

		if !info.IsDir() {
			if err := fn(arg); err != nil {
				return err
			}
			continue
		}

		visited := make(map[fileID]bool)
		if id, ok := statID(arg); ok {
			visited[id] = true
		}
		if err := w.walkDir(arg, arg, visited, fn); err != nil {
			return err
		}
	}
	return nil
}

// walkDir visits the entries of dir, recursing into subdirectories
func (w *Walker) walkDir(root, dir string, visited map[fileID]bool, fn func(string) error) error {
	// os.ReadDir returns entries sorted by name
	entries, err := w.readDir(dir)
	if err != nil {
		return w.reportError(newFileReadError(dir, 0, "readdir", err))
	}

	for _, entry := range entries {
		name := entry.Name()
		fullPath := filepath.Join(dir, name)

		if !w.opts.IncludeHidden && isHiddenName(name) {
			DebugLog(DebugWalk, "skipping hidden %s", fullPath)
			continue
		}
		if w.opts.Exclude.HasPatterns() {
			if rel, err := filepath.Rel(root, fullPath); err == nil && w.opts.Exclude.ShouldExclude(rel) {
				DebugLog(DebugWalk, "skipping excluded %s", fullPath)
				continue
			}
		}

		mode := entry.Type()
		if mode&os.ModeSymlink != 0 {
			target, ok := w.followSymlink(root, fullPath)
			if !ok {
				continue
			}
			mode = target.Mode().Type()
		}

		switch {
		case mode.IsDir():
			id, ok := statID(fullPath)
			if ok {
				if visited[id] {
					DebugLog(DebugWalk, "skipping already visited directory %s", fullPath)
					continue
				}
				visited[id] = true
			}
			if err := w.walkDir(root, fullPath, visited, fn); err != nil {
				return err
			}
		case mode.IsRegular():
			DebugLog(DebugWalk, "found %s", fullPath)
			if err := fn(fullPath); err != nil {
				return err
			}
		default:
			DebugLog(DebugWalk, "skipping non-regular %s (%s)", fullPath, mode)
		}
	}
	return nil
}

// followSymlink applies the symlink policy and returns the target info when the link is followed
func (w *Walker) followSymlink(root, linkPath string) (os.FileInfo, bool) {
	switch w.opts.SymlinkMode {
	case SymlinkNone:
		DebugLog(DebugWalk, "skipping symlink %s", linkPath)
		return nil, false
	case SymlinkContained:
		target, err := filepath.EvalSymlinks(linkPath)
		if err != nil {
			DebugLog(DebugWalk, "skipping broken symlink %s: %v", linkPath, err)
			return nil, false
		}
		resolvedRoot, err := filepath.EvalSymlinks(root)
		if err != nil {
			resolvedRoot = root
		}
		if !isPathContained(target, resolvedRoot) {
			DebugLog(DebugWalk, "skipping symlink %s pointing outside %s", linkPath, root)
			return nil, false
		}
	}

	info, err := os.Stat(linkPath)
	if err != nil {
		DebugLog(DebugWalk, "skipping broken symlink %s: %v", linkPath, err)
		return nil, false
	}
	return info, true
}

// statID returns the device and inode of path, following symlinks
func statID(path string) (fileID, bool) {
	var st unix.Stat_t
	if err := unix.Stat(path, &st); err != nil {
		return fileID{}, false
	}
	return fileID{dev: uint64(st.Dev), ino: uint64(st.Ino)}, true
}

// ValidateSymlinkMode validates that a symlink mode is supported
func ValidateSymlinkMode(mode string) error {
	switch strings.ToLower(mode) {
	case SymlinkNone, SymlinkContained, SymlinkAll:
		return nil
	default:
		return &ConfigurationError{
			Field:  "symlink mode",
			Value:  mode,
			Reason: fmt.Sprintf("supported: %s, %s, %s", SymlinkNone, SymlinkContained, SymlinkAll),
		}
	}
}
