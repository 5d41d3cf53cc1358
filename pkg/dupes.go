package sparsefp

import (
	"fmt"
	"strings"

	zcsl "github.com/mattkeenan/zerocopyskiplist"
)

// DuplicateGroup is a set of files sharing one fingerprint
type DuplicateGroup struct {
	Fingerprint string   `json:"fingerprint"`
	Files       []string `json:"files"`
	Count       int      `json:"count"`
}

// dupeEntry is one tracked file; key is "<fingerprint>\x00<sequence>"
type dupeEntry struct {
	key  string
	path string
}

// DuplicateTracker collects fingerprint records and groups files whose
// fingerprints are equal. Records are kept in a skiplist ordered by
// fingerprint, then by arrival, so grouping is a single ordered pass.
// Sentinel fingerprints are never grouped.
type DuplicateTracker struct {
	skiplist *zcsl.ZeroCopySkiplist[dupeEntry, string, string]
	seq      uint64
}

// NewDuplicateTracker creates an empty tracker
func NewDuplicateTracker() *DuplicateTracker {
	getKey := func(e *dupeEntry) string {
		return e.key
	}
	getSize := func(e *dupeEntry) int {
		return len(e.key) + len(e.path)
	}
	return &DuplicateTracker{
		skiplist: zcsl.MakeZeroCopySkiplist[dupeEntry, string, string](16, getKey, getSize, strings.Compare),
	}
}

// Add records one file. Sentinel fingerprints are ignored.
func (dt *DuplicateTracker) Add(rec FingerprintRecord) {
	if rec.Fingerprint.IsSentinel() || len(rec.Fingerprint) == 0 {
		return
	}
	fp := rec.Fingerprint.String()
	dt.seq++
	entry := &dupeEntry{
		key:  fmt.Sprintf("%s\x00%020d", fp, dt.seq),
		path: rec.Path,
	}
	dt.skiplist.Insert(entry, fp)
}

// Length returns the number of tracked files
func (dt *DuplicateTracker) Length() int {
	return dt.skiplist.Length()
}

// Groups returns every fingerprint shared by two or more files, ordered by
// fingerprint, with files in the order they were added
func (dt *DuplicateTracker) Groups() []DuplicateGroup {
	var result []DuplicateGroup
	var current *DuplicateGroup

	flush := func() {
		if current != nil && current.Count > 1 {
			result = append(result, *current)
		}
		current = nil
	}

	for node := dt.skiplist.First(); node != nil; node = node.Next() {
		fp := node.Context()
		entry := node.Item()
		if current == nil || current.Fingerprint != fp {
			flush()
			current = &DuplicateGroup{Fingerprint: fp}
		}
		current.Files = append(current.Files, entry.path)
		current.Count++
	}
	flush()

	return result
}

// WriteDuplicateGroups writes "# Found N duplicate groups" followed by one
// "<group>\t<path>" line per file, groups numbered from 1
func WriteDuplicateGroups(rw *RecordWriter, groups []DuplicateGroup) error {
	if err := rw.WriteLine(fmt.Sprintf("# Found %d duplicate groups", len(groups))); err != nil {
		return err
	}
	for i, group := range groups {
		for _, file := range group.Files {
			if err := rw.WriteLine(fmt.Sprintf("%d\t%s", i+1, file)); err != nil {
				return err
			}
		}
	}
	return rw.Flush()
}
