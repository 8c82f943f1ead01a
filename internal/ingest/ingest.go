// Package ingest collects invoice PDFs from the local filesystem.
package ingest

// Result is the outcome for one matched file.
type Result struct {
	Path         string
	Name         string
	Size         int64
	HashHex      string
	Deduplicated bool // same content as an earlier file in the walk
	Err          string
}

// DirStats summarizes a directory read.
type DirStats struct {
	Scanned      uint32
	Matched      uint32
	Succeeded    uint32
	Deduplicated uint32
	Failed       uint32
	Bytes        int64
}
