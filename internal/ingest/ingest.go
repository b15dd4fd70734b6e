// Package ingest enumerates invoice documents on the local filesystem.
package ingest

// Document identifies one input file present at enumeration time.
type Document struct {
	Path    string // absolute path
	RelPath string // path relative to the enumeration root
	Ext     string // normalized extension, no dot
	HashHex string // sha256 of content
	Size    int64
	Err     string // non-empty when this entry failed to enumerate
}

// DirStats aggregates one enumeration pass.
type DirStats struct {
	Scanned uint32
	Matched uint32
	Hashed  uint32
	Failed  uint32
}
