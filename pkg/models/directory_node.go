package models

import "time"

// DirectoryNode is one row of the directory-tree ETag tracker: the last
// known snapshot of a single directory under a source root, for one owner.
type DirectoryNode struct {
	Owner         string
	Path          string // logical path, e.g. "/Photos/2024"
	DirectoryETag string
	FileCount     int
	TotalSize     int64
	UpdatedAt     time.Time
}

// Key returns the (owner, path) uniqueness key DirectoryNode rows are
// upserted on.
func (d DirectoryNode) Key() (string, string) {
	return d.Owner, d.Path
}
