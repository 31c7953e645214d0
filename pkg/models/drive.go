package models

import "time"

// FileState is the persisted ETag bookkeeping for one object-store path,
// private to a single drive monitor instance.
type FileState struct {
	Path    string
	ETag    string
	Updated time.Time
}

// FileStateIndex is the per-bot map<path, FileState> persisted to
// <work_root>/<bot_id>/file_states.json between monitor runs.
type FileStateIndex struct {
	BotID string
	Files map[string]FileState
}

// Changed reports whether path's stored ETag differs from newETag (or the
// path is new).
func (idx FileStateIndex) Changed(path, newETag string) bool {
	fs, ok := idx.Files[path]
	return !ok || fs.ETag != newETag
}

// DriveObject is one listed entry from the object store.
type DriveObject struct {
	Path string
	ETag string
	Size int64
}
