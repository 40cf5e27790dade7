package watcher

import (
	"errors"
	"time"
)

// ErrWatchFailure matches errors reported when a running watcher can no
// longer observe its directory.
var ErrWatchFailure = errors.New("watcher: watch failure")

// FolderKind selects how the dispatcher treats files from a folder.
type FolderKind int

const (
	// KindJobs folders hold JSON job descriptors.
	KindJobs FolderKind = iota
	// KindGeometryImport folders hold geometry files to import directly.
	KindGeometryImport
)

func (k FolderKind) String() string {
	switch k {
	case KindJobs:
		return "jobs"
	case KindGeometryImport:
		return "geometry-import"
	default:
		return "unknown"
	}
}

// Folder is a watched directory, its file pattern and the kind of work its
// files represent. It is immutable once built.
type Folder struct {
	Dir     string
	Pattern string
	Kind    FolderKind
}

// EventKind is the normalized notification type.
type EventKind int

const (
	Created EventKind = iota
	Modified
	Renamed
)

func (k EventKind) String() string {
	switch k {
	case Created:
		return "created"
	case Modified:
		return "modified"
	case Renamed:
		return "renamed"
	default:
		return "unknown"
	}
}

// RawFileEvent is one OS notification for a matching file.
type RawFileEvent struct {
	Path       string
	Kind       EventKind
	ObservedAt time.Time
}
