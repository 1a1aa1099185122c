package openspec

import (
	"path/filepath"
	"strings"
)

// Entity names the slice of the model affected by a filesystem change.
type Entity string

// Affected entities.
const (
	EntityProject Entity = "project"
	EntitySpecs   Entity = "specs"
	EntityChanges Entity = "changes"
	EntityAll     Entity = "all"
)

// EventType is the kind of filesystem change observed.
type EventType string

// Filesystem event types.
const (
	EventAdd       EventType = "add"
	EventChange    EventType = "change"
	EventRemove    EventType = "remove"
	EventAddDir    EventType = "addDir"
	EventRemoveDir EventType = "removeDir"
)

// IsDir reports whether the event refers to a directory.
func (t EventType) IsDir() bool {
	return t == EventAddDir || t == EventRemoveDir
}

// ChangeEvent is a classified filesystem event.
type ChangeEvent struct {
	Type           EventType `json:"eventType"`
	Path           string    `json:"path"`
	AffectedEntity Entity    `json:"affectedEntity"`
	EntityID       string    `json:"entityId,omitempty"`
}

// Classify labels a filesystem path with the entity it affects.
//
// Files must be .md or .html. Under specs/ the second path segment is the
// entity id; under changes/ it is too, except inside archive/ where the
// third segment is used. A file sitting directly in specs/ or archive/ is
// its own id. Files elsewhere affect the project. Directories
// are only classified under specs/ or changes/. Paths outside root are
// rejected.
func Classify(root, path string, isDir bool) (ChangeEvent, bool) {
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return ChangeEvent{}, false
	}

	if !isDir {
		if _, ok := changeFileType(rel); !ok {
			return ChangeEvent{}, false
		}
	}

	parts := strings.Split(filepath.ToSlash(rel), "/")
	segment := func(i int) string {
		if i >= len(parts) {
			return ""
		}
		return parts[i]
	}

	ev := ChangeEvent{Path: path}
	switch parts[0] {
	case SpecsDir:
		ev.AffectedEntity = EntitySpecs
		ev.EntityID = segment(1)
	case ChangesDir:
		ev.AffectedEntity = EntityChanges
		if segment(1) == ArchiveDir {
			ev.EntityID = segment(2)
		} else {
			ev.EntityID = segment(1)
		}
	default:
		if isDir {
			return ChangeEvent{}, false
		}
		ev.AffectedEntity = EntityProject
	}
	return ev, true
}

// ClassifyEvent classifies a watcher event, using its type to tell files
// from directories.
func ClassifyEvent(root string, typ EventType, path string) (ChangeEvent, bool) {
	ev, ok := Classify(root, path, typ.IsDir())
	if !ok {
		return ChangeEvent{}, false
	}
	ev.Type = typ
	return ev, true
}
