// Package remote abstracts the object storage that holds catalog snapshot
// exports. Catalogs live under customer/catalog=slug/snapshot=TS/ prefixes;
// only the newest snapshot of a catalog is served to the loader.
package remote

import (
	"context"
	"io"
	"regexp"
)

// Object describes one remote catalog file.
type Object struct {
	// Name is the full object path inside the store.
	Name string
	// Size in bytes, used for skip-if-unchanged downloads.
	Size int64
	// Snapshot is the snapshot label parsed from the path, empty when the
	// object is not part of a snapshot.
	Snapshot string
}

// ObjectStore lists and fetches catalog files. Implementations translate
// their transport failures to UPSTREAM_UNAVAILABLE domain errors.
type ObjectStore interface {
	// ListCatalogs returns the catalog slugs available in the store.
	ListCatalogs(ctx context.Context) ([]string, error)
	// ListObjects returns all objects of one catalog.
	ListObjects(ctx context.Context, catalog string) ([]Object, error)
	// Fetch opens one object for reading. The caller closes the reader.
	Fetch(ctx context.Context, name string) (io.ReadCloser, error)
}

var snapshotRE = regexp.MustCompile(`snapshot=(\d{4}-\d{2}-\d{2}-\d{2}-\d{2}-\d{2})`)

// SnapshotOf extracts the snapshot label from an object path, or "".
func SnapshotOf(name string) string {
	m := snapshotRE.FindStringSubmatch(name)
	if m == nil {
		return ""
	}
	return m[1]
}

// LatestSnapshot filters objects down to the newest snapshot generation.
// Snapshot labels sort lexically by timestamp. Objects without a snapshot
// label are dropped when any snapshot exists; when none do, all objects
// pass through unchanged.
func LatestSnapshot(objects []Object) []Object {
	latest := ""
	for _, o := range objects {
		if o.Snapshot > latest {
			latest = o.Snapshot
		}
	}
	if latest == "" {
		return objects
	}
	out := make([]Object, 0, len(objects))
	for _, o := range objects {
		if o.Snapshot == latest {
			out = append(out, o)
		}
	}
	return out
}
