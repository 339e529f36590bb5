package remote

import (
	"context"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	apperrors "github.com/shopsight/shopsight-server/internal/errors"
)

// Dir serves catalog files from a local directory tree mirroring the
// bucket layout: <root>/catalog=<slug>/... . Plain <root>/<slug>/...
// directories are accepted too. Used for offline development and tests.
type Dir struct {
	root string
}

// NewDir creates a directory-backed store.
func NewDir(root string) *Dir {
	return &Dir{root: root}
}

// ListCatalogs lists the catalog directories under the root.
func (d *Dir) ListCatalogs(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(d.root)
	if err != nil {
		return nil, apperrors.Upstreamf("listing catalog directory %s: %v", d.root, err)
	}

	var slugs []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		name := e.Name()
		if slug, ok := strings.CutPrefix(name, "catalog="); ok {
			name = slug
		}
		if name != "" {
			slugs = append(slugs, name)
		}
	}
	sort.Strings(slugs)
	return slugs, nil
}

// ListObjects walks one catalog directory.
func (d *Dir) ListObjects(_ context.Context, catalog string) ([]Object, error) {
	base := filepath.Join(d.root, "catalog="+catalog)
	if _, err := os.Stat(base); err != nil {
		base = filepath.Join(d.root, catalog)
	}

	var objects []Object
	err := filepath.WalkDir(base, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() {
			return nil
		}
		info, err := entry.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(d.root, path)
		if err != nil {
			return err
		}
		name := filepath.ToSlash(rel)
		objects = append(objects, Object{
			Name:     name,
			Size:     info.Size(),
			Snapshot: SnapshotOf(name),
		})
		return nil
	})
	if err != nil {
		return nil, apperrors.Upstreamf("walking catalog %s: %v", catalog, err)
	}

	sort.Slice(objects, func(i, j int) bool { return objects[i].Name < objects[j].Name })
	return objects, nil
}

// Fetch opens one file relative to the root.
func (d *Dir) Fetch(_ context.Context, name string) (io.ReadCloser, error) {
	f, err := os.Open(filepath.Join(d.root, filepath.FromSlash(name))) //#nosec G304 -- Paths come from our own listing
	if err != nil {
		return nil, apperrors.Upstreamf("opening %s: %v", name, err)
	}
	return f, nil
}
