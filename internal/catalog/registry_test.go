package catalog

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shopsight/shopsight-server/internal/domain"
	apperrors "github.com/shopsight/shopsight-server/internal/errors"
	"github.com/shopsight/shopsight-server/internal/remote"
	"github.com/shopsight/shopsight-server/internal/search"
	"github.com/shopsight/shopsight-server/internal/store/sqlite"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestRegistry(t *testing.T) (*Registry, *sqlite.Backend, *search.Manager) {
	t.Helper()
	dir := t.TempDir()

	backend, err := sqlite.New(dir)
	require.NoError(t, err)
	indexes, err := search.NewManager(dir)
	require.NoError(t, err)

	reg := NewRegistry(nil, backend, indexes, discardLogger())
	return reg, backend, indexes
}

func commitCatalog(t *testing.T, backend *sqlite.Backend, indexes *search.Manager, slug string, products []*domain.Product) {
	t.Helper()

	st, err := backend.CreateStaging(slug, "gen-test")
	require.NoError(t, err)
	require.NoError(t, st.Put(products))
	require.NoError(t, st.Close())
	require.NoError(t, backend.Commit(slug, "gen-test"))

	idx, err := indexes.CreateStaging(slug, "gen-test")
	require.NoError(t, err)
	require.NoError(t, idx.IndexProducts(products))
	require.NoError(t, idx.Close())
	require.NoError(t, indexes.Commit(slug, "gen-test"))
}

func TestAcquireUnknownCatalog(t *testing.T) {
	reg, _, _ := newTestRegistry(t)

	_, err := reg.Acquire("nope")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestAcquireOpensLazily(t *testing.T) {
	reg, backend, indexes := newTestRegistry(t)
	commitCatalog(t, backend, indexes, "acme", []*domain.Product{
		{ID: "p-1", Name: "Wrap Dress"},
	})

	lease, err := reg.Acquire("acme")
	require.NoError(t, err)
	defer lease.Release()

	n, err := lease.Gen.Store.Count()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.NotNil(t, lease.Gen.Index)
}

func TestSlugsSortedAfterRefresh(t *testing.T) {
	reg, backend, indexes := newTestRegistry(t)
	commitCatalog(t, backend, indexes, "loft", nil)
	commitCatalog(t, backend, indexes, "anntaylor", nil)

	require.NoError(t, reg.Refresh(context.Background()))
	assert.Equal(t, []string{"anntaylor", "loft"}, reg.Slugs())
}

func TestRefreshMergesRemote(t *testing.T) {
	dir := t.TempDir()
	backend, err := sqlite.New(dir)
	require.NoError(t, err)
	indexes, err := search.NewManager(dir)
	require.NoError(t, err)
	commitCatalog(t, backend, indexes, "local-only", nil)

	remoteRoot := t.TempDir()
	reg := NewRegistry(remote.NewDir(remoteRoot), backend, indexes, discardLogger())

	require.NoError(t, reg.Refresh(context.Background()))
	assert.Equal(t, []string{"local-only"}, reg.Slugs())
}

func TestSwapKeepsOldGenerationForActiveLeases(t *testing.T) {
	reg, backend, indexes := newTestRegistry(t)
	commitCatalog(t, backend, indexes, "acme", []*domain.Product{
		{ID: "p-1", Name: "Old Generation"},
	})

	lease, err := reg.Acquire("acme")
	require.NoError(t, err)

	// Stage, commit, and swap in a second generation while the lease
	// is still out.
	commitCatalog(t, backend, indexes, "acme", []*domain.Product{
		{ID: "p-1", Name: "New Generation"},
		{ID: "p-2", Name: "Extra"},
	})
	st, err := backend.Open("acme")
	require.NoError(t, err)
	idx, err := indexes.Open("acme")
	require.NoError(t, err)
	reg.Swap("acme", Generation{Store: st, Index: idx})

	// The old lease still reads the old generation.
	old, err := lease.Gen.Store.Get("p-1")
	require.NoError(t, err)
	assert.Equal(t, "Old Generation", old.Name)
	lease.Release()

	fresh, err := reg.Acquire("acme")
	require.NoError(t, err)
	defer fresh.Release()

	n, err := fresh.Gen.Store.Count()
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestReleaseIsIdempotent(t *testing.T) {
	reg, backend, indexes := newTestRegistry(t)
	commitCatalog(t, backend, indexes, "acme", []*domain.Product{{ID: "p-1"}})

	lease, err := reg.Acquire("acme")
	require.NoError(t, err)
	lease.Release()
	lease.Release()

	again, err := reg.Acquire("acme")
	require.NoError(t, err)
	defer again.Release()
}
