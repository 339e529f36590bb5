package badger

import (
	"testing"

	"github.com/shopsight/shopsight-server/internal/domain"
	apperrors "github.com/shopsight/shopsight-server/internal/errors"
)

func newTestBackend(t *testing.T) *Backend {
	t.Helper()
	b, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return b
}

func sampleProducts() []*domain.Product {
	return []*domain.Product{
		{ID: "p-1", Name: "Wrap Dress", URL: "https://example.com/p/1"},
		{ID: "p-2", Name: "Silk Blouse", URL: "https://example.com/p/2"},
		{ID: "p-3", Name: "Ankle Boot", URL: "https://example.com/p/3"},
	}
}

func TestCapabilities(t *testing.T) {
	b := newTestBackend(t)
	caps := b.Capabilities()
	if caps.Aggregation || caps.CrawlHistory {
		t.Errorf("Capabilities() = %+v, want none", caps)
	}
}

func TestPutGetListOrder(t *testing.T) {
	b := newTestBackend(t)
	c, err := b.CreateStaging("acme", "gen1")
	if err != nil {
		t.Fatalf("CreateStaging() error = %v", err)
	}
	defer c.Close()

	if err := c.Put(sampleProducts()); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	got, err := c.Get("p-2")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Name != "Silk Blouse" {
		t.Errorf("Get(p-2).Name = %q, want %q", got.Name, "Silk Blouse")
	}
	if _, err := c.Get("p-404"); !apperrors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("Get(p-404) error = %v, want NOT_FOUND", err)
	}

	page, err := c.List(2, 1)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(page) != 2 || page[0].ID != "p-2" || page[1].ID != "p-3" {
		t.Errorf("List(2, 1) = %d products, want [p-2 p-3]", len(page))
	}
}

func TestPutUpsertsByID(t *testing.T) {
	b := newTestBackend(t)
	c, err := b.CreateStaging("acme", "gen1")
	if err != nil {
		t.Fatalf("CreateStaging() error = %v", err)
	}
	defer c.Close()

	if err := c.Put(sampleProducts()); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if err := c.Put([]*domain.Product{{ID: "p-1", Name: "Wrap Dress v2"}}); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	n, err := c.Count()
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if n != 3 {
		t.Errorf("Count() = %d, want 3", n)
	}

	page, err := c.List(1, 0)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if page[0].ID != "p-1" || page[0].Name != "Wrap Dress v2" {
		t.Errorf("first product = %s %q, want updated p-1 in place", page[0].ID, page[0].Name)
	}
}

func TestForEachAndGetMany(t *testing.T) {
	b := newTestBackend(t)
	c, err := b.CreateStaging("acme", "gen1")
	if err != nil {
		t.Fatalf("CreateStaging() error = %v", err)
	}
	defer c.Close()

	if err := c.Put(sampleProducts()); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	var seen []string
	err = c.ForEach(func(p *domain.Product) error {
		seen = append(seen, p.ID)
		return nil
	})
	if err != nil {
		t.Fatalf("ForEach() error = %v", err)
	}
	if len(seen) != 3 || seen[0] != "p-1" || seen[2] != "p-3" {
		t.Errorf("ForEach order = %v, want [p-1 p-2 p-3]", seen)
	}

	got, err := c.GetMany([]string{"p-3", "p-404", "p-1"})
	if err != nil {
		t.Fatalf("GetMany() error = %v", err)
	}
	if len(got) != 2 || got[0].ID != "p-3" || got[1].ID != "p-1" {
		t.Errorf("GetMany() returned %d products, want [p-3 p-1]", len(got))
	}
}

func TestCrawlsUnsupported(t *testing.T) {
	b := newTestBackend(t)
	c, err := b.CreateStaging("acme", "gen1")
	if err != nil {
		t.Fatalf("CreateStaging() error = %v", err)
	}
	defer c.Close()

	if err := c.PutCrawls([]domain.Crawl{{Timestamp: 1}}); !apperrors.Is(err, apperrors.ErrBackendUnsupported) {
		t.Errorf("PutCrawls() error = %v, want BACKEND_UNSUPPORTED", err)
	}
	if _, err := c.CrawlsByProductURL("x"); !apperrors.Is(err, apperrors.ErrBackendUnsupported) {
		t.Errorf("CrawlsByProductURL() error = %v, want BACKEND_UNSUPPORTED", err)
	}
}

func TestCommitReplacesCatalog(t *testing.T) {
	b := newTestBackend(t)

	first, err := b.CreateStaging("acme", "gen1")
	if err != nil {
		t.Fatalf("CreateStaging() error = %v", err)
	}
	if err := first.Put(sampleProducts()); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	first.Close()
	if err := b.Commit("acme", "gen1"); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}

	second, err := b.CreateStaging("acme", "gen2")
	if err != nil {
		t.Fatalf("CreateStaging() error = %v", err)
	}
	if err := second.Put(sampleProducts()[:1]); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	second.Close()
	if err := b.Commit("acme", "gen2"); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}

	slugs, err := b.List()
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(slugs) != 1 || slugs[0] != "acme" {
		t.Errorf("List() = %v, want [acme]", slugs)
	}

	c, err := b.Open("acme")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer c.Close()
	n, err := c.Count()
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if n != 1 {
		t.Errorf("Count() = %d, want 1 after second commit", n)
	}
}
