package sqlite

import (
	"testing"

	"github.com/shopsight/shopsight-server/internal/domain"
	apperrors "github.com/shopsight/shopsight-server/internal/errors"
	"github.com/shopsight/shopsight-server/internal/store"
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
	price := 49.99
	return []*domain.Product{
		{ID: "p-1", Name: "Wrap Dress", URL: "https://example.com/p/1", CurrentPrice: &price},
		{ID: "p-2", Name: "Silk Blouse", URL: "https://example.com/p/2"},
		{ID: "p-3", Name: "Ankle Boot", URL: "https://example.com/p/3"},
	}
}

func TestCapabilities(t *testing.T) {
	b := newTestBackend(t)
	caps := b.Capabilities()
	if !caps.Aggregation || !caps.CrawlHistory {
		t.Errorf("Capabilities() = %+v, want aggregation and crawl history", caps)
	}
}

func TestOpenUnloadedCatalog(t *testing.T) {
	b := newTestBackend(t)
	_, err := b.Open("nope")
	if !apperrors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("Open() error = %v, want NOT_FOUND", err)
	}
}

func TestPutAndGet(t *testing.T) {
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
}

func TestListPreservesLoadOrder(t *testing.T) {
	b := newTestBackend(t)
	c, err := b.CreateStaging("acme", "gen1")
	if err != nil {
		t.Fatalf("CreateStaging() error = %v", err)
	}
	defer c.Close()

	if err := c.Put(sampleProducts()); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	page, err := c.List(2, 1)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(page) != 2 || page[0].ID != "p-2" || page[1].ID != "p-3" {
		t.Errorf("List(2, 1) = %v, want [p-2 p-3]", ids(page))
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
		t.Errorf("first product = %s %q, want updated p-1", page[0].ID, page[0].Name)
	}
}

func TestGetMany(t *testing.T) {
	b := newTestBackend(t)
	c, err := b.CreateStaging("acme", "gen1")
	if err != nil {
		t.Fatalf("CreateStaging() error = %v", err)
	}
	defer c.Close()

	if err := c.Put(sampleProducts()); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	got, err := c.GetMany([]string{"p-3", "p-404", "p-1"})
	if err != nil {
		t.Fatalf("GetMany() error = %v", err)
	}
	if len(got) != 2 || got[0].ID != "p-3" || got[1].ID != "p-1" {
		t.Errorf("GetMany() = %v, want [p-3 p-1]", ids(got))
	}
}

func TestForEach(t *testing.T) {
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
}

func TestCommitAndList(t *testing.T) {
	b := newTestBackend(t)

	c, err := b.CreateStaging("acme", "gen1")
	if err != nil {
		t.Fatalf("CreateStaging() error = %v", err)
	}
	if err := c.Put(sampleProducts()); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := b.Commit("acme", "gen1"); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}

	slugs, err := b.List()
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(slugs) != 1 || slugs[0] != "acme" {
		t.Errorf("List() = %v, want [acme]", slugs)
	}

	committed, err := b.Open("acme")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer committed.Close()

	n, err := committed.Count()
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if n != 3 {
		t.Errorf("Count() = %d, want 3", n)
	}
}

func TestDiscardStaging(t *testing.T) {
	b := newTestBackend(t)
	c, err := b.CreateStaging("acme", "gen1")
	if err != nil {
		t.Fatalf("CreateStaging() error = %v", err)
	}
	c.Close()

	if err := b.DiscardStaging("acme", "gen1"); err != nil {
		t.Fatalf("DiscardStaging() error = %v", err)
	}
	slugs, err := b.List()
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(slugs) != 0 {
		t.Errorf("List() = %v, want empty", slugs)
	}
}

func TestCrawlsDedupeByTimestamp(t *testing.T) {
	b := newTestBackend(t)
	c, err := b.CreateStaging("acme", "gen1")
	if err != nil {
		t.Fatalf("CreateStaging() error = %v", err)
	}
	defer c.Close()

	crawls := []domain.Crawl{
		{Catalog: "acme", ProductURL: "https://example.com/p/1", Timestamp: 100, Source: "crawler"},
		{Catalog: "acme", ProductURL: "https://example.com/p/1", Timestamp: 200, Source: "crawler"},
		{Catalog: "acme", ProductURL: "https://example.com/p/1", Timestamp: 100, Source: "resent"},
	}
	if err := c.PutCrawls(crawls); err != nil {
		t.Fatalf("PutCrawls() error = %v", err)
	}
	// A resend of the whole batch must not duplicate anything either.
	if err := c.PutCrawls(crawls); err != nil {
		t.Fatalf("PutCrawls() error = %v", err)
	}

	got, err := c.CrawlsByProductURL("https://example.com/p/1")
	if err != nil {
		t.Fatalf("CrawlsByProductURL() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d crawls, want 2", len(got))
	}
	if got[0].Timestamp != 200 || got[1].Timestamp != 100 {
		t.Errorf("crawl order = [%d %d], want newest first", got[0].Timestamp, got[1].Timestamp)
	}
	if got[1].Source != "crawler" {
		t.Errorf("duplicate timestamp overwrote original record: source = %q", got[1].Source)
	}
}

func TestQuerierExposed(t *testing.T) {
	b := newTestBackend(t)
	c, err := b.CreateStaging("acme", "gen1")
	if err != nil {
		t.Fatalf("CreateStaging() error = %v", err)
	}
	defer c.Close()

	q, ok := any(c).(store.AggregateQuerier)
	if !ok {
		t.Fatal("sqlite catalog does not implement AggregateQuerier")
	}
	if q.Querier() == nil {
		t.Error("Querier() returned nil")
	}
}

func ids(products []*domain.Product) []string {
	out := make([]string, len(products))
	for i, p := range products {
		out[i] = p.ID
	}
	return out
}
