package domain

// Crawl is one historical crawl snapshot of a product page.
// Crawl history is served read-only by the API; records are deduplicated
// by timestamp during ingestion.
type Crawl struct {
	Catalog     string `json:"catalog"`
	ProductURL  string `json:"product_url"`
	CrawlURL    string `json:"crawl_url,omitempty"`
	PageContent string `json:"page_content,omitempty"`
	Timestamp   int64  `json:"crawl_timestamp"`
	Source      string `json:"crawl_source,omitempty"`
	APISource   string `json:"api_source,omitempty"`
}
