package ingest

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/parquet-go/parquet-go"

	"github.com/shopsight/shopsight-server/internal/domain"
)

// productRow is the parquet layout of catalog exports: the canonical
// record travels as a JSON string column.
type productRow struct {
	ExtractedProduct string `parquet:"extracted_product"`
	Catalog          string `parquet:"catalog"`
	ProductGroupID   string `parquet:"product_group_id"`
}

// crawlRow is the parquet layout of crawl history exports.
type crawlRow struct {
	Catalog        string `parquet:"catalog"`
	ProductURL     string `parquet:"product_url"`
	CrawlURL       string `parquet:"crawl_url"`
	PageContent    string `parquet:"page_content"`
	CrawlTimestamp int64  `parquet:"crawl_timestamp"`
	CrawlSource    string `parquet:"crawl_source"`
	APISource      string `parquet:"api_source"`
}

// isCrawlFile reports whether an object holds crawl history rather
// than products.
func isCrawlFile(name string) bool {
	return strings.Contains(filepath.Base(name), "_crawls")
}

// forEachRawProduct streams the raw product JSON documents of one
// file. Parquet files carry the document in the extracted_product
// column; JSONL files carry one document per line.
func forEachRawProduct(path string, fn func(raw []byte) error) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".parquet":
		return forEachParquetProduct(path, fn)
	case ".jsonl", ".json":
		return forEachJSONLProduct(path, fn)
	default:
		return fmt.Errorf("unsupported catalog file format %q", filepath.Ext(path))
	}
}

func forEachParquetProduct(path string, fn func(raw []byte) error) error {
	file, err := os.Open(path) //#nosec G304 -- Paths come from our own download cache
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return fmt.Errorf("stat %s: %w", path, err)
	}

	pf, err := parquet.OpenFile(file, info.Size())
	if err != nil {
		return fmt.Errorf("opening parquet %s: %w", path, err)
	}

	reader := parquet.NewGenericReader[productRow](pf)
	defer reader.Close()

	rows := make([]productRow, 128)
	for {
		n, readErr := reader.Read(rows)
		for i := range n {
			if err := fn([]byte(rows[i].ExtractedProduct)); err != nil {
				return err
			}
		}
		if readErr != nil {
			break
		}
	}
	return nil
}

func forEachJSONLProduct(path string, fn func(raw []byte) error) error {
	file, err := os.Open(path) //#nosec G304 -- Paths come from our own download cache
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	// Product records with embedded page content can be large.
	const maxCapacity = 10 * 1024 * 1024
	scanner.Buffer(make([]byte, maxCapacity), maxCapacity)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		raw := make([]byte, len(line))
		copy(raw, line)
		if err := fn(raw); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	return nil
}

// readCrawls loads every crawl record of one parquet file.
func readCrawls(path string) ([]domain.Crawl, error) {
	file, err := os.Open(path) //#nosec G304 -- Paths come from our own download cache
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}

	pf, err := parquet.OpenFile(file, info.Size())
	if err != nil {
		return nil, fmt.Errorf("opening parquet %s: %w", path, err)
	}

	reader := parquet.NewGenericReader[crawlRow](pf)
	defer reader.Close()

	var out []domain.Crawl
	rows := make([]crawlRow, 128)
	for {
		n, readErr := reader.Read(rows)
		for i := range n {
			r := rows[i]
			out = append(out, domain.Crawl{
				Catalog:     r.Catalog,
				ProductURL:  r.ProductURL,
				CrawlURL:    r.CrawlURL,
				PageContent: r.PageContent,
				Timestamp:   r.CrawlTimestamp,
				Source:      r.CrawlSource,
				APISource:   r.APISource,
			})
		}
		if readErr != nil {
			break
		}
	}
	return out, nil
}
