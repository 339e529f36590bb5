package remote

import (
	"context"
	"fmt"
	"io"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	apperrors "github.com/shopsight/shopsight-server/internal/errors"
)

// GCS reads catalog exports from a Google Cloud Storage bucket laid out
// as <customer>/catalog=<slug>/snapshot=<ts>/<file>.
type GCS struct {
	client   *storage.Client
	bucket   string
	customer string
}

// NewGCS connects to the bucket. credentialsFile may be empty, in which
// case ambient credentials are used.
func NewGCS(ctx context.Context, bucket, customer, credentialsFile string) (*GCS, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, apperrors.Upstreamf("connecting to object storage: %v", err)
	}
	return &GCS{client: client, bucket: bucket, customer: customer}, nil
}

// ListCatalogs lists catalog=<slug> prefixes under the customer namespace.
func (g *GCS) ListCatalogs(ctx context.Context) ([]string, error) {
	it := g.client.Bucket(g.bucket).Objects(ctx, &storage.Query{
		Prefix:    g.customer + "/",
		Delimiter: "/",
	})

	var slugs []string
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, apperrors.Upstreamf("listing catalogs in gs://%s/%s: %v", g.bucket, g.customer, err)
		}
		if attrs.Prefix == "" {
			continue
		}
		// Prefix looks like "customer/catalog=slug/".
		name := strings.TrimSuffix(attrs.Prefix, "/")
		name = name[strings.LastIndex(name, "/")+1:]
		if slug, ok := strings.CutPrefix(name, "catalog="); ok && slug != "" {
			slugs = append(slugs, slug)
		}
	}
	return slugs, nil
}

// ListObjects lists every object of one catalog.
func (g *GCS) ListObjects(ctx context.Context, catalog string) ([]Object, error) {
	prefix := fmt.Sprintf("%s/catalog=%s/", g.customer, catalog)
	it := g.client.Bucket(g.bucket).Objects(ctx, &storage.Query{Prefix: prefix})

	var objects []Object
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, apperrors.Upstreamf("listing gs://%s/%s: %v", g.bucket, prefix, err)
		}
		if attrs.Name == "" {
			continue
		}
		objects = append(objects, Object{
			Name:     attrs.Name,
			Size:     attrs.Size,
			Snapshot: SnapshotOf(attrs.Name),
		})
	}
	return objects, nil
}

// Fetch opens one object for reading.
func (g *GCS) Fetch(ctx context.Context, name string) (io.ReadCloser, error) {
	r, err := g.client.Bucket(g.bucket).Object(name).NewReader(ctx)
	if err != nil {
		return nil, apperrors.Upstreamf("fetching gs://%s/%s: %v", g.bucket, name, err)
	}
	return r, nil
}

// Close releases the underlying client.
func (g *GCS) Close() error {
	return g.client.Close()
}
