package ingest

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	apperrors "github.com/shopsight/shopsight-server/internal/errors"
	"github.com/shopsight/shopsight-server/internal/remote"
)

// localFile is one downloaded catalog object.
type localFile struct {
	path   string
	object remote.Object
}

// download fetches a snapshot's objects into the local cache,
// skipping objects already present with matching size. Fetches run
// with bounded concurrency; the first error wins.
func (l *Loader) download(ctx context.Context, objects []remote.Object) ([]localFile, error) {
	files := make([]localFile, len(objects))
	sem := make(chan struct{}, l.cfg.DownloadConcurrency)

	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error

	for i, obj := range objects {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			mu.Lock()
			failed := firstErr != nil
			mu.Unlock()
			if failed || ctx.Err() != nil {
				return
			}

			path, err := l.fetchObject(ctx, obj)
			if err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
				return
			}
			files[i] = localFile{path: path, object: obj}
		}()
	}
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return files, nil
}

// fetchObject downloads one object with bounded retries, writing to a
// temp file and renaming so a partial download never looks cached.
func (l *Loader) fetchObject(ctx context.Context, obj remote.Object) (string, error) {
	path := filepath.Join(l.cacheDir, filepath.FromSlash(obj.Name))

	if l.cfg.SkipUnchanged {
		if info, err := os.Stat(path); err == nil && info.Size() == obj.Size {
			l.logger.Debug("object unchanged, skipping download", "object", obj.Name)
			return path, nil
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("creating cache directory: %w", err)
	}

	err := l.withRetry(ctx, "fetch "+obj.Name, func() error {
		rc, err := l.remote.Fetch(ctx, obj.Name)
		if err != nil {
			return err
		}
		defer rc.Close()

		tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
		if err != nil {
			return fmt.Errorf("creating temp file: %w", err)
		}
		defer os.Remove(tmp.Name())

		if _, err := io.Copy(tmp, rc); err != nil {
			tmp.Close()
			return apperrors.Upstreamf("downloading %s: %v", obj.Name, err)
		}
		if err := tmp.Close(); err != nil {
			return fmt.Errorf("closing temp file: %w", err)
		}
		return os.Rename(tmp.Name(), path)
	})
	if err != nil {
		return "", err
	}
	return path, nil
}

// withRetry retries fn on upstream failures with exponential backoff,
// up to the configured attempt limit. Other errors fail immediately.
func (l *Loader) withRetry(ctx context.Context, op string, fn func() error) error {
	backoff := 500 * time.Millisecond

	var err error
	for attempt := 1; ; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if !apperrors.Is(err, apperrors.ErrUpstream) || attempt >= l.cfg.MaxRetries {
			return err
		}

		l.logger.Warn("transient failure, retrying",
			"op", op,
			"attempt", attempt,
			"backoff", backoff,
			"error", err,
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
}
