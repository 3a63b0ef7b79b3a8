package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/robertrittmuller/stagemaster-ai/internal/infra"
	"github.com/robertrittmuller/stagemaster-ai/internal/storage"
)

// Fetcher retrieves the raw bytes behind an image URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// HTTPFetcher downloads with a plain GET and fails on any non-2xx status.
type HTTPFetcher struct {
	client *http.Client
}

// NewHTTPFetcher wraps client; a nil client gets a 60 second timeout.
func NewHTTPFetcher(client *http.Client) *HTTPFetcher {
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	return &HTTPFetcher{client: client}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create download request: %w", err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("download %s: status %d", url, resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", url, err)
	}
	return data, nil
}

// StorageFetcher reads objects straight from the object store when a URL
// points at one of the store's own endpoints.
type StorageFetcher struct {
	store    storage.ObjectStore
	prefixes []string
}

// NewStorageFetcher matches URLs against prefixes such as "http://minio:9000/".
func NewStorageFetcher(store storage.ObjectStore, prefixes ...string) *StorageFetcher {
	clean := make([]string, 0, len(prefixes))
	for _, p := range prefixes {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if !strings.HasSuffix(p, "/") {
			p += "/"
		}
		clean = append(clean, p)
	}
	return &StorageFetcher{store: store, prefixes: clean}
}

// Resolve splits a storage URL into bucket and key. ok is false when the URL
// does not live under a known prefix or has no key part.
func (f *StorageFetcher) Resolve(url string) (bucket, key string, ok bool) {
	for _, prefix := range f.prefixes {
		if !strings.HasPrefix(url, prefix) {
			continue
		}
		parts := strings.SplitN(strings.TrimPrefix(url, prefix), "/", 2)
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			return "", "", false
		}
		return parts[0], parts[1], true
	}
	return "", "", false
}

func (f *StorageFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	bucket, key, ok := f.Resolve(url)
	if !ok {
		return nil, fmt.Errorf("%s is not a storage url", url)
	}
	return f.store.Read(ctx, bucket, key)
}

// Router picks the storage path for URLs under a storage endpoint and falls
// back to HTTP for everything else, including objects storage cannot return.
type Router struct {
	storage *StorageFetcher
	http    Fetcher
	logger  *infra.Logger
}

func NewRouter(storageFetcher *StorageFetcher, httpFetcher Fetcher, logger *infra.Logger) *Router {
	return &Router{storage: storageFetcher, http: httpFetcher, logger: infra.LoggerOrDiscard(logger)}
}

func (r *Router) Fetch(ctx context.Context, url string) ([]byte, error) {
	if r.storage != nil {
		if bucket, key, ok := r.storage.Resolve(url); ok {
			data, err := r.storage.store.Read(ctx, bucket, key)
			if err == nil {
				return data, nil
			}
			if errors.Is(err, storage.ErrNotFound) {
				r.logger.Warn().Str("bucket", bucket).Str("key", key).Msg("media: object missing from storage, fetching over http")
			} else {
				r.logger.Warn().Err(err).Str("bucket", bucket).Str("key", key).Msg("media: storage read failed, fetching over http")
			}
		}
	}
	if r.http == nil {
		return nil, fmt.Errorf("no http fetcher configured for %s", url)
	}
	return r.http.Fetch(ctx, url)
}

var (
	_ Fetcher = (*HTTPFetcher)(nil)
	_ Fetcher = (*StorageFetcher)(nil)
	_ Fetcher = (*Router)(nil)
)
