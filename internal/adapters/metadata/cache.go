package metadata

import (
	"context"
	"fmt"
	"log/slog"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/jobrunner/s2tile/internal/domain"
	"github.com/jobrunner/s2tile/internal/ports/output"
)

// DefaultCacheSize is the default number of parsed documents kept.
const DefaultCacheSize = 128

// DocumentCache memoizes parsed documents by path with LRU eviction.
// Concurrent misses for one path share a single parse. Failed parses are
// not cached and are retried on the next call.
type DocumentCache struct {
	parser  *Parser
	docs    *lru.Cache[string, *domain.MetadataDocument]
	sf      singleflight.Group
	metrics output.MetricsCollector
	logger  *slog.Logger
}

// NewDocumentCache creates a cache holding at most size documents.
func NewDocumentCache(parser *Parser, size int, metrics output.MetricsCollector, logger *slog.Logger) (*DocumentCache, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	if metrics == nil {
		metrics = &output.NoOpMetrics{}
	}

	c := &DocumentCache{
		parser:  parser,
		metrics: metrics,
		logger:  logger,
	}

	docs, err := lru.NewWithEvict(size, func(path string, _ *domain.MetadataDocument) {
		c.logger.Debug("evicted metadata document", "path", path)
	})
	if err != nil {
		return nil, fmt.Errorf("creating document cache: %w", err)
	}
	c.docs = docs

	return c, nil
}

// Get returns the parsed document for path, parsing it on a miss.
func (c *DocumentCache) Get(ctx context.Context, path string) (*domain.MetadataDocument, error) {
	if doc, ok := c.docs.Get(path); ok {
		c.metrics.IncCacheLookup(true)
		return doc, nil
	}
	c.metrics.IncCacheLookup(false)

	v, err, _ := c.sf.Do(path, func() (any, error) {
		if doc, ok := c.docs.Peek(path); ok {
			return doc, nil
		}

		doc, err := c.parser.Parse(ctx, path)
		if err != nil {
			c.logger.Warn("failed to parse metadata document", "path", path, "error", err)
			return nil, err
		}

		c.docs.Add(path, doc)
		c.metrics.SetCacheSize(c.docs.Len())
		c.logger.Debug("parsed metadata document", "path", path)
		return doc, nil
	})
	if err != nil {
		return nil, err
	}

	return v.(*domain.MetadataDocument), nil
}

// Invalidate drops the cached document for path.
func (c *DocumentCache) Invalidate(path string) {
	if c.docs.Remove(path) {
		c.logger.Debug("invalidated metadata document", "path", path)
	}
	c.metrics.SetCacheSize(c.docs.Len())
}

// Purge drops all cached documents.
func (c *DocumentCache) Purge() {
	c.docs.Purge()
	c.metrics.SetCacheSize(0)
}

// Len returns the number of cached documents.
func (c *DocumentCache) Len() int {
	return c.docs.Len()
}

// Contains reports whether path is cached without updating recency.
func (c *DocumentCache) Contains(path string) bool {
	return c.docs.Contains(path)
}
