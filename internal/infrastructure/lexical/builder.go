package lexical

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cosyhq/regcheck/internal/core/domain"
	"github.com/cosyhq/regcheck/internal/core/ports"
)

const scrollBatchSize = 500

type partitionKey struct {
	market string
	domain string
}

// Builder builds term-ranking retrievers by scrolling a full partition out of
// the document store, and caches one retriever per (market, domain). The scan
// is expensive, so a cached index is reused for the life of the process.
type Builder struct {
	store  ports.DocumentStore
	logger *slog.Logger

	mu    sync.Mutex
	cache map[partitionKey]*BM25Retriever
}

func NewBuilder(store ports.DocumentStore, logger *slog.Logger) *Builder {
	return &Builder{
		store:  store,
		logger: logger,
		cache:  make(map[partitionKey]*BM25Retriever),
	}
}

func (b *Builder) Retriever(ctx context.Context, market, docDomain string) (ports.Retriever, error) {
	key := partitionKey{market: market, domain: docDomain}

	b.mu.Lock()
	defer b.mu.Unlock()

	if cached, ok := b.cache[key]; ok {
		return cached, nil
	}

	started := time.Now()
	docs, err := b.scanPartition(ctx, market, docDomain)
	if err != nil {
		return nil, fmt.Errorf("build lexical index %s/%s: %w", market, docDomain, err)
	}

	retriever := NewBM25Retriever(docs)
	b.cache[key] = retriever
	b.logger.Info("lexical_index_built",
		"market", market,
		"domain", docDomain,
		"documents", len(docs),
		"duration_ms", time.Since(started).Milliseconds(),
	)
	return retriever, nil
}

func (b *Builder) scanPartition(ctx context.Context, market, docDomain string) ([]domain.Document, error) {
	var (
		docs   []domain.Document
		offset json.RawMessage
	)
	for {
		page, err := b.store.Scroll(ctx, scrollBatchSize, offset)
		if err != nil {
			return nil, err
		}
		for _, doc := range page.Documents {
			if doc.Metadata.Country == market && doc.Metadata.Domain == docDomain {
				docs = append(docs, doc)
			}
		}
		if len(page.NextOffset) == 0 {
			return docs, nil
		}
		offset = page.NextOffset
	}
}
