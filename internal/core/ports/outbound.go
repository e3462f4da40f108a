package ports

import (
	"context"
	"encoding/json"
	"time"

	"github.com/cosyhq/regcheck/internal/core/domain"
)

// SearchMode selects between plain nearest-neighbor search and a
// diversity-maximizing selection over a wider candidate pool.
type SearchMode string

const (
	SearchModeNearest   SearchMode = "nn"
	SearchModeDiversity SearchMode = "mmr"
)

// SearchQuery is one filtered similarity search against the document store.
type SearchQuery struct {
	Text   string
	Market string
	Domain string
	K      int
	FetchK int
	Mode   SearchMode
}

// ScrollPage is one batch of a paginated full-store export. NextOffset is
// the store's opaque continuation token; nil means the store is exhausted.
type ScrollPage struct {
	Documents  []domain.Document
	NextOffset json.RawMessage
}

// DocumentStore wraps the persistent vector index. Search narrows candidates
// to documents whose metadata exactly matches the query's market and domain.
// Open/transport failures are fatal to the caller.
type DocumentStore interface {
	Search(ctx context.Context, query SearchQuery) ([]domain.Document, error)
	Scroll(ctx context.Context, limit int, offset json.RawMessage) (ScrollPage, error)
}

// Retriever is the shared capability of the lexical and semantic channels.
type Retriever interface {
	Retrieve(ctx context.Context, query string, k int) ([]domain.Document, error)
}

// LexicalRetrieverSource builds (and caches) a term-ranking retriever per
// (market, domain) partition. Building requires a full partition scan, so
// implementations cache by exactly that key.
type LexicalRetrieverSource interface {
	Retriever(ctx context.Context, market, domain string) (Retriever, error)
}

// AliasCache is the external key-value store holding JSON-encoded alias
// records. Get returns found=false on a clean miss.
type AliasCache interface {
	Get(ctx context.Context, key string) (value string, found bool, err error)
	SetWithTTL(ctx context.Context, key, value string, ttl time.Duration) error
}

// ChatRequest is one chat-style completion call.
type ChatRequest struct {
	Model       string
	System      string
	User        string
	Temperature float64
	MaxTokens   int
}

// ChatModel is the language model endpoint. Transport and auth failures
// propagate; content-quality issues are the caller's problem.
type ChatModel interface {
	Complete(ctx context.Context, req ChatRequest) (string, error)
}

// Embedder produces the query vector for semantic search.
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// CheckLogStore persists the audit trail of completed checks.
type CheckLogStore interface {
	Create(ctx context.Context, record *domain.CheckRecord) error
	ListRecent(ctx context.Context, limit int) ([]domain.CheckRecord, error)
}

// MessageQueue publishes and consumes check-completed events.
type MessageQueue interface {
	PublishCheckCompleted(ctx context.Context, record domain.CheckRecord) error
	SubscribeCheckCompleted(ctx context.Context, handler func(context.Context, domain.CheckRecord) error) error
}
