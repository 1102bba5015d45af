package client

import (
	"context"
	"encoding/json"
	"github.com/Avi18971911/phasefit/internal/db/elasticsearch/model"
	"github.com/elastic/go-elasticsearch/v8"
)

const SearchResultSize = 500

type RefreshRate string

const (
	// Wait for the changes made by the request to be made visible by a refresh before replying.
	Wait RefreshRate = "wait_for"
	// Immediate Refresh the relevant primary and replica shards (not the whole index) immediately after the operation occurs.
	Immediate RefreshRate = "true"
	// Async Take no refresh related actions. The changes made by this request will be made visible at some point after the request returns.
	Async RefreshRate = "false"
)

// SearchAfterRequest is one page of a search_after walk. SearchAfter is empty for the first page.
type SearchAfterRequest struct {
	Query       map[string]interface{}
	Sort        []map[string]interface{}
	SearchAfter []json.RawMessage
	Index       string
	Size        int
}

type PhasefitClient interface {
	// BulkIndex indexes (inserts) multiple documents in the same index
	// https://www.elastic.co/guide/en/elasticsearch/reference/master/docs-bulk.html
	BulkIndex(ctx context.Context, metaInfo []MetaMap, documentInfo []DocumentMap, index string) error
	// SearchAfter returns one page of hits, each carrying the sort values for the next page.
	// https://www.elastic.co/guide/en/elasticsearch/reference/master/paginate-search-results.html
	SearchAfter(ctx context.Context, request SearchAfterRequest) ([]model.HitSource, error)
}

type PhasefitClientImpl struct {
	es          *elasticsearch.Client
	refreshRate string
}

func NewPhasefitClientImpl(es *elasticsearch.Client, refreshRate RefreshRate) *PhasefitClientImpl {
	return &PhasefitClientImpl{es: es, refreshRate: string(refreshRate)}
}
