package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"github.com/Avi18971911/phasefit/internal/db/elasticsearch/model"
)

func (a *PhasefitClientImpl) SearchAfter(
	ctx context.Context,
	request SearchAfterRequest,
) ([]model.HitSource, error) {
	body, err := json.Marshal(buildSearchAfterQuery(request))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal search after query: %w", err)
	}

	res, err := a.es.Search(
		a.es.Search.WithContext(ctx),
		a.es.Search.WithIndex(request.Index),
		a.es.Search.WithBody(bytes.NewReader(body)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, fmt.Errorf("failed to execute query: %s", res.String())
	}

	var esResponse model.EsResponse
	if err := json.NewDecoder(res.Body).Decode(&esResponse); err != nil {
		return nil, fmt.Errorf("failed to decode response body: %w", err)
	}
	return esResponse.Hits.HitArray, nil
}

func getQuerySize(querySize int) int {
	if querySize <= 0 {
		return SearchResultSize
	}
	return querySize
}

func buildSearchAfterQuery(request SearchAfterRequest) map[string]interface{} {
	query := map[string]interface{}{
		"size": getQuerySize(request.Size),
	}
	if request.Query != nil {
		query["query"] = request.Query
	}
	if len(request.Sort) > 0 {
		query["sort"] = request.Sort
	}
	if len(request.SearchAfter) > 0 {
		query["search_after"] = request.SearchAfter
	}
	return query
}
