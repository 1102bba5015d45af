package client

import (
	"encoding/json"
	"fmt"
)

type MetaMap map[string]interface{}
type DocumentMap map[string]interface{}

// IndexedDocument is stored under the id it reports. An empty id lets Elasticsearch assign one.
type IndexedDocument interface {
	DocumentID() string
}

// documentIdField is dropped from the source since Elasticsearch rejects it there.
const documentIdField = "_id"

// ToBulkActions renders documents as bulk index action lines and their sources.
func ToBulkActions[T IndexedDocument](documents []T) ([]MetaMap, []DocumentMap, error) {
	actions := make([]MetaMap, len(documents))
	sources := make([]DocumentMap, len(documents))
	for i, document := range documents {
		data, err := json.Marshal(document)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to marshal document %d: %w", i, err)
		}
		var source DocumentMap
		if err := json.Unmarshal(data, &source); err != nil {
			return nil, nil, fmt.Errorf("document %d is not a JSON object: %w", i, err)
		}
		delete(source, documentIdField)

		action := map[string]interface{}{}
		if id := document.DocumentID(); id != "" {
			action[documentIdField] = id
		}
		actions[i] = MetaMap{"index": action}
		sources[i] = source
	}
	return actions, sources, nil
}
