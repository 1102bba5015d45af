package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"github.com/Avi18971911/phasefit/internal/db/elasticsearch/model"
)

var ErrBulkItemsFailed = errors.New("bulk request contained failed items")

func (a *PhasefitClientImpl) BulkIndex(
	ctx context.Context,
	metaInfo []MetaMap,
	documentInfo []DocumentMap,
	index string,
) error {
	if len(documentInfo) == 0 {
		return nil
	}
	var buf bytes.Buffer
	for i, document := range documentInfo {
		var meta MetaMap
		if i < len(metaInfo) {
			meta = metaInfo[i]
		} else {
			meta = MetaMap{"index": map[string]interface{}{}}
		}
		metaJSON, err := json.Marshal(meta)
		if err != nil {
			return fmt.Errorf("error marshaling meta to bulk index: %w", err)
		}
		buf.Write(metaJSON)
		buf.WriteByte('\n')

		dataJSON, err := json.Marshal(document)
		if err != nil {
			return fmt.Errorf("error marshaling data to bulk index: %w", err)
		}
		buf.Write(dataJSON)
		buf.WriteByte('\n')
	}

	res, err := a.es.Bulk(
		bytes.NewReader(buf.Bytes()),
		a.es.Bulk.WithIndex(index),
		a.es.Bulk.WithContext(ctx),
		a.es.Bulk.WithRefresh(a.refreshRate),
	)
	if err != nil {
		return fmt.Errorf("error bulk indexing: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("bulk index error: %s", res.String())
	}

	var bulkResponse model.BulkResponse
	if err := json.NewDecoder(res.Body).Decode(&bulkResponse); err != nil {
		return fmt.Errorf("failed to decode bulk response: %w", err)
	}
	if !bulkResponse.Errors {
		return nil
	}
	failed := 0
	var firstFailure string
	for _, item := range bulkResponse.Items {
		for _, status := range item {
			if len(status.Error) == 0 {
				continue
			}
			if failed == 0 {
				firstFailure = string(status.Error)
			}
			failed++
		}
	}
	return fmt.Errorf("%d of %d documents, first failure %s: %w", failed, len(documentInfo), firstFailure, ErrBulkItemsFailed)
}
