package bootstrapper

const SpanIndexName = "span_index"

func spanIndex() map[string]interface{} {
	return map[string]interface{}{
		"settings": map[string]interface{}{
			"number_of_shards":   1,
			"number_of_replicas": 1,
		},
		"mappings": map[string]interface{}{
			"properties": map[string]interface{}{
				"span_id": map[string]string{
					"type": "keyword",
				},
				"parent_span_id": map[string]string{
					"type": "keyword",
				},
				"trace_id": map[string]string{
					"type": "keyword",
				},
				"service_name": map[string]string{
					"type": "keyword",
				},
				"operation_name": map[string]string{
					"type": "keyword",
				},
				"span_kind": map[string]string{
					"type": "integer",
				},
				"start_time": map[string]string{
					"type": "date_nanos",
				},
				"end_time": map[string]string{
					"type": "date_nanos",
				},
				"attributes": map[string]string{
					"type": "flattened",
				},
			},
		},
	}
}
