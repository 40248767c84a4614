package elasticsearch

const (
	EventIndexName   = "event_index"
	SpanIndexName    = "span_index"
	SessionIndexName = "session_index"
	MetricsIndexName = "metrics_index"
)

var indexSettings = map[string]interface{}{
	"number_of_shards":   1,
	"number_of_replicas": 1,
	"analysis": map[string]interface{}{
		"analyzer": map[string]interface{}{
			"message_analyzer": map[string]interface{}{
				"type":      "custom",
				"tokenizer": "standard",
				"filter":    []string{"lowercase", "stop"},
			},
		},
	},
}

var keyword = map[string]interface{}{"type": "keyword"}
var date = map[string]interface{}{"type": "date"}

// opaque fields are stored in _source but not indexed, since their shape differs per event.
var opaque = map[string]interface{}{"type": "object", "enabled": false}

var eventIndex = map[string]interface{}{
	"settings": indexSettings,
	"mappings": map[string]interface{}{
		"properties": map[string]interface{}{
			"event_id":    keyword,
			"type":        keyword,
			"timestamp":   date,
			"created_at":  date,
			"level":       keyword,
			"logger":      keyword,
			"release":     keyword,
			"environment": keyword,
			"transaction": keyword,
			"trace_id":    keyword,
			"span_id":     keyword,
			"message": map[string]interface{}{
				"type":     "text",
				"analyzer": "message_analyzer",
			},
			"tags":        map[string]interface{}{"type": "flattened"},
			"contexts":    opaque,
			"extra":       opaque,
			"exception":   opaque,
			"breadcrumbs": opaque,
			"debug_meta":  opaque,
			"request":     opaque,
			"spans":       opaque,
		},
	},
}

var spanIndex = map[string]interface{}{
	"settings": indexSettings,
	"mappings": map[string]interface{}{
		"properties": map[string]interface{}{
			"trace_id":        keyword,
			"span_id":         keyword,
			"parent_span_id":  keyword,
			"transaction_id":  keyword,
			"op":              keyword,
			"description":     keyword,
			"status":          keyword,
			"origin":          keyword,
			"start_timestamp": date,
			"timestamp":       date,
			"created_at":      date,
			"duration_ms":     map[string]interface{}{"type": "double"},
			"tags":            map[string]interface{}{"type": "flattened"},
			"data":            opaque,
		},
	},
}

var sessionIndex = map[string]interface{}{
	"settings": indexSettings,
	"mappings": map[string]interface{}{
		"properties": map[string]interface{}{
			"sid":        keyword,
			"did":        keyword,
			"status":     keyword,
			"errors":     map[string]interface{}{"type": "integer"},
			"init":       map[string]interface{}{"type": "boolean"},
			"started":    date,
			"timestamp":  date,
			"created_at": date,
			"seq":        map[string]interface{}{"type": "long"},
			"attrs":      opaque,
		},
	},
}

var metricsIndex = map[string]interface{}{
	"settings": indexSettings,
	"mappings": map[string]interface{}{
		"properties": map[string]interface{}{
			"created_at": date,
			"metrics":    map[string]interface{}{"type": "text", "index": false},
		},
	},
}

var indices = []struct {
	name  string
	index map[string]interface{}
}{
	{EventIndexName, eventIndex},
	{SpanIndexName, spanIndex},
	{SessionIndexName, sessionIndex},
	{MetricsIndexName, metricsIndex},
}
