package elasticsearch

import (
	"testing"

	"loginsight-backend/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleMapping = `{
  "logs-2024.05.01": {"mappings": {"properties": {
    "@timestamp": {"type": "date"},
    "level": {"type": "keyword"},
    "message": {"type": "text", "fields": {"keyword": {"type": "keyword", "ignore_above": 256}}},
    "latency_ms": {"type": "long"},
    "http": {"properties": {
      "status": {"type": "integer"},
      "path": {"type": "text"}
    }},
    "geo": {"type": "geo_point"}
  }}},
  "logs-2024.05.02": {"mappings": {"properties": {
    "@timestamp": {"type": "date"},
    "latency_ms": {"type": "double"},
    "client_ip": {"type": "ip"}
  }}}
}`

func TestParseMappings(t *testing.T) {
	idx, err := parseMappings("logs-*", []byte(sampleMapping))
	require.NoError(t, err)

	assert.Equal(t, "logs-*", idx.Pattern)
	assert.Equal(t, "@timestamp", idx.TimestampField)

	names := make([]string, len(idx.Fields))
	for i, f := range idx.Fields {
		names[i] = f.Name
	}
	assert.Equal(t, []string{"@timestamp", "client_ip", "http.path", "http.status", "latency_ms", "level", "message"}, names)

	msg, ok := idx.Field("message")
	require.True(t, ok)
	assert.Equal(t, model.FieldText, msg.Type)
	assert.True(t, msg.Keyword)

	path, _ := idx.Field("http.path")
	assert.False(t, path.Keyword)

	status, _ := idx.Field("http.status")
	assert.Equal(t, model.FieldInteger, status.Type)

	// The newer index decides conflicting types.
	latency, _ := idx.Field("latency_ms")
	assert.Equal(t, model.FieldDouble, latency.Type)
}

func TestParseMappings_NoTimestamp(t *testing.T) {
	idx, err := parseMappings("audit", []byte(`{"audit": {"mappings": {"properties": {"user": {"type": "keyword"}}}}}`))
	require.NoError(t, err)
	assert.Empty(t, idx.TimestampField)
	require.Len(t, idx.Fields, 1)
}

func TestParseMappings_Malformed(t *testing.T) {
	_, err := parseMappings("logs-*", []byte(`[1,2]`))
	assert.Error(t, err)
}
