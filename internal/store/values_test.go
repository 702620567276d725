package store

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshot_JSONRestoresTimestamps(t *testing.T) {
	at := time.Date(2026, 12, 5, 10, 30, 0, 0, time.UTC)
	in := Snapshot{CollectionParties: {"p1": {"name": "Bday", "createdAt": TimestampOf(at), "tags": []any{TimestampOf(at)}}}}

	data, err := json.Marshal(in)
	require.NoError(t, err)

	var out Snapshot
	require.NoError(t, json.Unmarshal(data, &out))
	doc := out[CollectionParties]["p1"]
	assert.Equal(t, TimestampOf(at), doc["createdAt"])
	assert.Equal(t, []any{TimestampOf(at)}, doc["tags"])
	assert.Equal(t, "Bday", doc["name"])
}
