package repository

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"order-tracking-service/internal/model"
)

func TestStatusUpdate_SingleStage(t *testing.T) {
	now := time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)
	record := model.StatusRecord{Status: "in_transit", Reason: "$truck left", ChangedBy: "ops", Timestamp: now}

	pipeline := statusUpdate("in_transit", record, now)
	require.Len(t, pipeline, 1)
	require.Len(t, pipeline[0], 1)
	assert.Equal(t, "$set", pipeline[0][0].Key)

	raw, err := bson.MarshalExtJSON(bson.D{{Key: "pipeline", Value: pipeline}}, false, false)
	require.NoError(t, err)
	out := string(raw)

	// existing records are unmarked in the same write that appends the new one
	assert.Contains(t, out, `"$concatArrays"`)
	assert.Contains(t, out, `"$mergeObjects":["$$h",{"current":false}]`)
	assert.Contains(t, out, `"$literal":{"status":"in_transit","reason":"$truck left","changed_by":"ops"`)
	assert.Contains(t, out, `"current":true`)
	assert.Contains(t, out, `"status":{"$literal":"in_transit"}`)
}

func TestStatusUpdate_DoesNotMutateRecord(t *testing.T) {
	record := model.StatusRecord{Status: "delivered"}
	_ = statusUpdate("delivered", record, time.Now())
	assert.False(t, record.Current)
}
