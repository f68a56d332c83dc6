package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSerializeToMessage(t *testing.T) {
	now := time.Date(2024, 5, 21, 6, 0, 0, 0, time.UTC)
	e := Event{
		Forecast: "fc.2024-05-21_north",
		Step:     "geotiff",
		Date:     "2024-05-21",
		Status:   StatusCompleted,
		Time:     now,
	}

	msg, err := serializeToMessage(e)
	require.NoError(t, err)

	assert.Equal(t, []byte("fc.2024-05-21_north"), msg.Key)
	assert.Contains(t, string(msg.Value), `"step":"geotiff"`)
	assert.Contains(t, string(msg.Value), `"status":"completed"`)
	require.Len(t, msg.Headers, 2)
	assert.Equal(t, "status", msg.Headers[0].Key)
	assert.Equal(t, []byte("completed"), msg.Headers[0].Value)
	assert.Equal(t, "emitted_at", msg.Headers[1].Key)
	assert.Equal(t, []byte(now.Format(time.RFC3339)), msg.Headers[1].Value)
}

func TestSerializeToMessage_OmitsEmptyFields(t *testing.T) {
	e := Event{Forecast: "fc.2024-05-21_south", Status: StatusStarted, Time: time.Now()}

	msg, err := serializeToMessage(e)
	require.NoError(t, err)
	assert.NotContains(t, string(msg.Value), `"step"`)
	assert.NotContains(t, string(msg.Value), `"detail"`)
}
