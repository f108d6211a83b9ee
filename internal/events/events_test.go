package events

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventKey(t *testing.T) {
	e := New(PurchaseApproved)
	e.PurchaseID = "p1"
	e.FileID = "f1"
	assert.Equal(t, "purchase-p1", e.Key())

	d := New(DownloadRecorded)
	d.FileID = "f1"
	d.UserID = "u1"
	assert.Equal(t, "download-f1-u1", d.Key())
}

func TestToMessage(t *testing.T) {
	e := New(PurchaseInitiated)
	e.PurchaseID = "p1"
	e.UserID = "u1"
	e.FileID = "f1"
	e.Amount = 999

	msg, err := toMessage(e)
	require.NoError(t, err)
	assert.Equal(t, "purchase-p1", string(msg.Key))
	require.Len(t, msg.Headers, 1)
	assert.Equal(t, "purchase.initiated", string(msg.Headers[0].Value))

	var back Event
	require.NoError(t, json.Unmarshal(msg.Value, &back))
	assert.Equal(t, e.ID, back.ID)
	assert.Equal(t, int64(999), back.Amount)
}

func TestLogPublisher(t *testing.T) {
	var buf bytes.Buffer
	p := LogPublisher{Logger: zerolog.New(&buf)}

	e := New(DownloadRecorded)
	e.UserID = "u1"
	e.FileID = "f1"
	e.DownloadCount = 2
	require.NoError(t, p.Publish(context.Background(), e))
	require.NoError(t, p.Close())

	out := buf.String()
	assert.True(t, strings.Contains(out, `"event_type":"download.recorded"`), out)
	assert.True(t, strings.Contains(out, `"download_count":2`), out)
}

func TestNop(t *testing.T) {
	var p Publisher = Nop{}
	assert.NoError(t, p.Publish(context.Background(), New(PurchaseDeclined)))
	assert.NoError(t, p.Close())
}

func TestNewKafkaPublisher_WriterSettings(t *testing.T) {
	p := NewKafkaPublisher([]string{"k1:9092", "k2:9092"}, "filemarket.events")
	defer p.Close()

	w := p.writer
	assert.Equal(t, "filemarket.events", w.Topic)
	assert.Equal(t, "k1:9092,k2:9092", w.Addr.String())
	// A one-message synchronous write must not sit out kafka-go's 1s default.
	assert.Equal(t, batchTimeout, w.BatchTimeout)
	assert.Less(t, w.BatchTimeout, 100*time.Millisecond)
}
