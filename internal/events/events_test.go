package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/K-Tikaraya/File-Based-Multimodal-RAG-for-Test-Case-Use-Case-Generation/internal/config"
	"github.com/K-Tikaraya/File-Based-Multimodal-RAG-for-Test-Case-Use-Case-Generation/internal/ingestion"
)

func startTestNATSServer(t *testing.T) *natsserver.Server {
	t.Helper()
	server, err := natsserver.NewServer(&natsserver.Options{
		Host:   "127.0.0.1",
		Port:   -1,
		NoLog:  true,
		NoSigs: true,
	})
	require.NoError(t, err)

	go server.Start()
	if !server.ReadyForConnections(5 * time.Second) {
		t.Fatal("NATS server not ready")
	}
	t.Cleanup(func() {
		server.Shutdown()
		server.WaitForShutdown()
	})
	return server
}

func subscribe(t *testing.T, url, subject string) *nats.Subscription {
	t.Helper()
	nc, err := nats.Connect(url)
	require.NoError(t, err)
	t.Cleanup(nc.Close)
	sub, err := nc.SubscribeSync(subject)
	require.NoError(t, err)
	require.NoError(t, nc.Flush())
	return sub
}

func TestPublisher_IngestCompleted(t *testing.T) {
	server := startTestNATSServer(t)
	sub := subscribe(t, server.ClientURL(), "rag.ingest.completed")

	pub, err := Connect(config.EventsConfig{Enabled: true, URL: server.ClientURL(), SubjectPrefix: "rag"}, nil)
	require.NoError(t, err)
	defer pub.Close()

	pub.IngestCompleted(context.Background(), &ingestion.RunReport{
		RunID:          "run-1",
		Root:           "rag_data_source",
		FilesExtracted: 3,
		Chunks:         7,
		Duration:       1500 * time.Millisecond,
		Failures:       []ingestion.Failure{{Path: "bad.pdf", Reason: "ocr_unavailable", Error: "x"}},
	})

	msg, err := sub.NextMsg(2 * time.Second)
	require.NoError(t, err)

	var ev IngestCompleted
	require.NoError(t, json.Unmarshal(msg.Data, &ev))
	assert.Equal(t, "run-1", ev.RunID)
	assert.Equal(t, 7, ev.Chunks)
	assert.Equal(t, int64(1500), ev.DurationMs)
	require.Len(t, ev.Failures, 1)
	assert.Equal(t, "bad.pdf", ev.Failures[0].Path)
}

func TestPublisher_IndexCleared(t *testing.T) {
	server := startTestNATSServer(t)
	sub := subscribe(t, server.ClientURL(), "qa.index.cleared")

	nc, err := nats.Connect(server.ClientURL())
	require.NoError(t, err)
	pub := NewPublisher(nc, "qa", nil)
	defer pub.Close()

	pub.IndexCleared(context.Background(), "rag_collection")

	msg, err := sub.NextMsg(2 * time.Second)
	require.NoError(t, err)
	var ev IndexCleared
	require.NoError(t, json.Unmarshal(msg.Data, &ev))
	assert.Equal(t, "rag_collection", ev.Collection)
}

func TestConnect_Disabled(t *testing.T) {
	pub, err := Connect(config.EventsConfig{Enabled: false}, nil)
	require.NoError(t, err)
	assert.Nil(t, pub)

	// nil publisher is inert
	pub.IngestCompleted(context.Background(), &ingestion.RunReport{})
	pub.IndexCleared(context.Background(), "c")
	assert.NoError(t, pub.Close())
}

func TestPublisher_ImplementsNotifier(t *testing.T) {
	var _ ingestion.Notifier = (*Publisher)(nil)
}
