package ws

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gridloss/internal/lossengine/application"
	"gridloss/internal/lossengine/application/eventbus"
	"gridloss/internal/lossengine/domain/network"
	"gridloss/internal/lossengine/infrastructure/memory"
	"gridloss/internal/lossengine/infrastructure/sample"
)

type rawEnvelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func readEnvelope(t *testing.T, conn *websocket.Conn) rawEnvelope {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	var env rawEnvelope
	require.NoError(t, json.Unmarshal(msg, &env))
	return env
}

func waitForClients(t *testing.T, hub *Hub, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return hub.ClientCount() == n }, 2*time.Second, 10*time.Millisecond)
}

func TestHandler_StreamsRebuilds(t *testing.T) {
	logger := log.New(io.Discard, "", 0)
	repo := memory.NewSnapshotRepository(0)
	bus := eventbus.NewInMemoryBus()
	rebuild, err := application.NewRebuildService(repo, bus, application.WithLogger(logger))
	require.NoError(t, err)
	query, err := application.NewQueryService(repo, network.DefaultBands())
	require.NoError(t, err)

	ctx := context.Background()
	_, err = rebuild.RebuildFrom(ctx, sample.Source{})
	require.NoError(t, err)

	hub := NewHub(logger)
	hub.Subscribe(bus)
	handler, err := NewHandler(hub, query)
	require.NoError(t, err)

	server := httptest.NewServer(handler)
	defer server.Close()
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()

	current := readEnvelope(t, conn)
	assert.Equal(t, TypeSnapshotCurrent, current.Type)
	var summary application.Summary
	require.NoError(t, json.Unmarshal(current.Payload, &summary))
	assert.Equal(t, int64(1), summary.Version)

	waitForClients(t, hub, 1)
	_, err = rebuild.RebuildFrom(ctx, sample.Source{})
	require.NoError(t, err)

	rebuilt := readEnvelope(t, conn)
	assert.Equal(t, TypeSnapshotRebuilt, rebuilt.Type)
	assert.Contains(t, string(rebuilt.Payload), `"version":2`)

	require.NoError(t, conn.Close())
	waitForClients(t, hub, 0)
}

// advancingRepo rebuilds once right after the first Latest call, landing a
// new version between the summary read and client registration.
type advancingRepo struct {
	*memory.SnapshotRepository
	once    sync.Once
	advance func()
}

func (r *advancingRepo) Latest(ctx context.Context) (*application.Snapshot, error) {
	snap, err := r.SnapshotRepository.Latest(ctx)
	r.once.Do(r.advance)
	return snap, err
}

func TestHandler_AttachQueuesCurrentBeforeEvents(t *testing.T) {
	logger := log.New(io.Discard, "", 0)
	inner := memory.NewSnapshotRepository(0)
	bus := eventbus.NewInMemoryBus()
	rebuild, err := application.NewRebuildService(inner, bus, application.WithLogger(logger))
	require.NoError(t, err)

	ctx := context.Background()
	_, err = rebuild.RebuildFrom(ctx, sample.Source{})
	require.NoError(t, err)

	repo := &advancingRepo{SnapshotRepository: inner}
	repo.advance = func() {
		_, err := rebuild.RebuildFrom(ctx, sample.Source{})
		require.NoError(t, err)
	}
	query, err := application.NewQueryService(repo, network.DefaultBands())
	require.NoError(t, err)

	hub := NewHub(logger)
	hub.Subscribe(bus)
	handler, err := NewHandler(hub, query)
	require.NoError(t, err)

	client := &Client{hub: hub, send: make(chan []byte, 16)}
	handler.attach(ctx, client)
	defer hub.Unregister(client)

	versions := make([]int64, 0, 2)
	for len(client.send) > 0 {
		var env struct {
			Type    string              `json:"type"`
			Payload application.Summary `json:"payload"`
		}
		require.NoError(t, json.Unmarshal(<-client.send, &env))
		assert.Equal(t, TypeSnapshotCurrent, env.Type)
		versions = append(versions, env.Payload.Version)
	}
	assert.Equal(t, []int64{1, 2}, versions)

	_, err = rebuild.RebuildFrom(ctx, sample.Source{})
	require.NoError(t, err)
	require.Len(t, client.send, 1)
	var env rawEnvelope
	require.NoError(t, json.Unmarshal(<-client.send, &env))
	assert.Equal(t, TypeSnapshotRebuilt, env.Type)
	assert.Contains(t, string(env.Payload), `"version":3`)
}

func TestNewHandler_RejectsNil(t *testing.T) {
	_, err := NewHandler(nil, nil)
	assert.Error(t, err)
}
