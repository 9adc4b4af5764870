package sse

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/dimitrije/tokenhub-api/internal/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)
	return hub
}

func newClient(id string, tokenID uuid.UUID) *Client {
	return &Client{
		ID:      id,
		UserID:  uuid.New(),
		TokenID: tokenID,
		Send:    make(chan []byte, 256),
	}
}

func receive(t *testing.T, client *Client) Event {
	t.Helper()
	select {
	case msg := <-client.Send:
		var event Event
		require.NoError(t, json.Unmarshal(msg, &event))
		return event
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}
	return Event{}
}

func TestNewHub(t *testing.T) {
	hub := NewHub()

	assert.NotNil(t, hub.clients)
	assert.NotNil(t, hub.register)
	assert.NotNil(t, hub.unregister)
	assert.NotNil(t, hub.broadcast)
}

func TestHub_RegisterAndUnregister(t *testing.T) {
	hub := runHub(t)
	client := newClient("client-1", uuid.New())

	hub.Register(client)
	assert.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	hub.Unregister(client)
	assert.Eventually(t, func() bool { return hub.ClientCount() == 0 }, time.Second, 5*time.Millisecond)

	_, ok := <-client.Send
	assert.False(t, ok, "send channel is closed on unregister")
}

func TestHub_UnregisterNonexistentClient(t *testing.T) {
	hub := runHub(t)

	assert.NotPanics(t, func() {
		hub.Unregister(newClient("ghost", uuid.New()))
	})
}

func TestHub_SupplyAdjusted_OnlyToTokenWatchers(t *testing.T) {
	hub := runHub(t)
	tokenID := uuid.New()
	watcher := newClient("watcher", tokenID)
	other := newClient("other", uuid.New())
	hub.Register(watcher)
	hub.Register(other)
	require.Eventually(t, func() bool { return hub.ClientCount() == 2 }, time.Second, 5*time.Millisecond)

	token := &models.Token{ID: tokenID, Symbol: "GOLD"}
	hub.SupplyAdjusted(token, &models.SupplyAdjustment{
		TokenID: tokenID, Action: "mint", Amount: 50, TotalSupplyAfter: 150, ActorID: uuid.New(),
	})

	event := receive(t, watcher)
	assert.Equal(t, EventSupplyAdjusted, event.Type)
	data := event.Data.(map[string]any)
	assert.Equal(t, "GOLD", data["symbol"])
	assert.Equal(t, float64(150), data["total_supply"])

	select {
	case <-other.Send:
		t.Fatal("client watching another token received the event")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHub_TransferRecorded(t *testing.T) {
	hub := runHub(t)
	tokenID := uuid.New()
	client := newClient("client-1", tokenID)
	hub.Register(client)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	hub.TransferRecorded(&models.Transaction{ID: uuid.New(), TokenID: tokenID, FromAddress: "a", ToAddress: "b", Amount: 7})

	event := receive(t, client)
	assert.Equal(t, EventTransferRecorded, event.Type)
	assert.Equal(t, float64(7), event.Data.(map[string]any)["amount"])
}

func TestHub_FullBufferDropped(t *testing.T) {
	hub := runHub(t)
	tokenID := uuid.New()
	client := &Client{ID: "slow", TokenID: tokenID, Send: make(chan []byte, 1)}
	hub.Register(client)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	token := &models.Token{ID: tokenID}
	for i := 0; i < 5; i++ {
		hub.SupplyAdjusted(token, &models.SupplyAdjustment{Action: "mint", Amount: int64(i + 1)})
	}

	time.Sleep(50 * time.Millisecond)
	assert.Len(t, client.Send, 1)
}

func TestHub_PublishWithoutRunnerDoesNotBlock(t *testing.T) {
	hub := NewHub()
	token := &models.Token{ID: uuid.New()}

	done := make(chan struct{})
	go func() {
		for i := 0; i < 300; i++ {
			hub.SupplyAdjusted(token, &models.SupplyAdjustment{Action: "burn", Amount: 1})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publishing blocked")
	}
}

func TestHub_RunStopsOnCancel(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(stopped)
	}()

	client := newClient("client-1", uuid.New())
	hub.Register(client)
	cancel()

	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("hub did not stop")
	}
	_, ok := <-client.Send
	assert.False(t, ok)
}

func TestHub_RegisterAfterStop(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	hub.Run(ctx)

	client := newClient("late", uuid.New())
	assert.False(t, hub.Register(client))
	assert.NotPanics(t, func() { hub.Unregister(client) })
}
