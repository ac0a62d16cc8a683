package alert

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWebhookPostsEvent(t *testing.T) {
	var (
		mu   sync.Mutex
		got  Event
		auth string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		auth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	w := NewWebhook(srv.URL, "tok", time.Second, nil)
	err := w.Send(context.Background(), Event{Kind: KindOrderError, Message: "boom", BotID: 3})
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "Bearer tok", auth)
	assert.Equal(t, KindOrderError, got.Kind)
	assert.Equal(t, LevelWarn, got.Level)
	assert.Equal(t, "ezpip", got.Source)
	assert.Equal(t, uint64(3), got.BotID)
}

func TestWebhookHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer srv.Close()

	w := NewWebhook(srv.URL, "", time.Second, nil)
	err := w.Send(context.Background(), Event{Kind: KindKillSwitch})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")

	// Notify swallows the failure
	w.Notify(context.Background(), Event{Kind: KindKillSwitch})
}

func TestNotifyWithCancelledContextStillDelivers(t *testing.T) {
	hits := make(chan struct{}, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits <- struct{}{}
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	NewWebhook(srv.URL, "", time.Second, nil).Notify(ctx, Event{Kind: KindReconcileDivergence})

	select {
	case <-hits:
	default:
		t.Fatalf("expected webhook delivery")
	}
}

func TestEmptyWebhookIsNoop(t *testing.T) {
	var w *Webhook
	assert.NoError(t, w.Send(context.Background(), Event{}))
	NewWebhook("", "", 0, nil).Notify(context.Background(), Event{})
}
