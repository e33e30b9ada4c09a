package notifier

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBotAPI struct {
	mu       sync.Mutex
	messages []map[string]string
	failures int32
	updates  string
}

func (f *fakeBotAPI) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/botTOKEN/sendMessage", func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&f.failures, -1) >= 0 {
			http.Error(w, `{"ok":false}`, http.StatusBadGateway)
			return
		}
		var payload map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		f.mu.Lock()
		f.messages = append(f.messages, payload)
		f.mu.Unlock()
		w.Write([]byte(`{"ok":true}`))
	})
	mux.HandleFunc("/botTOKEN/getUpdates", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("offset") == "0" {
			w.Write([]byte(f.updates))
			return
		}
		w.Write([]byte(`{"ok":true,"result":[]}`))
	})
	return mux
}

func (f *fakeBotAPI) sent() []map[string]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]map[string]string(nil), f.messages...)
}

func newTestNotifier(t *testing.T, api *fakeBotAPI) *TelegramNotifier {
	t.Helper()
	srv := httptest.NewServer(api.handler(t))
	t.Cleanup(srv.Close)
	tn := NewTelegramNotifier("TOKEN", "42", "")
	tn.APIBase = srv.URL
	tn.Backoff = time.Millisecond
	return tn
}

func TestSend_PostsMessage(t *testing.T) {
	api := &fakeBotAPI{}
	tn := newTestNotifier(t, api)

	require.NoError(t, tn.Send("<b>hello</b>"))
	sent := api.sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "42", sent[0]["chat_id"])
	assert.Equal(t, "HTML", sent[0]["parse_mode"])
	assert.Equal(t, "<b>hello</b>", sent[0]["text"])
}

func TestSend_Disabled(t *testing.T) {
	tn := NewTelegramNotifier("", "", "")
	assert.False(t, tn.Enabled())
	assert.ErrorIs(t, tn.Send("x"), ErrDisabled)
	assert.ErrorIs(t, tn.SendWithRetry(context.Background(), "x", 3), ErrDisabled)
}

func TestSendWithRetry_RecoversAfterFailures(t *testing.T) {
	api := &fakeBotAPI{failures: 2}
	tn := newTestNotifier(t, api)

	require.NoError(t, tn.SendWithRetry(context.Background(), "retry me", 3))
	assert.Len(t, api.sent(), 1)
}

func TestSendWithRetry_Exhausted(t *testing.T) {
	api := &fakeBotAPI{failures: 10}
	tn := newTestNotifier(t, api)

	err := tn.SendWithRetry(context.Background(), "never", 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "all 2 retries exhausted")
	assert.Empty(t, api.sent())
}

func TestSend_BreakerOpensAfterConsecutiveFailures(t *testing.T) {
	api := &fakeBotAPI{failures: 100}
	tn := newTestNotifier(t, api)

	for i := 0; i < 5; i++ {
		assert.Error(t, tn.Send("x"))
	}
	assert.ErrorIs(t, tn.Send("x"), gobreaker.ErrOpenState)
	assert.ErrorIs(t, tn.SendWithRetry(context.Background(), "x", 3), gobreaker.ErrOpenState)
}

func TestPoll_DispatchesCommandsAndReplies(t *testing.T) {
	api := &fakeBotAPI{updates: `{"ok":true,"result":[
		{"update_id":0,"message":{"text":" /help "}},
		{"update_id":1,"message":{"text":""}}
	]}`}
	tn := newTestNotifier(t, api)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan string, 4)
	done := make(chan struct{})
	go func() {
		tn.poll(ctx, func(cmd string) string {
			got <- cmd
			return "reply to " + cmd
		}, 0, time.Millisecond)
		close(done)
	}()

	select {
	case cmd := <-got:
		assert.Equal(t, "/help", cmd)
	case <-time.After(2 * time.Second):
		t.Fatal("command not dispatched")
	}
	require.Eventually(t, func() bool { return len(api.sent()) == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, "reply to /help", api.sent()[0]["text"])

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("polling did not stop")
	}
	assert.Empty(t, got)
}
