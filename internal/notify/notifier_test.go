package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/goran-ethernal/SolanaIndexor/internal/common"
	"github.com/goran-ethernal/SolanaIndexor/internal/logger"
	"github.com/goran-ethernal/SolanaIndexor/pkg/config"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

type counter struct {
	n atomic.Int32
}

func (c *counter) Nudge() { c.n.Add(1) }

// fakeNode answers every logsSubscribe and then sends one notification per subscription.
type fakeNode struct {
	mu         sync.Mutex
	mentions   []string
	dials      atomic.Int32
	dropAfter  bool
	commitment string
}

func (f *fakeNode) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	f.dials.Add(1)

	for {
		var req struct {
			ID     uint64            `json:"id"`
			Method string            `json:"method"`
			Params []json.RawMessage `json:"params"`
		}
		if err := conn.ReadJSON(&req); err != nil {
			return
		}

		var filter struct {
			Mentions []string `json:"mentions"`
		}
		var opts struct {
			Commitment string `json:"commitment"`
		}
		_ = json.Unmarshal(req.Params[0], &filter)
		_ = json.Unmarshal(req.Params[1], &opts)

		f.mu.Lock()
		f.mentions = append(f.mentions, filter.Mentions...)
		f.commitment = opts.Commitment
		drop := f.dropAfter
		f.mu.Unlock()

		sub := 100 + req.ID
		if err := conn.WriteJSON(map[string]any{"jsonrpc": "2.0", "id": req.ID, "result": sub}); err != nil {
			return
		}

		notification := map[string]any{
			"jsonrpc": "2.0",
			"method":  methodLogsNotification,
			"params": map[string]any{
				"subscription": sub,
				"result": map[string]any{
					"context": map[string]any{"slot": 5},
					"value":   map[string]any{"signature": "x", "err": nil, "logs": []string{}},
				},
			},
		}
		if err := conn.WriteJSON(notification); err != nil {
			return
		}

		if drop {
			return
		}
	}
}

func newTestNotifier(t *testing.T, srv *httptest.Server) *Notifier {
	t.Helper()

	cfg := config.NotifierConfig{
		Enabled:        true,
		WSURL:          "ws" + strings.TrimPrefix(srv.URL, "http"),
		ReconnectDelay: common.NewDuration(10 * time.Millisecond),
	}

	return New(cfg, "confirmed", logger.NewNopLogger())
}

func TestNotifier_NudgesSubscribedPrograms(t *testing.T) {
	node := &fakeNode{}
	srv := httptest.NewServer(node)
	defer srv.Close()

	n := newTestNotifier(t, srv)

	progA, progB := solana.NewWallet().PublicKey(), solana.NewWallet().PublicKey()
	a, b := &counter{}, &counter{}
	n.Register(progA, a)
	n.Register(progB, b)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- n.Run(ctx) }()

	require.Eventually(t, func() bool {
		return a.n.Load() >= 1 && b.n.Load() >= 1
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	require.ErrorIs(t, <-done, context.Canceled)

	node.mu.Lock()
	defer node.mu.Unlock()
	require.ElementsMatch(t, []string{progA.String(), progB.String()}, node.mentions)
	require.Equal(t, "confirmed", node.commitment)
}

func TestNotifier_ReconnectsAfterDrop(t *testing.T) {
	node := &fakeNode{dropAfter: true}
	srv := httptest.NewServer(node)
	defer srv.Close()

	n := newTestNotifier(t, srv)

	c := &counter{}
	n.Register(solana.NewWallet().PublicKey(), c)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() { _ = n.Run(ctx) }()

	require.Eventually(t, func() bool {
		return node.dials.Load() >= 3 && c.n.Load() >= 3
	}, 2*time.Second, 5*time.Millisecond)
}

func TestNotifier_IdleWithoutPrograms(t *testing.T) {
	n := New(config.NotifierConfig{Enabled: true, WSURL: "ws://127.0.0.1:1"}, "confirmed", logger.NewNopLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	require.ErrorIs(t, n.Run(ctx), context.DeadlineExceeded)
}

func TestNotifier_RejectedSubscriptionEndsSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		var req struct {
			ID uint64 `json:"id"`
		}
		if err := conn.ReadJSON(&req); err != nil {
			return
		}
		_ = conn.WriteJSON(map[string]any{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"error":   map[string]any{"code": -32602, "message": "invalid params"},
		})
	}))
	defer srv.Close()

	n := newTestNotifier(t, srv)
	n.Register(solana.NewWallet().PublicKey(), &counter{})

	err := n.session(context.Background())
	require.ErrorContains(t, err, "invalid params")
}
