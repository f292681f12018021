package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/goran-ethernal/SolanaIndexor/internal/common"
	"github.com/goran-ethernal/SolanaIndexor/internal/logger"
	"github.com/goran-ethernal/SolanaIndexor/internal/metrics"
	"github.com/goran-ethernal/SolanaIndexor/pkg/config"
	"github.com/gorilla/websocket"
)

const (
	methodLogsSubscribe    = "logsSubscribe"
	methodLogsNotification = "logsNotification"

	handshakeTimeout = 10 * time.Second
)

// Target is woken up when a subscribed program shows activity.
type Target interface {
	Nudge()
}

// Notifier keeps a websocket logsSubscribe open for every registered program
// and nudges the program's poller on each notification.
// Notifications only shorten the poll interval; the poller still lists signatures itself.
type Notifier struct {
	cfg        config.NotifierConfig
	commitment string
	dialer     *websocket.Dialer
	log        *logger.Logger

	mu       sync.RWMutex
	programs []solana.PublicKey
	targets  map[solana.PublicKey]Target
}

// New creates a Notifier. Register programs before calling Run.
func New(cfg config.NotifierConfig, commitment string, log *logger.Logger) *Notifier {
	cfg.ApplyDefaults()

	return &Notifier{
		cfg:        cfg,
		commitment: commitment,
		dialer: &websocket.Dialer{
			HandshakeTimeout: handshakeTimeout,
		},
		log:     log,
		targets: make(map[solana.PublicKey]Target),
	}
}

// Register subscribes program and routes its notifications to target.
func (n *Notifier) Register(program solana.PublicKey, target Target) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if _, ok := n.targets[program]; !ok {
		n.programs = append(n.programs, program)
	}
	n.targets[program] = target
}

// Run holds the subscription open, reconnecting after ReconnectDelay, until ctx is cancelled.
func (n *Notifier) Run(ctx context.Context) error {
	n.mu.RLock()
	count := len(n.programs)
	n.mu.RUnlock()

	if count == 0 {
		n.log.Info("no programs registered, notifier idle")
		<-ctx.Done()
		return ctx.Err()
	}

	for {
		err := n.session(ctx)
		if ctx.Err() != nil {
			n.log.Info("notifier stopped")
			return ctx.Err()
		}

		n.log.Warnf("websocket session ended, reconnecting in %v: %v", n.cfg.ReconnectDelay.Duration, err)
		metrics.ComponentHealthSet(common.ComponentNotifier, false)
		metrics.NotifierReconnectInc()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(n.cfg.ReconnectDelay.Duration):
		}
	}
}

type request struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type message struct {
	ID     uint64          `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
	Method string          `json:"method"`
	Params *struct {
		Subscription uint64 `json:"subscription"`
	} `json:"params"`
}

// session runs one connection: subscribe every program, then route notifications until the read fails.
func (n *Notifier) session(ctx context.Context) error {
	conn, _, err := n.dialer.DialContext(ctx, n.cfg.WSURL, nil)
	if err != nil {
		return fmt.Errorf("failed to dial %s: %w", n.cfg.WSURL, err)
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	n.mu.RLock()
	programs := append([]solana.PublicKey(nil), n.programs...)
	n.mu.RUnlock()

	// request ids are 1-based indexes into programs
	for i, program := range programs {
		req := request{
			JSONRPC: "2.0",
			ID:      uint64(i + 1),
			Method:  methodLogsSubscribe,
			Params: []any{
				map[string][]string{"mentions": {program.String()}},
				map[string]string{"commitment": n.commitment},
			},
		}
		if err := conn.WriteJSON(req); err != nil {
			return fmt.Errorf("failed to subscribe %s: %w", program, err)
		}
	}

	subscriptions := make(map[uint64]solana.PublicKey, len(programs))

	for {
		var msg message
		if err := conn.ReadJSON(&msg); err != nil {
			return fmt.Errorf("failed to read notification: %w", err)
		}

		switch {
		case msg.Error != nil:
			return fmt.Errorf("subscription %d rejected: %d %s", msg.ID, msg.Error.Code, msg.Error.Message)

		case msg.Method == methodLogsNotification && msg.Params != nil:
			program, ok := subscriptions[msg.Params.Subscription]
			if !ok {
				n.log.Debugf("notification for unknown subscription %d", msg.Params.Subscription)
				continue
			}
			n.notify(program)

		case msg.ID > 0 && int(msg.ID) <= len(programs):
			var sub uint64
			if err := json.Unmarshal(msg.Result, &sub); err != nil {
				return fmt.Errorf("invalid subscription id for request %d: %w", msg.ID, err)
			}

			program := programs[msg.ID-1]
			subscriptions[sub] = program

			if len(subscriptions) == len(programs) {
				metrics.ComponentHealthSet(common.ComponentNotifier, true)
			}
			n.log.Infof("subscribed to logs of %s (subscription %d)", program, sub)
		}
	}
}

func (n *Notifier) notify(program solana.PublicKey) {
	n.mu.RLock()
	target := n.targets[program]
	n.mu.RUnlock()

	if target == nil {
		return
	}

	metrics.NotificationInc(program.String())
	target.Nudge()
}
