package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"TradeScan/pkg/config"
	applogger "TradeScan/pkg/logger"

	"github.com/gorilla/websocket"
)

// Client maintains a live last-trade tape over the market-data
// WebSocket feed. The order path prefers this table for entry-price
// estimates and falls back to a REST lookup when a symbol is absent.
type Client struct {
	websocketURL   string
	keyID          string
	secretKey      string
	symbols        []string
	reconnectDelay time.Duration
	pingInterval   time.Duration

	conn      *websocket.Conn
	connected bool

	mu   sync.RWMutex
	last map[string]float64

	l *applogger.Logger
}

func New(cfg *config.Config, l *applogger.Logger) *Client {
	reconnect := cfg.Stream.ReconnectDelay
	if reconnect <= 0 {
		reconnect = 5 * time.Second
	}
	ping := cfg.Stream.PingInterval
	if ping <= 0 {
		ping = 30 * time.Second
	}
	return &Client{
		websocketURL:   cfg.Stream.WebSocketURL,
		keyID:          cfg.MarketData.KeyID,
		secretKey:      cfg.MarketData.SecretKey,
		symbols:        cfg.Scan.Symbols,
		reconnectDelay: reconnect,
		pingInterval:   ping,
		last:           make(map[string]float64),
		l:              l,
	}
}

// Last returns the most recent trade price seen for symbol.
func (c *Client) Last(symbol string) (float64, bool) {
	c.mu.RLock()
	p, ok := c.last[symbol]
	c.mu.RUnlock()
	return p, ok
}

// Connect establishes the WebSocket connection and authenticates.
func (c *Client) Connect(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.websocketURL, nil)
	if err != nil {
		return fmt.Errorf("stream connect: %w", err)
	}
	c.conn = conn
	c.connected = true

	auth := map[string]string{"action": "auth", "key": c.keyID, "secret": c.secretKey}
	if err := conn.WriteJSON(auth); err != nil {
		return fmt.Errorf("stream auth: %w", err)
	}
	return nil
}

// Subscribe subscribes to trade events for the configured universe.
func (c *Client) Subscribe(ctx context.Context) error {
	if c.conn == nil || !c.connected {
		return fmt.Errorf("stream not connected")
	}
	msg := map[string]any{"action": "subscribe", "trades": c.symbols}
	if err := c.conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("stream subscribe: %w", err)
	}
	return nil
}

type tradeFrame struct {
	T string  `json:"T"`
	S string  `json:"S"`
	P float64 `json:"p"`
}

// Run reads trade frames until ctx is cancelled, reconnecting on read
// errors. Non-trade frames are ignored.
func (c *Client) Run(ctx context.Context) {
	pingDone := make(chan struct{})
	go func() {
		ticker := time.NewTicker(c.pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-pingDone:
				return
			case <-ticker.C:
				if c.conn != nil {
					_ = c.conn.WriteMessage(websocket.PingMessage, nil)
				}
			}
		}
	}()
	defer close(pingDone)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		if c.conn == nil {
			if err := c.reconnect(ctx); err != nil {
				return
			}
			continue
		}
		_, b, err := c.conn.ReadMessage()
		if err != nil {
			if c.l != nil {
				c.l.Warn("stream read error", applogger.Error(err))
			}
			if err := c.reconnect(ctx); err != nil {
				return
			}
			continue
		}
		var frames []tradeFrame
		if err := json.Unmarshal(b, &frames); err != nil {
			continue
		}
		for _, f := range frames {
			if f.T != "t" || f.S == "" || f.P <= 0 {
				continue
			}
			c.mu.Lock()
			c.last[f.S] = f.P
			c.mu.Unlock()
		}
	}
}

func (c *Client) reconnect(ctx context.Context) error {
	_ = c.Close()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(c.reconnectDelay):
	}
	if err := c.Connect(ctx); err != nil {
		if c.l != nil {
			c.l.Warn("stream reconnect failed", applogger.Error(err))
		}
		return nil // retried by the Run loop
	}
	return c.Subscribe(ctx)
}

// Close closes the WS connection.
func (c *Client) Close() error {
	c.connected = false
	if c.conn != nil {
		err := c.conn.Close()
		c.conn = nil
		return err
	}
	return nil
}

// IsConnected indicates status.
func (c *Client) IsConnected() bool { return c.connected }
