// Package posfeed consumes the point-of-sale websocket feed and keeps the
// sales velocity table current.
package posfeed

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"nhooyr.io/websocket"

	"github.com/aristath/storeops/internal/domain"
	"github.com/aristath/storeops/internal/events"
)

const (
	writeWait   = 10 * time.Second
	dialTimeout = 30 * time.Second

	baseReconnectDelay   = 5 * time.Second
	maxReconnectDelay    = 5 * time.Minute
	maxReconnectAttempts = 10

	// Channel the feed publishes sale aggregates on
	salesChannel = "sales"
)

// VelocityRecorder receives velocity updates from the feed
type VelocityRecorder interface {
	Upsert(stat domain.VelocityStat) error
}

// EventEmitter publishes feed lifecycle events
type EventEmitter interface {
	Emit(eventType events.EventType, module string, data map[string]interface{})
}

// saleUpdate is the wire shape of one sales velocity aggregate
type saleUpdate struct {
	OutletID     string  `json:"outlet_id"`
	SKU          string  `json:"sku"`
	UnitsPerDay  float64 `json:"units_per_day"`
	WindowDays   int     `json:"window_days"`
	TurnoverRate float64 `json:"turnover_rate"`
	SoldAt       int64   `json:"sold_at"`
}

// Client maintains a websocket subscription to the POS feed, writing each
// velocity aggregate through the recorder. Reconnects with exponential
// backoff when the connection drops.
type Client struct {
	url        string
	conn       *websocket.Conn
	connCtx    context.Context
	cancelFunc context.CancelFunc
	mu         sync.RWMutex

	recorder VelocityRecorder
	emitter  EventEmitter
	log      zerolog.Logger

	connected bool
	stopChan  chan struct{}
	stopped   bool
}

// NewClient creates a POS feed client
func NewClient(url string, recorder VelocityRecorder, emitter EventEmitter, log zerolog.Logger) *Client {
	return &Client{
		url:      url,
		recorder: recorder,
		emitter:  emitter,
		log:      log.With().Str("component", "pos_feed").Logger(),
		stopChan: make(chan struct{}),
	}
}

// Start establishes the connection and begins the read loop. A failed
// initial dial is not fatal; reconnection continues in the background.
func (c *Client) Start() error {
	c.log.Info().Str("url", c.url).Msg("Starting POS feed client")

	if err := c.Connect(); err != nil {
		c.log.Warn().Err(err).Msg("Initial POS feed connection failed, will retry in background")
		go c.reconnectLoop()
		return err
	}

	c.mu.RLock()
	ctx := c.connCtx
	c.mu.RUnlock()
	go c.readMessages(ctx)
	return nil
}

// Stop gracefully shuts the client down
func (c *Client) Stop() error {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return nil
	}
	c.stopped = true
	c.mu.Unlock()

	close(c.stopChan)
	return c.Disconnect()
}

// Connected reports whether the feed is currently live
func (c *Client) Connected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// Connect dials the feed and subscribes to the sales channel
func (c *Client) Connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	dialCtx, dialCancel := context.WithTimeout(context.Background(), dialTimeout)
	defer dialCancel()

	conn, _, err := websocket.Dial(dialCtx, c.url, nil)
	if err != nil {
		return fmt.Errorf("failed to dial POS feed: %w", err)
	}

	connCtx, connCancel := context.WithCancel(context.Background())
	c.conn = conn
	c.connCtx = connCtx
	c.cancelFunc = connCancel
	c.connected = true

	if err := c.subscribe(connCtx); err != nil {
		connCancel()
		conn.Close(websocket.StatusNormalClosure, "subscribe failed")
		c.conn = nil
		c.connCtx = nil
		c.cancelFunc = nil
		c.connected = false
		return fmt.Errorf("failed to subscribe to sales channel: %w", err)
	}

	if c.emitter != nil {
		c.emitter.Emit(events.FeedConnected, "posfeed", map[string]interface{}{"url": c.url})
	}
	c.log.Info().Msg("Connected to POS feed")
	return nil
}

// Disconnect closes the connection
func (c *Client) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return nil
	}

	if c.cancelFunc != nil {
		c.cancelFunc()
		c.cancelFunc = nil
	}

	err := c.conn.Close(websocket.StatusNormalClosure, "")
	c.conn = nil
	c.connCtx = nil
	c.connected = false

	if c.emitter != nil {
		c.emitter.Emit(events.FeedDisconnected, "posfeed", nil)
	}
	if err != nil {
		return fmt.Errorf("error closing POS feed connection: %w", err)
	}
	return nil
}

func (c *Client) subscribe(ctx context.Context) error {
	data, err := json.Marshal([]string{salesChannel})
	if err != nil {
		return fmt.Errorf("failed to marshal subscription: %w", err)
	}

	writeCtx, cancel := context.WithTimeout(ctx, writeWait)
	defer cancel()
	return c.conn.Write(writeCtx, websocket.MessageText, data)
}

func (c *Client) readMessages(ctx context.Context) {
	defer func() {
		c.mu.RLock()
		stopped := c.stopped
		c.mu.RUnlock()
		if !stopped {
			go c.reconnectLoop()
		}
	}()

	for {
		select {
		case <-c.stopChan:
			return
		case <-ctx.Done():
			return
		default:
		}

		c.mu.RLock()
		conn := c.conn
		c.mu.RUnlock()
		if conn == nil {
			return
		}

		msgType, message, err := conn.Read(ctx)
		if err != nil {
			closeStatus := websocket.CloseStatus(err)
			if closeStatus == websocket.StatusNormalClosure || closeStatus == websocket.StatusGoingAway {
				c.log.Info().Msg("POS feed closed normally")
			} else if ctx.Err() == nil {
				c.log.Error().Err(err).Msg("POS feed read error")
			}
			return
		}

		if msgType != websocket.MessageText {
			continue
		}

		if err := c.handleMessage(message); err != nil {
			c.log.Error().Err(err).Msg("Failed to handle POS feed message")
			// Keep reading despite parse errors
		}
	}
}

// handleMessage parses a ["channel", payload] frame and records the update
func (c *Client) handleMessage(message []byte) error {
	var frame []json.RawMessage
	if err := json.Unmarshal(message, &frame); err != nil {
		return fmt.Errorf("failed to parse feed frame: %w", err)
	}
	if len(frame) < 2 {
		return fmt.Errorf("feed frame too short: expected 2 elements, got %d", len(frame))
	}

	var channel string
	if err := json.Unmarshal(frame[0], &channel); err != nil {
		return fmt.Errorf("failed to parse channel: %w", err)
	}
	if channel != salesChannel {
		return nil
	}

	var update saleUpdate
	if err := json.Unmarshal(frame[1], &update); err != nil {
		return fmt.Errorf("failed to parse sale update: %w", err)
	}
	if update.OutletID == "" || update.SKU == "" {
		return fmt.Errorf("sale update missing outlet or sku")
	}

	stat := domain.VelocityStat{
		OutletID:     update.OutletID,
		SKU:          update.SKU,
		UnitsPerDay:  update.UnitsPerDay,
		WindowDays:   update.WindowDays,
		TurnoverRate: update.TurnoverRate,
	}
	if update.SoldAt > 0 {
		stat.LastSoldAt = time.Unix(update.SoldAt, 0).UTC()
	}
	return c.recorder.Upsert(stat)
}

// reconnectLoop retries the connection with exponential backoff
func (c *Client) reconnectLoop() {
	c.mu.Lock()
	if c.connected || c.stopped {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	for attempt := 0; attempt < maxReconnectAttempts; attempt++ {
		delay := time.Duration(math.Min(
			float64(baseReconnectDelay)*math.Pow(2, float64(attempt)),
			float64(maxReconnectDelay),
		))

		c.log.Info().
			Int("attempt", attempt+1).
			Dur("delay", delay).
			Msg("Reconnecting to POS feed")

		select {
		case <-c.stopChan:
			return
		case <-time.After(delay):
		}

		if err := c.Connect(); err != nil {
			c.log.Warn().Err(err).Int("attempt", attempt+1).Msg("POS feed reconnect failed")
			continue
		}

		c.mu.RLock()
		ctx := c.connCtx
		c.mu.RUnlock()
		go c.readMessages(ctx)
		return
	}

	c.log.Error().Int("attempts", maxReconnectAttempts).Msg("POS feed reconnect attempts exhausted")
}
