package polymarket

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/ZenRasta/Astroedge/pkg/logger"
)

// PriceUpdate is one live price tick from the CLOB market channel
type PriceUpdate struct {
	AssetID string
	Price   float64
	Ts      time.Time
}

// MarketStream handles the WebSocket connection to the CLOB market channel
type MarketStream struct {
	conn           *websocket.Conn
	url            string
	assetIDs       []string
	priceChan      chan PriceUpdate
	errorChan      chan error
	mu             sync.Mutex
	reconnectDelay time.Duration
	ctx            context.Context
	cancel         context.CancelFunc
}

// NewMarketStream creates new market channel stream for the given tokens
func NewMarketStream(url string, assetIDs []string) *MarketStream {
	ctx, cancel := context.WithCancel(context.Background())

	return &MarketStream{
		url:            url,
		assetIDs:       assetIDs,
		priceChan:      make(chan PriceUpdate, 1000),
		errorChan:      make(chan error, 10),
		reconnectDelay: 5 * time.Second,
		ctx:            ctx,
		cancel:         cancel,
	}
}

// Connect establishes WebSocket connection
func (ms *MarketStream) Connect() error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	conn, _, err := websocket.DefaultDialer.Dial(ms.url, nil)
	if err != nil {
		return fmt.Errorf("failed to connect to market channel: %w", err)
	}

	ms.conn = conn

	if err := ms.subscribe(); err != nil {
		conn.Close()
		return fmt.Errorf("failed to subscribe: %w", err)
	}

	go ms.readMessages()
	go ms.pingHandler()

	logger.Info("market channel connected",
		zap.String("url", ms.url),
		zap.Int("assets", len(ms.assetIDs)),
	)

	return nil
}

// subscribe sends the market channel subscription message
func (ms *MarketStream) subscribe() error {
	if len(ms.assetIDs) == 0 {
		return fmt.Errorf("no asset ids to subscribe")
	}

	msg := wsSubscribeMessage{
		Type:      "market",
		AssetsIDs: ms.assetIDs,
	}

	if err := ms.conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("failed to send subscribe message: %w", err)
	}

	return nil
}

// readMessages reads messages from WebSocket
func (ms *MarketStream) readMessages() {
	defer func() {
		ms.mu.Lock()
		if ms.conn != nil {
			ms.conn.Close()
		}
		ms.mu.Unlock()

		// Attempt reconnect
		if ms.ctx.Err() == nil {
			logger.Info("attempting to reconnect market channel...")
			time.Sleep(ms.reconnectDelay)
			if err := ms.Connect(); err != nil {
				logger.Error("failed to reconnect", zap.Error(err))
			}
		}
	}()

	for {
		select {
		case <-ms.ctx.Done():
			return
		default:
		}

		_, message, err := ms.conn.ReadMessage()
		if err != nil {
			logger.Error("WebSocket read error", zap.Error(err))
			ms.errorChan <- err
			return
		}

		// The channel sends both single events and event arrays
		var events []wsMarketMessage
		if err := json.Unmarshal(message, &events); err != nil {
			var single wsMarketMessage
			if err := json.Unmarshal(message, &single); err != nil {
				logger.Warn("failed to parse WebSocket message", zap.Error(err))
				continue
			}
			events = []wsMarketMessage{single}
		}

		for i := range events {
			ms.handleEvent(&events[i])
		}
	}
}

// handleEvent converts price events into PriceUpdate ticks
func (ms *MarketStream) handleEvent(msg *wsMarketMessage) {
	if msg.EventType != "price_change" && msg.EventType != "last_trade_price" {
		return
	}

	price, err := msg.Price.Float64()
	if err != nil || price < 0 || price > 1 {
		return
	}

	ts := time.Now().UTC()
	if millis, err := msg.Timestamp.Int64(); err == nil && millis > 0 {
		ts = time.UnixMilli(millis).UTC()
	}

	update := PriceUpdate{
		AssetID: msg.AssetID,
		Price:   price,
		Ts:      ts,
	}

	select {
	case ms.priceChan <- update:
	default:
		logger.Warn("price channel full, dropping update")
	}
}

// pingHandler sends periodic ping messages to keep the connection alive
func (ms *MarketStream) pingHandler() {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ms.ctx.Done():
			return
		case <-ticker.C:
			ms.mu.Lock()
			if ms.conn != nil {
				if err := ms.conn.WriteMessage(websocket.TextMessage, []byte("PING")); err != nil {
					logger.Error("failed to send ping", zap.Error(err))
				}
			}
			ms.mu.Unlock()
		}
	}
}

// Prices returns channel for receiving price updates
func (ms *MarketStream) Prices() <-chan PriceUpdate {
	return ms.priceChan
}

// Errors returns channel for receiving errors
func (ms *MarketStream) Errors() <-chan error {
	return ms.errorChan
}

// Close closes WebSocket connection
func (ms *MarketStream) Close() error {
	ms.cancel()

	ms.mu.Lock()
	defer ms.mu.Unlock()

	if ms.conn != nil {
		return ms.conn.Close()
	}

	return nil
}
