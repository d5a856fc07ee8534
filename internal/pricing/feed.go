// internal/pricing/feed.go
package pricing

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/gorilla/websocket"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// feedMessage is the wire format of a single price tick from the feed.
type feedMessage struct {
	Type      string  `json:"type"`
	TokenMint string  `json:"token_mint"`
	PriceSol  float64 `json:"price_sol"`
	Timestamp int64   `json:"timestamp"` // unix millis
}

// FeedConfig configures a websocket price feed.
type FeedConfig struct {
	URL         string
	MaxQuoteAge time.Duration // quotes older than this are reported unavailable
	Logger      *zap.Logger
}

// Feed subscribes to a websocket price stream and keeps the last quote per
// token mint in memory. It implements Source with staleness enforcement.
type Feed struct {
	config *FeedConfig
	logger *zap.Logger

	mu     sync.RWMutex
	quotes map[string]Quote

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewFeed creates a price feed. Start must be called before GetPrice
// returns anything.
func NewFeed(config *FeedConfig) *Feed {
	if config.MaxQuoteAge <= 0 {
		config.MaxQuoteAge = 10 * time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Feed{
		config: config,
		logger: config.Logger.Named("price_feed"),
		quotes: make(map[string]Quote),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start begins the read loop. Connection failures are retried with
// exponential backoff until Stop is called.
func (f *Feed) Start() {
	f.wg.Add(1)
	go func() {
		defer f.wg.Done()
		f.run()
	}()
}

// Stop tears down the connection and waits for the read loop to exit.
func (f *Feed) Stop() {
	f.cancel()
	f.wg.Wait()
}

// GetPrice returns the last quote seen for the token. Missing or stale
// quotes are reported as ErrPriceUnavailable.
func (f *Feed) GetPrice(_ context.Context, tokenMint string) (Quote, error) {
	f.mu.RLock()
	quote, exists := f.quotes[tokenMint]
	f.mu.RUnlock()

	if !exists {
		return Quote{}, fmt.Errorf("%w: no quote for %s", ErrPriceUnavailable, tokenMint)
	}
	if quote.StaleAfter(f.config.MaxQuoteAge) {
		return Quote{}, fmt.Errorf("%w: quote for %s is stale", ErrPriceUnavailable, tokenMint)
	}
	return quote, nil
}

func (f *Feed) run() {
	for {
		select {
		case <-f.ctx.Done():
			return
		default:
		}

		conn, err := f.connect()
		if err != nil {
			f.logger.Error("Price feed connection failed", zap.Error(err))
			return
		}

		f.readLoop(conn)
		_ = conn.Close()

		select {
		case <-f.ctx.Done():
			return
		case <-time.After(time.Second):
			f.logger.Info("Reconnecting price feed", zap.String("url", f.config.URL))
		}
	}
}

func (f *Feed) connect() (*websocket.Conn, error) {
	operation := func() (*websocket.Conn, error) {
		conn, _, err := websocket.DefaultDialer.DialContext(f.ctx, f.config.URL, nil)
		if err != nil {
			return nil, fmt.Errorf("dial %s: %w", f.config.URL, err)
		}
		return conn, nil
	}

	backoffPolicy := backoff.NewExponentialBackOff()
	backoffPolicy.InitialInterval = 500 * time.Millisecond
	backoffPolicy.MaxInterval = 30 * time.Second

	notify := func(err error, duration time.Duration) {
		f.logger.Warn("Price feed dial failed, retrying",
			zap.Error(err),
			zap.Duration("backoff", duration))
	}

	return backoff.Retry(f.ctx, operation,
		backoff.WithBackOff(backoffPolicy),
		backoff.WithNotify(notify))
}

func (f *Feed) readLoop(conn *websocket.Conn) {
	for {
		select {
		case <-f.ctx.Done():
			return
		default:
		}

		_, data, err := conn.ReadMessage()
		if err != nil {
			f.logger.Warn("Price feed read error", zap.Error(err))
			return
		}

		var msg feedMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			f.logger.Debug("Dropping malformed feed message", zap.Error(err))
			continue
		}
		if msg.TokenMint == "" || msg.PriceSol <= 0 {
			continue
		}

		asOf := time.UnixMilli(msg.Timestamp)
		if msg.Timestamp == 0 {
			asOf = time.Now()
		}

		f.mu.Lock()
		f.quotes[msg.TokenMint] = Quote{
			TokenMint: msg.TokenMint,
			PriceSol:  msg.PriceSol,
			AsOf:      asOf,
		}
		f.mu.Unlock()
	}
}
