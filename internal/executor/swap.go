// internal/executor/swap.go
package executor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/volume-bot/internal/metrics"
	"github.com/rovshanmuradov/volume-bot/internal/wallet"
)

// Fill is the realized outcome of a venue swap.
type Fill struct {
	SolAmount   float64
	TokenAmount float64
	Signature   string
}

// Venue executes swaps against one trading platform. Implementations wrap
// the RPC/submission layer and are expected to be safe for concurrent use
// across wallets.
type Venue interface {
	Name() string
	Buy(ctx context.Context, w *wallet.Wallet, tokenMint string, amountSol float64, slippageBps int) (*Fill, error)
	Sell(ctx context.Context, w *wallet.Wallet, tokenMint string, amountTokens float64, slippageBps int) (*Fill, error)
}

// ErrPermanent marks venue failures that a retry cannot fix (bad mint,
// insufficient funds). Venues wrap such errors with it.
var ErrPermanent = errors.New("permanent execution failure")

// SwapExecutorConfig configures a SwapExecutor.
type SwapExecutorConfig struct {
	Venue      Venue
	Logger     *zap.Logger
	MaxTries   uint
	RetryDelay time.Duration
}

// SwapExecutor submits one trade per call through the configured venue,
// retrying transient submission failures with exponential backoff.
type SwapExecutor struct {
	venue      Venue
	logger     *zap.Logger
	maxTries   uint
	retryDelay time.Duration
}

// NewSwapExecutor creates a SwapExecutor.
func NewSwapExecutor(config *SwapExecutorConfig) *SwapExecutor {
	maxTries := config.MaxTries
	if maxTries == 0 {
		maxTries = 3
	}
	retryDelay := config.RetryDelay
	if retryDelay == 0 {
		retryDelay = 500 * time.Millisecond
	}
	return &SwapExecutor{
		venue:      config.Venue,
		logger:     config.Logger.Named("swap_executor"),
		maxTries:   maxTries,
		retryDelay: retryDelay,
	}
}

// Execute submits the trade. A non-nil Result is returned for venue-level
// failures so callers can account for the attempt; an error is returned only
// for invalid requests.
func (e *SwapExecutor) Execute(ctx context.Context, req *Request) (*Result, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	start := time.Now()
	fill, err := e.submit(ctx, req)
	metrics.TradeExecutionSeconds.WithLabelValues(string(req.Direction)).Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.TradesTotal.WithLabelValues(string(req.Direction), "failed").Inc()
		e.logger.Warn("Trade failed",
			zap.String("wallet", req.Wallet.Address()),
			zap.String("token", req.TokenMint),
			zap.String("direction", string(req.Direction)),
			zap.Error(err))
		return &Result{Success: false, Err: err.Error()}, nil
	}

	metrics.TradesTotal.WithLabelValues(string(req.Direction), "success").Inc()
	metrics.ExecutedVolumeSol.Add(fill.SolAmount)

	return &Result{
		Success:      true,
		AmountSol:    fill.SolAmount,
		AmountTokens: fill.TokenAmount,
		Signature:    fill.Signature,
	}, nil
}

func (e *SwapExecutor) submit(ctx context.Context, req *Request) (*Fill, error) {
	operation := func() (*Fill, error) {
		var fill *Fill
		var err error
		switch req.Direction {
		case DirectionBuy:
			fill, err = e.venue.Buy(ctx, req.Wallet, req.TokenMint, req.AmountSol, req.SlippageBps)
		default:
			fill, err = e.venue.Sell(ctx, req.Wallet, req.TokenMint, req.AmountTokens, req.SlippageBps)
		}
		if err != nil {
			if errors.Is(err, ErrPermanent) {
				return nil, backoff.Permanent(err)
			}
			return nil, err
		}
		return fill, nil
	}

	backoffPolicy := backoff.NewExponentialBackOff()
	backoffPolicy.InitialInterval = e.retryDelay
	backoffPolicy.MaxInterval = e.retryDelay * 10

	notify := func(err error, duration time.Duration) {
		e.logger.Info("Retrying trade after error",
			zap.Error(err),
			zap.Duration("backoff", duration))
	}

	return backoff.Retry(ctx, operation,
		backoff.WithBackOff(backoffPolicy),
		backoff.WithMaxTries(e.maxTries),
		backoff.WithNotify(notify))
}

func validateRequest(req *Request) error {
	if req == nil {
		return fmt.Errorf("request cannot be nil")
	}
	if req.Wallet == nil {
		return fmt.Errorf("wallet cannot be nil")
	}
	if req.TokenMint == "" {
		return fmt.Errorf("token mint cannot be empty")
	}
	switch req.Direction {
	case DirectionBuy:
		if req.AmountSol <= 0 {
			return fmt.Errorf("buy amount must be positive")
		}
	case DirectionSell:
		if req.AmountTokens <= 0 {
			return fmt.Errorf("sell amount must be positive")
		}
	default:
		return fmt.Errorf("invalid direction: %q", req.Direction)
	}
	return nil
}
