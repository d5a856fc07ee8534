// internal/smartprofit/monitor.go
package smartprofit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/rovshanmuradov/volume-bot/internal/events"
	"github.com/rovshanmuradov/volume-bot/internal/executor"
	"github.com/rovshanmuradov/volume-bot/internal/metrics"
	"github.com/rovshanmuradov/volume-bot/internal/pricing"
	"github.com/rovshanmuradov/volume-bot/internal/wallet"
)

const (
	defaultPollInterval = 3 * time.Second

	// After this many consecutive price failures the poll rate is degraded
	// until a fetch succeeds again.
	maxPriceFailures       = 3
	degradedIntervalFactor = 4

	// Fraction of the requested sell below which a liquidation is treated
	// as failed and retried on the next poll.
	liquidationCompleteRatio = 0.999

	dustTokens = 1e-9
)

// Monitor watches one position and enforces its risk rules. Evaluation order
// on every poll is emergency stop, stop loss, trailing stop, take profit;
// the first matching rule wins the cycle.
type Monitor struct {
	mu       sync.Mutex
	settings *Settings
	state    State
	wallets  []*wallet.Wallet

	pollInterval time.Duration
	degraded     bool

	source   pricing.Source
	exec     executor.Executor
	store    SettingsStore
	eventBus *events.Bus
	logger   *zap.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

func newMonitor(settings *Settings, wallets []*wallet.Wallet, deps monitorDeps) *Monitor {
	interval := deps.pollInterval
	if interval <= 0 {
		interval = defaultPollInterval
	}
	return &Monitor{
		settings: settings,
		wallets:  wallets,
		state: State{
			OwnerID:   settings.OwnerID,
			TokenMint: settings.TokenMint,
		},
		pollInterval: interval,
		source:       deps.source,
		exec:         deps.exec,
		store:        deps.store,
		eventBus:     deps.eventBus,
		logger:       deps.logger,
		done:         make(chan struct{}),
	}
}

type monitorDeps struct {
	source       pricing.Source
	exec         executor.Executor
	store        SettingsStore
	eventBus     *events.Bus
	logger       *zap.Logger
	pollInterval time.Duration
}

// start begins the poll loop. The loop runs on a monitor-owned background
// context so a caller's request context cannot kill it; only stop and
// service shutdown end monitoring.
func (m *Monitor) start() {
	runCtx, cancel := context.WithCancel(context.Background())

	m.mu.Lock()
	m.cancel = cancel
	m.state.IsMonitoring = true
	m.state.StartedAt = time.Now()
	m.mu.Unlock()

	metrics.MonitorsActive.Inc()
	m.logger.Info("📊 Smart profit monitoring started",
		zap.Float64("entry_price", m.settings.AverageEntryPrice),
		zap.Float64("tokens_held", m.settings.TotalTokensHeld),
		zap.Duration("poll_interval", m.pollInterval))
	m.publish(&events.MonitorStartedEvent{
		BaseEvent:         events.NewBase(events.MonitorStarted),
		OwnerID:           m.settings.OwnerID,
		TokenMint:         m.settings.TokenMint,
		AverageEntryPrice: m.settings.AverageEntryPrice,
		TotalTokensHeld:   m.settings.TotalTokensHeld,
	})

	go m.run(runCtx)
}

func (m *Monitor) run(ctx context.Context) {
	defer close(m.done)

	timer := time.NewTimer(m.currentInterval())
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			// Normally stop already ran and cancelled us; this keeps
			// state, gauge and restart-ability consistent if the
			// context dies any other way.
			m.stop("context_cancelled")
			return
		case <-timer.C:
			m.safeEvaluate(ctx)
			if !m.isMonitoring() {
				return
			}
			timer.Reset(m.currentInterval())
		}
	}
}

// safeEvaluate contains panics so one broken cycle cannot kill the monitor
// or the process. The position is left in its last-known state.
func (m *Monitor) safeEvaluate(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("Monitor cycle panicked",
				zap.Any("panic", r),
				zap.Stack("stack"))
		}
	}()
	m.evaluate(ctx)
}

func (m *Monitor) currentInterval() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.degraded {
		return m.pollInterval * degradedIntervalFactor
	}
	return m.pollInterval
}

func (m *Monitor) isMonitoring() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.IsMonitoring
}

// Snapshot returns a copy of the monitor's runtime state.
func (m *Monitor) Snapshot() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Settings returns a copy of the monitor's current settings, including the
// live position figures.
func (m *Monitor) Settings() *Settings {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.settings.Clone()
}

func (m *Monitor) applyPatch(patch SettingsPatch) *Settings {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings.Apply(patch)
	return m.settings.Clone()
}

// evaluate runs one monitoring cycle: fetch the price, recompute PnL,
// and fire at most one rule.
func (m *Monitor) evaluate(ctx context.Context) {
	m.mu.Lock()
	if !m.state.IsMonitoring {
		m.mu.Unlock()
		return
	}
	tokenMint := m.settings.TokenMint
	m.mu.Unlock()

	quote, err := m.source.GetPrice(ctx, tokenMint)
	if err != nil {
		m.recordPriceFailure(err)
		return
	}

	m.mu.Lock()
	m.state.ConsecutivePriceFailures = 0
	if m.degraded {
		m.degraded = false
		m.logger.Info("✅ Price feed recovered, restoring poll rate")
	}

	price := quote.PriceSol
	pnl := (price - m.settings.AverageEntryPrice) / m.settings.AverageEntryPrice * 100
	m.state.CurrentPriceSol = price
	m.state.UnrealizedPnlPercent = pnl
	m.state.LastEvaluatedAt = time.Now()

	// Trailing stop bookkeeping happens before rule checks: arming is a
	// one-way latch and the high-water mark never decreases.
	if m.settings.Enabled && m.settings.TrailingStopEnabled {
		if !m.state.TrailingStopArmed {
			if pnl >= m.settings.TrailingStopActivationPercent {
				m.state.TrailingStopArmed = true
				m.state.TrailingHighWaterMarkPercent = pnl
				m.logger.Info("📈 Trailing stop armed",
					zap.Float64("pnl_percent", pnl),
					zap.Float64("activation_percent", m.settings.TrailingStopActivationPercent))
			}
		} else if pnl > m.state.TrailingHighWaterMarkPercent {
			m.state.TrailingHighWaterMarkPercent = pnl
		}
	}

	settings := m.settings.Clone()
	armed := m.state.TrailingStopArmed
	hwm := m.state.TrailingHighWaterMarkPercent
	m.mu.Unlock()

	if !settings.Enabled {
		return
	}

	switch {
	case settings.EmergencyStopEnabled && pnl <= -settings.EmergencyStopLossPercent:
		m.fireLiquidation(ctx, RuleEmergencyStop, price, pnl)
	case settings.StopLossEnabled && pnl <= -settings.StopLossPercent:
		m.fireLiquidation(ctx, RuleStopLoss, price, pnl)
	case settings.TrailingStopEnabled && armed && pnl <= hwm-settings.TrailingStopPercent:
		m.fireLiquidation(ctx, RuleTrailingStop, price, pnl)
	case settings.TakeProfitEnabled && pnl >= settings.TakeProfitPercent:
		m.fireTakeProfit(ctx, price, pnl)
	}
}

func (m *Monitor) recordPriceFailure(err error) {
	metrics.PriceFetchFailuresTotal.Inc()

	m.mu.Lock()
	m.state.ConsecutivePriceFailures++
	failures := m.state.ConsecutivePriceFailures
	wasDegraded := m.degraded
	if failures >= maxPriceFailures {
		m.degraded = true
	}
	m.mu.Unlock()

	m.logger.Warn("Price fetch failed, skipping cycle",
		zap.Int("consecutive_failures", failures),
		zap.Error(err))
	if failures >= maxPriceFailures && !wasDegraded {
		m.logger.Warn("🚨 Repeated price failures, degrading poll rate",
			zap.Duration("poll_interval", m.pollInterval*degradedIntervalFactor))
	}
}

// fireLiquidation sells the entire remaining position for a terminal rule.
// A failed or partial sell leaves the rule unconsumed so it retries on the
// next poll with whatever tokens remain.
func (m *Monitor) fireLiquidation(ctx context.Context, rule Rule, price, pnl float64) {
	m.mu.Lock()
	held := m.settings.TotalTokensHeld
	settings := m.settings.Clone()
	m.mu.Unlock()

	if held <= dustTokens {
		m.stop("position_empty")
		return
	}

	m.logger.Warn("🛑 Risk rule triggered, liquidating position",
		zap.String("rule", string(rule)),
		zap.Float64("pnl_percent", pnl),
		zap.Float64("price_sol", price),
		zap.Float64("tokens", held))

	sold, received, sellErr := m.sellTokens(ctx, held, settings)
	complete := sold >= held*liquidationCompleteRatio

	m.mu.Lock()
	m.reducePositionLocked(sold)
	if complete {
		m.state.LastTriggeredRule = rule
	}
	m.mu.Unlock()
	m.persist(ctx)

	if !complete {
		m.logger.Error("Liquidation incomplete, will retry next cycle",
			zap.String("rule", string(rule)),
			zap.Float64("sold_tokens", sold),
			zap.Float64("requested_tokens", held),
			zap.Error(sellErr))
		return
	}

	metrics.RuleTriggersTotal.WithLabelValues(string(rule)).Inc()
	m.publish(&events.RuleTriggeredEvent{
		BaseEvent:            events.NewBase(events.RuleTriggered),
		OwnerID:              settings.OwnerID,
		TokenMint:            settings.TokenMint,
		Rule:                 string(rule),
		UnrealizedPnlPercent: pnl,
		CurrentPriceSol:      price,
		SellPercent:          100,
		Liquidated:           true,
	})
	m.logger.Info("✅ Position liquidated",
		zap.String("rule", string(rule)),
		zap.Float64("sol_received", received))
	m.stop("liquidated")
}

// fireTakeProfit sells a fraction of the position and keeps monitoring.
// The average entry price is left untouched; only the held quantity and
// invested SOL shrink proportionally.
func (m *Monitor) fireTakeProfit(ctx context.Context, price, pnl float64) {
	m.mu.Lock()
	held := m.settings.TotalTokensHeld
	sellPercent := m.settings.TakeProfitSellPercent
	settings := m.settings.Clone()
	m.mu.Unlock()

	if held <= dustTokens {
		m.stop("position_empty")
		return
	}

	request := held * sellPercent / 100
	m.logger.Info("💰 Take profit triggered",
		zap.Float64("pnl_percent", pnl),
		zap.Float64("sell_percent", sellPercent),
		zap.Float64("tokens", request))

	sold, received, sellErr := m.sellTokens(ctx, request, settings)
	if sold <= 0 {
		m.logger.Error("Take profit sell failed, will retry next cycle",
			zap.Error(sellErr))
		return
	}

	m.mu.Lock()
	m.reducePositionLocked(sold)
	m.state.LastTriggeredRule = RuleTakeProfit
	remaining := m.settings.TotalTokensHeld
	m.mu.Unlock()
	m.persist(ctx)

	metrics.RuleTriggersTotal.WithLabelValues(string(RuleTakeProfit)).Inc()
	m.publish(&events.RuleTriggeredEvent{
		BaseEvent:            events.NewBase(events.RuleTriggered),
		OwnerID:              settings.OwnerID,
		TokenMint:            settings.TokenMint,
		Rule:                 string(RuleTakeProfit),
		UnrealizedPnlPercent: pnl,
		CurrentPriceSol:      price,
		SellPercent:          sellPercent,
		Liquidated:           false,
	})
	m.logger.Info("✅ Partial take profit executed",
		zap.Float64("sold_tokens", sold),
		zap.Float64("sol_received", received),
		zap.Float64("remaining_tokens", remaining))

	if remaining <= dustTokens {
		m.stop("position_empty")
	}
}

// reducePositionLocked shrinks the position after a sell. Invested SOL drops
// by the sold fraction so the average entry price stays constant.
func (m *Monitor) reducePositionLocked(soldTokens float64) {
	if soldTokens <= 0 || m.settings.TotalTokensHeld <= 0 {
		return
	}
	fraction := soldTokens / m.settings.TotalTokensHeld
	if fraction > 1 {
		fraction = 1
	}
	m.settings.TotalTokensHeld -= soldTokens
	if m.settings.TotalTokensHeld < dustTokens {
		m.settings.TotalTokensHeld = 0
	}
	m.settings.TotalSolInvested *= 1 - fraction
	m.settings.UpdatedAt = time.Now()
}

// sellTokens distributes a sell across the position wallets. It returns the
// aggregate tokens sold and SOL received; a per-wallet failure reduces the
// sold total rather than aborting the whole sell.
func (m *Monitor) sellTokens(ctx context.Context, amountTokens float64, settings *Settings) (float64, float64, error) {
	if len(m.wallets) == 0 {
		return 0, 0, fmt.Errorf("no wallets attached to position")
	}
	share := amountTokens / float64(len(m.wallets))

	var soldTokens, receivedSol float64
	var firstErr error
	for _, w := range m.wallets {
		started := time.Now()
		res, err := m.exec.Execute(ctx, &executor.Request{
			Wallet:       w,
			TokenMint:    settings.TokenMint,
			Direction:    executor.DirectionSell,
			AmountTokens: share,
			SlippageBps:  settings.SlippageBps,
			Platform:     settings.Platform,
		})
		metrics.TradeExecutionSeconds.WithLabelValues(string(executor.DirectionSell)).Observe(time.Since(started).Seconds())
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			metrics.TradesTotal.WithLabelValues(string(executor.DirectionSell), "failed").Inc()
			continue
		}
		if !res.Success {
			if firstErr == nil {
				firstErr = fmt.Errorf("sell failed: %s", res.Err)
			}
			metrics.TradesTotal.WithLabelValues(string(executor.DirectionSell), "failed").Inc()
			continue
		}
		metrics.TradesTotal.WithLabelValues(string(executor.DirectionSell), "success").Inc()
		soldTokens += res.AmountTokens
		receivedSol += res.AmountSol
	}
	if soldTokens == 0 && firstErr == nil {
		firstErr = fmt.Errorf("no tokens sold")
	}
	return soldTokens, receivedSol, firstErr
}

// triggerEmergencyStop liquidates the position immediately regardless of PnL
// and stops the monitor. Called synchronously by the service.
func (m *Monitor) triggerEmergencyStop(ctx context.Context) error {
	m.mu.Lock()
	held := m.settings.TotalTokensHeld
	settings := m.settings.Clone()
	price := m.state.CurrentPriceSol
	pnl := m.state.UnrealizedPnlPercent
	m.mu.Unlock()

	m.logger.Warn("🚨 Manual emergency stop requested",
		zap.Float64("tokens", held))

	var sellErr error
	if held > dustTokens {
		var sold float64
		sold, _, sellErr = m.sellTokens(ctx, held, settings)
		m.mu.Lock()
		m.reducePositionLocked(sold)
		if sold >= held*liquidationCompleteRatio {
			m.state.LastTriggeredRule = RuleEmergencyStop
		}
		m.mu.Unlock()
		m.persist(ctx)
		if sellErr == nil {
			metrics.RuleTriggersTotal.WithLabelValues(string(RuleEmergencyStop)).Inc()
			m.publish(&events.RuleTriggeredEvent{
				BaseEvent:            events.NewBase(events.RuleTriggered),
				OwnerID:              settings.OwnerID,
				TokenMint:            settings.TokenMint,
				Rule:                 string(RuleEmergencyStop),
				UnrealizedPnlPercent: pnl,
				CurrentPriceSol:      price,
				SellPercent:          100,
				Liquidated:           true,
			})
		}
	}

	m.stop("emergency_stop")
	if sellErr != nil {
		return fmt.Errorf("emergency liquidation incomplete: %w", sellErr)
	}
	return nil
}

// stop ends monitoring with the given reason. Idempotent.
func (m *Monitor) stop(reason string) {
	m.mu.Lock()
	if !m.state.IsMonitoring {
		m.mu.Unlock()
		return
	}
	m.state.IsMonitoring = false
	m.state.StoppedAt = time.Now()
	m.state.StopReason = reason
	cancel := m.cancel
	settings := m.settings
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	metrics.MonitorsActive.Dec()
	m.logger.Info("🛑 Smart profit monitoring stopped",
		zap.String("reason", reason))
	m.publish(&events.MonitorStoppedEvent{
		BaseEvent: events.NewBase(events.MonitorStopped),
		OwnerID:   settings.OwnerID,
		TokenMint: settings.TokenMint,
		Reason:    reason,
	})
}

// wait blocks until the poll loop has exited or the context expires.
func (m *Monitor) wait(ctx context.Context) error {
	select {
	case <-m.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Monitor) persist(ctx context.Context) {
	if m.store == nil {
		return
	}
	m.mu.Lock()
	settings := m.settings.Clone()
	m.mu.Unlock()
	if err := m.store.Save(ctx, settings); err != nil {
		m.logger.Warn("Failed to persist smart profit settings", zap.Error(err))
	}
}

func (m *Monitor) publish(ev events.Event) {
	if m.eventBus != nil {
		m.eventBus.Publish(ev)
	}
}
