// internal/scheduler/scheduler.go
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/volume-bot/internal/events"
	"github.com/rovshanmuradov/volume-bot/internal/executor"
	"github.com/rovshanmuradov/volume-bot/internal/metrics"
	"github.com/rovshanmuradov/volume-bot/internal/wallet"
)

// Validation errors returned by Start. No session state is created when any
// of them is returned.
var (
	ErrAlreadyRunning  = errors.New("session already running for owner and token")
	ErrNoWallets       = errors.New("wallet set cannot be empty")
	ErrInvalidSettings = errors.New("invalid session settings")
)

// entry ties a session to its wallet pool and run-loop cancellation.
type entry struct {
	session *Session
	pool    *wallet.Pool
	cancel  context.CancelFunc
}

// SchedulerConfig configures a Scheduler.
type SchedulerConfig struct {
	Logger   *zap.Logger
	Executor executor.Executor
	EventBus *events.Bus
}

// Scheduler owns the set of live volume sessions and runs one timer loop per
// session. Terminal sessions stay registered so that an emergency stop keeps
// working after normal completion.
type Scheduler struct {
	mu      sync.RWMutex
	entries map[string]*entry

	logger   *zap.Logger
	executor executor.Executor
	eventBus *events.Bus

	rngMu sync.Mutex
	rng   *rand.Rand

	wg sync.WaitGroup
}

// NewScheduler creates a session scheduler.
func NewScheduler(config *SchedulerConfig) *Scheduler {
	return &Scheduler{
		entries:  make(map[string]*entry),
		logger:   config.Logger.Named("scheduler"),
		executor: config.Executor,
		eventBus: config.EventBus,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func sessionKey(ownerID, tokenMint string) string {
	return ownerID + ":" + tokenMint
}

// Start creates a session and begins its trade loop. The returned snapshot
// carries the effective settings after defaults were merged in.
func (s *Scheduler) Start(ownerID, tokenMint string, wallets []*wallet.Wallet, settings Settings, platform string, currentPriceSol float64) (*Snapshot, error) {
	if len(wallets) == 0 {
		return nil, ErrNoWallets
	}

	merged := settings.withDefaults()
	if err := merged.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSettings, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := sessionKey(ownerID, tokenMint)
	if existing, exists := s.entries[key]; exists && !existing.session.Status().Terminal() {
		return nil, ErrAlreadyRunning
	}

	pool, err := wallet.NewPool(wallets, s.logger)
	if err != nil {
		return nil, ErrNoWallets
	}

	now := time.Now()
	sess := &Session{
		ID:              uuid.New().String(),
		OwnerID:         ownerID,
		TokenMint:       tokenMint,
		Platform:        platform,
		status:          StatusPending,
		settings:        merged,
		currentPriceSol: currentPriceSol,
		createdAt:       now,
		updatedAt:       now,
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.entries[key] = &entry{session: sess, pool: pool, cancel: cancel}

	sess.markRunning()
	metrics.SessionsActive.Inc()

	s.logger.Info("🚀 Volume session started",
		zap.String("session_id", sess.ID),
		zap.String("owner", ownerID),
		zap.String("token", tokenMint),
		zap.String("platform", platform),
		zap.Float64("target_volume_sol", merged.TargetVolumeSol),
		zap.Int("wallets", pool.Size()))

	s.publish(&events.SessionStartedEvent{
		BaseEvent:       events.NewBase(events.SessionStarted),
		SessionID:       sess.ID,
		OwnerID:         ownerID,
		TokenMint:       tokenMint,
		Platform:        platform,
		TargetVolumeSol: merged.TargetVolumeSol,
		WalletCount:     pool.Size(),
	})

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.runLoop(ctx, sess, pool, cancel)
	}()

	snapshot := sess.Snapshot()
	return &snapshot, nil
}

// Stop halts an active session. Returns false if no running or pending
// session exists for the key. No new tick starts after Stop returns.
func (s *Scheduler) Stop(ownerID, tokenMint, reason string) bool {
	s.mu.Lock()
	ent, exists := s.entries[sessionKey(ownerID, tokenMint)]
	s.mu.Unlock()

	if !exists {
		return false
	}
	if !ent.session.markStopped(reason) {
		return false
	}

	// Status is terminal before cancel, so a tick racing the cancellation
	// observes a stopped session and does nothing.
	ent.cancel()
	metrics.SessionsActive.Dec()

	s.logger.Info("🛑 Volume session stopped",
		zap.String("session_id", ent.session.ID),
		zap.String("reason", reason))

	s.publishStopped(ent.session, reason)
	return true
}

// EmergencyStop unconditionally forces a session into emergency_stopped,
// even if it already completed. Returns true if a session for the key ever
// existed.
func (s *Scheduler) EmergencyStop(ownerID, tokenMint, reason string, at time.Time) bool {
	s.mu.Lock()
	ent, exists := s.entries[sessionKey(ownerID, tokenMint)]
	s.mu.Unlock()

	if !exists {
		return false
	}

	wasActive := ent.session.markEmergencyStopped(reason, at)
	ent.cancel()
	if wasActive {
		metrics.SessionsActive.Dec()
	}

	s.logger.Warn("🚨 Volume session emergency stopped",
		zap.String("session_id", ent.session.ID),
		zap.String("owner", ownerID),
		zap.String("token", tokenMint),
		zap.String("reason", reason))

	s.publishStopped(ent.session, reason)
	return true
}

// GetStatus returns a snapshot of the session for the key, or nil.
func (s *Scheduler) GetStatus(ownerID, tokenMint string) *Snapshot {
	s.mu.RLock()
	ent, exists := s.entries[sessionKey(ownerID, tokenMint)]
	s.mu.RUnlock()

	if !exists {
		return nil
	}
	snapshot := ent.session.Snapshot()
	return &snapshot
}

// ListActive returns snapshots of the owner's non-terminal sessions.
func (s *Scheduler) ListActive(ownerID string) []Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Snapshot
	for _, ent := range s.entries {
		snapshot := ent.session.Snapshot()
		if snapshot.OwnerID == ownerID && !snapshot.Status.Terminal() {
			out = append(out, snapshot)
		}
	}
	return out
}

// ResumeWallet returns a suspended wallet to the session's rotation.
func (s *Scheduler) ResumeWallet(ownerID, tokenMint, walletAddr string) bool {
	s.mu.RLock()
	ent, exists := s.entries[sessionKey(ownerID, tokenMint)]
	s.mu.RUnlock()

	if !exists {
		return false
	}
	return ent.pool.Resume(walletAddr)
}

// Shutdown stops every active session and waits for the loops to exit.
func (s *Scheduler) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	for _, ent := range s.entries {
		if ent.session.markStopped("shutdown") {
			metrics.SessionsActive.Dec()
		}
		ent.cancel()
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		s.logger.Warn("Scheduler shutdown timeout")
		return ctx.Err()
	}
}

// runLoop drives one session's timer ticks until the session terminates.
func (s *Scheduler) runLoop(ctx context.Context, sess *Session, pool *wallet.Pool, cancel context.CancelFunc) {
	interval := time.Duration(sess.Snapshot().Settings.TradeIntervalMs) * time.Millisecond
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if done := s.safeTick(ctx, sess, pool); done {
				cancel()
				return
			}
		}
	}
}

// safeTick runs one tick with panic isolation: a failure inside a tick never
// takes the process or other sessions down.
func (s *Scheduler) safeTick(ctx context.Context, sess *Session, pool *wallet.Pool) (done bool) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Panic inside session tick",
				zap.String("session_id", sess.ID),
				zap.Any("panic", r))
			done = false
		}
	}()
	return s.tick(ctx, sess, pool)
}

func (s *Scheduler) tick(ctx context.Context, sess *Session, pool *wallet.Pool) bool {
	if sess.Status() != StatusRunning {
		return true
	}

	settings := sess.Snapshot().Settings

	direction := executor.DirectionSell
	if s.draw() < settings.BuyPressurePercent {
		direction = executor.DirectionBuy
	}

	price := sess.currentPrice()
	if direction == executor.DirectionSell && price <= 0 {
		// Nothing to price a sell against yet; lead with a buy.
		direction = executor.DirectionBuy
	}

	size := s.nextTradeSize(sess, settings)
	if size <= 0 {
		return sess.remainingVolume() <= 0 && s.complete(sess)
	}

	w, err := pool.Acquire()
	if err != nil {
		// Every wallet is busy or suspended; skip this tick.
		s.logger.Debug("No wallet available for tick",
			zap.String("session_id", sess.ID))
		return false
	}
	released := false
	defer func() {
		// If the executor panics, safeTick recovers the tick but the
		// wallet must still go back to the pool, counted as a failure.
		if !released {
			pool.Release(w.Address(), false)
		}
	}()

	req := &executor.Request{
		Wallet:      w,
		TokenMint:   sess.TokenMint,
		Direction:   direction,
		SlippageBps: settings.SlippageBps,
		Platform:    sess.Platform,
	}
	if direction == executor.DirectionBuy {
		req.AmountSol = size
	} else {
		req.AmountTokens = size / price
	}

	result, err := s.executor.Execute(ctx, req)
	success := err == nil && result != nil && result.Success
	pool.Release(w.Address(), success)
	released = true

	if err != nil {
		s.logger.Error("Trade request rejected",
			zap.String("session_id", sess.ID),
			zap.Error(err))
		result = &executor.Result{Success: false, Err: err.Error()}
	}

	targetReached := sess.applyTradeResult(string(direction), success, result.AmountSol, result.AmountTokens)

	s.publish(&events.TradeExecutedEvent{
		BaseEvent:    events.NewBase(events.TradeExecuted),
		SessionID:    sess.ID,
		OwnerID:      sess.OwnerID,
		TokenMint:    sess.TokenMint,
		Wallet:       w.Address(),
		Direction:    string(direction),
		AmountSol:    result.AmountSol,
		AmountTokens: result.AmountTokens,
		Signature:    result.Signature,
		Success:      success,
		Error:        result.Err,
	})

	if targetReached {
		return s.complete(sess)
	}
	return false
}

// complete finishes a session that hit its volume target.
func (s *Scheduler) complete(sess *Session) bool {
	if !sess.markStopped("target_reached") {
		return true
	}
	metrics.SessionsActive.Dec()

	snapshot := sess.Snapshot()
	s.logger.Info("✅ Volume target reached",
		zap.String("session_id", sess.ID),
		zap.Float64("executed_volume_sol", snapshot.ExecutedVolumeSol),
		zap.Int("total_trades", snapshot.TotalTrades))

	s.publishStopped(sess, "target_reached")
	return true
}

// nextTradeSize draws a trade size within the strategy's range, clamped so
// the session cannot overshoot its target by more than one trade.
func (s *Scheduler) nextTradeSize(sess *Session, settings Settings) float64 {
	remaining := sess.remainingVolume()
	if remaining <= 0 {
		return 0
	}

	mult := settings.sizeMultiplier()
	minSize := settings.MinTradeSol * mult
	maxSize := settings.MaxTradeSol * mult

	size := minSize
	if maxSize > minSize {
		s.rngMu.Lock()
		size = minSize + s.rng.Float64()*(maxSize-minSize)
		s.rngMu.Unlock()
	}

	if size > remaining {
		size = remaining
	}
	return size
}

// draw returns a pseudo-random value in [0,100).
func (s *Scheduler) draw() float64 {
	s.rngMu.Lock()
	defer s.rngMu.Unlock()
	return s.rng.Float64() * 100
}

func (s *Scheduler) publishStopped(sess *Session, reason string) {
	snapshot := sess.Snapshot()
	s.publish(&events.SessionStoppedEvent{
		BaseEvent:         events.NewBase(events.SessionStopped),
		SessionID:         snapshot.ID,
		OwnerID:           snapshot.OwnerID,
		TokenMint:         snapshot.TokenMint,
		Status:            string(snapshot.Status),
		Reason:            reason,
		ExecutedVolumeSol: snapshot.ExecutedVolumeSol,
		TotalTrades:       snapshot.TotalTrades,
	})
}

func (s *Scheduler) publish(event events.Event) {
	if s.eventBus == nil {
		return
	}
	_ = s.eventBus.Publish(event)
}
