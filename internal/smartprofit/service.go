// internal/smartprofit/service.go
package smartprofit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/rovshanmuradov/volume-bot/internal/events"
	"github.com/rovshanmuradov/volume-bot/internal/executor"
	"github.com/rovshanmuradov/volume-bot/internal/pricing"
	"github.com/rovshanmuradov/volume-bot/internal/wallet"
)

var (
	// ErrAlreadyMonitoring is returned when a monitor is already running
	// for the (owner, token) pair.
	ErrAlreadyMonitoring = errors.New("position is already being monitored")

	// ErrNotMonitored is returned for operations on an unknown position.
	ErrNotMonitored = errors.New("position is not being monitored")
)

// ServiceConfig carries the service dependencies.
type ServiceConfig struct {
	Logger       *zap.Logger
	PriceSource  pricing.Source
	Executor     executor.Executor
	Store        SettingsStore // optional
	EventBus     *events.Bus   // optional
	PollInterval time.Duration // zero means the default
}

// Service owns the smart profit monitors, keyed by (owner, token).
type Service struct {
	mu       sync.RWMutex
	monitors map[string]*Monitor

	logger       *zap.Logger
	source       pricing.Source
	exec         executor.Executor
	store        SettingsStore
	eventBus     *events.Bus
	pollInterval time.Duration

	wg sync.WaitGroup
}

// NewService creates the smart profit monitoring service.
func NewService(cfg *ServiceConfig) *Service {
	return &Service{
		monitors:     make(map[string]*Monitor),
		logger:       cfg.Logger.Named("smartprofit"),
		source:       cfg.PriceSource,
		exec:         cfg.Executor,
		store:        cfg.Store,
		eventBus:     cfg.EventBus,
		pollInterval: cfg.PollInterval,
	}
}

func monitorKey(ownerID, tokenMint string) string {
	return ownerID + ":" + tokenMint
}

// StartMonitoring begins watching a position. When settings is nil the
// persisted settings for the pair are loaded, falling back to defaults.
// Wallets are the holders of the position and receive the liquidation sells.
// ctx bounds only the settings load/save; the monitor runs until stopped.
func (s *Service) StartMonitoring(ctx context.Context, ownerID, tokenMint string, wallets []*wallet.Wallet, settings *Settings) (State, error) {
	if len(wallets) == 0 {
		return State{}, fmt.Errorf("at least one wallet is required")
	}

	if settings == nil {
		loaded, err := s.loadSettings(ctx, ownerID, tokenMint)
		if err != nil {
			return State{}, err
		}
		settings = loaded
	} else {
		settings = settings.Clone()
		settings.OwnerID = ownerID
		settings.TokenMint = tokenMint
	}
	settings.WalletAddresses = walletAddresses(wallets)
	if err := settings.Validate(); err != nil {
		return State{}, fmt.Errorf("invalid smart profit settings: %w", err)
	}

	key := monitorKey(ownerID, tokenMint)

	s.mu.Lock()
	if existing, ok := s.monitors[key]; ok && existing.isMonitoring() {
		s.mu.Unlock()
		return State{}, ErrAlreadyMonitoring
	}
	logger := s.logger.With(
		zap.String("owner_id", ownerID),
		zap.String("token_mint", tokenMint))
	mon := newMonitor(settings, wallets, monitorDeps{
		source:       s.source,
		exec:         s.exec,
		store:        s.store,
		eventBus:     s.eventBus,
		logger:       logger,
		pollInterval: s.pollInterval,
	})
	s.monitors[key] = mon
	s.mu.Unlock()

	if s.store != nil {
		if err := s.store.Save(ctx, settings); err != nil {
			logger.Warn("Failed to persist smart profit settings", zap.Error(err))
		}
	}

	s.wg.Add(1)
	mon.start()
	go func() {
		defer s.wg.Done()
		<-mon.done
	}()

	return mon.Snapshot(), nil
}

func (s *Service) loadSettings(ctx context.Context, ownerID, tokenMint string) (*Settings, error) {
	if s.store != nil {
		loaded, err := s.store.Load(ctx, ownerID, tokenMint)
		switch {
		case err == nil:
			return loaded, nil
		case errors.Is(err, ErrSettingsNotFound):
		default:
			return nil, fmt.Errorf("load smart profit settings: %w", err)
		}
	}
	return DefaultSettings(ownerID, tokenMint), nil
}

// StopMonitoring stops the monitor for a position without selling anything.
// Returns false when no monitor is running for the pair.
func (s *Service) StopMonitoring(ownerID, tokenMint string) bool {
	s.mu.RLock()
	mon, ok := s.monitors[monitorKey(ownerID, tokenMint)]
	s.mu.RUnlock()
	if !ok || !mon.isMonitoring() {
		return false
	}
	mon.stop("manual")
	return true
}

// TriggerEmergencyStop synchronously liquidates the position regardless of
// PnL and stops its monitor.
func (s *Service) TriggerEmergencyStop(ctx context.Context, ownerID, tokenMint string) error {
	s.mu.RLock()
	mon, ok := s.monitors[monitorKey(ownerID, tokenMint)]
	s.mu.RUnlock()
	if !ok {
		return ErrNotMonitored
	}
	return mon.triggerEmergencyStop(ctx)
}

// UpdateSettings merges a patch into a monitored position's settings. The
// new values take effect on the next poll cycle.
func (s *Service) UpdateSettings(ctx context.Context, ownerID, tokenMint string, patch SettingsPatch) (*Settings, error) {
	s.mu.RLock()
	mon, ok := s.monitors[monitorKey(ownerID, tokenMint)]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotMonitored
	}
	updated := mon.applyPatch(patch)
	if s.store != nil {
		if err := s.store.Save(ctx, updated); err != nil {
			return nil, fmt.Errorf("persist smart profit settings: %w", err)
		}
	}
	return updated, nil
}

// GetState returns the monitor state for a position, including stopped
// monitors that have not been replaced.
func (s *Service) GetState(ownerID, tokenMint string) (State, bool) {
	s.mu.RLock()
	mon, ok := s.monitors[monitorKey(ownerID, tokenMint)]
	s.mu.RUnlock()
	if !ok {
		return State{}, false
	}
	return mon.Snapshot(), true
}

// GetSettings returns the live settings for a position.
func (s *Service) GetSettings(ownerID, tokenMint string) (*Settings, bool) {
	s.mu.RLock()
	mon, ok := s.monitors[monitorKey(ownerID, tokenMint)]
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return mon.Settings(), true
}

// ListActive returns states of all running monitors.
func (s *Service) ListActive() []State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]State, 0, len(s.monitors))
	for _, mon := range s.monitors {
		if mon.isMonitoring() {
			out = append(out, mon.Snapshot())
		}
	}
	return out
}

// Shutdown stops all monitors and waits for their loops to exit.
func (s *Service) Shutdown(ctx context.Context) error {
	s.mu.RLock()
	monitors := make([]*Monitor, 0, len(s.monitors))
	for _, mon := range s.monitors {
		monitors = append(monitors, mon)
	}
	s.mu.RUnlock()

	for _, mon := range monitors {
		mon.stop("shutdown")
	}

	waited := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(waited)
	}()
	select {
	case <-waited:
		s.logger.Info("✅ All smart profit monitors stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("smart profit shutdown timed out: %w", ctx.Err())
	}
}

func walletAddresses(wallets []*wallet.Wallet) []string {
	out := make([]string, 0, len(wallets))
	for _, w := range wallets {
		out = append(out, w.Address())
	}
	return out
}
